package validation

import (
	"os"
	"strconv"
	"strings"
	"unicode/utf8"
)

func MaxMessageLength() int {
	maxStr := os.Getenv("MAX_MESSAGE_LENGTH")
	if maxStr == "" {
		return 4000
	}
	max, err := strconv.Atoi(maxStr)
	if err != nil || max < 1 {
		return 4000
	}
	return max
}

func MaxAttachments() int {
	maxStr := os.Getenv("MAX_ATTACHMENTS")
	if maxStr == "" {
		return 10
	}
	max, err := strconv.Atoi(maxStr)
	if err != nil || max < 1 {
		return 10
	}
	return max
}

func MaxGroupNameLength() int {
	return 100
}

func TrimAndLimit(s string, max int) string {
	s = strings.TrimSpace(s)
	if max > 0 && len(s) > max {
		return s[:max]
	}
	return s
}

// ValidateEmoji accepts short non-empty reaction strings. The client sends
// the emoji as-is; anything longer than a few runes is not a reaction.
func ValidateEmoji(emoji string) bool {
	if emoji == "" {
		return false
	}
	return utf8.RuneCountInString(emoji) <= 8
}

// ValidateGroupName rejects empty or oversized group names.
func ValidateGroupName(name string) bool {
	name = strings.TrimSpace(name)
	return name != "" && len(name) <= MaxGroupNameLength()
}
