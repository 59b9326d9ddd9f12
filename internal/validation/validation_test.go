package validation

import (
	"strings"
	"testing"
)

func TestMaxMessageLength(t *testing.T) {
	t.Setenv("MAX_MESSAGE_LENGTH", "")
	if got := MaxMessageLength(); got != 4000 {
		t.Errorf("default = %d, want 4000", got)
	}
	t.Setenv("MAX_MESSAGE_LENGTH", "100")
	if got := MaxMessageLength(); got != 100 {
		t.Errorf("env override = %d, want 100", got)
	}
	t.Setenv("MAX_MESSAGE_LENGTH", "bogus")
	if got := MaxMessageLength(); got != 4000 {
		t.Errorf("bad env = %d, want default 4000", got)
	}
	t.Setenv("MAX_MESSAGE_LENGTH", "0")
	if got := MaxMessageLength(); got != 4000 {
		t.Errorf("zero env = %d, want default 4000", got)
	}
}

func TestTrimAndLimit(t *testing.T) {
	if got := TrimAndLimit("  hello  ", 10); got != "hello" {
		t.Errorf("TrimAndLimit = %q", got)
	}
	if got := TrimAndLimit(strings.Repeat("a", 20), 5); got != "aaaaa" {
		t.Errorf("limit = %q", got)
	}
	if got := TrimAndLimit("keep", 0); got != "keep" {
		t.Errorf("no limit = %q", got)
	}
}

func TestValidateEmoji(t *testing.T) {
	if ValidateEmoji("") {
		t.Error("empty emoji accepted")
	}
	if !ValidateEmoji("👍") {
		t.Error("single emoji rejected")
	}
	if !ValidateEmoji("👨‍👩‍👧") {
		t.Error("composed emoji rejected")
	}
	if ValidateEmoji(strings.Repeat("a", 50)) {
		t.Error("long string accepted as emoji")
	}
}

func TestValidateGroupName(t *testing.T) {
	if ValidateGroupName("  ") {
		t.Error("blank name accepted")
	}
	if !ValidateGroupName("Team") {
		t.Error("plain name rejected")
	}
	if ValidateGroupName(strings.Repeat("x", 200)) {
		t.Error("oversized name accepted")
	}
}
