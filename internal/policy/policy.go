// Package policy evaluates group posting/invite permissions and retention
// windows. Pure functions, no I/O.
package policy

import (
	"time"

	"github.com/CryptoCapi/Mexora-sub001/internal/models"
)

func isPrivileged(chat *models.Chat, userID string) bool {
	role := chat.RoleOf(userID)
	return role == models.RoleAdmin || role == models.RoleModerator
}

// CanPost reports whether userID may send messages to the chat. Non-group
// chats and groups without an admins-only setting are open to every
// participant.
func CanPost(chat *models.Chat, userID string) bool {
	if !chat.HasParticipant(userID) {
		return false
	}
	if !chat.IsGroup || chat.GroupSettings == nil || !chat.GroupSettings.OnlyAdminsCanPost {
		return true
	}
	return isPrivileged(chat, userID)
}

// CanAddMembers reports whether userID may add participants to a group.
// Admins and moderators always can; plain members need member invites
// enabled and the admins-only restriction off.
func CanAddMembers(chat *models.Chat, userID string) bool {
	if !chat.IsGroup || !chat.HasParticipant(userID) {
		return false
	}
	if isPrivileged(chat, userID) {
		return true
	}
	gs := chat.GroupSettings
	if gs == nil {
		return true
	}
	return !gs.OnlyAdminsCanAddMembers && gs.AllowMemberInvites
}

// CanModerate reports whether userID may act on other participants'
// messages (delete) or change group settings.
func CanModerate(chat *models.Chat, userID string) bool {
	return chat.HasParticipant(userID) && isPrivileged(chat, userID)
}

// RetentionCutoff returns the instant before which messages are eligible for
// a retention purge, and whether the chat has a retention policy at all.
func RetentionCutoff(chat *models.Chat, now time.Time) (time.Time, bool) {
	if !chat.IsGroup || chat.GroupSettings == nil || chat.GroupSettings.MessageRetentionDays <= 0 {
		return time.Time{}, false
	}
	return now.AddDate(0, 0, -chat.GroupSettings.MessageRetentionDays), true
}
