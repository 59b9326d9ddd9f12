package policy

import (
	"testing"
	"time"

	"github.com/CryptoCapi/Mexora-sub001/internal/models"
)

func groupChat(settings *models.GroupSettings) *models.Chat {
	return &models.Chat{
		ID:            "g1",
		IsGroup:       true,
		Participants:  []string{"admin", "mod", "member"},
		Roles:         map[string]models.GroupRole{"admin": models.RoleAdmin, "mod": models.RoleModerator},
		GroupSettings: settings,
	}
}

func TestCanPost(t *testing.T) {
	tests := []struct {
		name   string
		chat   *models.Chat
		userID string
		want   bool
	}{
		{"direct chat participant", &models.Chat{Participants: []string{"a", "b"}}, "a", true},
		{"non-participant", &models.Chat{Participants: []string{"a", "b"}}, "x", false},
		{"group without settings", groupChat(nil), "member", true},
		{"open group member", groupChat(&models.GroupSettings{}), "member", true},
		{"admins-only member", groupChat(&models.GroupSettings{OnlyAdminsCanPost: true}), "member", false},
		{"admins-only admin", groupChat(&models.GroupSettings{OnlyAdminsCanPost: true}), "admin", true},
		{"admins-only moderator", groupChat(&models.GroupSettings{OnlyAdminsCanPost: true}), "mod", true},
	}
	for _, tt := range tests {
		if got := CanPost(tt.chat, tt.userID); got != tt.want {
			t.Errorf("%s: CanPost = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCanAddMembers(t *testing.T) {
	tests := []struct {
		name   string
		chat   *models.Chat
		userID string
		want   bool
	}{
		{"direct chat", &models.Chat{Participants: []string{"a", "b"}}, "a", false},
		{"group without settings", groupChat(nil), "member", true},
		{"invites allowed", groupChat(&models.GroupSettings{AllowMemberInvites: true}), "member", true},
		{"invites disabled", groupChat(&models.GroupSettings{AllowMemberInvites: false}), "member", false},
		{"admins only", groupChat(&models.GroupSettings{OnlyAdminsCanAddMembers: true, AllowMemberInvites: true}), "member", false},
		{"admins only, admin", groupChat(&models.GroupSettings{OnlyAdminsCanAddMembers: true}), "admin", true},
		{"non-participant admin role", groupChat(nil), "stranger", false},
	}
	for _, tt := range tests {
		if got := CanAddMembers(tt.chat, tt.userID); got != tt.want {
			t.Errorf("%s: CanAddMembers = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCanModerate(t *testing.T) {
	chat := groupChat(nil)
	if !CanModerate(chat, "admin") || !CanModerate(chat, "mod") {
		t.Error("admin and moderator should moderate")
	}
	if CanModerate(chat, "member") {
		t.Error("plain member should not moderate")
	}
}

func TestRetentionCutoff(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	if _, ok := RetentionCutoff(groupChat(nil), now); ok {
		t.Error("group without settings should have no retention policy")
	}
	if _, ok := RetentionCutoff(groupChat(&models.GroupSettings{}), now); ok {
		t.Error("zero retention days should disable the policy")
	}

	cutoff, ok := RetentionCutoff(groupChat(&models.GroupSettings{MessageRetentionDays: 30}), now)
	if !ok {
		t.Fatal("expected a retention policy")
	}
	want := time.Date(2024, 2, 14, 10, 0, 0, 0, time.UTC)
	if !cutoff.Equal(want) {
		t.Errorf("cutoff = %v, want %v", cutoff, want)
	}
}
