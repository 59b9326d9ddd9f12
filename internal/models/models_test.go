package models

import (
	"testing"
	"time"
)

func TestMessageClone(t *testing.T) {
	editedAt := time.Now()
	msg := &Message{
		ID:        "m1",
		ChatID:    "c1",
		AuthorID:  "alice",
		Body:      "hello",
		ReadBy:    []string{"alice"},
		Reactions: map[string][]string{"👍": {"bob"}},
		Edited:    true,
		EditedAt:  &editedAt,
	}

	clone := msg.Clone()
	clone.ReadBy = append(clone.ReadBy, "bob")
	clone.Reactions["👍"] = append(clone.Reactions["👍"], "carol")

	if len(msg.ReadBy) != 1 {
		t.Errorf("Clone shares ReadBy slice: %v", msg.ReadBy)
	}
	if len(msg.Reactions["👍"]) != 1 {
		t.Errorf("Clone shares Reactions map: %v", msg.Reactions)
	}
	if clone.ID != msg.ID || clone.Body != msg.Body {
		t.Errorf("Clone changed scalar fields: %+v", clone)
	}
}

func TestMessageReadByUser(t *testing.T) {
	msg := &Message{ReadBy: []string{"alice", "bob"}}
	if !msg.ReadByUser("bob") {
		t.Error("ReadByUser(bob) = false, want true")
	}
	if msg.ReadByUser("carol") {
		t.Error("ReadByUser(carol) = true, want false")
	}
}

func TestMessageExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name string
		msg  Message
		want bool
	}{
		{"expired temporary", Message{IsTemporary: true, ExpiresAt: &past}, true},
		{"future temporary", Message{IsTemporary: true, ExpiresAt: &future}, false},
		{"permanent", Message{}, false},
		{"temporary without deadline", Message{IsTemporary: true}, false},
	}
	for _, tt := range tests {
		if got := tt.msg.Expired(now); got != tt.want {
			t.Errorf("%s: Expired = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestMessageSummary(t *testing.T) {
	msg := &Message{Body: "secret", IsEncrypted: true, AuthorID: "alice"}
	if got := msg.Summary().Body; got != "Encrypted message" {
		t.Errorf("Summary body for encrypted message = %q", got)
	}

	msg = &Message{Attachments: []Attachment{{Type: ImageAttachment, Ref: "r1"}}}
	if got := msg.Summary().Body; got != "Attachment" {
		t.Errorf("Summary body for attachment-only message = %q", got)
	}
}

func TestChatCounterpart(t *testing.T) {
	chat := &Chat{Participants: []string{"alice", "bob"}}
	other, ok := chat.Counterpart("alice")
	if !ok || other != "bob" {
		t.Errorf("Counterpart(alice) = %q, %v", other, ok)
	}

	group := &Chat{IsGroup: true, Participants: []string{"a", "b", "c"}}
	if _, ok := group.Counterpart("a"); ok {
		t.Error("Counterpart on group chat should report false")
	}
}

func TestChatRoleOf(t *testing.T) {
	chat := &Chat{
		Participants: []string{"alice", "bob"},
		Roles:        map[string]GroupRole{"alice": RoleAdmin},
	}
	if chat.RoleOf("alice") != RoleAdmin {
		t.Error("RoleOf(alice) != admin")
	}
	if chat.RoleOf("bob") != RoleMember {
		t.Error("RoleOf without assignment should default to member")
	}
}

func TestChatLastActivity(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sent := created.Add(time.Hour)

	chat := &Chat{CreatedAt: created}
	if !chat.LastActivity().Equal(created) {
		t.Error("LastActivity without messages should be CreatedAt")
	}

	chat.LastMessage = &MessageSummary{Timestamp: sent}
	if !chat.LastActivity().Equal(sent) {
		t.Error("LastActivity should follow last message timestamp")
	}
}

func TestChatUnreadFor(t *testing.T) {
	chat := &Chat{UnreadCount: map[string]int{"alice": 3, "bob": -1}}
	if got := chat.UnreadFor("alice"); got != 3 {
		t.Errorf("UnreadFor(alice) = %d, want 3", got)
	}
	if got := chat.UnreadFor("bob"); got != 0 {
		t.Errorf("UnreadFor clamps negatives, got %d", got)
	}
	if got := chat.UnreadFor("carol"); got != 0 {
		t.Errorf("UnreadFor(unknown) = %d, want 0", got)
	}
}
