package chatsync

import (
	"testing"
	"time"

	"github.com/CryptoCapi/Mexora-sub001/internal/models"
)

func directChat() *models.Chat {
	return &models.Chat{
		ID:           "c1",
		Participants: []string{"alice", "bob"},
	}
}

func TestComputeReadStatus(t *testing.T) {
	group := &models.Chat{
		ID:           "g1",
		IsGroup:      true,
		Participants: []string{"alice", "bob", "carol"},
	}

	tests := []struct {
		name   string
		msg    models.Message
		chat   *models.Chat
		viewer string
		want   models.MessageStatus
	}{
		{
			name:   "own unread message is sent",
			msg:    models.Message{AuthorID: "alice", ReadBy: []string{"alice"}},
			chat:   directChat(),
			viewer: "alice",
			want:   models.StatusSent,
		},
		{
			name:   "counterpart read it",
			msg:    models.Message{AuthorID: "alice", ReadBy: []string{"alice", "bob"}},
			chat:   directChat(),
			viewer: "alice",
			want:   models.StatusRead,
		},
		{
			name:   "incoming message is delivered",
			msg:    models.Message{AuthorID: "bob", ReadBy: []string{"bob"}},
			chat:   directChat(),
			viewer: "alice",
			want:   models.StatusDelivered,
		},
		{
			name:   "groups never report read",
			msg:    models.Message{AuthorID: "alice", ReadBy: []string{"alice", "bob", "carol"}},
			chat:   group,
			viewer: "alice",
			want:   models.StatusSent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeReadStatus(&tt.msg, tt.chat, tt.viewer); got != tt.want {
				t.Errorf("ComputeReadStatus = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGroupByDate(t *testing.T) {
	at := func(day int, hour int) time.Time {
		return time.Date(2024, time.January, day, hour, 0, 0, 0, time.UTC)
	}
	msgs := []models.Message{
		{ID: "m1", Timestamp: at(1, 9)},
		{ID: "m2", Timestamp: at(1, 21)},
		{ID: "m3", Timestamp: at(2, 0)},
	}

	groups := GroupByDate(msgs, time.UTC)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if groups[0].Label != "January 1, 2024" || len(groups[0].Messages) != 2 {
		t.Errorf("first group = %q with %d messages", groups[0].Label, len(groups[0].Messages))
	}
	if groups[1].Label != "January 2, 2024" || groups[1].Messages[0].ID != "m3" {
		t.Errorf("second group = %q starting with %s", groups[1].Label, groups[1].Messages[0].ID)
	}
}

func TestGroupByDateRespectsLocation(t *testing.T) {
	// 23:30 UTC on Jan 1 is already Jan 2 one timezone east.
	east := time.FixedZone("east", 3600)
	msgs := []models.Message{
		{ID: "m1", Timestamp: time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)},
		{ID: "m2", Timestamp: time.Date(2024, time.January, 1, 23, 30, 0, 0, time.UTC)},
	}
	if got := len(GroupByDate(msgs, time.UTC)); got != 1 {
		t.Errorf("UTC groups = %d, want 1", got)
	}
	if got := len(GroupByDate(msgs, east)); got != 2 {
		t.Errorf("UTC+1 groups = %d, want 2", got)
	}
}

func TestGroupByDateEmpty(t *testing.T) {
	if groups := GroupByDate(nil, time.UTC); len(groups) != 0 {
		t.Errorf("empty log grouped into %d groups", len(groups))
	}
}
