package reaper

import (
	"context"
	"testing"
	"time"

	"github.com/CryptoCapi/Mexora-sub001/internal/models"
	"github.com/CryptoCapi/Mexora-sub001/internal/repository"
	"github.com/CryptoCapi/Mexora-sub001/internal/store/memstore"
)

type fixture struct {
	st    *memstore.Store
	msgs  *repository.MessageRepository
	chats *repository.ChatRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	return &fixture{
		st:    st,
		msgs:  repository.NewMessageRepository(st, nil),
		chats: repository.NewChatRepository(st),
	}
}

func (f *fixture) send(t *testing.T, msg *models.Message) {
	t.Helper()
	if err := f.msgs.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send %s: %v", msg.ID, err)
	}
}

func TestSweepRemovesOnlyExpiredTemporaries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat, _ := f.chats.CreateDirect(ctx, "alice", "bob")

	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	f.send(t, &models.Message{ID: "gone", ChatID: chat.ID, AuthorID: "alice", Body: "x",
		IsTemporary: true, ExpiresAt: &past})
	f.send(t, &models.Message{ID: "fresh", ChatID: chat.ID, AuthorID: "alice", Body: "x",
		IsTemporary: true, ExpiresAt: &future})
	f.send(t, &models.Message{ID: "plain", ChatID: chat.ID, AuthorID: "alice", Body: "x"})

	r := New(f.msgs, f.chats, 0)
	n, err := r.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}
	if n != 1 {
		t.Errorf("removed %d messages, want 1", n)
	}

	left, _ := f.st.ListMessages(ctx, chat.ID)
	ids := map[string]bool{}
	for _, m := range left {
		ids[m.ID] = true
	}
	if ids["gone"] || !ids["fresh"] || !ids["plain"] {
		t.Errorf("surviving messages = %v", ids)
	}
}

func TestSweepIsIdempotentUnderRacingReapers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat, _ := f.chats.CreateDirect(ctx, "alice", "bob")

	past := time.Now().Add(-time.Minute)
	f.send(t, &models.Message{ID: "gone", ChatID: chat.ID, AuthorID: "alice", Body: "x",
		IsTemporary: true, ExpiresAt: &past})

	r := New(f.msgs, f.chats, 0)
	if _, err := r.SweepOnce(ctx); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	// A second sweep over an already-clean store must be a quiet no-op.
	n, err := r.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if n != 0 {
		t.Errorf("second sweep removed %d messages", n)
	}
}

func TestRetentionPurgesOldGroupMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	group, err := f.chats.CreateGroup(ctx, "alice", "Team", "", []string{"bob"},
		&models.GroupSettings{MessageRetentionDays: 30})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	plain, _ := f.chats.CreateDirect(ctx, "alice", "bob")

	// Commit one message far in the past, then return to the present.
	old := time.Now().AddDate(0, 0, -40)
	f.st.SetClock(func() time.Time { return old })
	f.send(t, &models.Message{ID: "stale", ChatID: group.ID, AuthorID: "alice", Body: "x"})
	f.send(t, &models.Message{ID: "keep-direct", ChatID: plain.ID, AuthorID: "alice", Body: "x"})
	f.st.SetClock(time.Now)
	f.send(t, &models.Message{ID: "recent", ChatID: group.ID, AuthorID: "alice", Body: "x"})

	r := New(f.msgs, f.chats, 0)
	n, err := r.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}
	if n != 1 {
		t.Errorf("removed %d messages, want the one stale group message", n)
	}

	if _, err := f.st.GetMessage(ctx, "stale"); err == nil {
		t.Error("stale group message survived retention")
	}
	if _, err := f.st.GetMessage(ctx, "recent"); err != nil {
		t.Error("recent group message was purged")
	}
	// Direct chats have no retention policy regardless of age.
	if _, err := f.st.GetMessage(ctx, "keep-direct"); err != nil {
		t.Error("direct-chat message was purged")
	}
}

func TestRunSweepsOnTick(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chat, _ := f.chats.CreateDirect(ctx, "alice", "bob")

	past := time.Now().Add(-time.Minute)
	f.send(t, &models.Message{ID: "gone", ChatID: chat.ID, AuthorID: "alice", Body: "x",
		IsTemporary: true, ExpiresAt: &past})

	r := New(f.msgs, f.chats, 20*time.Millisecond)
	go r.Run(ctx)

	deadline := time.After(2 * time.Second)
	for {
		if msgs, _ := f.st.ListMessages(ctx, chat.ID); len(msgs) == 0 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("background reaper never removed the expired message")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
