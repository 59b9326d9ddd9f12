package memstore

import (
	"context"

	"github.com/CryptoCapi/Mexora-sub001/internal/models"
	"github.com/CryptoCapi/Mexora-sub001/internal/store"
)

// batch applies every staged operation under one lock acquisition, so the
// whole batch is visible (and streamed) as a single atomic commit.
type batch struct {
	s   *Store
	ops []func(*batchResult)
}

type batchResult struct {
	s          *Store
	msgEvents  []store.MessageEvent
	chatEvents []store.ChatEvent
}

func (s *Store) NewBatch() store.Batch {
	return &batch{s: s}
}

func (b *batch) InsertMessage(msg *models.Message) {
	staged := msg.Clone()
	b.ops = append(b.ops, func(r *batchResult) {
		m := staged.Clone()
		if m.Timestamp.IsZero() {
			m.Timestamp = r.s.nextTimestamp()
		}
		if m.Status == "" {
			m.Status = models.StatusSent
		}
		if !m.ReadByUser(m.AuthorID) {
			m.ReadBy = append(m.ReadBy, m.AuthorID)
		}
		r.s.messages[m.ID] = &m
		// Report the assigned timestamp back to the caller's document.
		msg.Timestamp = m.Timestamp
		msg.ReadBy = append([]string(nil), m.ReadBy...)
		r.msgEvents = append(r.msgEvents, store.MessageEvent{Type: store.EventAdd, Message: m.Clone()})
	})
}

func (b *batch) SetLastMessage(chatID string, summary models.MessageSummary) {
	b.ops = append(b.ops, func(r *batchResult) {
		c, ok := r.s.chats[chatID]
		if !ok {
			return
		}
		sum := summary
		if sum.Timestamp.IsZero() {
			sum.Timestamp = r.s.lastTS
		}
		c.LastMessage = &sum
		r.chatEvents = append(r.chatEvents, store.ChatEvent{Type: store.EventUpdate, Chat: c.Clone()})
	})
}

func (b *batch) IncrementUnread(chatID, exceptUserID string) {
	b.ops = append(b.ops, func(r *batchResult) {
		c, ok := r.s.chats[chatID]
		if !ok {
			return
		}
		if c.UnreadCount == nil {
			c.UnreadCount = make(map[string]int, len(c.Participants))
		}
		for _, p := range c.Participants {
			if p != exceptUserID {
				c.UnreadCount[p]++
			}
		}
		r.chatEvents = append(r.chatEvents, store.ChatEvent{Type: store.EventUpdate, Chat: c.Clone()})
	})
}

func (b *batch) AddReadBy(messageID, userID string) {
	b.ops = append(b.ops, func(r *batchResult) {
		m, ok := r.s.messages[messageID]
		if !ok {
			return
		}
		if m.ReadByUser(userID) {
			return
		}
		m.ReadBy = append(m.ReadBy, userID)
		r.msgEvents = append(r.msgEvents, store.MessageEvent{Type: store.EventUpdate, Message: m.Clone()})
	})
}

func (b *batch) ResetUnread(chatID, userID string) {
	b.ops = append(b.ops, func(r *batchResult) {
		c, ok := r.s.chats[chatID]
		if !ok {
			return
		}
		if c.UnreadCount[userID] == 0 {
			return
		}
		c.UnreadCount[userID] = 0
		r.chatEvents = append(r.chatEvents, store.ChatEvent{Type: store.EventUpdate, Chat: c.Clone()})
	})
}

func (b *batch) DeleteMessage(messageID string) {
	b.ops = append(b.ops, func(r *batchResult) {
		m, ok := r.s.messages[messageID]
		if !ok {
			return
		}
		delete(r.s.messages, messageID)
		r.msgEvents = append(r.msgEvents, store.MessageEvent{Type: store.EventRemove, Message: m.Clone()})
	})
}

func (b *batch) DeleteChat(chatID string) {
	b.ops = append(b.ops, func(r *batchResult) {
		c, ok := r.s.chats[chatID]
		if !ok {
			return
		}
		delete(r.s.chats, chatID)
		r.chatEvents = append(r.chatEvents, store.ChatEvent{Type: store.EventRemove, Chat: c.Clone()})
	})
}

func (b *batch) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r := &batchResult{s: b.s}
	b.s.mu.Lock()
	for _, op := range b.ops {
		op(r)
	}
	b.s.mu.Unlock()

	b.s.publish(r.msgEvents, r.chatEvents)
	b.ops = nil
	return nil
}
