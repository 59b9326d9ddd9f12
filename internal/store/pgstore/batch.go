package pgstore

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CryptoCapi/Mexora-sub001/internal/models"
	"github.com/CryptoCapi/Mexora-sub001/internal/store"
)

// batch stages writes and applies them inside one database transaction, so
// the whole batch commits or none of it does. Events are published only
// after the transaction commits.
type batch struct {
	s   *Store
	ops []func(tx *gorm.DB, r *batchResult) error
}

type batchResult struct {
	msgEvents  []store.MessageEvent
	chatEvents []store.ChatEvent
}

func (s *Store) NewBatch() store.Batch {
	return &batch{s: s}
}

// lockChat loads a chat row for update; ok=false when the row is gone, which
// batch ops treat as a skip, not a failure.
func lockChat(tx *gorm.DB, chatID string) (*models.Chat, bool, error) {
	var c models.Chat
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, "id = ?", chatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &c, true, nil
}

func lockMessage(tx *gorm.DB, id string) (*models.Message, bool, error) {
	var m models.Message
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &m, true, nil
}

func (b *batch) InsertMessage(msg *models.Message) {
	b.ops = append(b.ops, func(tx *gorm.DB, r *batchResult) error {
		m := msg.Clone()
		if m.Timestamp.IsZero() {
			m.Timestamp = b.s.nextTimestamp()
		}
		if m.Status == "" {
			m.Status = models.StatusSent
		}
		if !m.ReadByUser(m.AuthorID) {
			m.ReadBy = append(m.ReadBy, m.AuthorID)
		}
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		// Report the assigned timestamp back to the caller's document.
		msg.Timestamp = m.Timestamp
		msg.ReadBy = append([]string(nil), m.ReadBy...)
		r.msgEvents = append(r.msgEvents, store.MessageEvent{Type: store.EventAdd, Message: m.Clone()})
		return nil
	})
}

func (b *batch) SetLastMessage(chatID string, summary models.MessageSummary) {
	b.ops = append(b.ops, func(tx *gorm.DB, r *batchResult) error {
		c, ok, err := lockChat(tx, chatID)
		if err != nil || !ok {
			return err
		}
		sum := summary
		if sum.Timestamp.IsZero() {
			sum.Timestamp = b.s.nextTimestamp()
		}
		c.LastMessage = &sum
		if err := tx.Save(c).Error; err != nil {
			return err
		}
		r.chatEvents = append(r.chatEvents, store.ChatEvent{Type: store.EventUpdate, Chat: c.Clone()})
		return nil
	})
}

func (b *batch) IncrementUnread(chatID, exceptUserID string) {
	b.ops = append(b.ops, func(tx *gorm.DB, r *batchResult) error {
		c, ok, err := lockChat(tx, chatID)
		if err != nil || !ok {
			return err
		}
		if c.UnreadCount == nil {
			c.UnreadCount = make(map[string]int, len(c.Participants))
		}
		for _, p := range c.Participants {
			if p != exceptUserID {
				c.UnreadCount[p]++
			}
		}
		if err := tx.Save(c).Error; err != nil {
			return err
		}
		r.chatEvents = append(r.chatEvents, store.ChatEvent{Type: store.EventUpdate, Chat: c.Clone()})
		return nil
	})
}

func (b *batch) AddReadBy(messageID, userID string) {
	b.ops = append(b.ops, func(tx *gorm.DB, r *batchResult) error {
		m, ok, err := lockMessage(tx, messageID)
		if err != nil || !ok {
			return err
		}
		if m.ReadByUser(userID) {
			return nil
		}
		m.ReadBy = append(m.ReadBy, userID)
		if err := tx.Save(m).Error; err != nil {
			return err
		}
		r.msgEvents = append(r.msgEvents, store.MessageEvent{Type: store.EventUpdate, Message: m.Clone()})
		return nil
	})
}

func (b *batch) ResetUnread(chatID, userID string) {
	b.ops = append(b.ops, func(tx *gorm.DB, r *batchResult) error {
		c, ok, err := lockChat(tx, chatID)
		if err != nil || !ok {
			return err
		}
		if c.UnreadCount[userID] == 0 {
			return nil
		}
		c.UnreadCount[userID] = 0
		if err := tx.Save(c).Error; err != nil {
			return err
		}
		r.chatEvents = append(r.chatEvents, store.ChatEvent{Type: store.EventUpdate, Chat: c.Clone()})
		return nil
	})
}

func (b *batch) DeleteMessage(messageID string) {
	b.ops = append(b.ops, func(tx *gorm.DB, r *batchResult) error {
		m, ok, err := lockMessage(tx, messageID)
		if err != nil || !ok {
			return err
		}
		if err := tx.Delete(&models.Message{}, "id = ?", messageID).Error; err != nil {
			return err
		}
		r.msgEvents = append(r.msgEvents, store.MessageEvent{Type: store.EventRemove, Message: m.Clone()})
		return nil
	})
}

func (b *batch) DeleteChat(chatID string) {
	b.ops = append(b.ops, func(tx *gorm.DB, r *batchResult) error {
		c, ok, err := lockChat(tx, chatID)
		if err != nil || !ok {
			return err
		}
		if err := tx.Delete(&models.Chat{}, "id = ?", chatID).Error; err != nil {
			return err
		}
		r.chatEvents = append(r.chatEvents, store.ChatEvent{Type: store.EventRemove, Chat: c.Clone()})
		return nil
	})
}

func (b *batch) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r := &batchResult{}
	err := b.s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, op := range b.ops {
			if err := op(tx, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.s.bus.publish(r.msgEvents, r.chatEvents)
	b.ops = nil
	return nil
}
