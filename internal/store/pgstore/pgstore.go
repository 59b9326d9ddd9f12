// Package pgstore implements the store contract on Postgres via GORM.
// Documents keep their set-valued fields in jsonb columns; change streams
// come from an in-process bus fed by this instance's commits.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CryptoCapi/Mexora-sub001/internal/models"
	"github.com/CryptoCapi/Mexora-sub001/internal/store"
)

type Store struct {
	db  *gorm.DB
	bus *bus

	// tsMu guards the strictly increasing commit timestamp.
	tsMu   sync.Mutex
	now    func() time.Time
	lastTS time.Time
}

// InitDB connects and migrates the schema.
func InitDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Chat{},
		&models.Message{},
	); err != nil {
		return nil, err
	}
	return db, nil
}

func New(db *gorm.DB) *Store {
	return &Store{
		db:  db,
		bus: newBus(),
		now: time.Now,
	}
}

// nextTimestamp returns a strictly increasing commit time even when the wall
// clock does not advance between writes.
func (s *Store) nextTimestamp() time.Time {
	s.tsMu.Lock()
	defer s.tsMu.Unlock()
	ts := s.now()
	if !ts.After(s.lastTS) {
		ts = s.lastTS.Add(time.Microsecond)
	}
	s.lastTS = ts
	return ts
}

// participantArg builds the jsonb containment argument for participant
// filters.
func participantArg(userID string) string {
	data, _ := json.Marshal([]string{userID})
	return string(data)
}

func translateErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return err
}

func (s *Store) SubscribeMessages(ctx context.Context, chatID string) (*store.MessageSubscription, error) {
	msgs, err := s.ListMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	initial := make([]store.MessageEvent, 0, len(msgs))
	for _, m := range msgs {
		initial = append(initial, store.MessageEvent{Type: store.EventAdd, Message: m})
	}
	sub := s.bus.addMessageSub(chatID, initial)

	subscription := store.NewMessageSubscription(sub.ch, func() {
		s.bus.dropMessageSub(sub.id)
	})
	go func() {
		<-ctx.Done()
		subscription.Close()
	}()
	return subscription, nil
}

func (s *Store) SubscribeChats(ctx context.Context, userID string) (*store.ChatSubscription, error) {
	chats, err := s.ListChats(ctx, userID)
	if err != nil {
		return nil, err
	}
	initial := make([]store.ChatEvent, 0, len(chats))
	for _, c := range chats {
		initial = append(initial, store.ChatEvent{Type: store.EventAdd, Chat: c})
	}
	sub := s.bus.addChatSub(userID, initial)

	subscription := store.NewChatSubscription(sub.ch, func() {
		s.bus.dropChatSub(sub.id)
	})
	go func() {
		<-ctx.Done()
		subscription.Close()
	}()
	return subscription, nil
}

func (s *Store) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var m models.Message
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &m, nil
}

func (s *Store) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("timestamp asc, id asc").
		Find(&msgs).Error
	return msgs, err
}

func (s *Store) UpdateMessageBody(ctx context.Context, id, body string, editedAt time.Time) error {
	var m models.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, "id = ?", id).Error; err != nil {
			return translateErr(err)
		}
		m.Body = body
		m.Edited = true
		m.EditedAt = &editedAt
		return tx.Save(&m).Error
	})
	if err != nil {
		return err
	}
	s.bus.publish([]store.MessageEvent{{Type: store.EventUpdate, Message: m}}, nil)
	return nil
}

func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	var m models.Message
	found := true
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&m, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Idempotent: racing reapers may double-delete.
				found = false
				return nil
			}
			return err
		}
		return tx.Delete(&models.Message{}, "id = ?", id).Error
	})
	if err != nil || !found {
		return err
	}
	s.bus.publish([]store.MessageEvent{{Type: store.EventRemove, Message: m}}, nil)
	return nil
}

func (s *Store) ToggleReaction(ctx context.Context, id, emoji, userID string) (*models.Message, error) {
	var m models.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, "id = ?", id).Error; err != nil {
			return translateErr(err)
		}
		if m.Reactions == nil {
			m.Reactions = make(map[string][]string)
		}
		users := m.Reactions[emoji]
		removed := false
		for i, u := range users {
			if u == userID {
				users = append(users[:i], users[i+1:]...)
				removed = true
				break
			}
		}
		if removed {
			if len(users) == 0 {
				delete(m.Reactions, emoji)
			} else {
				m.Reactions[emoji] = users
			}
		} else {
			m.Reactions[emoji] = append(users, userID)
		}
		return tx.Save(&m).Error
	})
	if err != nil {
		return nil, err
	}
	s.bus.publish([]store.MessageEvent{{Type: store.EventUpdate, Message: m}}, nil)
	result := m.Clone()
	return &result, nil
}

func (s *Store) AddReported(ctx context.Context, id, userID string) error {
	var m models.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, "id = ?", id).Error; err != nil {
			return translateErr(err)
		}
		for _, u := range m.ReportedBy {
			if u == userID {
				return nil
			}
		}
		m.ReportedBy = append(m.ReportedBy, userID)
		return tx.Save(&m).Error
	})
	if err != nil {
		return err
	}
	s.bus.publish([]store.MessageEvent{{Type: store.EventUpdate, Message: m}}, nil)
	return nil
}

func (s *Store) ListExpired(ctx context.Context, now time.Time) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("is_temporary = ? AND expires_at < ?", true, now).
		Find(&msgs).Error
	return msgs, err
}

func (s *Store) ListOlderThan(ctx context.Context, chatID string, cutoff time.Time) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("chat_id = ? AND timestamp < ?", chatID, cutoff).
		Find(&msgs).Error
	return msgs, err
}

func (s *Store) GetChat(ctx context.Context, id string) (*models.Chat, error) {
	var c models.Chat
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &c, nil
}

func (s *Store) ListChats(ctx context.Context, userID string) ([]models.Chat, error) {
	var chats []models.Chat
	err := s.db.WithContext(ctx).
		Where("participants @> ?", participantArg(userID)).
		Find(&chats).Error
	return chats, err
}

func (s *Store) InsertChat(ctx context.Context, chat *models.Chat) error {
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = s.nextTimestamp()
	}
	if err := s.db.WithContext(ctx).Create(chat).Error; err != nil {
		return err
	}
	s.bus.publish(nil, []store.ChatEvent{{Type: store.EventAdd, Chat: chat.Clone()}})
	return nil
}

func (s *Store) UpdateGroupSettings(ctx context.Context, id string, settings models.GroupSettings) error {
	var c models.Chat
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, "id = ?", id).Error; err != nil {
			return translateErr(err)
		}
		gs := settings
		c.GroupSettings = &gs
		return tx.Save(&c).Error
	})
	if err != nil {
		return err
	}
	s.bus.publish(nil, []store.ChatEvent{{Type: store.EventUpdate, Chat: c}})
	return nil
}

func (s *Store) AddParticipant(ctx context.Context, id, userID string, role models.GroupRole) error {
	var c models.Chat
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, "id = ?", id).Error; err != nil {
			return translateErr(err)
		}
		if !c.HasParticipant(userID) {
			c.Participants = append(c.Participants, userID)
		}
		if c.Roles == nil {
			c.Roles = make(map[string]models.GroupRole)
		}
		c.Roles[userID] = role
		return tx.Save(&c).Error
	})
	if err != nil {
		return err
	}
	s.bus.publish(nil, []store.ChatEvent{{Type: store.EventUpdate, Chat: c}})
	return nil
}

func (s *Store) AddBlocked(ctx context.Context, id, userID string) error {
	var c models.Chat
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, "id = ?", id).Error; err != nil {
			return translateErr(err)
		}
		if !c.Blocked(userID) {
			c.BlockedUsers = append(c.BlockedUsers, userID)
		}
		return tx.Save(&c).Error
	})
	if err != nil {
		return err
	}
	s.bus.publish(nil, []store.ChatEvent{{Type: store.EventUpdate, Chat: c}})
	return nil
}

func (s *Store) ListRetentionChats(ctx context.Context) ([]models.Chat, error) {
	var chats []models.Chat
	err := s.db.WithContext(ctx).
		Where("is_group = ? AND (group_settings ->> 'message_retention_days')::int > 0", true).
		Find(&chats).Error
	return chats, err
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &u, nil
}

func (s *Store) PutUser(ctx context.Context, user *models.User) error {
	return s.db.WithContext(ctx).Save(user).Error
}
