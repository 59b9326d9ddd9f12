// Package memstore is an in-memory implementation of the store contract with
// live change streams. It backs the test suites and the dev-mode server.
package memstore

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/CryptoCapi/Mexora-sub001/internal/models"
	"github.com/CryptoCapi/Mexora-sub001/internal/store"
)

// subscriber channels are buffered; a consumer that falls this far behind is
// dropped and must resubscribe, mirroring a broken stream.
const subscriberBuffer = 128

type messageSub struct {
	id     int
	chatID string
	ch     chan []store.MessageEvent
}

type chatSub struct {
	id     int
	userID string
	ch     chan []store.ChatEvent
}

type Store struct {
	mu       sync.Mutex
	messages map[string]*models.Message
	chats    map[string]*models.Chat
	users    map[string]*models.User

	msgSubs  map[int]*messageSub
	chatSubs map[int]*chatSub
	nextSub  int

	now    func() time.Time
	lastTS time.Time
}

func New() *Store {
	return &Store{
		messages: make(map[string]*models.Message),
		chats:    make(map[string]*models.Chat),
		users:    make(map[string]*models.User),
		msgSubs:  make(map[int]*messageSub),
		chatSubs: make(map[int]*chatSub),
		now:      time.Now,
	}
}

// SetClock replaces the commit-timestamp source. Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// nextTimestamp returns a strictly increasing commit time even when the wall
// clock does not advance between writes.
func (s *Store) nextTimestamp() time.Time {
	ts := s.now()
	if !ts.After(s.lastTS) {
		ts = s.lastTS.Add(time.Microsecond)
	}
	s.lastTS = ts
	return ts
}

func (s *Store) SubscribeMessages(ctx context.Context, chatID string) (*store.MessageSubscription, error) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	sub := &messageSub{id: id, chatID: chatID, ch: make(chan []store.MessageEvent, subscriberBuffer)}
	s.msgSubs[id] = sub

	msgs := s.sortedMessagesLocked(chatID)
	initial := make([]store.MessageEvent, 0, len(msgs))
	for _, m := range msgs {
		initial = append(initial, store.MessageEvent{Type: store.EventAdd, Message: m})
	}
	sub.ch <- initial
	s.mu.Unlock()

	subscription := store.NewMessageSubscription(sub.ch, func() {
		s.dropMessageSub(id)
	})
	go func() {
		<-ctx.Done()
		subscription.Close()
	}()
	return subscription, nil
}

func (s *Store) dropMessageSub(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.msgSubs[id]; ok {
		delete(s.msgSubs, id)
		close(sub.ch)
	}
}

func (s *Store) SubscribeChats(ctx context.Context, userID string) (*store.ChatSubscription, error) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	sub := &chatSub{id: id, userID: userID, ch: make(chan []store.ChatEvent, subscriberBuffer)}
	s.chatSubs[id] = sub

	var initial []store.ChatEvent
	for _, c := range s.chats {
		if c.HasParticipant(userID) {
			initial = append(initial, store.ChatEvent{Type: store.EventAdd, Chat: c.Clone()})
		}
	}
	sub.ch <- initial
	s.mu.Unlock()

	subscription := store.NewChatSubscription(sub.ch, func() {
		s.dropChatSub(id)
	})
	go func() {
		<-ctx.Done()
		subscription.Close()
	}()
	return subscription, nil
}

func (s *Store) dropChatSub(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.chatSubs[id]; ok {
		delete(s.chatSubs, id)
		close(sub.ch)
	}
}

// publish fans events out to matching subscribers. Must be called without the
// lock held. Sends and channel closes both happen under the lock so a drop
// never races a delivery. Subscribers that cannot keep up are dropped so they
// resubscribe.
func (s *Store) publish(msgEvents []store.MessageEvent, chatEvents []store.ChatEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sub := range s.msgSubs {
		var batch []store.MessageEvent
		for _, ev := range msgEvents {
			if ev.Message.ChatID == sub.chatID {
				batch = append(batch, ev)
			}
		}
		if len(batch) == 0 {
			continue
		}
		select {
		case sub.ch <- batch:
		default:
			log.Printf("memstore: dropping slow message subscriber for chat %s", sub.chatID)
			delete(s.msgSubs, id)
			close(sub.ch)
		}
	}
	for id, sub := range s.chatSubs {
		var batch []store.ChatEvent
		for _, ev := range chatEvents {
			if ev.Chat.HasParticipant(sub.userID) {
				batch = append(batch, ev)
			}
		}
		if len(batch) == 0 {
			continue
		}
		select {
		case sub.ch <- batch:
		default:
			log.Printf("memstore: dropping slow chat subscriber for user %s", sub.userID)
			delete(s.chatSubs, id)
			close(sub.ch)
		}
	}
}

func (s *Store) sortedMessagesLocked(chatID string) []models.Message {
	var msgs []models.Message
	for _, m := range s.messages {
		if m.ChatID == chatID {
			msgs = append(msgs, m.Clone())
		}
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].Timestamp.Equal(msgs[j].Timestamp) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
	return msgs
}

func (s *Store) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := m.Clone()
	return &c, nil
}

func (s *Store) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedMessagesLocked(chatID), nil
}

func (s *Store) UpdateMessageBody(ctx context.Context, id, body string, editedAt time.Time) error {
	s.mu.Lock()
	m, ok := s.messages[id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	m.Body = body
	m.Edited = true
	m.EditedAt = &editedAt
	ev := store.MessageEvent{Type: store.EventUpdate, Message: m.Clone()}
	s.mu.Unlock()

	s.publish([]store.MessageEvent{ev}, nil)
	return nil
}

func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	s.mu.Lock()
	m, ok := s.messages[id]
	if !ok {
		// Idempotent: racing reapers may double-delete.
		s.mu.Unlock()
		return nil
	}
	delete(s.messages, id)
	ev := store.MessageEvent{Type: store.EventRemove, Message: m.Clone()}
	s.mu.Unlock()

	s.publish([]store.MessageEvent{ev}, nil)
	return nil
}

func (s *Store) ToggleReaction(ctx context.Context, id, emoji, userID string) (*models.Message, error) {
	s.mu.Lock()
	m, ok := s.messages[id]
	if !ok {
		s.mu.Unlock()
		return nil, store.ErrNotFound
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
	result := m.Clone()
	ev := store.MessageEvent{Type: store.EventUpdate, Message: m.Clone()}
	s.mu.Unlock()

	s.publish([]store.MessageEvent{ev}, nil)
	return &result, nil
}

func (s *Store) AddReported(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	m, ok := s.messages[id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	if !contains(m.ReportedBy, userID) {
		m.ReportedBy = append(m.ReportedBy, userID)
	}
	ev := store.MessageEvent{Type: store.EventUpdate, Message: m.Clone()}
	s.mu.Unlock()

	s.publish([]store.MessageEvent{ev}, nil)
	return nil
}

func (s *Store) ListExpired(ctx context.Context, now time.Time) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []models.Message
	for _, m := range s.messages {
		if m.Expired(now) {
			expired = append(expired, m.Clone())
		}
	}
	return expired, nil
}

func (s *Store) ListOlderThan(ctx context.Context, chatID string, cutoff time.Time) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, m := range s.messages {
		if m.ChatID == chatID && m.Timestamp.Before(cutoff) {
			out = append(out, m.Clone())
		}
	}
	return out, nil
}

func (s *Store) GetChat(ctx context.Context, id string) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := c.Clone()
	return &clone, nil
}

func (s *Store) ListChats(ctx context.Context, userID string) ([]models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Chat
	for _, c := range s.chats {
		if c.HasParticipant(userID) {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity().After(out[j].LastActivity())
	})
	return out, nil
}

func (s *Store) InsertChat(ctx context.Context, chat *models.Chat) error {
	s.mu.Lock()
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = s.nextTimestamp()
	}
	stored := chat.Clone()
	s.chats[chat.ID] = &stored
	ev := store.ChatEvent{Type: store.EventAdd, Chat: stored.Clone()}
	s.mu.Unlock()

	s.publish(nil, []store.ChatEvent{ev})
	return nil
}

func (s *Store) UpdateGroupSettings(ctx context.Context, id string, settings models.GroupSettings) error {
	s.mu.Lock()
	c, ok := s.chats[id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	gs := settings
	c.GroupSettings = &gs
	ev := store.ChatEvent{Type: store.EventUpdate, Chat: c.Clone()}
	s.mu.Unlock()

	s.publish(nil, []store.ChatEvent{ev})
	return nil
}

func (s *Store) AddParticipant(ctx context.Context, id, userID string, role models.GroupRole) error {
	s.mu.Lock()
	c, ok := s.chats[id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	if !c.HasParticipant(userID) {
		c.Participants = append(c.Participants, userID)
	}
	if c.Roles == nil {
		c.Roles = make(map[string]models.GroupRole)
	}
	c.Roles[userID] = role
	ev := store.ChatEvent{Type: store.EventUpdate, Chat: c.Clone()}
	s.mu.Unlock()

	s.publish(nil, []store.ChatEvent{ev})
	return nil
}

func (s *Store) AddBlocked(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	c, ok := s.chats[id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	if !contains(c.BlockedUsers, userID) {
		c.BlockedUsers = append(c.BlockedUsers, userID)
	}
	ev := store.ChatEvent{Type: store.EventUpdate, Chat: c.Clone()}
	s.mu.Unlock()

	s.publish(nil, []store.ChatEvent{ev})
	return nil
}

func (s *Store) ListRetentionChats(ctx context.Context) ([]models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Chat
	for _, c := range s.chats {
		if c.IsGroup && c.GroupSettings != nil && c.GroupSettings.MessageRetentionDays > 0 {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *Store) PutUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
