package chatsync

import (
	"context"
	"sync"

	"github.com/CryptoCapi/Mexora-sub001/internal/crypto"
	"github.com/CryptoCapi/Mexora-sub001/internal/models"
	"github.com/CryptoCapi/Mexora-sub001/internal/repository"
	"github.com/CryptoCapi/Mexora-sub001/internal/store"
)

// Manager tracks the open chat views, one Synchronizer per (viewer, chat).
// Commands from the HTTP surface go through the viewer's open view so they
// share its optimistic log.
type Manager struct {
	ctx    context.Context
	st     store.Store
	msgs   *repository.MessageRepository
	crypto *crypto.Service

	mu   sync.Mutex
	open map[viewKey]*Synchronizer
}

type viewKey struct {
	viewerID string
	chatID   string
}

func NewManager(ctx context.Context, st store.Store, msgs *repository.MessageRepository, cryptoSvc *crypto.Service) *Manager {
	return &Manager{
		ctx:    ctx,
		st:     st,
		msgs:   msgs,
		crypto: cryptoSvc,
		open:   make(map[viewKey]*Synchronizer),
	}
}

// Open returns the viewer's live view of the chat, starting one if needed.
// The view's lifetime is bound to the manager, not to the caller's request.
func (m *Manager) Open(viewer models.User, chatID string) (*Synchronizer, error) {
	key := viewKey{viewerID: viewer.ID, chatID: chatID}

	m.mu.Lock()
	if v, ok := m.open[key]; ok {
		select {
		case <-v.Done():
			// Stale entry left by a dead loop; replace it.
			delete(m.open, key)
		default:
			m.mu.Unlock()
			return v, nil
		}
	}
	m.mu.Unlock()

	if _, err := m.st.GetChat(m.ctx, chatID); err != nil {
		return nil, err
	}

	s := New(m.st, m.msgs, m.crypto, chatID, viewer)
	if err := s.Start(m.ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.open[key]; ok {
		// Lost the race to another opener; keep theirs.
		s.Close()
		return existing, nil
	}
	m.open[key] = s
	return s, nil
}

// Close shuts one viewer's view of a chat.
func (m *Manager) Close(viewerID, chatID string) {
	key := viewKey{viewerID: viewerID, chatID: chatID}
	m.mu.Lock()
	s, ok := m.open[key]
	delete(m.open, key)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

// CloseChat shuts every view of a chat. The roster synchronizer calls this
// when the chat is deleted so no view keeps streaming a dead chat.
func (m *Manager) CloseChat(chatID string) {
	m.mu.Lock()
	var victims []*Synchronizer
	for key, s := range m.open {
		if key.chatID == chatID {
			victims = append(victims, s)
			delete(m.open, key)
		}
	}
	m.mu.Unlock()
	for _, s := range victims {
		s.Close()
	}
}

// CloseAll tears down every open view.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	victims := make([]*Synchronizer, 0, len(m.open))
	for _, s := range m.open {
		victims = append(victims, s)
	}
	m.open = make(map[viewKey]*Synchronizer)
	m.mu.Unlock()
	for _, s := range victims {
		s.Close()
	}
}
