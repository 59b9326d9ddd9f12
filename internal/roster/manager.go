package roster

import (
	"context"
	"sync"

	"github.com/CryptoCapi/Mexora-sub001/internal/models"
	"github.com/CryptoCapi/Mexora-sub001/internal/repository"
	"github.com/CryptoCapi/Mexora-sub001/internal/store"
)

// Manager tracks one live roster view per viewer, shared by the REST and WS
// surfaces.
type Manager struct {
	ctx           context.Context
	st            store.Store
	msgs          *repository.MessageRepository
	resolver      Resolver
	onChatDeleted func(chatID string)

	mu   sync.Mutex
	open map[string]*Synchronizer
}

func NewManager(ctx context.Context, st store.Store, msgs *repository.MessageRepository, resolver Resolver, onChatDeleted func(chatID string)) *Manager {
	return &Manager{
		ctx:           ctx,
		st:            st,
		msgs:          msgs,
		resolver:      resolver,
		onChatDeleted: onChatDeleted,
		open:          make(map[string]*Synchronizer),
	}
}

// Open returns the viewer's live roster, starting one if needed.
func (m *Manager) Open(viewer models.User) (*Synchronizer, error) {
	m.mu.Lock()
	if v, ok := m.open[viewer.ID]; ok {
		select {
		case <-v.Done():
			delete(m.open, viewer.ID)
		default:
			m.mu.Unlock()
			return v, nil
		}
	}
	m.mu.Unlock()

	s := New(m.st, m.msgs, m.resolver, viewer, m.onChatDeleted)
	if err := s.Start(m.ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.open[viewer.ID]; ok {
		s.Close()
		return existing, nil
	}
	m.open[viewer.ID] = s
	return s, nil
}

// Close shuts one viewer's roster.
func (m *Manager) Close(viewerID string) {
	m.mu.Lock()
	s, ok := m.open[viewerID]
	delete(m.open, viewerID)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

// CloseAll tears down every open roster.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	victims := make([]*Synchronizer, 0, len(m.open))
	for _, s := range m.open {
		victims = append(victims, s)
	}
	m.open = make(map[string]*Synchronizer)
	m.mu.Unlock()
	for _, s := range victims {
		s.Close()
	}
}
