// Package roster maintains a user's chat list: a live, ordered projection of
// every chat the viewer participates in, with resolved display identities and
// unread badges.
package roster

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/CryptoCapi/Mexora-sub001/internal/models"
	"github.com/CryptoCapi/Mexora-sub001/internal/policy"
	"github.com/CryptoCapi/Mexora-sub001/internal/repository"
	"github.com/CryptoCapi/Mexora-sub001/internal/store"
)

// PlaceholderName labels 1:1 chats whose counterpart identity could not be
// resolved. One failed lookup degrades that entry only, never the roster.
const PlaceholderName = "Unknown user"

// ErrClosed is returned for operations against a closed roster view.
var ErrClosed = errors.New("roster view closed")

const resubscribeBaseDelay = 250 * time.Millisecond

// Resolver looks up a user's display identity.
type Resolver interface {
	Resolve(ctx context.Context, userID string) (*models.User, error)
}

// StoreResolver resolves identities straight from the user store.
type StoreResolver struct {
	Users store.UserStore
}

func (r StoreResolver) Resolve(ctx context.Context, userID string) (*models.User, error) {
	return r.Users.GetUser(ctx, userID)
}

// Entry is one roster row: the chat plus its resolved presentation fields.
type Entry struct {
	Chat        models.Chat
	DisplayName string
	AvatarRef   string
	Preview     string
	Unread      int
}

// Snapshot is an immutable view of the roster, ordered by last activity
// descending.
type Snapshot struct {
	ViewerID string
	Entries  []Entry
}

type Synchronizer struct {
	viewer   models.User
	st       store.Store
	msgs     *repository.MessageRepository
	resolver Resolver

	// onChatDeleted is invoked from the run loop when a chat document is
	// removed, so open chat views can be torn down. May be nil.
	onChatDeleted func(chatID string)

	cmds      chan func()
	snapshots chan Snapshot
	closed    chan struct{}
	closeOnce sync.Once
	cancel    context.CancelFunc

	// chats and identities are owned by the run loop.
	chats      map[string]models.Chat
	identities map[string]models.User
}

func New(st store.Store, msgs *repository.MessageRepository, resolver Resolver, viewer models.User, onChatDeleted func(chatID string)) *Synchronizer {
	if resolver == nil {
		resolver = StoreResolver{Users: st}
	}
	return &Synchronizer{
		viewer:        viewer,
		st:            st,
		msgs:          msgs,
		resolver:      resolver,
		onChatDeleted: onChatDeleted,
		cmds:          make(chan func()),
		snapshots:     make(chan Snapshot, 1),
		closed:        make(chan struct{}),
		chats:         make(map[string]models.Chat),
		identities:    make(map[string]models.User),
	}
}

// Start opens the chat subscription and launches the run loop.
func (s *Synchronizer) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	sub, err := s.st.SubscribeChats(ctx, s.viewer.ID)
	if err != nil {
		s.cancel()
		return fmt.Errorf("subscribe roster of %s: %w", s.viewer.ID, err)
	}
	go s.run(ctx, sub)
	return nil
}

// Close tears down the roster view. Idempotent.
func (s *Synchronizer) Close() {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Snapshots delivers the latest roster after every change; stale snapshots
// are replaced, not queued.
func (s *Synchronizer) Snapshots() <-chan Snapshot {
	return s.snapshots
}

// Done is closed when the run loop has exited.
func (s *Synchronizer) Done() <-chan struct{} {
	return s.closed
}

func (s *Synchronizer) run(ctx context.Context, sub *store.ChatSubscription) {
	defer close(s.closed)
	defer func() { sub.Close() }()

	events := sub.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-events:
			if !ok {
				next, err := s.resubscribe(ctx)
				if err != nil {
					return
				}
				sub.Close()
				sub = next
				events = sub.Events()
				s.chats = make(map[string]models.Chat)
				continue
			}
			s.merge(batch)
			s.emit(ctx)
		case cmd := <-s.cmds:
			cmd()
		}
	}
}

func (s *Synchronizer) resubscribe(ctx context.Context) (*store.ChatSubscription, error) {
	delay := resubscribeBaseDelay
	for {
		sub, err := s.st.SubscribeChats(ctx, s.viewer.ID)
		if err == nil {
			return sub, nil
		}
		log.Printf("roster: resubscribe for %s failed: %v (retry in %v)", s.viewer.ID, err, delay)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay < 4*time.Second {
			delay *= 2
		}
	}
}

func (s *Synchronizer) merge(batch []store.ChatEvent) {
	for _, ev := range batch {
		switch ev.Type {
		case store.EventAdd, store.EventUpdate:
			if !ev.Chat.HasParticipant(s.viewer.ID) {
				// The viewer was removed from the chat.
				delete(s.chats, ev.Chat.ID)
				continue
			}
			s.chats[ev.Chat.ID] = ev.Chat.Clone()
		case store.EventRemove:
			if _, ok := s.chats[ev.Chat.ID]; !ok {
				continue
			}
			delete(s.chats, ev.Chat.ID)
			if s.onChatDeleted != nil {
				s.onChatDeleted(ev.Chat.ID)
			}
		}
	}
}

func (s *Synchronizer) emit(ctx context.Context) {
	snap := Snapshot{ViewerID: s.viewer.ID, Entries: s.entries(ctx)}
	for {
		select {
		case s.snapshots <- snap:
			return
		default:
		}
		select {
		case <-s.snapshots:
		default:
		}
	}
}

// entries projects the chat map into ordered roster rows. Run-loop only.
func (s *Synchronizer) entries(ctx context.Context) []Entry {
	out := make([]Entry, 0, len(s.chats))
	for id := range s.chats {
		chat := s.chats[id]
		out = append(out, s.project(ctx, &chat))
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].Chat.LastActivity(), out[j].Chat.LastActivity()
		if ti.Equal(tj) {
			return out[i].Chat.ID < out[j].Chat.ID
		}
		return ti.After(tj)
	})
	return out
}

func (s *Synchronizer) project(ctx context.Context, chat *models.Chat) Entry {
	e := Entry{
		Chat:   chat.Clone(),
		Unread: chat.UnreadFor(s.viewer.ID),
	}
	if chat.LastMessage != nil {
		e.Preview = chat.LastMessage.Body
	}
	if chat.IsGroup {
		e.DisplayName = chat.GroupName
		e.AvatarRef = chat.GroupImage
		return e
	}
	counterpart, ok := chat.Counterpart(s.viewer.ID)
	if !ok {
		e.DisplayName = PlaceholderName
		return e
	}
	user, err := s.resolve(ctx, counterpart)
	if err != nil {
		log.Printf("roster: resolve %s failed: %v", counterpart, err)
		e.DisplayName = PlaceholderName
		return e
	}
	e.DisplayName = user.DisplayName
	e.AvatarRef = user.AvatarRef
	return e
}

// resolve memoizes successful lookups. Failures are not cached so a flaky
// identity backend can recover on the next change.
func (s *Synchronizer) resolve(ctx context.Context, userID string) (*models.User, error) {
	if u, ok := s.identities[userID]; ok {
		return &u, nil
	}
	u, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.identities[userID] = *u
	return u, nil
}

// do runs fn on the loop goroutine and waits for it.
func (s *Synchronizer) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		fn()
		close(done)
	}
	select {
	case s.cmds <- wrapped:
	case <-s.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-s.closed:
		return ErrClosed
	}
}

// Entries returns the current roster.
func (s *Synchronizer) Entries(ctx context.Context) ([]Entry, error) {
	var out []Entry
	if err := s.do(ctx, func() {
		out = s.entries(ctx)
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// Search filters the roster by a case-insensitive substring match on the
// resolved display name. No store round-trip.
func (s *Synchronizer) Search(ctx context.Context, query string) ([]Entry, error) {
	all, err := s.Entries(ctx)
	if err != nil {
		return nil, err
	}
	if query == "" {
		return all, nil
	}
	needle := strings.ToLower(query)
	out := all[:0]
	for _, e := range all {
		if strings.Contains(strings.ToLower(e.DisplayName), needle) {
			out = append(out, e)
		}
	}
	return out, nil
}

// DeleteChat removes the chat and all its messages in one atomic batch.
// Open views of the chat are signaled through the remove event.
func (s *Synchronizer) DeleteChat(ctx context.Context, chatID string) error {
	chat, err := s.st.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.HasParticipant(s.viewer.ID) {
		return fmt.Errorf("%w: not a participant", models.ErrPermissionDenied)
	}
	if chat.IsGroup && !policy.CanModerate(chat, s.viewer.ID) {
		return fmt.Errorf("%w: only admins or moderators may delete a group", models.ErrPermissionDenied)
	}
	return s.msgs.DeleteChatCascade(ctx, chatID)
}
