// Package chatsync maintains the ordered, deduplicated message log of one
// open chat, merged from the store's change stream plus locally issued
// optimistic operations. The run loop is the sole writer of the log; commands
// and merges are serialized through it.
package chatsync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CryptoCapi/Mexora-sub001/internal/crypto"
	"github.com/CryptoCapi/Mexora-sub001/internal/models"
	"github.com/CryptoCapi/Mexora-sub001/internal/policy"
	"github.com/CryptoCapi/Mexora-sub001/internal/repository"
	"github.com/CryptoCapi/Mexora-sub001/internal/store"
)

var (
	// ErrSendFailed marks a write that did not commit. The optimistic entry
	// has been rolled back and the send is safe to retry: ids are allocated
	// client-side, so a retry is the same logical message.
	ErrSendFailed = errors.New("send did not commit")

	// ErrClosed is returned for operations against a closed chat view.
	ErrClosed = errors.New("chat view closed")
)

// UndecryptableBody replaces the body of messages whose ciphertext does not
// match the configured key.
const UndecryptableBody = "[undecryptable message]"

const resubscribeBaseDelay = 250 * time.Millisecond

// Draft is a message about to be sent.
type Draft struct {
	Body        string
	Attachments []models.Attachment
	ReplyToID   string
	Encrypted   bool

	// TTL > 0 makes the message temporary; it expires TTL after commit.
	TTL time.Duration
}

// LogSnapshot is an immutable view of the merged log.
type LogSnapshot struct {
	ChatID   string
	Messages []models.Message
}

type Synchronizer struct {
	chatID string
	viewer models.User

	st     store.Store
	msgs   *repository.MessageRepository
	crypto *crypto.Service

	cmds      chan func()
	snapshots chan LogSnapshot
	closed    chan struct{}
	closeOnce sync.Once
	cancel    context.CancelFunc

	// log is owned by the run loop. Nothing else may touch it.
	log []models.Message

	now   func() time.Time
	newID func() string
}

func New(st store.Store, msgs *repository.MessageRepository, cryptoSvc *crypto.Service, chatID string, viewer models.User) *Synchronizer {
	return &Synchronizer{
		chatID:    chatID,
		viewer:    viewer,
		st:        st,
		msgs:      msgs,
		crypto:    cryptoSvc,
		cmds:      make(chan func()),
		snapshots: make(chan LogSnapshot, 1),
		closed:    make(chan struct{}),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Start opens the subscription and launches the run loop. The view stays
// live until Close or ctx cancellation.
func (s *Synchronizer) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	sub, err := s.st.SubscribeMessages(ctx, s.chatID)
	if err != nil {
		s.cancel()
		return fmt.Errorf("subscribe chat %s: %w", s.chatID, err)
	}
	go s.run(ctx, sub)
	return nil
}

// Close tears down the view. Idempotent; in-flight sends still complete
// against the store and are simply not reflected locally.
func (s *Synchronizer) Close() {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Snapshots delivers the latest view after every change. Stale snapshots are
// replaced, not queued: a slow consumer only ever misses intermediate states.
func (s *Synchronizer) Snapshots() <-chan LogSnapshot {
	return s.snapshots
}

// Done is closed when the run loop has exited.
func (s *Synchronizer) Done() <-chan struct{} {
	return s.closed
}

func (s *Synchronizer) ChatID() string { return s.chatID }

func (s *Synchronizer) run(ctx context.Context, sub *store.MessageSubscription) {
	defer close(s.closed)
	defer func() { sub.Close() }()

	events := sub.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-events:
			if !ok {
				// Broken stream: resubscribe rather than silently going
				// stale. The replayed initial batch rebuilds the log.
				next, err := s.resubscribe(ctx)
				if err != nil {
					return
				}
				sub.Close()
				sub = next
				events = sub.Events()
				s.log = s.log[:0]
				continue
			}
			s.merge(batch)
			s.emit()
		case cmd := <-s.cmds:
			cmd()
		}
	}
}

func (s *Synchronizer) resubscribe(ctx context.Context) (*store.MessageSubscription, error) {
	delay := resubscribeBaseDelay
	for {
		sub, err := s.st.SubscribeMessages(ctx, s.chatID)
		if err == nil {
			return sub, nil
		}
		log.Printf("chatsync: resubscribe %s failed: %v (retry in %v)", s.chatID, err, delay)
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

// merge folds one event batch into the log. Adds and updates both replace by
// id and re-insert at the sorted position, so delivery order cannot affect
// the final state; removes drop the entry.
func (s *Synchronizer) merge(batch []store.MessageEvent) {
	for _, ev := range batch {
		switch ev.Type {
		case store.EventAdd, store.EventUpdate:
			m := ev.Message.Clone()
			s.decryptForView(&m)
			s.remove(m.ID)
			s.insertSorted(m)
		case store.EventRemove:
			s.remove(ev.Message.ID)
		}
	}
}

func (s *Synchronizer) decryptForView(m *models.Message) {
	if !m.IsEncrypted || s.crypto == nil {
		return
	}
	plain, err := s.crypto.Decrypt(m.Body)
	if err != nil {
		m.Body = UndecryptableBody
		return
	}
	m.Body = plain
}

func (s *Synchronizer) insertSorted(m models.Message) {
	i := sort.Search(len(s.log), func(i int) bool {
		if s.log[i].Timestamp.Equal(m.Timestamp) {
			return s.log[i].ID >= m.ID
		}
		return s.log[i].Timestamp.After(m.Timestamp)
	})
	s.log = append(s.log, models.Message{})
	copy(s.log[i+1:], s.log[i:])
	s.log[i] = m
}

func (s *Synchronizer) remove(id string) bool {
	for i := range s.log {
		if s.log[i].ID == id {
			s.log = append(s.log[:i], s.log[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Synchronizer) emit() {
	snap := LogSnapshot{ChatID: s.chatID, Messages: make([]models.Message, len(s.log))}
	for i := range s.log {
		snap.Messages[i] = s.log[i].Clone()
	}
	for {
		select {
		case s.snapshots <- snap:
			return
		default:
		}
		// Replace the stale snapshot.
		select {
		case <-s.snapshots:
		default:
		}
	}
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

// Snapshot returns the current view of the log on demand, independent of
// the snapshot stream.
func (s *Synchronizer) Snapshot(ctx context.Context) (LogSnapshot, error) {
	var snap LogSnapshot
	if err := s.do(ctx, func() {
		snap = LogSnapshot{ChatID: s.chatID, Messages: make([]models.Message, len(s.log))}
		for i := range s.log {
			snap.Messages[i] = s.log[i].Clone()
		}
	}); err != nil {
		return LogSnapshot{}, err
	}
	return snap, nil
}

func (s *Synchronizer) findMessage(ctx context.Context, id string) (models.Message, error) {
	var m models.Message
	found := false
	if err := s.do(ctx, func() {
		for i := range s.log {
			if s.log[i].ID == id {
				m = s.log[i].Clone()
				found = true
				return
			}
		}
	}); err != nil {
		return models.Message{}, err
	}
	if !found {
		return models.Message{}, store.ErrNotFound
	}
	return m, nil
}

// Send validates the draft, appends an optimistic entry and commits the
// write. The id is allocated up front, so the optimistic entry and the
// confirmed server document are provably the same logical message.
func (s *Synchronizer) Send(ctx context.Context, draft Draft) (*models.Message, error) {
	if draft.Body == "" && len(draft.Attachments) == 0 {
		return nil, fmt.Errorf("%w: message needs a body or attachments", models.ErrValidation)
	}
	chat, err := s.st.GetChat(ctx, s.chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: chat no longer exists", models.ErrValidation)
		}
		return nil, err
	}
	if chat.Blocked(s.viewer.ID) {
		return nil, fmt.Errorf("%w: author is blocked in this chat", models.ErrPermissionDenied)
	}
	if !policy.CanPost(chat, s.viewer.ID) {
		return nil, fmt.Errorf("%w: posting is restricted to admins", models.ErrPermissionDenied)
	}

	msg := models.Message{
		ID:                s.newID(),
		ChatID:            s.chatID,
		AuthorID:          s.viewer.ID,
		AuthorDisplayName: s.viewer.DisplayName,
		AuthorAvatarRef:   s.viewer.AvatarRef,
		Body:              draft.Body,
		Attachments:       append([]models.Attachment(nil), draft.Attachments...),
		Timestamp:         s.now(), // provisional; replaced by the commit timestamp
		Status:            models.StatusSent,
		ReadBy:            []string{s.viewer.ID},
		IsEncrypted:       draft.Encrypted,
	}
	if draft.TTL > 0 {
		expires := s.now().Add(draft.TTL)
		msg.IsTemporary = true
		msg.ExpiresAt = &expires
	}
	if draft.ReplyToID != "" {
		if target, err := s.findMessage(ctx, draft.ReplyToID); err == nil {
			msg.ReplyTo = &models.ReplyRef{
				ID:                target.ID,
				Body:              target.Body,
				AuthorID:          target.AuthorID,
				AuthorDisplayName: target.AuthorDisplayName,
			}
		}
	}

	optimistic := msg.Clone()
	if err := s.do(ctx, func() {
		s.insertSorted(optimistic)
		s.emit()
	}); err != nil {
		return nil, err
	}

	committed := msg.Clone()
	if err := s.msgs.Send(ctx, &committed); err != nil {
		// Roll back the optimistic entry; the view may already be gone,
		// which is fine.
		rollbackErr := s.do(context.Background(), func() {
			if s.remove(msg.ID) {
				s.emit()
			}
		})
		if rollbackErr != nil && !errors.Is(rollbackErr, ErrClosed) {
			log.Printf("chatsync: rollback of %s failed: %v", msg.ID, rollbackErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return &committed, nil
}

// Edit is permitted only to the original author.
func (s *Synchronizer) Edit(ctx context.Context, messageID, newBody string) error {
	if newBody == "" {
		return fmt.Errorf("%w: edited body must not be empty", models.ErrValidation)
	}
	msg, err := s.findMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.AuthorID != s.viewer.ID {
		return fmt.Errorf("%w: only the author may edit", models.ErrPermissionDenied)
	}
	return s.msgs.Edit(ctx, messageID, newBody, s.now())
}

// Delete is permitted to the author and to chat admins/moderators.
func (s *Synchronizer) Delete(ctx context.Context, messageID string) error {
	msg, err := s.findMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.AuthorID != s.viewer.ID {
		chat, err := s.st.GetChat(ctx, s.chatID)
		if err != nil {
			return err
		}
		if !policy.CanModerate(chat, s.viewer.ID) {
			return fmt.Errorf("%w: only the author or a moderator may delete", models.ErrPermissionDenied)
		}
	}
	return s.msgs.Delete(ctx, messageID)
}

// ToggleReaction flips the viewer's reaction. The store applies the toggle
// against its current state, so concurrent togglers cannot lose updates.
func (s *Synchronizer) ToggleReaction(ctx context.Context, messageID, emoji string) error {
	if emoji == "" {
		return fmt.Errorf("%w: emoji must not be empty", models.ErrValidation)
	}
	_, err := s.msgs.ToggleReaction(ctx, messageID, emoji, s.viewer.ID)
	return err
}

// Report records the viewer's report on the message.
func (s *Synchronizer) Report(ctx context.Context, messageID string) error {
	return s.msgs.Report(ctx, messageID, s.viewer.ID)
}

// MarkRead adds the viewer to the read receipts of every unseen message in
// one atomic batch. Applying it twice is a no-op.
func (s *Synchronizer) MarkRead(ctx context.Context) error {
	var unseen []string
	if err := s.do(ctx, func() {
		for i := range s.log {
			if !s.log[i].ReadByUser(s.viewer.ID) {
				unseen = append(unseen, s.log[i].ID)
			}
		}
	}); err != nil {
		return err
	}
	return s.msgs.MarkRead(ctx, s.chatID, s.viewer.ID, unseen)
}
