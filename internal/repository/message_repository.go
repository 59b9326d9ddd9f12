// Package repository adapts domain operations onto the document-store
// collaborator. It owns no business logic beyond the mapping: validation and
// permission checks happen in the synchronizers before anything reaches this
// layer.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/CryptoCapi/Mexora-sub001/internal/crypto"
	"github.com/CryptoCapi/Mexora-sub001/internal/models"
	"github.com/CryptoCapi/Mexora-sub001/internal/store"
)

type MessageRepository struct {
	store  store.Store
	crypto *crypto.Service
}

func NewMessageRepository(st store.Store, cryptoSvc *crypto.Service) *MessageRepository {
	return &MessageRepository{store: st, crypto: cryptoSvc}
}

// Send commits the message together with the chat's preview summary and the
// unread-counter bumps for every participant but the author, as one atomic
// batch so the counters cannot drift from the log.
func (r *MessageRepository) Send(ctx context.Context, msg *models.Message) error {
	if msg.IsEncrypted && r.crypto != nil {
		sealed, err := r.crypto.Encrypt(msg.Body)
		if err != nil {
			return fmt.Errorf("encrypt message body: %w", err)
		}
		msg.Body = sealed
	}

	b := r.store.NewBatch()
	b.InsertMessage(msg)
	b.SetLastMessage(msg.ChatID, msg.Summary())
	b.IncrementUnread(msg.ChatID, msg.AuthorID)
	if err := b.Commit(ctx); err != nil {
		return fmt.Errorf("commit send batch: %w", err)
	}
	return nil
}

func (r *MessageRepository) Edit(ctx context.Context, id, newBody string, editedAt time.Time) error {
	return r.store.UpdateMessageBody(ctx, id, newBody, editedAt)
}

func (r *MessageRepository) Delete(ctx context.Context, id string) error {
	return r.store.DeleteMessage(ctx, id)
}

func (r *MessageRepository) ToggleReaction(ctx context.Context, id, emoji, userID string) (*models.Message, error) {
	return r.store.ToggleReaction(ctx, id, emoji, userID)
}

func (r *MessageRepository) Report(ctx context.Context, id, userID string) error {
	return r.store.AddReported(ctx, id, userID)
}

// MarkRead adds the viewer to readBy of every listed message and resets the
// viewer's unread badge, in a single atomic batch.
func (r *MessageRepository) MarkRead(ctx context.Context, chatID, viewerID string, messageIDs []string) error {
	if len(messageIDs) == 0 {
		// Still reset the badge: the viewer has seen everything.
		b := r.store.NewBatch()
		b.ResetUnread(chatID, viewerID)
		return b.Commit(ctx)
	}
	b := r.store.NewBatch()
	for _, id := range messageIDs {
		b.AddReadBy(id, viewerID)
	}
	b.ResetUnread(chatID, viewerID)
	return b.Commit(ctx)
}

// DeleteChatCascade removes every message of the chat and the chat document
// itself in one atomic batch, so an interruption can never leave orphans.
func (r *MessageRepository) DeleteChatCascade(ctx context.Context, chatID string) error {
	msgs, err := r.store.ListMessages(ctx, chatID)
	if err != nil {
		return fmt.Errorf("list messages for cascade: %w", err)
	}
	b := r.store.NewBatch()
	for _, m := range msgs {
		b.DeleteMessage(m.ID)
	}
	b.DeleteChat(chatID)
	return b.Commit(ctx)
}

// ListExpired surfaces temporary messages past their deadline for the reaper.
func (r *MessageRepository) ListExpired(ctx context.Context, now time.Time) ([]models.Message, error) {
	return r.store.ListExpired(ctx, now)
}

// ListOlderThan surfaces retention-purge candidates for one chat.
func (r *MessageRepository) ListOlderThan(ctx context.Context, chatID string, cutoff time.Time) ([]models.Message, error) {
	return r.store.ListOlderThan(ctx, chatID, cutoff)
}
