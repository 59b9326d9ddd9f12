// Package store defines the document-store contract the chat core is built
// against: filtered queries with live change subscriptions, point reads,
// set-valued field updates and atomic multi-document batches. Implementations
// assign the commit timestamp that orders the message log.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/CryptoCapi/Mexora-sub001/internal/models"
)

var ErrNotFound = errors.New("document not found")

type EventType string

const (
	EventAdd    EventType = "add"
	EventUpdate EventType = "update"
	EventRemove EventType = "remove"
)

// MessageEvent is one change to a message document. Remove events carry at
// least the message ID.
type MessageEvent struct {
	Type    EventType
	Message models.Message
}

// ChatEvent is one change to a chat document.
type ChatEvent struct {
	Type EventType
	Chat models.Chat
}

// MessageStore is the message-document side of the collaborator.
//
// SubscribeMessages opens a live query over all messages of one chat. The
// first batch replays the current matching documents as adds; later batches
// deliver incremental changes. Closing the subscription is idempotent.
type MessageStore interface {
	SubscribeMessages(ctx context.Context, chatID string) (*MessageSubscription, error)
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	ListMessages(ctx context.Context, chatID string) ([]models.Message, error)

	// UpdateMessageBody applies an edit in place.
	UpdateMessageBody(ctx context.Context, id, body string, editedAt time.Time) error

	// DeleteMessage is idempotent: deleting an absent document is a no-op.
	DeleteMessage(ctx context.Context, id string) error

	// ToggleReaction performs the symmetric add/remove against the server's
	// current state, not a caller-side snapshot, so concurrent togglers do
	// not lose updates. Empty reaction sets are dropped from the map.
	ToggleReaction(ctx context.Context, id, emoji, userID string) (*models.Message, error)

	// AddReported is a set-union update of reportedBy.
	AddReported(ctx context.Context, id, userID string) error

	// ListExpired returns temporary messages whose deadline has passed.
	ListExpired(ctx context.Context, now time.Time) ([]models.Message, error)

	// ListOlderThan returns messages of one chat committed before cutoff.
	ListOlderThan(ctx context.Context, chatID string, cutoff time.Time) ([]models.Message, error)
}

// ChatStore is the chat-document side of the collaborator.
type ChatStore interface {
	SubscribeChats(ctx context.Context, userID string) (*ChatSubscription, error)
	GetChat(ctx context.Context, id string) (*models.Chat, error)
	ListChats(ctx context.Context, userID string) ([]models.Chat, error)
	InsertChat(ctx context.Context, chat *models.Chat) error
	UpdateGroupSettings(ctx context.Context, id string, settings models.GroupSettings) error
	AddParticipant(ctx context.Context, id, userID string, role models.GroupRole) error

	// AddBlocked is a set-union update of blockedUsers.
	AddBlocked(ctx context.Context, id, userID string) error

	// ListRetentionChats returns group chats carrying a positive
	// message-retention window.
	ListRetentionChats(ctx context.Context) ([]models.Chat, error)
}

// UserStore is the read-only identity collaborator.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	PutUser(ctx context.Context, user *models.User) error
}

// Store is the full collaborator contract plus atomic batching.
type Store interface {
	MessageStore
	ChatStore
	UserStore

	// NewBatch starts an all-or-nothing multi-document write.
	NewBatch() Batch
}

// Batch collects multi-document writes committed atomically. Set-valued
// operations are idempotent; operations against missing documents are
// skipped rather than failing the batch.
type Batch interface {
	// InsertMessage stages a message insert. The store assigns the commit
	// timestamp when the batch commits.
	InsertMessage(msg *models.Message)

	// SetLastMessage updates the chat's preview summary.
	SetLastMessage(chatID string, summary models.MessageSummary)

	// IncrementUnread bumps the unread counter of every participant except
	// exceptUserID.
	IncrementUnread(chatID, exceptUserID string)

	// AddReadBy stages a set-union add of userID into the message's readBy.
	AddReadBy(messageID, userID string)

	// ResetUnread zeroes the viewer's unread counter on the chat.
	ResetUnread(chatID, userID string)

	DeleteMessage(messageID string)
	DeleteChat(chatID string)

	Commit(ctx context.Context) error
}
