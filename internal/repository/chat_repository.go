package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/CryptoCapi/Mexora-sub001/internal/models"
	"github.com/CryptoCapi/Mexora-sub001/internal/store"
)

type ChatRepository struct {
	store store.Store
}

func NewChatRepository(st store.Store) *ChatRepository {
	return &ChatRepository{store: st}
}

// CreateDirect opens a 1:1 chat between two users. The id is client-assigned
// so retries are idempotent at the store.
func (r *ChatRepository) CreateDirect(ctx context.Context, creatorID, otherID string) (*models.Chat, error) {
	if creatorID == "" || otherID == "" || creatorID == otherID {
		return nil, models.ErrValidation
	}
	chat := &models.Chat{
		ID:           uuid.NewString(),
		Participants: []string{creatorID, otherID},
		UnreadCount:  map[string]int{creatorID: 0, otherID: 0},
		CreatedBy:    creatorID,
	}
	if err := r.store.InsertChat(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

// CreateGroup opens a group chat with the creator as admin.
func (r *ChatRepository) CreateGroup(ctx context.Context, creatorID, name, description string, memberIDs []string, settings *models.GroupSettings) (*models.Chat, error) {
	if creatorID == "" || name == "" {
		return nil, models.ErrValidation
	}
	participants := []string{creatorID}
	unread := map[string]int{creatorID: 0}
	for _, id := range memberIDs {
		if id == creatorID || id == "" {
			continue
		}
		participants = append(participants, id)
		unread[id] = 0
	}
	if len(participants) < 2 {
		return nil, models.ErrValidation
	}
	chat := &models.Chat{
		ID:               uuid.NewString(),
		Participants:     participants,
		IsGroup:          true,
		GroupName:        name,
		GroupDescription: description,
		GroupSettings:    settings,
		Roles:            map[string]models.GroupRole{creatorID: models.RoleAdmin},
		UnreadCount:      unread,
		CreatedBy:        creatorID,
	}
	if err := r.store.InsertChat(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

func (r *ChatRepository) Get(ctx context.Context, id string) (*models.Chat, error) {
	return r.store.GetChat(ctx, id)
}

func (r *ChatRepository) UpdateGroupSettings(ctx context.Context, id string, settings models.GroupSettings) error {
	return r.store.UpdateGroupSettings(ctx, id, settings)
}

func (r *ChatRepository) AddMember(ctx context.Context, id, userID string, role models.GroupRole) error {
	if role == "" {
		role = models.RoleMember
	}
	return r.store.AddParticipant(ctx, id, userID, role)
}

func (r *ChatRepository) BlockUser(ctx context.Context, id, userID string) error {
	return r.store.AddBlocked(ctx, id, userID)
}

// ListRetentionChats surfaces group chats with a retention window for the
// reaper's purge pass.
func (r *ChatRepository) ListRetentionChats(ctx context.Context) ([]models.Chat, error) {
	return r.store.ListRetentionChats(ctx)
}
