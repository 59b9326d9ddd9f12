package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/CryptoCapi/Mexora-sub001/internal/cache"
	"github.com/CryptoCapi/Mexora-sub001/internal/crypto"
	"github.com/CryptoCapi/Mexora-sub001/internal/httpx"
	"github.com/CryptoCapi/Mexora-sub001/internal/models"
	"github.com/CryptoCapi/Mexora-sub001/internal/policy"
	"github.com/CryptoCapi/Mexora-sub001/internal/repository"
	"github.com/CryptoCapi/Mexora-sub001/internal/roster"
	"github.com/CryptoCapi/Mexora-sub001/internal/validation"
)

const inviteTTL = 24 * time.Hour

type ChatHandler struct {
	chats   *repository.ChatRepository
	rosters *roster.Manager
	crypto  *crypto.Service
	invites *cache.InviteCache
	badges  *cache.BadgeCache
}

func NewChatHandler(chats *repository.ChatRepository, rosters *roster.Manager, cryptoSvc *crypto.Service, invites *cache.InviteCache, badges *cache.BadgeCache) *ChatHandler {
	return &ChatHandler{
		chats:   chats,
		rosters: rosters,
		crypto:  cryptoSvc,
		invites: invites,
		badges:  badges,
	}
}

func viewerFrom(c *fiber.Ctx) (models.User, error) {
	id, err := httpx.LocalString(c, "userID")
	if err != nil {
		return models.User{}, err
	}
	name, _ := c.Locals("displayName").(string)
	avatar, _ := c.Locals("avatarRef").(string)
	return models.User{ID: id, DisplayName: name, AvatarRef: avatar}, nil
}

type createDirectInput struct {
	OtherID string `json:"other_id"`
}

func (h *ChatHandler) CreateDirect(c *fiber.Ctx) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	var input createDirectInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}
	chat, err := h.chats.CreateDirect(c.Context(), viewer.ID, input.OtherID)
	if err != nil {
		return httpx.DomainError(c, "create_chat_failed", err)
	}
	return c.Status(fiber.StatusCreated).JSON(chat)
}

type createGroupInput struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	MemberIDs   []string              `json:"member_ids"`
	Settings    *models.GroupSettings `json:"settings"`
}

func (h *ChatHandler) CreateGroup(c *fiber.Ctx) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	var input createGroupInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}
	if !validation.ValidateGroupName(input.Name) {
		return httpx.BadRequest(c, "invalid_group_name", "Group name is required")
	}
	chat, err := h.chats.CreateGroup(c.Context(), viewer.ID, input.Name, input.Description, input.MemberIDs, input.Settings)
	if err != nil {
		return httpx.DomainError(c, "create_group_failed", err)
	}
	return c.Status(fiber.StatusCreated).JSON(chat)
}

// GetRoster returns the viewer's live roster, optionally filtered by the
// `q` query parameter.
func (h *ChatHandler) GetRoster(c *fiber.Ctx) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	view, err := h.rosters.Open(viewer)
	if err != nil {
		return httpx.DomainError(c, "open_roster_failed", err)
	}
	entries, err := view.Search(c.Context(), c.Query("q"))
	if err != nil {
		return httpx.DomainError(c, "roster_failed", err)
	}
	for _, e := range entries {
		_ = h.badges.Set(e.Chat.ID, viewer.ID, e.Unread)
	}
	return c.JSON(fiber.Map{
		"entries": entries,
		"count":   len(entries),
	})
}

// GetUnread serves the viewer's badge for one chat, preferring the cache.
func (h *ChatHandler) GetUnread(c *fiber.Ctx) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	chatID := c.Params("id")
	if n, ok := h.badges.Get(chatID, viewer.ID); ok {
		return c.JSON(fiber.Map{"chat_id": chatID, "unread": n})
	}
	chat, err := h.chats.Get(c.Context(), chatID)
	if err != nil {
		return httpx.DomainError(c, "fetch_chat_failed", err)
	}
	if !chat.HasParticipant(viewer.ID) {
		return httpx.Forbidden(c, "not_a_participant", "Not a participant")
	}
	n := chat.UnreadFor(viewer.ID)
	_ = h.badges.Set(chatID, viewer.ID, n)
	return c.JSON(fiber.Map{"chat_id": chatID, "unread": n})
}

func (h *ChatHandler) DeleteChat(c *fiber.Ctx) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	view, err := h.rosters.Open(viewer)
	if err != nil {
		return httpx.DomainError(c, "open_roster_failed", err)
	}
	if err := view.DeleteChat(c.Context(), c.Params("id")); err != nil {
		return httpx.DomainError(c, "delete_chat_failed", err)
	}
	_ = h.badges.InvalidateChat(c.Params("id"))
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ChatHandler) UpdateGroupSettings(c *fiber.Ctx) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	chat, err := h.chats.Get(c.Context(), c.Params("id"))
	if err != nil {
		return httpx.DomainError(c, "fetch_chat_failed", err)
	}
	if !policy.CanModerate(chat, viewer.ID) {
		return httpx.Forbidden(c, "not_an_admin", "Only admins or moderators may change settings")
	}
	var settings models.GroupSettings
	if err := c.BodyParser(&settings); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}
	if err := h.chats.UpdateGroupSettings(c.Context(), chat.ID, settings); err != nil {
		return httpx.DomainError(c, "update_settings_failed", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type addMemberInput struct {
	UserID string           `json:"user_id"`
	Role   models.GroupRole `json:"role"`
}

func (h *ChatHandler) AddMember(c *fiber.Ctx) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	chat, err := h.chats.Get(c.Context(), c.Params("id"))
	if err != nil {
		return httpx.DomainError(c, "fetch_chat_failed", err)
	}
	if !policy.CanAddMembers(chat, viewer.ID) {
		return httpx.Forbidden(c, "invites_restricted", "Member invites are restricted in this group")
	}
	var input addMemberInput
	if err := c.BodyParser(&input); err != nil || input.UserID == "" {
		return httpx.BadRequest(c, "invalid_request_body", "user_id is required")
	}
	if err := h.chats.AddMember(c.Context(), chat.ID, input.UserID, input.Role); err != nil {
		return httpx.DomainError(c, "add_member_failed", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type blockUserInput struct {
	UserID string `json:"user_id"`
}

func (h *ChatHandler) BlockUser(c *fiber.Ctx) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	chat, err := h.chats.Get(c.Context(), c.Params("id"))
	if err != nil {
		return httpx.DomainError(c, "fetch_chat_failed", err)
	}
	if chat.IsGroup && !policy.CanModerate(chat, viewer.ID) {
		return httpx.Forbidden(c, "not_an_admin", "Only admins or moderators may block in a group")
	}
	if !chat.HasParticipant(viewer.ID) {
		return httpx.Forbidden(c, "not_a_participant", "Not a participant")
	}
	var input blockUserInput
	if err := c.BodyParser(&input); err != nil || input.UserID == "" {
		return httpx.BadRequest(c, "invalid_request_body", "user_id is required")
	}
	if err := h.chats.BlockUser(c.Context(), chat.ID, input.UserID); err != nil {
		return httpx.DomainError(c, "block_user_failed", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CreateInvite issues a time-bound invite token for a group chat.
func (h *ChatHandler) CreateInvite(c *fiber.Ctx) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	chat, err := h.chats.Get(c.Context(), c.Params("id"))
	if err != nil {
		return httpx.DomainError(c, "fetch_chat_failed", err)
	}
	if !chat.IsGroup {
		return httpx.BadRequest(c, "not_a_group", "Invite links are for groups")
	}
	if !policy.CanAddMembers(chat, viewer.ID) {
		return httpx.Forbidden(c, "invites_restricted", "Member invites are restricted in this group")
	}
	token, err := h.crypto.IssueToken(inviteTTL)
	if err != nil {
		return httpx.Internal(c, "issue_invite_failed")
	}
	if err := h.invites.Put(token, chat.ID, inviteTTL); err != nil {
		return httpx.Error(c, fiber.StatusServiceUnavailable, "invites_unavailable", "Invite links are unavailable")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token":      token,
		"expires_in": int(inviteTTL.Seconds()),
	})
}

// JoinInvite redeems an invite token and adds the viewer as a member.
func (h *ChatHandler) JoinInvite(c *fiber.Ctx) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	token := c.Params("token")
	if !h.crypto.VerifyToken(token) {
		return httpx.Forbidden(c, "invalid_invite", "Invite is invalid or expired")
	}
	chatID, ok, err := h.invites.Lookup(token)
	if err != nil {
		return httpx.Error(c, fiber.StatusServiceUnavailable, "invites_unavailable", "Invite links are unavailable")
	}
	if !ok {
		return httpx.Forbidden(c, "invalid_invite", "Invite is invalid or expired")
	}
	if err := h.chats.AddMember(c.Context(), chatID, viewer.ID, models.RoleMember); err != nil {
		return httpx.DomainError(c, "join_failed", err)
	}
	return c.JSON(fiber.Map{"chat_id": chatID})
}
