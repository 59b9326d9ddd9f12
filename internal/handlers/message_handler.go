package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/CryptoCapi/Mexora-sub001/internal/cache"
	"github.com/CryptoCapi/Mexora-sub001/internal/chatsync"
	"github.com/CryptoCapi/Mexora-sub001/internal/httpx"
	"github.com/CryptoCapi/Mexora-sub001/internal/models"
	"github.com/CryptoCapi/Mexora-sub001/internal/presence"
	"github.com/CryptoCapi/Mexora-sub001/internal/validation"
)

type MessageHandler struct {
	views  *chatsync.Manager
	typing *presence.Tracker
	badges *cache.BadgeCache
}

func NewMessageHandler(views *chatsync.Manager, typing *presence.Tracker, badges *cache.BadgeCache) *MessageHandler {
	return &MessageHandler{
		views:  views,
		typing: typing,
		badges: badges,
	}
}

type sendMessageInput struct {
	Body       string `json:"body"`
	ReplyToID  string `json:"reply_to_id"`
	Encrypted  bool   `json:"encrypted"`
	TTLSeconds int    `json:"ttl_seconds"`

	Attachments []attachmentInput `json:"attachments"`
}

type attachmentInput struct {
	Ref  string `json:"ref"`
	Kind string `json:"kind"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

func attachmentFrom(a attachmentInput) models.Attachment {
	kind := models.AttachmentType(a.Kind)
	switch kind {
	case models.ImageAttachment, models.FileAttachment, models.AudioAttachment:
	default:
		kind = models.FileAttachment
	}
	return models.Attachment{Type: kind, Ref: a.Ref, Name: a.Name, Size: a.Size}
}

func (h *MessageHandler) Send(c *fiber.Ctx) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	var input sendMessageInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}
	if len(input.Attachments) > validation.MaxAttachments() {
		return httpx.BadRequest(c, "too_many_attachments", "Too many attachments")
	}

	draft := chatsync.Draft{
		Body:      validation.TrimAndLimit(input.Body, validation.MaxMessageLength()),
		ReplyToID: input.ReplyToID,
		Encrypted: input.Encrypted,
	}
	if input.TTLSeconds > 0 {
		draft.TTL = time.Duration(input.TTLSeconds) * time.Second
	}
	for _, a := range input.Attachments {
		draft.Attachments = append(draft.Attachments, attachmentFrom(a))
	}

	view, err := h.views.Open(viewer, c.Params("id"))
	if err != nil {
		return httpx.DomainError(c, "open_chat_failed", err)
	}
	msg, err := view.Send(c.Context(), draft)
	if err != nil {
		return httpx.DomainError(c, "send_message_failed", err)
	}

	// A committed message changes every other participant's badge.
	_ = h.badges.InvalidateChat(c.Params("id"))
	h.typing.Stop(c.Params("id"), viewer.ID)
	return c.Status(fiber.StatusCreated).JSON(msg)
}

type editMessageInput struct {
	Body string `json:"body"`
}

func (h *MessageHandler) Edit(c *fiber.Ctx) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	var input editMessageInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}
	view, err := h.views.Open(viewer, c.Params("id"))
	if err != nil {
		return httpx.DomainError(c, "open_chat_failed", err)
	}
	body := validation.TrimAndLimit(input.Body, validation.MaxMessageLength())
	if err := view.Edit(c.Context(), c.Params("message_id"), body); err != nil {
		return httpx.DomainError(c, "edit_message_failed", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *MessageHandler) Delete(c *fiber.Ctx) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	view, err := h.views.Open(viewer, c.Params("id"))
	if err != nil {
		return httpx.DomainError(c, "open_chat_failed", err)
	}
	if err := view.Delete(c.Context(), c.Params("message_id")); err != nil {
		return httpx.DomainError(c, "delete_message_failed", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type reactInput struct {
	Emoji string `json:"emoji"`
}

func (h *MessageHandler) React(c *fiber.Ctx) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	var input reactInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}
	if !validation.ValidateEmoji(input.Emoji) {
		return httpx.BadRequest(c, "invalid_emoji", "Invalid reaction")
	}
	view, err := h.views.Open(viewer, c.Params("id"))
	if err != nil {
		return httpx.DomainError(c, "open_chat_failed", err)
	}
	if err := view.ToggleReaction(c.Context(), c.Params("message_id"), input.Emoji); err != nil {
		return httpx.DomainError(c, "react_failed", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *MessageHandler) MarkRead(c *fiber.Ctx) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	view, err := h.views.Open(viewer, c.Params("id"))
	if err != nil {
		return httpx.DomainError(c, "open_chat_failed", err)
	}
	if err := view.MarkRead(c.Context()); err != nil {
		return httpx.DomainError(c, "mark_read_failed", err)
	}
	_ = h.badges.Set(c.Params("id"), viewer.ID, 0)
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *MessageHandler) Report(c *fiber.Ctx) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	view, err := h.views.Open(viewer, c.Params("id"))
	if err != nil {
		return httpx.DomainError(c, "open_chat_failed", err)
	}
	if err := view.Report(c.Context(), c.Params("message_id")); err != nil {
		return httpx.DomainError(c, "report_failed", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetLog serves the viewer's merged, decrypted log grouped by date.
func (h *MessageHandler) GetLog(c *fiber.Ctx) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	view, err := h.views.Open(viewer, c.Params("id"))
	if err != nil {
		return httpx.DomainError(c, "open_chat_failed", err)
	}
	snap, err := view.Snapshot(c.Context())
	if err != nil {
		return httpx.DomainError(c, "fetch_log_failed", err)
	}

	loc := time.UTC
	if tz := c.Query("tz"); tz != "" {
		if parsed, err := time.LoadLocation(tz); err == nil {
			loc = parsed
		}
	}
	return c.JSON(fiber.Map{
		"chat_id": snap.ChatID,
		"groups":  chatsync.GroupByDate(snap.Messages, loc),
		"count":   len(snap.Messages),
	})
}

// Typing records a keystroke; StopTyping ends the indicator early.
func (h *MessageHandler) Typing(c *fiber.Ctx) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	h.typing.Touch(c.Params("id"), viewer.ID)
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *MessageHandler) StopTyping(c *fiber.Ctx) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	h.typing.Stop(c.Params("id"), viewer.ID)
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *MessageHandler) GetTyping(c *fiber.Ctx) error {
	if _, err := viewerFrom(c); err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	states := h.typing.Typing(c.Params("id"))
	return c.JSON(fiber.Map{"typing": states})
}
