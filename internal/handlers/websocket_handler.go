package handlers

import (
	"github.com/gofiber/websocket/v2"

	"github.com/CryptoCapi/Mexora-sub001/internal/chatsync"
	"github.com/CryptoCapi/Mexora-sub001/internal/handlers/ws"
	"github.com/CryptoCapi/Mexora-sub001/internal/models"
	"github.com/CryptoCapi/Mexora-sub001/internal/presence"
	"github.com/CryptoCapi/Mexora-sub001/internal/roster"
)

type WebSocketHandler struct {
	hub *ws.Hub
}

func NewWebSocketHandler(views *chatsync.Manager, rosters *roster.Manager, typing *presence.Tracker) *WebSocketHandler {
	return &WebSocketHandler{
		hub: ws.NewHub(views, rosters, typing),
	}
}

// GetHub returns the hub instance.
func (h *WebSocketHandler) GetHub() *ws.Hub {
	return h.hub
}

func (h *WebSocketHandler) HandleWebSocket(c *websocket.Conn) {
	userID, _ := c.Locals("userID").(string)
	if userID == "" {
		c.Close()
		return
	}
	displayName, _ := c.Locals("displayName").(string)
	avatarRef, _ := c.Locals("avatarRef").(string)

	viewer := models.User{ID: userID, DisplayName: displayName, AvatarRef: avatarRef}
	h.hub.Serve(c, viewer)
}
