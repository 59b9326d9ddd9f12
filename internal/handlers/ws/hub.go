// Package ws pushes live state to connected viewers: roster snapshots, the
// merged log of the chat they have open, and typing transitions.
package ws

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/CryptoCapi/Mexora-sub001/internal/chatsync"
	"github.com/CryptoCapi/Mexora-sub001/internal/models"
	"github.com/CryptoCapi/Mexora-sub001/internal/presence"
	"github.com/CryptoCapi/Mexora-sub001/internal/roster"
)

// Hub manages all active WebSocket connections, one per viewer. A second
// connection from the same viewer replaces the first.
type Hub struct {
	views   *chatsync.Manager
	rosters *roster.Manager
	typing  *presence.Tracker

	mu      sync.RWMutex
	clients map[string]*Client

	pingInterval time.Duration
	pongTimeout  time.Duration
}

func NewHub(views *chatsync.Manager, rosters *roster.Manager, typing *presence.Tracker) *Hub {
	h := &Hub{
		views:        views,
		rosters:      rosters,
		typing:       typing,
		clients:      make(map[string]*Client),
		pingInterval: 30 * time.Second,
		pongTimeout:  90 * time.Second,
	}
	go h.typingFanout()
	return h
}

// Serve runs one connection until it drops. It must be called from the
// websocket handler goroutine; the read loop lives here.
func (h *Hub) Serve(conn *websocket.Conn, viewer models.User) {
	client := newClient(conn, viewer)
	h.register(client)
	defer h.unregister(client)

	conn.SetPongHandler(func(string) error {
		client.mu.Lock()
		client.lastPong = time.Now()
		client.mu.Unlock()
		conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
		return nil
	})
	conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
	go h.pingRoutine(client)
	go h.rosterStream(client)

	// logCancel stops the forwarder of the previously opened chat.
	var logCancel context.CancelFunc
	defer func() {
		if logCancel != nil {
			logCancel()
		}
	}()

	for {
		var cmd clientCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		switch cmd.Type {
		case "open_chat":
			if cmd.ChatID == "" {
				continue
			}
			if logCancel != nil {
				logCancel()
			}
			view, err := h.views.Open(viewer, cmd.ChatID)
			if err != nil {
				client.send(Frame{Type: "error", Payload: err.Error()})
				continue
			}
			client.setOpenChat(cmd.ChatID)
			ctx, cancel := context.WithCancel(context.Background())
			logCancel = cancel
			go h.logStream(ctx, client, view)
		case "close_chat":
			if logCancel != nil {
				logCancel()
				logCancel = nil
			}
			client.setOpenChat("")
		case "typing":
			if cmd.ChatID != "" {
				h.typing.Touch(cmd.ChatID, viewer.ID)
			}
		case "stop_typing":
			if cmd.ChatID != "" {
				h.typing.Stop(cmd.ChatID, viewer.ID)
			}
		}
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	if old, ok := h.clients[client.viewer.ID]; ok {
		old.close()
	}
	h.clients[client.viewer.ID] = client
	count := len(h.clients)
	h.mu.Unlock()
	log.Printf("ws: %s connected (total: %d)", client.viewer.ID, count)
}

func (h *Hub) unregister(client *Client) {
	client.close()
	h.mu.Lock()
	if current, ok := h.clients[client.viewer.ID]; ok && current == client {
		delete(h.clients, client.viewer.ID)
	}
	count := len(h.clients)
	h.mu.Unlock()
	log.Printf("ws: %s disconnected (total: %d)", client.viewer.ID, count)
}

// IsOnline checks if a viewer has a live connection.
func (h *Hub) IsOnline(viewerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[viewerID]
	return ok
}

func (h *Hub) pingRoutine(client *Client) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-client.closed:
			return
		case <-ticker.C:
			if err := client.ping(); err != nil {
				client.close()
				return
			}
		}
	}
}

// rosterStream forwards roster snapshots for the connection's lifetime.
func (h *Hub) rosterStream(client *Client) {
	view, err := h.rosters.Open(client.viewer)
	if err != nil {
		client.send(Frame{Type: "error", Payload: err.Error()})
		return
	}
	for {
		select {
		case <-client.closed:
			return
		case <-view.Done():
			return
		case snap := <-view.Snapshots():
			client.send(Frame{Type: "roster", Payload: snap})
		}
	}
}

// logStream forwards log snapshots of the opened chat until ctx is
// cancelled or the view dies.
func (h *Hub) logStream(ctx context.Context, client *Client, view *chatsync.Synchronizer) {
	if snap, err := view.Snapshot(ctx); err == nil {
		client.send(Frame{Type: "log", Payload: snap})
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.closed:
			return
		case <-view.Done():
			client.send(Frame{Type: "chat_closed", Payload: view.ChatID()})
			return
		case snap := <-view.Snapshots():
			client.send(Frame{Type: "log", Payload: snap})
		}
	}
}

// typingFanout is the sole consumer of the tracker's event stream; it
// broadcasts each transition to clients viewing that chat.
func (h *Hub) typingFanout() {
	for ev := range h.typing.Events() {
		h.mu.RLock()
		targets := make([]*Client, 0, 4)
		for _, client := range h.clients {
			if client.viewer.ID != ev.UserID && client.viewing(ev.ChatID) {
				targets = append(targets, client)
			}
		}
		h.mu.RUnlock()
		for _, client := range targets {
			client.send(Frame{Type: "typing", Payload: ev})
		}
	}
}
