package ws

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/CryptoCapi/Mexora-sub001/internal/models"
)

const writeTimeout = 10 * time.Second

// Frame is the envelope of every server-to-client message.
type Frame struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// clientCommand is what the client sends: chat view control and typing
// signals.
type clientCommand struct {
	Type   string `json:"type"`
	ChatID string `json:"chat_id,omitempty"`
}

// Client is one viewer's connection. Writes are serialized through mu;
// the read loop runs on the caller's goroutine.
type Client struct {
	conn   *websocket.Conn
	viewer models.User

	mu       sync.Mutex
	lastPong time.Time

	// openChat is the chat this connection is currently viewing, empty when
	// none. Guarded by mu.
	openChat string

	closeOnce sync.Once
	closed    chan struct{}
}

func newClient(conn *websocket.Conn, viewer models.User) *Client {
	return &Client{
		conn:     conn,
		viewer:   viewer,
		lastPong: time.Now(),
		closed:   make(chan struct{}),
	}
}

// send writes one frame. Write errors close the connection; the read loop
// notices and tears the client down.
func (c *Client) send(f Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
		return
	default:
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(f); err != nil {
		c.conn.Close()
	}
}

func (c *Client) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

func (c *Client) setOpenChat(chatID string) {
	c.mu.Lock()
	c.openChat = chatID
	c.mu.Unlock()
}

func (c *Client) viewing(chatID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openChat == chatID
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
}
