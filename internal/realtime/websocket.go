// internal/realtime/websocket.go
package realtime

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
)

const writeWait = 10 * time.Second

// WebSocketConn serializes writes to a websocket.Conn so hub.go does not need
// to import websocket.
type WebSocketConn struct {
	Conn *websocket.Conn
	mu   sync.Mutex
}

func NewWebSocketConn(c *websocket.Conn) *WebSocketConn {
	return &WebSocketConn{Conn: c}
}

func (w *WebSocketConn) WriteText(payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.Conn.WriteMessage(websocket.TextMessage, payload)
}

func (w *WebSocketConn) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Conn.Close()
}

// Pump writes everything queued on c.Send until the hub closes it, then closes
// the socket so the connection's read loop ends too.
func (c *Client) Pump() error {
	defer c.Conn.Close()
	for msg := range c.Send {
		if err := c.Conn.WriteText(msg); err != nil {
			return err
		}
	}
	return nil
}
