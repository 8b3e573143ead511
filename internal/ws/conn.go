package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout   = 5 * time.Second
	maxMessageSize = 4096
)

// socketConn adapts a gorilla websocket to the registry's Conn interface.
// Writes are serialized and bounded by a deadline so a dead peer surfaces as
// a failed send instead of a stuck goroutine.
type socketConn struct {
	sock *websocket.Conn
	mu   sync.Mutex
}

func newSocketConn(sock *websocket.Conn) *socketConn {
	return &socketConn{sock: sock}
}

func (c *socketConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.sock.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.sock.WriteMessage(websocket.TextMessage, payload)
}

func (c *socketConn) Close() error {
	return c.sock.Close()
}

// controlMessage is the inbound protocol: keepalive pings and dynamic
// subscribe/unsubscribe requests.
type controlMessage struct {
	Type      string `json:"type"`
	DeviceID  string `json:"device_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Serve owns the lifetime of one subscriber connection: it registers the
// initial subscriptions, processes control messages until the peer goes away,
// and always unregisters from every key on the way out.
func Serve(registry *Registry, sock *websocket.Conn, deviceID, userID string) {
	conn := newSocketConn(sock)
	sock.SetReadLimit(maxMessageSize)

	registry.Subscribe(conn, DeviceKey, deviceID)
	registry.Subscribe(conn, UserKey, userID)

	defer func() {
		registry.Drop(conn)
		_ = conn.Close()
		slog.Info("WebSocket disconnected", "device_id", deviceID, "user_id", userID)
	}()

	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket read error", "error", err)
			}
			return
		}

		var msg controlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("Invalid JSON received on WebSocket")
			continue
		}

		switch msg.Type {
		case "ping":
			pong, _ := json.Marshal(controlMessage{Type: "pong", Timestamp: msg.Timestamp})
			if err := conn.Send(pong); err != nil {
				return
			}
		case "subscribe":
			registry.Subscribe(conn, DeviceKey, msg.DeviceID)
			registry.Subscribe(conn, UserKey, msg.UserID)
		case "unsubscribe":
			registry.Unsubscribe(conn, DeviceKey, msg.DeviceID)
			registry.Unsubscribe(conn, UserKey, msg.UserID)
		default:
			slog.Debug("Ignoring unknown WebSocket message type", "type", msg.Type)
		}
	}
}
