package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"devmarket/pkg/logger"
)

// Client control frames. Room events flow one way (server to client); the
// only inbound traffic is subscription management and keepalive.
const (
	ControlSubscribe   = "subscribe"
	ControlUnsubscribe = "unsubscribe"
	ControlPing        = "ping"
	ControlPong        = "pong"
)

type controlFrame struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id,omitempty"`
}

// RoomAuthorizer gates subscriptions: only room participants may listen.
type RoomAuthorizer interface {
	CanSubscribe(userID, roomID string) bool
}

// ReadPump reads control frames from the connection until it drops, then
// unregisters the session (which also clears its room subscriptions).
func (c *Client) ReadPump(m *Manager, auth RoomAuthorizer) {
	defer func() {
		m.Unregister(c)
		c.Conn.Close()
	}()

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket: read error on session %s: %v", c.SessionID, err)
			}
			break
		}

		var frame controlFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			logger.Warn("WebSocket: malformed frame from session %s", c.SessionID)
			continue
		}

		switch frame.Type {
		case ControlSubscribe:
			if frame.RoomID == "" {
				continue
			}
			if auth != nil && !auth.CanSubscribe(c.UserID, frame.RoomID) {
				logger.Warn("WebSocket: user %s denied subscription to room %s", c.UserID, frame.RoomID)
				continue
			}
			m.Subscribe(frame.RoomID, c)

		case ControlUnsubscribe:
			if frame.RoomID != "" {
				m.Unsubscribe(frame.RoomID, c)
			}

		case ControlPing:
			pong, _ := json.Marshal(map[string]string{
				"type":      ControlPong,
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			c.trySend(pong)

		default:
			logger.Debug("WebSocket: unknown frame type %q from session %s", frame.Type, c.SessionID)
		}
	}
}

// WritePump drains the session's send buffer onto the connection, preserving
// enqueue order.
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		payload, ok := <-c.Send
		if !ok {
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			logger.Warn("WebSocket: write error on session %s: %v", c.SessionID, err)
			return
		}
	}
}
