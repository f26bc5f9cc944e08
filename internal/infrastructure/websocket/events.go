package websocket

import (
	"encoding/json"
	"time"

	"devmarket/internal/domain/entity"
)

// Room event types delivered to subscribed clients.
const (
	EventMessage       = "message"
	EventAdminJoined   = "admin_joined"
	EventAdminRequest  = "admin_requested"
	EventRoomClosed    = "room_closed"
	EventRoomReopened  = "room_reopened"
	EventDealMarked    = "deal_marked"
	EventDealCompleted = "deal_completed"
)

// Event is the wire payload for room fan-out. Events for a single room are
// delivered to every subscriber in the order they were emitted.
type Event struct {
	Type      string      `json:"type"`
	RoomID    string      `json:"room_id"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

func NewEvent(eventType, roomID string, data interface{}) Event {
	return Event{
		Type:      eventType,
		RoomID:    roomID,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func MessageEvent(msg *entity.Message) Event {
	return NewEvent(EventMessage, msg.RoomID, msg)
}

func AdminJoinedEvent(roomID, adminID string) Event {
	return NewEvent(EventAdminJoined, roomID, map[string]string{"admin_id": adminID})
}

func (e Event) Marshal() []byte {
	payload, _ := json.Marshal(e)
	return payload
}
