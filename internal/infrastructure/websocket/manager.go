package websocket

import (
	"sync"

	"github.com/gorilla/websocket"

	"devmarket/pkg/logger"
)

// Client is one WebSocket session. A user may hold several clients (tabs,
// devices); room subscriptions are tracked per client, not per user, so
// sessions can be torn down independently.
type Client struct {
	SessionID string
	UserID    string
	Conn      *websocket.Conn
	Send      chan []byte

	mu     sync.Mutex
	closed bool
}

// trySend enqueues a payload unless the session has shut down or its buffer
// is full. Enqueue and shutdown serialize on the client's mutex, so a send
// can never land on a closed channel.
func (c *Client) trySend(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.Send <- payload:
		return true
	default:
		return false
	}
}

// shutdown closes the send channel exactly once, terminating the write pump.
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// Manager tracks active sessions and their room subscriptions and fans room
// events out to them. Delivery is best effort: a client whose send buffer is
// full is dropped and must re-fetch room state on reconnect.
type Manager struct {
	mu      sync.RWMutex
	clients map[string]*Client            // by session id
	byUser  map[string]map[string]*Client // user id -> session id -> client
	rooms   map[string]map[string]*Client // room id -> session id -> client
}

func NewManager() *Manager {
	return &Manager{
		clients: make(map[string]*Client),
		byUser:  make(map[string]map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
}

// Register adds a session. The caller owns the client's pumps.
func (m *Manager) Register(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clients[client.SessionID] = client
	if m.byUser[client.UserID] == nil {
		m.byUser[client.UserID] = make(map[string]*Client)
	}
	m.byUser[client.UserID][client.SessionID] = client

	logger.Info("WebSocket: session %s registered for user %s", client.SessionID, client.UserID)
}

// Unregister removes a session and every room subscription it holds.
// Mandatory on disconnect so listeners do not leak.
func (m *Manager) Unregister(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[client.SessionID]; !ok {
		return
	}
	delete(m.clients, client.SessionID)

	if sessions := m.byUser[client.UserID]; sessions != nil {
		delete(sessions, client.SessionID)
		if len(sessions) == 0 {
			delete(m.byUser, client.UserID)
		}
	}

	for roomID, subs := range m.rooms {
		if _, ok := subs[client.SessionID]; ok {
			delete(subs, client.SessionID)
			if len(subs) == 0 {
				delete(m.rooms, roomID)
			}
		}
	}

	client.shutdown()
	logger.Info("WebSocket: session %s unregistered", client.SessionID)
}

// Subscribe registers a session as a listener for a room's events.
func (m *Manager) Subscribe(roomID string, client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[client.SessionID]; !ok {
		return
	}
	if m.rooms[roomID] == nil {
		m.rooms[roomID] = make(map[string]*Client)
	}
	m.rooms[roomID][client.SessionID] = client
}

// Unsubscribe removes a session's subscription to a room.
func (m *Manager) Unsubscribe(roomID string, client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if subs := m.rooms[roomID]; subs != nil {
		delete(subs, client.SessionID)
		if len(subs) == 0 {
			delete(m.rooms, roomID)
		}
	}
}

// EmitToRoom delivers an event to every session subscribed to the room.
// Callers serialize emission per room, and each client's Send channel is
// drained in order by its write pump, so subscribers observe a single
// room's events in emission order. A session that cannot keep up is
// detached rather than blocking the emitter.
func (m *Manager) EmitToRoom(roomID string, event Event) {
	payload := event.Marshal()

	m.mu.RLock()
	subs := make([]*Client, 0, len(m.rooms[roomID]))
	for _, client := range m.rooms[roomID] {
		subs = append(subs, client)
	}
	m.mu.RUnlock()

	for _, client := range subs {
		if !client.trySend(payload) {
			logger.Warn("WebSocket: dropping slow session %s from room %s", client.SessionID, roomID)
			m.Unregister(client)
		}
	}
}

// SendToUser delivers a payload to every active session of one user.
func (m *Manager) SendToUser(userID string, event Event) {
	payload := event.Marshal()

	m.mu.RLock()
	sessions := make([]*Client, 0, len(m.byUser[userID]))
	for _, client := range m.byUser[userID] {
		sessions = append(sessions, client)
	}
	m.mu.RUnlock()

	for _, client := range sessions {
		if !client.trySend(payload) {
			m.Unregister(client)
		}
	}
}

// SubscriberCount reports how many sessions listen to a room.
func (m *Manager) SubscriberCount(roomID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[roomID])
}
