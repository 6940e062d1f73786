package presence

import (
	"sync"

	"github.com/google/uuid"
)

const sendBuffer = 32

// Subscriber is one live socket connection. Its send channel is drained by
// the connection's write pump; the hub never writes to the network itself.
type Subscriber struct {
	ID     string
	UserID string
	send   chan []byte
}

// Send exposes the delivery channel. It is closed when the subscriber is
// disconnected or falls too far behind.
func (s *Subscriber) Send() <-chan []byte {
	return s.send
}

// Bridge mirrors published room events to other instances. The hub works
// without one; a bridge only widens fan-out.
type Bridge interface {
	Broadcast(room string, payload []byte)
}

// Hub is the in-memory presence registry: which connections are subscribed
// to which rooms. All methods are safe for concurrent use and none of them
// blocks on a slow subscriber.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	rooms       map[string]map[string]*Subscriber
	memberships map[string]map[string]struct{}

	origin string
	bridge Bridge
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]*Subscriber),
		rooms:       make(map[string]map[string]*Subscriber),
		memberships: make(map[string]map[string]struct{}),
		origin:      uuid.NewString(),
	}
}

// Origin identifies this hub instance to the bridge so it can ignore its own
// mirrored events.
func (h *Hub) Origin() string {
	return h.origin
}

func (h *Hub) SetBridge(bridge Bridge) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bridge = bridge
}

// Connect registers a new connection and returns its subscriber handle.
func (h *Hub) Connect(userID string) *Subscriber {
	sub := &Subscriber{
		ID:     uuid.NewString(),
		UserID: userID,
		send:   make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	h.subscribers[sub.ID] = sub
	h.memberships[sub.ID] = make(map[string]struct{})
	h.mu.Unlock()

	return sub
}

// Disconnect drops the connection and every room subscription it holds.
// Session and message state are untouched.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(connID)
}

func (h *Hub) dropLocked(connID string) {
	sub, ok := h.subscribers[connID]
	if !ok {
		return
	}
	for room := range h.memberships[connID] {
		h.removeFromRoomLocked(room, connID)
	}
	delete(h.memberships, connID)
	delete(h.subscribers, connID)
	close(sub.send)
}

func (h *Hub) removeFromRoomLocked(room, connID string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) Subscribe(connID, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subscribers[connID]
	if !ok {
		return false
	}

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Subscriber)
		h.rooms[room] = members
	}
	members[connID] = sub
	h.memberships[connID][room] = struct{}{}
	return true
}

func (h *Hub) Unsubscribe(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[connID]; !ok {
		return
	}
	h.removeFromRoomLocked(room, connID)
	delete(h.memberships[connID], room)
}

// Publish fans payload out to every subscriber of the room, skipping
// exceptConnID (pass "" to skip none), and mirrors it over the bridge.
// Sends to lagging subscribers are dropped along with the subscriber rather
// than blocking the rest of the room.
func (h *Hub) Publish(room string, payload []byte, exceptConnID string) {
	h.deliverLocal(room, payload, exceptConnID)

	h.mu.RLock()
	bridge := h.bridge
	h.mu.RUnlock()
	if bridge != nil {
		bridge.Broadcast(room, payload)
	}
}

func (h *Hub) deliverLocal(room string, payload []byte, exceptConnID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for connID, sub := range h.rooms[room] {
		if connID == exceptConnID {
			continue
		}
		select {
		case sub.send <- payload:
		default:
			h.dropLocked(connID)
		}
	}
}

// SendTo delivers a payload to one connection, bypassing rooms. Used for
// request-scoped errors and acknowledgements.
func (h *Hub) SendTo(connID string, payload []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subscribers[connID]
	if !ok {
		return false
	}
	select {
	case sub.send <- payload:
		return true
	default:
		h.dropLocked(connID)
		return false
	}
}

// RoomUserIDs lists the distinct users currently subscribed to a room.
func (h *Hub) RoomUserIDs(room string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]struct{})
	users := make([]string, 0, len(h.rooms[room]))
	for _, sub := range h.rooms[room] {
		if _, ok := seen[sub.UserID]; ok {
			continue
		}
		seen[sub.UserID] = struct{}{}
		users = append(users, sub.UserID)
	}
	return users
}

// InRoom reports whether any of the user's connections is subscribed.
func (h *Hub) InRoom(room, userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.rooms[room] {
		if sub.UserID == userID {
			return true
		}
	}
	return false
}
