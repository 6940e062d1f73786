package presence

import (
	"encoding/json"
	"log"
	"time"
)

// Event types pushed over the socket channel.
const (
	EventMessage      = "message"
	EventUserJoined   = "user-joined"
	EventUserLeft     = "user-left"
	EventClassStarted = "class-started"
	EventClassEnded   = "class-ended"
	EventError        = "error"
)

// Event is the wire envelope for everything the hub delivers.
type Event struct {
	Type      string          `json:"type"`
	Room      string          `json:"room,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func NewEvent(eventType, room, userID string, data any) Event {
	event := Event{
		Type:      eventType,
		Room:      room,
		UserID:    userID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			log.Printf("presence event encode data: %v", err)
		} else {
			event.Data = encoded
		}
	}
	return event
}

func (e Event) Encode() []byte {
	encoded, err := json.Marshal(e)
	if err != nil {
		log.Printf("presence event encode: %v", err)
		return nil
	}
	return encoded
}
