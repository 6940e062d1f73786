package models

import "time"

// Conversation is the persistent thread between exactly two users. The pair
// is stored normalized (UserAID < UserBID) so that one unique row exists per
// unordered pair.
type Conversation struct {
	ID            int64      `json:"id"`
	UserAID       int64      `json:"user_a_id"`
	UserBID       int64      `json:"user_b_id"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (c *Conversation) HasParticipant(userID int64) bool {
	return userID == c.UserAID || userID == c.UserBID
}

func (c *Conversation) OtherParticipant(userID int64) int64 {
	if userID == c.UserAID {
		return c.UserBID
	}
	return c.UserAID
}

type Message struct {
	ID             int64      `json:"id"`
	ConversationID int64      `json:"conversation_id"`
	SenderID       int64      `json:"sender_id"`
	Content        string     `json:"content"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type ConversationSummary struct {
	Conversation
	LastMessage *Message `json:"last_message,omitempty"`
	UnreadCount int      `json:"unread_count"`
}
