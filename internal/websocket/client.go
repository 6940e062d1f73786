package chatws

import (
	"context"
	"encoding/json"
	"strconv"

	websocket "github.com/gofiber/contrib/websocket"

	"github.com/Abhilash-226/studysphere-sub001/internal/models"
	"github.com/Abhilash-226/studysphere-sub001/internal/presence"
	"github.com/Abhilash-226/studysphere-sub001/internal/services"
)

// Inbound frame types.
const (
	frameJoinConversation  = "join-conversation"
	frameLeaveConversation = "leave-conversation"
	frameMessage           = "message"
	frameJoinClassroom     = "join-classroom"
	frameLeaveClassroom    = "leave-classroom"
)

type chatSender interface {
	SendMessage(ctx context.Context, actorID int64, conversationID int64, content string) (*services.ChatDelivery, error)
	GetConversationForParticipant(ctx context.Context, actorID int64, conversationID int64) (*models.Conversation, error)
}

type classroomJoiner interface {
	Join(ctx context.Context, actorID int64, sessionID int64) (*services.ClassroomStatus, error)
}

// ConversationRoom names the presence room for a conversation thread.
func ConversationRoom(conversationID int64) string {
	return "conversation:" + strconv.FormatInt(conversationID, 10)
}

// Client couples one websocket connection to its presence subscription.
type Client struct {
	hub    *presence.Hub
	sub    *presence.Subscriber
	conn   *websocket.Conn
	userID int64
}

func NewClient(hub *presence.Hub, conn *websocket.Conn, userID int64) *Client {
	return &Client{
		hub:    hub,
		sub:    hub.Connect(strconv.FormatInt(userID, 10)),
		conn:   conn,
		userID: userID,
	}
}

type inboundFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
	Content        string `json:"content,omitempty"`
}

// ReadPump consumes frames until the connection drops. Dropping removes the
// connection's subscriptions and nothing else.
func (c *Client) ReadPump(chat chatSender, classroom classroomJoiner) {
	joined := make(map[string]struct{})

	defer func() {
		userID := strconv.FormatInt(c.userID, 10)
		for room := range joined {
			event := presence.NewEvent(presence.EventUserLeft, room, userID, nil)
			c.hub.Publish(room, event.Encode(), c.sub.ID)
		}
		c.hub.Disconnect(c.sub.ID)
		_ = c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			c.writeError("invalid frame payload")
			continue
		}

		switch frame.Type {
		case frameJoinConversation:
			c.joinConversation(chat, frame, joined)
		case frameLeaveConversation:
			c.leaveRoom(parseRoomID(frame.ConversationID, ConversationRoom), joined)
		case frameMessage:
			c.sendMessage(chat, frame)
		case frameJoinClassroom:
			c.joinClassroom(classroom, frame, joined)
		case frameLeaveClassroom:
			c.leaveRoom(parseRoomID(frame.SessionID, services.SessionRoom), joined)
		default:
			c.writeError("unsupported frame type")
		}
	}
}

func parseRoomID(raw string, roomName func(int64) string) string {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return ""
	}
	return roomName(id)
}

func (c *Client) joinConversation(chat chatSender, frame inboundFrame, joined map[string]struct{}) {
	conversationID, err := strconv.ParseInt(frame.ConversationID, 10, 64)
	if err != nil || conversationID <= 0 {
		c.writeError("invalid conversation id")
		return
	}

	if _, err := chat.GetConversationForParticipant(context.Background(), c.userID, conversationID); err != nil {
		c.writeError("conversation not available")
		return
	}

	c.joinRoom(ConversationRoom(conversationID), joined)
}

func (c *Client) joinClassroom(classroom classroomJoiner, frame inboundFrame, joined map[string]struct{}) {
	sessionID, err := strconv.ParseInt(frame.SessionID, 10, 64)
	if err != nil || sessionID <= 0 {
		c.writeError("invalid session id")
		return
	}

	if _, err := classroom.Join(context.Background(), c.userID, sessionID); err != nil {
		c.writeError("classroom not available")
		return
	}

	c.joinRoom(services.SessionRoom(sessionID), joined)
}

// joinRoom subscribes and tells the others. The join notification skips the
// joiner's own connection.
func (c *Client) joinRoom(room string, joined map[string]struct{}) {
	if !c.hub.Subscribe(c.sub.ID, room) {
		return
	}
	joined[room] = struct{}{}

	event := presence.NewEvent(presence.EventUserJoined, room, strconv.FormatInt(c.userID, 10), nil)
	c.hub.Publish(room, event.Encode(), c.sub.ID)
}

func (c *Client) leaveRoom(room string, joined map[string]struct{}) {
	if room == "" {
		c.writeError("invalid room id")
		return
	}
	if _, ok := joined[room]; !ok {
		return
	}
	delete(joined, room)
	c.hub.Unsubscribe(c.sub.ID, room)

	event := presence.NewEvent(presence.EventUserLeft, room, strconv.FormatInt(c.userID, 10), nil)
	c.hub.Publish(room, event.Encode(), c.sub.ID)
}

func (c *Client) sendMessage(chat chatSender, frame inboundFrame) {
	conversationID, err := strconv.ParseInt(frame.ConversationID, 10, 64)
	if err != nil || conversationID <= 0 {
		c.writeError("invalid conversation id")
		return
	}

	delivery, err := chat.SendMessage(context.Background(), c.userID, conversationID, frame.Content)
	if err != nil {
		c.writeError("failed to send message")
		return
	}

	room := ConversationRoom(conversationID)
	event := presence.NewEvent(
		presence.EventMessage,
		room,
		strconv.FormatInt(c.userID, 10),
		delivery.Message,
	)
	// Message pushes go to the whole room; only join/leave notifications
	// skip their originating connection.
	c.hub.Publish(room, event.Encode(), "")
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.sub.Send() {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func (c *Client) writeError(message string) {
	event := presence.NewEvent(presence.EventError, "", "", map[string]string{"message": message})
	c.hub.SendTo(c.sub.ID, event.Encode())
}
