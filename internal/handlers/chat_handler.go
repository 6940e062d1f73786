package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/Abhilash-226/studysphere-sub001/internal/models"
	"github.com/Abhilash-226/studysphere-sub001/internal/presence"
	"github.com/Abhilash-226/studysphere-sub001/internal/services"
	chatws "github.com/Abhilash-226/studysphere-sub001/internal/websocket"
	"github.com/Abhilash-226/studysphere-sub001/pkg/utils"
)

type chatApplicationService interface {
	ListConversations(ctx context.Context, actorID int64) ([]models.ConversationSummary, error)
	GetOrCreateConversation(ctx context.Context, actorID int64, otherID int64) (*models.Conversation, error)
	GetConversationForParticipant(ctx context.Context, actorID int64, conversationID int64) (*models.Conversation, error)
	ListMessages(ctx context.Context, actorID int64, conversationID int64, page int, limit int) ([]models.Message, int, error)
	SendMessage(ctx context.Context, actorID int64, conversationID int64, content string) (*services.ChatDelivery, error)
	MarkRead(ctx context.Context, actorID int64, conversationID int64) error
}

type classroomForSocket interface {
	Join(ctx context.Context, actorID int64, sessionID int64) (*services.ClassroomStatus, error)
}

type ChatHandler struct {
	service   chatApplicationService
	classroom classroomForSocket
	hub       *presence.Hub
	jwtSecret string
}

type createConversationRequest struct {
	UserID int64 `json:"user_id"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func NewChatHandler(
	service chatApplicationService,
	classroom classroomForSocket,
	hub *presence.Hub,
	jwtSecret string,
) *ChatHandler {
	return &ChatHandler{
		service:   service,
		classroom: classroom,
		hub:       hub,
		jwtSecret: jwtSecret,
	}
}

func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	actorID, _, err := parseActor(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid token")
	}

	conversations, err := h.service.ListConversations(c.Context(), actorID)
	if err != nil {
		return mapChatError(c, err)
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"conversations": conversations})
}

func (h *ChatHandler) CreateConversation(c *fiber.Ctx) error {
	actorID, _, err := parseActor(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid token")
	}

	var req createConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	conversation, err := h.service.GetOrCreateConversation(c.Context(), actorID, req.UserID)
	if err != nil {
		return mapChatError(c, err)
	}

	return respondData(c, fiber.StatusCreated, conversation)
}

func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	actorID, _, err := parseActor(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid token")
	}

	conversationID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || conversationID <= 0 {
		return respondError(c, fiber.StatusBadRequest, "Invalid conversation id")
	}

	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	messages, total, err := h.service.ListMessages(c.Context(), actorID, conversationID, page, limit)
	if err != nil {
		return mapChatError(c, err)
	}

	return respondData(c, fiber.StatusOK, fiber.Map{
		"messages":   messages,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	actorID, _, err := parseActor(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid token")
	}

	conversationID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || conversationID <= 0 {
		return respondError(c, fiber.StatusBadRequest, "Invalid conversation id")
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	delivery, err := h.service.SendMessage(c.Context(), actorID, conversationID, req.Content)
	if err != nil {
		return mapChatError(c, err)
	}

	room := chatws.ConversationRoom(conversationID)
	event := presence.NewEvent(
		presence.EventMessage,
		room,
		strconv.FormatInt(actorID, 10),
		delivery.Message,
	)
	h.hub.Publish(room, event.Encode(), "")

	return respondData(c, fiber.StatusCreated, delivery.Message)
}

func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	actorID, _, err := parseActor(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid token")
	}

	conversationID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || conversationID <= 0 {
		return respondError(c, fiber.StatusBadRequest, "Invalid conversation id")
	}

	if err := h.service.MarkRead(c.Context(), actorID, conversationID); err != nil {
		return mapChatError(c, err)
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"conversation_id": conversationID})
}

func (h *ChatHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return respondError(c, fiber.StatusUpgradeRequired, "WebSocket upgrade required")
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid or expired token")
	}

	c.Locals("user_id", claims.UserID)
	c.Locals("role", claims.Role)
	return c.Next()
}

func (h *ChatHandler) HandleWebSocket(conn *websocket.Conn) {
	rawID, _ := conn.Locals("user_id").(string)
	userID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || userID <= 0 {
		_ = conn.Close()
		return
	}

	client := chatws.NewClient(h.hub, conn, userID)
	go client.WritePump()
	client.ReadPump(h.service, h.classroom)
}

func (h *ChatHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		authHeader := strings.TrimSpace(c.Get("Authorization"))
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
	}

	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return utils.ValidateToken(tokenString, h.jwtSecret)
}

func mapChatError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrNotParticipant):
		return respondError(c, fiber.StatusForbidden, "You may only view conversations that belong to you")
	case errors.Is(err, services.ErrEmptyContent):
		return respondError(c, fiber.StatusBadRequest, "Message content must not be empty")
	case errors.Is(err, services.ErrValidation):
		return respondError(c, fiber.StatusBadRequest, "Invalid request")
	case errors.Is(err, services.ErrUserNotFound):
		return respondError(c, fiber.StatusNotFound, "User not found")
	case errors.Is(err, pgx.ErrNoRows):
		return respondError(c, fiber.StatusNotFound, "Conversation not found")
	default:
		return respondError(c, fiber.StatusInternalServerError, "Failed to process chat request")
	}
}
