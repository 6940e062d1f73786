package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/Abhilash-226/studysphere-sub001/internal/models"
	"github.com/Abhilash-226/studysphere-sub001/internal/presence"
	"github.com/Abhilash-226/studysphere-sub001/internal/services"
	chatws "github.com/Abhilash-226/studysphere-sub001/internal/websocket"
)

type stubChatService struct {
	conversations []models.ConversationSummary
	conversation  *models.Conversation
	messages      []models.Message
	total         int
	delivery      *services.ChatDelivery
	err           error

	lastActorID        int64
	lastOtherID        int64
	lastConversationID int64
	lastPage           int
	lastLimit          int
	lastContent        string
	markedRead         bool
}

func (s *stubChatService) ListConversations(_ context.Context, actorID int64) ([]models.ConversationSummary, error) {
	s.lastActorID = actorID
	return s.conversations, s.err
}

func (s *stubChatService) GetOrCreateConversation(_ context.Context, actorID int64, otherID int64) (*models.Conversation, error) {
	s.lastActorID = actorID
	s.lastOtherID = otherID
	return s.conversation, s.err
}

func (s *stubChatService) GetConversationForParticipant(_ context.Context, actorID int64, conversationID int64) (*models.Conversation, error) {
	s.lastActorID = actorID
	s.lastConversationID = conversationID
	return s.conversation, s.err
}

func (s *stubChatService) ListMessages(_ context.Context, actorID int64, conversationID int64, page int, limit int) ([]models.Message, int, error) {
	s.lastActorID = actorID
	s.lastConversationID = conversationID
	s.lastPage = page
	s.lastLimit = limit
	return s.messages, s.total, s.err
}

func (s *stubChatService) SendMessage(_ context.Context, actorID int64, conversationID int64, content string) (*services.ChatDelivery, error) {
	s.lastActorID = actorID
	s.lastConversationID = conversationID
	s.lastContent = content
	return s.delivery, s.err
}

func (s *stubChatService) MarkRead(_ context.Context, actorID int64, conversationID int64) error {
	s.lastActorID = actorID
	s.lastConversationID = conversationID
	s.markedRead = true
	return s.err
}

type stubClassroomJoiner struct{}

func (s *stubClassroomJoiner) Join(_ context.Context, actorID int64, sessionID int64) (*services.ClassroomStatus, error) {
	return &services.ClassroomStatus{SessionID: sessionID}, nil
}

func chatTestApp(service *stubChatService, hub *presence.Hub, userID string) (*fiber.App, *ChatHandler) {
	handler := NewChatHandler(service, &stubClassroomJoiner{}, hub, "test-secret")
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		c.Locals("role", "student")
		return c.Next()
	})
	return app, handler
}

func TestListConversationsReturnsSummaries(t *testing.T) {
	service := &stubChatService{
		conversations: []models.ConversationSummary{
			{Conversation: models.Conversation{ID: 3, UserAID: 1, UserBID: 42}, UnreadCount: 2},
		},
	}
	app, handler := chatTestApp(service, presence.NewHub(), "42")
	app.Get("/api/v1/conversations", handler.ListConversations)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastActorID != 42 {
		t.Fatalf("expected actor id 42, got %d", service.lastActorID)
	}
}

func TestCreateConversationReturnsCreated(t *testing.T) {
	service := &stubChatService{
		conversation: &models.Conversation{ID: 3, UserAID: 7, UserBID: 42},
	}
	app, handler := chatTestApp(service, presence.NewHub(), "42")
	app.Post("/api/v1/conversations", handler.CreateConversation)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations", strings.NewReader(`{"user_id": 7}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastOtherID != 7 {
		t.Fatalf("expected other id 7, got %d", service.lastOtherID)
	}
}

func TestCreateConversationReturnsNotFoundForUnknownUser(t *testing.T) {
	service := &stubChatService{err: services.ErrUserNotFound}
	app, handler := chatTestApp(service, presence.NewHub(), "42")
	app.Post("/api/v1/conversations", handler.CreateConversation)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations", strings.NewReader(`{"user_id": 9999}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGetMessagesClampsLimitAndReturnsPagination(t *testing.T) {
	service := &stubChatService{
		messages: []models.Message{{ID: 5, ConversationID: 3, SenderID: 7, Content: "hi"}},
		total:    120,
	}
	app, handler := chatTestApp(service, presence.NewHub(), "42")
	app.Get("/api/v1/conversations/:id/messages", handler.GetMessages)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/3/messages?page=2&limit=500", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastPage != 2 || service.lastLimit != maxPageLimit {
		t.Fatalf("expected page 2 limit %d, got page %d limit %d", maxPageLimit, service.lastPage, service.lastLimit)
	}

	var body struct {
		Data struct {
			Pagination models.PaginationMeta `json:"pagination"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Data.Pagination.Total != 120 || body.Data.Pagination.TotalPages != 3 {
		t.Fatalf("unexpected pagination: %+v", body.Data.Pagination)
	}
}

func TestGetMessagesForbiddenForNonParticipant(t *testing.T) {
	service := &stubChatService{err: services.ErrNotParticipant}
	app, handler := chatTestApp(service, presence.NewHub(), "42")
	app.Get("/api/v1/conversations/:id/messages", handler.GetMessages)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/3/messages", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestSendMessagePublishesToConversationRoom(t *testing.T) {
	sent := time.Date(2026, 5, 1, 13, 0, 0, 0, time.UTC)
	service := &stubChatService{
		delivery: &services.ChatDelivery{
			Conversation: &models.Conversation{ID: 3, UserAID: 7, UserBID: 42},
			Message:      &models.Message{ID: 9, ConversationID: 3, SenderID: 42, Content: "hello", CreatedAt: sent},
			RecipientID:  7,
		},
	}
	hub := presence.NewHub()
	listener := hub.Connect("7")
	hub.Subscribe(listener.ID, chatws.ConversationRoom(3))

	app, handler := chatTestApp(service, hub, "42")
	app.Post("/api/v1/conversations/:id/messages", handler.SendMessage)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/3/messages", strings.NewReader(`{"content":"hello"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastContent != "hello" {
		t.Fatalf("expected forwarded content, got %q", service.lastContent)
	}

	select {
	case payload := <-listener.Send():
		var event presence.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			t.Fatalf("decoding event: %v", err)
		}
		if event.Type != presence.EventMessage || event.Room != chatws.ConversationRoom(3) {
			t.Fatalf("unexpected event: %+v", event)
		}
	default:
		t.Fatal("expected a message event on the conversation room")
	}
}

func TestSendMessageRejectsEmptyContent(t *testing.T) {
	service := &stubChatService{err: services.ErrEmptyContent}
	app, handler := chatTestApp(service, presence.NewHub(), "42")
	app.Post("/api/v1/conversations/:id/messages", handler.SendMessage)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/3/messages", strings.NewReader(`{"content":"   "}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestMarkReadReturnsConversationID(t *testing.T) {
	service := &stubChatService{}
	app, handler := chatTestApp(service, presence.NewHub(), "42")
	app.Post("/api/v1/conversations/:id/read", handler.MarkRead)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/3/read", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !service.markedRead || service.lastConversationID != 3 {
		t.Fatalf("expected mark read on conversation 3, got %+v", service)
	}
}

func TestMapChatErrorReturnsNotFoundForMissingConversation(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return mapChatError(c, pgx.ErrNoRows)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
