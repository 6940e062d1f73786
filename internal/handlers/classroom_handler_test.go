package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/Abhilash-226/studysphere-sub001/internal/models"
	"github.com/Abhilash-226/studysphere-sub001/internal/services"
)

type stubClassroomService struct {
	status *services.ClassroomStatus
	err    error

	lastActorID   int64
	lastSessionID int64
	lastCalled    string
}

func (s *stubClassroomService) Status(_ context.Context, actorID int64, sessionID int64) (*services.ClassroomStatus, error) {
	s.lastActorID, s.lastSessionID, s.lastCalled = actorID, sessionID, "status"
	return s.status, s.err
}

func (s *stubClassroomService) Start(_ context.Context, actorID int64, sessionID int64) (*services.ClassroomStatus, error) {
	s.lastActorID, s.lastSessionID, s.lastCalled = actorID, sessionID, "start"
	return s.status, s.err
}

func (s *stubClassroomService) Join(_ context.Context, actorID int64, sessionID int64) (*services.ClassroomStatus, error) {
	s.lastActorID, s.lastSessionID, s.lastCalled = actorID, sessionID, "join"
	return s.status, s.err
}

func (s *stubClassroomService) End(_ context.Context, actorID int64, sessionID int64) (*services.ClassroomStatus, error) {
	s.lastActorID, s.lastSessionID, s.lastCalled = actorID, sessionID, "end"
	return s.status, s.err
}

func classroomTestApp(service *stubClassroomService, userID, role string) *fiber.App {
	handler := &ClassroomHandler{service: service}
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		c.Locals("role", role)
		return c.Next()
	})
	app.Get("/api/v1/classroom/:id", handler.Status)
	app.Post("/api/v1/classroom/:id/start", handler.Start)
	app.Post("/api/v1/classroom/:id/join", handler.Join)
	app.Post("/api/v1/classroom/:id/end", handler.End)
	return app
}

func TestClassroomStatusReturnsState(t *testing.T) {
	service := &stubClassroomService{
		status: &services.ClassroomStatus{
			SessionID: 11,
			Status:    models.StatusScheduled,
			Started:   true,
			CanJoin:   true,
		},
	}
	app := classroomTestApp(service, "42", "student")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/classroom/11", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastCalled != "status" || service.lastSessionID != 11 {
		t.Fatalf("unexpected call: %s %d", service.lastCalled, service.lastSessionID)
	}

	var body struct {
		Data services.ClassroomStatus `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !body.Data.Started || !body.Data.CanJoin {
		t.Fatalf("unexpected status: %+v", body.Data)
	}
}

func TestClassroomStartForbidden(t *testing.T) {
	service := &stubClassroomService{err: services.ErrForbidden}
	app := classroomTestApp(service, "42", "student")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/classroom/11/start", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestClassroomEndReturnsUnprocessableWhenNotStarted(t *testing.T) {
	service := &stubClassroomService{err: services.ErrClassroomNotStarted}
	app := classroomTestApp(service, "7", "tutor")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/classroom/11/end", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if service.lastCalled != "end" {
		t.Fatalf("expected end called, got %q", service.lastCalled)
	}
}

func TestClassroomJoinReturnsNotFoundForMissingSession(t *testing.T) {
	service := &stubClassroomService{err: pgx.ErrNoRows}
	app := classroomTestApp(service, "42", "student")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/classroom/999/join", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestClassroomRejectsInvalidSessionID(t *testing.T) {
	service := &stubClassroomService{}
	app := classroomTestApp(service, "42", "student")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/classroom/abc", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
