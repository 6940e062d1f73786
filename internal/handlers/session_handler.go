package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/Abhilash-226/studysphere-sub001/internal/models"
	"github.com/Abhilash-226/studysphere-sub001/internal/repository"
	"github.com/Abhilash-226/studysphere-sub001/internal/services"
)

type sessionApplicationService interface {
	BookSession(ctx context.Context, studentID int64, input services.BookSessionInput) (*models.SessionDetail, error)
	RequestCompletion(ctx context.Context, actorID int64, sessionID int64, notes *string) (*models.Session, error)
	ApproveCompletion(ctx context.Context, actorID int64, sessionID int64) (*models.Session, error)
	Cancel(ctx context.Context, actorID int64, sessionID int64, reason string) (*models.Session, error)
	Reschedule(ctx context.Context, actorID int64, sessionID int64, newStart, newEnd time.Time, reason *string) (*models.Session, error)
	Review(ctx context.Context, actorID int64, sessionID int64, rating int, review *string) (*models.Session, error)
	Pay(ctx context.Context, actorID int64, sessionID int64) (*models.SessionDetail, error)
	ListSessions(ctx context.Context, actorID int64, role string, filter repository.SessionListFilter) ([]models.SessionDetail, error)
	GetSession(ctx context.Context, actorID int64, sessionID int64) (*models.SessionDetail, error)
}

type SessionHandler struct {
	service sessionApplicationService
}

func NewSessionHandler(service *services.SessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

type bookSessionRequest struct {
	TutorID     int64   `json:"tutor_id"`
	Subject     string  `json:"subject"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	Mode        string  `json:"mode"`
	Location    *string `json:"location"`
}

type cancelSessionRequest struct {
	Reason string `json:"reason"`
}

type requestCompletionRequest struct {
	Notes *string `json:"notes"`
}

type rescheduleSessionRequest struct {
	StartTime string  `json:"start_time"`
	EndTime   string  `json:"end_time"`
	Reason    *string `json:"reason"`
}

type reviewSessionRequest struct {
	Rating int     `json:"rating"`
	Review *string `json:"review"`
}

func parseSessionID(c *fiber.Ctx) (int64, error) {
	sessionID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || sessionID <= 0 {
		return 0, errors.New("invalid session id")
	}
	return sessionID, nil
}

func parseRFC3339(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339, strings.TrimSpace(raw))
}

func (h *SessionHandler) BookSession(c *fiber.Ctx) error {
	actorID, role, err := parseActor(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid token")
	}
	if role != models.RoleStudent {
		return respondError(c, fiber.StatusForbidden, "Only students may book sessions")
	}

	var req bookSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	startTime, err := parseRFC3339(req.StartTime)
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "start_time must be a valid RFC3339 timestamp")
	}
	endTime, err := parseRFC3339(req.EndTime)
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "end_time must be a valid RFC3339 timestamp")
	}

	detail, err := h.service.BookSession(c.Context(), actorID, services.BookSessionInput{
		TutorID:     req.TutorID,
		Subject:     req.Subject,
		Title:       req.Title,
		Description: req.Description,
		StartTime:   startTime,
		EndTime:     endTime,
		Mode:        models.SessionMode(strings.ToLower(strings.TrimSpace(req.Mode))),
		Location:    req.Location,
	})
	if err != nil {
		return mapSessionError(c, err)
	}

	return respondData(c, fiber.StatusCreated, detail)
}

func (h *SessionHandler) ListSessions(c *fiber.Ctx) error {
	actorID, role, err := parseActor(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid token")
	}

	timeframe := strings.TrimSpace(c.Query("timeframe"))
	if timeframe != "" && timeframe != "upcoming" && timeframe != "past" {
		return respondError(c, fiber.StatusBadRequest, "timeframe must be upcoming or past")
	}

	sessions, err := h.service.ListSessions(c.Context(), actorID, role, repository.SessionListFilter{
		Status:    strings.TrimSpace(c.Query("status")),
		Timeframe: timeframe,
	})
	if err != nil {
		return mapSessionError(c, err)
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"sessions": sessions})
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	actorID, _, err := parseActor(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid token")
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid session id")
	}

	detail, err := h.service.GetSession(c.Context(), actorID, sessionID)
	if err != nil {
		return mapSessionError(c, err)
	}

	return respondData(c, fiber.StatusOK, detail)
}

func (h *SessionHandler) Cancel(c *fiber.Ctx) error {
	actorID, _, err := parseActor(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid token")
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid session id")
	}

	var req cancelSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	session, err := h.service.Cancel(c.Context(), actorID, sessionID, req.Reason)
	if err != nil {
		return mapSessionError(c, err)
	}

	return respondData(c, fiber.StatusOK, session)
}

func (h *SessionHandler) RequestCompletion(c *fiber.Ctx) error {
	actorID, _, err := parseActor(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid token")
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid session id")
	}

	var req requestCompletionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, fiber.StatusBadRequest, "Invalid request body")
		}
	}

	session, err := h.service.RequestCompletion(c.Context(), actorID, sessionID, req.Notes)
	if err != nil {
		return mapSessionError(c, err)
	}

	return respondData(c, fiber.StatusOK, session)
}

func (h *SessionHandler) ApproveCompletion(c *fiber.Ctx) error {
	actorID, _, err := parseActor(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid token")
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid session id")
	}

	session, err := h.service.ApproveCompletion(c.Context(), actorID, sessionID)
	if err != nil {
		return mapSessionError(c, err)
	}

	return respondData(c, fiber.StatusOK, session)
}

func (h *SessionHandler) Reschedule(c *fiber.Ctx) error {
	actorID, _, err := parseActor(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid token")
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid session id")
	}

	var req rescheduleSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	startTime, err := parseRFC3339(req.StartTime)
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "start_time must be a valid RFC3339 timestamp")
	}
	endTime, err := parseRFC3339(req.EndTime)
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "end_time must be a valid RFC3339 timestamp")
	}

	session, err := h.service.Reschedule(c.Context(), actorID, sessionID, startTime, endTime, req.Reason)
	if err != nil {
		return mapSessionError(c, err)
	}

	return respondData(c, fiber.StatusOK, session)
}

func (h *SessionHandler) Review(c *fiber.Ctx) error {
	actorID, _, err := parseActor(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid token")
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid session id")
	}

	var req reviewSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	session, err := h.service.Review(c.Context(), actorID, sessionID, req.Rating, req.Review)
	if err != nil {
		return mapSessionError(c, err)
	}

	return respondData(c, fiber.StatusOK, session)
}

func (h *SessionHandler) Pay(c *fiber.Ctx) error {
	actorID, role, err := parseActor(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid token")
	}
	if role != models.RoleStudent {
		return respondError(c, fiber.StatusForbidden, "Only students may pay for sessions")
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid session id")
	}

	detail, err := h.service.Pay(c.Context(), actorID, sessionID)
	if err != nil {
		return mapSessionError(c, err)
	}

	return respondData(c, fiber.StatusOK, detail)
}

func mapSessionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrValidation):
		return respondError(c, fiber.StatusBadRequest, "Invalid request")
	case errors.Is(err, services.ErrForbidden):
		return respondError(c, fiber.StatusForbidden, "You may only act on sessions that belong to you")
	case errors.Is(err, services.ErrConflict):
		return respondError(c, fiber.StatusConflict, "Requested time conflicts with another session")
	case errors.Is(err, services.ErrAlreadyReviewed):
		return respondError(c, fiber.StatusConflict, "Session has already been reviewed")
	case errors.Is(err, services.ErrInvalidTransition):
		return respondError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrPaymentFailed):
		return respondError(c, fiber.StatusPaymentRequired, "Payment failed")
	case errors.Is(err, services.ErrTutorNotFound):
		return respondError(c, fiber.StatusNotFound, "Tutor not found")
	case errors.Is(err, pgx.ErrNoRows):
		return respondError(c, fiber.StatusNotFound, "Session not found")
	default:
		return respondError(c, fiber.StatusInternalServerError, "Failed to process session request")
	}
}
