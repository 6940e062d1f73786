package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/Abhilash-226/studysphere-sub001/internal/services"
)

type classroomApplicationService interface {
	Status(ctx context.Context, actorID int64, sessionID int64) (*services.ClassroomStatus, error)
	Start(ctx context.Context, actorID int64, sessionID int64) (*services.ClassroomStatus, error)
	Join(ctx context.Context, actorID int64, sessionID int64) (*services.ClassroomStatus, error)
	End(ctx context.Context, actorID int64, sessionID int64) (*services.ClassroomStatus, error)
}

type ClassroomHandler struct {
	service classroomApplicationService
}

func NewClassroomHandler(service *services.ClassroomService) *ClassroomHandler {
	return &ClassroomHandler{service: service}
}

func (h *ClassroomHandler) Status(c *fiber.Ctx) error {
	return h.call(c, h.service.Status)
}

func (h *ClassroomHandler) Start(c *fiber.Ctx) error {
	return h.call(c, h.service.Start)
}

func (h *ClassroomHandler) Join(c *fiber.Ctx) error {
	return h.call(c, h.service.Join)
}

func (h *ClassroomHandler) End(c *fiber.Ctx) error {
	return h.call(c, h.service.End)
}

func (h *ClassroomHandler) call(
	c *fiber.Ctx,
	op func(ctx context.Context, actorID int64, sessionID int64) (*services.ClassroomStatus, error),
) error {
	actorID, _, err := parseActor(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid token")
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid session id")
	}

	status, err := op(c.Context(), actorID, sessionID)
	if err != nil {
		return mapClassroomError(c, err)
	}

	return respondData(c, fiber.StatusOK, status)
}

func mapClassroomError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return respondError(c, fiber.StatusForbidden, "Classroom is not available to you right now")
	case errors.Is(err, services.ErrClassroomNotStarted):
		return respondError(c, fiber.StatusUnprocessableEntity, "Classroom has not been started")
	case errors.Is(err, pgx.ErrNoRows):
		return respondError(c, fiber.StatusNotFound, "Session not found")
	default:
		return respondError(c, fiber.StatusInternalServerError, "Failed to process classroom request")
	}
}
