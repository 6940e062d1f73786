package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/Abhilash-226/studysphere-sub001/internal/models"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 50
)

var errInvalidActor = errors.New("invalid actor locals")

// Every endpoint answers in the same envelope: {"success": bool,
// "data" | "error": ...}.
func respondData(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(fiber.Map{"success": true, "data": data})
}

func respondError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "error": message})
}

// parseActor reads the identity the auth middleware resolved.
func parseActor(c *fiber.Ctx) (int64, string, error) {
	rawID, ok := c.Locals("user_id").(string)
	if !ok {
		return 0, "", errInvalidActor
	}
	actorID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || actorID <= 0 {
		return 0, "", errInvalidActor
	}
	role, ok := c.Locals("role").(string)
	if !ok || (role != models.RoleStudent && role != models.RoleTutor) {
		return 0, "", errInvalidActor
	}
	return actorID, role, nil
}

func parsePositiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func buildPaginationMeta(page, limit, total int) models.PaginationMeta {
	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}

	return models.PaginationMeta{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}
}
