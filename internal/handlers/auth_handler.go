package handlers

import (
	"errors"
	"net/mail"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Abhilash-226/studysphere-sub001/internal/models"
	"github.com/Abhilash-226/studysphere-sub001/internal/repository"
	"github.com/Abhilash-226/studysphere-sub001/pkg/utils"
)

// AuthHandler is the thin identity boundary: it mints and resolves bearer
// credentials. Everything past the middleware trusts {user_id, role} as
// resolved here.
type AuthHandler struct {
	userRepo  *repository.UserRepository
	jwtSecret string
}

func NewAuthHandler(userRepo *repository.UserRepository, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
	}
}

type registerRequest struct {
	Email      string   `json:"email"`
	Password   string   `json:"password"`
	Name       string   `json:"name"`
	Role       string   `json:"role"`
	HourlyRate *float64 `json:"hourly_rate"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	parsedEmail, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid email format")
	}
	req.Email = strings.ToLower(parsedEmail.Address)
	if len(req.Password) < 8 {
		return respondError(c, fiber.StatusBadRequest, "Password must be at least 8 characters")
	}
	if req.Role != models.RoleStudent && req.Role != models.RoleTutor {
		return respondError(c, fiber.StatusBadRequest, "Invalid role")
	}
	if req.Role == models.RoleTutor && (req.HourlyRate == nil || *req.HourlyRate <= 0) {
		return respondError(c, fiber.StatusBadRequest, "Tutors must set a positive hourly rate")
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: hashed,
		Name:         strings.TrimSpace(req.Name),
		Role:         req.Role,
		HourlyRate:   req.HourlyRate,
	}
	if err := h.userRepo.CreateUser(c.Context(), user); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return respondError(c, fiber.StatusConflict, "Email already exists")
		}
		return respondError(c, fiber.StatusInternalServerError, "Failed to create user")
	}

	token, err := utils.GenerateToken(strconv.FormatInt(user.ID, 10), user.Role, h.jwtSecret)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Failed to generate token")
	}

	return respondData(c, fiber.StatusCreated, fiber.Map{"token": token, "user": user})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	user, err := h.userRepo.GetByEmail(c.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return respondError(c, fiber.StatusUnauthorized, "Invalid credentials")
		}
		return respondError(c, fiber.StatusInternalServerError, "Failed to look up user")
	}

	if !utils.CheckPassword(req.Password, user.PasswordHash) {
		return respondError(c, fiber.StatusUnauthorized, "Invalid credentials")
	}

	token, err := utils.GenerateToken(strconv.FormatInt(user.ID, 10), user.Role, h.jwtSecret)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Failed to generate token")
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"token": token, "user": user})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	actorID, _, err := parseActor(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid token")
	}

	user, err := h.userRepo.GetByID(c.Context(), actorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return respondError(c, fiber.StatusNotFound, "User not found")
		}
		return respondError(c, fiber.StatusInternalServerError, "Failed to look up user")
	}

	return respondData(c, fiber.StatusOK, user)
}
