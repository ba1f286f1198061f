package handler

import (
	"database/sql"
	"strings"

	"hvac-dispatch/internal/helper"
	"hvac-dispatch/internal/http/middleware"
	"hvac-dispatch/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ListUsers returns the tenant's users with pagination.
func (h *Handler) ListUsers(c *fiber.Ctx) error {
	actor := middleware.ActorFrom(c)
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 10)

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	users, totalData, err := h.users.List(c.UserContext(), actor.TenantID, c.Query("role"), c.Query("is_banned"), c.Query("search"), page, limit)
	if err != nil {
		return h.respondError(c, err)
	}

	data := make([]models.UserResponse, 0, len(users))
	for _, u := range users {
		data = append(data, models.ToUserResponse(u))
	}

	totalPages := (totalData + limit - 1) / limit

	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
		"pagination": fiber.Map{
			"page":        page,
			"limit":       limit,
			"total_data":  totalData,
			"total_pages": totalPages,
		},
	})
}

// CreateUser adds a user to the caller's tenant.
func (h *Handler) CreateUser(c *fiber.Ctx) error {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Phone    string `json:"phone"`
		Role     string `json:"role"`
	}

	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}

	if req.Name == "" || req.Email == "" || req.Password == "" || req.Role == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Name, email, password and role are required",
		})
	}

	if !strings.Contains(req.Email, "@") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid email format",
		})
	}

	if !helper.ValidRole(req.Role) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Role must be 'admin', 'dispatcher' or 'technician'",
		})
	}

	if len(req.Password) < 6 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Password must be at least 6 characters",
		})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to hash password",
		})
	}

	user := models.User{
		TenantID: middleware.ActorFrom(c).TenantID,
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hashedPassword),
		Phone:    sql.NullString{String: req.Phone, Valid: req.Phone != ""},
		Role:     req.Role,
		IsBanned: "n",
	}
	if err := h.users.Create(c.UserContext(), &user); err != nil {
		return h.respondError(c, err)
	}

	h.logger.Info("user created", zap.Int64("user_id", user.ID), zap.String("role", user.Role))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    models.ToUserResponse(user),
	})
}

// BanUser sets or clears the ban flag of a user in the caller's tenant.
func (h *Handler) BanUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}

	var req struct {
		Banned bool `json:"banned"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}

	actor := middleware.ActorFrom(c)
	if id == actor.UserID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "You cannot ban yourself",
		})
	}

	if err := h.users.SetBanned(c.UserContext(), actor.TenantID, id, req.Banned); err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"id": id, "banned": req.Banned},
	})
}

// TechnicianCertifications lists a technician's certifications, expired
// and revoked ones included.
func (h *Handler) TechnicianCertifications(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}

	certs, err := h.certs.ListForTechnician(c.UserContext(), middleware.ActorFrom(c).TenantID, id)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    certs,
	})
}

func (h *Handler) ValidateCertification(c *fiber.Ctx) error {
	var req struct {
		TechnicianID     int64  `json:"technician_id"`
		HazardCategoryID *int64 `json:"hazard_category_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}
	if req.TechnicianID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "technician_id is required",
		})
	}

	v, err := h.engine.Gate.Validate(c.UserContext(), middleware.ActorFrom(c).TenantID, req.TechnicianID, req.HazardCategoryID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(v)
}
