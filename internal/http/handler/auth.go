package handler

import (
	"errors"

	"hvac-dispatch/internal/config"
	"hvac-dispatch/internal/dispatch"
	"hvac-dispatch/internal/helper"
	"hvac-dispatch/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func (h *Handler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}

	if req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email and password are required",
		})
	}

	user, err := h.users.GetByEmail(c.UserContext(), req.Email)
	if errors.Is(err, dispatch.ErrNotFound) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid email or password",
		})
	}
	if err != nil {
		return h.respondError(c, err)
	}

	if err := helper.CheckUserRole(user); err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Your account has been blocked",
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid email or password",
		})
	}

	token, err := config.GenerateToken(user.ID, user.TenantID, user.Name, user.Email, user.Role)
	if err != nil {
		h.logger.Error("generate token failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate token",
		})
	}

	h.logger.Info("user logged in", zap.Int64("user_id", user.ID), zap.String("role", user.Role))
	return c.JSON(models.LoginResponse{
		Token: token,
		User:  models.ToUserResponse(*user),
	})
}

// Logout is stateless; the client drops its token.
func (h *Handler) Logout(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Logged out",
	})
}
