package handler

import (
	"errors"

	"hvac-dispatch/internal/dispatch"
	"hvac-dispatch/internal/repository"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// respondError maps engine errors onto HTTP statuses. Anything it does not
// recognise is logged and reported as a 500 without details.
func (h *Handler) respondError(c *fiber.Ctx, err error) error {
	var (
		certErr       *dispatch.CertificationError
		validationErr *dispatch.ValidationError
		transitionErr *dispatch.TransitionError
	)

	switch {
	case errors.As(err, &certErr):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":   err.Error(),
			"missing": certErr.Missing,
		})
	case errors.As(err, &validationErr):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": validationErr.Error(),
			"field": validationErr.Field,
		})
	case errors.As(err, &transitionErr):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": transitionErr.Error(),
			"from":  transitionErr.From,
			"to":    transitionErr.To,
		})
	case errors.Is(err, dispatch.ErrPrecondition), errors.Is(err, dispatch.ErrConcurrentUpdate):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, repository.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, dispatch.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You do not have access to this resource",
		})
	case errors.Is(err, dispatch.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, dispatch.ErrPositionUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	h.logger.Error("request failed",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
	})
}
