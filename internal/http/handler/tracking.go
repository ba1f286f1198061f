package handler

import (
	"hvac-dispatch/internal/dispatch"
	"hvac-dispatch/internal/http/middleware"
	"hvac-dispatch/internal/models"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) StartTracking(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}

	var req models.PositionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c)
		}
	}

	status, err := h.engine.Broadcast.StartTracking(c.UserContext(), middleware.ActorFrom(c), id, dispatch.FixedLocator(req.Lat, req.Lon))
	if err != nil && status == nil {
		return h.respondError(c, err)
	}

	body := fiber.Map{
		"success": true,
		"data":    status,
	}
	if err != nil {
		body["warning"] = err.Error()
	}
	return c.JSON(body)
}

func (h *Handler) StopTracking(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}

	status, err := h.engine.Broadcast.StopTracking(c.UserContext(), middleware.ActorFrom(c), id)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    status,
	})
}

// UpdatePosition overwrites the calling technician's live position.
func (h *Handler) UpdatePosition(c *fiber.Ctx) error {
	var req models.PositionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}
	if req.Lat == nil || req.Lon == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "lat and lon are required",
		})
	}

	sample, err := h.engine.Broadcast.UpdatePosition(c.UserContext(), middleware.ActorFrom(c), *req.Lat, *req.Lon)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    sample,
	})
}

func (h *Handler) ListEvents(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}

	events, err := h.engine.Timeline.List(c.UserContext(), middleware.ActorFrom(c), id)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    events,
	})
}

func (h *Handler) AppendEvent(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}

	var req models.AppendEventRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}

	ev, err := h.engine.Timeline.Append(c.UserContext(), middleware.ActorFrom(c), id, req)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    ev,
	})
}
