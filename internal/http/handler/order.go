package handler

import (
	"hvac-dispatch/internal/dispatch"
	"hvac-dispatch/internal/http/middleware"
	"hvac-dispatch/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ListOrders returns the tenant's orders, newest first. Technicians only
// see their own.
func (h *Handler) ListOrders(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 10)

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	filter := models.OrderFilter{
		Status: models.OrderStatus(c.Query("status")),
		Page:   page,
		Limit:  limit,
	}
	if techID := int64(c.QueryInt("technician_id", 0)); techID > 0 {
		filter.TechnicianID = &techID
	}

	orders, totalData, err := h.engine.Orders.List(c.UserContext(), middleware.ActorFrom(c), filter)
	if err != nil {
		return h.respondError(c, err)
	}

	totalPages := (totalData + limit - 1) / limit

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
		"pagination": fiber.Map{
			"page":        page,
			"limit":       limit,
			"total_data":  totalData,
			"total_pages": totalPages,
		},
	})
}

func (h *Handler) GetOrder(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}

	o, err := h.engine.Orders.Get(c.UserContext(), middleware.ActorFrom(c), id)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    o,
	})
}

func (h *Handler) CreateOrder(c *fiber.Ctx) error {
	var req models.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}

	o, err := h.engine.Orders.Create(c.UserContext(), middleware.ActorFrom(c), req)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    o,
	})
}

func (h *Handler) UpdateOrder(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}

	var req models.UpdateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}

	o, err := h.engine.Orders.Update(c.UserContext(), middleware.ActorFrom(c), id, req)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    o,
	})
}

func (h *Handler) DeleteOrder(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}

	if err := h.engine.Orders.Delete(c.UserContext(), middleware.ActorFrom(c), id); err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Order deleted",
	})
}

func (h *Handler) AssignTechnician(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}

	var req struct {
		TechnicianID int64 `json:"technician_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}
	if req.TechnicianID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "technician_id is required",
		})
	}

	o, err := h.engine.Orders.AssignTechnician(c.UserContext(), middleware.ActorFrom(c), id, req.TechnicianID)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    o,
	})
}

// AcceptOrder starts the visit. With mode "depart" the device position sent
// in the body stamps the start event.
func (h *Handler) AcceptOrder(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}

	var req struct {
		Mode dispatch.AcceptMode `json:"mode"`
		Lat  *float64            `json:"lat"`
		Lon  *float64            `json:"lon"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}
	if req.Mode == "" {
		req.Mode = dispatch.AcceptDepart
	}

	res, err := h.engine.Orders.Accept(c.UserContext(), middleware.ActorFrom(c), id, req.Mode, dispatch.FixedLocator(req.Lat, req.Lon))
	if err != nil && res == nil {
		return h.respondError(c, err)
	}

	body := fiber.Map{
		"success": true,
		"data":    res,
	}
	if err != nil {
		// accepted, but the start event could not be written
		body["warning"] = err.Error()
	}
	return c.JSON(body)
}

func (h *Handler) CancelOrder(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}

	o, err := h.engine.Orders.Cancel(c.UserContext(), middleware.ActorFrom(c), id, req.Reason)
	return h.respondWritten(c, o, err)
}

// SetStatus accepts a target status and routes it to the operation owning
// that edge. "completed" is refused; it goes through CompleteOrder.
func (h *Handler) SetStatus(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}

	var req struct {
		Status models.OrderStatus `json:"status"`
		Reason string             `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}

	o, err := h.engine.Orders.SetStatus(c.UserContext(), middleware.ActorFrom(c), id, req.Status, req.Reason)
	return h.respondWritten(c, o, err)
}

// respondWritten reports a status change that was persisted even when a
// follow-up step (the timeline entry) failed.
func (h *Handler) respondWritten(c *fiber.Ctx, o *models.ServiceOrder, err error) error {
	if err != nil && o == nil {
		return h.respondError(c, err)
	}

	body := fiber.Map{
		"success": true,
		"data":    o,
	}
	if err != nil {
		body["warning"] = err.Error()
	}
	return c.JSON(body)
}
