package handler

import (
	"hvac-dispatch/internal/helper"
	"hvac-dispatch/internal/http/middleware"

	"github.com/gofiber/fiber/v2"
)

type messageLink struct {
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
	Error   string `json:"error,omitempty"`
}

func newMessageLink(phone, message string) *messageLink {
	link := &messageLink{Message: message}
	url, err := helper.MessageLink(phone, message)
	if err != nil {
		link.Error = err.Error()
		return link
	}
	link.URL = url
	return link
}

// MessageLinks builds click-to-chat links for notifying the technician and
// the customer about an order.
func (h *Handler) MessageLinks(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}

	ctx := c.UserContext()
	actor := middleware.ActorFrom(c)

	o, err := h.engine.Orders.Get(ctx, actor, id)
	if err != nil {
		return h.respondError(c, err)
	}
	customer, err := h.customers.Get(ctx, actor.TenantID, o.CustomerID)
	if err != nil {
		return h.respondError(c, err)
	}

	trackingURL := helper.TrackingURL(h.publicBaseURL, o.PublicID)
	data := fiber.Map{
		"tracking_url": trackingURL,
	}

	if o.TechnicianID != nil {
		tech, err := h.users.GetUser(ctx, *o.TechnicianID)
		if err != nil {
			return h.respondError(c, err)
		}
		data["technician"] = newMessageLink(tech.Phone.String, helper.TechnicianMessage(tech.Name, o, customer))
		data["customer"] = newMessageLink(customer.Phone, helper.CustomerMessage(customer.Name, tech.Name, o, trackingURL))
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}
