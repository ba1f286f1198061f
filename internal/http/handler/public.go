package handler

import (
	"context"
	"errors"

	"hvac-dispatch/internal/dispatch"
	"hvac-dispatch/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// Track renders the anonymous tracking page data. Unknown ids get a
// neutral body so the endpoint does not confirm which ids exist.
func (h *Handler) Track(c *fiber.Ctx) error {
	view, err := h.engine.Public.Render(c.UserContext(), c.Params("publicId"))
	if errors.Is(err, dispatch.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status": "not_found",
		})
	}
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(view)
}

// TrackWS sends the current view, then the technician's positions while the
// order is live and tracking. A fresh view is pushed whenever the order's
// state changes; the socket closes once it is completed or cancelled.
func (h *Handler) TrackWS(conn *websocket.Conn) {
	publicID := conn.Params("publicId")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &wsClient{conn: conn, logger: h.logger.With(zap.String("public_id", publicID))}
	defer client.close()

	feed, err := h.engine.Public.Watch(ctx, publicID)
	if err != nil {
		status := "error"
		if errors.Is(err, dispatch.ErrNotFound) {
			status = "not_found"
		} else {
			client.logger.Error("public view failed", zap.Error(err))
		}
		_ = client.send(wsMessage{Type: "status", Data: fiber.Map{"status": status}})
		return
	}

	if err := client.send(wsMessage{Type: "view", Data: feed.View}); err != nil {
		_ = feed.Close()
		return
	}

	stream(client, feed.Updates(), feed.Close, func(u dispatch.FeedUpdate) wsMessage {
		if u.View != nil {
			return wsMessage{Type: "view", Data: u.View}
		}
		return wsMessage{Type: "position", Data: u.Position}
	})
}

// TechnicianWS streams one technician's positions to a dispatcher dashboard.
func (h *Handler) TechnicianWS(conn *websocket.Conn) {
	actor := actorFromConn(conn)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &wsClient{conn: conn, logger: h.logger.With(zap.String("technician_id", conn.Params("id")), zap.Int64("actor_id", actor.UserID))}
	defer client.close()

	techID, err := wsParamID(conn, "id")
	if err != nil {
		_ = client.send(wsMessage{Type: "status", Data: fiber.Map{"status": "not_found"}})
		return
	}

	current, sub, err := h.engine.Broadcast.SubscribeForDispatcher(ctx, actor, techID)
	if err != nil {
		status := "error"
		switch {
		case errors.Is(err, dispatch.ErrNotFound):
			status = "not_found"
		case errors.Is(err, dispatch.ErrForbidden):
			status = "forbidden"
		default:
			client.logger.Error("dispatcher subscribe failed", zap.Error(err))
		}
		_ = client.send(wsMessage{Type: "status", Data: fiber.Map{"status": status}})
		return
	}

	if current != nil {
		if err := client.send(wsMessage{Type: "position", Data: current}); err != nil {
			_ = sub.Close()
			return
		}
	}

	stream(client, sub.Updates(), sub.Close, func(s models.PositionSample) wsMessage {
		return wsMessage{Type: "position", Data: s}
	})
}
