package dispatch

import (
	"context"
	"fmt"
	"strings"

	"hvac-dispatch/internal/models"

	"go.uber.org/zap"
)

// Timeline is the append-only log of dispatch milestones.
type Timeline struct {
	orders OrderStore
	events EventStore
	logger *zap.Logger
}

// Append records a milestone on behalf of the actor. Completion entries are
// written only by the completion workflow, and once an order is terminal
// only custom notes (corrections) are accepted.
func (t *Timeline) Append(ctx context.Context, actor models.Actor, orderID int64, req models.AppendEventRequest) (*models.TrackingEvent, error) {
	if !req.Kind.Valid() {
		return nil, &ValidationError{Field: "kind", Message: fmt.Sprintf("unknown event kind %q", req.Kind)}
	}
	if req.Kind == models.EventCompletion {
		return nil, ErrCompletionWorkflow
	}
	if err := validateOptionalCoordinate(req.Lat, req.Lon); err != nil {
		return nil, err
	}
	if req.Note != nil {
		n := strings.TrimSpace(*req.Note)
		if n == "" {
			req.Note = nil
		} else {
			req.Note = &n
		}
	}
	if req.Kind == models.EventCustom && req.Note == nil {
		return nil, &ValidationError{Field: "note", Message: "custom events need a note"}
	}

	o, err := loadOrder(ctx, t.orders, actor, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status.Terminal() && req.Kind != models.EventCustom {
		return nil, &PreconditionError{Rule: fmt.Sprintf("order %d is %s, only custom notes can be added", o.ID, o.Status)}
	}

	ev := &models.TrackingEvent{
		OrderID:  o.ID,
		TenantID: o.TenantID,
		Kind:     req.Kind,
		Note:     req.Note,
		Lat:      req.Lat,
		Lon:      req.Lon,
	}
	if err := t.append(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// List returns every event of the order, oldest first. The slice is a fresh
// read on each call.
func (t *Timeline) List(ctx context.Context, actor models.Actor, orderID int64) ([]models.TrackingEvent, error) {
	o, err := loadOrder(ctx, t.orders, actor, orderID)
	if err != nil {
		return nil, err
	}
	return t.list(ctx, o.TenantID, o.ID)
}

func (t *Timeline) append(ctx context.Context, ev *models.TrackingEvent) error {
	if err := t.events.Append(ctx, ev); err != nil {
		return fmt.Errorf("append %s event to order %d: %w", ev.Kind, ev.OrderID, err)
	}
	t.logger.Debug("tracking event appended",
		zap.Int64("order_id", ev.OrderID),
		zap.String("kind", string(ev.Kind)),
		zap.Int64("event_id", ev.ID),
	)
	return nil
}

func (t *Timeline) list(ctx context.Context, tenantID, orderID int64) ([]models.TrackingEvent, error) {
	events, err := t.events.List(ctx, tenantID, orderID)
	if err != nil {
		return nil, fmt.Errorf("list events of order %d: %w", orderID, err)
	}
	if events == nil {
		events = []models.TrackingEvent{}
	}
	return events, nil
}
