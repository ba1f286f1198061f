package dispatch

import (
	"context"
	"fmt"
	"time"

	"hvac-dispatch/internal/models"

	"go.uber.org/zap"
)

type PartFailure struct {
	ItemID   int64  `json:"item_id"`
	Quantity int    `json:"quantity"`
	Error    string `json:"error"`
}

// CompletionResult reports what happened after the order was closed.
// Failures and EventError never mean the order is still open.
type CompletionResult struct {
	Order      *models.ServiceOrder                `json:"order"`
	Signature  *models.ServicePhoto                `json:"signature,omitempty"`
	Consumed   []models.InventoryConsumptionRecord `json:"consumed"`
	Failures   []PartFailure                       `json:"inventory_failures"`
	Event      *models.TrackingEvent               `json:"event,omitempty"`
	EventError string                              `json:"event_error,omitempty"`
}

// completionFixMaxAge is how old a position cell may be to geostamp the
// completion of an order that was not tracking.
const completionFixMaxAge = 15 * time.Minute

// Completion closes out a visit. The signature is persisted before the
// status changes; stock consumption happens after and is never a reason to
// reopen the order.
type Completion struct {
	orders    OrderStore
	photos    *Photos
	inventory Inventory
	timeline  *Timeline
	positions PositionStore
	life      lifecycle
	logger    *zap.Logger
	now       func() time.Time
}

// Complete finalizes the order. signature may be nil only on a retry: a
// previous Complete that stored the signature and then lost the status
// update leaves it on the order. Regular photo uploads never carry one.
func (c *Completion) Complete(ctx context.Context, actor models.Actor, orderID int64, signature *models.Upload, parts []models.ConsumedPart) (*CompletionResult, error) {
	o, err := loadOrder(ctx, c.orders, actor, orderID)
	if err != nil {
		return nil, err
	}
	if err := CheckTransition(o.Status, models.StatusCompleted); err != nil {
		return nil, err
	}
	if o.TechnicianID == nil {
		return nil, ErrTechnicianRequired
	}
	for i, p := range parts {
		if p.ItemID <= 0 || p.Quantity <= 0 {
			return nil, &ValidationError{
				Field:   fmt.Sprintf("parts[%d]", i),
				Message: "item_id and quantity must be positive",
			}
		}
	}

	res := &CompletionResult{
		Consumed: []models.InventoryConsumptionRecord{},
		Failures: []PartFailure{},
	}

	if signature != nil {
		ph, err := c.photos.store(ctx, o, models.PhotoSignature, nil, *signature)
		if err != nil {
			return nil, err
		}
		res.Signature = ph
	}
	signed, err := c.photos.photos.HasCategory(ctx, o.TenantID, o.ID, models.PhotoSignature)
	if err != nil {
		return nil, fmt.Errorf("check signature of order %d: %w", o.ID, err)
	}
	if !signed {
		return nil, ErrSignatureRequired
	}

	now := c.now().UTC()
	next := *o
	next.Status = models.StatusCompleted
	next.CompletedAt = &now
	next.TrackingActive = false
	if err := c.orders.Update(ctx, &next, o.Status, o.Version); err != nil {
		return nil, err
	}
	res.Order = &next

	c.logger.Info("order completed",
		zap.Int64("order_id", next.ID),
		zap.Int64("technician_id", *next.TechnicianID),
		zap.Int("parts", len(parts)),
	)

	reason := fmt.Sprintf("Service order #%d", next.ID)
	for _, p := range parts {
		rec, err := c.inventory.RecordConsumption(ctx, next.TenantID, p.ItemID, next.ID, p.Quantity, reason)
		if err != nil {
			c.logger.Warn("inventory consumption failed",
				zap.Int64("order_id", next.ID),
				zap.Int64("item_id", p.ItemID),
				zap.Int("quantity", p.Quantity),
				zap.Error(err),
			)
			res.Failures = append(res.Failures, PartFailure{ItemID: p.ItemID, Quantity: p.Quantity, Error: err.Error()})
			continue
		}
		res.Consumed = append(res.Consumed, *rec)
	}

	ev := &models.TrackingEvent{OrderID: next.ID, TenantID: next.TenantID, Kind: models.EventCompletion}
	if last, err := c.positions.Get(ctx, *next.TechnicianID); err == nil && last != nil {
		// the cell may belong to an earlier visit
		if o.TrackingActive || now.Sub(last.CapturedAt) <= completionFixMaxAge {
			ev.Lat, ev.Lon = &last.Lat, &last.Lon
		}
	}
	if err := c.timeline.append(ctx, ev); err != nil {
		c.logger.Error("completion event not recorded", zap.Int64("order_id", next.ID), zap.Error(err))
		res.EventError = err.Error()
	} else {
		res.Event = ev
	}

	c.life.emit(ctx, "order.completed", &next, parts)
	return res, nil
}
