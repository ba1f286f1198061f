package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hvac-dispatch/internal/models"

	"go.uber.org/zap"
)

func requireDispatcher(actor models.Actor) error {
	if !actor.IsDispatcher() {
		return fmt.Errorf("%w: role %q cannot perform dispatcher operations", ErrForbidden, actor.Role)
	}
	return nil
}

// canActOn allows dispatchers of the tenant and the technician assigned to o.
func canActOn(actor models.Actor, o *models.ServiceOrder) error {
	if actor.IsDispatcher() {
		return nil
	}
	if actor.IsTechnician() && o.TechnicianID != nil && *o.TechnicianID == actor.UserID {
		return nil
	}
	return fmt.Errorf("%w: order %d is not assigned to user %d", ErrForbidden, o.ID, actor.UserID)
}

// loadOrder reads an order within the actor's tenant and checks the actor
// may act on it.
func loadOrder(ctx context.Context, store OrderStore, actor models.Actor, id int64) (*models.ServiceOrder, error) {
	o, err := store.Get(ctx, actor.TenantID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("load order %d: %w", id, err)
	}
	if err := canActOn(actor, o); err != nil {
		return nil, err
	}
	return o, nil
}

// lifecycle feeds order state changes to external subsystems. Delivery is
// best effort: a broker outage never fails the dispatch operation.
type lifecycle struct {
	pub     LifecyclePublisher
	logger  *zap.Logger
	now     func() time.Time
	timeout time.Duration
}

func (l lifecycle) emit(ctx context.Context, typ string, o *models.ServiceOrder, parts []models.ConsumedPart) {
	if l.pub == nil {
		return
	}
	ev := models.OrderLifecycleEvent{
		Type:         typ,
		OrderID:      o.ID,
		PublicID:     o.PublicID,
		TenantID:     o.TenantID,
		TechnicianID: o.TechnicianID,
		CustomerID:   o.CustomerID,
		Status:       o.Status,
		ValueCents:   o.ValueCents,
		Parts:        parts,
		OccurredAt:   l.now().UTC(),
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()
	if err := l.pub.PublishLifecycle(pctx, ev); err != nil {
		l.logger.Warn("lifecycle publish failed",
			zap.String("type", typ),
			zap.Int64("order_id", o.ID),
			zap.Error(err),
		)
	}
}
