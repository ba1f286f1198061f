package dispatch

import (
	"context"
	"fmt"
	"time"

	"hvac-dispatch/internal/models"

	"go.uber.org/zap"
)

type TrackingStatus struct {
	OrderID        int64                  `json:"order_id"`
	TrackingActive bool                   `json:"tracking_active"`
	Position       *models.PositionSample `json:"position"`
	Event          *models.TrackingEvent  `json:"event,omitempty"`
}

// Broadcaster publishes technicians' live positions while tracking is
// active. The position cell is presence, not history: last write wins.
type Broadcaster struct {
	orders        OrderStore
	timeline      *Timeline
	positions     PositionStore
	channel       PositionChannel
	users         UserDirectory
	logger        *zap.Logger
	now           func() time.Time
	locateTimeout time.Duration
}

// StartTracking sets the order's tracking flag and records a start event
// with the technician's position. Calling it again on an order that is
// already tracking keeps the flag set and writes nothing.
func (b *Broadcaster) StartTracking(ctx context.Context, actor models.Actor, orderID int64, loc Locator) (*TrackingStatus, error) {
	o, err := loadOrder(ctx, b.orders, actor, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != models.StatusInProgress {
		return nil, ErrTrackingInactive
	}
	if o.TechnicianID == nil {
		return nil, ErrTechnicianRequired
	}

	if o.TrackingActive {
		current, err := b.positions.Get(ctx, *o.TechnicianID)
		if err != nil {
			b.logger.Warn("read position cell failed", zap.Int64("technician_id", *o.TechnicianID), zap.Error(err))
		}
		return &TrackingStatus{OrderID: o.ID, TrackingActive: true, Position: current}, nil
	}

	next := *o
	next.TrackingActive = true
	if err := b.orders.Update(ctx, &next, o.Status, o.Version); err != nil {
		return nil, err
	}

	return b.announceStart(ctx, &next, loc)
}

// announceStart acquires a position within locateTimeout and appends the
// start event. A failed acquisition leaves the flag set and writes no cell.
func (b *Broadcaster) announceStart(ctx context.Context, o *models.ServiceOrder, loc Locator) (*TrackingStatus, error) {
	status := &TrackingStatus{OrderID: o.ID, TrackingActive: true}
	ev := &models.TrackingEvent{OrderID: o.ID, TenantID: o.TenantID, Kind: models.EventStart}

	lat, lon, err := b.locate(ctx, loc)
	if err != nil {
		b.logger.Warn("position unavailable at tracking start",
			zap.Int64("order_id", o.ID),
			zap.Int64("technician_id", *o.TechnicianID),
			zap.Error(err),
		)
	} else {
		sample, err := b.publish(ctx, *o.TechnicianID, lat, lon)
		if err != nil {
			b.logger.Warn("position cell write failed", zap.Int64("technician_id", *o.TechnicianID), zap.Error(err))
		} else {
			status.Position = sample
		}
		ev.Lat, ev.Lon = &lat, &lon
	}

	if err := b.timeline.append(ctx, ev); err != nil {
		return status, fmt.Errorf("tracking started on order %d but the start event was not recorded: %w", o.ID, err)
	}
	status.Event = ev
	return status, nil
}

func (b *Broadcaster) locate(ctx context.Context, loc Locator) (float64, float64, error) {
	if loc == nil {
		return 0, 0, ErrPositionUnavailable
	}
	lctx, cancel := context.WithTimeout(ctx, b.locateTimeout)
	defer cancel()

	type fix struct {
		lat, lon float64
		err      error
	}
	done := make(chan fix, 1)
	go func() {
		lat, lon, err := loc.Locate(lctx)
		done <- fix{lat, lon, err}
	}()

	select {
	case f := <-done:
		if f.err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrPositionUnavailable, f.err)
		}
		if err := validateCoordinate(f.lat, f.lon); err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrPositionUnavailable, err)
		}
		return f.lat, f.lon, nil
	case <-lctx.Done():
		return 0, 0, fmt.Errorf("%w: %v", ErrPositionUnavailable, lctx.Err())
	}
}

// UpdatePosition overwrites the caller's position cell and pushes it to
// subscribers. A failed push is logged; the cell write is what counts.
func (b *Broadcaster) UpdatePosition(ctx context.Context, actor models.Actor, lat, lon float64) (*models.PositionSample, error) {
	if !actor.IsTechnician() {
		return nil, fmt.Errorf("%w: only technicians report positions", ErrForbidden)
	}
	if err := validateCoordinate(lat, lon); err != nil {
		return nil, err
	}
	return b.publish(ctx, actor.UserID, lat, lon)
}

func (b *Broadcaster) publish(ctx context.Context, technicianID int64, lat, lon float64) (*models.PositionSample, error) {
	sample := models.PositionSample{
		TechnicianID: technicianID,
		Lat:          lat,
		Lon:          lon,
		CapturedAt:   b.now().UTC(),
	}
	if err := b.positions.Set(ctx, sample); err != nil {
		return nil, fmt.Errorf("store position of technician %d: %w", technicianID, err)
	}
	if err := b.channel.Publish(ctx, sample); err != nil {
		b.logger.Warn("position publish failed", zap.Int64("technician_id", technicianID), zap.Error(err))
	}
	return &sample, nil
}

// StopTracking clears the flag. It writes no event: the terminal event
// belongs to the completion or cancellation path.
func (b *Broadcaster) StopTracking(ctx context.Context, actor models.Actor, orderID int64) (*TrackingStatus, error) {
	o, err := loadOrder(ctx, b.orders, actor, orderID)
	if err != nil {
		return nil, err
	}
	if !o.TrackingActive {
		return &TrackingStatus{OrderID: o.ID, TrackingActive: false}, nil
	}

	next := *o
	next.TrackingActive = false
	if err := b.orders.Update(ctx, &next, o.Status, o.Version); err != nil {
		return nil, err
	}
	return &TrackingStatus{OrderID: o.ID, TrackingActive: false}, nil
}

// Subscribe opens a position stream for the technician and returns the
// current cell alongside it so a new viewer does not start empty. The
// caller owns the subscription and must Close it.
func (b *Broadcaster) Subscribe(ctx context.Context, technicianID int64) (*models.PositionSample, Subscription, error) {
	sub, err := b.channel.Subscribe(ctx, technicianID)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe to technician %d: %w", technicianID, err)
	}
	current, err := b.positions.Get(ctx, technicianID)
	if err != nil {
		b.logger.Warn("read position cell failed", zap.Int64("technician_id", technicianID), zap.Error(err))
		current = nil
	}
	return current, sub, nil
}

// SubscribeForDispatcher lets an authenticated dashboard watch one of its
// tenant's technicians.
func (b *Broadcaster) SubscribeForDispatcher(ctx context.Context, actor models.Actor, technicianID int64) (*models.PositionSample, Subscription, error) {
	if err := requireDispatcher(actor); err != nil {
		return nil, nil, err
	}
	u, err := b.users.GetUser(ctx, technicianID)
	if err != nil || u.TenantID != actor.TenantID || u.Role != models.RoleTechnician {
		return nil, nil, fmt.Errorf("technician %d: %w", technicianID, ErrNotFound)
	}
	return b.Subscribe(ctx, technicianID)
}
