package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hvac-dispatch/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.StatusOpen:       {models.StatusInProgress, models.StatusCancelled},
	models.StatusInProgress: {models.StatusCompleted, models.StatusCancelled},
}

// CheckTransition reports whether from -> to is an edge of the order graph.
// completed and cancelled have no outgoing edges.
func CheckTransition(from, to models.OrderStatus) error {
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return &TransitionError{From: from, To: to}
}

type AcceptMode string

const (
	// AcceptDepart means the technician leaves now; tracking starts.
	AcceptDepart AcceptMode = "depart"
	// AcceptScheduled confirms the visit for its scheduled date.
	AcceptScheduled AcceptMode = "scheduled"
)

type AcceptResult struct {
	Order    *models.ServiceOrder `json:"order"`
	Tracking *TrackingStatus      `json:"tracking,omitempty"`
}

// Orders owns the canonical status of service orders. Every write is a
// compare-and-swap on the persisted status and version.
type Orders struct {
	store     OrderStore
	gate      *Gate
	users     UserDirectory
	timeline  *Timeline
	broadcast *Broadcaster
	life      lifecycle
	logger    *zap.Logger
	now       func() time.Time
	loc       *time.Location
}

func (s *Orders) Get(ctx context.Context, actor models.Actor, id int64) (*models.ServiceOrder, error) {
	return loadOrder(ctx, s.store, actor, id)
}

func (s *Orders) List(ctx context.Context, actor models.Actor, filter models.OrderFilter) ([]models.ServiceOrder, int, error) {
	if actor.IsTechnician() {
		self := actor.UserID
		filter.TechnicianID = &self
	} else if !actor.IsDispatcher() {
		return nil, 0, fmt.Errorf("%w: role %q cannot list orders", ErrForbidden, actor.Role)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", filter.Status)}
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}
	return s.store.List(ctx, actor.TenantID, filter)
}

func (s *Orders) Create(ctx context.Context, actor models.Actor, req models.CreateOrderRequest) (*models.ServiceOrder, error) {
	if err := requireDispatcher(actor); err != nil {
		return nil, err
	}
	if req.CustomerID <= 0 {
		return nil, &ValidationError{Field: "customer_id", Message: "is required"}
	}
	if !req.Type.Valid() {
		return nil, &ValidationError{Field: "type", Message: fmt.Sprintf("unknown order type %q", req.Type)}
	}
	if req.Priority == "" {
		req.Priority = models.PriorityNormal
	}
	if !req.Priority.Valid() {
		return nil, &ValidationError{Field: "priority", Message: fmt.Sprintf("unknown priority %q", req.Priority)}
	}
	if req.ValueCents < 0 {
		return nil, &ValidationError{Field: "value_cents", Message: "must not be negative"}
	}
	if err := validateOptionalCoordinate(req.SiteLat, req.SiteLon); err != nil {
		return nil, err
	}
	scheduled, err := s.parseDate(req.ScheduledDate)
	if err != nil {
		return nil, err
	}

	o := &models.ServiceOrder{
		PublicID:         uuid.NewString(),
		TenantID:         actor.TenantID,
		CustomerID:       req.CustomerID,
		Type:             req.Type,
		HazardCategoryID: req.HazardCategoryID,
		Status:           models.StatusOpen,
		Priority:         req.Priority,
		ScheduledDate:    scheduled,
		Description:      strings.TrimSpace(req.Description),
		Equipment:        strings.TrimSpace(req.Equipment),
		ValueCents:       req.ValueCents,
		SiteLat:          req.SiteLat,
		SiteLon:          req.SiteLon,
	}

	if req.TechnicianID != nil {
		if err := s.checkTechnician(ctx, actor.TenantID, *req.TechnicianID); err != nil {
			return nil, err
		}
		if err := s.gate.Require(ctx, actor.TenantID, *req.TechnicianID, req.HazardCategoryID); err != nil {
			return nil, err
		}
		o.TechnicianID = req.TechnicianID
		o.CertifiedCategoryID = req.HazardCategoryID
	}

	if err := s.store.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.logger.Info("order created",
		zap.Int64("order_id", o.ID),
		zap.Int64("tenant_id", o.TenantID),
		zap.Int64("actor_id", actor.UserID),
	)
	s.life.emit(ctx, "order.created", o, nil)
	return o, nil
}

func (s *Orders) Update(ctx context.Context, actor models.Actor, id int64, req models.UpdateOrderRequest) (*models.ServiceOrder, error) {
	if err := requireDispatcher(actor); err != nil {
		return nil, err
	}
	o, err := loadOrder(ctx, s.store, actor, id)
	if err != nil {
		return nil, err
	}
	if o.Status.Terminal() {
		return nil, &PreconditionError{Rule: fmt.Sprintf("order %d is %s and can no longer be edited", o.ID, o.Status)}
	}

	next := *o
	if req.Type != nil {
		if !req.Type.Valid() {
			return nil, &ValidationError{Field: "type", Message: fmt.Sprintf("unknown order type %q", *req.Type)}
		}
		next.Type = *req.Type
	}
	if req.ClearHazard {
		next.HazardCategoryID = nil
	} else if req.HazardCategoryID != nil {
		next.HazardCategoryID = req.HazardCategoryID
	}
	if req.Priority != nil {
		if !req.Priority.Valid() {
			return nil, &ValidationError{Field: "priority", Message: fmt.Sprintf("unknown priority %q", *req.Priority)}
		}
		next.Priority = *req.Priority
	}
	if req.ScheduledDate != nil {
		d, err := s.parseDate(req.ScheduledDate)
		if err != nil {
			return nil, err
		}
		next.ScheduledDate = d
	}
	if req.Description != nil {
		next.Description = strings.TrimSpace(*req.Description)
	}
	if req.Equipment != nil {
		next.Equipment = strings.TrimSpace(*req.Equipment)
	}
	if req.ValueCents != nil {
		if *req.ValueCents < 0 {
			return nil, &ValidationError{Field: "value_cents", Message: "must not be negative"}
		}
		next.ValueCents = *req.ValueCents
	}
	if req.SiteLat != nil || req.SiteLon != nil {
		if err := validateOptionalCoordinate(req.SiteLat, req.SiteLon); err != nil {
			return nil, err
		}
		next.SiteLat, next.SiteLon = req.SiteLat, req.SiteLon
	}

	// A new hazard category must still be covered by the bound technician.
	if next.TechnicianID != nil && !sameCategory(o.HazardCategoryID, next.HazardCategoryID) {
		if err := s.gate.Require(ctx, actor.TenantID, *next.TechnicianID, next.HazardCategoryID); err != nil {
			return nil, err
		}
		next.CertifiedCategoryID = next.HazardCategoryID
	}

	if err := s.store.Update(ctx, &next, o.Status, o.Version); err != nil {
		return nil, err
	}
	return &next, nil
}


// AssignTechnician binds a technician to the order. When the order carries
// a hazard category the certification gate must pass or nothing is written.
func (s *Orders) AssignTechnician(ctx context.Context, actor models.Actor, id, technicianID int64) (*models.ServiceOrder, error) {
	if err := requireDispatcher(actor); err != nil {
		return nil, err
	}
	o, err := loadOrder(ctx, s.store, actor, id)
	if err != nil {
		return nil, err
	}
	if o.Status.Terminal() {
		return nil, &PreconditionError{Rule: fmt.Sprintf("order %d is %s and cannot be reassigned", o.ID, o.Status)}
	}
	if err := s.checkTechnician(ctx, actor.TenantID, technicianID); err != nil {
		return nil, err
	}
	if err := s.gate.Require(ctx, actor.TenantID, technicianID, o.HazardCategoryID); err != nil {
		return nil, err
	}

	next := *o
	next.TechnicianID = &technicianID
	next.CertifiedCategoryID = o.HazardCategoryID
	if o.TechnicianID == nil || *o.TechnicianID != technicianID {
		// the previous technician's position must not leak onto this order
		next.TrackingActive = false
	}

	if err := s.store.Update(ctx, &next, o.Status, o.Version); err != nil {
		return nil, err
	}

	s.logger.Info("technician assigned",
		zap.Int64("order_id", o.ID),
		zap.Int64("technician_id", technicianID),
		zap.Int64("actor_id", actor.UserID),
	)
	return &next, nil
}

// Accept moves an open order to in_progress on behalf of its technician.
func (s *Orders) Accept(ctx context.Context, actor models.Actor, id int64, mode AcceptMode, loc Locator) (*AcceptResult, error) {
	if mode != AcceptDepart && mode != AcceptScheduled {
		return nil, &ValidationError{Field: "mode", Message: fmt.Sprintf("unknown accept mode %q", mode)}
	}
	o, err := loadOrder(ctx, s.store, actor, id)
	if err != nil {
		return nil, err
	}
	if err := CheckTransition(o.Status, models.StatusInProgress); err != nil {
		return nil, err
	}
	if o.TechnicianID == nil {
		return nil, ErrTechnicianRequired
	}
	if o.HazardCategoryID != nil && !sameCategory(o.CertifiedCategoryID, o.HazardCategoryID) {
		if err := s.gate.Require(ctx, o.TenantID, *o.TechnicianID, o.HazardCategoryID); err != nil {
			return nil, err
		}
	}

	next := *o
	next.Status = models.StatusInProgress
	next.CertifiedCategoryID = o.HazardCategoryID
	next.TrackingActive = mode == AcceptDepart

	if err := s.store.Update(ctx, &next, o.Status, o.Version); err != nil {
		return nil, err
	}

	s.logger.Info("order accepted",
		zap.Int64("order_id", o.ID),
		zap.String("mode", string(mode)),
		zap.Int64("actor_id", actor.UserID),
	)
	s.life.emit(ctx, "order.accepted", &next, nil)

	result := &AcceptResult{Order: &next}
	if mode == AcceptDepart {
		status, err := s.broadcast.announceStart(ctx, &next, loc)
		if err != nil {
			return result, err
		}
		result.Tracking = status
	}
	return result, nil
}

func (s *Orders) Cancel(ctx context.Context, actor models.Actor, id int64, reason string) (*models.ServiceOrder, error) {
	if err := requireDispatcher(actor); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	o, err := loadOrder(ctx, s.store, actor, id)
	if err != nil {
		return nil, err
	}
	if err := CheckTransition(o.Status, models.StatusCancelled); err != nil {
		return nil, err
	}

	next := *o
	next.Status = models.StatusCancelled
	next.TrackingActive = false
	next.CancelReason = reason

	if err := s.store.Update(ctx, &next, o.Status, o.Version); err != nil {
		return nil, err
	}

	s.logger.Info("order cancelled",
		zap.Int64("order_id", o.ID),
		zap.String("reason", reason),
		zap.Int64("actor_id", actor.UserID),
	)
	s.life.emit(ctx, "order.cancelled", &next, nil)

	note := "Cancelled: " + reason
	ev := &models.TrackingEvent{OrderID: o.ID, TenantID: o.TenantID, Kind: models.EventCustom, Note: &note}
	if err := s.timeline.append(ctx, ev); err != nil {
		return &next, fmt.Errorf("order %d cancelled but the timeline entry was not recorded: %w", o.ID, err)
	}
	return &next, nil
}

// SetStatus routes a requested target status to the operation that owns the
// edge, rejecting edges outside the graph with a *TransitionError.
func (s *Orders) SetStatus(ctx context.Context, actor models.Actor, id int64, target models.OrderStatus, reason string) (*models.ServiceOrder, error) {
	if !target.Valid() {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", target)}
	}
	switch target {
	case models.StatusInProgress:
		res, err := s.Accept(ctx, actor, id, AcceptScheduled, nil)
		if res != nil {
			return res.Order, err
		}
		return nil, err
	case models.StatusCancelled:
		return s.Cancel(ctx, actor, id, reason)
	}

	o, err := loadOrder(ctx, s.store, actor, id)
	if err != nil {
		return nil, err
	}
	if err := CheckTransition(o.Status, target); err != nil {
		return nil, err
	}
	return nil, ErrCompletionWorkflow
}

// Delete removes an order that never accumulated history.
func (s *Orders) Delete(ctx context.Context, actor models.Actor, id int64) error {
	if err := requireDispatcher(actor); err != nil {
		return err
	}
	o, err := loadOrder(ctx, s.store, actor, id)
	if err != nil {
		return err
	}
	has, err := s.store.HasHistory(ctx, o.TenantID, o.ID)
	if err != nil {
		return fmt.Errorf("check history of order %d: %w", o.ID, err)
	}
	if has {
		return ErrOrderHasHistory
	}
	if err := s.store.Delete(ctx, o.TenantID, o.ID); err != nil {
		return fmt.Errorf("delete order %d: %w", o.ID, err)
	}
	s.logger.Info("order deleted", zap.Int64("order_id", o.ID), zap.Int64("actor_id", actor.UserID))
	return nil
}

func (s *Orders) checkTechnician(ctx context.Context, tenantID, technicianID int64) error {
	u, err := s.users.GetUser(ctx, technicianID)
	if errors.Is(err, ErrNotFound) || (err == nil && u.TenantID != tenantID) {
		return &ValidationError{Field: "technician_id", Message: fmt.Sprintf("technician %d not found", technicianID)}
	}
	if err != nil {
		return fmt.Errorf("load technician %d: %w", technicianID, err)
	}
	if u.Role != models.RoleTechnician {
		return &ValidationError{Field: "technician_id", Message: fmt.Sprintf("user %d is not a technician", technicianID)}
	}
	if u.IsBanned == "y" {
		return &ValidationError{Field: "technician_id", Message: fmt.Sprintf("technician %d is blocked", technicianID)}
	}
	return nil
}

func (s *Orders) parseDate(v *string) (*time.Time, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(*v), s.loc)
	if err != nil {
		return nil, &ValidationError{Field: "scheduled_date", Message: "expected YYYY-MM-DD"}
	}
	return &t, nil
}

func sameCategory(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
