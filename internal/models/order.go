package models

import "time"

type OrderStatus string

const (
	StatusOpen       OrderStatus = "open"
	StatusInProgress OrderStatus = "in_progress"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type OrderType string

const (
	TypeInstall  OrderType = "install"
	TypeMaintain OrderType = "maintain"
	TypeRepair   OrderType = "repair"
	TypeClean    OrderType = "clean"
)

func (t OrderType) Valid() bool {
	switch t {
	case TypeInstall, TypeMaintain, TypeRepair, TypeClean:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ServiceOrder is the work order a technician is dispatched for.
// ID is internal; PublicID is the opaque token used by the public tracking page.
type ServiceOrder struct {
	ID                  int64       `json:"id"`
	PublicID            string      `json:"public_id"`
	TenantID            int64       `json:"tenant_id"`
	TechnicianID        *int64      `json:"technician_id"`
	CustomerID          int64       `json:"customer_id"`
	Type                OrderType   `json:"type"`
	HazardCategoryID    *int64      `json:"hazard_category_id"`
	CertifiedCategoryID *int64      `json:"-"`
	Status              OrderStatus `json:"status"`
	Priority            Priority    `json:"priority"`
	ScheduledDate       *time.Time  `json:"scheduled_date"`
	CompletedAt         *time.Time  `json:"completed_at"`
	Description         string      `json:"description"`
	Equipment           string      `json:"equipment"`
	ValueCents          int64       `json:"value_cents"`
	TrackingActive      bool        `json:"tracking_active"`
	SiteLat             *float64    `json:"site_lat"`
	SiteLon             *float64    `json:"site_lon"`
	CancelReason        string      `json:"cancel_reason,omitempty"`
	Version             int64       `json:"version"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

type CreateOrderRequest struct {
	CustomerID       int64     `json:"customer_id" validate:"required"`
	TechnicianID     *int64    `json:"technician_id"`
	Type             OrderType `json:"type" validate:"required,oneof=install maintain repair clean"`
	HazardCategoryID *int64    `json:"hazard_category_id"`
	Priority         Priority  `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	ScheduledDate    *string   `json:"scheduled_date"` // YYYY-MM-DD
	Description      string    `json:"description"`
	Equipment        string    `json:"equipment"`
	ValueCents       int64     `json:"value_cents" validate:"min=0"`
	SiteLat          *float64  `json:"site_lat"`
	SiteLon          *float64  `json:"site_lon"`
}

// UpdateOrderRequest carries editable fields only; nil means unchanged.
// Status and technician go through their own operations.
type UpdateOrderRequest struct {
	Type             *OrderType `json:"type"`
	HazardCategoryID *int64     `json:"hazard_category_id"`
	ClearHazard      bool       `json:"clear_hazard"`
	Priority         *Priority  `json:"priority"`
	ScheduledDate    *string    `json:"scheduled_date"`
	Description      *string    `json:"description"`
	Equipment        *string    `json:"equipment"`
	ValueCents       *int64     `json:"value_cents"`
	SiteLat          *float64   `json:"site_lat"`
	SiteLon          *float64   `json:"site_lon"`
}

type OrderFilter struct {
	Status       OrderStatus
	TechnicianID *int64
	Page         int
	Limit        int
}

// OrderLifecycleEvent is published to external subsystems (billing, loyalty)
// whenever an order changes state.
type OrderLifecycleEvent struct {
	Type         string         `json:"type"`
	OrderID      int64          `json:"order_id"`
	PublicID     string         `json:"public_id"`
	TenantID     int64          `json:"tenant_id"`
	TechnicianID *int64         `json:"technician_id,omitempty"`
	CustomerID   int64          `json:"customer_id"`
	Status       OrderStatus    `json:"status"`
	ValueCents   int64          `json:"value_cents"`
	Parts        []ConsumedPart `json:"parts,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}
