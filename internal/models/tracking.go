package models

import "time"

type EventKind string

const (
	EventArrival    EventKind = "arrival"
	EventStart      EventKind = "start"
	EventCompletion EventKind = "completion"
	EventPause      EventKind = "pause"
	EventCustom     EventKind = "custom"
)

func (k EventKind) Valid() bool {
	switch k {
	case EventArrival, EventStart, EventCompletion, EventPause, EventCustom:
		return true
	}
	return false
}

// TrackingEvent is append-only; CreatedAt is assigned by the database.
type TrackingEvent struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"order_id"`
	TenantID  int64     `json:"tenant_id"`
	Kind      EventKind `json:"kind"`
	Note      *string   `json:"note,omitempty"`
	Lat       *float64  `json:"lat,omitempty"`
	Lon       *float64  `json:"lon,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type AppendEventRequest struct {
	Kind EventKind `json:"kind" validate:"required"`
	Note *string   `json:"note"`
	Lat  *float64  `json:"lat"`
	Lon  *float64  `json:"lon"`
}

// PositionSample is the single live position cell of a technician.
type PositionSample struct {
	TechnicianID int64     `json:"technician_id"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	CapturedAt   time.Time `json:"captured_at"`
}

type PositionRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}
