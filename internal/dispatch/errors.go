package dispatch

import (
	"errors"
	"fmt"
	"strings"

	"hvac-dispatch/internal/models"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrConcurrentUpdate = errors.New("order was changed by another request, reload and retry")

	// ErrPrecondition is matched by every rule violation that is rejected
	// before any mutation happens.
	ErrPrecondition = errors.New("precondition failed")
	// ErrCertification is matched by *CertificationError.
	ErrCertification = errors.New("technician lacks required certifications")

	ErrPositionUnavailable = errors.New("position unavailable")
)

var (
	ErrTechnicianRequired = &PreconditionError{Rule: "order has no assigned technician"}
	ErrSignatureRequired  = &PreconditionError{Rule: "a customer signature must be captured before completion"}
	ErrReasonRequired     = &PreconditionError{Rule: "cancellation requires a reason"}
	ErrTrackingInactive   = &PreconditionError{Rule: "tracking is only allowed while the order is in_progress"}
	ErrOrderHasHistory    = &PreconditionError{Rule: "order has timeline, photos or consumption records and cannot be deleted"}
	ErrCompletionWorkflow = &PreconditionError{Rule: "orders are completed only through the completion workflow"}
)

type PreconditionError struct {
	Rule string
}

func (e *PreconditionError) Error() string { return e.Rule }

func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }

// TransitionError names both states of an edge that is not in the graph.
type TransitionError struct {
	From models.OrderStatus
	To   models.OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal status transition %s -> %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrPrecondition }

// CertificationError carries the human-readable names of the certifications
// the technician is missing for the order's hazard category.
type CertificationError struct {
	TechnicianID     int64
	HazardCategoryID int64
	Missing          []string
}

func (e *CertificationError) Error() string {
	return fmt.Sprintf("technician %d cannot be assigned to hazard category %d, missing certifications: %s",
		e.TechnicianID, e.HazardCategoryID, strings.Join(e.Missing, ", "))
}

func (e *CertificationError) Is(target error) bool { return target == ErrCertification }

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrPrecondition }
