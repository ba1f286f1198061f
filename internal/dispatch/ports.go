package dispatch

import (
	"context"
	"time"

	"hvac-dispatch/internal/models"
)

type OrderStore interface {
	// Create assigns ID, Version and timestamps on o.
	Create(ctx context.Context, o *models.ServiceOrder) error
	Get(ctx context.Context, tenantID, id int64) (*models.ServiceOrder, error)
	GetByPublicID(ctx context.Context, publicID string) (*models.ServiceOrder, error)
	List(ctx context.Context, tenantID int64, filter models.OrderFilter) ([]models.ServiceOrder, int, error)
	// Update writes o only if the stored row still has expectedStatus and
	// expectedVersion, otherwise it returns ErrConcurrentUpdate. On success
	// o.Version is the new version.
	Update(ctx context.Context, o *models.ServiceOrder, expectedStatus models.OrderStatus, expectedVersion int64) error
	HasHistory(ctx context.Context, tenantID, id int64) (bool, error)
	Delete(ctx context.Context, tenantID, id int64) error
}

type CertificationStore interface {
	// RequiredCertifications returns found=false when the category id does
	// not resolve for the tenant.
	RequiredCertifications(ctx context.Context, tenantID, categoryID int64) (reqs []models.CertificationType, found bool, err error)
	ActiveCertifications(ctx context.Context, technicianID int64, today time.Time) ([]models.TechnicianCertification, error)
}

type EventStore interface {
	// Append is durable when it returns; ID and CreatedAt are set from the store.
	Append(ctx context.Context, e *models.TrackingEvent) error
	List(ctx context.Context, tenantID, orderID int64) ([]models.TrackingEvent, error)
}

type PhotoStore interface {
	Create(ctx context.Context, p *models.ServicePhoto) error
	List(ctx context.Context, tenantID, orderID int64) ([]models.ServicePhoto, error)
	HasCategory(ctx context.Context, tenantID, orderID int64, category models.PhotoCategory) (bool, error)
}

// Inventory is the external stock collaborator. RecordConsumption creates a
// consumption record and decrements stock for the item.
type Inventory interface {
	RecordConsumption(ctx context.Context, tenantID, itemID, orderID int64, quantity int, reason string) (*models.InventoryConsumptionRecord, error)
}

// PositionStore holds one live position cell per technician.
type PositionStore interface {
	Set(ctx context.Context, s models.PositionSample) error
	// Get returns nil, nil when the technician has no cell.
	Get(ctx context.Context, technicianID int64) (*models.PositionSample, error)
}

type PositionChannel interface {
	Publish(ctx context.Context, s models.PositionSample) error
	Subscribe(ctx context.Context, technicianID int64) (Subscription, error)
}

// Subscription must be closed by the subscriber when its view goes away.
type Subscription interface {
	Updates() <-chan models.PositionSample
	Close() error
}

type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (url string, err error)
}

type LifecyclePublisher interface {
	PublishLifecycle(ctx context.Context, ev models.OrderLifecycleEvent) error
}

type UserDirectory interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

// Locator acquires the technician's current position.
type Locator interface {
	Locate(ctx context.Context) (lat, lon float64, err error)
}

type LocatorFunc func(ctx context.Context) (float64, float64, error)

func (f LocatorFunc) Locate(ctx context.Context) (float64, float64, error) { return f(ctx) }

// FixedLocator reports a position sent by the client along with its request.
// A nil coordinate means the device could not provide one.
func FixedLocator(lat, lon *float64) Locator {
	return LocatorFunc(func(ctx context.Context) (float64, float64, error) {
		if lat == nil || lon == nil {
			return 0, 0, ErrPositionUnavailable
		}
		return *lat, *lon, nil
	})
}
