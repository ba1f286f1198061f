package repository

import (
	"context"
	"database/sql"
	"fmt"

	"hvac-dispatch/internal/models"

	"go.uber.org/zap"
)

type EventRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewEventRepository(db *sql.DB, logger *zap.Logger) *EventRepository {
	return &EventRepository{db: db, logger: logger}
}

// Append stamps the event with the database clock, never earlier than the
// newest event of the same order, so created_at order matches append order.
func (r *EventRepository) Append(ctx context.Context, e *models.TrackingEvent) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO tracking_events (order_id, tenant_id, kind, note, lat, lon, created_at)
		SELECT ?, ?, ?, ?, ?, ?, GREATEST(UTC_TIMESTAMP(6), COALESCE(MAX(created_at), UTC_TIMESTAMP(6)))
		FROM tracking_events WHERE order_id = ?`,
		e.OrderID, e.TenantID, e.Kind, e.Note, nullFloat(e.Lat), nullFloat(e.Lon), e.OrderID,
	)
	if err != nil {
		return fmt.Errorf("insert tracking event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert tracking event: %w", err)
	}
	e.ID = id

	if err := r.db.QueryRowContext(ctx, "SELECT created_at FROM tracking_events WHERE id = ?", id).Scan(&e.CreatedAt); err != nil {
		return fmt.Errorf("read tracking event %d: %w", id, err)
	}
	return nil
}

func (r *EventRepository) List(ctx context.Context, tenantID, orderID int64) ([]models.TrackingEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, tenant_id, kind, note, lat, lon, created_at
		FROM tracking_events
		WHERE tenant_id = ? AND order_id = ?
		ORDER BY created_at ASC, id ASC`, tenantID, orderID)
	if err != nil {
		return nil, fmt.Errorf("list tracking events: %w", err)
	}
	defer rows.Close()

	events := []models.TrackingEvent{}
	for rows.Next() {
		var (
			e        models.TrackingEvent
			note     sql.NullString
			lat, lon sql.NullFloat64
		)
		if err := rows.Scan(&e.ID, &e.OrderID, &e.TenantID, &e.Kind, &note, &lat, &lon, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tracking event: %w", err)
		}
		e.Note = stringPtr(note)
		e.Lat = floatPtr(lat)
		e.Lon = floatPtr(lon)
		events = append(events, e)
	}
	return events, rows.Err()
}
