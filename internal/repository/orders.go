package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hvac-dispatch/internal/dispatch"
	"hvac-dispatch/internal/models"

	"go.uber.org/zap"
)

const orderColumns = `id, public_id, tenant_id, technician_id, customer_id, type, hazard_category_id,
	certified_category_id, status, priority, scheduled_date, completed_at, description, equipment,
	value_cents, tracking_active, site_lat, site_lon, cancel_reason, version, created_at, updated_at`

type OrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewOrderRepository(db *sql.DB, logger *zap.Logger) *OrderRepository {
	return &OrderRepository{db: db, logger: logger}
}

func (r *OrderRepository) Create(ctx context.Context, o *models.ServiceOrder) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO service_orders (public_id, tenant_id, technician_id, customer_id, type, hazard_category_id,
			certified_category_id, status, priority, scheduled_date, description, equipment, value_cents,
			tracking_active, site_lat, site_lon, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		o.PublicID, o.TenantID, nullInt(o.TechnicianID), o.CustomerID, o.Type, nullInt(o.HazardCategoryID),
		nullInt(o.CertifiedCategoryID), o.Status, o.Priority, nullDate(o.ScheduledDate), o.Description, o.Equipment,
		o.ValueCents, o.TrackingActive, nullFloat(o.SiteLat), nullFloat(o.SiteLon), now, now,
	)
	if err != nil {
		return fmt.Errorf("insert service order: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert service order: %w", err)
	}
	o.ID = id
	o.Version = 1
	o.CreatedAt = now
	o.UpdatedAt = now
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, tenantID, id int64) (*models.ServiceOrder, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM service_orders WHERE id = ? AND tenant_id = ?`, id, tenantID)
	return scanOrder(row)
}

func (r *OrderRepository) GetByPublicID(ctx context.Context, publicID string) (*models.ServiceOrder, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM service_orders WHERE public_id = ?`, publicID)
	return scanOrder(row)
}

func (r *OrderRepository) List(ctx context.Context, tenantID int64, filter models.OrderFilter) ([]models.ServiceOrder, int, error) {
	where := " WHERE tenant_id = ?"
	args := []interface{}{tenantID}

	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.TechnicianID != nil {
		where += " AND technician_id = ?"
		args = append(args, *filter.TechnicianID)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM service_orders"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count service orders: %w", err)
	}

	offset := (filter.Page - 1) * filter.Limit
	query := "SELECT " + orderColumns + " FROM service_orders" + where +
		" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list service orders: %w", err)
	}
	defer rows.Close()

	orders := []models.ServiceOrder{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list service orders: %w", err)
	}
	return orders, total, nil
}

// Update is a compare-and-swap on (status, version). completed_at is only
// ever set once.
func (r *OrderRepository) Update(ctx context.Context, o *models.ServiceOrder, expectedStatus models.OrderStatus, expectedVersion int64) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE service_orders SET
			technician_id = ?, type = ?, hazard_category_id = ?, certified_category_id = ?,
			status = ?, priority = ?, scheduled_date = ?, completed_at = COALESCE(completed_at, ?),
			description = ?, equipment = ?, value_cents = ?, tracking_active = ?,
			site_lat = ?, site_lon = ?, cancel_reason = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND tenant_id = ? AND status = ? AND version = ?`,
		nullInt(o.TechnicianID), o.Type, nullInt(o.HazardCategoryID), nullInt(o.CertifiedCategoryID),
		o.Status, o.Priority, nullDate(o.ScheduledDate), nullTime(o.CompletedAt),
		o.Description, o.Equipment, o.ValueCents, o.TrackingActive,
		nullFloat(o.SiteLat), nullFloat(o.SiteLon), nullString(o.CancelReason), now,
		o.ID, o.TenantID, expectedStatus, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update service order %d: %w", o.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update service order %d: %w", o.ID, err)
	}
	if n == 0 {
		var exists bool
		err := r.db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM service_orders WHERE id = ? AND tenant_id = ?)", o.ID, o.TenantID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("update service order %d: %w", o.ID, err)
		}
		if !exists {
			return dispatch.ErrNotFound
		}
		r.logger.Info("order update lost a race",
			zap.Int64("order_id", o.ID),
			zap.String("expected_status", string(expectedStatus)),
			zap.Int64("expected_version", expectedVersion),
		)
		return dispatch.ErrConcurrentUpdate
	}
	o.Version = expectedVersion + 1
	o.UpdatedAt = now
	return nil
}

func (r *OrderRepository) HasHistory(ctx context.Context, tenantID, id int64) (bool, error) {
	var has bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM tracking_events WHERE order_id = ? AND tenant_id = ?)
			OR EXISTS(SELECT 1 FROM service_photos WHERE order_id = ? AND tenant_id = ?)
			OR EXISTS(SELECT 1 FROM inventory_consumptions WHERE order_id = ? AND tenant_id = ?)`,
		id, tenantID, id, tenantID, id, tenantID,
	).Scan(&has)
	if err != nil {
		return false, fmt.Errorf("check history of order %d: %w", id, err)
	}
	return has, nil
}

func (r *OrderRepository) Delete(ctx context.Context, tenantID, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM service_orders WHERE id = ? AND tenant_id = ?", id, tenantID)
	if err != nil {
		return fmt.Errorf("delete service order %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return dispatch.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*models.ServiceOrder, error) {
	var (
		o                                 models.ServiceOrder
		technicianID, hazardID, certified sql.NullInt64
		scheduled, completed              sql.NullTime
		siteLat, siteLon                  sql.NullFloat64
		cancelReason                      sql.NullString
	)
	err := row.Scan(
		&o.ID,
		&o.PublicID,
		&o.TenantID,
		&technicianID,
		&o.CustomerID,
		&o.Type,
		&hazardID,
		&certified,
		&o.Status,
		&o.Priority,
		&scheduled,
		&completed,
		&o.Description,
		&o.Equipment,
		&o.ValueCents,
		&o.TrackingActive,
		&siteLat,
		&siteLon,
		&cancelReason,
		&o.Version,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dispatch.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan service order: %w", err)
	}
	o.TechnicianID = intPtr(technicianID)
	o.HazardCategoryID = intPtr(hazardID)
	o.CertifiedCategoryID = intPtr(certified)
	o.ScheduledDate = timePtr(scheduled)
	o.CompletedAt = timePtr(completed)
	o.SiteLat = floatPtr(siteLat)
	o.SiteLon = floatPtr(siteLon)
	o.CancelReason = cancelReason.String
	return &o, nil
}
