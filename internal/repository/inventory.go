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

var ErrInsufficientStock = errors.New("insufficient stock")

// InventoryRepository records part consumption against the stock table.
type InventoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewInventoryRepository(db *sql.DB, logger *zap.Logger) *InventoryRepository {
	return &InventoryRepository{db: db, logger: logger}
}

// RecordConsumption decrements stock and writes the consumption record in
// one transaction. Stock never goes negative.
func (r *InventoryRepository) RecordConsumption(ctx context.Context, tenantID, itemID, orderID int64, quantity int, reason string) (*models.InventoryConsumptionRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin consumption: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE stock_items SET quantity = quantity - ? WHERE id = ? AND tenant_id = ? AND quantity >= ?",
		quantity, itemID, tenantID, quantity,
	)
	if err != nil {
		return nil, fmt.Errorf("decrement stock item %d: %w", itemID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var available int
		err := tx.QueryRowContext(ctx,
			"SELECT quantity FROM stock_items WHERE id = ? AND tenant_id = ?", itemID, tenantID,
		).Scan(&available)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("stock item %d: %w", itemID, dispatch.ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("read stock item %d: %w", itemID, err)
		}
		return nil, fmt.Errorf("stock item %d has %d, need %d: %w", itemID, available, quantity, ErrInsufficientStock)
	}

	now := time.Now().UTC()
	res, err = tx.ExecContext(ctx,
		"INSERT INTO inventory_consumptions (tenant_id, order_id, item_id, quantity, reason, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		tenantID, orderID, itemID, quantity, reason, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert consumption record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert consumption record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit consumption: %w", err)
	}

	r.logger.Debug("stock consumed",
		zap.Int64("item_id", itemID),
		zap.Int64("order_id", orderID),
		zap.Int("quantity", quantity),
	)
	return &models.InventoryConsumptionRecord{
		ID:        id,
		TenantID:  tenantID,
		OrderID:   orderID,
		ItemID:    itemID,
		Quantity:  quantity,
		Reason:    reason,
		CreatedAt: now,
	}, nil
}
