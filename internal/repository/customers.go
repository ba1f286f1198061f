package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hvac-dispatch/internal/dispatch"
	"hvac-dispatch/internal/models"

	"go.uber.org/zap"
)

type CustomerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewCustomerRepository(db *sql.DB, logger *zap.Logger) *CustomerRepository {
	return &CustomerRepository{db: db, logger: logger}
}

func (r *CustomerRepository) Get(ctx context.Context, tenantID, id int64) (*models.Customer, error) {
	var c models.Customer
	err := r.db.QueryRowContext(ctx,
		"SELECT id, tenant_id, name, phone, address FROM customers WHERE id = ? AND tenant_id = ?", id, tenantID,
	).Scan(&c.ID, &c.TenantID, &c.Name, &c.Phone, &c.Address)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dispatch.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load customer %d: %w", id, err)
	}
	return &c, nil
}
