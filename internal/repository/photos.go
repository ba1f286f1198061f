package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hvac-dispatch/internal/models"

	"go.uber.org/zap"
)

type PhotoRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPhotoRepository(db *sql.DB, logger *zap.Logger) *PhotoRepository {
	return &PhotoRepository{db: db, logger: logger}
}

func (r *PhotoRepository) Create(ctx context.Context, p *models.ServicePhoto) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO service_photos (order_id, tenant_id, url, category, caption, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		p.OrderID, p.TenantID, p.URL, p.Category, p.Caption, now,
	)
	if err != nil {
		return fmt.Errorf("insert service photo: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert service photo: %w", err)
	}
	p.ID = id
	p.CreatedAt = now
	return nil
}

func (r *PhotoRepository) List(ctx context.Context, tenantID, orderID int64) ([]models.ServicePhoto, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, tenant_id, url, category, caption, created_at
		FROM service_photos
		WHERE tenant_id = ? AND order_id = ?
		ORDER BY created_at ASC, id ASC`, tenantID, orderID)
	if err != nil {
		return nil, fmt.Errorf("list service photos: %w", err)
	}
	defer rows.Close()

	photos := []models.ServicePhoto{}
	for rows.Next() {
		var (
			p       models.ServicePhoto
			caption sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.OrderID, &p.TenantID, &p.URL, &p.Category, &caption, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan service photo: %w", err)
		}
		p.Caption = stringPtr(caption)
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

func (r *PhotoRepository) HasCategory(ctx context.Context, tenantID, orderID int64, category models.PhotoCategory) (bool, error) {
	var has bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM service_photos WHERE tenant_id = ? AND order_id = ? AND category = ?)",
		tenantID, orderID, category,
	).Scan(&has)
	if err != nil {
		return false, fmt.Errorf("check %s photo: %w", category, err)
	}
	return has, nil
}
