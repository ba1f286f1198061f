package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hvac-dispatch/internal/models"

	"go.uber.org/zap"
)

type CertificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewCertificationRepository(db *sql.DB, logger *zap.Logger) *CertificationRepository {
	return &CertificationRepository{db: db, logger: logger}
}

// RequiredCertifications lists the certification types a hazard category
// demands, in the category's configured order.
func (r *CertificationRepository) RequiredCertifications(ctx context.Context, tenantID, categoryID int64) ([]models.CertificationType, bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		"SELECT id FROM hazard_categories WHERE id = ? AND tenant_id = ?", categoryID, tenantID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load hazard category %d: %w", categoryID, err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT ct.id, ct.name
		FROM hazard_category_requirements r
		JOIN certification_types ct ON ct.id = r.certification_type_id
		WHERE r.hazard_category_id = ?
		ORDER BY r.position ASC, ct.id ASC`, categoryID)
	if err != nil {
		return nil, false, fmt.Errorf("load requirements of hazard category %d: %w", categoryID, err)
	}
	defer rows.Close()

	reqs := []models.CertificationType{}
	for rows.Next() {
		var ct models.CertificationType
		if err := rows.Scan(&ct.ID, &ct.Name); err != nil {
			return nil, false, fmt.Errorf("scan certification type: %w", err)
		}
		reqs = append(reqs, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return reqs, true, nil
}

// ActiveCertifications returns the technician's certifications that are
// active and not expired on today. Nothing is cached between calls.
func (r *CertificationRepository) ActiveCertifications(ctx context.Context, technicianID int64, today time.Time) ([]models.TechnicianCertification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT tc.id, tc.technician_id, tc.certification_type_id, ct.name, tc.expires_on, tc.status
		FROM technician_certifications tc
		JOIN certification_types ct ON ct.id = tc.certification_type_id
		WHERE tc.technician_id = ? AND tc.status = ? AND tc.expires_on >= ?
		ORDER BY tc.expires_on ASC`,
		technicianID, models.CertificationActive, today.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("load certifications of technician %d: %w", technicianID, err)
	}
	defer rows.Close()

	certs := []models.TechnicianCertification{}
	for rows.Next() {
		var c models.TechnicianCertification
		if err := rows.Scan(&c.ID, &c.TechnicianID, &c.CertificationTypeID, &c.Name, &c.ExpiresOn, &c.Status); err != nil {
			return nil, fmt.Errorf("scan technician certification: %w", err)
		}
		certs = append(certs, c)
	}
	return certs, rows.Err()
}

// ListForTechnician returns every certification of the technician,
// including revoked and expired ones.
func (r *CertificationRepository) ListForTechnician(ctx context.Context, tenantID, technicianID int64) ([]models.TechnicianCertification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT tc.id, tc.technician_id, tc.certification_type_id, ct.name, tc.expires_on, tc.status
		FROM technician_certifications tc
		JOIN certification_types ct ON ct.id = tc.certification_type_id
		WHERE tc.technician_id = ? AND ct.tenant_id = ?
		ORDER BY ct.name ASC`, technicianID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list certifications of technician %d: %w", technicianID, err)
	}
	defer rows.Close()

	certs := []models.TechnicianCertification{}
	for rows.Next() {
		var c models.TechnicianCertification
		if err := rows.Scan(&c.ID, &c.TechnicianID, &c.CertificationTypeID, &c.Name, &c.ExpiresOn, &c.Status); err != nil {
			return nil, fmt.Errorf("scan technician certification: %w", err)
		}
		certs = append(certs, c)
	}
	return certs, rows.Err()
}
