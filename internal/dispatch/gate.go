package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	UnknownCategoryAllow  = "allow"
	UnknownCategoryReject = "reject"
)

type Validation struct {
	Valid   bool     `json:"valid"`
	Missing []string `json:"missing"`
}

// Gate decides whether a technician may be bound to an order carrying a
// hazard category. It only reads; every call is evaluated against "today".
type Gate struct {
	certs           CertificationStore
	logger          *zap.Logger
	now             func() time.Time
	loc             *time.Location
	unknownCategory string
}

func NewGate(certs CertificationStore, logger *zap.Logger, now func() time.Time, loc *time.Location, unknownCategory string) *Gate {
	if loc == nil {
		loc = time.UTC
	}
	if unknownCategory != UnknownCategoryReject {
		unknownCategory = UnknownCategoryAllow
	}
	return &Gate{certs: certs, logger: logger, now: now, loc: loc, unknownCategory: unknownCategory}
}

func (g *Gate) today() time.Time {
	y, m, d := g.now().In(g.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, g.loc)
}

func (g *Gate) Validate(ctx context.Context, tenantID, technicianID int64, hazardCategoryID *int64) (Validation, error) {
	if hazardCategoryID == nil {
		return Validation{Valid: true, Missing: []string{}}, nil
	}

	reqs, found, err := g.certs.RequiredCertifications(ctx, tenantID, *hazardCategoryID)
	if err != nil {
		return Validation{}, fmt.Errorf("load requirements for hazard category %d: %w", *hazardCategoryID, err)
	}

	if !found {
		// Open question: an unresolved category currently does not block
		// assignment. GATE_UNKNOWN_CATEGORY=reject hardens this.
		g.logger.Warn("hazard category not found for tenant",
			zap.Int64("tenant_id", tenantID),
			zap.Int64("hazard_category_id", *hazardCategoryID),
			zap.String("policy", g.unknownCategory),
		)
		if g.unknownCategory == UnknownCategoryReject {
			return Validation{}, &ValidationError{
				Field:   "hazard_category_id",
				Message: fmt.Sprintf("hazard category %d does not exist", *hazardCategoryID),
			}
		}
		return Validation{Valid: true, Missing: []string{}}, nil
	}

	if len(reqs) == 0 {
		return Validation{Valid: true, Missing: []string{}}, nil
	}

	today := g.today()
	held, err := g.certs.ActiveCertifications(ctx, technicianID, today)
	if err != nil {
		return Validation{}, fmt.Errorf("load certifications for technician %d: %w", technicianID, err)
	}

	covered := make(map[int64]bool, len(held))
	for _, c := range held {
		if c.CoversOn(today) {
			covered[c.CertificationTypeID] = true
		}
	}

	missing := []string{}
	for _, r := range reqs {
		if !covered[r.ID] {
			missing = append(missing, r.Name)
		}
	}

	return Validation{Valid: len(missing) == 0, Missing: missing}, nil
}

// Require runs Validate and turns a failed check into *CertificationError.
func (g *Gate) Require(ctx context.Context, tenantID, technicianID int64, hazardCategoryID *int64) error {
	v, err := g.Validate(ctx, tenantID, technicianID, hazardCategoryID)
	if err != nil {
		return err
	}
	if !v.Valid {
		return &CertificationError{
			TechnicianID:     technicianID,
			HazardCategoryID: *hazardCategoryID,
			Missing:          v.Missing,
		}
	}
	return nil
}
