package dispatch_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"hvac-dispatch/internal/dispatch"
	"hvac-dispatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newGate(certs *fakeCerts, policy string) *dispatch.Gate {
	return dispatch.NewGate(certs, zap.NewNop(), func() time.Time { return fixedNow }, time.UTC, policy)
}

func refrigerantCerts(held ...models.TechnicianCertification) *fakeCerts {
	return &fakeCerts{
		required: map[int64][]models.CertificationType{
			categoryRefrigerant: {{ID: 1, Name: "NR-35"}, {ID: 2, Name: "Handling-R410A"}},
			categoryNoReqs:      {},
		},
		held: map[int64][]models.TechnicianCertification{certifiedID: held},
	}
}

func TestGateValidate(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		held     []models.TechnicianCertification
		category *int64
		valid    bool
		missing  []string
	}{
		{
			name:     "no category",
			category: nil,
			valid:    true,
			missing:  []string{},
		},
		{
			name:     "category without requirements",
			category: ptr(categoryNoReqs),
			valid:    true,
			missing:  []string{},
		},
		{
			name: "only an expired NR-35",
			held: []models.TechnicianCertification{
				{CertificationTypeID: 1, Name: "NR-35", ExpiresOn: date(2026, 3, 9), Status: models.CertificationActive},
			},
			category: ptr(categoryRefrigerant),
			valid:    false,
			missing:  []string{"NR-35", "Handling-R410A"},
		},
		{
			name: "expiring today still counts",
			held: []models.TechnicianCertification{
				{CertificationTypeID: 1, Name: "NR-35", ExpiresOn: date(2026, 3, 10), Status: models.CertificationActive},
				{CertificationTypeID: 2, Name: "Handling-R410A", ExpiresOn: date(2026, 3, 10), Status: models.CertificationActive},
			},
			category: ptr(categoryRefrigerant),
			valid:    true,
			missing:  []string{},
		},
		{
			name: "revoked does not count",
			held: []models.TechnicianCertification{
				{CertificationTypeID: 1, Name: "NR-35", ExpiresOn: date(2030, 1, 1), Status: models.CertificationActive},
				{CertificationTypeID: 2, Name: "Handling-R410A", ExpiresOn: date(2030, 1, 1), Status: models.CertificationRevoked},
			},
			category: ptr(categoryRefrigerant),
			valid:    false,
			missing:  []string{"Handling-R410A"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := newGate(refrigerantCerts(tt.held...), "")
			v, err := gate.Validate(ctx, tenantA, certifiedID, tt.category)
			require.NoError(t, err)
			assert.Equal(t, tt.valid, v.Valid)
			assert.Equal(t, tt.missing, v.Missing)
		})
	}
}

func TestGateValidResultSerializesEmptyMissing(t *testing.T) {
	gate := newGate(refrigerantCerts(
		models.TechnicianCertification{CertificationTypeID: 1, Name: "NR-35", ExpiresOn: date(2027, 1, 1), Status: models.CertificationActive},
		models.TechnicianCertification{CertificationTypeID: 2, Name: "Handling-R410A", ExpiresOn: date(2027, 1, 1), Status: models.CertificationActive},
	), "")
	v, err := gate.Validate(context.Background(), tenantA, certifiedID, ptr(categoryRefrigerant))
	require.NoError(t, err)

	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"valid":true,"missing":[]}`, string(b))
}

func TestGateUnknownCategory(t *testing.T) {
	ctx := context.Background()

	t.Run("fails open by default", func(t *testing.T) {
		v, err := newGate(refrigerantCerts(), "").Validate(ctx, tenantA, certifiedID, ptr(categoryUnknown))
		require.NoError(t, err)
		assert.True(t, v.Valid)
	})

	t.Run("reject policy", func(t *testing.T) {
		_, err := newGate(refrigerantCerts(), dispatch.UnknownCategoryReject).Validate(ctx, tenantA, certifiedID, ptr(categoryUnknown))
		var ve *dispatch.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "hazard_category_id", ve.Field)
	})
}

func TestGateRequire(t *testing.T) {
	err := newGate(refrigerantCerts(), "").Require(context.Background(), tenantA, certifiedID, ptr(categoryRefrigerant))

	var ce *dispatch.CertificationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, certifiedID, ce.TechnicianID)
	assert.Equal(t, categoryRefrigerant, ce.HazardCategoryID)
	assert.Contains(t, err.Error(), "NR-35, Handling-R410A")
}
