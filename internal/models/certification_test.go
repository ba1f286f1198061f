package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCoversOn(t *testing.T) {
	today := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		cert TechnicianCertification
		want bool
	}{
		{"expires today", TechnicianCertification{Status: CertificationActive, ExpiresOn: today}, true},
		{"expires later", TechnicianCertification{Status: CertificationActive, ExpiresOn: today.AddDate(0, 1, 0)}, true},
		{"expired yesterday", TechnicianCertification{Status: CertificationActive, ExpiresOn: today.AddDate(0, 0, -1)}, false},
		{"revoked", TechnicianCertification{Status: CertificationRevoked, ExpiresOn: today.AddDate(1, 0, 0)}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.cert.CoversOn(today))
		})
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusOpen.Terminal())
	assert.False(t, StatusInProgress.Terminal())
	assert.False(t, OrderStatus("done").Valid())
}
