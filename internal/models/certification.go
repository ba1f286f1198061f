package models

import "time"

const (
	CertificationActive  = "active"
	CertificationRevoked = "revoked"
)

type CertificationType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type TechnicianCertification struct {
	ID                  int64     `json:"id"`
	TechnicianID        int64     `json:"technician_id"`
	CertificationTypeID int64     `json:"certification_type_id"`
	Name                string    `json:"name"`
	ExpiresOn           time.Time `json:"expires_on"`
	Status              string    `json:"status"`
}

// CoversOn reports whether the certification is usable on the given day.
// Expiry is inclusive: a certificate expiring today still counts.
func (c TechnicianCertification) CoversOn(day time.Time) bool {
	if c.Status != CertificationActive {
		return false
	}
	y, m, d := c.ExpiresOn.Date()
	expiry := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	return !expiry.Before(day)
}
