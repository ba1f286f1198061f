package models

import "time"

type PhotoCategory string

const (
	PhotoBefore    PhotoCategory = "before"
	PhotoDiagnosis PhotoCategory = "diagnosis"
	PhotoProgress  PhotoCategory = "progress"
	PhotoAfter     PhotoCategory = "after"
	PhotoProblem   PhotoCategory = "problem"
	PhotoSignature PhotoCategory = "signature"
)

func (c PhotoCategory) Valid() bool {
	switch c {
	case PhotoBefore, PhotoDiagnosis, PhotoProgress, PhotoAfter, PhotoProblem, PhotoSignature:
		return true
	}
	return false
}

type ServicePhoto struct {
	ID        int64         `json:"id"`
	OrderID   int64         `json:"order_id"`
	TenantID  int64         `json:"tenant_id"`
	URL       string        `json:"url"`
	Category  PhotoCategory `json:"category"`
	Caption   *string       `json:"caption,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Upload is a file received from a client before it reaches object storage.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}
