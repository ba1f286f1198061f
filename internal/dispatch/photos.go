package dispatch

import (
	"context"
	"fmt"
	"net/http"

	"hvac-dispatch/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxPhotoBytes = 10 << 20

var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Photos stores service photos in object storage and records them on the
// order. Rows are append-only.
type Photos struct {
	orders  OrderStore
	photos  PhotoStore
	objects ObjectStore
	logger  *zap.Logger
}

func (p *Photos) Upload(ctx context.Context, actor models.Actor, orderID int64, category models.PhotoCategory, caption *string, file models.Upload) (*models.ServicePhoto, error) {
	if !category.Valid() {
		return nil, &ValidationError{Field: "category", Message: fmt.Sprintf("unknown photo category %q", category)}
	}
	if category == models.PhotoSignature {
		return nil, fmt.Errorf("%w: signatures are captured by the completion workflow", ErrCompletionWorkflow)
	}
	o, err := loadOrder(ctx, p.orders, actor, orderID)
	if err != nil {
		return nil, err
	}
	return p.store(ctx, o, category, caption, file)
}

func (p *Photos) List(ctx context.Context, actor models.Actor, orderID int64) ([]models.ServicePhoto, error) {
	o, err := loadOrder(ctx, p.orders, actor, orderID)
	if err != nil {
		return nil, err
	}
	list, err := p.photos.List(ctx, o.TenantID, o.ID)
	if err != nil {
		return nil, fmt.Errorf("list photos of order %d: %w", o.ID, err)
	}
	if list == nil {
		list = []models.ServicePhoto{}
	}
	return list, nil
}

func (p *Photos) store(ctx context.Context, o *models.ServiceOrder, category models.PhotoCategory, caption *string, file models.Upload) (*models.ServicePhoto, error) {
	ct, ext, err := checkImage(file)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("tenants/%d/orders/%d/%s/%s%s", o.TenantID, o.ID, category, uuid.NewString(), ext)
	url, err := p.objects.Put(ctx, key, ct, file.Data)
	if err != nil {
		return nil, fmt.Errorf("store %s photo for order %d: %w", category, o.ID, err)
	}

	ph := &models.ServicePhoto{
		OrderID:  o.ID,
		TenantID: o.TenantID,
		URL:      url,
		Category: category,
		Caption:  caption,
	}
	if err := p.photos.Create(ctx, ph); err != nil {
		// the object stays behind; it is unreferenced but harmless
		p.logger.Warn("photo row insert failed after upload", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("record %s photo for order %d: %w", category, o.ID, err)
	}
	return ph, nil
}

// checkImage sniffs the payload rather than trusting the client's header.
func checkImage(file models.Upload) (contentType, ext string, err error) {
	if len(file.Data) == 0 {
		return "", "", &ValidationError{Field: "file", Message: "empty upload"}
	}
	if len(file.Data) > maxPhotoBytes {
		return "", "", &ValidationError{Field: "file", Message: "file exceeds 10MB"}
	}
	ct := http.DetectContentType(file.Data)
	ext, ok := imageExt[ct]
	if !ok {
		return "", "", &ValidationError{Field: "file", Message: fmt.Sprintf("unsupported content type %q", ct)}
	}
	return ct, ext, nil
}
