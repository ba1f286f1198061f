package handler_test

import (
	"context"
	"sync"
	"time"

	"hvac-dispatch/internal/dispatch"
	"hvac-dispatch/internal/models"
	"hvac-dispatch/internal/repository"
)

type memOrders struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]models.ServiceOrder
}

func (m *memOrders) Create(ctx context.Context, o *models.ServiceOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	o.ID = m.nextID
	o.Version = 1
	o.CreatedAt = time.Now().UTC()
	o.UpdatedAt = o.CreatedAt
	m.rows[o.ID] = *o
	return nil
}

func (m *memOrders) Get(ctx context.Context, tenantID, id int64) (*models.ServiceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.rows[id]
	if !ok || o.TenantID != tenantID {
		return nil, dispatch.ErrNotFound
	}
	return &o, nil
}

func (m *memOrders) GetByPublicID(ctx context.Context, publicID string) (*models.ServiceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.rows {
		if o.PublicID == publicID {
			o := o
			return &o, nil
		}
	}
	return nil, dispatch.ErrNotFound
}

func (m *memOrders) List(ctx context.Context, tenantID int64, filter models.OrderFilter) ([]models.ServiceOrder, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.ServiceOrder{}
	for id := int64(1); id <= m.nextID; id++ {
		o, ok := m.rows[id]
		if !ok || o.TenantID != tenantID {
			continue
		}
		if filter.TechnicianID != nil && (o.TechnicianID == nil || *o.TechnicianID != *filter.TechnicianID) {
			continue
		}
		out = append(out, o)
	}
	return out, len(out), nil
}

func (m *memOrders) Update(ctx context.Context, o *models.ServiceOrder, expectedStatus models.OrderStatus, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[o.ID]
	if !ok {
		return dispatch.ErrNotFound
	}
	if cur.Status != expectedStatus || cur.Version != expectedVersion {
		return dispatch.ErrConcurrentUpdate
	}
	o.Version = expectedVersion + 1
	m.rows[o.ID] = *o
	return nil
}

func (m *memOrders) HasHistory(ctx context.Context, tenantID, id int64) (bool, error) {
	return false, nil
}

func (m *memOrders) Delete(ctx context.Context, tenantID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

func (m *memOrders) get(id int64) models.ServiceOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id]
}

type memEvents struct {
	mu   sync.Mutex
	rows []models.TrackingEvent
}

func (m *memEvents) Append(ctx context.Context, e *models.TrackingEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.rows) + 1)
	e.CreatedAt = time.Now().UTC()
	m.rows = append(m.rows, *e)
	return nil
}

func (m *memEvents) List(ctx context.Context, tenantID, orderID int64) ([]models.TrackingEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.TrackingEvent{}
	for _, e := range m.rows {
		if e.OrderID == orderID && e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out, nil
}

type memPhotos struct {
	mu   sync.Mutex
	rows []models.ServicePhoto
}

func (m *memPhotos) Create(ctx context.Context, p *models.ServicePhoto) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = int64(len(m.rows) + 1)
	p.CreatedAt = time.Now().UTC()
	m.rows = append(m.rows, *p)
	return nil
}

func (m *memPhotos) List(ctx context.Context, tenantID, orderID int64) ([]models.ServicePhoto, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.ServicePhoto{}
	for _, p := range m.rows {
		if p.OrderID == orderID && p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memPhotos) HasCategory(ctx context.Context, tenantID, orderID int64, category models.PhotoCategory) (bool, error) {
	photos, _ := m.List(ctx, tenantID, orderID)
	for _, p := range photos {
		if p.Category == category {
			return true, nil
		}
	}
	return false, nil
}

type memCerts struct {
	required map[int64][]models.CertificationType
	held     map[int64][]models.TechnicianCertification
}

func (m *memCerts) RequiredCertifications(ctx context.Context, tenantID, categoryID int64) ([]models.CertificationType, bool, error) {
	reqs, ok := m.required[categoryID]
	return reqs, ok, nil
}

func (m *memCerts) ActiveCertifications(ctx context.Context, technicianID int64, today time.Time) ([]models.TechnicianCertification, error) {
	return m.held[technicianID], nil
}

func (m *memCerts) ListForTechnician(ctx context.Context, tenantID, technicianID int64) ([]models.TechnicianCertification, error) {
	out := []models.TechnicianCertification{}
	return append(out, m.held[technicianID]...), nil
}

type memInventory struct{}

func (memInventory) RecordConsumption(ctx context.Context, tenantID, itemID, orderID int64, quantity int, reason string) (*models.InventoryConsumptionRecord, error) {
	if itemID == 404 {
		return nil, dispatch.ErrNotFound
	}
	return &models.InventoryConsumptionRecord{ID: itemID, TenantID: tenantID, OrderID: orderID, ItemID: itemID, Quantity: quantity, Reason: reason}, nil
}

type memUsers struct {
	mu   sync.Mutex
	rows map[int64]models.User
}

func (m *memUsers) GetUser(ctx context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return nil, dispatch.ErrNotFound
	}
	return &u, nil
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.rows {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, dispatch.ErrNotFound
}

func (m *memUsers) List(ctx context.Context, tenantID int64, role, isBanned, search string, page, limit int) ([]models.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.User{}
	for _, u := range m.rows {
		if u.TenantID == tenantID && (role == "" || u.Role == role) {
			out = append(out, u)
		}
	}
	return out, len(out), nil
}

func (m *memUsers) Create(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	u.ID = int64(len(m.rows) + 100)
	m.rows[u.ID] = *u
	return nil
}

func (m *memUsers) SetBanned(ctx context.Context, tenantID, id int64, banned bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok || u.TenantID != tenantID {
		return dispatch.ErrNotFound
	}
	u.IsBanned = "n"
	if banned {
		u.IsBanned = "y"
	}
	m.rows[id] = u
	return nil
}

type memCustomers map[int64]models.Customer

func (m memCustomers) Get(ctx context.Context, tenantID, id int64) (*models.Customer, error) {
	c, ok := m[id]
	if !ok || c.TenantID != tenantID {
		return nil, dispatch.ErrNotFound
	}
	return &c, nil
}
