package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"hvac-dispatch/internal/dispatch"
	"hvac-dispatch/internal/models"
)

// in-memory stores for unit tests

type fakeOrders struct {
	mu      sync.Mutex
	nextID  int64
	rows    map[int64]models.ServiceOrder
	history map[int64]bool
	// beforeUpdate runs inside Update, before the version check.
	beforeUpdate func(id int64)
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{rows: map[int64]models.ServiceOrder{}, history: map[int64]bool{}}
}

func (f *fakeOrders) Create(ctx context.Context, o *models.ServiceOrder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	o.ID = f.nextID
	o.Version = 1
	o.CreatedAt = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	o.UpdatedAt = o.CreatedAt
	f.rows[o.ID] = *o
	return nil
}

func (f *fakeOrders) Get(ctx context.Context, tenantID, id int64) (*models.ServiceOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.rows[id]
	if !ok || o.TenantID != tenantID {
		return nil, dispatch.ErrNotFound
	}
	return &o, nil
}

func (f *fakeOrders) GetByPublicID(ctx context.Context, publicID string) (*models.ServiceOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.rows {
		if o.PublicID == publicID {
			o := o
			return &o, nil
		}
	}
	return nil, dispatch.ErrNotFound
}

func (f *fakeOrders) List(ctx context.Context, tenantID int64, filter models.OrderFilter) ([]models.ServiceOrder, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ServiceOrder
	for _, o := range f.rows {
		if o.TenantID != tenantID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.TechnicianID != nil && (o.TechnicianID == nil || *o.TechnicianID != *filter.TechnicianID) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f *fakeOrders) Update(ctx context.Context, o *models.ServiceOrder, expectedStatus models.OrderStatus, expectedVersion int64) error {
	if f.beforeUpdate != nil {
		f.beforeUpdate(o.ID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.rows[o.ID]
	if !ok || cur.TenantID != o.TenantID {
		return dispatch.ErrNotFound
	}
	if cur.Status != expectedStatus || cur.Version != expectedVersion {
		return dispatch.ErrConcurrentUpdate
	}
	if cur.CompletedAt != nil {
		o.CompletedAt = cur.CompletedAt
	}
	o.Version = expectedVersion + 1
	f.rows[o.ID] = *o
	return nil
}

func (f *fakeOrders) HasHistory(ctx context.Context, tenantID, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history[id], nil
}

func (f *fakeOrders) Delete(ctx context.Context, tenantID, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakeOrders) get(id int64) models.ServiceOrder {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id]
}

func (f *fakeOrders) put(o models.ServiceOrder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[o.ID] = o
}

type fakeCerts struct {
	// category id -> required types; a missing key means unknown category
	required map[int64][]models.CertificationType
	held     map[int64][]models.TechnicianCertification
}

func (f *fakeCerts) RequiredCertifications(ctx context.Context, tenantID, categoryID int64) ([]models.CertificationType, bool, error) {
	reqs, ok := f.required[categoryID]
	return reqs, ok, nil
}

// ActiveCertifications filters like the SQL store does.
func (f *fakeCerts) ActiveCertifications(ctx context.Context, technicianID int64, today time.Time) ([]models.TechnicianCertification, error) {
	var out []models.TechnicianCertification
	for _, c := range f.held[technicianID] {
		if c.CoversOn(today) {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeEvents struct {
	mu     sync.Mutex
	rows   []models.TrackingEvent
	clock  time.Time
	failOn models.EventKind
}

func (f *fakeEvents) Append(ctx context.Context, e *models.TrackingEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != "" && e.Kind == f.failOn {
		return errors.New("events table unavailable")
	}
	f.clock = f.clock.Add(time.Second)
	e.ID = int64(len(f.rows) + 1)
	e.CreatedAt = f.clock
	f.rows = append(f.rows, *e)
	return nil
}

func (f *fakeEvents) List(ctx context.Context, tenantID, orderID int64) ([]models.TrackingEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.TrackingEvent
	for _, e := range f.rows {
		if e.OrderID == orderID && e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEvents) kinds(orderID int64) []models.EventKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.EventKind
	for _, e := range f.rows {
		if e.OrderID == orderID {
			out = append(out, e.Kind)
		}
	}
	return out
}

type fakePhotos struct {
	mu   sync.Mutex
	rows []models.ServicePhoto
}

func (f *fakePhotos) Create(ctx context.Context, p *models.ServicePhoto) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = int64(len(f.rows) + 1)
	p.CreatedAt = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	f.rows = append(f.rows, *p)
	return nil
}

func (f *fakePhotos) List(ctx context.Context, tenantID, orderID int64) ([]models.ServicePhoto, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ServicePhoto
	for _, p := range f.rows {
		if p.OrderID == orderID && p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePhotos) HasCategory(ctx context.Context, tenantID, orderID int64, category models.PhotoCategory) (bool, error) {
	list, _ := f.List(ctx, tenantID, orderID)
	for _, p := range list {
		if p.Category == category {
			return true, nil
		}
	}
	return false, nil
}

type fakeInventory struct {
	mu      sync.Mutex
	failFor map[int64]bool
	calls   []models.InventoryConsumptionRecord
}

func (f *fakeInventory) RecordConsumption(ctx context.Context, tenantID, itemID, orderID int64, quantity int, reason string) (*models.InventoryConsumptionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[itemID] {
		return nil, fmt.Errorf("stock item %d: insufficient quantity", itemID)
	}
	rec := models.InventoryConsumptionRecord{
		ID:       int64(len(f.calls) + 1),
		TenantID: tenantID,
		OrderID:  orderID,
		ItemID:   itemID,
		Quantity: quantity,
		Reason:   reason,
	}
	f.calls = append(f.calls, rec)
	return &rec, nil
}

type fakePositions struct {
	mu    sync.Mutex
	cells map[int64]models.PositionSample
}

func (f *fakePositions) Set(ctx context.Context, s models.PositionSample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cells[s.TechnicianID] = s
	return nil
}

func (f *fakePositions) Get(ctx context.Context, technicianID int64) (*models.PositionSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.cells[technicianID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

type fakeSub struct {
	ch     chan models.PositionSample
	closed atomic.Bool
}

func (s *fakeSub) Updates() <-chan models.PositionSample { return s.ch }

func (s *fakeSub) Close() error {
	s.closed.Store(true)
	return nil
}

type fakeChannel struct {
	mu        sync.Mutex
	published []models.PositionSample
	subs      map[int64][]*fakeSub
}

func (f *fakeChannel) Publish(ctx context.Context, s models.PositionSample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, s)
	for _, sub := range f.subs[s.TechnicianID] {
		select {
		case sub.ch <- s:
		default:
		}
	}
	return nil
}

func (f *fakeChannel) Subscribe(ctx context.Context, technicianID int64) (dispatch.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := &fakeSub{ch: make(chan models.PositionSample, 8)}
	f.subs[technicianID] = append(f.subs[technicianID], sub)
	return sub, nil
}

// openSubs counts the technician's subscriptions not yet closed.
func (f *fakeChannel) openSubs(technicianID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, sub := range f.subs[technicianID] {
		if !sub.closed.Load() {
			n++
		}
	}
	return n
}

type fakeObjects struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeObjects) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return "https://files.test/" + key, nil
}

type fakeUsers map[int64]models.User

func (f fakeUsers) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, dispatch.ErrNotFound
	}
	return &u, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.OrderLifecycleEvent
	// stall makes every publish wait for its context, like a broker that
	// never acks.
	stall bool
}

func (f *fakePublisher) PublishLifecycle(ctx context.Context, ev models.OrderLifecycleEvent) error {
	f.mu.Lock()
	f.events = append(f.events, ev)
	stall := f.stall
	f.mu.Unlock()

	if stall {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}
