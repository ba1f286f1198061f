package dispatch_test

import (
	"context"
	"testing"
	"time"

	"hvac-dispatch/internal/dispatch"
	"hvac-dispatch/internal/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	tenantA = int64(1)
	tenantB = int64(2)

	dispatcherID  = int64(1)
	certifiedID   = int64(10)
	uncertifiedID = int64(11)
	bannedID      = int64(12)
	foreignTechID = int64(20)

	categoryRefrigerant = int64(5)
	categoryNoReqs      = int64(6)
	categoryUnknown     = int64(99)
)

var (
	fixedNow   = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	pngPayload = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDRfake-image-body")

	dispatcher = models.Actor{UserID: dispatcherID, TenantID: tenantA, Role: models.RoleDispatcher, Name: "Dora"}
	technician = models.Actor{UserID: certifiedID, TenantID: tenantA, Role: models.RoleTechnician, Name: "Rafael"}
	otherTech  = models.Actor{UserID: uncertifiedID, TenantID: tenantA, Role: models.RoleTechnician, Name: "Bruno"}
)

type testEnv struct {
	orders    *fakeOrders
	certs     *fakeCerts
	events    *fakeEvents
	photos    *fakePhotos
	inventory *fakeInventory
	positions *fakePositions
	channel   *fakeChannel
	objects   *fakeObjects
	users     fakeUsers
	publisher *fakePublisher
	engine    *dispatch.Engine
}

func newTestEnv(t *testing.T, opts ...func(*dispatch.Options)) *testEnv {
	t.Helper()

	env := &testEnv{
		orders: newFakeOrders(),
		certs: &fakeCerts{
			required: map[int64][]models.CertificationType{
				categoryRefrigerant: {{ID: 1, Name: "NR-35"}, {ID: 2, Name: "Handling-R410A"}},
				categoryNoReqs:      {},
			},
			held: map[int64][]models.TechnicianCertification{
				certifiedID: {
					{ID: 1, TechnicianID: certifiedID, CertificationTypeID: 1, Name: "NR-35", ExpiresOn: date(2027, 1, 1), Status: models.CertificationActive},
					{ID: 2, TechnicianID: certifiedID, CertificationTypeID: 2, Name: "Handling-R410A", ExpiresOn: date(2027, 1, 1), Status: models.CertificationActive},
				},
				uncertifiedID: {
					{ID: 3, TechnicianID: uncertifiedID, CertificationTypeID: 1, Name: "NR-35", ExpiresOn: date(2026, 3, 9), Status: models.CertificationActive},
				},
			},
		},
		events:    &fakeEvents{clock: fixedNow},
		photos:    &fakePhotos{},
		inventory: &fakeInventory{failFor: map[int64]bool{}},
		positions: &fakePositions{cells: map[int64]models.PositionSample{}},
		channel:   &fakeChannel{subs: map[int64][]*fakeSub{}},
		objects:   &fakeObjects{},
		users: fakeUsers{
			dispatcherID:  {ID: dispatcherID, TenantID: tenantA, Name: "Dora", Role: models.RoleDispatcher, IsBanned: "n"},
			certifiedID:   {ID: certifiedID, TenantID: tenantA, Name: "Rafael", Role: models.RoleTechnician, IsBanned: "n"},
			uncertifiedID: {ID: uncertifiedID, TenantID: tenantA, Name: "Bruno", Role: models.RoleTechnician, IsBanned: "n"},
			bannedID:      {ID: bannedID, TenantID: tenantA, Name: "Caio", Role: models.RoleTechnician, IsBanned: "y"},
			foreignTechID: {ID: foreignTechID, TenantID: tenantB, Name: "Ana", Role: models.RoleTechnician, IsBanned: "n"},
		},
		publisher: &fakePublisher{},
	}

	opt := dispatch.Options{
		LocateTimeout: 50 * time.Millisecond,
		Now:           func() time.Time { return fixedNow },
		Location:      time.UTC,
	}
	for _, o := range opts {
		o(&opt)
	}

	env.engine = dispatch.NewEngine(dispatch.Deps{
		Orders:         env.orders,
		Certifications: env.certs,
		Events:         env.events,
		Photos:         env.photos,
		Inventory:      env.inventory,
		Positions:      env.positions,
		Channel:        env.channel,
		Objects:        env.objects,
		Publisher:      env.publisher,
		Users:          env.users,
		Logger:         zap.NewNop(),
	}, opt)
	return env
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

// openOrder creates an open order, optionally assigned and hazardous.
func (e *testEnv) openOrder(t *testing.T, techID *int64, category *int64) *models.ServiceOrder {
	t.Helper()
	o, err := e.engine.Orders.Create(context.Background(), dispatcher, models.CreateOrderRequest{
		CustomerID:       7,
		TechnicianID:     techID,
		Type:             models.TypeRepair,
		HazardCategoryID: category,
		Description:      "Split unit leaking",
		SiteLat:          ptr(-23.5505),
		SiteLon:          ptr(-46.6333),
	})
	require.NoError(t, err)
	return o
}

// startedOrder is an in_progress order for the certified technician with
// tracking off.
func (e *testEnv) startedOrder(t *testing.T) *models.ServiceOrder {
	t.Helper()
	o := e.openOrder(t, ptr(certifiedID), nil)
	res, err := e.engine.Orders.Accept(context.Background(), technician, o.ID, dispatch.AcceptScheduled, nil)
	require.NoError(t, err)
	return res.Order
}

func (e *testEnv) signature() *models.Upload {
	return &models.Upload{Filename: "signature.png", ContentType: "image/png", Data: pngPayload}
}

func fixedAt(lat, lon float64) dispatch.Locator {
	return dispatch.FixedLocator(&lat, &lon)
}
