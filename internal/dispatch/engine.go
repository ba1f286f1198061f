package dispatch

import (
	"time"

	"go.uber.org/zap"
)

// Deps are the collaborators the engine is built from. Publisher may be nil.
type Deps struct {
	Orders         OrderStore
	Certifications CertificationStore
	Events         EventStore
	Photos         PhotoStore
	Inventory      Inventory
	Positions      PositionStore
	Channel        PositionChannel
	Objects        ObjectStore
	Publisher      LifecyclePublisher
	Users          UserDirectory
	Logger         *zap.Logger
}

type Options struct {
	LocateTimeout   time.Duration
	UnknownCategory string
	Location        *time.Location
	Now             func() time.Time

	// PublicRefresh is how often an open public feed rechecks its order.
	PublicRefresh time.Duration
	// LifecycleTimeout bounds one lifecycle publish including its ack.
	LifecycleTimeout time.Duration
}

// Engine groups the dispatch components around one set of stores.
type Engine struct {
	Gate       *Gate
	Orders     *Orders
	Timeline   *Timeline
	Broadcast  *Broadcaster
	Public     *PublicTracker
	Photos     *Photos
	Completion *Completion
}

func NewEngine(d Deps, opt Options) *Engine {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opt.Now
	if now == nil {
		now = time.Now
	}
	loc := opt.Location
	if loc == nil {
		loc = time.UTC
	}
	if opt.LocateTimeout <= 0 {
		opt.LocateTimeout = 10 * time.Second
	}
	if opt.PublicRefresh <= 0 {
		opt.PublicRefresh = 5 * time.Second
	}
	if opt.LifecycleTimeout <= 0 {
		opt.LifecycleTimeout = 3 * time.Second
	}

	life := lifecycle{pub: d.Publisher, logger: logger, now: now, timeout: opt.LifecycleTimeout}
	gate := NewGate(d.Certifications, logger.Named("gate"), now, loc, opt.UnknownCategory)
	timeline := &Timeline{orders: d.Orders, events: d.Events, logger: logger.Named("timeline")}
	broadcast := &Broadcaster{
		orders:        d.Orders,
		timeline:      timeline,
		positions:     d.Positions,
		channel:       d.Channel,
		users:         d.Users,
		logger:        logger.Named("broadcast"),
		now:           now,
		locateTimeout: opt.LocateTimeout,
	}
	photos := &Photos{orders: d.Orders, photos: d.Photos, objects: d.Objects, logger: logger.Named("photos")}

	return &Engine{
		Gate: gate,
		Orders: &Orders{
			store:     d.Orders,
			gate:      gate,
			users:     d.Users,
			timeline:  timeline,
			broadcast: broadcast,
			life:      life,
			logger:    logger.Named("orders"),
			now:       now,
			loc:       loc,
		},
		Timeline:  timeline,
		Broadcast: broadcast,
		Public: &PublicTracker{
			orders:    d.Orders,
			timeline:  timeline,
			positions: d.Positions,
			photos:    d.Photos,
			users:     d.Users,
			broadcast: broadcast,
			refresh:   opt.PublicRefresh,
			logger:    logger.Named("public"),
		},
		Photos: photos,
		Completion: &Completion{
			orders:    d.Orders,
			photos:    photos,
			inventory: d.Inventory,
			timeline:  timeline,
			positions: d.Positions,
			life:      life,
			logger:    logger.Named("completion"),
			now:       now,
		},
	}
}
