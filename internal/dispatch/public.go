package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hvac-dispatch/internal/models"

	"go.uber.org/zap"
)

const (
	ViewLive       = "live"
	ViewCompletion = "completion"
	ViewCancelled  = "cancelled"
)

// OrderSummary is what an anonymous viewer may know about an order. It has
// no internal identifiers.
type OrderSummary struct {
	PublicID       string             `json:"public_id"`
	Type           models.OrderType   `json:"type"`
	Status         models.OrderStatus `json:"status"`
	Priority       models.Priority    `json:"priority"`
	Description    string             `json:"description"`
	Equipment      string             `json:"equipment"`
	ScheduledDate  *time.Time         `json:"scheduled_date"`
	CompletedAt    *time.Time         `json:"completed_at,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	TechnicianName string             `json:"technician_name,omitempty"`
	TrackingActive bool               `json:"tracking_active"`
}

type TimelineEntry struct {
	Kind string    `json:"kind"`
	Note *string   `json:"note,omitempty"`
	Lat  *float64  `json:"lat,omitempty"`
	Lon  *float64  `json:"lon,omitempty"`
	At   time.Time `json:"at"`
}

type PublicPosition struct {
	Lat            float64   `json:"lat"`
	Lon            float64   `json:"lon"`
	CapturedAt     time.Time `json:"captured_at"`
	DistanceMeters *float64  `json:"distance_meters,omitempty"`
}

type PublicPhoto struct {
	URL       string               `json:"url"`
	Category  models.PhotoCategory `json:"category"`
	Caption   *string              `json:"caption,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

type TrackingView struct {
	Kind     string          `json:"kind"`
	Order    OrderSummary    `json:"order"`
	Position *PublicPosition `json:"position,omitempty"`
	Timeline []TimelineEntry `json:"timeline,omitempty"`
	Photos   []PublicPhoto   `json:"photos"`
}

// PublicTracker renders the read-only view behind /track/{publicId}.
// It never writes.
type PublicTracker struct {
	orders    OrderStore
	timeline  *Timeline
	positions PositionStore
	photos    PhotoStore
	users     UserDirectory
	broadcast *Broadcaster
	// refresh is how often an open feed rechecks the order between samples.
	refresh time.Duration
	logger  *zap.Logger
}

func (p *PublicTracker) Render(ctx context.Context, publicID string) (*TrackingView, error) {
	o, err := p.resolve(ctx, publicID)
	if err != nil {
		return nil, err
	}
	return p.render(ctx, o)
}

// FeedUpdate is one push to a public viewer: a fresh view when the order's
// state changed, otherwise a position.
type FeedUpdate struct {
	View     *TrackingView
	Position *PublicPosition
}

// LiveFeed is an opened public view. Updates is closed once the order
// reaches completion or cancellation; the caller must Close the feed.
type LiveFeed struct {
	View    *TrackingView
	updates chan FeedUpdate
	cancel  context.CancelFunc
	done    chan struct{}
}

func (f *LiveFeed) Updates() <-chan FeedUpdate { return f.updates }

// Close stops the feed and releases its position subscription.
func (f *LiveFeed) Close() error {
	f.cancel()
	<-f.done
	return nil
}

// Watch renders the view and keeps following the order while it is live.
// Positions are forwarded only while the order is in progress with
// tracking on, so a viewer never sees the technician after the job ends.
func (p *PublicTracker) Watch(ctx context.Context, publicID string) (*LiveFeed, error) {
	o, err := p.resolve(ctx, publicID)
	if err != nil {
		return nil, err
	}
	view, err := p.render(ctx, o)
	if err != nil {
		return nil, err
	}

	fctx, cancel := context.WithCancel(ctx)
	feed := &LiveFeed{
		View:    view,
		updates: make(chan FeedUpdate, 8),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	if view.Kind != ViewLive {
		close(feed.updates)
		close(feed.done)
		return feed, nil
	}

	w := &feedWatcher{
		tracker:  p,
		publicID: publicID,
		out:      feed.updates,
		state:    feedStateOf(o),
		logger:   p.logger.With(zap.String("public_id", publicID)),
	}
	w.track(fctx, w.state)
	go w.run(fctx, feed.done)
	return feed, nil
}

// feedState is what decides the shape of a public view.
type feedState struct {
	kind     string
	tracking bool
	techID   int64
}

func feedStateOf(o *models.ServiceOrder) feedState {
	st := feedState{kind: viewKind(o)}
	if o.TechnicianID != nil {
		st.techID = *o.TechnicianID
	}
	st.tracking = st.kind == ViewLive && o.Status == models.StatusInProgress && o.TrackingActive && o.TechnicianID != nil
	return st
}

type feedWatcher struct {
	tracker  *PublicTracker
	publicID string
	out      chan FeedUpdate
	state    feedState
	sub      Subscription
	logger   *zap.Logger
}

func (w *feedWatcher) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer close(w.out)
	defer w.unsubscribe()

	ticker := time.NewTicker(w.tracker.refresh)
	defer ticker.Stop()

	for {
		var samples <-chan models.PositionSample
		if w.sub != nil {
			samples = w.sub.Updates()
		}

		select {
		case <-ctx.Done():
			return

		case s, ok := <-samples:
			if !ok {
				// channel gone; the next sync resubscribes
				w.sub = nil
				continue
			}
			o, err := w.tracker.resolve(ctx, w.publicID)
			if err != nil {
				w.logger.Debug("dropping position, order not resolved", zap.Error(err))
				continue
			}
			if !w.sync(ctx, o) {
				return
			}
			if cur := feedStateOf(o); !cur.tracking || s.TechnicianID != cur.techID {
				continue
			}
			if !w.emit(ctx, FeedUpdate{Position: PositionView(s, o.SiteLat, o.SiteLon)}) {
				return
			}

		case <-ticker.C:
			o, err := w.tracker.resolve(ctx, w.publicID)
			if err != nil {
				w.logger.Debug("public view refresh failed", zap.Error(err))
				continue
			}
			if !w.sync(ctx, o) {
				return
			}
		}
	}
}

// sync applies the order's current state and pushes a new view when it
// changed. It returns false once the feed is finished.
func (w *feedWatcher) sync(ctx context.Context, o *models.ServiceOrder) bool {
	next := feedStateOf(o)
	w.track(ctx, next)
	if next == w.state {
		return true
	}

	view, err := w.tracker.render(ctx, o)
	if err != nil {
		w.logger.Warn("render public view failed", zap.Error(err))
		return true
	}
	w.state = next
	if !w.emit(ctx, FeedUpdate{View: view}) {
		return false
	}
	return next.kind == ViewLive
}

// track holds a subscription exactly while st is tracking.
func (w *feedWatcher) track(ctx context.Context, st feedState) {
	if !st.tracking {
		w.unsubscribe()
		return
	}
	if w.sub != nil && st.techID == w.state.techID {
		return
	}
	w.unsubscribe()
	_, sub, err := w.tracker.broadcast.Subscribe(ctx, st.techID)
	if err != nil {
		w.logger.Warn("public position subscribe failed", zap.Error(err))
		return
	}
	w.sub = sub
}

func (w *feedWatcher) unsubscribe() {
	if w.sub == nil {
		return
	}
	if err := w.sub.Close(); err != nil {
		w.logger.Debug("close position subscription", zap.Error(err))
	}
	w.sub = nil
}

func (w *feedWatcher) emit(ctx context.Context, u FeedUpdate) bool {
	select {
	case w.out <- u:
		return true
	case <-ctx.Done():
		return false
	}
}

// PositionView converts a pushed sample into what the public view shows,
// including distance to the site when the order has coordinates.
func PositionView(s models.PositionSample, siteLat, siteLon *float64) *PublicPosition {
	pos := &PublicPosition{Lat: s.Lat, Lon: s.Lon, CapturedAt: s.CapturedAt}
	if siteLat != nil && siteLon != nil {
		d := distanceMeters(s.Lat, s.Lon, *siteLat, *siteLon)
		pos.DistanceMeters = &d
	}
	return pos
}

func (p *PublicTracker) resolve(ctx context.Context, publicID string) (*models.ServiceOrder, error) {
	if publicID == "" {
		return nil, ErrNotFound
	}
	o, err := p.orders.GetByPublicID(ctx, publicID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve public tracking id: %w", err)
	}
	return o, nil
}

func (p *PublicTracker) render(ctx context.Context, o *models.ServiceOrder) (*TrackingView, error) {
	view := &TrackingView{Order: p.summary(ctx, o), Photos: []PublicPhoto{}}

	photos, err := p.photos.List(ctx, o.TenantID, o.ID)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}

	view.Kind = viewKind(o)
	switch view.Kind {
	case ViewCompletion:
		// Never a position here, whatever the tracking flag says.
		for _, ph := range photos {
			if ph.Category == models.PhotoAfter {
				view.Photos = append(view.Photos, toPublicPhoto(ph))
			}
		}
		return view, nil

	case ViewCancelled:
		view.Order.TrackingActive = false
		tl, err := p.entries(ctx, o)
		if err != nil {
			return nil, err
		}
		view.Timeline = tl
		return view, nil
	}

	for _, ph := range photos {
		view.Photos = append(view.Photos, toPublicPhoto(ph))
	}
	tl, err := p.entries(ctx, o)
	if err != nil {
		return nil, err
	}
	view.Timeline = tl

	if o.TrackingActive && o.TechnicianID != nil {
		s, err := p.positions.Get(ctx, *o.TechnicianID)
		if err != nil {
			p.logger.Warn("read position cell failed", zap.Int64("order_id", o.ID), zap.Error(err))
		} else if s != nil {
			view.Position = PositionView(*s, o.SiteLat, o.SiteLon)
		}
	}
	return view, nil
}

func viewKind(o *models.ServiceOrder) string {
	switch o.Status {
	case models.StatusCompleted:
		return ViewCompletion
	case models.StatusCancelled:
		return ViewCancelled
	}
	return ViewLive
}

func (p *PublicTracker) summary(ctx context.Context, o *models.ServiceOrder) OrderSummary {
	sum := OrderSummary{
		PublicID:       o.PublicID,
		Type:           o.Type,
		Status:         o.Status,
		Priority:       o.Priority,
		Description:    o.Description,
		Equipment:      o.Equipment,
		ScheduledDate:  o.ScheduledDate,
		CompletedAt:    o.CompletedAt,
		CreatedAt:      o.CreatedAt,
		TrackingActive: o.TrackingActive && o.Status == models.StatusInProgress,
	}
	if o.TechnicianID != nil {
		u, err := p.users.GetUser(ctx, *o.TechnicianID)
		if err == nil {
			sum.TechnicianName = u.Name
		}
	}
	return sum
}

// entries is the order's creation followed by its events, oldest first.
func (p *PublicTracker) entries(ctx context.Context, o *models.ServiceOrder) ([]TimelineEntry, error) {
	events, err := p.timeline.list(ctx, o.TenantID, o.ID)
	if err != nil {
		return nil, err
	}
	out := make([]TimelineEntry, 0, len(events)+1)
	out = append(out, TimelineEntry{Kind: "created", At: o.CreatedAt})
	for _, e := range events {
		out = append(out, TimelineEntry{Kind: string(e.Kind), Note: e.Note, Lat: e.Lat, Lon: e.Lon, At: e.CreatedAt})
	}
	return out, nil
}

func toPublicPhoto(ph models.ServicePhoto) PublicPhoto {
	return PublicPhoto{URL: ph.URL, Category: ph.Category, Caption: ph.Caption, CreatedAt: ph.CreatedAt}
}
