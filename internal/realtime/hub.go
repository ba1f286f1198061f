package realtime

import (
	"context"
	"errors"
	"sync"

	"hvac-dispatch/internal/dispatch"
	"hvac-dispatch/internal/models"

	"go.uber.org/zap"
)

var ErrHubClosed = errors.New("realtime hub closed")

// Hub fans position samples out to in-process subscribers keyed by
// technician. All subscriber bookkeeping happens on the Run goroutine.
type Hub struct {
	register   chan *subscription
	unregister chan *subscription
	broadcast  chan models.PositionSample
	subs       map[int64]map[*subscription]bool
	done       chan struct{}
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		register:   make(chan *subscription),
		unregister: make(chan *subscription),
		broadcast:  make(chan models.PositionSample, 64),
		subs:       make(map[int64]map[*subscription]bool),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run owns the subscriber registry until ctx is cancelled, then closes
// every subscriber channel.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for _, set := range h.subs {
			for s := range set {
				close(s.ch)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case s := <-h.register:
			set, ok := h.subs[s.technicianID]
			if !ok {
				set = make(map[*subscription]bool)
				h.subs[s.technicianID] = set
			}
			set[s] = true
		case s := <-h.unregister:
			if set, ok := h.subs[s.technicianID]; ok && set[s] {
				delete(set, s)
				close(s.ch)
				if len(set) == 0 {
					delete(h.subs, s.technicianID)
				}
			}
		case sample := <-h.broadcast:
			for s := range h.subs[sample.TechnicianID] {
				s.offer(sample)
			}
		}
	}
}

func (h *Hub) Publish(ctx context.Context, s models.PositionSample) error {
	select {
	case <-h.done:
		return ErrHubClosed
	default:
	}
	select {
	case h.broadcast <- s:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) Subscribe(ctx context.Context, technicianID int64) (dispatch.Subscription, error) {
	s := &subscription{hub: h, technicianID: technicianID, ch: make(chan models.PositionSample, 16)}
	select {
	case h.register <- s:
		return s, nil
	case <-h.done:
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type subscription struct {
	hub          *Hub
	technicianID int64
	ch           chan models.PositionSample
	once         sync.Once
}

func (s *subscription) Updates() <-chan models.PositionSample { return s.ch }

func (s *subscription) Close() error {
	s.once.Do(func() {
		select {
		case s.hub.unregister <- s:
		case <-s.hub.done:
		}
	})
	return nil
}

// offer never blocks the hub: a slow reader loses its oldest sample.
func (s *subscription) offer(sample models.PositionSample) {
	select {
	case s.ch <- sample:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- sample:
	default:
	}
}
