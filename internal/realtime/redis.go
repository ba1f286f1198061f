package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"hvac-dispatch/internal/dispatch"
	"hvac-dispatch/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// A cell outlives any realistic shift; stale cells expire on their own.
const positionTTL = 12 * time.Hour

func cellKey(technicianID int64) string {
	return fmt.Sprintf("tracking:cell:%d", technicianID)
}

func channelName(technicianID int64) string {
	return fmt.Sprintf("tracking:position:%d", technicianID)
}

// RedisPositions stores one position cell per technician so every API
// instance reads the same latest sample.
type RedisPositions struct {
	client *redis.Client
}

func NewRedisPositions(client *redis.Client) *RedisPositions {
	return &RedisPositions{client: client}
}

func (r *RedisPositions) Set(ctx context.Context, s models.PositionSample) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, cellKey(s.TechnicianID), payload, positionTTL).Err()
}

func (r *RedisPositions) Get(ctx context.Context, technicianID int64) (*models.PositionSample, error) {
	raw, err := r.client.Get(ctx, cellKey(technicianID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s models.PositionSample
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode position cell of technician %d: %w", technicianID, err)
	}
	return &s, nil
}

// RedisChannel pushes samples over Redis pub/sub so viewers connected to any
// instance see updates published on another.
type RedisChannel struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisChannel(client *redis.Client, logger *zap.Logger) *RedisChannel {
	return &RedisChannel{client: client, logger: logger}
}

func (r *RedisChannel) Publish(ctx context.Context, s models.PositionSample) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channelName(s.TechnicianID), payload).Err()
}

// Subscribe returns once Redis has confirmed the subscription.
func (r *RedisChannel) Subscribe(ctx context.Context, technicianID int64) (dispatch.Subscription, error) {
	ps := r.client.Subscribe(ctx, channelName(technicianID))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channelName(technicianID), err)
	}

	sub := &redisSubscription{ps: ps, ch: make(chan models.PositionSample, 16)}
	go sub.pump(r.logger)
	return sub, nil
}

type redisSubscription struct {
	ps   *redis.PubSub
	ch   chan models.PositionSample
	once sync.Once
}

func (s *redisSubscription) Updates() <-chan models.PositionSample { return s.ch }

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() { err = s.ps.Close() })
	return err
}

func (s *redisSubscription) pump(logger *zap.Logger) {
	defer close(s.ch)
	for msg := range s.ps.Channel() {
		var sample models.PositionSample
		if err := json.Unmarshal([]byte(msg.Payload), &sample); err != nil {
			logger.Warn("dropping malformed position message", zap.String("channel", msg.Channel), zap.Error(err))
			continue
		}
		select {
		case s.ch <- sample:
		default:
			// latest position matters, drop when the reader lags
		}
	}
}
