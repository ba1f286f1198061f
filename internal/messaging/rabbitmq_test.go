package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"hvac-dispatch/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubConfirm answers WaitContext with ack, or blocks until ctx ends when
// hang is set.
type stubConfirm struct {
	ack  bool
	hang bool
}

func (c stubConfirm) WaitContext(ctx context.Context) (bool, error) {
	if c.hang {
		<-ctx.Done()
		return false, ctx.Err()
	}
	return c.ack, nil
}

type recordingChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
	// confirms are handed out one per publish, in order
	confirms []confirmation
	calls    int
}

func (c *recordingChannel) PublishDeferred(_ context.Context, exchange, key string, msg amqp.Publishing) (confirmation, error) {
	c.exchange, c.key, c.msg = exchange, key, msg
	if c.err != nil {
		return nil, c.err
	}
	var conf confirmation
	if c.calls < len(c.confirms) {
		conf = c.confirms[c.calls]
	}
	c.calls++
	return conf, nil
}

func (c *recordingChannel) Close() error { return nil }

func newTestPublisher(ch channel) *Publisher {
	return &Publisher{ch: ch, exchange: "orders_topic", logger: zap.NewNop()}
}

func sampleEvent() models.OrderLifecycleEvent {
	tech := int64(10)
	return models.OrderLifecycleEvent{
		Type:         "order.completed",
		OrderID:      31,
		PublicID:     "pub-31",
		TenantID:     2,
		TechnicianID: &tech,
		CustomerID:   7,
		Status:       models.StatusCompleted,
		ValueCents:   45000,
		Parts:        []models.ConsumedPart{{ItemID: 3, Quantity: 2}},
		OccurredAt:   time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestEncode(t *testing.T) {
	msg, err := encode(sampleEvent())
	require.NoError(t, err)

	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, "pub-31", msg.CorrelationId)
	assert.Equal(t, "order.completed", msg.Type)
	assert.Equal(t, "2", msg.Headers["x-tenant-id"])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, "completed", decoded["status"])
	assert.EqualValues(t, 31, decoded["order_id"])
	assert.Len(t, decoded["parts"], 1)
}

func TestPublishLifecycle_Ack(t *testing.T) {
	ch := &recordingChannel{confirms: []confirmation{stubConfirm{ack: true}}}
	p := newTestPublisher(ch)

	require.NoError(t, p.PublishLifecycle(context.Background(), sampleEvent()))
	assert.Equal(t, "orders_topic", ch.exchange)
	assert.Equal(t, "order.completed", ch.key)
}

func TestPublishLifecycle_Nack(t *testing.T) {
	p := newTestPublisher(&recordingChannel{confirms: []confirmation{stubConfirm{ack: false}}})

	err := p.PublishLifecycle(context.Background(), sampleEvent())
	assert.ErrorContains(t, err, "nack")
}

func TestPublishLifecycle_ChannelError(t *testing.T) {
	boom := errors.New("channel closed")
	p := newTestPublisher(&recordingChannel{err: boom})

	err := p.PublishLifecycle(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, boom)
}

func TestPublishLifecycle_ContextDone(t *testing.T) {
	p := newTestPublisher(&recordingChannel{confirms: []confirmation{stubConfirm{hang: true}}})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.PublishLifecycle(ctx, sampleEvent())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPublishLifecycle_TimedOutAckDoesNotLeakIntoNextPublish(t *testing.T) {
	ch := &recordingChannel{confirms: []confirmation{
		stubConfirm{hang: true},
		stubConfirm{ack: false},
	}}
	p := newTestPublisher(ch)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, p.PublishLifecycle(ctx, sampleEvent()), context.DeadlineExceeded)

	// the second publish must see its own nack, not a stale answer
	err := p.PublishLifecycle(context.Background(), sampleEvent())
	assert.ErrorContains(t, err, "nack")
	assert.Equal(t, 2, ch.calls)
}

func TestPublishLifecycle_NoConfirmMode(t *testing.T) {
	p := newTestPublisher(&recordingChannel{})
	assert.NoError(t, p.PublishLifecycle(context.Background(), sampleEvent()))
}

func TestPing_NoConnection(t *testing.T) {
	p := newTestPublisher(&recordingChannel{})
	assert.ErrorIs(t, p.Ping(), ErrClosed)
}
