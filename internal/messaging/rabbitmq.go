package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"hvac-dispatch/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("rabbitmq connection is closed")

// confirmation is the broker's pending answer to one publish.
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// channel is the subset of *amqp.Channel the publisher needs.
type channel interface {
	PublishDeferred(ctx context.Context, exchange, key string, msg amqp.Publishing) (confirmation, error)
	Close() error
}

// amqpChannel ties each publish to its own deferred confirmation, so a
// publish that gave up waiting cannot swallow the ack of the next one.
type amqpChannel struct {
	*amqp.Channel
}

func (c amqpChannel) PublishDeferred(ctx context.Context, exchange, key string, msg amqp.Publishing) (confirmation, error) {
	dc, err := c.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, msg)
	if err != nil || dc == nil {
		return nil, err
	}
	return dc, nil
}

// Publisher sends order lifecycle events to a topic exchange with publisher
// confirms. The routing key is the event type, e.g. "order.completed".
type Publisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
	logger   *zap.Logger
}

func Dial(url, exchange string, logger *zap.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}

	logger.Info("rabbitmq publisher ready", zap.String("exchange", exchange))
	return &Publisher{conn: conn, ch: amqpChannel{ch}, exchange: exchange, logger: logger}, nil
}

func (p *Publisher) Ping() error {
	if p.conn == nil || p.conn.IsClosed() {
		return ErrClosed
	}
	return nil
}

func (p *Publisher) Close() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// PublishLifecycle publishes ev and waits for the broker ack until ctx ends.
func (p *Publisher) PublishLifecycle(ctx context.Context, ev models.OrderLifecycleEvent) error {
	msg, err := encode(ev)
	if err != nil {
		return err
	}

	conf, err := p.ch.PublishDeferred(ctx, p.exchange, ev.Type, msg)
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	if conf == nil {
		return nil
	}

	acked, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("publish %s: waiting for ack: %w", ev.Type, err)
	}
	if !acked {
		return fmt.Errorf("publish %s: nack from broker", ev.Type)
	}
	p.logger.Debug("lifecycle event published",
		zap.String("type", ev.Type),
		zap.Int64("order_id", ev.OrderID),
	)
	return nil
}

func encode(ev models.OrderLifecycleEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal %s: %w", ev.Type, err)
	}
	ts := ev.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return amqp.Publishing{
		DeliveryMode:  amqp.Persistent,
		ContentType:   "application/json",
		Body:          body,
		MessageId:     fmt.Sprintf("%s:%d:%d", ev.Type, ev.OrderID, ts.UnixNano()),
		CorrelationId: ev.PublicID,
		Timestamp:     ts,
		Type:          ev.Type,
		Headers: amqp.Table{
			"x-source":    "hvac-dispatch",
			"x-tenant-id": strconv.FormatInt(ev.TenantID, 10),
		},
	}, nil
}
