package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrPermanent marks a delivery error that retrying cannot fix, such as an
// unconfigured channel or a rejected recipient.
var ErrPermanent = errors.New("permanent delivery failure")

// Deliverer sends one event through its channel.
type Deliverer interface {
	Deliver(ctx context.Context, ev NotificationEvent) error
}

// ResultObserver is told the outcome of each message ("delivered",
// "failed", "malformed"); it may be nil.
type ResultObserver func(channel, result string)

// Consumer reads the notification queue and hands events to a Deliverer.
// A message stays unacknowledged while it is being retried, so a restart
// during retries leaves it on the queue.
type Consumer struct {
	URL         string
	Queue       string
	MaxAttempts int
	RetryDelay  time.Duration
	Deliverer   Deliverer
	Log         *zap.Logger
	Observe     ResultObserver
}

// Run connects and consumes until ctx is cancelled, reconnecting with
// capped exponential backoff when the broker goes away.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn("notification consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warn("notification consumer: consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		c.Log.Warn("notification consumer: set QoS failed", zap.Error(err))
	}
	if err := declare(ch, c.Queue); err != nil {
		return err
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.Log.Info("notification consumer started", zap.String("queue", c.Queue))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if c.Handle(ctx, d.Body) {
				_ = d.Ack(false)
			} else {
				// shutting down mid-retry; leave the message for the next consumer
				_ = d.Nack(false, true)
			}
		}
	}
}

// Handle processes one message body. It returns false only when ctx was
// cancelled before the outcome was final; every other outcome, including
// permanent failure, should be acknowledged.
func (c *Consumer) Handle(ctx context.Context, body []byte) bool {
	var ev NotificationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		c.Log.Error("notification dropped: malformed message", zap.Error(err))
		c.observe("unknown", "malformed")
		return true
	}
	log := c.Log.With(zap.String("event_id", ev.ID), zap.String("type", ev.Type), zap.String("channel", ev.Channel))

	attempts := c.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		if err = c.Deliverer.Deliver(ctx, ev); err == nil {
			log.Info("notification delivered", zap.Int("attempt", i))
			c.observe(ev.Channel, "delivered")
			return true
		}
		if errors.Is(err, ErrPermanent) {
			break
		}
		if i < attempts {
			log.Warn("notification delivery failed, retrying", zap.Int("attempt", i), zap.Error(err))
			if !sleep(ctx, c.RetryDelay) {
				return false
			}
		}
	}
	log.Error("notification delivery failed permanently", zap.Error(err))
	c.observe(ev.Channel, "failed")
	return true
}

func (c *Consumer) observe(channel, result string) {
	if c.Observe != nil {
		c.Observe(channel, result)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
