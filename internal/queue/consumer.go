package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/studentdesk/internal/config"
	"github.com/iliyamo/studentdesk/internal/logging"
)

// ProfileInvalidator drops a user's cached profile.
type ProfileInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// Consumer binds an exclusive, auto-deleted queue to the account event
// exchange, so every running instance sees every event and evicts its
// profile cache entry for the affected user.
type Consumer struct {
	url      string
	exchange string
	cache    ProfileInvalidator
	log      logging.Logger
}

func NewConsumer(cfg config.EventsConfig, cache ProfileInvalidator, log logging.Logger) *Consumer {
	if log == nil {
		log = logging.Nop()
	}
	return &Consumer{url: cfg.URL, exchange: cfg.Exchange, cache: cache, log: log.With("component", "account-consumer")}
}

// Run connects to the broker and consumes until ctx is cancelled. Broker
// failures are retried with exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn(ctx, "failed to dial broker", "err", err, "retry_in", backoff.String())
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
		c.log.Warn(ctx, "consume loop ended, reconnecting", "err", err)
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

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn(ctx, "set QoS failed", "err", err)
	}

	if err := ch.ExchangeDeclare(c.exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	// server-named queue, removed with the connection
	queue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(queue.Name, "", c.exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}

	msgs, err := ch.Consume(queue.Name, "", false, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.log.Info(ctx, "consuming account events", "exchange", c.exchange, "queue", queue.Name)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handleMessage(ctx, d.Body); err != nil {
				c.log.Warn(ctx, "handle message failed", "err", err)
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, body []byte) error {
	var ev AccountEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.UserID == "" {
		return fmt.Errorf("event %q without user id", ev.Type)
	}

	if ev.InvalidatesProfile() {
		if err := c.cache.Invalidate(ctx, ev.UserID); err != nil {
			return fmt.Errorf("invalidate %s: %w", ev.UserID, err)
		}
	}
	c.log.Info(ctx, "account event", "type", ev.Type, "user_id", ev.UserID, "username", ev.Username, "occurred_at", ev.OccurredAt)
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
