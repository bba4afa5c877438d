// Package queue_publisher publishes account events to RabbitMQ. Handlers
// publish after the store write has succeeded; a failed publish is logged
// and never fails the request.
package queue_publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/studentdesk/internal/config"
	"github.com/iliyamo/studentdesk/internal/logging"
	q "github.com/iliyamo/studentdesk/internal/queue"
)

// Publisher sends an account event to every service instance.
type Publisher interface {
	Publish(ctx context.Context, ev q.AccountEvent) error
}

// New returns an AMQP publisher when events are enabled and a no-op one
// otherwise.
func New(cfg config.EventsConfig, log logging.Logger) Publisher {
	if !cfg.Enabled {
		return Nop{}
	}
	if log == nil {
		log = logging.Nop()
	}
	return &AMQPPublisher{url: cfg.URL, exchange: cfg.Exchange, log: log}
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, q.AccountEvent) error { return nil }

// AMQPPublisher dials the broker per publish. Account mutations are rare
// enough that a long-lived connection is not worth its reconnect logic.
type AMQPPublisher struct {
	url      string
	exchange string
	log      logging.Logger
}

// Publish sends ev to the fanout exchange as a persistent JSON message.
func (p *AMQPPublisher) Publish(ctx context.Context, ev q.AccountEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn(ctx, "rabbitmq: dial failed", "err", err)
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn(ctx, "rabbitmq: channel open failed", "err", err)
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := declareExchange(ch, p.exchange); err != nil {
		p.log.Warn(ctx, "rabbitmq: exchange declare failed", "exchange", p.exchange, "err", err)
		return err
	}

	pub, err := newPublishing(ev, time.Now())
	if err != nil {
		return err
	}
	if err := ch.PublishWithContext(ctx,
		p.exchange, // fanout: routing key is ignored
		ev.Type,
		false, // mandatory
		false, // immediate
		pub,
	); err != nil {
		p.log.Warn(ctx, "rabbitmq: publish failed", "type", ev.Type, "err", err)
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

func declareExchange(ch *amqp.Channel, name string) error {
	if err := ch.ExchangeDeclare(
		name,
		amqp.ExchangeFanout,
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange %s: %w", name, err)
	}
	return nil
}

func newPublishing(ev q.AccountEvent, now time.Time) (amqp.Publishing, error) {
	if ev.OccurredAt == "" {
		ev.OccurredAt = now.UTC().Format(time.RFC3339)
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         ev.Type,
		Timestamp:    now.UTC(),
		Body:         body,
	}, nil
}
