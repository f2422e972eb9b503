// Package queue is the context-bridge transport (D2) for C11: a thin
// amqp091-go publisher/consumer pair that carries a reqctx.Snapshot across
// a message boundary so a background worker can re-establish the same
// tenant-scoped transaction a request handler would have had.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/routecore/platform/internal/reqctx"
)

// Publisher publishes reqctx.Snapshot envelopes onto a topic exchange.
type Publisher struct {
	ch       *amqp.Channel
	exchange string
}

func NewPublisher(conn *amqp.Connection, exchange string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publisher channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{ch: ch, exchange: exchange}, nil
}

// Publish serializes snap (claims only, no DB handle) as the message body.
func (p *Publisher) Publish(ctx context.Context, routingKey string, snap reqctx.Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

func (p *Publisher) Close() error { return p.ch.Close() }

// Handler processes one delivery's snapshot inside the bound transaction
// the consumer has already opened.
type Handler func(ctx context.Context, snap reqctx.Snapshot) error

// Consumer drains a queue bound to the exchange and runs Handler for each
// delivery via pipeline.BindFromSnapshot (wired by the caller, to avoid an
// import cycle between queue and pipeline).
type Consumer struct {
	ch        *amqp.Channel
	queueName string
	bind      func(ctx context.Context, snap reqctx.Snapshot, handler func(context.Context) error) error
}

// NewConsumer declares queueName, binds it to exchange under routingKey,
// and returns a Consumer ready to Run. bind is
// pipeline.BindFromSnapshot bound to a pool, injected by the caller.
func NewConsumer(conn *amqp.Connection, exchange, queueName, routingKey string, bind func(ctx context.Context, snap reqctx.Snapshot, handler func(context.Context) error) error) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open consumer channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(queueName, routingKey, exchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue: %w", err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &Consumer{ch: ch, queueName: queueName, bind: bind}, nil
}

// Run consumes deliveries until ctx is cancelled. Each delivery is
// unmarshaled into a reqctx.Snapshot, bound into a fresh tenant transaction,
// and passed to handler. The outcome decides ack vs requeue vs dead-letter:
// a malformed envelope is dead-lettered (it will never parse on retry); a
// handler error is requeued once before dead-lettering, matching the
// teacher's outbox retry shape.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	deliveries, err := c.ch.ConsumeWithContext(ctx, c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.process(ctx, d, handler)
		}
	}
}

func (c *Consumer) process(ctx context.Context, d amqp.Delivery, handler Handler) {
	var snap reqctx.Snapshot
	if err := json.Unmarshal(d.Body, &snap); err != nil {
		slog.Error("queue: malformed envelope, dead-lettering", "error", err)
		_ = d.Nack(false, false)
		return
	}

	err := c.bind(ctx, snap, func(bound context.Context) error {
		return handler(bound, snap)
	})
	if err != nil {
		redelivered := d.Redelivered
		slog.Error("queue: handler failed", "error", err, "redelivered", redelivered, "companyId", snap.CompanyID)
		// requeue once; a delivery that fails again after a redelivery
		// attempt is dead-lettered rather than looped forever.
		_ = d.Nack(false, !redelivered)
		return
	}

	_ = d.Ack(false)
}
