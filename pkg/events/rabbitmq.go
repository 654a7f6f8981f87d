package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"travelbook/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitPublisher publishes persistent messages to a durable queue through
// the default exchange. The connection is opened lazily and reopened after
// a failure.
type RabbitPublisher struct {
	url   string
	queue string
	log   *logger.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewRabbitPublisher(url, queue string, log *logger.Logger) *RabbitPublisher {
	return &RabbitPublisher{url: url, queue: queue, log: log}
}

func (p *RabbitPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureChannel(); err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     ev.ID,
		Type:          ev.Type,
		CorrelationId: ev.CorrelationID,
		Timestamp:     ev.OccurredAt,
		Body:          body,
	}

	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.reset()
		return fmt.Errorf("failed to publish to %s: %w", p.queue, err)
	}
	return nil
}

func (p *RabbitPublisher) ensureChannel() error {
	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	p.reset()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("failed to dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to declare queue %s: %w", p.queue, err)
	}

	p.conn, p.ch = conn, ch
	p.log.Info("Connected to RabbitMQ", "queue", p.queue)
	return nil
}

func (p *RabbitPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

// RabbitSubscriber consumes the queue with manual acks. Failed deliveries
// are rejected without requeue so a poison message cannot spin.
type RabbitSubscriber struct {
	url      string
	queue    string
	prefetch int
	log      *logger.Logger
}

func NewRabbitSubscriber(url, queue string, log *logger.Logger) *RabbitSubscriber {
	return &RabbitSubscriber{url: url, queue: queue, prefetch: 50, log: log}
}

func (s *RabbitSubscriber) Run(ctx context.Context, handler Handler) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(s.url)
		if err != nil {
			s.log.Warn("Failed to dial RabbitMQ, retrying", "error", err, "backoff", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, 30*time.Second)
			continue
		}
		backoff = time.Second

		err = s.consume(ctx, conn, handler)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Warn("RabbitMQ consume loop ended, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (s *RabbitSubscriber) consume(ctx context.Context, conn *amqp.Connection, handler Handler) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(s.prefetch, 0, false); err != nil {
		s.log.Warn("Failed to set RabbitMQ QoS", "error", err)
	}
	if _, err := ch.QueueDeclare(s.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	deliveries, err := ch.Consume(s.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	s.log.Info("Consuming booking events", "queue", s.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			s.handleDelivery(ctx, d, handler)
		}
	}
}

func (s *RabbitSubscriber) handleDelivery(ctx context.Context, d amqp.Delivery, handler Handler) {
	if err := deliver(ctx, d.Body, handler); err != nil {
		s.log.Error("Failed to handle booking event", "message_id", d.MessageId, "error", err)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func deliver(ctx context.Context, body []byte, handler Handler) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Permanent(fmt.Errorf("failed to decode booking event: %w", err))
	}
	return handler(ctx, ev)
}

func (s *RabbitSubscriber) Close() error { return nil }

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
