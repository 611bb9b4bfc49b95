// Package events publishes booking lifecycle events to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"hostel_availability/internal/domain"
)

// QueueName is the durable queue every booking event lands in; consumers
// switch on the message Type.
const QueueName = "hostel.booking.events"

// Publisher keeps one connection and channel open and redials lazily after
// the broker drops them.
type Publisher struct {
	url string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

var _ domain.EventPublisher = (*Publisher)(nil)

func NewPublisher(url string) *Publisher { return &Publisher{url: url} }

// NewPublishing encodes ev as a persistent JSON message.
func NewPublishing(ev domain.BookingEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal %s: %w", ev.Type, err)
	}
	ts := ev.OccurredAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.BookingID + ":" + string(ev.Type),
		Type:         string(ev.Type),
		Timestamp:    ts.UTC(),
		Body:         body,
	}, nil
}

func (p *Publisher) PublishBooking(ctx context.Context, ev domain.BookingEvent) error {
	msg, err := NewPublishing(ev)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channel()
	if err != nil {
		return err
	}
	if err := ch.PublishWithContext(ctx,
		"",        // default exchange
		QueueName, // routing key = queue name
		false,     // mandatory
		false,     // immediate
		msg,
	); err != nil {
		p.reset()
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

// channel returns the open channel, dialing and declaring the queue if needed.
// p.mu must be held.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	// durable so messages survive broker restarts
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	log.Info().Str("queue", QueueName).Msg("amqp publisher connected")
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

// Nop drops every event; used when no broker is configured.
type Nop struct{}

func (Nop) PublishBooking(ctx context.Context, ev domain.BookingEvent) error {
	log.Debug().Str("event", string(ev.Type)).Str("booking_id", ev.BookingID).Msg("event dropped: no broker configured")
	return nil
}
