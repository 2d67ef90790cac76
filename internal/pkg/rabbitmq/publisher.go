// Package rabbitmq publishes queue lifecycle events to a RabbitMQ topic exchange.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bissquit/contentq/internal/contentqueue"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is used when no exchange name is configured.
const DefaultExchange = "contentq.events"

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends every event as a persistent JSON message with routing
// key "queue.<event type>".
type Publisher struct {
	conn     *amqp.Connection
	exchange string

	mu sync.Mutex
	ch channel
}

// Dial connects to url and declares the topic exchange. Declaring is idempotent.
func Dial(url, exchange string) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
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

	slog.Info("rabbitmq publisher ready", "exchange", exchange)

	return &Publisher{conn: conn, exchange: exchange, ch: ch}, nil
}

// PublishEvent implements contentqueue.EventPublisher.
func (p *Publisher) PublishEvent(ctx context.Context, event contentqueue.Event) error {
	msg, err := buildMessage(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.PublishWithContext(ctx, p.exchange, RoutingKey(event.Type), false, false, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	return nil
}

// Close closes the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var chErr error
	if p.ch != nil {
		chErr = p.ch.Close()
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("close connection: %w", err)
		}
	}
	if chErr != nil {
		return fmt.Errorf("close channel: %w", chErr)
	}
	return nil
}

// RoutingKey returns the routing key for an event type.
func RoutingKey(t contentqueue.EventType) string {
	return "queue." + string(t)
}

func buildMessage(event contentqueue.Event) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.At,
		Type:         string(event.Type),
		MessageId:    event.ItemID + ":" + string(event.Type) + ":" + fmt.Sprint(event.At.UnixNano()),
		Body:         body,
	}, nil
}
