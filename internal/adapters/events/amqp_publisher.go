package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
	portssvc "github.com/SscSPs/funds_transfer_app/internal/core/ports/services"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpChannel is the part of *amqp.Channel the publisher uses.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher sends compliance events as persistent JSON messages to a topic exchange.
// The routing key is "compliance.<event type>" in lower case.
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       amqpChannel
	exchange string
}

// NewAMQPPublisher dials the broker and declares the exchange.
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

var _ portssvc.EventPublisher = (*AMQPPublisher)(nil)

func routingKey(eventType string) string {
	return "compliance." + strings.ToLower(eventType)
}

func (p *AMQPPublisher) Publish(ctx context.Context, event domain.ComplianceEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding compliance event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    event.OccurredAt,
		Type:         event.EventType,
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, routingKey(event.EventType), false, false, msg); err != nil {
		return fmt.Errorf("publishing %s to %s: %w", event.EventType, p.exchange, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	if err := p.ch.Close(); err != nil {
		return err
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
