// Package rabbitmq implements the gateway.EventLog port the outbox relay
// drains into. Every outbox payload carries an "event_type" field; that
// field becomes the topic routing key so downstream consumers can bind
// selectively instead of draining the whole exchange.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/obedmokua0/sample-digital-wallet-platform/internal/domain"
)

// EventLog publishes outbox payloads to a topic exchange, one per logical
// event stream.
type EventLog struct {
	channel  *amqp.Channel
	exchange string
	log      zerolog.Logger
}

// NewEventLog declares exchange as a durable topic exchange and returns an
// EventLog publishing onto it. Declaration is idempotent, so this is safe
// to call once per process at startup.
func NewEventLog(ch *amqp.Channel, exchange string, log zerolog.Logger) (*EventLog, error) {
	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("rabbitmq: failed to declare exchange %q: %w", exchange, err)
	}
	return &EventLog{channel: ch, exchange: exchange, log: log}, nil
}

// Append publishes payload to the exchange, routed by the event's
// "event_type" field, and returns the delivery's publish-confirm-less
// identifier: the broker does not hand back a message id on basic.publish,
// so Append reports a locally-assigned correlation id for logging.
func (l *EventLog) Append(ctx context.Context, stream string, payload []byte) (string, error) {
	routingKey := routingKeyFor(payload, stream)
	id := domain.NewID()

	err := l.channel.PublishWithContext(ctx,
		l.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
			MessageId:    id,
		},
	)
	if err != nil {
		return "", fmt.Errorf("rabbitmq: failed to publish to %s/%s: %w", l.exchange, routingKey, err)
	}

	l.log.Info().Str("exchange", l.exchange).Str("routing_key", routingKey).Str("message_id", id).
		Msg("published event")
	return id, nil
}

// routingKeyFor extracts the event_type field from payload for topic
// routing, falling back to stream if the payload is not a recognizable
// event envelope.
func routingKeyFor(payload []byte, stream string) string {
	var envelope struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope.EventType == "" {
		return stream
	}
	return envelope.EventType
}
