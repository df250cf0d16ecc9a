// Package rabbitmq publishes pipeline events for downstream consumers.
// Publishing is best-effort: a missing broker disables it without failing
// message processing.
package rabbitmq

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// Publisher owns one connection and channel. A nil Publisher is valid and
// drops every event.
type Publisher struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	queue   string
}

// NewPublisher dials the broker. An empty URL disables publishing.
func NewPublisher(url, queue string) *Publisher {
	if url == "" {
		log.Info().Msg("RABBITMQ_URL is not set. Event publishing disabled.")
		return nil
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		log.Error().Err(err).Msg("Could not connect to RabbitMQ, event publishing disabled")
		return nil
	}
	channel, err := conn.Channel()
	if err != nil {
		log.Error().Err(err).Msg("Could not open RabbitMQ channel, event publishing disabled")
		_ = conn.Close()
		return nil
	}

	log.Info().Str("queue", queue).Msg("RabbitMQ connection established")
	return &Publisher{conn: conn, channel: channel, queue: queue}
}

// Event is the envelope published per processed message.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	CompanyID string                 `json:"companyId"`
	RemoteJID string                 `json:"remoteJid"`
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Publish emits one event to the configured queue. Failures are logged and
// swallowed.
func (p *Publisher) Publish(eventType, companyID, remoteJID, status string, data map[string]interface{}) {
	if p == nil {
		return
	}

	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		CompanyID: companyID,
		RemoteJID: remoteJID,
		Status:    status,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	body, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("eventType", eventType).Msg("Failed to marshal event for RabbitMQ")
		return
	}

	// Declare queue (idempotent)
	if _, err := p.channel.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		log.Error().Err(err).Str("queue", p.queue).Msg("Could not declare RabbitMQ queue")
		return
	}

	err = p.channel.Publish("", p.queue, false, false, amqp091.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		log.Error().Err(err).Str("queue", p.queue).Str("eventType", eventType).Msg("Could not publish to RabbitMQ")
		return
	}
	log.Debug().Str("queue", p.queue).Str("eventType", eventType).Msg("Published event to RabbitMQ")
}

// Close releases the channel and connection.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
