package mq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher публикует события жизненного цикла job в ExchangeJobs.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{conn: conn, logger: logger}
}

// Message — форвардируемое событие.
type Message struct {
	ID        string     `json:"id"`
	Topic     RoutingKey `json:"topic"`
	Payload   any        `json:"payload"`
	Timestamp time.Time  `json:"timestamp"`
}

// Publish публикует msg на ExchangeJobs с routing key topic.
func (p *Publisher) Publish(ctx context.Context, topic RoutingKey, payload any) error {
	msg := &Message{
		ID:        uuid.NewString(),
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(ExchangeJobs),
			string(topic),
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", ExchangeJobs, topic, err)
		}

		p.logger.Debug("published event", "topic", topic, "message_id", msg.ID)
		return nil
	})
}
