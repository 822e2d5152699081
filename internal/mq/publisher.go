package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger}
}

// Publish отправляет конверт в exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, env *Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    env.ID,
			Type:         string(env.Type),
			Timestamp:    env.Timestamp,
			Body:         body,
		})
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", env.ID,
			"type", env.Type,
		)
		return nil
	})
}

// PublishResearchRequested сообщает worker'у о новом queued job.
func (p *Publisher) PublishResearchRequested(ctx context.Context, jobID uuid.UUID) error {
	env, err := NewEnvelope(MessageTypeResearchRequested, ResearchRequested{JobID: jobID}, time.Now())
	if err != nil {
		return err
	}
	return p.Publish(ctx, ExchangeResearch, RoutingKeyRequested, env)
}
