package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrReject — обработчик отказывается от сообщения навсегда.
// Такое сообщение уходит в DLQ без повторной доставки.
var ErrReject = errors.New("mq: reject message")

// Handler обрабатывает конверт. nil — ack, ErrReject — в DLQ,
// другая ошибка — вернуть в очередь.
type Handler func(ctx context.Context, env *Envelope) error

// Consumer читает очередь и переподписывается после reconnect.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	handler  Handler
	prefetch int
}

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	Queue    string
	Handler  Handler
	Prefetch int // default: 1
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	return &Consumer{
		conn:     conn,
		logger:   logger.With("queue", cfg.Queue),
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Run потребляет сообщения до отмены ctx.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		// Берём сигнал reconnect до подписки, чтобы не пропустить его
		reconnected := c.conn.Reconnected()

		deliveries, err := c.subscribe(ctx)
		if err != nil {
			c.logger.Error("subscribe failed, waiting for reconnect", "error", err)
		} else {
			c.logger.Info("consumer started")
			c.drain(ctx, deliveries)
			c.logger.Warn("delivery channel closed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-reconnected:
		}
	}
}

func (c *Consumer) subscribe(ctx context.Context) (<-chan amqp.Delivery, error) {
	var deliveries <-chan amqp.Delivery
	err := c.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := ch.Qos(c.prefetch, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}
		d, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("consume %s: %w", c.queue, err)
		}
		deliveries = d
		return nil
	})
	return deliveries, err
}

func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var env Envelope
	if err := json.Unmarshal(d.Body, &env); err != nil {
		c.logger.Error("malformed message, dead-lettering", "error", err, "message_id", d.MessageId)
		_ = d.Nack(false, false)
		return
	}

	err := c.handler(ctx, &env)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, ErrReject):
		c.logger.Error("message rejected", "message_id", env.ID, "type", env.Type, "error", err)
		_ = d.Nack(false, false)
	default:
		c.logger.Warn("handler failed, requeueing", "message_id", env.ID, "type", env.Type, "error", err)
		// Повторно доставленное сообщение не возвращаем второй раз, чтобы не зациклиться
		_ = d.Nack(false, !d.Redelivered)
	}
}
