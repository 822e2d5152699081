package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Имена объектов RabbitMQ.
const (
	// ExchangeResearch — запросы на исследование (direct).
	ExchangeResearch = "regwatch.research"
	// ExchangeDLQ — отклонённые сообщения (direct).
	ExchangeDLQ = "regwatch.dlq"

	// QueueResearchRequested — очередь worker'а.
	QueueResearchRequested = "research.requested"
	// QueueDLQResearch — сообщения, которые worker не смог разобрать.
	QueueDLQResearch = "dlq.research"

	RoutingKeyRequested = "requested"
	RoutingKeyDLQ       = "research"
)

// binding описывает exchange → queue.
type binding struct {
	exchange   string
	queue      string
	routingKey string
	args       amqp.Table
}

var topology = []binding{
	{
		exchange:   ExchangeResearch,
		queue:      QueueResearchRequested,
		routingKey: RoutingKeyRequested,
		args: amqp.Table{
			"x-dead-letter-exchange":    ExchangeDLQ,
			"x-dead-letter-routing-key": RoutingKeyDLQ,
		},
	},
	{
		exchange:   ExchangeDLQ,
		queue:      QueueDLQResearch,
		routingKey: RoutingKeyDLQ,
	},
}

// SetupTopology идемпотентно объявляет exchanges, queues и bindings.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, b := range topology {
			if err := ch.ExchangeDeclare(b.exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare exchange %s: %w", b.exchange, err)
			}
			if _, err := ch.QueueDeclare(b.queue, true, false, false, false, b.args); err != nil {
				return fmt.Errorf("declare queue %s: %w", b.queue, err)
			}
			if err := ch.QueueBind(b.queue, b.routingKey, b.exchange, false, nil); err != nil {
				return fmt.Errorf("bind %s to %s: %w", b.queue, b.exchange, err)
			}
		}
		return nil
	})
}
