package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// ExchangeJobs — единственный exchange, на который форвардятся события
// жизненного цикла job (enqueued/dispatched/completed/failed/dlq).
const ExchangeJobs Exchange = "dispatch.jobs"

// Routing keys — собственные имена AMQP (job.*), отличные от топиков Event
// Bus (item.*); internal/eventforward сопоставляет топики с этими ключами.
const (
	RoutingKeyEnqueued   RoutingKey = "job.enqueued"
	RoutingKeyDispatched RoutingKey = "job.dispatched"
	RoutingKeyCompleted  RoutingKey = "job.completed"
	RoutingKeyFailed     RoutingKey = "job.failed"
	RoutingKeyDLQ        RoutingKey = "job.dlq"
)

// SetupTopology объявляет ExchangeJobs как topic-обменник. Очереди и
// биндинги — забота внешнего подписчика; движок только публикует.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.ExchangeDeclare(
			string(ExchangeJobs),
			"topic",
			true,  // durable
			false, // auto-deleted
			false, // internal
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ExchangeJobs, err)
		}
		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования при старте.
func TopologyInfo() string {
	return `
  dispatch-engine RabbitMQ forwarding topology:

    dispatch.jobs (topic)
    ├── job.enqueued
    ├── job.dispatched
    ├── job.completed
    ├── job.failed
    └── job.dlq

  Queues/bindings are the subscriber's responsibility; the engine only publishes.
  `
}
