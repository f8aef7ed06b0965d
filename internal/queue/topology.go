package queue

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/scrapeflow/internal/domain"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

// Обменники.
const (
	ExchangeJobs Exchange = "scrapeflow.jobs"
	ExchangeDLQ  Exchange = "scrapeflow.dlq"
)

// Очереди.
const (
	QueueJobsPending   Queue = "jobs.pending"
	QueueJobsCompleted Queue = "jobs.completed"
	QueueDLQJobs       Queue = "dlq.jobs"
)

// Ключи маршрутизации.
const (
	RoutingKeyPending   RoutingKey = "pending"
	RoutingKeyCompleted RoutingKey = "completed"
	RoutingKeyDLQJobs   RoutingKey = "jobs"
)

// SetupTopology объявляет обменники, очереди и привязки.
// Идемпотентно: повторный вызов на живом брокере безопасен.
func SetupTopology(conn *Connection) error {
	ch := conn.Channel()
	if ch == nil {
		return ErrNoChannel
	}

	for _, name := range []Exchange{ExchangeJobs, ExchangeDLQ} {
		if err := ch.ExchangeDeclare(string(name), "direct", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", name, err)
		}
	}

	// jobs.pending: приоритетная очередь с DLQ
	pendingArgs := amqp.Table{
		"x-max-priority":            int32(domain.PriorityMax),
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQJobs),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		{QueueJobsPending, pendingArgs},
		{QueueJobsCompleted, nil},
		{QueueDLQJobs, nil},
	}
	for _, q := range queues {
		if _, err := ch.QueueDeclare(string(q.name), true, false, false, false, q.args); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueJobsPending, RoutingKeyPending, ExchangeJobs},
		{QueueJobsCompleted, RoutingKeyCompleted, ExchangeJobs},
		{QueueDLQJobs, RoutingKeyDLQJobs, ExchangeDLQ},
	}
	for _, b := range bindings {
		if err := ch.QueueBind(string(b.queue), string(b.routingKey), string(b.exchange), false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}
