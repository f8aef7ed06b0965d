package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/scrapeflow/internal/domain"
)

// MessageType — тип события в очереди.
type MessageType string

// Типы событий.
const (
	MessageTypeJobSubmitted MessageType = "job.submitted"
	MessageTypeJobFinished  MessageType = "job.finished"
)

// Message — конверт события.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип события.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// JobSubmittedPayload — событие о поставленном в очередь job.
type JobSubmittedPayload struct {
	JobID    uuid.UUID `json:"job_id"`
	Priority int       `json:"priority"`
}

// JobFinishedPayload — событие о завершённом job.
type JobFinishedPayload struct {
	JobID    uuid.UUID `json:"job_id"`
	Status   string    `json:"status"` // completed или failed
	Error    string    `json:"error,omitempty"`
	Attempts int       `json:"attempts"`
}

// Publisher публикует события jobs.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{conn: conn, logger: logger}
}

// PublishJobSubmitted ставит job в очередь воркеров. Приоритет job
// транслируется в AMQP приоритет сообщения.
// Потребитель: Worker.
func (p *Publisher) PublishJobSubmitted(ctx context.Context, jobID uuid.UUID, priority int) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeJobSubmitted,
		Payload:   JobSubmittedPayload{JobID: jobID, Priority: priority},
		Timestamp: time.Now(),
	}
	return p.publish(ctx, ExchangeJobs, RoutingKeyPending, msg, domain.ClampPriority(priority))
}

// PublishJobFinished публикует событие завершения job.
// Потребители: подписчики jobs.completed (уведомления, аудит).
func (p *Publisher) PublishJobFinished(ctx context.Context, payload JobFinishedPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeJobFinished,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	return p.publish(ctx, ExchangeJobs, RoutingKeyCompleted, msg, 0)
}

func (p *Publisher) publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message, priority int) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ch := p.conn.Channel()
	if ch == nil {
		return ErrNoChannel
	}

	err = ch.PublishWithContext(ctx,
		string(exchange),
		string(routingKey),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Priority:     uint8(priority),
			MessageId:    msg.ID,
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
	}

	p.logger.Debug("published message",
		"exchange", exchange,
		"routing_key", routingKey,
		"message_id", msg.ID,
		"type", msg.Type,
	)
	return nil
}
