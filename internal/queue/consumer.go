package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler обрабатывает одно доставленное сообщение. nil подтверждает
// сообщение; ошибка возвращает его в очередь. Обработчик может
// подтвердить или отклонить сообщение сам через Delivery.
type Handler func(ctx context.Context, d *Delivery) error

// Delivery — доставленное сообщение.
type Delivery struct {
	// Message — распарсенный конверт.
	Message Message

	// Raw — исходное AMQP сообщение.
	Raw amqp.Delivery

	settled bool
}

// Ack подтверждает обработку.
func (d *Delivery) Ack() error {
	d.settled = true
	return d.Raw.Ack(false)
}

// Nack отклоняет сообщение. requeue=false отправляет его в DLQ.
func (d *Delivery) Nack(requeue bool) error {
	d.settled = true
	return d.Raw.Nack(false, requeue)
}

// ConsumerConfig — настройки потребителя.
type ConsumerConfig struct {
	// Queue — имя очереди.
	Queue Queue

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — сколько сообщений брокер отдаёт без подтверждения.
	// Определяет параллелизм воркера.
	Prefetch int
}

// Consumer потребляет события из очереди и переживает reconnect
// соединения.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	handler  Handler
	prefetch int
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	return &Consumer{
		conn:     conn,
		logger:   logger,
		queue:    string(cfg.Queue),
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Run потребляет сообщения до отмены контекста. При разрыве
// соединения ждёт reconnect и продолжает.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Error("consume setup failed", "queue", c.queue, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.conn.NotifyReconnect():
				continue
			}
		}

		c.logger.Info("consumer started", "queue", c.queue, "prefetch", c.prefetch)

		if err := c.pump(ctx, deliveries); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("deliveries channel closed, waiting for reconnect", "queue", c.queue)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.conn.NotifyReconnect():
			}
		}
	}
}

func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}
	return deliveries, nil
}

func (c *Consumer) pump(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}
			c.dispatch(ctx, raw)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("malformed message, sending to DLQ",
			"queue", c.queue, "error", err)
		raw.Nack(false, false)
		return
	}

	d := &Delivery{Message: msg, Raw: raw}

	if err := c.handler(ctx, d); err != nil {
		c.logger.Error("handler failed",
			"queue", c.queue, "message_id", msg.ID, "type", msg.Type, "error", err)
		if !d.settled {
			raw.Nack(false, true)
		}
		return
	}
	if !d.settled {
		raw.Ack(false)
	}
}

// ParsePayload приводит payload конверта к конкретному типу.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}
	return result, nil
}
