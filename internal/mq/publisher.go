package mq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ashmetov/conveyor/internal/codec"
	"github.com/ashmetov/conveyor/internal/task"
)

// Publisher отправляет сообщения брокеру через разделяемое соединение.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт Publisher поверх соединения.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{conn: conn, logger: logger}
}

// PublishTask отправляет задачу в очередь.
//
// Тело сообщения — сама задача в JSON, без конверта: воркер разбирает
// его как task.Message. Пустой ID заполняется новым uuid, поэтому
// после вызова msg.ID всегда пригоден для запроса результата.
func (p *Publisher) PublishTask(ctx context.Context, queue Queue, msg *task.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	body, err := codec.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal task message: %w", err)
	}

	return p.Publish(ctx, ExchangeTasks, string(queue), msg.ID, body)
}

// Publish публикует тело сообщения в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey, messageID string, body []byte) error {
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // переживает рестарт брокера
		MessageId:    messageID,
		Timestamp:    time.Now(),
		Body:         body,
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := ch.PublishWithContext(ctx, string(exchange), routingKey, false, false, pub); err != nil {
			return fmt.Errorf("publish %s via %s: %w", routingKey, exchange, err)
		}

		p.logger.Debug("message published",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", messageID,
		)
		return nil
	})
}
