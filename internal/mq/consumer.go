package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler — функция обработки сообщения.
//
// Обработчик сам решает судьбу сообщения: подтверждает его через
// Delivery.Ack при взятии задачи в работу. Возврат nil означает,
// что сообщение уже подтверждено или отклонено обработчиком.
// Возврат ошибки допустим только для неподтверждённого сообщения:
// consumer вернёт его в очередь, а если ошибка оборачивает ErrReject —
// отправит в DLQ без повторной доставки.
type Handler func(ctx context.Context, d *Delivery) error

// Delivery — доставленное сообщение с методами ack/nack.
// Тело сообщения не разбирается на этом уровне: его формат
// принадлежит обработчику.
type Delivery struct {
	// Raw — сырое AMQP сообщение.
	Raw amqp.Delivery
}

// Body возвращает тело сообщения.
func (d *Delivery) Body() []byte {
	return d.Raw.Body
}

// Ack подтверждает сообщение: задача принята в работу.
func (d *Delivery) Ack() error {
	return d.Raw.Ack(false)
}

// Nack отклоняет сообщение.
// requeue=true — вернуть в очередь, false — отправить в DLQ.
func (d *Delivery) Nack(requeue bool) error {
	return d.Raw.Nack(false, requeue)
}

// ConsumerConfig — параметры подписки на очередь.
type ConsumerConfig struct {
	// Queue — имя очереди.
	Queue string

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — лимит неподтверждённых сообщений на подписку.
	Prefetch int
}

// Consumer читает сообщения из очереди RabbitMQ и передаёт их
// обработчику. Обрывы соединения переживает: после восстановления
// подписка открывается заново.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	handler  Handler
	prefetch int

	stop context.CancelFunc
}

// NewConsumer создаёт Consumer поверх разделяемого соединения.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	c := &Consumer{
		conn:     conn,
		logger:   logger,
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: cfg.Prefetch,
	}
	if c.prefetch <= 0 {
		c.prefetch = 1
	}
	return c
}

// Start блокирует до остановки: открывает подписку, гонит сообщения
// в обработчик и переоткрывает подписку после обрывов.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.stop = cancel

	for {
		stream, err := c.openStream()
		if err != nil {
			c.logger.Error("failed to open consume stream", "queue", c.queue, "error", err)
			if err := c.awaitReconnect(ctx); err != nil {
				return err
			}
			continue
		}

		c.logger.Info("consumer started", "queue", c.queue)

		if err := c.drain(ctx, stream); err != nil {
			return err
		}

		// Канал доставки закрылся: брокер оборвал соединение.
		c.logger.Warn("deliveries channel closed, reconnecting", "queue", c.queue)
		if err := c.awaitReconnect(ctx); err != nil {
			return err
		}
	}
}

// openStream открывает подписку на очередь с ручным подтверждением.
func (c *Consumer) openStream() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNotConnected
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	stream, err := ch.Consume(
		c.queue,
		"",    // tag выберет брокер
		false, // ack вручную
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}

	return stream, nil
}

// drain перекладывает сообщения из stream в обработчик.
// Возвращает nil, когда брокер закрыл канал доставки, и ctx.Err()
// при останове.
func (c *Consumer) drain(ctx context.Context, stream <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-stream:
			if !ok {
				return nil
			}
			c.handleDelivery(ctx, raw)
		}
	}
}

// awaitReconnect ждёт восстановления соединения или останова.
func (c *Consumer) awaitReconnect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.conn.ReconnectNotify():
		c.logger.Info("connection restored, reopening subscription", "queue", c.queue)
		return nil
	}
}

// handleDelivery передаёт одно сообщение обработчику и разбирает
// возвращённую ошибку на «вернуть в очередь» и «в DLQ».
func (c *Consumer) handleDelivery(ctx context.Context, raw amqp.Delivery) {
	d := &Delivery{Raw: raw}

	c.logger.Debug("received message",
		"queue", c.queue,
		"message_id", raw.MessageId,
	)

	switch err := c.handler(ctx, d); {
	case err == nil:
		// Судьбу сообщения решил обработчик.

	case errors.Is(err, ErrReject):
		c.logger.Error("rejecting message",
			"queue", c.queue,
			"message_id", raw.MessageId,
			"error", err,
		)
		d.Nack(false)

	default:
		c.logger.Error("handler failed, requeueing",
			"queue", c.queue,
			"message_id", raw.MessageId,
			"error", err,
		)
		d.Nack(true)
	}
}

// Stop прекращает потребление.
func (c *Consumer) Stop() {
	if c.stop != nil {
		c.stop()
	}
}
