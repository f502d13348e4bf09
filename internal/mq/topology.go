package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// Exchanges — имена обменников.
const (
	ExchangeTasks Exchange = "conveyor.tasks"
	ExchangeDLQ   Exchange = "conveyor.dlq"
)

// Queues — имена очередей.
const (
	// QueueTasksDefault — очередь задач по умолчанию.
	// Задача может быть привязана к своей очереди при регистрации,
	// тогда её имя тоже имеет вид tasks.<имя>.
	QueueTasksDefault Queue = "tasks.default"

	// QueueDLQTasks — очередь отклонённых сообщений: некорректный JSON,
	// незарегистрированные задачи.
	QueueDLQTasks Queue = "dlq.tasks"
)

// routingKeyDLQ — ключ маршрутизации в DLQ.
const routingKeyDLQ = "tasks"

// TaskQueue возвращает имя очереди для задачи.
// Пустое имя — очередь по умолчанию.
func TaskQueue(name string) Queue {
	if name == "" {
		return QueueTasksDefault
	}
	return Queue("tasks." + name)
}

// SetupTopology объявляет обменники, очереди задач и DLQ.
//
// Каждая очередь задач привязывается к conveyor.tasks со своим именем
// в качестве ключа маршрутизации и настроена ронять reject'ы в DLQ.
// Вызов идемпотентен, его делают и воркер, и планировщик, и CLI.
func SetupTopology(ctx context.Context, conn *Connection, queues ...Queue) error {
	if len(queues) == 0 {
		queues = []Queue{QueueTasksDefault}
	}

	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareTaskQueues(ch, queues); err != nil {
			return err
		}
		return declareDLQ(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeTasks, "direct"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareTaskQueues создаёт очереди задач с привязкой к DLQ.
func declareTaskQueues(ch *amqp.Channel, queues []Queue) error {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": routingKeyDLQ,
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q), // name
			true,      // durable
			false,     // delete when unused
			false,     // exclusive
			false,     // no-wait
			dlqArgs,   // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}

		// Ключ маршрутизации совпадает с именем очереди
		err = ch.QueueBind(
			string(q),             // queue name
			string(q),             // routing key
			string(ExchangeTasks), // exchange
			false,                 // no-wait
			nil,                   // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", q, ExchangeTasks, err)
		}
	}

	return nil
}

// declareDLQ создаёт очередь отклонённых сообщений.
func declareDLQ(ch *amqp.Channel) error {
	_, err := ch.QueueDeclare(
		string(QueueDLQTasks), // name
		true,                  // durable
		false,                 // delete when unused
		false,                 // exclusive
		false,                 // no-wait
		nil,                   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", QueueDLQTasks, err)
	}

	err = ch.QueueBind(
		string(QueueDLQTasks), // queue name
		routingKeyDLQ,         // routing key
		string(ExchangeDLQ),   // exchange
		false,                 // no-wait
		nil,                   // arguments
	)
	if err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", QueueDLQTasks, ExchangeDLQ, err)
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo(queues ...Queue) string {
	if len(queues) == 0 {
		queues = []Queue{QueueTasksDefault}
	}

	info := "\n  Conveyor RabbitMQ Topology:\n\n    conveyor.tasks (direct)\n"
	for _, q := range queues {
		info += fmt.Sprintf("    ├── %s [routing: %s]\n", q, q)
		info += "    │       Consumer: Worker\n"
		info += "    │       DLQ: dlq.tasks\n"
	}
	info += "    conveyor.dlq (direct)\n"
	info += "    └── dlq.tasks [routing: tasks]\n"
	info += "            Manual processing\n"
	return info
}
