// Package mq — слой RabbitMQ: соединение, топология, публикация
// и потребление задач.
//
//   - connection.go — соединение с автоматическим переподключением
//   - topology.go   — объявление exchange'ей, очередей и привязок
//   - publisher.go  — отправка задач в очереди
//   - consumer.go   — подписка с ручным подтверждением
//
// Exchange conveyor.tasks (direct) маршрутизирует по имени очереди,
// conveyor.dlq собирает отклонённые сообщения. Очереди задач
// называются tasks.<имя> (по умолчанию tasks.default); тело
// сообщения — task.Message в JSON, без конверта.
package mq
