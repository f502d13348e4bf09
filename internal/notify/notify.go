// Package notify отвечает за уведомления администраторов об ошибках задач.
//
// Структура:
//   - notify.go — интерфейс Dispatcher и заглушка Nop
//   - smtp.go   — доставка по SMTP через gomail
//
// Доставка всегда best-effort: воркер логирует ошибку отправки
// и продолжает работу, исход задачи от неё не зависит.
package notify

import "context"

// Dispatcher — отправитель уведомлений.
type Dispatcher interface {
	Send(ctx context.Context, subject, body string) error
}

// Nop — диспетчер-заглушка: молча проглатывает уведомления.
// Используется, когда уведомления не настроены.
type Nop struct{}

// Send ничего не делает.
func (Nop) Send(ctx context.Context, subject, body string) error {
	return nil
}
