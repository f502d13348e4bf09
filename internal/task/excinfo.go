package task

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ExcInfo — сериализуемое представление ошибки выполнения задачи.
//
// Хранится в result backend и пересекает границы процессов, поэтому
// содержит только строки: тип ошибки, сообщение и stack trace.
// Живой error-объект никогда не сохраняется.
type ExcInfo struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Traceback string `json:"traceback"`
}

// NewExcInfo строит ExcInfo из произвольной ошибки.
//
// Для *PanicError используется stack, снятый в момент паники.
// Для остальных ошибок stack снимается в точке вызова — Go-ошибки
// сами по себе stack trace не несут.
func NewExcInfo(err error) *ExcInfo {
	trace := debug.Stack()

	var p *PanicError
	if errors.As(err, &p) && len(p.Stack) > 0 {
		trace = p.Stack
	}

	return &ExcInfo{
		Type:      fmt.Sprintf("%T", err),
		Message:   err.Error(),
		Traceback: string(trace),
	}
}

// Error реализует error: ExcInfo передаётся в callback'и пула
// как значение-ошибка.
func (e *ExcInfo) Error() string {
	return e.Message
}

// TaskFailure помечает ExcInfo как ошибку уровня задачи.
// По этому маркеру pool отличает ошибочный результат от значения,
// которое задача легитимно вернула (см. pool.Failure).
func (e *ExcInfo) TaskFailure() {}

// PanicError — паника handler'а, перехваченная на границе выполнения.
//
// Паника конкретной задачи не роняет воркер: она превращается
// в обычный FAILURE с сохранённым stack trace.
type PanicError struct {
	Value any
	Stack []byte
}

// Error возвращает описание паники.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
