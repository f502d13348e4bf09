package task

import "fmt"

// Status — статус результата задачи в result backend.
//
// Жизненный цикл:
//
//	PENDING → DONE
//	        ↘ RETRY (повторная постановка, не финальный)
//	        ↘ FAILURE
type Status string

const (
	// StatusPending — результата ещё нет: задача не выполнялась
	// или выполняется прямо сейчас.
	StatusPending Status = "PENDING"

	// StatusRetry — попытка запросила повтор; задача будет
	// поставлена в очередь снова.
	StatusRetry Status = "RETRY"

	// StatusFailure — попытка завершилась ошибкой.
	StatusFailure Status = "FAILURE"

	// StatusDone — задача успешно выполнена, результат сохранён.
	StatusDone Status = "DONE"
)

// AllStatuses перечисляет все статусы в стабильном порядке.
var AllStatuses = []Status{StatusPending, StatusRetry, StatusFailure, StatusDone}

// String возвращает строковое представление статуса.
func (s Status) String() string { return string(s) }

// IsTerminal возвращает true, если статус финальный.
// RETRY не финальный: следующая попытка той же задачи может
// завершиться и DONE, и FAILURE.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDone, StatusFailure:
		return true
	default:
		return false
	}
}

// ParseStatus парсит строку в Status.
func ParseStatus(s string) (Status, error) {
	switch s {
	case string(StatusPending):
		return StatusPending, nil
	case string(StatusRetry):
		return StatusRetry, nil
	case string(StatusFailure):
		return StatusFailure, nil
	case string(StatusDone):
		return StatusDone, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
}
