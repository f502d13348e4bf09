package task

import "fmt"

// RetryError — сигнал повторной постановки задачи.
//
// Handler возвращает *RetryError, чтобы запросить повтор вместо
// фиксации ошибки. Граница выполнения распознаёт его через errors.As
// и помечает результат как RETRY, а не FAILURE. Тип выделен намеренно:
// повтор — это отдельная ветка исхода, а не разновидность ошибки,
// которую пришлось бы угадывать по содержимому.
type RetryError struct {
	// Reason — человекочитаемая причина повтора.
	Reason string

	// Cause — исходная ошибка, вызвавшая повтор. Может быть nil.
	Cause error
}

// Retry создаёт RetryError с причиной и исходной ошибкой.
func Retry(reason string, cause error) *RetryError {
	return &RetryError{Reason: reason, Cause: cause}
}

// Error возвращает "<причина>: <исходная ошибка>".
// Именно эта строка попадает в сохранённый ExcInfo — исходная ошибка
// стрингифицируется и не переживает сериализацию как объект.
func (e *RetryError) Error() string {
	if e.Cause == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Cause)
}

// Unwrap возвращает исходную ошибку.
func (e *RetryError) Unwrap() error { return e.Cause }
