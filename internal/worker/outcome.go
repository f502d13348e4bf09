package worker

import "github.com/ashmetov/conveyor/internal/task"

// Kind — вид исхода одной попытки выполнения задачи.
type Kind int

const (
	// KindSuccess — handler вернул значение.
	KindSuccess Kind = iota

	// KindRetry — handler запросил повтор (task.RetryError).
	KindRetry

	// KindFailure — handler вернул ошибку или паниковал.
	KindFailure

	// KindFatal — фатальный сигнал уровня воркера.
	// В backend при этом ничего не записано.
	KindFatal
)

// String возвращает имя исхода для логов и метрик.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindRetry:
		return "retry"
	case KindFailure:
		return "failure"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome — исход одной попытки выполнения.
//
// Заполнен ровно один вариант:
//   - Success: Value — значение, возвращённое handler'ом
//   - Retry:   Exc — сериализованная причина повтора
//   - Failure: Exc — сериализованная ошибка
//   - Fatal:   Signal — причина остановки воркера
type Outcome struct {
	Kind   Kind
	Value  any
	Exc    *task.ExcInfo
	Signal error
}

// Success строит успешный исход.
func Success(v any) Outcome { return Outcome{Kind: KindSuccess, Value: v} }

// Retried строит исход повтора.
func Retried(exc *task.ExcInfo) Outcome { return Outcome{Kind: KindRetry, Exc: exc} }

// Failed строит ошибочный исход.
func Failed(exc *task.ExcInfo) Outcome { return Outcome{Kind: KindFailure, Exc: exc} }

// Fatal строит фатальный исход.
func Fatal(sig error) Outcome { return Outcome{Kind: KindFatal, Signal: sig} }

// Result возвращает значение по контракту границы выполнения:
// значение задачи для Success, ExcInfo для Retry и Failure.
// Для Fatal возвращает Signal, но вызывающие обязаны обрабатывать
// фатальный исход отдельно, не через Result.
func (o Outcome) Result() any {
	switch o.Kind {
	case KindRetry, KindFailure:
		return o.Exc
	case KindFatal:
		return o.Signal
	default:
		return o.Value
	}
}
