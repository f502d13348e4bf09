package pool

import (
	"context"
	"sync"
)

// Meta — идентификация задания для callback'ов и логов.
type Meta struct {
	TaskID   string
	TaskName string
}

// Failure помечает результат Run как ошибку уровня задачи.
//
// Результат, реализующий Failure, диспетчеризуется в OnFailure.
// Любое другое значение уходит в OnSuccess — включая обычный error,
// который задача легитимно вернула как значение результата.
type Failure interface {
	error
	TaskFailure()
}

// Abort — фатальный сигнал из задания.
//
// Получив Abort, пул не вызывает ни один callback и начинает
// остановку: воркер, вернувший Abort, сообщает, что продолжать
// выполнение нельзя.
type Abort struct {
	// Signal — причина остановки.
	Signal error
}

// Request — задание для пула.
type Request struct {
	// Run выполняет работу. Возвращённое значение диспетчеризуется
	// в callback'и (см. Failure, Abort). Контекст принадлежит пулу
	// и отменяется при его остановке.
	Run func(ctx context.Context) any

	// OnSuccess вызывается с результатом, не являющимся Failure.
	OnSuccess func(v any, meta Meta)

	// OnFailure вызывается с результатом, реализующим Failure.
	OnFailure func(err error, meta Meta)

	// OnAck вызывается перед Run: подтверждение того, что задание
	// принято в работу.
	OnAck func()

	// Meta передаётся во все callback'и.
	Meta Meta
}

// AsyncResult — хэндл отправленного задания.
//
// Закрытие Done() означает, что Run завершился и callback'и
// доставлены. Для заданий, отброшенных при остановке пула, Done()
// не закрывается — ждать следует с контекстом.
type AsyncResult struct {
	meta  Meta
	done  chan struct{}
	once  sync.Once
	value any
}

func newAsyncResult(meta Meta) *AsyncResult {
	return &AsyncResult{meta: meta, done: make(chan struct{})}
}

// Meta возвращает идентификацию задания.
func (r *AsyncResult) Meta() Meta { return r.meta }

// Done закрывается после завершения задания.
func (r *AsyncResult) Done() <-chan struct{} { return r.done }

// Wait блокируется до завершения задания или отмены ctx.
// Возвращает значение, которое вернул Run.
func (r *AsyncResult) Wait(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.done:
		return r.value, nil
	}
}

func (r *AsyncResult) complete(v any) {
	r.once.Do(func() {
		r.value = v
		close(r.done)
	})
}
