package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashmetov/conveyor/internal/mq"
	"github.com/ashmetov/conveyor/internal/pool"
	"github.com/ashmetov/conveyor/internal/task"
)

// handleDelivery обрабатывает одно сообщение очереди задач.
//
// Судьба сообщения:
//   - воркер останавливается — в очередь, подберёт другой экземпляр;
//   - некорректный JSON или незнакомая задача — в DLQ;
//   - пул переполнен или остановлен — в очередь;
//   - задача взята в работу — ack до выполнения, дальше сообщение
//     уже не вернётся, каким бы ни был исход.
func (w *Worker) handleDelivery(ctx context.Context, d *mq.Delivery) error {
	if w.IsStopped() {
		return ErrWorkerStopped
	}

	wrapper, err := FromMessage(w.wcfg, d.Body(), d.Ack)
	if err != nil {
		if errors.Is(err, task.ErrMalformedMessage) || errors.Is(err, task.ErrNotRegistered) {
			return fmt.Errorf("%w: %v", mq.ErrReject, err)
		}
		return err
	}

	if w.pool == nil {
		w.executeInline(ctx, wrapper)
		return nil
	}

	if _, err := wrapper.ExecuteViaPool(w.pool, w.loglevel, w.logfile); err != nil {
		// Сообщение ещё не подтверждено — вернётся в очередь
		return fmt.Errorf("submit to pool: %w", err)
	}

	return nil
}

// executeInline выполняет задачу в горутине consumer'а.
// Callback'и доставляются здесь же: в пуле это делает пул, а без
// него исход иначе остался бы незалогированным.
func (w *Worker) executeInline(ctx context.Context, wrapper *TaskWrapper) {
	out := catchShutdown(func() Outcome {
		return wrapper.Execute(ctx, w.loglevel, w.logfile)
	})

	meta := pool.Meta{TaskID: wrapper.TaskID, TaskName: wrapper.TaskName}

	switch out.Kind {
	case KindFatal:
		w.logger.Error("worker-fatal signal during task", "error", out.Signal)
		w.markStopped()
		if w.cancelFunc != nil {
			w.cancelFunc()
		}
	case KindSuccess:
		wrapper.OnSuccess(out.Value, meta)
	default:
		wrapper.OnFailure(out.Exc, meta)
	}
}
