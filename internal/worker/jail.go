package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/ashmetov/conveyor/internal/backend"
	"github.com/ashmetov/conveyor/internal/task"
	"github.com/ashmetov/conveyor/internal/telemetry"
)

// Shutdown — сигнал остановки воркера, брошенный изнутри handler'а
// через panic. Граница выполнения пропускает его насквозь: такая
// паника не превращается в FAILURE и не пишется в backend.
type Shutdown struct {
	// Reason — причина остановки, попадает в лог воркера.
	Reason string
}

// Error реализует error: перехваченный сигнал становится
// причиной остановки в Outcome.Signal.
func (s Shutdown) Error() string {
	return "worker shutdown: " + s.Reason
}

// Invocation — один вызов задачи внутри границы выполнения.
type Invocation struct {
	TaskID       string
	TaskName     string
	Handler      task.Handler
	Args         []any
	Kwargs       map[string]any
	IgnoreResult bool
}

// Hooks — наблюдатель выполнения. BeforeRun вызывается перед каждой
// попыткой, AfterRun — после, с итоговым исходом. AfterRun пропускается
// только для фатальных исходов.
type Hooks interface {
	BeforeRun(ctx context.Context, inv *Invocation)
	AfterRun(ctx context.Context, inv *Invocation, out Outcome)
}

// InitFunc — инициализация процесса перед задачей (прогрев соединений,
// настройка окружения). Ошибка инициализации фатальна для воркера:
// handler не вызывается, backend не трогается.
type InitFunc func(ctx context.Context, inv *Invocation) error

// JailConfig — зависимости границы выполнения.
type JailConfig struct {
	Backend backend.Backend
	Hooks   Hooks
	Init    InitFunc
	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// Jail — граница выполнения задачи.
//
// Единственное место, где вызывается handler. Любой исход задачи —
// значение, запрос повтора, ошибка, паника — фиксируется в backend
// и возвращается как Outcome. Ошибка задачи никогда не выходит из
// Run как ошибка: воркер переживает любую задачу. Исключения два:
// паника со значением Shutdown летит дальше (остановка воркера),
// а отмена контекста даёт KindFatal без записи в backend.
type Jail struct {
	backend backend.Backend
	hooks   Hooks
	init    InitFunc
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// NewJail создаёт границу выполнения.
func NewJail(cfg JailConfig) *Jail {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Jail{
		backend: cfg.Backend,
		hooks:   cfg.Hooks,
		init:    cfg.Init,
		metrics: cfg.Metrics,
		logger:  logger,
	}
}

// Run выполняет задачу под надзором.
//
// Порядок шагов:
//  1. старт таймера метрик по имени задачи;
//  2. init-хук процесса (ошибка фатальна);
//  3. BeforeRun;
//  4. ProcessCleanup backend'а (ошибка не фатальна);
//  5. вызов handler'а;
//  6. классификация исхода и запись в backend;
//  7. AfterRun с итоговым исходом (кроме фатальных);
//  8. остановка таймера — всегда, каким бы ни был исход.
//
// Возвращаемое значение: для успеха — значение handler'а, для повтора
// и ошибки — сохранённый ExcInfo, см. Outcome.Result.
func (j *Jail) Run(ctx context.Context, inv *Invocation) (out Outcome) {
	logger := telemetry.WithTask(j.logger, inv.TaskID, inv.TaskName)

	timer := j.metrics.StartTask(inv.TaskName)
	defer func() {
		timer.Stop(out.Kind.String())
	}()

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if sig, ok := r.(Shutdown); ok {
			// Исход выставляется до повторной паники, чтобы defer
			// таймера пометил попытку как fatal.
			out = Fatal(sig)
			panic(r)
		}

		perr := &task.PanicError{Value: r, Stack: debug.Stack()}
		logger.Error("task panicked", "error", perr)
		out = j.failure(ctx, logger, inv, perr)
		j.afterRun(ctx, inv, out)
	}()

	if j.init != nil {
		if err := j.init(ctx, inv); err != nil {
			logger.Error("task init failed", "error", err)
			return Fatal(fmt.Errorf("task init: %w", err))
		}
	}

	if j.hooks != nil {
		j.hooks.BeforeRun(ctx, inv)
	}

	if err := j.backend.ProcessCleanup(ctx); err != nil {
		logger.Warn("backend process cleanup failed", "error", err)
	}

	val, err := inv.Handler(ctx, inv.Args, inv.Kwargs)
	if err != nil {
		// Ошибка из-за отмены контекста — остановка воркера,
		// а не ошибка задачи.
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return Fatal(err)
		}

		var rerr *task.RetryError
		if errors.As(err, &rerr) {
			out = j.retry(ctx, logger, inv, rerr)
		} else {
			out = j.failure(ctx, logger, inv, err)
		}
		j.afterRun(ctx, inv, out)
		return out
	}

	out = j.success(ctx, logger, inv, val)
	j.afterRun(ctx, inv, out)
	return out
}

// success пишет DONE, если задача не помечена ignore-result.
// Значение handler'а возвращается в любом случае.
func (j *Jail) success(ctx context.Context, logger *slog.Logger, inv *Invocation, val any) Outcome {
	if !inv.IgnoreResult {
		if err := j.backend.MarkAsDone(ctx, inv.TaskID, val); err != nil {
			logger.Error("failed to store task result", "error", err)
		}
	}
	return Success(val)
}

// retry пишет RETRY. Сохраняется развёрнутое сообщение
// "причина: исходная ошибка" — сам исходный error не сериализуем.
func (j *Jail) retry(ctx context.Context, logger *slog.Logger, inv *Invocation, rerr *task.RetryError) Outcome {
	info, err := j.backend.MarkAsRetry(ctx, inv.TaskID, rerr)
	if err != nil {
		logger.Error("failed to store retry state", "error", err)
		info = task.NewExcInfo(rerr)
	}
	logger.Info("task requested retry", "reason", rerr.Reason)
	return Retried(info)
}

// failure пишет FAILURE и возвращает сериализуемое представление
// ошибки. Отказ backend'а не меняет исход задачи.
func (j *Jail) failure(ctx context.Context, logger *slog.Logger, inv *Invocation, cause error) Outcome {
	info, err := j.backend.MarkAsFailure(ctx, inv.TaskID, cause)
	if err != nil {
		logger.Error("failed to store task failure", "error", err)
		info = task.NewExcInfo(cause)
	}
	return Failed(info)
}

func (j *Jail) afterRun(ctx context.Context, inv *Invocation, out Outcome) {
	if j.hooks != nil {
		j.hooks.AfterRun(ctx, inv, out)
	}
}

// catchShutdown выполняет fn, перехватывая панику Shutdown и превращая
// её в фатальный исход. Используется хостом границы выполнения —
// диспетчером воркера и обёрткой пула, — чтобы остановка была штатной,
// а не аварийным завершением процесса. Любая другая паника летит дальше.
func catchShutdown(fn func() Outcome) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			sig, ok := r.(Shutdown)
			if !ok {
				panic(r)
			}
			out = Fatal(sig)
		}
	}()
	return fn()
}
