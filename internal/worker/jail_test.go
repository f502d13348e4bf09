package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/ashmetov/conveyor/internal/backend"
	"github.com/ashmetov/conveyor/internal/task"
)

// spyBackend записывает все обращения границы выполнения и позволяет
// подсунуть ошибки хранения.
type spyBackend struct {
	mu sync.Mutex

	cleanups int
	done     []spyDone
	retries  []spyExc
	failures []spyExc

	cleanupErr error
	doneErr    error
	markErr    error
}

type spyDone struct {
	taskID string
	value  any
}

type spyExc struct {
	taskID string
	cause  error
}

func (b *spyBackend) ProcessCleanup(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cleanups++
	return b.cleanupErr
}

func (b *spyBackend) MarkAsDone(_ context.Context, taskID string, result any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done = append(b.done, spyDone{taskID: taskID, value: result})
	return b.doneErr
}

func (b *spyBackend) MarkAsRetry(_ context.Context, taskID string, cause error) (*task.ExcInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.retries = append(b.retries, spyExc{taskID: taskID, cause: cause})
	if b.markErr != nil {
		return nil, b.markErr
	}
	return task.NewExcInfo(cause), nil
}

func (b *spyBackend) MarkAsFailure(_ context.Context, taskID string, cause error) (*task.ExcInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = append(b.failures, spyExc{taskID: taskID, cause: cause})
	if b.markErr != nil {
		return nil, b.markErr
	}
	return task.NewExcInfo(cause), nil
}

func (b *spyBackend) Status(_ context.Context, _ string) (task.Status, error) {
	return task.StatusPending, nil
}

func (b *spyBackend) Result(_ context.Context, _ string) (*backend.Meta, error) {
	return nil, backend.ErrNotFound
}

// recordingHooks запоминает порядок вызовов BeforeRun/AfterRun.
type recordingHooks struct {
	mu     sync.Mutex
	before []string
	after  []Outcome
}

func (h *recordingHooks) BeforeRun(_ context.Context, inv *Invocation) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.before = append(h.before, inv.TaskID)
}

func (h *recordingHooks) AfterRun(_ context.Context, _ *Invocation, out Outcome) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.after = append(h.after, out)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestJail(b backend.Backend, hooks Hooks) *Jail {
	return NewJail(JailConfig{
		Backend: b,
		Hooks:   hooks,
		Logger:  discardLogger(),
	})
}

func testInvocation(handler task.Handler) *Invocation {
	return &Invocation{
		TaskID:   "t1",
		TaskName: "demo.task",
		Handler:  handler,
		Args:     []any{2.0, 3.0},
		Kwargs:   map[string]any{},
	}
}

func TestJailRun_Success(t *testing.T) {
	b := &spyBackend{}
	jail := newTestJail(b, nil)

	inv := testInvocation(func(_ context.Context, _ []any, _ map[string]any) (any, error) {
		return 5.0, nil
	})

	out := jail.Run(context.Background(), inv)

	if out.Kind != KindSuccess {
		t.Fatalf("expected success, got %s", out.Kind)
	}
	if out.Result() != 5.0 {
		t.Errorf("expected result 5.0, got %v", out.Result())
	}
	if len(b.done) != 1 {
		t.Fatalf("expected one MarkAsDone call, got %d", len(b.done))
	}
	if b.done[0].taskID != "t1" || b.done[0].value != 5.0 {
		t.Errorf("unexpected stored result: %+v", b.done[0])
	}
	if b.cleanups != 1 {
		t.Errorf("expected one ProcessCleanup call, got %d", b.cleanups)
	}
}

func TestJailRun_IgnoreResult(t *testing.T) {
	b := &spyBackend{}
	jail := newTestJail(b, nil)

	inv := testInvocation(func(_ context.Context, _ []any, _ map[string]any) (any, error) {
		return "done", nil
	})
	inv.IgnoreResult = true

	out := jail.Run(context.Background(), inv)

	if out.Kind != KindSuccess {
		t.Fatalf("expected success, got %s", out.Kind)
	}
	// Значение возвращается вызывающему, но в backend не пишется.
	if out.Result() != "done" {
		t.Errorf("expected result to pass through, got %v", out.Result())
	}
	if len(b.done) != 0 {
		t.Errorf("expected no MarkAsDone calls, got %d", len(b.done))
	}
}

func TestJailRun_Retry(t *testing.T) {
	b := &spyBackend{}
	jail := newTestJail(b, nil)

	inv := testInvocation(func(_ context.Context, _ []any, _ map[string]any) (any, error) {
		return nil, task.Retry("transient network error", errors.New("timeout"))
	})

	out := jail.Run(context.Background(), inv)

	if out.Kind != KindRetry {
		t.Fatalf("expected retry, got %s", out.Kind)
	}
	if out.Exc == nil {
		t.Fatal("retry outcome must carry ExcInfo")
	}
	if out.Exc.Message != "transient network error: timeout" {
		t.Errorf("unexpected exc message: %q", out.Exc.Message)
	}
	if len(b.retries) != 1 {
		t.Fatalf("expected one MarkAsRetry call, got %d", len(b.retries))
	}
	if len(b.failures) != 0 {
		t.Errorf("retry must not be stored as failure")
	}
	// Result() для повтора возвращает ExcInfo, не значение.
	if out.Result() != out.Exc {
		t.Errorf("Result() must return ExcInfo for retry outcome")
	}
}

func TestJailRun_RetryWithoutCause(t *testing.T) {
	b := &spyBackend{}
	jail := newTestJail(b, nil)

	inv := testInvocation(func(_ context.Context, _ []any, _ map[string]any) (any, error) {
		return nil, task.Retry("rate limited", nil)
	})

	out := jail.Run(context.Background(), inv)

	if out.Kind != KindRetry {
		t.Fatalf("expected retry, got %s", out.Kind)
	}
	if out.Exc.Message != "rate limited" {
		t.Errorf("unexpected exc message: %q", out.Exc.Message)
	}
}

func TestJailRun_Failure(t *testing.T) {
	b := &spyBackend{}
	jail := newTestJail(b, nil)

	boom := errors.New("boom")
	inv := testInvocation(func(_ context.Context, _ []any, _ map[string]any) (any, error) {
		return nil, boom
	})

	out := jail.Run(context.Background(), inv)

	if out.Kind != KindFailure {
		t.Fatalf("expected failure, got %s", out.Kind)
	}
	if out.Exc.Type != "*errors.errorString" {
		t.Errorf("unexpected exc type: %q", out.Exc.Type)
	}
	if out.Exc.Message != "boom" {
		t.Errorf("unexpected exc message: %q", out.Exc.Message)
	}
	if len(b.failures) != 1 {
		t.Fatalf("expected one MarkAsFailure call, got %d", len(b.failures))
	}
	if !errors.Is(b.failures[0].cause, boom) {
		t.Errorf("stored cause must be the handler error")
	}
}

func TestJailRun_Panic(t *testing.T) {
	b := &spyBackend{}
	hooks := &recordingHooks{}
	jail := newTestJail(b, hooks)

	inv := testInvocation(func(_ context.Context, _ []any, _ map[string]any) (any, error) {
		panic("boom")
	})

	out := jail.Run(context.Background(), inv)

	if out.Kind != KindFailure {
		t.Fatalf("expected failure, got %s", out.Kind)
	}
	if out.Exc.Type != "*task.PanicError" {
		t.Errorf("unexpected exc type: %q", out.Exc.Type)
	}
	if out.Exc.Message != "panic: boom" {
		t.Errorf("unexpected exc message: %q", out.Exc.Message)
	}
	if out.Exc.Traceback == "" {
		t.Error("panic must carry a stack trace")
	}
	if len(b.failures) != 1 {
		t.Fatalf("expected one MarkAsFailure call, got %d", len(b.failures))
	}
	// AfterRun вызывается и после паники: исход зафиксирован как FAILURE.
	if len(hooks.after) != 1 || hooks.after[0].Kind != KindFailure {
		t.Errorf("AfterRun must observe the failure outcome, got %+v", hooks.after)
	}
}

func TestJailRun_ShutdownPassesThrough(t *testing.T) {
	b := &spyBackend{}
	hooks := &recordingHooks{}
	jail := newTestJail(b, hooks)

	sig := Shutdown{Reason: "deploy"}
	inv := testInvocation(func(_ context.Context, _ []any, _ map[string]any) (any, error) {
		panic(sig)
	})

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		jail.Run(context.Background(), inv)
	}()

	if recovered != sig {
		t.Fatalf("shutdown signal must pass through unchanged, got %v", recovered)
	}
	if len(b.done)+len(b.retries)+len(b.failures) != 0 {
		t.Error("shutdown must not touch the backend")
	}
	if len(hooks.after) != 0 {
		t.Error("AfterRun must be skipped on shutdown")
	}
}

func TestJailRun_ContextCanceled(t *testing.T) {
	b := &spyBackend{}
	hooks := &recordingHooks{}
	jail := newTestJail(b, hooks)

	ctx, cancel := context.WithCancel(context.Background())
	inv := testInvocation(func(ctx context.Context, _ []any, _ map[string]any) (any, error) {
		cancel()
		return nil, ctx.Err()
	})

	out := jail.Run(ctx, inv)

	if out.Kind != KindFatal {
		t.Fatalf("expected fatal, got %s", out.Kind)
	}
	if !errors.Is(out.Signal, context.Canceled) {
		t.Errorf("signal must carry the cancellation: %v", out.Signal)
	}
	if len(b.done)+len(b.retries)+len(b.failures) != 0 {
		t.Error("cancellation must not be stored as a task outcome")
	}
	if len(hooks.after) != 0 {
		t.Error("AfterRun must be skipped on fatal outcome")
	}
}

func TestJailRun_CanceledErrorWithLiveContext(t *testing.T) {
	b := &spyBackend{}
	jail := newTestJail(b, nil)

	// context.Canceled из живого контекста — обычная ошибка задачи.
	inv := testInvocation(func(_ context.Context, _ []any, _ map[string]any) (any, error) {
		return nil, context.Canceled
	})

	out := jail.Run(context.Background(), inv)

	if out.Kind != KindFailure {
		t.Fatalf("expected failure, got %s", out.Kind)
	}
	if len(b.failures) != 1 {
		t.Errorf("expected one MarkAsFailure call, got %d", len(b.failures))
	}
}

func TestJailRun_Hooks(t *testing.T) {
	b := &spyBackend{}
	hooks := &recordingHooks{}
	jail := newTestJail(b, hooks)

	inv := testInvocation(func(_ context.Context, _ []any, _ map[string]any) (any, error) {
		return 1.0, nil
	})

	jail.Run(context.Background(), inv)

	if len(hooks.before) != 1 || hooks.before[0] != "t1" {
		t.Errorf("BeforeRun not called: %+v", hooks.before)
	}
	if len(hooks.after) != 1 || hooks.after[0].Kind != KindSuccess {
		t.Errorf("AfterRun not called with success: %+v", hooks.after)
	}
}

func TestJailRun_StoreErrorDoesNotChangeOutcome(t *testing.T) {
	b := &spyBackend{doneErr: errors.New("backend down")}
	jail := newTestJail(b, nil)

	inv := testInvocation(func(_ context.Context, _ []any, _ map[string]any) (any, error) {
		return 42.0, nil
	})

	out := jail.Run(context.Background(), inv)

	if out.Kind != KindSuccess {
		t.Fatalf("store error must not fail the task, got %s", out.Kind)
	}
	if out.Result() != 42.0 {
		t.Errorf("expected result despite store error, got %v", out.Result())
	}
}

func TestJailRun_MarkErrorFallsBackToLocalExcInfo(t *testing.T) {
	b := &spyBackend{markErr: errors.New("backend down")}
	jail := newTestJail(b, nil)

	inv := testInvocation(func(_ context.Context, _ []any, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	out := jail.Run(context.Background(), inv)

	if out.Kind != KindFailure {
		t.Fatalf("expected failure, got %s", out.Kind)
	}
	// ExcInfo строится локально, когда backend недоступен.
	if out.Exc == nil || out.Exc.Message != "boom" {
		t.Errorf("expected local ExcInfo fallback, got %+v", out.Exc)
	}
}

func TestJailRun_InitErrorIsFatal(t *testing.T) {
	b := &spyBackend{}
	hooks := &recordingHooks{}

	handlerCalled := false
	jail := NewJail(JailConfig{
		Backend: b,
		Hooks:   hooks,
		Init: func(_ context.Context, _ *Invocation) error {
			return errors.New("no database")
		},
		Logger: discardLogger(),
	})

	inv := testInvocation(func(_ context.Context, _ []any, _ map[string]any) (any, error) {
		handlerCalled = true
		return nil, nil
	})

	out := jail.Run(context.Background(), inv)

	if out.Kind != KindFatal {
		t.Fatalf("init error must be fatal, got %s", out.Kind)
	}
	if handlerCalled {
		t.Error("handler must not run after init failure")
	}
	if len(hooks.before) != 0 {
		t.Error("BeforeRun must not run after init failure")
	}
	if b.cleanups != 0 {
		t.Error("ProcessCleanup must not run after init failure")
	}
}

func TestJailRun_CleanupErrorIsNotFatal(t *testing.T) {
	b := &spyBackend{cleanupErr: errors.New("leftover state")}
	jail := newTestJail(b, nil)

	inv := testInvocation(func(_ context.Context, _ []any, _ map[string]any) (any, error) {
		return "ok", nil
	})

	out := jail.Run(context.Background(), inv)

	if out.Kind != KindSuccess {
		t.Fatalf("cleanup error must not fail the task, got %s", out.Kind)
	}
}

func TestCatchShutdown(t *testing.T) {
	sig := Shutdown{Reason: "drain"}

	out := catchShutdown(func() Outcome {
		panic(sig)
	})

	if out.Kind != KindFatal {
		t.Fatalf("expected fatal, got %s", out.Kind)
	}
	if out.Signal != sig {
		t.Errorf("expected the shutdown signal, got %v", out.Signal)
	}
}

func TestCatchShutdown_PassesResultThrough(t *testing.T) {
	out := catchShutdown(func() Outcome {
		return Success("value")
	})

	if out.Kind != KindSuccess || out.Value != "value" {
		t.Errorf("unexpected outcome: %+v", out)
	}
}

func TestCatchShutdown_RepanicsOtherValues(t *testing.T) {
	var recovered any
	func() {
		defer func() { recovered = recover() }()
		catchShutdown(func() Outcome {
			panic("not a shutdown")
		})
	}()

	if recovered != "not a shutdown" {
		t.Fatalf("foreign panic must pass through, got %v", recovered)
	}
}
