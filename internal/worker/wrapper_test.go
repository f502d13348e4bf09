package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/ashmetov/conveyor/internal/pool"
	"github.com/ashmetov/conveyor/internal/task"
)

// fakeNotifier собирает отправленные письма вместо реальной доставки.
type fakeNotifier struct {
	mu       sync.Mutex
	subjects []string
	bodies   []string
	err      error
}

func (n *fakeNotifier) Send(_ context.Context, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subjects = append(n.subjects, subject)
	n.bodies = append(n.bodies, body)
	return n.err
}

func (n *fakeNotifier) sent() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subjects)
}

func okHandler(_ context.Context, _ []any, _ map[string]any) (any, error) {
	return 5.0, nil
}

func testWrapperConfig(reg *task.Registry, logger *slog.Logger) WrapperConfig {
	if logger == nil {
		logger = discardLogger()
	}
	return WrapperConfig{
		Registry: reg,
		Jail:     newTestJail(&spyBackend{}, nil),
		Hostname: "testhost",
		Logger:   logger,
	}
}

func newTestWrapper(t *testing.T, cfg WrapperConfig, body string, onAck AckFunc) *TaskWrapper {
	t.Helper()
	w, err := FromMessage(cfg, []byte(body), onAck)
	if err != nil {
		t.Fatalf("FromMessage: %v", err)
	}
	return w
}

func TestFromMessage_MalformedBody(t *testing.T) {
	cfg := testWrapperConfig(task.NewRegistry(), nil)

	_, err := FromMessage(cfg, []byte("{not json"), nil)
	if !errors.Is(err, task.ErrMalformedMessage) {
		t.Fatalf("expected ErrMalformedMessage, got %v", err)
	}
}

func TestFromMessage_UnknownTask(t *testing.T) {
	cfg := testWrapperConfig(task.NewRegistry(), nil)

	_, err := FromMessage(cfg, []byte(`{"task":"demo.unknown","id":"t1"}`), nil)
	if !errors.Is(err, task.ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestFromMessage_Fields(t *testing.T) {
	reg := task.NewRegistry()
	reg.Register("demo.add", okHandler)
	cfg := testWrapperConfig(reg, nil)

	body := `{"task":"demo.add","id":"t1","args":[2,3],"kwargs":{"user":"alice"},"retries":2}`
	w := newTestWrapper(t, cfg, body, nil)

	if w.TaskID != "t1" || w.TaskName != "demo.add" {
		t.Errorf("unexpected identity: %s[%s]", w.TaskName, w.TaskID)
	}
	if len(w.Args) != 2 {
		t.Errorf("expected 2 args, got %d", len(w.Args))
	}
	if w.Kwargs["user"] != "alice" {
		t.Errorf("unexpected kwargs: %+v", w.Kwargs)
	}
	if w.Retries != 2 {
		t.Errorf("expected retries 2, got %d", w.Retries)
	}
}

func TestExtendWithDefaultKwargs(t *testing.T) {
	reg := task.NewRegistry()
	reg.Register("demo.add", okHandler)
	cfg := testWrapperConfig(reg, nil)

	body := `{"task":"demo.add","id":"t1","kwargs":{"user":"alice"},"retries":3}`
	w := newTestWrapper(t, cfg, body, nil)

	ext := w.ExtendWithDefaultKwargs(slog.LevelWarn, "/var/log/worker.log")

	if ext["user"] != "alice" {
		t.Errorf("user kwarg lost: %+v", ext)
	}
	if ext["task_id"] != "t1" || ext["task_name"] != "demo.add" {
		t.Errorf("identity kwargs missing: %+v", ext)
	}
	if ext["task_retries"] != 3 {
		t.Errorf("expected task_retries 3, got %v", ext["task_retries"])
	}
	if ext["logfile"] != "/var/log/worker.log" {
		t.Errorf("unexpected logfile: %v", ext["logfile"])
	}
	if ext["loglevel"] != slog.LevelWarn {
		t.Errorf("unexpected loglevel: %v", ext["loglevel"])
	}

	// Исходные kwargs обёртки не изменяются.
	if _, ok := w.Kwargs["task_id"]; ok {
		t.Error("ExtendWithDefaultKwargs must not mutate the original kwargs")
	}

	// Каждый вызов возвращает независимую копию.
	ext["injected"] = true
	ext2 := w.ExtendWithDefaultKwargs(slog.LevelWarn, "/var/log/worker.log")
	if _, ok := ext2["injected"]; ok {
		t.Error("second call must return a fresh map")
	}
}

func TestExecute_AcksBeforeHandler(t *testing.T) {
	var order []string

	reg := task.NewRegistry()
	reg.Register("demo.order", func(_ context.Context, _ []any, _ map[string]any) (any, error) {
		order = append(order, "run")
		return nil, nil
	})
	cfg := testWrapperConfig(reg, nil)

	w := newTestWrapper(t, cfg, `{"task":"demo.order","id":"t1"}`, func() error {
		order = append(order, "ack")
		return nil
	})

	out := w.Execute(context.Background(), slog.LevelInfo, "")

	if out.Kind != KindSuccess {
		t.Fatalf("expected success, got %s", out.Kind)
	}
	if len(order) != 2 || order[0] != "ack" || order[1] != "run" {
		t.Errorf("expected ack before run, got %v", order)
	}
}

func TestExecute_AckErrorDoesNotBlockExecution(t *testing.T) {
	reg := task.NewRegistry()
	reg.Register("demo.add", okHandler)
	cfg := testWrapperConfig(reg, nil)

	w := newTestWrapper(t, cfg, `{"task":"demo.add","id":"t1"}`, func() error {
		return errors.New("channel closed")
	})

	out := w.Execute(context.Background(), slog.LevelInfo, "")

	if out.Kind != KindSuccess {
		t.Fatalf("ack error must not prevent execution, got %s", out.Kind)
	}
}

func TestOnSuccess_LogsRenderedMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	reg := task.NewRegistry()
	reg.Register("demo.add", okHandler)
	cfg := testWrapperConfig(reg, logger)

	w := newTestWrapper(t, cfg, `{"task":"demo.add","id":"t1","args":[2,3]}`, nil)
	w.OnSuccess(5.0, pool.Meta{TaskID: "t1", TaskName: "demo.add"})

	if !strings.Contains(buf.String(), "Task demo.add[t1] processed: 5") {
		t.Errorf("success message not logged: %s", buf.String())
	}
}

func TestOnSuccess_CustomTemplate(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	reg := task.NewRegistry()
	reg.Register("demo.add", okHandler)
	cfg := testWrapperConfig(reg, logger)
	cfg.Templates = Templates{SuccessMsg: "finished {{.Name}} with {{.Return}}"}

	w := newTestWrapper(t, cfg, `{"task":"demo.add","id":"t1"}`, nil)
	w.OnSuccess(5.0, pool.Meta{TaskID: "t1", TaskName: "demo.add"})

	if !strings.Contains(buf.String(), "finished demo.add with 5") {
		t.Errorf("custom template not applied: %s", buf.String())
	}
}

func TestOnFailure_LogsRenderedMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	reg := task.NewRegistry()
	reg.Register("demo.add", okHandler)
	cfg := testWrapperConfig(reg, logger)

	w := newTestWrapper(t, cfg, `{"task":"demo.add","id":"t1"}`, nil)
	w.OnFailure(task.NewExcInfo(errors.New("boom")), pool.Meta{TaskID: "t1", TaskName: "demo.add"})

	if !strings.Contains(buf.String(), "Task demo.add[t1] raised exception: boom") {
		t.Errorf("failure message not logged: %s", buf.String())
	}
}

func TestOnFailure_WrapsPlainError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	reg := task.NewRegistry()
	reg.Register("demo.add", okHandler)
	cfg := testWrapperConfig(reg, logger)

	w := newTestWrapper(t, cfg, `{"task":"demo.add","id":"t1"}`, nil)
	// Обычная ошибка без ExcInfo тоже попадает в шаблон.
	w.OnFailure(errors.New("plain failure"), pool.Meta{TaskID: "t1", TaskName: "demo.add"})

	if !strings.Contains(buf.String(), "raised exception: plain failure") {
		t.Errorf("plain error not rendered: %s", buf.String())
	}
}

func TestOnFailure_SendsErrorMail(t *testing.T) {
	notifier := &fakeNotifier{}

	reg := task.NewRegistry()
	reg.Register("demo.add", okHandler)
	cfg := testWrapperConfig(reg, nil)
	cfg.Notifier = notifier
	cfg.SendErrorMails = true

	w := newTestWrapper(t, cfg, `{"task":"demo.add","id":"t1"}`, nil)
	w.OnFailure(task.NewExcInfo(errors.New("boom")), pool.Meta{TaskID: "t1", TaskName: "demo.add"})

	if notifier.sent() != 1 {
		t.Fatalf("expected one error mail, got %d", notifier.sent())
	}
	want := "[conveyor@testhost] Error: Task demo.add (t1): boom"
	if notifier.subjects[0] != want {
		t.Errorf("unexpected subject:\n got %q\nwant %q", notifier.subjects[0], want)
	}
	if !strings.Contains(notifier.bodies[0], "The contents of the full traceback") {
		t.Errorf("mail body missing traceback section: %s", notifier.bodies[0])
	}
}

func TestOnFailure_MailPolicy(t *testing.T) {
	tests := []struct {
		name      string
		globalOn  bool
		taskOpts  []task.Option
		wantMails int
	}{
		{"global on, task default", true, nil, 1},
		{"global on, task opted out", true, []task.Option{task.WithoutErrorMails()}, 0},
		{"global off", false, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &fakeNotifier{}

			reg := task.NewRegistry()
			reg.Register("demo.add", okHandler, tt.taskOpts...)
			cfg := testWrapperConfig(reg, nil)
			cfg.Notifier = notifier
			cfg.SendErrorMails = tt.globalOn

			w := newTestWrapper(t, cfg, `{"task":"demo.add","id":"t1"}`, nil)
			w.OnFailure(task.NewExcInfo(errors.New("boom")), pool.Meta{TaskID: "t1", TaskName: "demo.add"})

			if notifier.sent() != tt.wantMails {
				t.Errorf("expected %d mails, got %d", tt.wantMails, notifier.sent())
			}
		})
	}
}

func TestOnFailure_NilNotifier(t *testing.T) {
	reg := task.NewRegistry()
	reg.Register("demo.add", okHandler)
	cfg := testWrapperConfig(reg, nil)
	cfg.SendErrorMails = true

	w := newTestWrapper(t, cfg, `{"task":"demo.add","id":"t1"}`, nil)
	// Без notifier'а включённая политика писем не должна падать.
	w.OnFailure(task.NewExcInfo(errors.New("boom")), pool.Meta{TaskID: "t1", TaskName: "demo.add"})
}

func TestOnFailure_MailErrorOnlyLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	notifier := &fakeNotifier{err: errors.New("smtp down")}

	reg := task.NewRegistry()
	reg.Register("demo.add", okHandler)
	cfg := testWrapperConfig(reg, logger)
	cfg.Notifier = notifier
	cfg.SendErrorMails = true

	w := newTestWrapper(t, cfg, `{"task":"demo.add","id":"t1"}`, nil)
	w.OnFailure(task.NewExcInfo(errors.New("boom")), pool.Meta{TaskID: "t1", TaskName: "demo.add"})

	if !strings.Contains(buf.String(), "failed to send error mail") {
		t.Errorf("mail delivery error not logged: %s", buf.String())
	}
}

func TestRenderFallback_BrokenTemplate(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	reg := task.NewRegistry()
	reg.Register("demo.add", okHandler)
	cfg := testWrapperConfig(reg, logger)
	cfg.Templates = Templates{SuccessMsg: "{{.Broken"}

	w := newTestWrapper(t, cfg, `{"task":"demo.add","id":"t1"}`, nil)
	w.OnSuccess(5.0, pool.Meta{TaskID: "t1", TaskName: "demo.add"})

	logged := buf.String()
	if !strings.Contains(logged, "failed to render message template") {
		t.Errorf("render error not logged: %s", logged)
	}
	// Сообщение об успехе всё равно появляется, через fallback.
	if !strings.Contains(logged, "Task demo.add[t1] processed: 5") {
		t.Errorf("fallback message not logged: %s", logged)
	}
}
