package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ashmetov/conveyor/internal/notify"
	"github.com/ashmetov/conveyor/internal/pool"
	"github.com/ashmetov/conveyor/internal/task"
	"github.com/ashmetov/conveyor/internal/telemetry"
)

// AckFunc — подтверждение сообщения брокеру.
type AckFunc func() error

// WrapperConfig — зависимости для создания обёрток задач.
// Собирается один раз воркером и переиспользуется для каждого сообщения.
type WrapperConfig struct {
	Registry *task.Registry
	Jail     *Jail

	// Notifier — диспетчер писем об ошибках. nil отключает письма.
	Notifier notify.Dispatcher

	// SendErrorMails — глобальный флаг писем об ошибках.
	// Задача может отказаться от них индивидуально при регистрации.
	SendErrorMails bool

	// Templates — переопределения шаблонов сообщений.
	// Пустые поля берутся из DefaultTemplates.
	Templates Templates

	// Hostname — имя хоста для писем. По умолчанию os.Hostname.
	Hostname string

	Logger *slog.Logger
}

// TaskWrapper — обёртка одной попытки выполнения задачи.
//
// Создаётся из входящего сообщения брокера и живёт ровно одну попытку.
// Подтверждение сообщения происходит при взятии задачи в работу, до
// вызова handler'а: семантика at-least-once с ранним ack. Воркер,
// упавший посреди задачи, теряет её молча, зато ошибка одной задачи
// не порождает шторм передоставок. Это осознанная политика доставки,
// зафиксированная здесь, а не упущение.
type TaskWrapper struct {
	TaskID   string
	TaskName string
	Args     []any
	Kwargs   map[string]any
	Retries  int

	reg       *task.Registration
	onAck     AckFunc
	jail      *Jail
	notifier  notify.Dispatcher
	logger    *slog.Logger
	sendMails bool
	templates Templates
	hostname  string
}

// FromMessage строит обёртку из тела сообщения брокера.
//
// Ошибки разбора оборачивают task.ErrMalformedMessage, отсутствие
// задачи в реестре — task.ErrNotRegistered. В обоих случаях обёртка
// не создаётся и выполнение не начинается.
func FromMessage(cfg WrapperConfig, body []byte, onAck AckFunc) (*TaskWrapper, error) {
	msg, err := task.ParseMessage(body)
	if err != nil {
		return nil, err
	}

	reg, err := cfg.Registry.Get(msg.Task)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	hostname := cfg.Hostname
	if hostname == "" {
		hostname, err = os.Hostname()
		if err != nil {
			hostname = "localhost"
		}
	}

	return &TaskWrapper{
		TaskID:   msg.ID,
		TaskName: msg.Task,
		Args:     msg.Args,
		Kwargs:   msg.Kwargs,
		Retries:  msg.Retries,

		reg:       reg,
		onAck:     onAck,
		jail:      cfg.Jail,
		notifier:  cfg.Notifier,
		logger:    telemetry.WithTask(logger, msg.ID, msg.Task),
		sendMails: cfg.SendErrorMails,
		templates: cfg.Templates.merged(),
		hostname:  hostname,
	}, nil
}

// ExtendWithDefaultKwargs возвращает копию kwargs задачи, дополненную
// контекстом выполнения: logfile, loglevel, task_id, task_name,
// task_retries. Собственные kwargs обёртки не изменяются.
func (w *TaskWrapper) ExtendWithDefaultKwargs(loglevel slog.Level, logfile string) map[string]any {
	kwargs := make(map[string]any, len(w.Kwargs)+5)
	for k, v := range w.Kwargs {
		kwargs[k] = v
	}

	kwargs["logfile"] = logfile
	kwargs["loglevel"] = loglevel
	kwargs["task_id"] = w.TaskID
	kwargs["task_name"] = w.TaskName
	kwargs["task_retries"] = w.Retries

	return kwargs
}

// Execute подтверждает сообщение и выполняет задачу в текущей
// горутине. Блокируется на всё время работы handler'а.
func (w *TaskWrapper) Execute(ctx context.Context, loglevel slog.Level, logfile string) Outcome {
	w.ack()
	return w.jail.Run(ctx, w.invocation(loglevel, logfile))
}

// ExecuteViaPool отправляет задачу в пул и возвращается сразу.
//
// Подтверждение, выполнение и callback'и происходят в горутинах пула.
// Фатальный исход превращается в pool.Abort: пул останавливается,
// не вызвав ни одного callback'а.
func (w *TaskWrapper) ExecuteViaPool(p *pool.Pool, loglevel slog.Level, logfile string) (*pool.AsyncResult, error) {
	inv := w.invocation(loglevel, logfile)

	return p.ApplyAsync(pool.Request{
		Run: func(ctx context.Context) any {
			out := catchShutdown(func() Outcome {
				return w.jail.Run(ctx, inv)
			})
			if out.Kind == KindFatal {
				return pool.Abort{Signal: out.Signal}
			}
			return out.Result()
		},
		OnSuccess: w.OnSuccess,
		OnFailure: w.OnFailure,
		OnAck:     w.ack,
		Meta:      pool.Meta{TaskID: w.TaskID, TaskName: w.TaskName},
	})
}

// OnSuccess логирует сообщение об успехе по шаблону SuccessMsg.
// Вызывается пулом из его горутины.
func (w *TaskWrapper) OnSuccess(ret any, meta pool.Meta) {
	tc := &TemplateContext{
		Name:     meta.TaskName,
		ID:       meta.TaskID,
		Return:   ret,
		Args:     w.Args,
		Kwargs:   w.Kwargs,
		Hostname: w.hostname,
	}

	msg := w.renderOrFallback(w.templates.SuccessMsg, tc,
		fmt.Sprintf("Task %s[%s] processed: %v", tc.Name, tc.ID, ret))
	w.logger.Info(msg)
}

// OnFailure логирует сообщение об ошибке по шаблону FailMsg и,
// если политика писем включена и задача не отказалась от них,
// отправляет уведомление. Ошибка доставки письма только логируется:
// исход задачи уже зафиксирован, и письмо его не меняет.
func (w *TaskWrapper) OnFailure(err error, meta pool.Meta) {
	var info *task.ExcInfo
	if !errors.As(err, &info) {
		info = task.NewExcInfo(err)
	}

	tc := &TemplateContext{
		Name:      meta.TaskName,
		ID:        meta.TaskID,
		Exc:       info.Message,
		Traceback: info.Traceback,
		Args:      w.Args,
		Kwargs:    w.Kwargs,
		Hostname:  w.hostname,
	}

	msg := w.renderOrFallback(w.templates.FailMsg, tc,
		fmt.Sprintf("Task %s[%s] raised exception: %s", tc.Name, tc.ID, tc.Exc))
	w.logger.Error(msg)

	if !w.sendMails || w.reg.DisableErrorMails || w.notifier == nil {
		return
	}
	w.sendErrorMail(tc)
}

// ack подтверждает сообщение брокеру. Ошибка подтверждения не мешает
// выполнению: задача уже у нас, хуже от её выполнения не станет.
func (w *TaskWrapper) ack() {
	if w.onAck == nil {
		return
	}
	if err := w.onAck(); err != nil {
		w.logger.Warn("failed to ack task message", "error", err)
	}
}

func (w *TaskWrapper) invocation(loglevel slog.Level, logfile string) *Invocation {
	return &Invocation{
		TaskID:       w.TaskID,
		TaskName:     w.TaskName,
		Handler:      w.reg.Handler,
		Args:         w.Args,
		Kwargs:       w.ExtendWithDefaultKwargs(loglevel, logfile),
		IgnoreResult: w.reg.IgnoreResult,
	}
}

func (w *TaskWrapper) sendErrorMail(tc *TemplateContext) {
	subject := w.renderOrFallback(w.templates.FailMailSubject, tc,
		fmt.Sprintf("[conveyor@%s] Error: Task %s (%s): %s", tc.Hostname, tc.Name, tc.ID, tc.Exc))
	body := w.renderOrFallback(w.templates.FailMailBody, tc, tc.Traceback)

	if err := w.notifier.Send(context.Background(), strings.TrimSpace(subject), body); err != nil {
		w.logger.Warn("failed to send error mail", "error", err)
	}
}

func (w *TaskWrapper) renderOrFallback(tmpl string, tc *TemplateContext, fallback string) string {
	msg, err := renderMessage(tmpl, tc)
	if err != nil {
		w.logger.Warn("failed to render message template", "error", err)
		return fallback
	}
	return msg
}
