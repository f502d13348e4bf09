package builtin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashmetov/conveyor/internal/task"
)

// Имена встроенных задач.
const (
	TaskPing  = "conveyor.ping"
	TaskAdd   = "math.add"
	TaskEcho  = "util.echo"
	TaskSleep = "util.sleep"
	TaskFail  = "util.fail"
	TaskHTTP  = "http.request"
)

// RegisterAll регистрирует встроенные задачи в реестре.
func RegisterAll(reg *task.Registry) {
	reg.Register(TaskPing, Ping)
	reg.Register(TaskAdd, Add)
	reg.Register(TaskEcho, Echo)
	reg.Register(TaskSleep, Sleep)
	reg.Register(TaskFail, Fail, task.WithoutErrorMails())
	reg.Register(TaskHTTP, HTTPRequest)
}

// Ping возвращает "pong": проверка живости воркера.
func Ping(_ context.Context, _ []any, _ map[string]any) (any, error) {
	return "pong", nil
}

// Add складывает позиционные аргументы.
// JSON-числа приходят как float64, сумма возвращается тем же типом.
func Add(_ context.Context, args []any, _ map[string]any) (any, error) {
	sum := 0.0
	for i, arg := range args {
		n, ok := toFloat(arg)
		if !ok {
			return nil, fmt.Errorf("argument %d is not a number: %v", i, arg)
		}
		sum += n
	}
	return sum, nil
}

// injectedKwargs — служебные ключи, добавляемые воркером в kwargs
// каждого вызова.
var injectedKwargs = map[string]struct{}{
	"logfile":      {},
	"loglevel":     {},
	"task_id":      {},
	"task_name":    {},
	"task_retries": {},
}

// Echo возвращает пользовательские kwargs как результат.
// Служебные ключи контекста выполнения отфильтровываются.
func Echo(_ context.Context, _ []any, kwargs map[string]any) (any, error) {
	out := make(map[string]any, len(kwargs))
	for k, v := range kwargs {
		if _, ok := injectedKwargs[k]; ok {
			continue
		}
		out[k] = v
	}
	return out, nil
}

// Sleep ждёт duration_sec секунд (default: 1) с учётом отмены контекста.
func Sleep(ctx context.Context, _ []any, kwargs map[string]any) (any, error) {
	durationSec := 1.0
	if val, ok := kwargs["duration_sec"]; ok {
		if n, ok := toFloat(val); ok {
			durationSec = n
		}
	}
	if durationSec <= 0 {
		durationSec = 1
	}

	duration := time.Duration(durationSec * float64(time.Second))

	select {
	case <-time.After(duration):
		return map[string]any{"delayed_sec": durationSec}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Fail всегда завершается ошибкой с сообщением из kwargs["message"].
// Нужна для проверки пути FAILURE на живом стенде, поэтому письма
// об ошибках для неё выключены.
func Fail(_ context.Context, _ []any, kwargs map[string]any) (any, error) {
	msg := "task failed deliberately"
	if m, ok := kwargs["message"].(string); ok && m != "" {
		msg = m
	}
	return nil, errors.New(msg)
}

// toFloat приводит JSON-число к float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
