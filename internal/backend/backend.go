package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ashmetov/conveyor/internal/codec"
	"github.com/ashmetov/conveyor/internal/task"
)

// Meta — запись о результате задачи.
//
// Для успешных задач Result содержит JSON возвращённого значения.
// Для RETRY/FAILURE Result содержит JSON task.ExcInfo (type + message),
// а stack trace лежит отдельно в Traceback.
type Meta struct {
	TaskID    string          `json:"task_id"`
	Status    task.Status     `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	Traceback string          `json:"traceback,omitempty"`
	DateDone  time.Time       `json:"date_done"`
}

// Backend — хранилище результатов задач.
type Backend interface {
	// ProcessCleanup вызывается перед выполнением каждой задачи:
	// сброс состояния, накопленного предыдущей задачей.
	ProcessCleanup(ctx context.Context) error

	// MarkAsDone сохраняет успешный результат со статусом DONE.
	MarkAsDone(ctx context.Context, taskID string, result any) error

	// MarkAsRetry помечает попытку статусом RETRY и возвращает
	// сериализуемое представление причины.
	MarkAsRetry(ctx context.Context, taskID string, cause error) (*task.ExcInfo, error)

	// MarkAsFailure помечает попытку статусом FAILURE и возвращает
	// сериализуемое представление ошибки.
	MarkAsFailure(ctx context.Context, taskID string, cause error) (*task.ExcInfo, error)

	// Status возвращает статус задачи.
	// Для неизвестного id возвращает PENDING (результата ещё нет).
	Status(ctx context.Context, taskID string) (task.Status, error)

	// Result возвращает запись результата.
	// Для неизвестного id возвращает ErrNotFound.
	Result(ctx context.Context, taskID string) (*Meta, error)
}

// excMeta строит Meta для ошибочного исхода (RETRY или FAILURE).
// Возвращает полный ExcInfo (со stack trace) и готовую запись,
// в которой Result хранит только type+message, а trace — в Traceback.
func excMeta(enc codec.Encoder, taskID string, status task.Status, cause error) (*task.ExcInfo, *Meta, error) {
	info := task.NewExcInfo(cause)

	raw, err := enc.Marshal(&task.ExcInfo{Type: info.Type, Message: info.Message})
	if err != nil {
		return nil, nil, fmt.Errorf("marshal exc info: %w", err)
	}

	meta := &Meta{
		TaskID:    taskID,
		Status:    status,
		Result:    raw,
		Traceback: info.Traceback,
		DateDone:  time.Now().UTC(),
	}
	return info, meta, nil
}
