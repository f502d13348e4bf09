package api

import (
	"encoding/json"
	"time"

	"github.com/ashmetov/conveyor/internal/backend"
)

// SubmitTaskRequest — запрос на постановку задачи.
type SubmitTaskRequest struct {
	Task   string         `json:"task"`
	ID     string         `json:"id,omitempty"`
	Args   []any          `json:"args,omitempty"`
	Kwargs map[string]any `json:"kwargs,omitempty"`
	Queue  string         `json:"queue,omitempty"`
}

// SubmitTaskResponse — подтверждение постановки задачи.
type SubmitTaskResponse struct {
	TaskID string `json:"task_id"`
	Task   string `json:"task"`
	Queue  string `json:"queue"`
}

// TaskResultResponse — результат задачи из result backend'а.
type TaskResultResponse struct {
	TaskID    string          `json:"task_id"`
	Status    string          `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	Traceback string          `json:"traceback,omitempty"`
	DateDone  time.Time       `json:"date_done"`
}

// TaskResultFromMeta конвертирует backend.Meta в TaskResultResponse.
func TaskResultFromMeta(m *backend.Meta) TaskResultResponse {
	return TaskResultResponse{
		TaskID:    m.TaskID,
		Status:    string(m.Status),
		Result:    m.Result,
		Traceback: m.Traceback,
		DateDone:  m.DateDone,
	}
}
