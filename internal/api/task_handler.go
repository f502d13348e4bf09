package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/ashmetov/conveyor/internal/mq"
	"github.com/ashmetov/conveyor/internal/task"
)

// GetTask возвращает результат задачи.
// GET /api/v1/tasks/{id}
//
// Для задачи, ещё не имеющей результата, возвращает 404:
// backend хранит только завершённые попытки.
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		BadRequest(w, "invalid task id")
		return
	}

	meta, err := h.backend.Result(r.Context(), id)
	if HandleBackendError(w, h.logger, err, "task result not found") {
		return
	}

	Success(w, TaskResultFromMeta(meta))
}

// SubmitTask ставит задачу в очередь.
// POST /api/v1/tasks
func (h *Handler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	var req SubmitTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Task == "" {
		BadRequest(w, "task name is required")
		return
	}

	if h.publisher == nil {
		Unavailable(w, "task submission is not available")
		return
	}

	msg := &task.Message{
		Task:   req.Task,
		ID:     req.ID,
		Args:   req.Args,
		Kwargs: req.Kwargs,
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	queue := mq.TaskQueue(req.Queue)
	if err := h.publisher.PublishTask(r.Context(), queue, msg); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, SubmitTaskResponse{
		TaskID: msg.ID,
		Task:   req.Task,
		Queue:  string(queue),
	})
}
