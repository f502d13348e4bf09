package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ashmetov/conveyor/internal/codec"
	"github.com/ashmetov/conveyor/internal/task"
)

// Memory — потокобезопасный in-memory backend.
//
// Используется в тестах и при single-process запуске. Между
// процессами не разделяется и ничего не переживает рестарт.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*Meta
	enc     codec.Encoder
}

// NewMemory создаёт пустой in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]*Meta),
		enc:     codec.JSON{},
	}
}

// ProcessCleanup для in-memory backend'а ничего не делает.
func (m *Memory) ProcessCleanup(ctx context.Context) error { return nil }

// MarkAsDone сохраняет успешный результат со статусом DONE.
func (m *Memory) MarkAsDone(ctx context.Context, taskID string, result any) error {
	raw, err := m.enc.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	m.store(&Meta{
		TaskID:   taskID,
		Status:   task.StatusDone,
		Result:   raw,
		DateDone: time.Now().UTC(),
	})
	return nil
}

// MarkAsRetry помечает попытку статусом RETRY.
func (m *Memory) MarkAsRetry(ctx context.Context, taskID string, cause error) (*task.ExcInfo, error) {
	return m.markExc(taskID, task.StatusRetry, cause)
}

// MarkAsFailure помечает попытку статусом FAILURE.
func (m *Memory) MarkAsFailure(ctx context.Context, taskID string, cause error) (*task.ExcInfo, error) {
	return m.markExc(taskID, task.StatusFailure, cause)
}

// Status возвращает статус задачи, PENDING для неизвестного id.
func (m *Memory) Status(ctx context.Context, taskID string) (task.Status, error) {
	m.mu.RLock()
	meta, ok := m.entries[taskID]
	m.mu.RUnlock()

	if !ok {
		return task.StatusPending, nil
	}
	return meta.Status, nil
}

// Result возвращает запись результата или ErrNotFound.
func (m *Memory) Result(ctx context.Context, taskID string) (*Meta, error) {
	m.mu.RLock()
	meta, ok := m.entries[taskID]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, taskID)
	}

	cp := *meta
	return &cp, nil
}

func (m *Memory) markExc(taskID string, status task.Status, cause error) (*task.ExcInfo, error) {
	info, meta, err := excMeta(m.enc, taskID, status, cause)
	if err != nil {
		return nil, err
	}
	m.store(meta)
	return info, nil
}

func (m *Memory) store(meta *Meta) {
	m.mu.Lock()
	m.entries[meta.TaskID] = meta
	m.mu.Unlock()
}
