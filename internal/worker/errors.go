package worker

import "errors"

// Сигнальные ошибки пакета.
var (
	// ErrWorkerStopped — воркер остановлен и новые задачи не принимает.
	ErrWorkerStopped = errors.New("worker stopped")

	// ErrTemplateRender — не удалось отрендерить шаблон сообщения.
	ErrTemplateRender = errors.New("failed to render message template")
)
