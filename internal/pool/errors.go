package pool

import "errors"

// Ошибки пула.
var (
	// ErrPoolBusy — очередь заданий заполнена.
	ErrPoolBusy = errors.New("pool queue is full")

	// ErrPoolStopped — пул остановлен и не принимает задания.
	ErrPoolStopped = errors.New("pool is stopped")

	// ErrNilRun — задание без функции выполнения.
	ErrNilRun = errors.New("request has nil Run")
)
