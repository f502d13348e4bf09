package backend

import "errors"

// Ошибки backend'а результатов.
var (
	// ErrNotFound — запись результата для task id отсутствует.
	ErrNotFound = errors.New("task result not found")
)
