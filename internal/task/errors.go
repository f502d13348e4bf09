package task

import "errors"

// Ошибки уровня задач.
var (
	// ErrNotRegistered — задача с таким именем не зарегистрирована.
	ErrNotRegistered = errors.New("task not registered")

	// ErrMalformedMessage — тело сообщения не распарсилось
	// или не прошло валидацию обязательных полей.
	ErrMalformedMessage = errors.New("malformed task message")

	// ErrUnknownStatus — неизвестный статус результата.
	ErrUnknownStatus = errors.New("unknown task status")
)
