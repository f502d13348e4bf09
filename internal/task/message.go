package task

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/ashmetov/conveyor/internal/codec"
)

// Message — описание вызова задачи, полученное из брокера.
//
// Wire-формат (JSON):
//
//	{"task": "...", "id": "...", "args": [...], "kwargs": {...}, "retries": 0}
//
// Поля task и id обязательны. retries — счётчик уже выполненных
// повторов, по умолчанию 0. После парсинга Message считается
// неизменяемым.
type Message struct {
	Task    string         `json:"task"`
	ID      string         `json:"id"`
	Args    []any          `json:"args"`
	Kwargs  map[string]any `json:"kwargs"`
	Retries int            `json:"retries"`
}

// ParseMessage парсит тело сообщения брокера в Message.
//
// Если тело не является JSON-объектом или отсутствует task/id,
// возвращает ошибку, оборачивающую ErrMalformedMessage. Ключи kwargs
// нормализуются в UTF-8 (см. NormalizeKwargs).
func ParseMessage(body []byte) (*Message, error) {
	var msg Message
	if err := codec.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if msg.Task == "" {
		return nil, fmt.Errorf("%w: missing task name", ErrMalformedMessage)
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("%w: missing task id", ErrMalformedMessage)
	}
	if msg.Args == nil {
		msg.Args = []any{}
	}
	msg.Kwargs = NormalizeKwargs(msg.Kwargs)
	return &msg, nil
}

// NormalizeKwargs приводит ключи kwargs к валидному UTF-8.
//
// Ключи, уже являющиеся корректным UTF-8, не меняются. Байтовые
// последовательности вне UTF-8 интерпретируются как Latin-1 и
// перекодируются; в Latin-1 валидна любая байтовая строка, потерь нет.
// Исходная map не изменяется; nil превращается в пустую map.
func NormalizeKwargs(kwargs map[string]any) map[string]any {
	out := make(map[string]any, len(kwargs))
	for k, v := range kwargs {
		out[normalizeKey(k)] = v
	}
	return out
}

func normalizeKey(k string) string {
	if utf8.ValidString(k) {
		return k
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().String(k)
	if err != nil {
		// Latin-1 принимает любые байты, сюда попасть нельзя.
		return k
	}
	return decoded
}
