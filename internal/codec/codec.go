// Package codec отвечает за сериализацию payload'ов: сообщений задач,
// результатов и записей в result backend.
//
// Кодирование — стандартный encoding/json, декодирование — sonic.
package codec

import (
	"encoding/json"

	"github.com/bytedance/sonic"
)

// Encoder — интерфейс сериализации payload'ов.
type Encoder interface {
	// Marshal сериализует значение в байты.
	Marshal(v any) ([]byte, error)
	// Unmarshal десериализует байты в значение.
	Unmarshal(data []byte, v any) error
}

// JSON — реализация Encoder по умолчанию.
// Кодирует стандартной библиотекой, декодирует через sonic.
type JSON struct{}

// Marshal сериализует значение в JSON.
func (JSON) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal десериализует JSON-байты через sonic.
func (JSON) Unmarshal(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}

// Default — кодек по умолчанию.
var Default Encoder = JSON{}

// Marshal сериализует значение кодеком по умолчанию.
func Marshal(v any) ([]byte, error) { return Default.Marshal(v) }

// Unmarshal десериализует байты кодеком по умолчанию.
func Unmarshal(data []byte, v any) error { return Default.Unmarshal(data, v) }
