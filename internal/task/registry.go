package task

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Handler — функция, выполняющая задачу.
//
// Получает позиционные и именованные аргументы из сообщения брокера.
// Возвращённое значение сохраняется в result backend, если задача
// не зарегистрирована с WithIgnoreResult. Для запроса повтора handler
// возвращает *RetryError.
type Handler func(ctx context.Context, args []any, kwargs map[string]any) (any, error)

// Registration — зарегистрированная задача и её настройки.
type Registration struct {
	// Name — имя, по которому задача ищется в реестре.
	Name string

	// Handler — функция выполнения.
	Handler Handler

	// IgnoreResult отключает сохранение результата в backend.
	IgnoreResult bool

	// DisableErrorMails отключает email-уведомления об ошибках
	// этой задачи, даже если они включены глобально.
	DisableErrorMails bool

	// Queue — очередь публикации по умолчанию.
	// Пустая строка означает очередь воркера по умолчанию.
	Queue string
}

// Option настраивает Registration при регистрации.
type Option func(*Registration)

// WithIgnoreResult отключает сохранение результата задачи.
func WithIgnoreResult() Option {
	return func(r *Registration) { r.IgnoreResult = true }
}

// WithoutErrorMails отключает email-уведомления об ошибках задачи.
func WithoutErrorMails() Option {
	return func(r *Registration) { r.DisableErrorMails = true }
}

// WithQueue задаёт очередь публикации по умолчанию.
func WithQueue(queue string) Option {
	return func(r *Registration) { r.Queue = queue }
}

// Registry — реестр задач по имени.
//
// Потокобезопасен: регистрация происходит при старте процесса,
// чтение — из горутин consumer'а и пула.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*Registration
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Registration)}
}

// Register добавляет задачу в реестр и возвращает её Registration.
// Повторная регистрация с тем же именем замещает предыдущую.
func (r *Registry) Register(name string, handler Handler, opts ...Option) *Registration {
	reg := &Registration{Name: name, Handler: handler}
	for _, opt := range opts {
		opt(reg)
	}

	r.mu.Lock()
	r.tasks[name] = reg
	r.mu.Unlock()

	return reg
}

// Unregister удаляет задачу из реестра.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	delete(r.tasks, name)
	r.mu.Unlock()
}

// Get возвращает Registration по имени.
// Для неизвестного имени возвращает ошибку, оборачивающую ErrNotRegistered.
func (r *Registry) Get(name string) (*Registration, error) {
	r.mu.RLock()
	reg, ok := r.tasks[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	return reg, nil
}

// Names возвращает имена зарегистрированных задач в стабильном порядке.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}
