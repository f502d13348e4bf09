package api

import (
	"log/slog"

	"github.com/ashmetov/conveyor/internal/backend"
	"github.com/ashmetov/conveyor/internal/mq"
)

// Handler — обработчик API с зависимостями.
type Handler struct {
	backend   backend.Backend
	publisher *mq.Publisher
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	// Backend — хранилище результатов для запросов статуса.
	Backend backend.Backend

	// Publisher — публикация задач. nil отключает POST /tasks.
	Publisher *mq.Publisher

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		backend:   cfg.Backend,
		publisher: cfg.Publisher,
		logger:    logger,
	}
}
