package telemetry

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// LogLevel читает уровень логирования из LOG_LEVEL.
// Понимает DEBUG, INFO, WARN (или WARNING), ERROR без учёта регистра;
// всё остальное трактуется как INFO.
func LogLevel() slog.Level {
	switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// SetupLogger настраивает и ставит глобальный slog-логгер.
//
// LOG_FORMAT выбирает хендлер: "text" — человекочитаемый вывод для
// разработки, всё остальное — JSON для production. На уровне DEBUG
// в записи добавляется источник вызова.
func SetupLogger() *slog.Logger {
	level := LogLevel()
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var h slog.Handler
	switch os.Getenv("LOG_FORMAT") {
	case "text":
		h = slog.NewTextHandler(os.Stdout, opts)
	default:
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

// ctxKey — тип ключей логгера в контексте.
type ctxKey string

// CtxLogger — ключ, под которым логгер лежит в контексте.
const CtxLogger ctxKey = "logger"

// WithLogger кладёт логгер в контекст.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, CtxLogger, logger)
}

// FromContext достаёт логгер из контекста; без него — глобальный.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(CtxLogger).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithTask возвращает логгер с атрибутами задачи.
func WithTask(logger *slog.Logger, taskID, taskName string) *slog.Logger {
	return logger.With("task_id", taskID, "task_name", taskName)
}
