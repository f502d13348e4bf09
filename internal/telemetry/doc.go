// Package telemetry — наблюдаемость воркера: структурные логи и метрики.
//
//   - logging.go — настройка slog (LOG_LEVEL, LOG_FORMAT) и атрибуты задач
//   - metrics.go — prometheus-метрики выполнения задач, TaskTimer
//
// Метрики отдаются на /metrics процессов worker и beat.
package telemetry
