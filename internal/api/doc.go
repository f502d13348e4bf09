// Package api содержит HTTP API воркера.
//
// Структура:
//   - handler.go      — Handler с DI (backend, publisher, logger)
//   - routes.go       — регистрация маршрутов
//   - middleware.go   — middleware (logging, recovery)
//   - response.go     — унифицированные JSON-ответы и обработка ошибок
//   - dto.go          — Data Transfer Objects (request/response)
//   - task_handler.go — обработчики для /tasks
//
// API предоставляет постановку задач и запрос их результатов.
// Включается в процессе воркера через API_ENABLED=1 и живёт на том же
// листенере, что /healthz и /metrics.
package api
