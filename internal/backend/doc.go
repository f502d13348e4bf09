// Package backend реализует хранилища результатов задач (result backend).
//
// Backend — это то, куда граница выполнения записывает исход каждой
// попытки и откуда клиенты (CLI, HTTP API) читают статус и результат.
//
// Реализации:
//   - memory.go   — in-memory map, для тестов и single-process запуска
//   - redis.go    — Redis (JSON-запись на ключ, c TTL)
//   - postgres.go — PostgreSQL (таблица task_results, upsert на попытку)
//
// Контракт: во время одной попытки единственный писатель записи
// задачи — граница выполнения; порядок записей разных задач
// не специфицирован. Mark*-методы для ошибок возвращают сериализуемое
// представление (task.ExcInfo) — наружу никогда не уходит живой
// error-объект.
package backend
