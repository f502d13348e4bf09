// Package task содержит базовые типы задач: сообщение брокера,
// реестр handler'ов, статусы результатов и сериализуемое
// представление ошибок выполнения.
//
// Структура:
//   - message.go  — Message, парсинг тела сообщения, нормализация kwargs
//   - registry.go — Registry, Registration, Handler, опции регистрации
//   - status.go   — Status результата (PENDING, RETRY, FAILURE, DONE)
//   - excinfo.go  — ExcInfo, PanicError
//   - retry.go    — RetryError, сигнал повторной постановки
//
// Пакет не зависит от брокера и backend'а: это общий словарь,
// которым пользуются worker, pool, backend и beat.
package task
