// Package builtin содержит встроенные задачи Conveyor.
//
// Структура:
//   - builtin.go — регистрация и простые задачи (ping, add, echo, sleep, fail)
//   - http.go    — задача http.request
//
// Встроенные задачи регистрируются воркером при старте через
// RegisterAll и служат двум целям: готовые примитивы для простых
// пайплайнов (HTTP-вызов, задержка, передача данных) и проверка
// всех путей исхода на живом стенде (успех, повтор, ошибка).
package builtin
