// Package cli реализует инструмент командной строки Conveyor.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с API воркера.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для постановки задач и запроса результатов.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для API воркера. Инкапсулирует HTTP-запросы,
// разбор конвертов {"data": ...} / {"error": ...} и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8082")
//	res, err := client.GetResult(taskID)
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON с отступами — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: conveyor result ID --json | jq .
//
// ## Commands
//
// Cobra-команды:
//   - submit: постановка задачи (--args, --kwargs, --queue, --id)
//   - result: запрос сохранённого результата по task id
//
// Каждая команда создаётся через фабричную функцию (NewSubmitCmd и
// т.д.), принимающую clientFn и outputFn — замыкания для ленивого
// создания Client и Output после парсинга PersistentFlags.
package cli
