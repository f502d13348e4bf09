// Package beat реализует публикацию периодических задач.
//
// Service по таймеру проверяет записи расписания с наступившим
// временем и публикует сообщения задач в очередь. Выполнением
// занимаются воркеры — beat только ставит задачи.
//
// Структура:
//   - entry.go   — запись расписания и вычисление следующего времени
//   - service.go — цикл публикации (Run, Tick)
//   - file.go    — загрузка расписания из JSON-файла
//
// Формат файла расписания:
//
//	[
//	  {"name": "heartbeat", "task": "conveyor.ping", "every_sec": 30},
//	  {"name": "nightly-report", "task": "reports.build",
//	   "cron": "0 2 * * *", "queue": "reports"}
//	]
//
// Использование:
//
//	entries, err := beat.LoadFile(os.Getenv("BEAT_SCHEDULE"))
//	svc, err := beat.New(beat.Config{
//	    Publisher: publisher,
//	    Entries:   entries,
//	    Logger:    logger,
//	})
//	svc.Run(ctx)
//
// Leader Election:
//
// Beat не реализует leader election самостоятельно.
// Это делается в main.go через pg_try_advisory_lock.
// Метод Tick() вызывается только лидером.
package beat
