// Package worker выполняет задачи из очереди.
//
// # Обзор
//
// Worker — координирующий компонент системы Conveyor. На каждое
// сообщение очереди он строит TaskWrapper и прогоняет задачу через
// границу выполнения (Jail), которая фиксирует исход в result backend.
// Worker отвечает за:
//
//   - Получение сообщений задач из очереди RabbitMQ
//   - Разбор сообщения и поиск задачи в реестре
//   - Раннее подтверждение: ack при взятии в работу, до выполнения
//   - Выполнение задачи в пуле или в горутине consumer'а
//   - Запись статуса и результата (DONE / RETRY / FAILURE) в backend
//   - Логирование исхода и письма об ошибках администраторам
//
// Workers масштабируются горизонтально — несколько экземпляров
// потребляют из одной очереди.
//
// # Ключевые компоненты
//
// ## Worker
//
// Основная структура, управляющая жизненным циклом.
// Создаётся через New(cfg Config) и запускается методом Start(ctx).
//
//	w := worker.New(worker.Config{
//	    Registry: registry,
//	    Backend:  resultBackend,
//	    Conn:     mqConn,
//	    Pool:     p,
//	    Logger:   logger,
//	})
//
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// ## Jail
//
// Граница выполнения: единственное место, где вызывается handler
// задачи. Любой исход — значение, запрос повтора, ошибка, паника —
// превращается в запись backend'а и значение Outcome. Наружу из
// Run выходит только паника Shutdown, означающая остановку воркера.
//
// ## TaskWrapper
//
// Обёртка одной попытки: хранит аргументы вызова, ack-колбэк
// и шаблоны сообщений об исходе. Execute выполняет задачу на месте,
// ExecuteViaPool отдаёт её пулу с callback'ами OnSuccess/OnFailure.
//
// # Исходы
//
//   - Success — значение задачи записано как DONE (если задача
//     не помечена ignore-result)
//   - Retry — задача запросила повтор, статус RETRY
//   - Failure — ошибка или паника задачи, статус FAILURE
//   - Fatal — остановка воркера: в backend ничего не пишется,
//     consumer прекращает брать сообщения
//
// # Доставка
//
// Подтверждение сообщения происходит до выполнения задачи
// (at-least-once с ранним ack). Упавший посреди задачи воркер
// теряет её молча; зато ошибка задачи не вызывает передоставку,
// и очередь не зацикливается на ядовитых сообщениях: некорректный
// JSON и незарегистрированные задачи уходят в DLQ без повторов.
package worker
