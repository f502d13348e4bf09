// Package pool реализует пул горутин для параллельного выполнения задач
// с асинхронной доставкой callback'ов.
//
// Контракт ApplyAsync:
//   - отправитель не блокируется (полная очередь — ошибка ErrPoolBusy);
//   - перед выполнением задания вызывается OnAck;
//   - после выполнения вызывается ровно один из OnSuccess/OnFailure,
//     в горутине воркера пула, не в горутине отправителя;
//   - задания, отброшенные при остановке пула, не получают ни одного
//     callback'а.
//
// Диспетчеризация результата: значение, реализующее Failure, уходит
// в OnFailure; значение Abort останавливает пул без callback'ов;
// всё остальное уходит в OnSuccess.
//
// Паники из Run не перехватываются: на этом уровне паника — фатальное
// событие уровня воркера, и она роняет процесс как есть.
package pool
