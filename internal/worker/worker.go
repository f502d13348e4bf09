package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/ashmetov/conveyor/internal/backend"
	"github.com/ashmetov/conveyor/internal/mq"
	"github.com/ashmetov/conveyor/internal/notify"
	"github.com/ashmetov/conveyor/internal/pool"
	"github.com/ashmetov/conveyor/internal/task"
	"github.com/ashmetov/conveyor/internal/telemetry"
)

// Default configuration values.
const defaultPrefetch = 5

// Worker выполняет задачи из очереди.
//
// Worker — координирующий компонент системы, который:
//   - Получает сообщения задач из очереди RabbitMQ
//   - Строит TaskWrapper на каждое сообщение
//   - Выполняет задачу в пуле или в горутине consumer'а
//   - Фиксирует исход в result backend через границу выполнения
//
// Workers масштабируются горизонтально — несколько экземпляров
// могут потреблять из одной очереди.
type Worker struct {
	// Сборка обёрток: одна конфигурация на все сообщения
	wcfg WrapperConfig

	// MQ
	conn     *mq.Connection
	consumer *mq.Consumer

	// Пул выполнения. nil — задачи выполняются последовательно.
	pool *pool.Pool

	// Configuration
	queue    string
	prefetch int
	loglevel slog.Level
	logfile  string

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	// Registry — реестр задач (опционально; если nil — пустой реестр).
	Registry *task.Registry

	// Backend — хранилище результатов.
	Backend backend.Backend

	// Conn — соединение с RabbitMQ.
	Conn *mq.Connection

	// Pool — пул параллельного выполнения.
	// nil — задачи выполняются по одной в горутине consumer'а.
	Pool *pool.Pool

	// Notifier — диспетчер писем об ошибках (опционально).
	Notifier notify.Dispatcher

	// Hooks — наблюдатель выполнения (опционально).
	Hooks Hooks

	// Init — инициализация процесса перед каждой задачей (опционально).
	Init InitFunc

	// Metrics — метрики задач (опционально).
	Metrics *telemetry.Metrics

	// Queue — очередь задач (default: tasks.default).
	Queue string

	// Prefetch — количество незавершённых сообщений на consumer (default: 5).
	Prefetch int

	// LogLevel, Logfile — контекст выполнения, прокидываются в kwargs задач.
	LogLevel slog.Level
	Logfile  string

	// SendErrorMails включает письма об ошибках задач.
	SendErrorMails bool

	// Templates — переопределения шаблонов сообщений.
	Templates Templates

	// Hostname — имя хоста в письмах (default: os.Hostname).
	Hostname string

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := cfg.Registry
	if registry == nil {
		registry = task.NewRegistry()
	}

	queue := cfg.Queue
	if queue == "" {
		queue = string(mq.QueueTasksDefault)
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	jail := NewJail(JailConfig{
		Backend: cfg.Backend,
		Hooks:   cfg.Hooks,
		Init:    cfg.Init,
		Metrics: cfg.Metrics,
		Logger:  logger,
	})

	return &Worker{
		wcfg: WrapperConfig{
			Registry:       registry,
			Jail:           jail,
			Notifier:       cfg.Notifier,
			SendErrorMails: cfg.SendErrorMails,
			Templates:      cfg.Templates.merged(),
			Hostname:       cfg.Hostname,
			Logger:         logger,
		},
		conn:     cfg.Conn,
		pool:     cfg.Pool,
		queue:    queue,
		prefetch: prefetch,
		loglevel: cfg.LogLevel,
		logfile:  cfg.Logfile,
		logger:   logger,
	}
}

// Start запускает Worker.
//
// Запускает:
//   - Consumer очереди задач
//   - Наблюдателя пула (если пул задан)
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"queue", w.queue,
		"prefetch", w.prefetch,
		"pooled", w.pool != nil,
	)

	// Создаём consumer
	w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
		Queue:    w.queue,
		Handler:  w.handleDelivery,
		Prefetch: w.prefetch,
	})

	// Запускаем consumer
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("task consumer error", "error", err)
		}
	}()

	// Запускаем наблюдателя пула
	if w.pool != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.watchPool(ctx)
		}()
	}

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker.
func (w *Worker) Stop() {
	w.markStopped()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}

	if w.consumer != nil {
		w.consumer.Stop()
	}

	// Ждём завершения горутин
	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

func (w *Worker) markStopped() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()
}

// watchPool следит за остановкой пула.
//
// Фатальный сигнал из задачи останавливает пул; воркер при этом
// обязан перестать брать сообщения, иначе они будут крутиться между
// очередью и ErrPoolStopped до бесконечности.
func (w *Worker) watchPool(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-w.pool.Done():
		if sig := w.pool.AbortSignal(); sig != nil {
			w.logger.Error("pool aborted, stopping worker", "error", sig)
		} else {
			w.logger.Warn("pool stopped, stopping worker")
		}

		w.markStopped()
		if w.cancelFunc != nil {
			w.cancelFunc()
		}
	}
}
