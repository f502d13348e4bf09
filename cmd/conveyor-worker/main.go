// Conveyor Worker — выполняет задачи из очереди.
//
// Worker:
//   - Получает сообщения задач из RabbitMQ
//   - Выполняет зарегистрированные handler'ы внутри границы выполнения
//   - Фиксирует исход (DONE / RETRY / FAILURE) в result backend
//   - Отправляет письма об ошибках задач (опционально)
//
// Workers масштабируются горизонтально — несколько экземпляров
// могут потреблять из одной очереди.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ashmetov/conveyor/internal/api"
	"github.com/ashmetov/conveyor/internal/backend"
	"github.com/ashmetov/conveyor/internal/builtin"
	"github.com/ashmetov/conveyor/internal/mq"
	"github.com/ashmetov/conveyor/internal/notify"
	"github.com/ashmetov/conveyor/internal/pool"
	"github.com/ashmetov/conveyor/internal/task"
	"github.com/ashmetov/conveyor/internal/telemetry"
	"github.com/ashmetov/conveyor/internal/worker"
)

func main() {
	_ = godotenv.Load()

	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting conveyor-worker")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Result backend
	be, closeBackend, err := setupBackend(ctx, logger)
	if err != nil {
		logger.Error("failed to setup result backend", "error", err)
		os.Exit(1)
	}
	defer closeBackend()

	// RabbitMQ. В отличие от backend'а без брокера worker бесполезен.
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err := mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	// Создаём топологию
	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Warn("failed to setup topology", "error", err)
	}

	publisher := mq.NewPublisher(mqConn, logger)

	// Реестр задач процесса
	reg := task.NewRegistry()
	builtin.RegisterAll(reg)

	// Пул выполнения. POOL_WORKERS=0 — задачи по одной в горутине consumer'а.
	var execPool *pool.Pool
	if n := envInt("POOL_WORKERS", 4); n > 0 {
		execPool = pool.New(pool.Config{Workers: n, Logger: logger})
	}

	// Письма об ошибках задач
	sendErrorMails := os.Getenv("SEND_ERROR_MAILS") == "1"
	var notifier notify.Dispatcher
	if sendErrorMails {
		notifier = notify.NewSMTP(notify.SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     envInt("SMTP_PORT", 0),
			Username: os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
			To:       splitList(os.Getenv("ERROR_MAIL_TO")),
		})
	}

	metrics := telemetry.NewMetrics(nil)

	// Создаём worker
	w := worker.New(worker.Config{
		Registry:       reg,
		Backend:        be,
		Conn:           mqConn,
		Pool:           execPool,
		Notifier:       notifier,
		Metrics:        metrics,
		Queue:          os.Getenv("WORKER_QUEUE"),
		Prefetch:       envInt("WORKER_PREFETCH", 0),
		LogLevel:       telemetry.LogLevel(),
		Logfile:        os.Getenv("WORKER_LOGFILE"),
		SendErrorMails: sendErrorMails,
		Logger:         logger,
	})

	// Запускаем worker
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics (+ task API при API_ENABLED=1)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !mqConn.IsConnected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("broker unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	if os.Getenv("API_ENABLED") == "1" {
		h := api.NewHandler(api.Config{
			Backend:   be,
			Publisher: publisher,
			Logger:    logger,
		})
		h.RegisterRoutes(mux)
		logger.Info("task API enabled")
	}

	port := ":8082"
	if v := os.Getenv("WORKER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Останавливаем worker, затем дожидаемся задач в пуле
	w.Stop()
	if execPool != nil {
		execPool.StopWait()
	}
	logger.Info("conveyor-worker stopped")
}

// setupBackend выбирает result backend по RESULT_BACKEND:
// postgres (по умолчанию), redis, memory.
func setupBackend(ctx context.Context, logger *slog.Logger) (backend.Backend, func(), error) {
	switch os.Getenv("RESULT_BACKEND") {
	case "memory":
		logger.Warn("using in-memory result backend, results are lost on restart")
		return backend.NewMemory(), func() {}, nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     getenv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, nil, err
		}
		logger.Info("redis connected")
		return backend.NewRedis(backend.RedisConfig{Client: rdb}), func() { _ = rdb.Close() }, nil

	default:
		dbPool, err := backend.NewPool(ctx)
		if err != nil {
			return nil, nil, err
		}
		pg := backend.NewPostgres(dbPool)
		if err := pg.EnsureSchema(ctx); err != nil {
			dbPool.Close()
			return nil, nil, err
		}
		logger.Info("database connected")
		return pg, dbPool.Close, nil
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
