// Conveyor Beat — публикует периодические задачи по расписанию.
//
// Beat:
//   - Читает расписание из JSON-файла (BEAT_SCHEDULE)
//   - Раз в секунду публикует due-записи в очереди RabbitMQ
//   - При заданном DB_URL координируется через pg advisory lock:
//     тикает только лидер, остальные экземпляры ждут своей очереди
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashmetov/conveyor/internal/backend"
	"github.com/ashmetov/conveyor/internal/beat"
	"github.com/ashmetov/conveyor/internal/mq"
	"github.com/ashmetov/conveyor/internal/telemetry"
)

const beatLockKey int64 = 727272

func main() {
	_ = godotenv.Load()

	logger := telemetry.SetupLogger()

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Расписание
	schedPath := os.Getenv("BEAT_SCHEDULE")
	if schedPath == "" {
		log.Fatalf("[beat] BEAT_SCHEDULE is not set")
	}
	entries, err := beat.LoadFile(schedPath)
	if err != nil {
		log.Fatalf("[beat] load schedule: %v", err)
	}
	log.Printf("[beat] loaded %d entries from %s", len(entries), schedPath)

	// RabbitMQ
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}
	mqConn, err := mq.NewConnection(mqURL, logger)
	if err != nil {
		log.Fatalf("[beat] rabbitmq connect: %v", err)
	}
	defer mqConn.Close()
	log.Printf("[beat] rabbitmq connected")

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		log.Printf("[beat] topology err: %v", err)
	}

	svc, err := beat.New(beat.Config{
		Publisher: mq.NewPublisher(mqConn, logger),
		Entries:   entries,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("[beat] bad schedule: %v", err)
	}

	// Цикл публикации. С DB_URL несколько экземпляров beat могут
	// работать рядом: тикает только держатель advisory lock.
	if os.Getenv("DB_URL") != "" {
		dbPool, err := backend.NewPool(ctx)
		if err != nil {
			log.Fatalf("[beat] db connect: %v", err)
		}
		defer dbPool.Close()
		log.Printf("[beat] db connected, leader election enabled")

		go func() {
			tk := time.NewTicker(1 * time.Second)
			defer tk.Stop()

			var hasLock bool
			defer func() {
				if hasLock {
					_, _ = dbPool.Exec(context.Background(), "select pg_advisory_unlock($1)", beatLockKey)
				}
			}()

			for {
				select {
				case t := <-tk.C:
					// пытаемся стать лидером (или подтвердить лидерство)
					if !hasLock {
						var ok bool
						if err := dbPool.QueryRow(ctx, "select pg_try_advisory_lock($1)", beatLockKey).Scan(&ok); err != nil {
							log.Printf("[beat] lock err: %v", err)
							continue
						}
						hasLock = ok
					}

					if !hasLock {
						// не лидер — пропускаем тик
						continue
					}

					svc.Tick(ctx, t)

				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		go func() {
			if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("[beat] run err: %v", err)
			}
		}()
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8083"
	if v := os.Getenv("BEAT_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		log.Printf("[beat] listening on %s", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			log.Printf("[beat] http error: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Printf("[beat] stopped")
}
