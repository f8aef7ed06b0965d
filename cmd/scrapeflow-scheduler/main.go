// Scrapeflow Scheduler — переводит delayed jobs в очередь и
// запускает campaigns по cron расписанию.
//
// Через pg advisory lock активен только один экземпляр.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/scrapeflow/internal/queue"
	"github.com/shaiso/scrapeflow/internal/repo"
	"github.com/shaiso/scrapeflow/internal/scheduler"
	"github.com/shaiso/scrapeflow/internal/telemetry"
)

const schedLockKey int64 = 737373

func main() {
	// .env для локальной разработки; отсутствие файла не ошибка
	_ = godotenv.Load()

	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting scrapeflow-scheduler")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	jobRepo := repo.NewJobRepo(pool)
	campaignRepo := repo.NewCampaignRepo(pool)

	// RabbitMQ (опционально)
	var publisher *queue.Publisher
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = queue.DefaultURL()
	}

	conn, err := queue.Dial(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, promoted jobs rely on worker polling", "error", err)
	} else {
		defer conn.Close()
		logger.Info("RabbitMQ connected")

		if err := queue.SetupTopology(conn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = queue.NewPublisher(conn, logger)
	}

	sched := scheduler.New(scheduler.Config{
		JobRepo:      jobRepo,
		CampaignRepo: campaignRepo,
		Publisher:    publisher,
		Logger:       logger,
	})

	interval := 1 * time.Second
	if v := os.Getenv("SCHED_TICK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			interval = d
		}
	}

	// scheduler loop
	go func() {
		tk := time.NewTicker(interval)
		defer tk.Stop()

		var hasLock bool
		defer func() {
			if hasLock {
				_, _ = pool.Exec(context.Background(), "select pg_advisory_unlock($1)", schedLockKey)
			}
		}()

		for {
			select {
			case <-tk.C:
				// пытаемся стать лидером (или подтвердить лидерство)
				if !hasLock {
					var ok bool
					if err := pool.QueryRow(ctx, "select pg_try_advisory_lock($1)", schedLockKey).Scan(&ok); err != nil {
						logger.Error("advisory lock", "error", err)
						continue
					}
					hasLock = ok
				}

				if !hasLock {
					// не лидер — пропускаем тик
					continue
				}

				if err := sched.Tick(ctx); err != nil {
					logger.Error("tick failed", "error", err)
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8083"
	if v := os.Getenv("SCHED_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("scrapeflow-scheduler stopped")
}
