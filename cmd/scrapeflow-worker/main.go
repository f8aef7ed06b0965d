// Scrapeflow Worker — выполняет scraping jobs.
//
// Worker:
//   - Получает jobs из RabbitMQ (или polling базы при его отсутствии)
//   - Выполняет сценарий движком с ограничением темпа запросов
//   - Сохраняет результат и доставляет его в настроенные sinks
//   - Неудачные jobs переводит в delayed для повторной попытки
//
// Workers масштабируются горизонтально.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/scrapeflow/internal/queue"
	"github.com/shaiso/scrapeflow/internal/repo"
	"github.com/shaiso/scrapeflow/internal/sink"
	"github.com/shaiso/scrapeflow/internal/telemetry"
	"github.com/shaiso/scrapeflow/internal/worker"
)

func main() {
	// .env для локальной разработки; отсутствие файла не ошибка
	_ = godotenv.Load()

	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting scrapeflow-worker")

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

	// Создаём репозитории
	jobRepo := repo.NewJobRepo(pool)
	resultRepo := repo.NewResultRepo(pool)

	// RabbitMQ
	var publisher *queue.Publisher
	var conn *queue.Connection
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = queue.DefaultURL()
	}

	conn, err = queue.Dial(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
		conn = nil
	} else {
		defer conn.Close()
		logger.Info("RabbitMQ connected")

		// Создаём топологию
		if err := queue.SetupTopology(conn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = queue.NewPublisher(conn, logger)
	}

	// Sinks из окружения
	sinks := sink.NewRegistry()

	if dir := os.Getenv("SINK_CSV_DIR"); dir != "" {
		csvSink, err := sink.NewCSVSink(dir)
		if err != nil {
			logger.Error("failed to create csv sink", "error", err)
			os.Exit(1)
		}
		sinks.Register(csvSink)
		logger.Info("csv sink enabled", "dir", dir)
	}

	if webhook := os.Getenv("SLACK_WEBHOOK_URL"); webhook != "" {
		slackSink, err := sink.NewSlackSink(webhook, logger)
		if err != nil {
			logger.Error("failed to create slack sink", "error", err)
			os.Exit(1)
		}
		sinks.Register(slackSink)
		logger.Info("slack sink enabled")
	}

	if v := os.Getenv("SINK_POSTGRES"); v == "1" || v == "true" {
		sinks.Register(sink.NewPostgresSink(pool))
		logger.Info("postgres sink enabled")
	}

	// Concurrency и темп запросов из окружения
	concurrency := 0
	if v := os.Getenv("WORKER_CONCURRENCY"); v != "" {
		concurrency, _ = strconv.Atoi(v)
	}

	ratePerSec := 0.0
	if v := os.Getenv("WORKER_RATE_PER_SEC"); v != "" {
		ratePerSec, _ = strconv.ParseFloat(v, 64)
	}

	// Создаём worker
	w := worker.New(worker.Config{
		JobRepo:           jobRepo,
		ResultRepo:        resultRepo,
		Publisher:         publisher,
		Conn:              conn,
		Sinks:             sinks,
		Concurrency:       concurrency,
		RequestsPerSecond: ratePerSec,
		Logger:            logger,
	})

	// Запускаем worker
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

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

	// Останавливаем worker
	w.Stop()
	logger.Info("scrapeflow-worker stopped")
}
