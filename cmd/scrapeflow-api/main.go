package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/scrapeflow/internal/api"
	"github.com/shaiso/scrapeflow/internal/queue"
	"github.com/shaiso/scrapeflow/internal/repo"
	"github.com/shaiso/scrapeflow/internal/telemetry"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scrapeflow_api_http_requests_total",
		Help: "Total HTTP requests handled by scrapeflow-api",
	})
)

func main() {
	// .env для локальной разработки; отсутствие файла не ошибка
	_ = godotenv.Load()

	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting scrapeflow-api")

	// Подключаемся к базе данных
	pool, err := repo.NewPool(context.Background())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	// Создаём репозитории
	jobRepo := repo.NewJobRepo(pool)
	resultRepo := repo.NewResultRepo(pool)
	campaignRepo := repo.NewCampaignRepo(pool)

	// RabbitMQ (опционально: без брокера jobs подхватит polling воркера)
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = queue.DefaultURL()
	}

	var publisher *queue.Publisher
	conn, err := queue.Dial(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, jobs will be picked up by worker polling", "error", err)
	} else {
		defer conn.Close()
		logger.Info("RabbitMQ connected")

		if err := queue.SetupTopology(conn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = queue.NewPublisher(conn, logger)
	}

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		JobRepo:      jobRepo,
		ResultRepo:   resultRepo,
		CampaignRepo: campaignRepo,
		Publisher:    publisher,
		Logger:       logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		reqTotal.Inc()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	// Создаём HTTP сервер с возможностью graceful shutdown
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Ожидаем сигнал завершения
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
