package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/shaiso/scrapeflow/internal/domain"
	"github.com/shaiso/scrapeflow/internal/queue"
	"github.com/shaiso/scrapeflow/internal/repo"
	"github.com/shaiso/scrapeflow/internal/sink"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 20
	defaultConcurrency  = 4
	defaultRatePerSec   = 5

	// retryDelay — пауза перед повторной постановкой упавшего job.
	retryDelay = 5 * time.Second
)

// Worker выполняет jobs скрейпинга.
type Worker struct {
	// Repositories
	jobRepo    *repo.JobRepo
	resultRepo *repo.ResultRepo

	// MQ
	publisher *queue.Publisher
	conn      *queue.Connection
	consumer  *queue.Consumer

	// Sinks
	sinks *sink.Registry

	// Глобальный темп HTTP запросов движка
	limiter *rate.Limiter

	// Параллелизм активных jobs
	sem chan struct{}

	// Configuration
	pollInterval time.Duration
	batchSize    int
	concurrency  int

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	// Repositories
	JobRepo    *repo.JobRepo
	ResultRepo *repo.ResultRepo

	// MQ (nil — работа в polling-only режиме)
	Publisher *queue.Publisher
	Conn      *queue.Connection

	// Sinks (опционально; nil — результаты только в БД)
	Sinks *sink.Registry

	// Concurrency — максимум одновременных jobs (default: 4).
	Concurrency int

	// RequestsPerSecond — глобальный темп HTTP запросов движка
	// (default: 5; 0 или меньше — значение по умолчанию).
	RequestsPerSecond float64

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество jobs за один poll (default: 20)

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	ratePerSec := cfg.RequestsPerSecond
	if ratePerSec <= 0 {
		ratePerSec = defaultRatePerSec
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sinks := cfg.Sinks
	if sinks == nil {
		sinks = sink.NewRegistry()
	}

	return &Worker{
		jobRepo:      cfg.JobRepo,
		resultRepo:   cfg.ResultRepo,
		publisher:    cfg.Publisher,
		conn:         cfg.Conn,
		sinks:        sinks,
		limiter:      rate.NewLimiter(rate.Limit(ratePerSec), 1),
		sem:          make(chan struct{}, concurrency),
		pollInterval: pollInterval,
		batchSize:    batchSize,
		concurrency:  concurrency,
		logger:       logger,
	}
}

// Start запускает Worker.
//
// Запускает:
//   - Consumer для jobs.pending (если есть соединение с брокером)
//   - Polling горутину для fallback
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"concurrency", w.concurrency,
		"poll_interval", w.pollInterval,
		"batch_size", w.batchSize,
	)

	if w.conn != nil {
		w.consumer = queue.NewConsumer(w.conn, w.logger, queue.ConsumerConfig{
			Queue:    queue.QueueJobsPending,
			Handler:  w.handleJobSubmitted,
			Prefetch: w.concurrency,
		})

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("job consumer error", "error", err)
			}
		}()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx)
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker и дожидается активных jobs.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}

	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

// pollLoop — цикл polling для fallback.
func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем jobs, созданные
	// пока воркер был выключен)
	w.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll подхватывает waiting jobs напрямую из БД.
func (w *Worker) poll(ctx context.Context) {
	jobs, err := w.jobRepo.List(ctx, repo.JobFilter{
		Status: domain.JobStatusWaiting,
		Limit:  w.batchSize,
	})
	if err != nil {
		w.logger.Error("failed to list waiting jobs", "error", err)
		return
	}
	if len(jobs) == 0 {
		return
	}

	w.logger.Debug("poll found waiting jobs", "count", len(jobs))

	for i := range jobs {
		if err := w.processJob(ctx, jobs[i].ID); err != nil {
			if errors.Is(err, ErrJobNotWaiting) {
				continue
			}
			w.logger.Error("failed to process job from poll",
				"job_id", jobs[i].ID, "error", err)
		}
	}
}
