package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/shaiso/scrapeflow/internal/domain"
	"github.com/shaiso/scrapeflow/internal/engine"
	"github.com/shaiso/scrapeflow/internal/httpx"
	"github.com/shaiso/scrapeflow/internal/queue"
	"github.com/shaiso/scrapeflow/internal/repo"
	"github.com/shaiso/scrapeflow/internal/telemetry"
)

// handleJobSubmitted обрабатывает событие job.submitted из очереди.
func (w *Worker) handleJobSubmitted(ctx context.Context, delivery *queue.Delivery) error {
	payload, err := queue.ParsePayload[queue.JobSubmittedPayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse job.submitted payload", "error", err)
		// Некорректный payload не станет корректным после requeue
		return delivery.Nack(false)
	}

	w.logger.Debug("received job.submitted event", "job_id", payload.JobID)

	if err := w.processJob(ctx, payload.JobID); err != nil {
		// Ожидаемые ситуации — подтверждаем сообщение
		if errors.Is(err, ErrJobNotFound) || errors.Is(err, ErrJobNotWaiting) {
			w.logger.Debug("job not processed", "job_id", payload.JobID, "reason", err)
			return nil
		}
		w.logger.Error("failed to process job", "job_id", payload.JobID, "error", err)
		return err
	}
	return nil
}

// processJob забирает job, выполняет движок и фиксирует исход.
//
// Ошибка выполнения сценария не возвращается как error: она
// становится либо отложенным повтором, либо терминальным failed.
// Error возвращается только при инфраструктурных сбоях (БД).
func (w *Worker) processJob(ctx context.Context, jobID uuid.UUID) error {
	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-w.sem }()

	// 1. Атомарно забираем job (status: waiting -> active)
	job, err := w.jobRepo.Claim(ctx, jobID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		if errors.Is(err, repo.ErrInvalidState) {
			return ErrJobNotWaiting
		}
		return fmt.Errorf("claim job: %w", err)
	}

	logger := telemetry.WithJobID(w.logger, job.ID.String())
	logger.Info("job started",
		"config", job.Config.Name,
		"attempt", job.AttemptsMade,
		"priority", job.Priority,
	)

	// 2. Собираем HTTP клиент сценария с глобальным rate limit
	client, err := httpx.NewClient(job.Config.HTTP, logger)
	if err != nil {
		return w.finishFailed(ctx, job, fmt.Sprintf("build http client: %v", err), false)
	}
	fetcher := &pacedFetcher{client: client, limiter: w.limiter}

	// 3. Собираем интерпретатор. В БД уходит только прогресс по
	// шагам верхнего уровня: события вложенных списков опознаются
	// по размеру списка и имени шага и пропускаются.
	topSteps := job.Config.Steps
	runner, err := engine.NewRunner(&job.Config, fetcher, logger, engine.Callbacks{
		OnProgress: func(current, total int, step string) {
			if total != len(topSteps) || current < 1 || current > total || topSteps[current-1].Name != step {
				return
			}
			percent := current * 100 / total
			if err := w.jobRepo.UpdateProgress(ctx, job.ID, percent); err != nil {
				logger.Warn("failed to persist progress", "error", err)
			}
		},
		OnError: func(domain.StepError) {
			telemetry.StepErrors.Inc()
		},
	})
	if err != nil {
		// Конфигурация невалидна — повторы бессмысленны
		return w.finishFailed(ctx, job, err.Error(), false)
	}

	// 4. Выполняем: один job — один атомарный run
	result, err := runner.Run(ctx, job.InitialVars)
	if err != nil {
		return w.finishFailed(ctx, job, err.Error(), false)
	}

	telemetry.EnginePages.Add(float64(len(result.Metadata.PagesVisited)))

	// 5. Сохраняем отчёт независимо от исхода
	if err := w.resultRepo.Save(ctx, job.ID, result); err != nil {
		return fmt.Errorf("save result: %w", err)
	}

	if result.Success {
		return w.finishCompleted(ctx, job, result)
	}
	return w.finishFailed(ctx, job, failureReason(result), true)
}

// finishCompleted фиксирует успешный исход job.
func (w *Worker) finishCompleted(ctx context.Context, job *domain.Job, result *domain.Result) error {
	job.MarkCompleted()
	if err := w.jobRepo.Update(ctx, job); err != nil {
		return fmt.Errorf("update job to completed: %w", err)
	}

	telemetry.JobsProcessed.WithLabelValues(string(domain.JobStatusCompleted)).Inc()
	telemetry.JobDuration.Observe(job.Duration().Seconds())

	logger := telemetry.WithJobID(w.logger, job.ID.String())
	logger.Info("job completed",
		"items", result.ItemCount(),
		"requests", result.Metadata.RequestCount,
		"duration_ms", result.Metadata.DurationMs,
	)

	w.deliverToSinks(ctx, job, result)
	w.publishFinished(ctx, job, "")
	return nil
}

// finishFailed фиксирует неуспех: либо отложенный повтор, либо
// терминальный failed. retryable=false закрывает job сразу.
func (w *Worker) finishFailed(ctx context.Context, job *domain.Job, reason string, retryable bool) error {
	logger := telemetry.WithJobID(w.logger, job.ID.String())

	if retryable && job.CanRetry() {
		scheduledAt := time.Now().UTC().Add(retryDelay)
		job.Status = domain.JobStatusDelayed
		job.ScheduledAt = &scheduledAt
		job.FailedReason = reason

		if err := w.jobRepo.Update(ctx, job); err != nil {
			return fmt.Errorf("schedule job retry: %w", err)
		}

		telemetry.JobRetries.Inc()
		logger.Warn("job failed, retry scheduled",
			"attempt", job.AttemptsMade,
			"max_retries", job.Config.MaxRetries,
			"retry_at", scheduledAt,
			"error", reason,
		)
		return nil
	}

	job.MarkFailed(reason)
	if err := w.jobRepo.Update(ctx, job); err != nil {
		return fmt.Errorf("update job to failed: %w", err)
	}

	telemetry.JobsProcessed.WithLabelValues(string(domain.JobStatusFailed)).Inc()
	logger.Warn("job failed permanently",
		"attempt", job.AttemptsMade,
		"error", reason,
	)

	w.publishFinished(ctx, job, reason)
	return nil
}

// deliverToSinks отдаёт результат каждому настроенному sink.
// Сбой sink не влияет на статус job.
func (w *Worker) deliverToSinks(ctx context.Context, job *domain.Job, result *domain.Result) {
	for _, s := range w.sinks.All() {
		if err := s.Write(ctx, job, result); err != nil {
			w.logger.Warn("sink delivery failed",
				"sink", s.Name(), "job_id", job.ID, "error", err)
		}
	}
}

// publishFinished публикует событие завершения, если брокер доступен.
func (w *Worker) publishFinished(ctx context.Context, job *domain.Job, errMsg string) {
	if w.publisher == nil {
		return
	}
	err := w.publisher.PublishJobFinished(ctx, queue.JobFinishedPayload{
		JobID:    job.ID,
		Status:   string(job.Status),
		Error:    errMsg,
		Attempts: job.AttemptsMade,
	})
	if err != nil {
		w.logger.Warn("failed to publish job.finished", "job_id", job.ID, "error", err)
	}
}

// failureReason собирает причину неуспеха из ошибок отчёта.
func failureReason(result *domain.Result) string {
	if len(result.Errors) == 0 {
		return "scrape run failed"
	}
	last := result.Errors[len(result.Errors)-1]
	return last.Error()
}

// pacedFetcher оборачивает HTTP клиент глобальным rate limiter
// воркера и счётчиком запросов.
type pacedFetcher struct {
	client  *httpx.Client
	limiter *rate.Limiter
}

func (f *pacedFetcher) Do(ctx context.Context, req httpx.Request) (*httpx.Response, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	telemetry.EngineRequests.Inc()
	return f.client.Do(ctx, req)
}
