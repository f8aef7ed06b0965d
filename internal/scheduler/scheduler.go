// Package scheduler переводит отложенные jobs в очередь и запускает
// периодические кампании по их cron выражениям.
//
// Планировщик — один экземпляр на систему, работает тиками.
// Каждый тик:
//   - delayed jobs с наступившим scheduled_at становятся waiting
//     и публикуются в очередь воркеров
//   - due кампании порождают новые jobs
//
// Ошибки отдельного job или кампании не блокируют остальные.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/scrapeflow/internal/domain"
	"github.com/shaiso/scrapeflow/internal/queue"
	"github.com/shaiso/scrapeflow/internal/repo"
	"github.com/shaiso/scrapeflow/internal/telemetry"
)

// Scheduler обрабатывает delayed jobs и due кампании.
type Scheduler struct {
	jobRepo      *repo.JobRepo
	campaignRepo *repo.CampaignRepo
	publisher    *queue.Publisher
	logger       *slog.Logger
	batchSize    int
}

// Config — конфигурация Scheduler.
type Config struct {
	JobRepo      *repo.JobRepo
	CampaignRepo *repo.CampaignRepo
	Publisher    *queue.Publisher
	Logger       *slog.Logger
	BatchSize    int // записей за один тик (default: 100)
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		jobRepo:      cfg.JobRepo,
		campaignRepo: cfg.CampaignRepo,
		publisher:    cfg.Publisher,
		logger:       logger,
		batchSize:    batchSize,
	}
}

// Run выполняет тики с заданным интервалом до отмены контекста.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Первый тик сразу при старте
	s.tickSafe(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tickSafe(ctx)
		}
	}
}

func (s *Scheduler) tickSafe(ctx context.Context) {
	if err := s.Tick(ctx); err != nil {
		s.logger.Error("scheduler tick failed", "error", err)
	}
}

// Tick выполняет один тик планировщика.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := time.Now().UTC()

	if err := s.promoteDelayed(ctx, now); err != nil {
		return err
	}
	return s.fireCampaigns(ctx, now)
}

// promoteDelayed переводит due delayed jobs в waiting и публикует
// их в очередь воркеров.
func (s *Scheduler) promoteDelayed(ctx context.Context, now time.Time) error {
	jobs, err := s.jobRepo.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}

	s.logger.Debug("found due delayed jobs", "count", len(jobs))

	var promoted int
	for i := range jobs {
		job := &jobs[i]

		job.MarkWaiting()
		if err := s.jobRepo.Update(ctx, job); err != nil {
			s.logger.Error("failed to promote delayed job",
				"job_id", job.ID, "error", err)
			continue
		}

		if s.publisher != nil {
			if err := s.publisher.PublishJobSubmitted(ctx, job.ID, job.Priority); err != nil {
				// Не фатально: воркер подхватит job через polling
				s.logger.Warn("failed to publish promoted job",
					"job_id", job.ID, "error", err)
			}
		}

		telemetry.DelayedPromoted.Inc()
		promoted++
	}

	s.logger.Info("delayed jobs promoted", "due", len(jobs), "promoted", promoted)
	return nil
}

// fireCampaigns создаёт jobs для кампаний с наступившим next_due_at.
func (s *Scheduler) fireCampaigns(ctx context.Context, now time.Time) error {
	campaigns, err := s.campaignRepo.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due campaigns: %w", err)
	}
	if len(campaigns) == 0 {
		return nil
	}

	s.logger.Debug("found due campaigns", "count", len(campaigns))

	var fired int
	for i := range campaigns {
		if err := s.fireCampaign(ctx, &campaigns[i], now); err != nil {
			s.logger.Error("failed to fire campaign",
				"campaign_id", campaigns[i].ID,
				"campaign_name", campaigns[i].Name,
				"error", err,
			)
			continue
		}
		fired++
	}

	s.logger.Info("campaigns fired", "due", len(campaigns), "fired", fired)
	return nil
}

// fireCampaign создаёт job кампании и сдвигает её next_due_at.
func (s *Scheduler) fireCampaign(ctx context.Context, c *domain.Campaign, now time.Time) error {
	job := domain.NewJob(c.Config)
	job.Priority = domain.ClampPriority(c.Priority)
	job.InitialVars = c.InitialVars
	job.Metadata = map[string]any{
		"campaign_id":   c.ID.String(),
		"campaign_name": c.Name,
	}

	if err := s.jobRepo.Create(ctx, job); err != nil {
		return fmt.Errorf("create campaign job: %w", err)
	}

	logger := telemetry.WithCampaignID(s.logger, c.ID.String())
	logger.Info("created job from campaign",
		"job_id", job.ID, "campaign_name", c.Name)

	if s.publisher != nil {
		if err := s.publisher.PublishJobSubmitted(ctx, job.ID, job.Priority); err != nil {
			logger.Warn("failed to publish campaign job", "job_id", job.ID, "error", err)
		}
	}

	nextDue, err := NextDue(c.CronExpr, now)
	if err != nil {
		// Кривое выражение: не трогаем next_due_at, кампания
		// требует ручного вмешательства
		logger.Error("failed to calculate next due", "error", err)
		return nil
	}

	c.RecordRun(now, nextDue)
	if err := s.campaignRepo.RecordRun(ctx, c); err != nil {
		return fmt.Errorf("record campaign run: %w", err)
	}

	telemetry.CampaignRuns.Inc()
	return nil
}
