package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/scrapeflow/internal/domain"
)

// JobRepo — репозиторий jobs.
type JobRepo struct {
	pool *pgxpool.Pool
}

// NewJobRepo создаёт JobRepo.
func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

const jobColumns = `id, config, initial_vars, priority, scheduled_at, metadata,
       status, progress, attempts_made, failed_reason, created_at, processed_at, finished_at`

// Create сохраняет новый job.
func (r *JobRepo) Create(ctx context.Context, job *domain.Job) error {
	configJSON, err := json.Marshal(job.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	varsJSON, err := json.Marshal(job.InitialVars)
	if err != nil {
		return fmt.Errorf("marshal initial vars: %w", err)
	}
	metaJSON, err := json.Marshal(job.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		INSERT INTO jobs (id, config, initial_vars, priority, scheduled_at, metadata,
		                  status, progress, attempts_made, failed_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.pool.Exec(ctx, query,
		job.ID,
		configJSON,
		varsJSON,
		job.Priority,
		job.ScheduledAt,
		metaJSON,
		job.Status,
		job.Progress,
		job.AttemptsMade,
		nullString(job.FailedReason),
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetByID возвращает job по ID.
func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	return scanJob(r.pool.QueryRow(ctx, query, id))
}

// List возвращает jobs с фильтрацией по статусу.
func (r *JobRepo) List(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, query,
		nullString(string(filter.Status)),
		limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// Update переписывает изменяемые поля job.
func (r *JobRepo) Update(ctx context.Context, job *domain.Job) error {
	query := `
		UPDATE jobs
		SET status = $2, progress = $3, attempts_made = $4, failed_reason = $5,
		    processed_at = $6, finished_at = $7, scheduled_at = $8
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Status,
		job.Progress,
		job.AttemptsMade,
		nullString(job.FailedReason),
		job.ProcessedAt,
		job.FinishedAt,
		job.ScheduledAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Claim атомарно забирает waiting job: переводит в active и
// увеличивает счётчик попыток. Возвращает ErrInvalidState, если job
// уже забран другим воркером или завершён.
func (r *JobRepo) Claim(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET status = 'active',
		    processed_at = coalesce(processed_at, now()),
		    attempts_made = attempts_made + 1
		WHERE id = $1 AND status = 'waiting'
		RETURNING ` + jobColumns
	job, err := scanJob(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, ErrNotFound) {
		// Либо job нет, либо он не в waiting
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrInvalidState
	}
	return job, err
}

// UpdateProgress обновляет только прогресс активного job.
func (r *JobRepo) UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE jobs SET progress = $2 WHERE id = $1`, id, progress)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDue возвращает delayed jobs, чьё время пришло.
func (r *JobRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = 'delayed' AND scheduled_at <= $1
		ORDER BY scheduled_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// Cancel удаляет job, если он ещё не начал выполняться.
// Active и завершённые jobs отмене не подлежат.
func (r *JobRepo) Cancel(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM jobs WHERE id = $1 AND status IN ('waiting', 'delayed')`, id)
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	if result.RowsAffected() == 0 {
		// Либо job нет, либо он уже не отменяем
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrInvalidState
	}
	return nil
}

// CountByStatus возвращает количество jobs в каждом статусе.
func (r *JobRepo) CountByStatus(ctx context.Context) (map[domain.JobStatus]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT status, count(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.JobStatus]int)
	for rows.Next() {
		var status domain.JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// --- Helpers ---

// JobFilter — параметры фильтрации jobs.
type JobFilter struct {
	Status domain.JobStatus
	Limit  int
	Offset int
}

func collectJobs(rows pgx.Rows) ([]domain.Job, error) {
	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// scanJob сканирует одну строку в Job.
func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var configJSON, varsJSON, metaJSON []byte
	var failedReason *string

	err := row.Scan(
		&job.ID,
		&configJSON,
		&varsJSON,
		&job.Priority,
		&job.ScheduledAt,
		&metaJSON,
		&job.Status,
		&job.Progress,
		&job.AttemptsMade,
		&failedReason,
		&job.CreatedAt,
		&job.ProcessedAt,
		&job.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}

	if err := json.Unmarshal(configJSON, &job.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if varsJSON != nil {
		if err := json.Unmarshal(varsJSON, &job.InitialVars); err != nil {
			return nil, fmt.Errorf("unmarshal initial vars: %w", err)
		}
	}
	if metaJSON != nil {
		if err := json.Unmarshal(metaJSON, &job.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	if failedReason != nil {
		job.FailedReason = *failedReason
	}

	return &job, nil
}

// nullString возвращает nil для пустой строки (NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
