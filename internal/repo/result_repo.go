package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/scrapeflow/internal/domain"
)

// ResultRepo — репозиторий итоговых отчётов выполнения.
type ResultRepo struct {
	pool *pgxpool.Pool
}

// NewResultRepo создаёт ResultRepo.
func NewResultRepo(pool *pgxpool.Pool) *ResultRepo {
	return &ResultRepo{pool: pool}
}

// Save сохраняет отчёт job. Повторное сохранение (повтор job)
// перезаписывает предыдущий отчёт.
func (r *ResultRepo) Save(ctx context.Context, jobID uuid.UUID, result *domain.Result) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	query := `
		INSERT INTO job_results (job_id, result, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (job_id) DO UPDATE
		SET result = EXCLUDED.result, created_at = now()
	`
	if _, err := r.pool.Exec(ctx, query, jobID, resultJSON); err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

// GetByJobID возвращает отчёт job.
func (r *ResultRepo) GetByJobID(ctx context.Context, jobID uuid.UUID) (*domain.Result, error) {
	var resultJSON []byte
	err := r.pool.QueryRow(ctx,
		`SELECT result FROM job_results WHERE job_id = $1`, jobID).Scan(&resultJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}

	var result domain.Result
	if err := json.Unmarshal(resultJSON, &result); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &result, nil
}
