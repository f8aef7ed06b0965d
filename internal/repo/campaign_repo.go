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

// CampaignRepo — репозиторий периодических кампаний.
type CampaignRepo struct {
	pool *pgxpool.Pool
}

// NewCampaignRepo создаёт CampaignRepo.
func NewCampaignRepo(pool *pgxpool.Pool) *CampaignRepo {
	return &CampaignRepo{pool: pool}
}

// Create сохраняет кампанию.
func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	configJSON, err := json.Marshal(c.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	varsJSON, err := json.Marshal(c.InitialVars)
	if err != nil {
		return fmt.Errorf("marshal initial vars: %w", err)
	}

	query := `
		INSERT INTO campaigns (id, name, cron_expr, config, initial_vars, priority, enabled, next_due_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query,
		c.ID, c.Name, c.CronExpr, configJSON, varsJSON, c.Priority, c.Enabled, c.NextDueAt, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

// List возвращает все кампании.
func (r *CampaignRepo) List(ctx context.Context) ([]domain.Campaign, error) {
	query := `
		SELECT id, name, cron_expr, config, initial_vars, priority, enabled, last_run_at, next_due_at, created_at
		FROM campaigns
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, rows.Err()
}

// GetByID возвращает кампанию по ID.
func (r *CampaignRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	query := `
		SELECT id, name, cron_expr, config, initial_vars, priority, enabled, last_run_at, next_due_at, created_at
		FROM campaigns
		WHERE id = $1
	`
	return scanCampaign(r.pool.QueryRow(ctx, query, id))
}

// ListDue возвращает включённые кампании, чьё время пришло.
func (r *CampaignRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Campaign, error) {
	query := `
		SELECT id, name, cron_expr, config, initial_vars, priority, enabled, last_run_at, next_due_at, created_at
		FROM campaigns
		WHERE enabled AND next_due_at IS NOT NULL AND next_due_at <= $1
		ORDER BY next_due_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, rows.Err()
}

// RecordRun отмечает запуск и следующее время выполнения кампании.
func (r *CampaignRepo) RecordRun(ctx context.Context, c *domain.Campaign) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE campaigns SET last_run_at = $2, next_due_at = $3 WHERE id = $1`,
		c.ID, c.LastRunAt, c.NextDueAt)
	if err != nil {
		return fmt.Errorf("record campaign run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEnabled включает или выключает кампанию.
func (r *CampaignRepo) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE campaigns SET enabled = $2 WHERE id = $1`, id, enabled)
	if err != nil {
		return fmt.Errorf("set campaign enabled: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCampaign(row pgx.Row) (*domain.Campaign, error) {
	var c domain.Campaign
	var configJSON, varsJSON []byte

	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.CronExpr,
		&configJSON,
		&varsJSON,
		&c.Priority,
		&c.Enabled,
		&c.LastRunAt,
		&c.NextDueAt,
		&c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan campaign: %w", err)
	}

	if err := json.Unmarshal(configJSON, &c.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if varsJSON != nil {
		if err := json.Unmarshal(varsJSON, &c.InitialVars); err != nil {
			return nil, fmt.Errorf("unmarshal initial vars: %w", err)
		}
	}

	return &c, nil
}
