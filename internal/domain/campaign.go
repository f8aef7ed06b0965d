package domain

import (
	"time"

	"github.com/google/uuid"
)

// Campaign — периодически запускаемый сценарий.
//
// Планировщик по cron выражению кампании создаёт обычный Job
// с её конфигурацией.
type Campaign struct {
	// ID — идентификатор кампании.
	ID uuid.UUID `json:"id"`

	// Name — имя кампании.
	Name string `json:"name"`

	// CronExpr — стандартное 5-польное cron выражение.
	CronExpr string `json:"cron_expr"`

	// Config — конфигурация запускаемого сценария.
	Config ScrapeConfig `json:"config"`

	// InitialVars — стартовые shared переменные каждого запуска.
	InitialVars map[string]any `json:"initial_vars,omitempty"`

	// Priority — приоритет создаваемых jobs.
	Priority int `json:"priority"`

	// Enabled — выключенная кампания не планируется.
	Enabled bool `json:"enabled"`

	// LastRunAt — время последнего запуска.
	LastRunAt *time.Time `json:"last_run_at,omitempty"`

	// NextDueAt — время следующего запуска по cron выражению.
	NextDueAt *time.Time `json:"next_due_at,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`
}

// NewCampaign создаёт кампанию с умолчаниями.
func NewCampaign(name, cronExpr string, cfg ScrapeConfig) *Campaign {
	return &Campaign{
		ID:        uuid.New(),
		Name:      name,
		CronExpr:  cronExpr,
		Config:    cfg,
		Priority:  PriorityDefault,
		Enabled:   true,
		CreatedAt: time.Now().UTC(),
	}
}

// RecordRun отмечает запуск и следующее время выполнения.
func (c *Campaign) RecordRun(at, nextDue time.Time) {
	c.LastRunAt = &at
	c.NextDueAt = &nextDue
}
