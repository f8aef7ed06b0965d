package domain

import (
	"time"

	"github.com/google/uuid"
)

// Приоритеты job.
const (
	// PriorityMin, PriorityMax — границы приоритета при подаче.
	PriorityMin = 1
	PriorityMax = 10

	// PriorityDefault — приоритет по умолчанию.
	PriorityDefault = 5
)

// Job — задание на одно выполнение сценария скрейпинга.
//
// Job создаётся при подаче через API/CLI и потребляется воркером:
// один принятый job — ровно один запуск движка (плюс повторы job-уровня).
type Job struct {
	// ID — уникальный идентификатор job.
	ID uuid.UUID `json:"id"`

	// Config — сценарий для выполнения.
	Config ScrapeConfig `json:"config"`

	// InitialVars — переопределения контекста (shared переменные на старте).
	InitialVars map[string]any `json:"initial_vars,omitempty"`

	// Priority — приоритет доставки 1–10 (10 — наивысший).
	Priority int `json:"priority"`

	// ScheduledAt — отложенный старт. Nil — выполнять сразу.
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`

	// Metadata — произвольные метаданные подателя.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Status — текущий статус.
	Status JobStatus `json:"status"`

	// Progress — прогресс выполнения 0–100.
	Progress int `json:"progress"`

	// AttemptsMade — сколько попыток выполнения уже сделано.
	AttemptsMade int `json:"attempts_made"`

	// FailedReason — причина последнего падения.
	FailedReason string `json:"failed_reason,omitempty"`

	// CreatedAt — время подачи.
	CreatedAt time.Time `json:"created_at"`

	// ProcessedAt — время начала выполнения (nil — ещё не начинался).
	ProcessedAt *time.Time `json:"processed_at,omitempty"`

	// FinishedAt — время завершения (nil — ещё не завершён).
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewJob создаёт job для сценария с нормализованным приоритетом.
// ScheduledAt в будущем переводит job сразу в delayed.
func NewJob(cfg ScrapeConfig) *Job {
	return &Job{
		ID:        uuid.New(),
		Config:    cfg,
		Priority:  PriorityDefault,
		Status:    JobStatusWaiting,
		CreatedAt: time.Now().UTC(),
	}
}

// ClampPriority нормализует приоритет в диапазон 1–10.
func ClampPriority(p int) int {
	if p < PriorityMin {
		return PriorityDefault
	}
	if p > PriorityMax {
		return PriorityMax
	}
	return p
}

// IsFinished возвращает true, если job завершён.
func (j *Job) IsFinished() bool {
	return j.Status.IsTerminal()
}

// MarkActive переводит job в статус active и отмечает начало выполнения.
func (j *Job) MarkActive() {
	now := time.Now().UTC()
	j.Status = JobStatusActive
	if j.ProcessedAt == nil {
		j.ProcessedAt = &now
	}
}

// MarkCompleted переводит job в статус completed.
func (j *Job) MarkCompleted() {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.Progress = 100
	j.FinishedAt = &now
}

// MarkFailed переводит job в статус failed с причиной.
func (j *Job) MarkFailed(reason string) {
	now := time.Now().UTC()
	j.Status = JobStatusFailed
	j.FailedReason = reason
	j.FinishedAt = &now
}

// MarkWaiting возвращает job в очередь (из delayed или для повтора).
func (j *Job) MarkWaiting() {
	j.Status = JobStatusWaiting
}

// CanRetry проверяет, остались ли попытки в бюджете повторов.
func (j *Job) CanRetry() bool {
	return j.AttemptsMade <= j.Config.MaxRetries
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если job ещё не завершён.
func (j *Job) Duration() time.Duration {
	if j.ProcessedAt == nil || j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(*j.ProcessedAt)
}
