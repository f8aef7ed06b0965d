package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/scrapeflow/internal/domain"
	"github.com/shaiso/scrapeflow/internal/engine"
	"github.com/shaiso/scrapeflow/internal/repo"
)

// SubmitJobRequest — тело запроса подачи job.
type SubmitJobRequest struct {
	// Config — сценарий скрейпинга.
	Config domain.ScrapeConfig `json:"config"`

	// InitialVars — стартовые shared переменные.
	InitialVars map[string]any `json:"initial_vars,omitempty"`

	// Priority — приоритет 1-10 (0 — по умолчанию).
	Priority int `json:"priority,omitempty"`

	// ScheduledAt — отложенный старт.
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`

	// Metadata — произвольные метаданные подателя.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SubmitJob принимает сценарий, валидирует его и ставит job
// в очередь. POST /api/v1/jobs
func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid json body: "+err.Error())
		return
	}

	if err := engine.ValidateConfig(&req.Config); err != nil {
		BadRequest(w, "invalid config: "+err.Error())
		return
	}

	job := domain.NewJob(req.Config)
	job.InitialVars = req.InitialVars
	job.Priority = domain.ClampPriority(req.Priority)
	job.Metadata = req.Metadata

	now := time.Now().UTC()
	if req.ScheduledAt != nil && req.ScheduledAt.After(now) {
		job.ScheduledAt = req.ScheduledAt
		job.Status = domain.JobStatusDelayed
	}

	if err := h.jobRepo.Create(r.Context(), job); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	// Отложенный job публикует планировщик, когда придёт время
	if job.Status == domain.JobStatusWaiting && h.publisher != nil {
		if err := h.publisher.PublishJobSubmitted(r.Context(), job.ID, job.Priority); err != nil {
			// Не фатально: воркер подхватит job через polling
			h.logger.Warn("failed to publish job.submitted", "job_id", job.ID, "error", err)
		}
	}

	h.logger.Info("job submitted",
		"job_id", job.ID,
		"config", job.Config.Name,
		"status", job.Status,
		"priority", job.Priority,
	)

	Created(w, job)
}

// ListJobs возвращает jobs с фильтрацией по статусу.
// GET /api/v1/jobs?status=&limit=&offset=
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter := repo.JobFilter{
		Limit:  parseIntParam(r, "limit", 50),
		Offset: parseIntParam(r, "offset", 0),
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.ParseJobStatus(status)
	}

	jobs, err := h.jobRepo.List(r.Context(), filter)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	List(w, jobs, len(jobs))
}

// GetJob возвращает job со статусом и прогрессом.
// GET /api/v1/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	job, err := h.jobRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "job not found") {
		return
	}

	Success(w, job)
}

// GetJobResult возвращает отчёт завершённого job.
// GET /api/v1/jobs/{id}/result
func (h *Handler) GetJobResult(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	result, err := h.resultRepo.GetByJobID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "result not found") {
		return
	}

	Success(w, result)
}

// CancelJob отменяет job, ещё не взятый воркером.
// POST /api/v1/jobs/{id}/cancel
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	err := h.jobRepo.Cancel(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "job not found") {
		return
	}

	h.logger.Info("job cancelled", "job_id", id)
	NoContent(w)
}

// ValidateConfigResponse — результат проверки конфигурации.
type ValidateConfigResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ValidateConfig проверяет сценарий без постановки в очередь.
// POST /api/v1/configs/validate
func (h *Handler) ValidateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg domain.ScrapeConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		BadRequest(w, "invalid json body: "+err.Error())
		return
	}

	if err := engine.ValidateConfig(&cfg); err != nil {
		Success(w, ValidateConfigResponse{Valid: false, Error: err.Error()})
		return
	}
	Success(w, ValidateConfigResponse{Valid: true})
}

// GetStats возвращает количество jobs по статусам.
// GET /api/v1/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.jobRepo.CountByStatus(r.Context())
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, counts)
}

// --- Helpers ---

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func parseIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return def
	}
	return value
}
