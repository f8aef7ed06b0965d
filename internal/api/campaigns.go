package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shaiso/scrapeflow/internal/domain"
	"github.com/shaiso/scrapeflow/internal/engine"
	"github.com/shaiso/scrapeflow/internal/scheduler"
)

// CreateCampaignRequest — тело запроса создания кампании.
type CreateCampaignRequest struct {
	Name        string              `json:"name"`
	CronExpr    string              `json:"cron_expr"`
	Config      domain.ScrapeConfig `json:"config"`
	InitialVars map[string]any      `json:"initial_vars,omitempty"`
	Priority    int                 `json:"priority,omitempty"`
}

// CreateCampaign создаёт периодическую кампанию.
// POST /api/v1/campaigns
func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid json body: "+err.Error())
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}
	if err := scheduler.ValidateCronExpr(req.CronExpr); err != nil {
		BadRequest(w, err.Error())
		return
	}
	if err := engine.ValidateConfig(&req.Config); err != nil {
		BadRequest(w, "invalid config: "+err.Error())
		return
	}

	campaign := domain.NewCampaign(req.Name, req.CronExpr, req.Config)
	campaign.InitialVars = req.InitialVars
	campaign.Priority = domain.ClampPriority(req.Priority)

	nextDue, err := scheduler.NextDue(req.CronExpr, time.Now().UTC())
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	campaign.NextDueAt = &nextDue

	if err := h.campaignRepo.Create(r.Context(), campaign); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.logger.Info("campaign created",
		"campaign_id", campaign.ID,
		"name", campaign.Name,
		"cron", campaign.CronExpr,
		"next_due", nextDue,
	)

	Created(w, campaign)
}

// ListCampaigns возвращает все кампании.
// GET /api/v1/campaigns
func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.campaignRepo.List(r.Context())
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}
	List(w, campaigns, len(campaigns))
}

// GetCampaign возвращает кампанию по ID.
// GET /api/v1/campaigns/{id}
func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	campaign, err := h.campaignRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "campaign not found") {
		return
	}
	Success(w, campaign)
}

// SetCampaignEnabledRequest — тело запроса включения кампании.
type SetCampaignEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// SetCampaignEnabled включает или выключает кампанию.
// PUT /api/v1/campaigns/{id}/enabled
func (h *Handler) SetCampaignEnabled(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req SetCampaignEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid json body: "+err.Error())
		return
	}

	err := h.campaignRepo.SetEnabled(r.Context(), id, req.Enabled)
	if HandleRepoError(w, h.logger, err, "campaign not found") {
		return
	}

	h.logger.Info("campaign enabled state changed", "campaign_id", id, "enabled", req.Enabled)
	NoContent(w)
}
