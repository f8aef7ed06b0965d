package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Jobs
	mux.Handle("POST /api/v1/jobs", chain(http.HandlerFunc(h.SubmitJob)))
	mux.Handle("GET /api/v1/jobs", chain(http.HandlerFunc(h.ListJobs)))
	mux.Handle("GET /api/v1/jobs/{id}", chain(http.HandlerFunc(h.GetJob)))
	mux.Handle("GET /api/v1/jobs/{id}/result", chain(http.HandlerFunc(h.GetJobResult)))
	mux.Handle("POST /api/v1/jobs/{id}/cancel", chain(http.HandlerFunc(h.CancelJob)))

	// Configs
	mux.Handle("POST /api/v1/configs/validate", chain(http.HandlerFunc(h.ValidateConfig)))

	// Campaigns
	mux.Handle("POST /api/v1/campaigns", chain(http.HandlerFunc(h.CreateCampaign)))
	mux.Handle("GET /api/v1/campaigns", chain(http.HandlerFunc(h.ListCampaigns)))
	mux.Handle("GET /api/v1/campaigns/{id}", chain(http.HandlerFunc(h.GetCampaign)))
	mux.Handle("PUT /api/v1/campaigns/{id}/enabled", chain(http.HandlerFunc(h.SetCampaignEnabled)))

	// Stats
	mux.Handle("GET /api/v1/stats", chain(http.HandlerFunc(h.GetStats)))
}
