// Package api реализует HTTP API управления jobs и кампаниями:
// подача сценариев, статусы, результаты, отмена, валидация
// конфигураций.
package api

import (
	"log/slog"

	"github.com/shaiso/scrapeflow/internal/queue"
	"github.com/shaiso/scrapeflow/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	jobRepo      *repo.JobRepo
	resultRepo   *repo.ResultRepo
	campaignRepo *repo.CampaignRepo
	publisher    *queue.Publisher
	logger       *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	JobRepo      *repo.JobRepo
	ResultRepo   *repo.ResultRepo
	CampaignRepo *repo.CampaignRepo

	// Publisher — nil допустим: jobs подхватит polling воркера.
	Publisher *queue.Publisher

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		jobRepo:      cfg.JobRepo,
		resultRepo:   cfg.ResultRepo,
		campaignRepo: cfg.CampaignRepo,
		publisher:    cfg.Publisher,
		logger:       cfg.Logger,
	}
}
