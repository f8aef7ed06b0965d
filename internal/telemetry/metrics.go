package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики воркера и движка.
var (
	// JobsProcessed — обработанные jobs по итоговому статусу.
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scrapeflow_jobs_processed_total",
		Help: "Jobs processed by final status.",
	}, []string{"status"})

	// JobDuration — длительность выполнения job.
	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scrapeflow_job_duration_seconds",
		Help:    "Job execution duration.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	})

	// JobRetries — повторы jobs после падений.
	JobRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scrapeflow_job_retries_total",
		Help: "Job-level retries after failures.",
	})

	// EngineRequests — HTTP запросы движка за все runs.
	EngineRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scrapeflow_engine_requests_total",
		Help: "HTTP requests issued by the scrape engine.",
	})

	// EnginePages — посещённые страницы пагинации.
	EnginePages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scrapeflow_engine_pages_total",
		Help: "Pages visited by paginate steps.",
	})

	// StepErrors — ошибки шагов, включая погашенные.
	StepErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scrapeflow_step_errors_total",
		Help: "Step errors, including contained ones.",
	})

	// DelayedPromoted — delayed jobs, переведённые в очередь.
	DelayedPromoted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scrapeflow_delayed_promoted_total",
		Help: "Delayed jobs promoted to the waiting queue.",
	})

	// CampaignRuns — запуски кампаний планировщиком.
	CampaignRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scrapeflow_campaign_runs_total",
		Help: "Jobs submitted by campaign schedules.",
	})
)
