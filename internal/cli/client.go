package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api, CLI не импортирует internal/api) ---

// JobResponse — job из API.
type JobResponse struct {
	ID           string         `json:"id"`
	Config       map[string]any `json:"config"`
	Priority     int            `json:"priority"`
	Status       string         `json:"status"`
	Progress     int            `json:"progress"`
	AttemptsMade int            `json:"attempts_made"`
	FailedReason string         `json:"failed_reason,omitempty"`
	ScheduledAt  string         `json:"scheduled_at,omitempty"`
	CreatedAt    string         `json:"created_at"`
	ProcessedAt  string         `json:"processed_at,omitempty"`
	FinishedAt   string         `json:"finished_at,omitempty"`
}

// ConfigName достаёт имя сценария job.
func (j *JobResponse) ConfigName() string {
	if name, ok := j.Config["name"].(string); ok {
		return name
	}
	return ""
}

// ResultResponse — отчёт выполнения из API.
type ResultResponse struct {
	Success  bool           `json:"success"`
	Data     map[string]any `json:"data"`
	Metadata map[string]any `json:"metadata"`
	Errors   []any          `json:"errors,omitempty"`
}

// CampaignResponse — кампания из API.
type CampaignResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CronExpr  string `json:"cron_expr"`
	Priority  int    `json:"priority"`
	Enabled   bool   `json:"enabled"`
	LastRunAt string `json:"last_run_at,omitempty"`
	NextDueAt string `json:"next_due_at,omitempty"`
	CreatedAt string `json:"created_at"`
}

// ValidateResponse — результат проверки конфигурации.
type ValidateResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// --- Request types ---

// SubmitJobRequest — подача job.
type SubmitJobRequest struct {
	Config      json.RawMessage `json:"config"`
	InitialVars map[string]any  `json:"initial_vars,omitempty"`
	Priority    int             `json:"priority,omitempty"`
	ScheduledAt *time.Time      `json:"scheduled_at,omitempty"`
}

// CreateCampaignRequest — создание кампании.
type CreateCampaignRequest struct {
	Name     string          `json:"name"`
	CronExpr string          `json:"cron_expr"`
	Config   json.RawMessage `json:"config"`
	Priority int             `json:"priority,omitempty"`
}

// ListJobsOpts — параметры фильтрации jobs.
type ListJobsOpts struct {
	Status string
	Limit  int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP клиент для API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Jobs ---

// SubmitJob ставит job в очередь.
func (c *Client) SubmitJob(req SubmitJobRequest) (*JobResponse, error) {
	var job JobResponse
	err := c.post("/api/v1/jobs", req, &job)
	return &job, err
}

// ListJobs возвращает jobs с фильтрацией.
func (c *Client) ListJobs(opts ListJobsOpts) ([]JobResponse, error) {
	params := url.Values{}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var jobs []JobResponse
	err := c.list("/api/v1/jobs", params, &jobs)
	return jobs, err
}

// GetJob возвращает job по ID.
func (c *Client) GetJob(id string) (*JobResponse, error) {
	var job JobResponse
	err := c.get("/api/v1/jobs/"+id, &job)
	return &job, err
}

// GetJobResult возвращает отчёт выполнения job.
func (c *Client) GetJobResult(id string) (*ResultResponse, error) {
	var result ResultResponse
	err := c.get("/api/v1/jobs/"+id+"/result", &result)
	return &result, err
}

// CancelJob отменяет job.
func (c *Client) CancelJob(id string) error {
	return c.post("/api/v1/jobs/"+id+"/cancel", nil, nil)
}

// ValidateConfig проверяет конфигурацию без постановки job.
func (c *Client) ValidateConfig(config json.RawMessage) (*ValidateResponse, error) {
	var result ValidateResponse
	err := c.post("/api/v1/configs/validate", config, &result)
	return &result, err
}

// GetStats возвращает количество jobs по статусам.
func (c *Client) GetStats() (map[string]int, error) {
	var stats map[string]int
	err := c.get("/api/v1/stats", &stats)
	return stats, err
}

// --- Campaigns ---

// CreateCampaign создаёт кампанию.
func (c *Client) CreateCampaign(req CreateCampaignRequest) (*CampaignResponse, error) {
	var campaign CampaignResponse
	err := c.post("/api/v1/campaigns", req, &campaign)
	return &campaign, err
}

// ListCampaigns возвращает все кампании.
func (c *Client) ListCampaigns() ([]CampaignResponse, error) {
	var campaigns []CampaignResponse
	err := c.list("/api/v1/campaigns", nil, &campaigns)
	return campaigns, err
}

// GetCampaign возвращает кампанию по ID.
func (c *Client) GetCampaign(id string) (*CampaignResponse, error) {
	var campaign CampaignResponse
	err := c.get("/api/v1/campaigns/"+id, &campaign)
	return &campaign, err
}

// SetCampaignEnabled включает или выключает кампанию.
func (c *Client) SetCampaignEnabled(id string, enabled bool) error {
	body := map[string]bool{"enabled": enabled}
	return c.put("/api/v1/campaigns/"+id+"/enabled", body, nil)
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error.Message == "" {
		return fmt.Errorf("api error: status %d", resp.StatusCode)
	}
	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
