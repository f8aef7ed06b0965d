package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/shaiso/scrapeflow/internal/domain"
	"github.com/shaiso/scrapeflow/internal/httpx"
)

// SlackSink отправляет сводку завершённого job в Slack webhook.
// Доставка идёт через общий HTTP клиент и наследует его повторы.
type SlackSink struct {
	webhookURL string
	client     *httpx.Client
}

// NewSlackSink создаёт Slack sink.
func NewSlackSink(webhookURL string, logger *slog.Logger) (*SlackSink, error) {
	client, err := httpx.NewClient(&domain.HTTPOptions{
		TimeoutSec: 10,
		Retries:    2,
	}, logger)
	if err != nil {
		return nil, err
	}
	return &SlackSink{webhookURL: webhookURL, client: client}, nil
}

func (s *SlackSink) Name() string { return "slack" }

// Write отправляет короткое текстовое уведомление с итогами job.
func (s *SlackSink) Write(ctx context.Context, job *domain.Job, result *domain.Result) error {
	text := fmt.Sprintf("Scrape job `%s` (%s) finished: %d items, %d requests, %d errors, %dms",
		job.ID, job.Config.Name,
		result.ItemCount(),
		result.Metadata.RequestCount,
		result.Metadata.ErrorCount,
		result.Metadata.DurationMs,
	)

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	resp, err := s.client.Do(ctx, httpx.Request{
		Method:  "POST",
		URL:     s.webhookURL,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    string(payload),
	})
	if err != nil {
		return fmt.Errorf("post to slack: %w", err)
	}
	if resp.Status >= 300 {
		return fmt.Errorf("slack webhook returned status %d", resp.Status)
	}
	return nil
}
