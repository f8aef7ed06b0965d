package httpx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shaiso/scrapeflow/internal/domain"
)

// Значения по умолчанию для транспорта.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultRetries    = 3
	DefaultRetryDelay = 1 * time.Second

	maxBackoff = 30 * time.Second
	maxJitter  = time.Second

	defaultUserAgent = "scrapeflow/1.0"
)

// Request — один исходящий запрос.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
}

// Response — нормализованный ответ. Заголовки приведены к нижнему
// регистру, повторяющиеся склеены через запятую.
type Response struct {
	// Status — HTTP код ответа.
	Status int

	// Headers — заголовки с ключами в нижнем регистре.
	Headers map[string]string

	// Body — тело ответа.
	Body string

	// URL — финальный URL после редиректов.
	URL string

	// Start, End — границы успешной попытки.
	Start time.Time
	End   time.Time

	// DurationMs — длительность успешной попытки.
	DurationMs int64
}

// Client — HTTP клиент с автоматическими повторами.
//
// Повтор выполняется при временных статусах (408, 429, 500, 502, 503,
// 504) и ошибках соединения. Любой другой статус, включая 4xx и 3xx
// без Location, возвращается вызывающему как обычный ответ.
type Client struct {
	http    *http.Client
	opts    domain.HTTPOptions
	retries int
	delay   time.Duration
	logger  *slog.Logger
}

// NewClient собирает клиент из настроек сценария. Нулевые поля
// получают значения по умолчанию.
func NewClient(opts *domain.HTTPOptions, logger *slog.Logger) (*Client, error) {
	if opts == nil {
		opts = &domain.HTTPOptions{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	timeout := DefaultTimeout
	if opts.TimeoutSec > 0 {
		timeout = time.Duration(opts.TimeoutSec) * time.Second
	}

	retries := DefaultRetries
	if opts.Retries > 0 {
		retries = opts.Retries
	}

	delay := DefaultRetryDelay
	if opts.RetryDelayMs > 0 {
		delay = time.Duration(opts.RetryDelayMs) * time.Millisecond
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		if opts.ProxyUser != "" {
			proxyURL.User = url.UserPassword(opts.ProxyUser, opts.ProxyPass)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &Client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		opts:    *opts,
		retries: retries,
		delay:   delay,
		logger:  logger,
	}, nil
}

// Do выполняет запрос с повторами. Возвращает TransportError только
// после исчерпания бюджета повторов или при неповторимой ошибке
// соединения.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	target, err := c.resolveURL(req.URL)
	if err != nil {
		return nil, err
	}

	attempts := c.retries + 1
	var lastStatus int
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := c.backoff(attempt - 1)
			c.logger.Debug("retrying request",
				"url", target, "attempt", attempt+1, "backoff", backoff)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := c.attempt(ctx, req.Method, target, req.Headers, req.Body)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			lastStatus = 0
			if !isRetryable(err) {
				return nil, &TransportError{
					URL:      target,
					Code:     CodeNetwork,
					Attempts: attempt + 1,
					Err:      err,
				}
			}
			continue
		}

		if IsTransientStatus(resp.Status) {
			lastStatus = resp.Status
			lastErr = nil
			continue
		}

		return resp, nil
	}

	te := &TransportError{URL: target, Attempts: attempts, Err: lastErr}
	if lastStatus > 0 {
		te.Status = lastStatus
		te.Code = CodeHTTP
	} else {
		te.Code = classify(lastErr)
		if te.Code == "" {
			te.Code = CodeNetwork
		}
	}
	return nil, te
}

// attempt — одна попытка без повторов.
func (c *Client) attempt(ctx context.Context, method, target string, headers map[string]string, body string) (*Response, error) {
	if method == "" {
		method = http.MethodGet
	}

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	httpReq.Header.Set("User-Agent", defaultUserAgent)
	for k, v := range c.opts.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now().UTC()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	respHeaders := make(map[string]string, len(httpResp.Header))
	for name, values := range httpResp.Header {
		respHeaders[strings.ToLower(name)] = strings.Join(values, ", ")
	}

	finalURL := target
	if httpResp.Request != nil && httpResp.Request.URL != nil {
		finalURL = httpResp.Request.URL.String()
	}

	end := time.Now().UTC()
	return &Response{
		Status:     httpResp.StatusCode,
		Headers:    respHeaders,
		Body:       string(raw),
		URL:        finalURL,
		Start:      start,
		End:        end,
		DurationMs: end.Sub(start).Milliseconds(),
	}, nil
}

// resolveURL разрешает относительный URL против BaseURL.
func (c *Client) resolveURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	if u.IsAbs() {
		return raw, nil
	}
	if c.opts.BaseURL == "" {
		return "", fmt.Errorf("relative url %q without base url", raw)
	}
	base, err := url.Parse(c.opts.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	return base.ResolveReference(u).String(), nil
}

// backoff вычисляет задержку перед повтором n (с нуля):
// delay * 2^n + случайный джиттер до секунды, не более 30 секунд.
func (c *Client) backoff(n int) time.Duration {
	d := c.delay << uint(n)
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	d += time.Duration(rand.Int63n(int64(maxJitter)))
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
