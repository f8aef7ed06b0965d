package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaiso/scrapeflow/internal/domain"
)

func fastClient(t *testing.T, opts *domain.HTTPOptions) *Client {
	t.Helper()
	if opts == nil {
		opts = &domain.HTTPOptions{}
	}
	if opts.RetryDelayMs == 0 {
		opts.RetryDelayMs = 1
	}
	c, err := NewClient(opts, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestClient_Do(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("X-Custom", "yes")
		w.Header().Add("Set-Cookie", "a=1")
		w.Header().Add("Set-Cookie", "b=2")
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	c := fastClient(t, nil)
	resp, err := c.Do(context.Background(), Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	if resp.Status != 200 {
		t.Errorf("status: got %d", resp.Status)
	}
	if resp.Body != "hello" {
		t.Errorf("body: got %q", resp.Body)
	}
	if resp.URL != srv.URL {
		t.Errorf("url: got %q", resp.URL)
	}
	// заголовки в нижнем регистре, повторы склеены
	if resp.Headers["x-custom"] != "yes" {
		t.Errorf("headers: got %v", resp.Headers)
	}
	if resp.Headers["set-cookie"] != "a=1, b=2" {
		t.Errorf("repeated headers should be joined, got %q", resp.Headers["set-cookie"])
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
	// границы попытки согласованы с длительностью
	if resp.Start.IsZero() || resp.End.IsZero() {
		t.Error("start/end should be set")
	}
	if resp.End.Before(resp.Start) {
		t.Errorf("end %v before start %v", resp.End, resp.Start)
	}
	if resp.DurationMs != resp.End.Sub(resp.Start).Milliseconds() {
		t.Errorf("duration %d does not match bounds", resp.DurationMs)
	}
}

func TestClient_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	c := fastClient(t, &domain.HTTPOptions{Retries: 3})
	resp, err := c.Do(context.Background(), Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	if resp.Body != "recovered" {
		t.Errorf("body: got %q", resp.Body)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestClient_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("nope"))
	}))
	defer srv.Close()

	c := fastClient(t, &domain.HTTPOptions{Retries: 3})
	resp, err := c.Do(context.Background(), Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	// 404 — не временная ошибка: отдаётся вызывающему без повторов
	if resp.Status != 404 {
		t.Errorf("status: got %d", resp.Status)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestClient_ExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := fastClient(t, &domain.HTTPOptions{Retries: 2})
	_, err := c.Do(context.Background(), Request{URL: srv.URL})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if te.Status != http.StatusBadGateway {
		t.Errorf("status: got %d", te.Status)
	}
	if te.Code != CodeHTTP {
		t.Errorf("code: got %s", te.Code)
	}
	if te.Attempts != 3 {
		t.Errorf("attempts: got %d", te.Attempts)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestClient_RequestHeaders(t *testing.T) {
	var gotUA, gotShared, gotPerRequest string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotShared = r.Header.Get("X-Shared")
		gotPerRequest = r.Header.Get("X-Request")
	}))
	defer srv.Close()

	c := fastClient(t, &domain.HTTPOptions{
		Headers: map[string]string{"X-Shared": "opts", "X-Request": "opts"},
	})
	_, err := c.Do(context.Background(), Request{
		URL:     srv.URL,
		Headers: map[string]string{"X-Request": "override"},
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	if gotUA != defaultUserAgent {
		t.Errorf("user-agent: got %q", gotUA)
	}
	if gotShared != "opts" {
		t.Errorf("shared header: got %q", gotShared)
	}
	// заголовок запроса перекрывает заголовок настроек
	if gotPerRequest != "override" {
		t.Errorf("per-request header: got %q", gotPerRequest)
	}
}

func TestClient_BaseURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.URL.Path))
	}))
	defer srv.Close()

	c := fastClient(t, &domain.HTTPOptions{BaseURL: srv.URL})
	resp, err := c.Do(context.Background(), Request{URL: "/relative/path"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.Body != "/relative/path" {
		t.Errorf("body: got %q", resp.Body)
	}

	// относительный URL без BaseURL — ошибка
	noBase := fastClient(t, nil)
	if _, err := noBase.Do(context.Background(), Request{URL: "/relative"}); err == nil {
		t.Error("relative url without base url should fail")
	}
}

func TestClient_ContextCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := fastClient(t, &domain.HTTPOptions{Retries: 5})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Do(ctx, Request{URL: srv.URL})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestBackoff(t *testing.T) {
	c := fastClient(t, &domain.HTTPOptions{RetryDelayMs: 1000})

	for n := 0; n < 4; n++ {
		d := c.backoff(n)
		base := time.Second << uint(n)
		if d < base {
			t.Errorf("backoff(%d) = %v, below base %v", n, d, base)
		}
		if d > base+maxJitter {
			t.Errorf("backoff(%d) = %v, above base+jitter", n, d)
		}
	}

	// далёкие попытки упираются в предел
	if d := c.backoff(20); d != maxBackoff {
		t.Errorf("backoff(20) = %v, want %v", d, maxBackoff)
	}
}

func TestIsTransientStatus(t *testing.T) {
	transient := []int{408, 429, 500, 502, 503, 504}
	for _, s := range transient {
		if !IsTransientStatus(s) {
			t.Errorf("%d should be transient", s)
		}
	}
	for _, s := range []int{200, 201, 301, 400, 401, 403, 404, 410} {
		if IsTransientStatus(s) {
			t.Errorf("%d should not be transient", s)
		}
	}
}
