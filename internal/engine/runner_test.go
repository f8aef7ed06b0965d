package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/shaiso/scrapeflow/internal/domain"
	"github.com/shaiso/scrapeflow/internal/httpx"
)

// stubFetcher отдаёт заранее заданные страницы по URL.
type stubFetcher struct {
	pages map[string]string
	calls []string
	err   error
}

func (f *stubFetcher) Do(_ context.Context, req httpx.Request) (*httpx.Response, error) {
	f.calls = append(f.calls, req.URL)
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.pages[req.URL]
	if !ok {
		return nil, fmt.Errorf("no page for %s", req.URL)
	}
	return &httpx.Response{
		Status:  200,
		Headers: map[string]string{"content-type": "text/html"},
		Body:    body,
		URL:     req.URL,
	}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestIsTruthy(t *testing.T) {
	tests := []struct {
		value  string
		truthy bool
	}{
		{"", false},
		{"false", false},
		{"0", false},
		{"null", false},
		{"undefined", false},
		{"true", true},
		{"1", true},
		{"anything", true},
		{"False", true}, // регистр значим
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.value), func(t *testing.T) {
			if got := IsTruthy(tt.value); got != tt.truthy {
				t.Errorf("IsTruthy(%q) = %v, want %v", tt.value, got, tt.truthy)
			}
		})
	}
}

func TestRunner_RequestExtractSave(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]string{
		"https://example.com/items": `<html><body>
			<h1>Catalog</h1>
			<div class="item">Alpha</div>
			<div class="item">Beta</div>
		</body></html>`,
	}}

	cfg := &domain.ScrapeConfig{
		Name:     "catalog",
		StartURL: "https://example.com",
		Steps: []domain.Step{
			{Name: "fetch", Type: domain.StepRequest, URL: "/items"},
			{Name: "pull", Type: domain.StepExtract, Rules: []domain.ExtractionRule{
				{Name: "heading", Type: domain.ExtractMarkup, Selector: "h1"},
				{Name: "items", Type: domain.ExtractMarkup, Selector: ".item", Multiple: true},
			}},
			{Name: "stash", Type: domain.StepSave, SaveAs: "first", Value: "${items|first}"},
		},
	}

	r, err := NewRunner(cfg, fetcher, discardLogger(), Callbacks{})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	result, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !result.Success {
		t.Fatalf("expected success, errors: %v", result.Errors)
	}
	if result.Data["heading"] != "Catalog" {
		t.Errorf("expected heading Catalog, got %v", result.Data["heading"])
	}
	items, ok := result.Data["items"].([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("expected 2 items, got %v", result.Data["items"])
	}
	if items[0] != "Alpha" || items[1] != "Beta" {
		t.Errorf("unexpected items: %v", items)
	}
	if result.Metadata.RequestCount != 1 {
		t.Errorf("expected 1 request, got %d", result.Metadata.RequestCount)
	}
	visited := result.Metadata.PagesVisited
	if len(visited) != 1 || visited[0] != "https://example.com/items" {
		t.Errorf("unexpected pages visited: %v", visited)
	}

	// относительный URL разрешился против start url
	if fetcher.calls[0] != "https://example.com/items" {
		t.Errorf("unexpected request url: %s", fetcher.calls[0])
	}
}

func TestRunner_InitialVars(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]string{
		"https://example.com/u/42": `<html><body><span id="n">ok</span></body></html>`,
	}}

	cfg := &domain.ScrapeConfig{
		Name:     "vars",
		StartURL: "https://example.com",
		Steps: []domain.Step{
			{Name: "fetch", Type: domain.StepRequest, URL: "/u/${shared.user_id}"},
		},
	}

	r, err := NewRunner(cfg, fetcher, discardLogger(), Callbacks{})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	result, err := r.Run(context.Background(), map[string]any{"user_id": "42"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, errors: %v", result.Errors)
	}
}

func TestRunner_Condition(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]string{}}

	cfg := &domain.ScrapeConfig{
		Name:     "cond",
		StartURL: "https://example.com",
		Steps: []domain.Step{
			{Name: "set", Type: domain.StepSave, SaveAs: "flag", Value: "false"},
			{Name: "branch", Type: domain.StepCondition, If: "${shared.flag}",
				Then: []domain.Step{
					{Name: "then-save", Type: domain.StepSave, SaveAs: "path", Value: "then"},
				},
				Else: []domain.Step{
					{Name: "else-save", Type: domain.StepSave, SaveAs: "path", Value: "else"},
				},
			},
			{Name: "missing-branch", Type: domain.StepCondition, If: "${shared.nope}",
				Then: []domain.Step{
					{Name: "never", Type: domain.StepSave, SaveAs: "never", Value: "yes"},
				},
			},
		},
	}

	r, err := NewRunner(cfg, fetcher, discardLogger(), Callbacks{})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	result, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, errors: %v", result.Errors)
	}

	// "false" ложно — выполнилась else ветка
	if r.vars.Shared["path"] != "else" {
		t.Errorf("expected else branch, got %v", r.vars.Shared["path"])
	}
	// отсутствующая переменная ложна, then не выполнялся
	if _, ok := r.vars.Shared["never"]; ok {
		t.Error("then branch should not run for missing variable")
	}
}

func TestRunner_Loop(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]string{
		"https://example.com/list": `<html><body>
			<a class="lnk" href="/a">A</a>
			<a class="lnk" href="/b">B</a>
		</body></html>`,
		"https://example.com/a": `<html><body><h2>Page A</h2></body></html>`,
		"https://example.com/b": `<html><body><h2>Page B</h2></body></html>`,
	}}

	cfg := &domain.ScrapeConfig{
		Name:     "loop",
		StartURL: "https://example.com",
		Steps: []domain.Step{
			{Name: "fetch", Type: domain.StepRequest, URL: "/list"},
			{Name: "pull-links", Type: domain.StepExtract, Rules: []domain.ExtractionRule{
				{Name: "links", Type: domain.ExtractMarkup, Selector: "a.lnk", Attribute: "href", Multiple: true},
			}},
			{Name: "visit", Type: domain.StepLoop, Source: "links", Steps: []domain.Step{
				{Name: "fetch-item", Type: domain.StepRequest, URL: "${shared.item}"},
				{Name: "pull-title", Type: domain.StepExtract, Rules: []domain.ExtractionRule{
					{Name: "titles", Type: domain.ExtractMarkup, Selector: "h2", Multiple: true},
				}},
			}},
		},
	}

	r, err := NewRunner(cfg, fetcher, discardLogger(), Callbacks{})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	result, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, errors: %v", result.Errors)
	}

	// повторные извлечения той же переменной конкатенируются
	titles, ok := result.Data["titles"].([]any)
	if !ok || len(titles) != 2 {
		t.Fatalf("expected 2 titles, got %v", result.Data["titles"])
	}
	if titles[0] != "Page A" || titles[1] != "Page B" {
		t.Errorf("unexpected titles: %v", titles)
	}
	if result.Metadata.RequestCount != 3 {
		t.Errorf("expected 3 requests, got %d", result.Metadata.RequestCount)
	}
}

func TestRunner_Paginate(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]string{
		"https://example.com/p1": `<html><body>
			<div class="row">one</div>
			<a class="next" href="/p2">next</a>
		</body></html>`,
		"https://example.com/p2": `<html><body>
			<div class="row">two</div>
		</body></html>`,
	}}

	cfg := &domain.ScrapeConfig{
		Name:     "paged",
		StartURL: "https://example.com",
		Steps: []domain.Step{
			{Name: "fetch", Type: domain.StepRequest, URL: "/p1"},
			{Name: "pages", Type: domain.StepPaginate, NextSelector: "a.next", MaxPages: 10, Steps: []domain.Step{
				{Name: "pull-rows", Type: domain.StepExtract, Rules: []domain.ExtractionRule{
					{Name: "rows", Type: domain.ExtractMarkup, Selector: ".row", Multiple: true},
				}},
			}},
		},
	}

	r, err := NewRunner(cfg, fetcher, discardLogger(), Callbacks{})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	result, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, errors: %v", result.Errors)
	}

	rows, ok := result.Data["rows"].([]any)
	if !ok || len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %v", result.Data["rows"])
	}
	visited := result.Metadata.PagesVisited
	if len(visited) != 2 || visited[0] != "https://example.com/p1" || visited[1] != "https://example.com/p2" {
		t.Errorf("unexpected pages visited: %v", visited)
	}
	if result.Metadata.RequestCount != 2 {
		t.Errorf("expected 2 requests, got %d", result.Metadata.RequestCount)
	}
	if r.vars.Pagination.HasNext {
		t.Error("hasNext should be false after pagination ends")
	}
}

func TestRunner_PaginateMaxPages(t *testing.T) {
	// каждая страница ссылается на себя, ограничение прерывает цикл
	fetcher := &stubFetcher{pages: map[string]string{
		"https://example.com/loop": `<html><body>
			<div class="row">x</div>
			<a class="next" href="/loop">next</a>
		</body></html>`,
	}}

	cfg := &domain.ScrapeConfig{
		Name:     "selfloop",
		StartURL: "https://example.com",
		Steps: []domain.Step{
			{Name: "fetch", Type: domain.StepRequest, URL: "/loop"},
			{Name: "pages", Type: domain.StepPaginate, NextSelector: "a.next", MaxPages: 3, Steps: []domain.Step{
				{Name: "pull", Type: domain.StepExtract, Rules: []domain.ExtractionRule{
					{Name: "rows", Type: domain.ExtractMarkup, Selector: ".row", Multiple: true},
				}},
			}},
		},
	}

	r, err := NewRunner(cfg, fetcher, discardLogger(), Callbacks{})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	result, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Metadata.PagesVisited) != 3 {
		t.Errorf("expected 3 pages visited, got %v", result.Metadata.PagesVisited)
	}
	// страница за пределом не загружается
	if len(fetcher.calls) != 3 {
		t.Errorf("expected 3 fetches, got %d: %v", len(fetcher.calls), fetcher.calls)
	}
}

func TestRunner_ContinueOnError(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]string{}}

	cfg := &domain.ScrapeConfig{
		Name:     "contained",
		StartURL: "https://example.com",
		Steps: []domain.Step{
			{Name: "bad-fetch", Type: domain.StepRequest, URL: "/missing", ContinueOnError: true},
			{Name: "after", Type: domain.StepSave, SaveAs: "reached", Value: "yes"},
		},
	}

	r, err := NewRunner(cfg, fetcher, discardLogger(), Callbacks{})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	result, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// погашенная ошибка не прерывает run, но итог неуспешен
	if result.Success {
		t.Error("run with recorded errors should not be successful")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 recorded error, got %d", len(result.Errors))
	}
	if result.Errors[0].StepName != "bad-fetch" {
		t.Errorf("unexpected step name: %s", result.Errors[0].StepName)
	}
	if r.vars.Shared["reached"] != "yes" {
		t.Error("subsequent step should have run")
	}
}

func TestRunner_FailureStopsRun(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]string{}}

	cfg := &domain.ScrapeConfig{
		Name:     "failing",
		StartURL: "https://example.com",
		Steps: []domain.Step{
			{Name: "bad-fetch", Type: domain.StepRequest, URL: "/missing"},
			{Name: "after", Type: domain.StepSave, SaveAs: "reached", Value: "yes"},
		},
	}

	r, err := NewRunner(cfg, fetcher, discardLogger(), Callbacks{})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	result, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Success {
		t.Error("run should fail")
	}
	// ошибка шага плюс терминальная запись о прерванном run
	if len(result.Errors) != 2 {
		t.Fatalf("expected 2 recorded errors, got %d: %v", len(result.Errors), result.Errors)
	}
	if result.Errors[0].StepName != "bad-fetch" {
		t.Errorf("unexpected step name: %s", result.Errors[0].StepName)
	}
	if result.Errors[1].StepName != "engine" {
		t.Errorf("expected terminal engine error, got %s", result.Errors[1].StepName)
	}
	if _, ok := r.vars.Shared["reached"]; ok {
		t.Error("steps after the failure should not run")
	}
}

func TestRunner_NestedFailureRecordedOnce(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]string{
		"https://example.com/list": `<html><body><a class="lnk" href="/gone">x</a></body></html>`,
	}}

	cfg := &domain.ScrapeConfig{
		Name:     "nested",
		StartURL: "https://example.com",
		Steps: []domain.Step{
			{Name: "fetch", Type: domain.StepRequest, URL: "/list"},
			{Name: "pull", Type: domain.StepExtract, Rules: []domain.ExtractionRule{
				{Name: "links", Type: domain.ExtractMarkup, Selector: "a.lnk", Attribute: "href", Multiple: true},
			}},
			{Name: "visit", Type: domain.StepLoop, Source: "links", Steps: []domain.Step{
				{Name: "fetch-item", Type: domain.StepRequest, URL: "${shared.item}"},
			}},
		},
	}

	r, err := NewRunner(cfg, fetcher, discardLogger(), Callbacks{})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	result, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Success {
		t.Error("run should fail")
	}
	// ошибка вложенного шага записывается один раз, не на каждом
	// фрейме; вторая запись — терминальная от движка
	if len(result.Errors) != 2 {
		t.Fatalf("expected 2 recorded errors, got %d: %v", len(result.Errors), result.Errors)
	}
	if result.Errors[0].StepName != "fetch-item" {
		t.Errorf("error should name the failing step, got %s", result.Errors[0].StepName)
	}
	if result.Errors[1].StepName != "engine" {
		t.Errorf("expected terminal engine error, got %s", result.Errors[1].StepName)
	}
}

func TestRunner_RunOnce(t *testing.T) {
	cfg := &domain.ScrapeConfig{
		Name:     "once",
		StartURL: "https://example.com",
		Steps: []domain.Step{
			{Name: "set", Type: domain.StepSave, SaveAs: "x", Value: "1"},
		},
	}

	r, err := NewRunner(cfg, &stubFetcher{}, discardLogger(), Callbacks{})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	if _, err := r.Run(context.Background(), nil); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if _, err := r.Run(context.Background(), nil); !errors.Is(err, ErrAlreadyRan) {
		t.Errorf("expected ErrAlreadyRan, got %v", err)
	}
}

type progressEvent struct {
	current int
	total   int
	step    string
}

func TestRunner_Progress(t *testing.T) {
	cfg := &domain.ScrapeConfig{
		Name:     "progress",
		StartURL: "https://example.com",
		Steps: []domain.Step{
			{Name: "a", Type: domain.StepSave, SaveAs: "a", Value: "1"},
			{Name: "b", Type: domain.StepSave, SaveAs: "b", Value: "2"},
			{Name: "c", Type: domain.StepSave, SaveAs: "c", Value: "3"},
			{Name: "d", Type: domain.StepSave, SaveAs: "d", Value: "4"},
		},
	}

	var events []progressEvent
	r, err := NewRunner(cfg, &stubFetcher{}, discardLogger(), Callbacks{
		OnProgress: func(current, total int, step string) {
			events = append(events, progressEvent{current, total, step})
		},
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	if _, err := r.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	expected := []progressEvent{
		{1, 4, "a"}, {2, 4, "b"}, {3, 4, "c"}, {4, 4, "d"},
	}
	if len(events) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, events)
	}
	for i := range expected {
		if events[i] != expected[i] {
			t.Fatalf("expected %v, got %v", expected, events)
		}
	}
}

func TestRunner_ProgressNested(t *testing.T) {
	cfg := &domain.ScrapeConfig{
		Name:     "nested-progress",
		StartURL: "https://example.com",
		Steps: []domain.Step{
			{Name: "branch", Type: domain.StepCondition, If: "1", Then: []domain.Step{
				{Name: "x", Type: domain.StepSave, SaveAs: "x", Value: "1"},
				{Name: "y", Type: domain.StepSave, SaveAs: "y", Value: "2"},
			}},
			{Name: "tail", Type: domain.StepSave, SaveAs: "tail", Value: "3"},
		},
	}

	var events []progressEvent
	r, err := NewRunner(cfg, &stubFetcher{}, discardLogger(), Callbacks{
		OnProgress: func(current, total int, step string) {
			events = append(events, progressEvent{current, total, step})
		},
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	if _, err := r.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// вложенный список отчитывается локально к своей длине
	expected := []progressEvent{
		{1, 2, "branch"}, {1, 2, "x"}, {2, 2, "y"}, {2, 2, "tail"},
	}
	if len(events) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, events)
	}
	for i := range expected {
		if events[i] != expected[i] {
			t.Fatalf("expected %v, got %v", expected, events)
		}
	}
}

func TestRunner_CancelledContext(t *testing.T) {
	cfg := &domain.ScrapeConfig{
		Name:     "cancelled",
		StartURL: "https://example.com",
		Steps: []domain.Step{
			{Name: "set", Type: domain.StepSave, SaveAs: "x", Value: "1"},
		},
	}

	r, err := NewRunner(cfg, &stubFetcher{}, discardLogger(), Callbacks{})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := r.Run(ctx, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Success {
		t.Error("cancelled run should not be successful")
	}
	if len(result.Errors) != 1 || result.Errors[0].StepName != "engine" {
		t.Errorf("expected a single engine error, got %v", result.Errors)
	}
}

func TestRunner_BadStartURL(t *testing.T) {
	cfg := &domain.ScrapeConfig{
		Name:     "bad-start",
		StartURL: "https://example.com/${shared.missing}",
		Steps: []domain.Step{
			{Name: "set", Type: domain.StepSave, SaveAs: "x", Value: "1"},
		},
	}

	r, err := NewRunner(cfg, &stubFetcher{}, discardLogger(), Callbacks{})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	result, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Success {
		t.Error("run should fail")
	}
	// сбой до первого шага записывается от имени движка
	if len(result.Errors) != 1 || result.Errors[0].StepName != "engine" {
		t.Fatalf("expected a single engine error, got %v", result.Errors)
	}
}

func TestRunner_Accessors(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]string{
		"https://example.com/page": `<html lang="en"><head>
			<title>Widgets</title>
		</head><body>
			<h1 class="t">Widgets</h1>
			<a href="/one">One</a>
			<a href="/one">One again</a>
			<a href="/two">Two</a>
		</body></html>`,
	}}

	cfg := &domain.ScrapeConfig{
		Name:     "accessors",
		StartURL: "https://example.com",
		Steps: []domain.Step{
			{Name: "fetch", Type: domain.StepRequest, URL: "/page"},
			{Name: "pull", Type: domain.StepExtract, Rules: []domain.ExtractionRule{
				{Name: "heading", Type: domain.ExtractMarkup, Selector: "h1.t"},
			}},
		},
	}

	r, err := NewRunner(cfg, fetcher, discardLogger(), Callbacks{})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	// до Run документа нет
	if _, err := r.LastMetadata(); !errors.Is(err, ErrNoDocument) {
		t.Errorf("expected ErrNoDocument, got %v", err)
	}
	if _, err := r.LastLinks(); !errors.Is(err, ErrNoDocument) {
		t.Errorf("expected ErrNoDocument, got %v", err)
	}

	if _, err := r.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if r.Context() == nil || r.Context().URL.Full != "https://example.com/page" {
		t.Errorf("unexpected final context: %+v", r.Context())
	}
	if resp := r.LastResponse(); resp == nil || resp.URL != "https://example.com/page" {
		t.Errorf("unexpected last response: %+v", resp)
	}
	if got := r.Extracted()["heading"]; got != "Widgets" {
		t.Errorf("expected extracted heading, got %v", got)
	}

	meta, err := r.LastMetadata()
	if err != nil {
		t.Fatalf("LastMetadata: %v", err)
	}
	if meta.Title != "Widgets" || meta.Language != "en" {
		t.Errorf("unexpected metadata: %+v", meta)
	}

	links, err := r.LastLinks()
	if err != nil {
		t.Fatalf("LastLinks: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %v", links)
	}
	if links[0].URL != "https://example.com/one" || links[1].URL != "https://example.com/two" {
		t.Errorf("unexpected links: %v", links)
	}
}
