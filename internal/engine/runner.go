package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/scrapeflow/internal/domain"
	"github.com/shaiso/scrapeflow/internal/extract"
	"github.com/shaiso/scrapeflow/internal/httpx"
)

// DefaultMaxPages — предел страниц пагинации, если шаг его не задаёт.
const DefaultMaxPages = 100

// Литералы, считающиеся ложью в условиях.
var falsyLiterals = map[string]bool{
	"":          true,
	"false":     true,
	"0":         true,
	"null":      true,
	"undefined": true,
}

// IsTruthy сообщает истинность разрешённого значения условия.
func IsTruthy(value string) bool {
	return !falsyLiterals[value]
}

// Fetcher выполняет HTTP запросы движка.
type Fetcher interface {
	Do(ctx context.Context, req httpx.Request) (*httpx.Response, error)
}

// Callbacks — необязательные хуки наблюдения за выполнением.
type Callbacks struct {
	// OnStepStart вызывается перед каждым шагом, включая вложенные.
	OnStepStart func(name string, stepType domain.StepType)

	// OnStepComplete вызывается после успешного шага.
	OnStepComplete func(name string)

	// OnProgress вызывается перед каждым шагом любого уровня
	// вложенности: номер шага (с единицы), размер текущего списка
	// и имя шага.
	OnProgress func(current, total int, step string)

	// OnError вызывается при ошибке шага, в том числе погашенной
	// через ContinueOnError.
	OnError func(stepErr domain.StepError)
}

// Runner — интерпретатор дерева шагов одного сценария.
//
// Runner одноразовый: повторный Run возвращает ErrAlreadyRan.
// Контекст переменных неизменяем, каждый шаг порождает новый.
type Runner struct {
	cfg       *domain.ScrapeConfig
	client    Fetcher
	logger    *slog.Logger
	callbacks Callbacks

	ran bool

	vars     *Context
	lastResp *httpx.Response

	data         map[string]any
	stepErrors   []domain.StepError
	requestCount int
	pagesVisited []string
}

// engineStepName помечает ошибки самого движка (стартовый URL,
// прерванный run), не привязанные к конкретному шагу сценария.
const engineStepName = "engine"

// NewRunner валидирует конфигурацию и собирает интерпретатор.
func NewRunner(cfg *domain.ScrapeConfig, client Fetcher, logger *slog.Logger, callbacks Callbacks) (*Runner, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:       cfg,
		client:    client,
		logger:    logger,
		callbacks: callbacks,
		data:      make(map[string]any),
	}, nil
}

// Run выполняет сценарий и возвращает итоговый отчёт.
//
// Ошибка шага без ContinueOnError прерывает run, включая родительские
// paginate/loop/condition фреймы. Success истинен только при пустом
// списке ошибок: погашенная через ContinueOnError ошибка не прерывает
// run, но итог всё равно неуспешен. Ошибка как значение возвращается
// только при нарушении протокола вызова (повторный Run).
func (r *Runner) Run(ctx context.Context, initialVars map[string]any) (*domain.Result, error) {
	if r.ran {
		return nil, ErrAlreadyRan
	}
	r.ran = true

	started := time.Now().UTC()
	r.vars = NewContext().WithSharedAll(initialVars)

	runErr := r.start(ctx)
	if runErr != nil {
		// Терминальная запись о прерванном run поверх ошибки
		// самого шага.
		r.recordError(engineStepName, fmt.Errorf("run aborted: %w", runErr))
	}

	finished := time.Now().UTC()
	result := &domain.Result{
		Success: runErr == nil && len(r.stepErrors) == 0,
		Data:    r.data,
		Errors:  r.stepErrors,
		Metadata: domain.ResultMetadata{
			StartedAt:    started,
			FinishedAt:   finished,
			DurationMs:   finished.Sub(started).Milliseconds(),
			RequestCount: r.requestCount,
			ErrorCount:   len(r.stepErrors),
			PagesVisited: r.pagesVisited,
		},
	}

	if runErr != nil {
		r.logger.Warn("scrape run failed",
			"config", r.cfg.Name, "error", runErr, "requests", r.requestCount)
	} else {
		r.logger.Info("scrape run completed",
			"config", r.cfg.Name, "requests", r.requestCount,
			"items", result.ItemCount(), "duration_ms", result.Metadata.DurationMs)
	}

	return result, nil
}

func (r *Runner) start(ctx context.Context) error {
	startURL, err := ResolveTemplateStrict(r.cfg.StartURL, r.vars)
	if err != nil {
		return err
	}
	r.vars = r.vars.WithURL(startURL)

	return r.executeSteps(ctx, r.cfg.Steps)
}

// stepFailure помечает уже записанную ошибку шага, чтобы
// родительские фреймы не записывали её повторно.
type stepFailure struct {
	err error
}

func (f *stepFailure) Error() string { return f.err.Error() }
func (f *stepFailure) Unwrap() error { return f.err }

// executeSteps выполняет список шагов по порядку. OnProgress
// отчитывается локально к каждому списку, включая вложенные.
func (r *Runner) executeSteps(ctx context.Context, steps []domain.Step) error {
	total := len(steps)
	for i := range steps {
		step := &steps[i]

		if err := ctx.Err(); err != nil {
			return err
		}

		if r.callbacks.OnStepStart != nil {
			r.callbacks.OnStepStart(step.Name, step.Type)
		}
		if r.callbacks.OnProgress != nil {
			r.callbacks.OnProgress(i+1, total, step.Name)
		}
		r.logger.Debug("executing step", "step", step.Name, "type", step.Type)

		if err := r.executeStep(ctx, step); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			var inner *stepFailure
			if !errors.As(err, &inner) {
				r.recordError(step.Name, err)
			}
			if !step.ContinueOnError {
				return &stepFailure{err: fmt.Errorf("step %q: %w", step.Name, err)}
			}
			r.logger.Warn("step failed, continuing", "step", step.Name, "error", err)
		} else if r.callbacks.OnStepComplete != nil {
			r.callbacks.OnStepComplete(step.Name)
		}
	}
	return nil
}

func (r *Runner) executeStep(ctx context.Context, step *domain.Step) error {
	switch step.Type {
	case domain.StepRequest:
		return r.executeRequest(ctx, step)
	case domain.StepExtract:
		return r.executeExtract(step)
	case domain.StepPaginate:
		return r.executePaginate(ctx, step)
	case domain.StepLoop:
		return r.executeLoop(ctx, step)
	case domain.StepCondition:
		return r.executeCondition(ctx, step)
	case domain.StepSave:
		return r.executeSave(step)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStepType, step.Type)
	}
}

// executeRequest выполняет HTTP запрос и делает ответ текущим
// документом движка.
func (r *Runner) executeRequest(ctx context.Context, step *domain.Step) error {
	if err := r.throttle(ctx); err != nil {
		return err
	}

	target, err := ResolveTemplateStrict(step.URL, r.vars)
	if err != nil {
		return err
	}
	target = r.vars.absolutize(target)

	headers, err := resolveHeaders(step.Headers, r.vars)
	if err != nil {
		return err
	}

	body, err := ResolveTemplate(step.Body, r.vars)
	if err != nil {
		return err
	}

	resp, err := r.fetch(ctx, httpx.Request{
		Method:  step.Method,
		URL:     target,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		return err
	}

	if step.SaveAs != "" {
		r.vars = r.vars.WithShared(step.SaveAs, resp.Body)
	}
	return nil
}

// fetch — общий путь всех запросов движка: счётчик, список
// посещённых URL, текущий URL, последний ответ.
func (r *Runner) fetch(ctx context.Context, req httpx.Request) (*httpx.Response, error) {
	resp, err := r.client.Do(ctx, req)
	r.requestCount++
	if err != nil {
		return nil, err
	}
	r.lastResp = resp
	r.pagesVisited = append(r.pagesVisited, resp.URL)
	r.vars = r.vars.WithURL(resp.URL)
	return resp, nil
}

// executeExtract применяет правила к текущему документу (или
// сохранённой переменной) и сливает результат в extracted и в
// итоговые данные.
func (r *Runner) executeExtract(step *domain.Step) error {
	body, err := r.sourceBody(step.Source)
	if err != nil {
		return err
	}

	values, err := extract.Apply(body, step.Rules)
	if err != nil {
		return err
	}

	r.vars = r.vars.MergeExtracted(values)
	r.mergeData(values)
	return nil
}

// mergeData накапливает извлечённые значения в итоговом отчёте.
// Повторное извлечение того же имени (пагинация) конкатенирует
// массивы вместо перезаписи.
func (r *Runner) mergeData(values map[string]any) {
	for name, value := range values {
		prev, exists := r.data[name]
		if !exists {
			r.data[name] = value
			continue
		}
		prevArr, prevOk := prev.([]any)
		valArr, valOk := value.([]any)
		if prevOk && valOk {
			r.data[name] = append(prevArr, valArr...)
		} else {
			r.data[name] = value
		}
	}
}

func (r *Runner) sourceBody(source string) (string, error) {
	if source == "" {
		if r.lastResp == nil {
			return "", fmt.Errorf("extract without prior request and without source")
		}
		return r.lastResp.Body, nil
	}
	value, ok := ResolvePath(anyMap(r.vars.Shared), source)
	if !ok {
		value, ok = ResolvePath(anyMap(r.vars.Extracted), source)
	}
	if !ok || value == nil {
		return "", fmt.Errorf("source variable %q not found", source)
	}
	return stringify(value), nil
}

// executePaginate выполняет вложенные шаги для каждой страницы.
//
// После шагов страницы в текущем документе ищется ссылка по
// NextSelector; найденная страница загружается, и цикл повторяется
// до MaxPages. Пустой NextSelector означает ровно одну итерацию.
func (r *Runner) executePaginate(ctx context.Context, step *domain.Step) error {
	maxPages := step.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	for page := 1; page <= maxPages; page++ {
		r.vars = r.vars.WithPagination(Pagination{
			Page:    page,
			Offset:  (page - 1) * r.vars.Pagination.Limit,
			Limit:   r.vars.Pagination.Limit,
			HasNext: true,
		})

		if err := r.executeSteps(ctx, step.Steps); err != nil {
			return err
		}

		if step.NextSelector == "" || page == maxPages {
			break
		}
		if r.lastResp == nil {
			return fmt.Errorf("paginate %q: no document to search for next page", step.Name)
		}

		next, err := extract.NextURL(r.lastResp.Body, step.NextSelector, r.vars.URL.Full)
		if err != nil {
			return err
		}
		if next == "" {
			break
		}

		if step.DelayMs > 0 {
			if err := sleep(ctx, time.Duration(step.DelayMs)*time.Millisecond); err != nil {
				return err
			}
		}
		if err := r.throttle(ctx); err != nil {
			return err
		}
		if _, err := r.fetch(ctx, httpx.Request{URL: next}); err != nil {
			return err
		}
	}

	p := r.vars.Pagination
	p.HasNext = false
	r.vars = r.vars.WithPagination(p)
	return nil
}

// executeLoop выполняет вложенные шаги для каждого элемента
// источника. Скалярный источник считается массивом из одного
// элемента.
func (r *Runner) executeLoop(ctx context.Context, step *domain.Step) error {
	source, ok := ResolvePath(anyMap(r.vars.Extracted), step.Source)
	if !ok {
		source, ok = ResolvePath(anyMap(r.vars.Shared), step.Source)
	}
	if !ok || source == nil {
		return fmt.Errorf("loop source %q not found", step.Source)
	}

	items, ok := source.([]any)
	if !ok {
		items = []any{source}
	}

	itemVar := step.ItemVar
	if itemVar == "" {
		itemVar = "item"
	}
	indexVar := step.IndexVar
	if indexVar == "" {
		indexVar = "index"
	}

	for i, item := range items {
		r.vars = r.vars.WithShared(itemVar, item).WithShared(indexVar, i)
		if err := r.executeSteps(ctx, step.Steps); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) executeCondition(ctx context.Context, step *domain.Step) error {
	resolved, err := ResolveTemplate(step.If, r.vars)
	if err != nil {
		return err
	}

	if IsTruthy(resolved) {
		return r.executeSteps(ctx, step.Then)
	}
	return r.executeSteps(ctx, step.Else)
}

func (r *Runner) executeSave(step *domain.Step) error {
	value, err := ResolveTemplate(step.Value, r.vars)
	if err != nil {
		return err
	}
	r.vars = r.vars.WithShared(step.SaveAs, value)
	return nil
}

// throttle выдерживает паузу между последовательными запросами.
func (r *Runner) throttle(ctx context.Context) error {
	if r.requestCount == 0 || r.cfg.RequestDelayMs <= 0 {
		return nil
	}
	return sleep(ctx, time.Duration(r.cfg.RequestDelayMs)*time.Millisecond)
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Context возвращает финальный контекст переменных (nil до Run).
func (r *Runner) Context() *Context {
	return r.vars
}

// LastResponse возвращает последний успешный ответ движка
// (nil, если запросов не было).
func (r *Runner) LastResponse() *httpx.Response {
	return r.lastResp
}

// Extracted возвращает снимок извлечённых переменных.
func (r *Runner) Extracted() map[string]any {
	if r.vars == nil {
		return nil
	}
	snapshot := make(map[string]any, len(r.vars.Extracted))
	for k, v := range r.vars.Extracted {
		snapshot[k] = v
	}
	return snapshot
}

// LastMetadata извлекает метаданные последнего загруженного
// документа. Возвращает ErrNoDocument, если запросов не было.
func (r *Runner) LastMetadata() (*extract.PageMetadata, error) {
	if r.lastResp == nil {
		return nil, ErrNoDocument
	}
	return extract.Metadata(r.lastResp.Body)
}

// LastLinks собирает ссылки последнего загруженного документа.
// Возвращает ErrNoDocument, если запросов не было.
func (r *Runner) LastLinks() ([]extract.Link, error) {
	if r.lastResp == nil {
		return nil, ErrNoDocument
	}
	return extract.Links(r.lastResp.Body, r.lastResp.URL)
}

func (r *Runner) recordError(stepName string, err error) {
	se := domain.StepError{
		StepName:  stepName,
		Message:   err.Error(),
		URL:       r.vars.URL.Full,
		Timestamp: time.Now().UTC(),
	}
	r.stepErrors = append(r.stepErrors, se)
	if r.callbacks.OnError != nil {
		r.callbacks.OnError(se)
	}
}

func resolveHeaders(headers map[string]string, ctx *Context) (map[string]string, error) {
	if len(headers) == 0 {
		return nil, nil
	}
	resolved, err := ResolveObject(headers, ctx)
	if err != nil {
		return nil, err
	}
	return resolved.(map[string]string), nil
}
