package engine

import (
	"net/url"
	"os"
	"strings"
	"time"
)

// Pagination — фасет курсора пагинации.
type Pagination struct {
	// Page — номер текущей страницы (с единицы).
	Page int `json:"page"`

	// Offset — смещение от начала выборки.
	Offset int `json:"offset"`

	// Limit — размер страницы.
	Limit int `json:"limit"`

	// HasNext — найдена ли ссылка на следующую страницу.
	HasNext bool `json:"has_next"`
}

// URLParts — фасет текущего URL, разобранный на части.
type URLParts struct {
	Full     string `json:"full"`
	Protocol string `json:"protocol"`
	Host     string `json:"host"`
	Path     string `json:"path"`
	Query    string `json:"query"`
	Fragment string `json:"fragment"`
}

// Timestamp — фасет времени начала run.
type Timestamp struct {
	Epoch int64  `json:"epoch"`
	ISO   string `json:"iso"`
	Date  string `json:"date"`
	Time  string `json:"time"`
}

// Context — снимок именованных значений, доступных при разрешении шаблонов.
//
// Контекст неизменяем: каждый update-хелпер возвращает новое значение,
// вход никогда не мутируется. Контекст принадлежит ровно одному run
// и не разделяется между job.
type Context struct {
	// Env — переменные окружения.
	Env map[string]string

	// Extracted — извлечённые результаты (имя → скаляр, массив или null).
	Extracted map[string]any

	// Shared — рабочие переменные (save, loop биндинги, сырые тела ответов).
	Shared map[string]any

	// Pagination — курсор пагинации.
	Pagination Pagination

	// URL — текущий URL.
	URL URLParts

	// Timestamp — время начала run.
	Timestamp Timestamp
}

// NewContext создаёт контекст с окружением процесса и текущим временем.
func NewContext() *Context {
	now := time.Now().UTC()

	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}

	return &Context{
		Env:       env,
		Extracted: make(map[string]any),
		Shared:    make(map[string]any),
		Pagination: Pagination{
			Page: 1,
		},
		Timestamp: Timestamp{
			Epoch: now.Unix(),
			ISO:   now.Format(time.RFC3339),
			Date:  now.Format("2006-01-02"),
			Time:  now.Format("15:04:05"),
		},
	}
}

// clone возвращает копию контекста с копиями всех map-фасетов.
// Скалярные фасеты копируются по значению.
func (c *Context) clone() *Context {
	next := &Context{
		Env:        c.Env, // окружение не меняется после создания
		Extracted:  make(map[string]any, len(c.Extracted)),
		Shared:     make(map[string]any, len(c.Shared)),
		Pagination: c.Pagination,
		URL:        c.URL,
		Timestamp:  c.Timestamp,
	}
	for k, v := range c.Extracted {
		next.Extracted[k] = v
	}
	for k, v := range c.Shared {
		next.Shared[k] = v
	}
	return next
}

// WithURL возвращает контекст с обновлённым URL фасетом.
// Некорректный URL сохраняется только в Full.
func (c *Context) WithURL(raw string) *Context {
	next := c.clone()
	next.URL = ParseURLParts(raw)
	return next
}

// WithPagination возвращает контекст с обновлённым курсором пагинации.
func (c *Context) WithPagination(p Pagination) *Context {
	next := c.clone()
	next.Pagination = p
	return next
}

// MergeExtracted возвращает контекст с добавленными результатами
// извлечения (shallow merge, новые значения перекрывают старые).
func (c *Context) MergeExtracted(values map[string]any) *Context {
	next := c.clone()
	for k, v := range values {
		next.Extracted[k] = v
	}
	return next
}

// WithShared возвращает контекст с одной установленной shared переменной.
func (c *Context) WithShared(key string, value any) *Context {
	next := c.clone()
	next.Shared[key] = value
	return next
}

// WithSharedAll возвращает контекст с набором shared переменных
// (используется для начальных переопределений job).
func (c *Context) WithSharedAll(values map[string]any) *Context {
	next := c.clone()
	for k, v := range values {
		next.Shared[k] = v
	}
	return next
}

// ParseURLParts разбирает URL на фасеты.
func ParseURLParts(raw string) URLParts {
	parts := URLParts{Full: raw}

	u, err := url.Parse(raw)
	if err != nil {
		return parts
	}

	parts.Protocol = u.Scheme
	parts.Host = u.Host
	parts.Path = u.Path
	parts.Query = u.RawQuery
	parts.Fragment = u.Fragment
	return parts
}
