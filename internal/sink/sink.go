// Package sink доставляет результаты завершённых jobs во внешние
// назначения: CSV файлы, Slack уведомления, таблицы Postgres.
//
// Sinks регистрируются в Registry по имени; воркер после успешного
// выполнения job отдаёт результат каждому настроенному sink.
// Ошибка sink не проваливает job — она логируется и считается
// доставкой "с потерей".
package sink

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shaiso/scrapeflow/internal/domain"
)

// Sink — одно назначение доставки результатов.
type Sink interface {
	// Name — уникальное имя sink.
	Name() string

	// Write доставляет результат завершённого job.
	Write(ctx context.Context, job *domain.Job, result *domain.Result) error
}

// Registry — реестр sinks по имени.
type Registry struct {
	mu    sync.RWMutex
	sinks map[string]Sink
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{sinks: make(map[string]Sink)}
}

// Register добавляет sink. Повторная регистрация имени — ошибка.
func (r *Registry) Register(s Sink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sinks[s.Name()]; exists {
		return fmt.Errorf("sink %q already registered", s.Name())
	}
	r.sinks[s.Name()] = s
	return nil
}

// Get возвращает sink по имени.
func (r *Registry) Get(name string) (Sink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sinks[name]
	return s, ok
}

// Names возвращает имена зарегистрированных sinks в алфавитном
// порядке.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sinks))
	for name := range r.sinks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All возвращает все зарегистрированные sinks в порядке имён.
func (r *Registry) All() []Sink {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()

	sinks := make([]Sink, 0, len(names))
	for _, name := range names {
		sinks = append(sinks, r.sinks[name])
	}
	return sinks
}
