package domain

import "time"

// StepError — ошибка одного шага, зафиксированная в ходе run.
//
// Оборачивает любую ошибку тела шага (шаблон, извлечение, транспорт)
// и привязывает её к имени шага и текущему URL.
type StepError struct {
	// StepName — имя шага, в котором произошла ошибка.
	StepName string `json:"step_name"`

	// Message — текст ошибки.
	Message string `json:"message"`

	// URL — текущий URL контекста на момент ошибки.
	URL string `json:"url,omitempty"`

	// Timestamp — время возникновения.
	Timestamp time.Time `json:"timestamp"`
}

// Error реализует интерфейс error.
func (e *StepError) Error() string {
	return "step " + e.StepName + ": " + e.Message
}

// ResultMetadata — метаданные одного run.
type ResultMetadata struct {
	// StartedAt, FinishedAt — границы выполнения.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// DurationMs — продолжительность в миллисекундах.
	DurationMs int64 `json:"duration_ms"`

	// RequestCount — количество выполненных HTTP запросов.
	RequestCount int `json:"request_count"`

	// ErrorCount — количество ошибок шагов.
	ErrorCount int `json:"error_count"`

	// PagesVisited — посещённые URL в порядке запросов.
	PagesVisited []string `json:"pages_visited"`
}

// Result — итог одного выполнения сценария.
//
// Создаётся один раз на run и неизменен. Упавший run всё равно несёт
// частично извлечённые данные: вызывающий отличает "нет данных" от
// "часть данных, часть шагов упала" по Errors.
type Result struct {
	// Success — true, если список ошибок пуст.
	Success bool `json:"success"`

	// Data — финальный снимок extracted (имя → скаляр, массив или null).
	Data map[string]any `json:"data"`

	// Metadata — метаданные выполнения.
	Metadata ResultMetadata `json:"metadata"`

	// Errors — упорядоченный список ошибок шагов.
	Errors []StepError `json:"errors"`
}

// ItemCount возвращает количество извлечённых значений
// (элементы массивов считаются по отдельности).
func (r *Result) ItemCount() int {
	count := 0
	for _, v := range r.Data {
		if arr, ok := v.([]any); ok {
			count += len(arr)
			continue
		}
		count++
	}
	return count
}
