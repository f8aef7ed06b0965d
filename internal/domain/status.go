package domain

// JobStatus — статус выполнения job.
//
// Жизненный цикл:
//
//	WAITING → ACTIVE → COMPLETED
//	                 ↘ FAILED
//	DELAYED → WAITING (когда наступает scheduled_at)
type JobStatus string

const (
	// JobStatusWaiting — job в очереди, ожидает воркера.
	JobStatusWaiting JobStatus = "waiting"

	// JobStatusDelayed — job отложен до scheduled_at.
	JobStatusDelayed JobStatus = "delayed"

	// JobStatusActive — job выполняется воркером.
	JobStatusActive JobStatus = "active"

	// JobStatusCompleted — job успешно завершён, результат сохранён.
	JobStatusCompleted JobStatus = "completed"

	// JobStatusFailed — job завершился с ошибкой после всех повторов.
	JobStatusFailed JobStatus = "failed"
)

// IsTerminal возвращает true, если статус финальный.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// ParseJobStatus парсит строку в JobStatus.
// Неизвестное значение трактуется как waiting.
func ParseJobStatus(s string) JobStatus {
	switch s {
	case "delayed":
		return JobStatusDelayed
	case "active":
		return JobStatusActive
	case "completed":
		return JobStatusCompleted
	case "failed":
		return JobStatusFailed
	default:
		return JobStatusWaiting
	}
}
