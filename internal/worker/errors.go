package worker

import "errors"

// Ошибки обработки jobs.
var (
	// ErrJobNotFound — job отсутствует в БД.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotWaiting — job уже взят другим воркером или завершён.
	ErrJobNotWaiting = errors.New("job is not waiting")
)
