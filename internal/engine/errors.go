package engine

import "errors"

// Ошибки разрешения шаблонов.
var (
	// ErrMissingVariable — переменная отсутствует и default не задан.
	ErrMissingVariable = errors.New("missing variable")

	// ErrUnknownFilter — неизвестный фильтр в выражении.
	ErrUnknownFilter = errors.New("unknown filter")
)

// Ошибки валидации сценария.
var (
	// ErrEmptySteps — сценарий не содержит шагов.
	ErrEmptySteps = errors.New("scrape config has no steps")

	// ErrEmptyStepName — шаг не имеет имени.
	ErrEmptyStepName = errors.New("step has empty name")

	// ErrUnknownStepType — неизвестный тип шага.
	ErrUnknownStepType = errors.New("unknown step type")

	// ErrEmptyStartURL — сценарий не имеет стартового URL.
	ErrEmptyStartURL = errors.New("scrape config has empty start url")
)

// Ошибки уровня run.
var (
	// ErrBadStartURL — стартовый URL не разбирается. Run завершается
	// до выполнения шагов.
	ErrBadStartURL = errors.New("malformed start url")

	// ErrAlreadyRan — Runner выполняет ровно один run, повторный
	// вызов Run недопустим.
	ErrAlreadyRan = errors.New("runner already ran")

	// ErrNoDocument — обращение к последнему документу до первого
	// запроса движка.
	ErrNoDocument = errors.New("no document loaded")
)

// MissingVariableError — отсутствующая обязательная переменная шаблона.
type MissingVariableError struct {
	// Expr — исходное выражение (без ${}).
	Expr string
}

// Error реализует интерфейс error.
func (e *MissingVariableError) Error() string {
	return "missing variable: " + e.Expr
}

// Unwrap возвращает базовую ошибку.
func (e *MissingVariableError) Unwrap() error {
	return ErrMissingVariable
}

// ValidationError — ошибка валидации сценария с контекстом.
type ValidationError struct {
	StepName string // имя шага, где произошла ошибка
	Field    string // поле, вызвавшее ошибку
	Message  string // описание ошибки
	Err      error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.StepName != "" {
		return "step " + e.StepName + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(stepName, field, message string, err error) *ValidationError {
	return &ValidationError{
		StepName: stepName,
		Field:    field,
		Message:  message,
		Err:      err,
	}
}
