package extract

import (
	"errors"
	"fmt"
)

// Ошибки извлечения.
var (
	// ErrRequiredField — обязательное правило не дало значения.
	ErrRequiredField = errors.New("required field missing")

	// ErrUnknownTransform — неизвестное имя преобразования.
	ErrUnknownTransform = errors.New("unknown transform")

	// ErrUnknownStrategy — неизвестная стратегия извлечения.
	ErrUnknownStrategy = errors.New("unknown extraction strategy")
)

// RequiredFieldError — обязательное правило не нашло совпадений
// и не имеет default. Прерывает весь батч правил.
type RequiredFieldError struct {
	// Rule — имя правила.
	Rule string

	// Selector — селектор, не давший совпадений.
	Selector string
}

func (e *RequiredFieldError) Error() string {
	return fmt.Sprintf("required field %q not found (selector %q)", e.Rule, e.Selector)
}

func (e *RequiredFieldError) Unwrap() error {
	return ErrRequiredField
}

// RuleError — ошибка применения одного правила (кривая регулярка,
// невалидный JSON документ, сбой преобразования).
type RuleError struct {
	Rule string
	Err  error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %q: %v", e.Rule, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}
