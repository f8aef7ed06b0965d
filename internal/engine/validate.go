package engine

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/shaiso/scrapeflow/internal/domain"
)

// ValidateConfig проверяет структурную корректность конфигурации
// перед исполнением. Возвращает первую найденную ошибку.
func ValidateConfig(cfg *domain.ScrapeConfig) error {
	if strings.TrimSpace(cfg.StartURL) == "" {
		return ErrEmptyStartURL
	}
	if !strings.Contains(cfg.StartURL, "${") {
		u, err := url.Parse(cfg.StartURL)
		if err != nil || !u.IsAbs() {
			return fmt.Errorf("%w: %s", ErrBadStartURL, cfg.StartURL)
		}
	}

	if len(cfg.Steps) == 0 {
		return ErrEmptySteps
	}

	return validateSteps(cfg.Steps)
}

func validateSteps(steps []domain.Step) error {
	for i := range steps {
		if err := validateStep(&steps[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateStep проверяет один шаг: имя, тип и обязательные поля типа.
// Вложенные шаги проверяются рекурсивно.
func validateStep(step *domain.Step) error {
	if strings.TrimSpace(step.Name) == "" {
		return ErrEmptyStepName
	}

	switch step.Type {
	case domain.StepRequest:
		if strings.TrimSpace(step.URL) == "" {
			return NewValidationError(step.Name, "url", "request step requires url", nil)
		}

	case domain.StepExtract:
		if len(step.Rules) == 0 {
			return NewValidationError(step.Name, "rules", "extract step requires at least one rule", nil)
		}
		for i := range step.Rules {
			if err := validateRule(step.Name, &step.Rules[i]); err != nil {
				return err
			}
		}

	case domain.StepPaginate:
		if len(step.Steps) == 0 {
			return NewValidationError(step.Name, "steps", "paginate step requires nested steps", nil)
		}
		if step.MaxPages < 0 {
			return NewValidationError(step.Name, "maxPages", "maxPages must not be negative", nil)
		}
		if err := validateSteps(step.Steps); err != nil {
			return err
		}

	case domain.StepLoop:
		if strings.TrimSpace(step.Source) == "" {
			return NewValidationError(step.Name, "source", "loop step requires source", nil)
		}
		if len(step.Steps) == 0 {
			return NewValidationError(step.Name, "steps", "loop step requires nested steps", nil)
		}
		if err := validateSteps(step.Steps); err != nil {
			return err
		}

	case domain.StepCondition:
		if strings.TrimSpace(step.If) == "" {
			return NewValidationError(step.Name, "if", "condition step requires if expression", nil)
		}
		if len(step.Then) == 0 && len(step.Else) == 0 {
			return NewValidationError(step.Name, "then", "condition step requires then or else branch", nil)
		}
		if err := validateSteps(step.Then); err != nil {
			return err
		}
		if err := validateSteps(step.Else); err != nil {
			return err
		}

	case domain.StepSave:
		if strings.TrimSpace(step.SaveAs) == "" {
			return NewValidationError(step.Name, "saveAs", "save step requires saveAs", nil)
		}

	default:
		return fmt.Errorf("%w: %q in step %q", ErrUnknownStepType, step.Type, step.Name)
	}

	return nil
}

func validateRule(stepName string, rule *domain.ExtractionRule) error {
	if strings.TrimSpace(rule.Name) == "" {
		return NewValidationError(stepName, "rules", "extraction rule requires name", nil)
	}

	switch rule.Type {
	case domain.ExtractMarkup, domain.ExtractRegex, domain.ExtractJSONPath, domain.ExtractPlainText:
	case "":
		return NewValidationError(stepName, "rules", fmt.Sprintf("rule %q requires type", rule.Name), nil)
	default:
		return NewValidationError(stepName, "rules", fmt.Sprintf("rule %q has unknown type %q", rule.Name, rule.Type), nil)
	}

	if rule.Type != domain.ExtractPlainText && strings.TrimSpace(rule.Selector) == "" {
		return NewValidationError(stepName, "rules", fmt.Sprintf("rule %q requires selector", rule.Name), nil)
	}

	return nil
}
