// Package extract реализует стратегии извлечения значений из
// загруженных документов: разметка по CSS селекторам, регулярные
// выражения, точечные JSON пути и видимый текст.
//
// Батч правил атомарен: сбой обязательного правила прерывает весь
// батч, частичный результат не возвращается.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/shaiso/scrapeflow/internal/domain"
)

// Apply применяет батч правил к документу и возвращает именованные
// значения.
//
// Правило без совпадений: с default — значение default; обязательное
// без default — RequiredFieldError; Multiple даёт пустой массив,
// иначе имя получает null.
func Apply(body string, rules []domain.ExtractionRule) (map[string]any, error) {
	var doc *goquery.Document
	values := make(map[string]any, len(rules))

	for i := range rules {
		rule := &rules[i]

		var value any
		var found bool
		var err error

		switch rule.Type {
		case domain.ExtractMarkup, domain.ExtractPlainText:
			if doc == nil {
				doc, err = goquery.NewDocumentFromReader(strings.NewReader(body))
				if err != nil {
					return nil, &RuleError{Rule: rule.Name, Err: err}
				}
			}
			if rule.Type == domain.ExtractMarkup {
				value, found = applyMarkup(doc, rule)
			} else {
				value, found = applyPlainText(doc, rule)
			}

		case domain.ExtractRegex:
			value, found, err = applyRegex(body, rule)

		case domain.ExtractJSONPath:
			value, found, err = applyJSONPath(body, rule)

		default:
			return nil, &RuleError{Rule: rule.Name, Err: ErrUnknownStrategy}
		}

		if err != nil {
			return nil, &RuleError{Rule: rule.Name, Err: err}
		}

		if !found {
			switch {
			case rule.Default != nil:
				values[rule.Name] = rule.Default
			case rule.Required:
				return nil, &RequiredFieldError{Rule: rule.Name, Selector: rule.Selector}
			case rule.Multiple:
				values[rule.Name] = []any{}
			default:
				values[rule.Name] = nil
			}
			continue
		}

		value, err = Transform(value, rule.Transform)
		if err != nil {
			return nil, &RuleError{Rule: rule.Name, Err: err}
		}
		values[rule.Name] = value
	}

	return values, nil
}
