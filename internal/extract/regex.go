package extract

import (
	"fmt"
	"regexp"

	"github.com/shaiso/scrapeflow/internal/domain"
)

// applyRegex применяет регулярное выражение к телу документа.
// При наличии групп захвата берётся первая группа, иначе всё
// совпадение.
func applyRegex(body string, rule *domain.ExtractionRule) (any, bool, error) {
	re, err := regexp.Compile(rule.Selector)
	if err != nil {
		return nil, false, fmt.Errorf("compile pattern: %w", err)
	}

	if !rule.Multiple {
		m := re.FindStringSubmatch(body)
		if m == nil {
			return nil, false, nil
		}
		return pickGroup(m), true, nil
	}

	matches := re.FindAllStringSubmatch(body, -1)
	if matches == nil {
		return nil, false, nil
	}
	values := make([]any, 0, len(matches))
	for _, m := range matches {
		values = append(values, pickGroup(m))
	}
	return values, true, nil
}

func pickGroup(match []string) string {
	if len(match) > 1 {
		return match[1]
	}
	return match[0]
}
