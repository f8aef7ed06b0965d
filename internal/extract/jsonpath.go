package extract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shaiso/scrapeflow/internal/domain"
)

// applyJSONPath парсит тело как JSON и обходит его по точечному
// пути вида items[2].price. Пустой селектор означает весь документ.
//
// Multiple для массива разворачивает элементы; для скаляра — массив
// из одного значения.
func applyJSONPath(body string, rule *domain.ExtractionRule) (any, bool, error) {
	var root any
	if err := json.Unmarshal([]byte(body), &root); err != nil {
		return nil, false, fmt.Errorf("parse json document: %w", err)
	}

	value := root
	if rule.Selector != "" {
		var ok bool
		value, ok = walkJSON(root, rule.Selector)
		if !ok {
			return nil, false, nil
		}
	}
	if value == nil {
		return nil, false, nil
	}

	if rule.Multiple {
		if arr, ok := value.([]any); ok {
			return arr, true, nil
		}
		return []any{value}, true, nil
	}
	return value, true, nil
}

// walkJSON обходит распарсенный JSON по пути с индексами key[1].
func walkJSON(root any, path string) (any, bool) {
	current := root

	for _, segment := range strings.Split(path, ".") {
		key := segment
		var indexes []int

		for {
			open := strings.IndexByte(key, '[')
			if open < 0 {
				break
			}
			close := strings.IndexByte(key[open:], ']')
			if close < 0 {
				return nil, false
			}
			idx, err := strconv.Atoi(key[open+1 : open+close])
			if err != nil {
				return nil, false
			}
			indexes = append(indexes, idx)
			key = key[:open] + key[open+close+1:]
		}

		if key != "" {
			m, ok := current.(map[string]any)
			if !ok {
				return nil, false
			}
			current, ok = m[key]
			if !ok {
				return nil, false
			}
		}

		for _, idx := range indexes {
			arr, ok := current.([]any)
			if !ok || idx < 0 || idx >= len(arr) {
				return nil, false
			}
			current = arr[idx]
		}
	}

	return current, true
}
