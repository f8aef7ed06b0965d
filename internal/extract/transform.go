package extract

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
)

var (
	numberRe = regexp.MustCompile(`-?\d+(?:[.,]\d+)*(?:\.\d+)?`)
	emailRe  = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	urlRe    = regexp.MustCompile(`https?://[^\s"'<>]+`)
)

// Transform применяет конвейер преобразований слева направо.
// Для массива каждое преобразование применяется поэлементно.
func Transform(value any, names []string) (any, error) {
	var err error
	for _, name := range names {
		value, err = transformOne(value, name)
		if err != nil {
			return nil, err
		}
	}
	return value, nil
}

func transformOne(value any, name string) (any, error) {
	if arr, ok := value.([]any); ok {
		result := make([]any, len(arr))
		for i, v := range arr {
			t, err := transformOne(v, name)
			if err != nil {
				return nil, err
			}
			result[i] = t
		}
		return result, nil
	}

	s := toString(value)

	switch name {
	case "trim":
		return strings.TrimSpace(s), nil

	case "lowercase":
		return strings.ToLower(s), nil

	case "uppercase":
		return strings.ToUpper(s), nil

	case "normalize_whitespace":
		return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " ")), nil

	case "decode_entities":
		return html.UnescapeString(s), nil

	case "parse_int":
		// Строка без числа даёт 0
		cleaned := cleanNumber(s)
		if n, err := strconv.ParseInt(cleaned, 10, 64); err == nil {
			return n, nil
		}
		if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
			return int64(f), nil
		}
		return int64(0), nil

	case "parse_float":
		f, err := strconv.ParseFloat(cleanNumber(s), 64)
		if err != nil {
			return 0.0, nil
		}
		return f, nil

	case "extract_number":
		m := numberRe.FindString(s)
		if m == "" {
			return "", nil
		}
		return strings.ReplaceAll(m, ",", ""), nil

	case "extract_email":
		return emailRe.FindString(s), nil

	case "extract_url":
		return urlRe.FindString(s), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransform, name)
	}
}

func toString(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

// cleanNumber убирает валютные символы, пробелы и разделители
// тысяч из строки вида "$1,299.00".
func cleanNumber(s string) string {
	m := numberRe.FindString(s)
	if m == "" {
		return strings.TrimSpace(s)
	}
	// "1.299,00" и "1,299.00": последний разделитель — десятичная точка
	m = strings.ReplaceAll(m, ",", "")
	return m
}
