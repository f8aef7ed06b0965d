package engine

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// exprPattern — одно выражение ${...}, нежадно, без вложенности.
var exprPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Пространства имён контекста.
var namespaces = map[string]bool{
	"env":        true,
	"extracted":  true,
	"shared":     true,
	"pagination": true,
	"url":        true,
	"timestamp":  true,
}

// ResolveOptions — опции разрешения выражения.
type ResolveOptions struct {
	// ThrowOnMissing — возвращать ошибку вместо пустой строки,
	// если значение отсутствует и default не задан.
	ThrowOnMissing bool
}

// ResolvePath обходит вложенную структуру по точечному пути
// с поддержкой индексации key[2]. Возвращает (nil, false) на любом
// отсутствующем сегменте.
func ResolvePath(root any, path string) (any, bool) {
	current := root

	for _, segment := range strings.Split(path, ".") {
		key, indexes, err := splitIndexes(segment)
		if err != nil {
			return nil, false
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

// splitIndexes разбирает сегмент пути "key[1][2]" на ключ и индексы.
func splitIndexes(segment string) (string, []int, error) {
	open := strings.IndexByte(segment, '[')
	if open < 0 {
		return segment, nil, nil
	}

	key := segment[:open]
	rest := segment[open:]

	var indexes []int
	for rest != "" {
		if rest[0] != '[' {
			return "", nil, fmt.Errorf("bad path segment: %s", segment)
		}
		close := strings.IndexByte(rest, ']')
		if close < 0 {
			return "", nil, fmt.Errorf("bad path segment: %s", segment)
		}
		idx, err := strconv.Atoi(rest[1:close])
		if err != nil {
			return "", nil, fmt.Errorf("bad index in segment %s: %w", segment, err)
		}
		indexes = append(indexes, idx)
		rest = rest[close+1:]
	}

	return key, indexes, nil
}

// ResolveVariable разрешает одно выражение вида
//
//	namespace.path[|filter]*[|default:value]
//
// Пространства имён: env, extracted, shared, pagination, url, timestamp.
// Путь без пространства имён ищется сначала в extracted, затем в shared.
//
// Отсутствующее значение: с default — значение default; без default
// и ThrowOnMissing=false — пустая строка; иначе MissingVariableError.
func ResolveVariable(expr string, ctx *Context, opts ResolveOptions) (string, error) {
	path, filters, defaultVal, hasDefault := parseExpr(expr)

	value, found := lookup(ctx, path)

	if !found || value == nil {
		if hasDefault {
			return applyFilters(defaultVal, filters)
		}
		if opts.ThrowOnMissing {
			return "", &MissingVariableError{Expr: expr}
		}
		return "", nil
	}

	return applyFilters(stringify(value), filters)
}

// parseExpr разбирает выражение на путь, фильтры и default.
func parseExpr(expr string) (path string, filters []string, defaultVal string, hasDefault bool) {
	parts := strings.Split(expr, "|")
	path = strings.TrimSpace(parts[0])

	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if rest, ok := strings.CutPrefix(part, "default:"); ok {
			defaultVal = rest
			hasDefault = true
			continue
		}
		filters = append(filters, part)
	}
	return path, filters, defaultVal, hasDefault
}

// lookup ищет значение по пути с учётом пространств имён.
func lookup(ctx *Context, path string) (any, bool) {
	head, rest, hasRest := strings.Cut(path, ".")

	if namespaces[head] {
		root := namespaceRoot(ctx, head)
		if !hasRest {
			return root, true
		}
		return ResolvePath(root, rest)
	}

	// Без пространства имён: сначала extracted, затем shared.
	if v, ok := ResolvePath(anyMap(ctx.Extracted), path); ok {
		return v, true
	}
	return ResolvePath(anyMap(ctx.Shared), path)
}

// namespaceRoot возвращает корень пространства имён как map[string]any.
func namespaceRoot(ctx *Context, ns string) any {
	switch ns {
	case "env":
		root := make(map[string]any, len(ctx.Env))
		for k, v := range ctx.Env {
			root[k] = v
		}
		return root
	case "extracted":
		return anyMap(ctx.Extracted)
	case "shared":
		return anyMap(ctx.Shared)
	case "pagination":
		return map[string]any{
			"page":    ctx.Pagination.Page,
			"offset":  ctx.Pagination.Offset,
			"limit":   ctx.Pagination.Limit,
			"hasNext": ctx.Pagination.HasNext,
		}
	case "url":
		return map[string]any{
			"full":     ctx.URL.Full,
			"protocol": ctx.URL.Protocol,
			"host":     ctx.URL.Host,
			"path":     ctx.URL.Path,
			"query":    ctx.URL.Query,
			"fragment": ctx.URL.Fragment,
		}
	case "timestamp":
		return map[string]any{
			"epoch": ctx.Timestamp.Epoch,
			"iso":   ctx.Timestamp.ISO,
			"date":  ctx.Timestamp.Date,
			"time":  ctx.Timestamp.Time,
		}
	}
	return nil
}

func anyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// stringify приводит значение к строке. Массивы и объекты
// сериализуются в JSON.
func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		// Целые float без дробной части
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

// applyFilters применяет фильтры слева направо после стрингификации.
func applyFilters(value string, filters []string) (string, error) {
	var err error
	for _, filter := range filters {
		value, err = applyFilter(value, filter)
		if err != nil {
			return "", err
		}
	}
	return value, nil
}

// applyFilter применяет один фильтр. Фильтр может нести аргумент
// после двоеточия (join:-).
func applyFilter(value, filter string) (string, error) {
	name, arg, _ := strings.Cut(filter, ":")

	switch name {
	case "trim":
		return strings.TrimSpace(value), nil

	case "lowercase":
		return strings.ToLower(value), nil

	case "uppercase":
		return strings.ToUpper(value), nil

	case "urlencode":
		return url.QueryEscape(value), nil

	case "urldecode":
		decoded, err := url.QueryUnescape(value)
		if err != nil {
			return value, nil // некорректный percent-encoding оставляем как есть
		}
		return decoded, nil

	case "base64encode":
		return base64.StdEncoding.EncodeToString([]byte(value)), nil

	case "base64decode":
		decoded, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return value, nil
		}
		return string(decoded), nil

	case "json":
		// Round-trip: нормализует JSON, не-JSON значение квотируется.
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			parsed = value
		}
		b, err := json.Marshal(parsed)
		if err != nil {
			return "", fmt.Errorf("json filter: %w", err)
		}
		return string(b), nil

	case "first":
		arr, ok := parseJSONArray(value)
		if !ok || len(arr) == 0 {
			return "", nil
		}
		return stringify(arr[0]), nil

	case "last":
		arr, ok := parseJSONArray(value)
		if !ok || len(arr) == 0 {
			return "", nil
		}
		return stringify(arr[len(arr)-1]), nil

	case "join":
		arr, ok := parseJSONArray(value)
		if !ok {
			return value, nil
		}
		sep := arg
		if sep == "" {
			sep = ","
		}
		items := make([]string, len(arr))
		for i, v := range arr {
			items[i] = stringify(v)
		}
		return strings.Join(items, sep), nil

	case "length":
		if arr, ok := parseJSONArray(value); ok {
			return strconv.Itoa(len(arr)), nil
		}
		return strconv.Itoa(len([]rune(value))), nil

	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFilter, name)
	}
}

// parseJSONArray пытается распарсить строку как JSON массив.
func parseJSONArray(value string) ([]any, bool) {
	var arr []any
	if err := json.Unmarshal([]byte(value), &arr); err != nil {
		return nil, false
	}
	return arr, true
}

// ResolveTemplate заменяет каждое вхождение ${...} в шаблоне.
// Отсутствующие значения без default заменяются пустой строкой.
func ResolveTemplate(template string, ctx *Context) (string, error) {
	return resolveTemplate(template, ctx, ResolveOptions{})
}

// ResolveTemplateStrict — как ResolveTemplate, но отсутствующее
// значение без default — ошибка.
func ResolveTemplateStrict(template string, ctx *Context) (string, error) {
	return resolveTemplate(template, ctx, ResolveOptions{ThrowOnMissing: true})
}

func resolveTemplate(template string, ctx *Context, opts ResolveOptions) (string, error) {
	if !strings.Contains(template, "${") {
		return template, nil
	}

	var firstErr error
	result := exprPattern.ReplaceAllStringFunc(template, func(match string) string {
		expr := match[2 : len(match)-1]
		resolved, err := ResolveVariable(expr, ctx, opts)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return resolved
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// ResolveURL разрешает шаблон в абсолютный URL.
//
// Если результат не абсолютный, он разрешается относительно текущего
// URL контекста. При невозможности разрешения возвращается
// разрешённая строка без изменений.
func ResolveURL(template string, ctx *Context) (string, error) {
	resolved, err := ResolveTemplate(template, ctx)
	if err != nil {
		return "", err
	}
	return ctx.absolutize(resolved), nil
}

// absolutize разрешает относительный URL против текущего URL
// контекста. При невозможности разрешения адрес возвращается
// без изменений.
func (c *Context) absolutize(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() {
		return raw
	}
	base, err := url.Parse(c.URL.Full)
	if err != nil || !base.IsAbs() {
		return raw
	}
	return base.ResolveReference(u).String()
}

// ResolveObject глубоко разрешает строковые листья вложенных
// map и slice, сохраняя форму структуры. Вход не мутируется.
func ResolveObject(value any, ctx *Context) (any, error) {
	switch v := value.(type) {
	case string:
		return ResolveTemplate(v, ctx)

	case map[string]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			resolved, err := ResolveObject(val, ctx)
			if err != nil {
				return nil, err
			}
			result[key] = resolved
		}
		return result, nil

	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			resolved, err := ResolveObject(val, ctx)
			if err != nil {
				return nil, err
			}
			result[i] = resolved
		}
		return result, nil

	case map[string]string:
		result := make(map[string]string, len(v))
		for key, val := range v {
			resolved, err := ResolveTemplate(val, ctx)
			if err != nil {
				return nil, err
			}
			result[key] = resolved
		}
		return result, nil

	default:
		// Числа, bool и прочее возвращаем как есть
		return value, nil
	}
}

// FindVariables возвращает сырые выражения всех ${...} шаблона
// в порядке появления.
func FindVariables(template string) []string {
	matches := exprPattern.FindAllStringSubmatch(template, -1)
	exprs := make([]string, 0, len(matches))
	for _, m := range matches {
		exprs = append(exprs, m[1])
	}
	return exprs
}

// ValidationResult — результат проверки шаблона против контекста.
type ValidationResult struct {
	// Valid — true, если нет отсутствующих выражений.
	Valid bool

	// Missing — выражения без default, разрешившиеся в пустоту.
	Missing []string
}

// ValidateTemplate проверяет, что каждое выражение шаблона либо
// имеет default, либо разрешается в непустое значение.
func ValidateTemplate(template string, ctx *Context) ValidationResult {
	var missing []string

	for _, expr := range FindVariables(template) {
		_, _, _, hasDefault := parseExpr(expr)
		if hasDefault {
			continue
		}
		resolved, err := ResolveVariable(expr, ctx, ResolveOptions{})
		if err != nil || resolved == "" {
			missing = append(missing, expr)
		}
	}

	return ValidationResult{
		Valid:   len(missing) == 0,
		Missing: missing,
	}
}
