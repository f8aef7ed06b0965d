package sink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shaiso/scrapeflow/internal/domain"
)

// CSVSink пишет данные результата в CSV файл <dir>/<job-id>.csv.
//
// Значения, способные быть интерпретированными как формулы
// электронных таблиц, экранируются одинарной кавычкой.
type CSVSink struct {
	dir string
}

// NewCSVSink создаёт CSV sink, пишущий в каталог dir.
func NewCSVSink(dir string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create csv dir: %w", err)
	}
	return &CSVSink{dir: dir}, nil
}

func (s *CSVSink) Name() string { return "csv" }

// Write сериализует данные результата в табличную форму.
//
// Колонки — имена извлечённых значений в алфавитном порядке.
// Количество строк — длина самого длинного массива; скалярные
// значения повторяются в каждой строке.
func (s *CSVSink) Write(_ context.Context, job *domain.Job, result *domain.Result) error {
	if len(result.Data) == 0 {
		return nil
	}

	columns := make([]string, 0, len(result.Data))
	for name := range result.Data {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	rows := 1
	for _, value := range result.Data {
		if arr, ok := value.([]any); ok && len(arr) > rows {
			rows = len(arr)
		}
	}

	path := filepath.Join(s.dir, job.ID.String()+".csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, len(columns))
	for row := 0; row < rows; row++ {
		for i, column := range columns {
			record[i] = sanitizeCell(cellAt(result.Data[column], row))
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// cellAt возвращает значение колонки для строки row: элемент массива
// или скаляр, повторяемый во всех строках.
func cellAt(value any, row int) string {
	if arr, ok := value.([]any); ok {
		if row >= len(arr) {
			return ""
		}
		value = arr[row]
	}

	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

// sanitizeCell нейтрализует значения, которые электронные таблицы
// исполнили бы как формулу: =, +, -, @ и управляющие табуляции
// в начале ячейки.
func sanitizeCell(value string) string {
	if value == "" {
		return value
	}
	switch value[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + value
	}
	if strings.HasPrefix(value, "\x00") {
		return "'" + value
	}
	return value
}
