package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/scrapeflow/internal/domain"
)

// PostgresSink раскладывает данные результата в таблицу job_rows:
// одна строка на элемент данных, JSONB колонка с содержимым.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink создаёт Postgres sink поверх общего пула.
func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

func (s *PostgresSink) Name() string { return "postgres" }

// Write делает upsert строк результата в одной транзакции.
// Повторная доставка того же job перезаписывает его строки.
func (s *PostgresSink) Write(ctx context.Context, job *domain.Job, result *domain.Result) error {
	rows := flattenRows(result.Data)
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM job_rows WHERE job_id = $1`, job.ID); err != nil {
		return fmt.Errorf("clear previous rows: %w", err)
	}

	for i, row := range rows {
		rowJSON, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshal row %d: %w", i, err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO job_rows (job_id, row_index, data) VALUES ($1, $2, $3)`,
			job.ID, i, rowJSON)
		if err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// flattenRows разворачивает данные результата в строки: элементы
// самого длинного массива задают количество строк, скаляры
// повторяются.
func flattenRows(data map[string]any) []map[string]any {
	if len(data) == 0 {
		return nil
	}

	count := 1
	for _, value := range data {
		if arr, ok := value.([]any); ok && len(arr) > count {
			count = len(arr)
		}
	}

	rows := make([]map[string]any, count)
	for i := 0; i < count; i++ {
		row := make(map[string]any, len(data))
		for name, value := range data {
			if arr, ok := value.([]any); ok {
				if i < len(arr) {
					row[name] = arr[i]
				}
				continue
			}
			row[name] = value
		}
		rows[i] = row
	}
	return rows
}
