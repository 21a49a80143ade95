package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmylchreest/hone/internal/errs"
	"github.com/jmylchreest/hone/internal/models"
)

// SQLiteOllamaMetricRepository implements OllamaMetricRepository over database/sql.
type SQLiteOllamaMetricRepository struct {
	db *sql.DB
}

func NewSQLiteOllamaMetricRepository(db *sql.DB) *SQLiteOllamaMetricRepository {
	return &SQLiteOllamaMetricRepository{db: db}
}

func (r *SQLiteOllamaMetricRepository) Record(ctx context.Context, m *models.OllamaMetric) error {
	m.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO ollama_metrics (task_type, model, backend, duration_ms, success, error_message, prompt_tokens, output_tokens, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.TaskType, m.Model, m.Backend, m.DurationMs, m.Success, m.ErrorMessage, m.PromptTokens, m.OutputTokens, fmtTime(m.CreatedAt))
	if err != nil {
		return errs.Wrap(errs.KindIO, "record ollama metric", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errs.Wrap(errs.KindIO, "read ollama metric id", err)
	}
	m.ID = id
	return nil
}

// RecentFailureCount counts failed calls recorded for (taskType, model)
// since the given time.
func (r *SQLiteOllamaMetricRepository) RecentFailureCount(ctx context.Context, taskType, model string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ollama_metrics WHERE task_type = ? AND model = ? AND success = 0 AND created_at >= ?`,
		taskType, model, fmtTime(since)).Scan(&count)
	if err != nil {
		return 0, errs.Wrap(errs.KindIO, "count recent ollama failures", err)
	}
	return count, nil
}

func (r *SQLiteOllamaMetricRepository) Summary(ctx context.Context, since time.Time) ([]ModelHealthSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT backend, model,
		        COUNT(*) AS total,
		        SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END) AS failed,
		        AVG(duration_ms) AS avg_duration
		 FROM ollama_metrics
		 WHERE created_at >= ?
		 GROUP BY backend, model
		 ORDER BY backend, model`, fmtTime(since))
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "summarize ollama metrics", err)
	}
	defer rows.Close()

	var out []ModelHealthSummary
	for rows.Next() {
		var s ModelHealthSummary
		if err := rows.Scan(&s.Backend, &s.Model, &s.TotalCalls, &s.FailedCalls, &s.AvgDurationMs); err != nil {
			return nil, errs.Wrap(errs.KindIO, "scan ollama metric summary", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
