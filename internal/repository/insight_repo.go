package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmylchreest/hone/internal/errs"
	"github.com/jmylchreest/hone/internal/models"
)

// SQLiteInsightFindingRepository implements InsightFindingRepository over database/sql.
type SQLiteInsightFindingRepository struct {
	db *sql.DB
}

func NewSQLiteInsightFindingRepository(db *sql.DB) *SQLiteInsightFindingRepository {
	return &SQLiteInsightFindingRepository{db: db}
}

// Upsert inserts or replaces a finding keyed by (insight_type, key), so an
// analyzer re-running over the same period refreshes rather than duplicates.
func (r *SQLiteInsightFindingRepository) Upsert(ctx context.Context, f *models.InsightFinding) error {
	now := time.Now().UTC()
	if f.DetectedAt.IsZero() {
		f.DetectedAt = now
	}
	f.UpdatedAt = now

	var expiresAt any
	if f.ExpiresAt != nil {
		expiresAt = fmtTime(*f.ExpiresAt)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO insight_findings (insight_type, key, severity, title, summary, detail, data_json, detected_at, expires_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(insight_type, key) DO UPDATE SET
		   severity = excluded.severity,
		   title = excluded.title,
		   summary = excluded.summary,
		   detail = excluded.detail,
		   data_json = excluded.data_json,
		   detected_at = excluded.detected_at,
		   expires_at = excluded.expires_at,
		   updated_at = excluded.updated_at`,
		f.InsightType, f.Key, f.Severity, f.Title, f.Summary, f.Detail, f.DataJSON,
		fmtTime(f.DetectedAt), expiresAt, fmtTime(now), fmtTime(now))
	if err != nil {
		return errs.Wrap(errs.KindIO, "upsert insight finding", err)
	}
	if f.ID == 0 {
		if id, err := res.LastInsertId(); err == nil && id != 0 {
			f.ID = id
		}
	}
	return nil
}

func (r *SQLiteInsightFindingRepository) List(ctx context.Context, activeOnly bool) ([]*models.InsightFinding, error) {
	query := `SELECT id, insight_type, key, severity, title, summary, detail, data_json, detected_at, expires_at, created_at, updated_at FROM insight_findings`
	if activeOnly {
		query += ` WHERE expires_at IS NULL OR expires_at > ?`
	}
	query += ` ORDER BY severity DESC, detected_at DESC`

	var rows *sql.Rows
	var err error
	if activeOnly {
		rows, err = r.db.QueryContext(ctx, query, fmtTime(time.Now()))
	} else {
		rows, err = r.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "list insight findings", err)
	}
	defer rows.Close()

	var out []*models.InsightFinding
	for rows.Next() {
		f, err := scanInsightFinding(rows)
		if err != nil {
			return nil, errs.Wrap(errs.KindIO, "scan insight finding", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *SQLiteInsightFindingRepository) GetByKey(ctx context.Context, insightType, key string) (*models.InsightFinding, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, insight_type, key, severity, title, summary, detail, data_json, detected_at, expires_at, created_at, updated_at
		 FROM insight_findings WHERE insight_type = ? AND key = ?`, insightType, key)
	f, err := scanInsightFinding(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("insight finding %s/%s not found", insightType, key)
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "get insight finding", err)
	}
	return f, nil
}

func (r *SQLiteInsightFindingRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM insight_findings WHERE expires_at IS NOT NULL AND expires_at <= ?`, fmtTime(now))
	if err != nil {
		return 0, errs.Wrap(errs.KindIO, "delete expired insight findings", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errs.Wrap(errs.KindIO, "count deleted insight findings", err)
	}
	return int(n), nil
}

func scanInsightFinding(row rowScanner) (*models.InsightFinding, error) {
	var f models.InsightFinding
	var detail, dataJSON sql.NullString
	var expiresAt sql.NullString
	var detectedAt, createdAt, updatedAt string
	if err := row.Scan(&f.ID, &f.InsightType, &f.Key, &f.Severity, &f.Title, &f.Summary, &detail, &dataJSON,
		&detectedAt, &expiresAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	f.Detail = detail.String
	f.DataJSON = dataJSON.String
	f.DetectedAt, _ = time.Parse(time.RFC3339, detectedAt)
	f.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	f.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if expiresAt.Valid {
		t, _ := time.Parse(time.RFC3339, expiresAt.String)
		f.ExpiresAt = &t
	}
	return &f, nil
}
