package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmylchreest/hone/internal/errs"
	"github.com/jmylchreest/hone/internal/models"
)

// SQLiteUserFeedbackRepository implements UserFeedbackRepository over database/sql.
type SQLiteUserFeedbackRepository struct {
	db *sql.DB
}

func NewSQLiteUserFeedbackRepository(db *sql.DB) *SQLiteUserFeedbackRepository {
	return &SQLiteUserFeedbackRepository{db: db}
}

func (r *SQLiteUserFeedbackRepository) Create(ctx context.Context, f *models.UserFeedback) error {
	f.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO user_feedback (target_type, target_id, accepted, correction, created_at) VALUES (?, ?, ?, ?, ?)`,
		f.TargetType, f.TargetID, f.Accepted, f.Correction, fmtTime(f.CreatedAt))
	if err != nil {
		return errs.Wrap(errs.KindIO, "create user feedback", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errs.Wrap(errs.KindIO, "read user feedback id", err)
	}
	f.ID = id
	return nil
}

func (r *SQLiteUserFeedbackRepository) ListByTarget(ctx context.Context, targetType models.FeedbackTargetType, targetID int64) ([]*models.UserFeedback, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, target_type, target_id, accepted, correction, created_at FROM user_feedback
		 WHERE target_type = ? AND target_id = ? ORDER BY created_at DESC`, targetType, targetID)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "list user feedback by target", err)
	}
	defer rows.Close()
	return scanFeedbackRows(rows)
}

func (r *SQLiteUserFeedbackRepository) RecentSummary(ctx context.Context, targetType models.FeedbackTargetType, limit int) ([]*models.UserFeedback, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, target_type, target_id, accepted, correction, created_at FROM user_feedback
		 WHERE target_type = ? ORDER BY created_at DESC LIMIT ?`, targetType, limit)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "recent user feedback summary", err)
	}
	defer rows.Close()
	return scanFeedbackRows(rows)
}

func scanFeedbackRows(rows *sql.Rows) ([]*models.UserFeedback, error) {
	var out []*models.UserFeedback
	for rows.Next() {
		var f models.UserFeedback
		var correction sql.NullString
		var createdAt string
		if err := rows.Scan(&f.ID, &f.TargetType, &f.TargetID, &f.Accepted, &correction, &createdAt); err != nil {
			return nil, errs.Wrap(errs.KindIO, "scan user feedback", err)
		}
		f.Correction = correction.String
		f.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, &f)
	}
	return out, rows.Err()
}
