package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmylchreest/hone/internal/errs"
	"github.com/jmylchreest/hone/internal/models"
)

// SQLiteAuditRepository implements AuditRepository over database/sql.
type SQLiteAuditRepository struct {
	db *sql.DB
}

func NewSQLiteAuditRepository(db *sql.DB) *SQLiteAuditRepository {
	return &SQLiteAuditRepository{db: db}
}

func (r *SQLiteAuditRepository) Log(ctx context.Context, e *models.AuditEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (timestamp, user_email, action, entity_type, entity_id, details) VALUES (?, ?, ?, ?, ?, ?)`,
		fmtTime(e.Timestamp), e.UserEmail, e.Action, e.EntityType, e.EntityID, e.Details)
	if err != nil {
		return errs.Wrap(errs.KindIO, "log audit entry", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errs.Wrap(errs.KindIO, "read audit entry id", err)
	}
	e.ID = id
	return nil
}

func (r *SQLiteAuditRepository) List(ctx context.Context, limit, offset int) ([]*models.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, timestamp, user_email, action, entity_type, entity_id, details FROM audit_log
		 ORDER BY timestamp DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "list audit log", err)
	}
	defer rows.Close()

	var out []*models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var timestamp string
		var userEmail, entityType, details sql.NullString
		var entityID sql.NullInt64
		if err := rows.Scan(&e.ID, &timestamp, &userEmail, &e.Action, &entityType, &entityID, &details); err != nil {
			return nil, errs.Wrap(errs.KindIO, "scan audit entry", err)
		}
		e.Timestamp, _ = time.Parse(time.RFC3339, timestamp)
		e.UserEmail = userEmail.String
		e.EntityType = entityType.String
		e.Details = details.String
		if entityID.Valid {
			e.EntityID = &entityID.Int64
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
