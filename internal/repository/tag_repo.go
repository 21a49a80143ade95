package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmylchreest/hone/internal/errs"
	"github.com/jmylchreest/hone/internal/models"
)

// SQLiteTagRepository implements TagRepository over database/sql.
type SQLiteTagRepository struct {
	db *sql.DB
}

func NewSQLiteTagRepository(db *sql.DB) *SQLiteTagRepository {
	return &SQLiteTagRepository{db: db}
}

func (r *SQLiteTagRepository) Create(ctx context.Context, t *models.Tag) error {
	t.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO tags (name, parent_id, color, auto_patterns, created_at) VALUES (?, ?, ?, ?, ?)`,
		t.Name, t.ParentID, t.Color, nullIfEmpty(t.AutoPatterns), fmtTime(t.CreatedAt))
	if err != nil {
		return errs.Wrap(errs.KindIO, "create tag", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errs.Wrap(errs.KindIO, "read tag id", err)
	}
	t.ID = id
	return nil
}

// nullIfEmpty maps an empty string to a NULL bind parameter, so optional text
// columns store NULL rather than "" for unset values.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (r *SQLiteTagRepository) GetByID(ctx context.Context, id int64) (*models.Tag, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, parent_id, color, auto_patterns, created_at FROM tags WHERE id = ?`, id)
	t, err := scanTag(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("tag %d not found", id)
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "get tag", err)
	}
	return t, nil
}

func (r *SQLiteTagRepository) GetByName(ctx context.Context, name string, parentID *int64) (*models.Tag, error) {
	var row *sql.Row
	if parentID == nil {
		row = r.db.QueryRowContext(ctx, `SELECT id, name, parent_id, color, auto_patterns, created_at FROM tags WHERE name = ? AND parent_id IS NULL`, name)
	} else {
		row = r.db.QueryRowContext(ctx, `SELECT id, name, parent_id, color, auto_patterns, created_at FROM tags WHERE name = ? AND parent_id = ?`, name, *parentID)
	}
	t, err := scanTag(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("tag %q not found", name)
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "get tag by name", err)
	}
	return t, nil
}

func (r *SQLiteTagRepository) List(ctx context.Context) ([]*models.Tag, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, parent_id, color, auto_patterns, created_at FROM tags ORDER BY name`)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "list tags", err)
	}
	defer rows.Close()

	var out []*models.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, errs.Wrap(errs.KindIO, "scan tag", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Descendants returns tagID and every tag transitively under it, by walking
// the parent_id hierarchy with a recursive common table expression.
func (r *SQLiteTagRepository) Descendants(ctx context.Context, tagID int64) ([]*models.Tag, error) {
	rows, err := r.db.QueryContext(ctx, `
		WITH RECURSIVE descendants(id) AS (
			SELECT id FROM tags WHERE id = ?
			UNION ALL
			SELECT t.id FROM tags t JOIN descendants d ON t.parent_id = d.id
		)
		SELECT t.id, t.name, t.parent_id, t.color, t.auto_patterns, t.created_at
		FROM tags t JOIN descendants d ON t.id = d.id
	`, tagID)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "tag descendants", err)
	}
	defer rows.Close()

	var out []*models.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, errs.Wrap(errs.KindIO, "scan tag descendant", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteTagRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return errs.Wrap(errs.KindIO, "delete tag", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("tag %d not found", id)
	}
	return nil
}

func scanTag(row rowScanner) (*models.Tag, error) {
	var t models.Tag
	var createdAt string
	var parentID sql.NullInt64
	var color, autoPatterns sql.NullString
	if err := row.Scan(&t.ID, &t.Name, &parentID, &color, &autoPatterns, &createdAt); err != nil {
		return nil, err
	}
	if parentID.Valid {
		t.ParentID = &parentID.Int64
	}
	t.Color = color.String
	t.AutoPatterns = autoPatterns.String
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &t, nil
}

// SQLiteTagRuleRepository implements TagRuleRepository over database/sql.
type SQLiteTagRuleRepository struct {
	db *sql.DB
}

func NewSQLiteTagRuleRepository(db *sql.DB) *SQLiteTagRuleRepository {
	return &SQLiteTagRuleRepository{db: db}
}

func (r *SQLiteTagRuleRepository) Create(ctx context.Context, rule *models.TagRule) error {
	rule.CreatedAt = time.Now().UTC()
	if rule.PatternType == "" {
		rule.PatternType = models.PatternTypeContains
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO tag_rules (tag_id, pattern, pattern_type, match_field, priority, source, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rule.TagID, rule.Pattern, rule.PatternType, rule.MatchField, rule.Priority, rule.Source, fmtTime(rule.CreatedAt))
	if err != nil {
		return errs.Wrap(errs.KindIO, "create tag rule", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errs.Wrap(errs.KindIO, "read tag rule id", err)
	}
	rule.ID = id
	return nil
}

// List returns every rule ordered by priority descending, with ties broken
// by rule id ascending — the order matchRule relies on to resolve conflicts
// deterministically.
func (r *SQLiteTagRuleRepository) List(ctx context.Context) ([]*models.TagRule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tag_id, pattern, pattern_type, match_field, priority, source, created_at FROM tag_rules ORDER BY priority DESC, id ASC`)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "list tag rules", err)
	}
	defer rows.Close()

	var out []*models.TagRule
	for rows.Next() {
		var rule models.TagRule
		var createdAt string
		var patternType sql.NullString
		if err := rows.Scan(&rule.ID, &rule.TagID, &rule.Pattern, &patternType, &rule.MatchField, &rule.Priority, &rule.Source, &createdAt); err != nil {
			return nil, errs.Wrap(errs.KindIO, "scan tag rule", err)
		}
		rule.PatternType = models.PatternType(patternType.String)
		if rule.PatternType == "" {
			rule.PatternType = models.PatternTypeContains
		}
		rule.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, &rule)
	}
	return out, rows.Err()
}

func (r *SQLiteTagRuleRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tag_rules WHERE id = ?`, id)
	if err != nil {
		return errs.Wrap(errs.KindIO, "delete tag rule", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("tag rule %d not found", id)
	}
	return nil
}

// SQLiteTransactionTagRepository implements TransactionTagRepository over database/sql.
type SQLiteTransactionTagRepository struct {
	db *sql.DB
}

func NewSQLiteTransactionTagRepository(db *sql.DB) *SQLiteTransactionTagRepository {
	return &SQLiteTransactionTagRepository{db: db}
}

func (r *SQLiteTransactionTagRepository) Assign(ctx context.Context, tt *models.TransactionTag) error {
	tt.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transaction_tags (transaction_id, tag_id, confidence, source, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(transaction_id, tag_id) DO UPDATE SET confidence = excluded.confidence, source = excluded.source`,
		tt.TransactionID, tt.TagID, tt.Confidence, tt.Source, fmtTime(tt.CreatedAt))
	if err != nil {
		return errs.Wrap(errs.KindIO, "assign transaction tag", err)
	}
	return nil
}

func (r *SQLiteTransactionTagRepository) ListByTransaction(ctx context.Context, transactionID int64) ([]*models.TransactionTag, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, transaction_id, tag_id, confidence, source, created_at FROM transaction_tags WHERE transaction_id = ?`, transactionID)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "list transaction tags", err)
	}
	defer rows.Close()

	var out []*models.TransactionTag
	for rows.Next() {
		var tt models.TransactionTag
		var createdAt string
		if err := rows.Scan(&tt.ID, &tt.TransactionID, &tt.TagID, &tt.Confidence, &tt.Source, &createdAt); err != nil {
			return nil, errs.Wrap(errs.KindIO, "scan transaction tag", err)
		}
		tt.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, &tt)
	}
	return out, rows.Err()
}

func (r *SQLiteTransactionTagRepository) Unassign(ctx context.Context, transactionID, tagID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transaction_tags WHERE transaction_id = ? AND tag_id = ?`, transactionID, tagID)
	if err != nil {
		return errs.Wrap(errs.KindIO, "unassign transaction tag", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("transaction tag link not found")
	}
	return nil
}
