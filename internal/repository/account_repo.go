package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmylchreest/hone/internal/errs"
	"github.com/jmylchreest/hone/internal/models"
)

// SQLiteAccountRepository implements AccountRepository over database/sql.
type SQLiteAccountRepository struct {
	db *sql.DB
}

func NewSQLiteAccountRepository(db *sql.DB) *SQLiteAccountRepository {
	return &SQLiteAccountRepository{db: db}
}

func (r *SQLiteAccountRepository) Create(ctx context.Context, a *models.Account) error {
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (name, institution, type, currency, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.Name, a.Institution, a.Type, a.Currency, fmtTime(now), fmtTime(now))
	if err != nil {
		return errs.Wrap(errs.KindIO, "create account", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errs.Wrap(errs.KindIO, "read account id", err)
	}
	a.ID = id
	return nil
}

func (r *SQLiteAccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, institution, type, currency, created_at, updated_at FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("account %d not found", id)
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "get account", err)
	}
	return a, nil
}

func (r *SQLiteAccountRepository) List(ctx context.Context) ([]*models.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, institution, type, currency, created_at, updated_at FROM accounts ORDER BY name`)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "list accounts", err)
	}
	defer rows.Close()

	var out []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, errs.Wrap(errs.KindIO, "scan account", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteAccountRepository) Update(ctx context.Context, a *models.Account) error {
	a.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET name = ?, institution = ?, type = ?, currency = ?, updated_at = ? WHERE id = ?`,
		a.Name, a.Institution, a.Type, a.Currency, fmtTime(a.UpdatedAt), a.ID)
	if err != nil {
		return errs.Wrap(errs.KindIO, "update account", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("account %d not found", a.ID)
	}
	return nil
}

func (r *SQLiteAccountRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return errs.Wrap(errs.KindIO, "delete account", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("account %d not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	var createdAt, updatedAt string
	var institution sql.NullString
	if err := row.Scan(&a.ID, &a.Name, &institution, &a.Type, &a.Currency, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	a.Institution = institution.String
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &a, nil
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
