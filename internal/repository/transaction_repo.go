package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmylchreest/hone/internal/errs"
	"github.com/jmylchreest/hone/internal/models"
)

// SQLiteTransactionRepository implements TransactionRepository over database/sql.
type SQLiteTransactionRepository struct {
	db *sql.DB
}

func NewSQLiteTransactionRepository(db *sql.DB) *SQLiteTransactionRepository {
	return &SQLiteTransactionRepository{db: db}
}

func (r *SQLiteTransactionRepository) Create(ctx context.Context, t *models.Transaction) error {
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (account_id, date, description, merchant, amount, currency, import_hash, excluded, normalized_name, bank_category, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.AccountID, fmtTime(t.Date), t.Description, t.Merchant, t.Amount, t.Currency, t.ImportHash, t.Excluded, t.NormalizedName, nullIfEmpty(t.BankCategory), fmtTime(now), fmtTime(now))
	if err != nil {
		return errs.Wrap(errs.KindIO, "create transaction", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errs.Wrap(errs.KindIO, "read transaction id", err)
	}
	t.ID = id
	return nil
}

// CreateBatch imports transactions, skipping any whose (account_id, import_hash)
// already exists so re-importing the same statement is a no-op.
func (r *SQLiteTransactionRepository) CreateBatch(ctx context.Context, ts []*models.Transaction) (int, int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, errs.Wrap(errs.KindIO, "begin import batch", err)
	}
	defer tx.Rollback()

	var inserted, skipped int
	now := fmtTime(time.Now())
	for _, t := range ts {
		var existingID int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM transactions WHERE account_id = ? AND import_hash = ?`, t.AccountID, t.ImportHash,
		).Scan(&existingID)
		if err == nil {
			skipped++
			continue
		}
		if err != sql.ErrNoRows {
			return inserted, skipped, errs.Wrap(errs.KindIO, "check duplicate transaction", err)
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO transactions (account_id, date, description, merchant, amount, currency, import_hash, excluded, normalized_name, bank_category, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`,
			t.AccountID, fmtTime(t.Date), t.Description, t.Merchant, t.Amount, t.Currency, t.ImportHash, t.NormalizedName, nullIfEmpty(t.BankCategory), now, now)
		if err != nil {
			return inserted, skipped, errs.Wrap(errs.KindIO, "insert transaction", err)
		}
		id, _ := res.LastInsertId()
		t.ID = id
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return inserted, skipped, errs.Wrap(errs.KindIO, "commit import batch", err)
	}
	return inserted, skipped, nil
}

func (r *SQLiteTransactionRepository) GetByID(ctx context.Context, id int64) (*models.Transaction, error) {
	row := r.db.QueryRowContext(ctx, transactionSelect+` WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("transaction %d not found", id)
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "get transaction", err)
	}
	return t, nil
}

func (r *SQLiteTransactionRepository) GetByImportHash(ctx context.Context, accountID int64, hash string) (*models.Transaction, error) {
	row := r.db.QueryRowContext(ctx, transactionSelect+` WHERE account_id = ? AND import_hash = ?`, accountID, hash)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("transaction with hash %s not found", hash)
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "get transaction by hash", err)
	}
	return t, nil
}

const transactionSelect = `SELECT id, account_id, date, description, merchant, amount, currency, import_hash, excluded, receipt_id, normalized_name, bank_category, created_at, updated_at FROM transactions`

func (r *SQLiteTransactionRepository) List(ctx context.Context, filter TransactionFilter) ([]*models.Transaction, error) {
	query := transactionSelect
	var conditions []string
	var args []any

	if !filter.IncludeExcl {
		conditions = append(conditions, "excluded = 0")
	}
	if filter.AccountID != nil {
		conditions = append(conditions, "account_id = ?")
		args = append(args, *filter.AccountID)
	}
	if filter.Merchant != "" {
		conditions = append(conditions, "merchant LIKE ?")
		args = append(args, "%"+filter.Merchant+"%")
	}
	if filter.From != nil {
		conditions = append(conditions, "date >= ?")
		args = append(args, fmtTime(*filter.From))
	}
	if filter.To != nil {
		conditions = append(conditions, "date <= ?")
		args = append(args, fmtTime(*filter.To))
	}
	if filter.TagID != nil {
		conditions = append(conditions, "id IN (SELECT transaction_id FROM transaction_tags WHERE tag_id = ?)")
		args = append(args, *filter.TagID)
	}
	if filter.Untagged {
		conditions = append(conditions, "id NOT IN (SELECT transaction_id FROM transaction_tags)")
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date DESC, id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "list transactions", err)
	}
	defer rows.Close()

	var out []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, errs.Wrap(errs.KindIO, "scan transaction", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteTransactionRepository) Update(ctx context.Context, t *models.Transaction) error {
	t.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET description = ?, merchant = ?, amount = ?, receipt_id = ?, normalized_name = ?, updated_at = ? WHERE id = ?`,
		t.Description, t.Merchant, t.Amount, t.ReceiptID, t.NormalizedName, fmtTime(t.UpdatedAt), t.ID)
	if err != nil {
		return errs.Wrap(errs.KindIO, "update transaction", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("transaction %d not found", t.ID)
	}
	return nil
}

func (r *SQLiteTransactionRepository) SetExcluded(ctx context.Context, id int64, excluded bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET excluded = ?, updated_at = ? WHERE id = ?`, excluded, fmtTime(time.Now()), id)
	if err != nil {
		return errs.Wrap(errs.KindIO, "set transaction excluded", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("transaction %d not found", id)
	}
	return nil
}

func (r *SQLiteTransactionRepository) CountUntagged(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE excluded = 0 AND id NOT IN (SELECT transaction_id FROM transaction_tags)`,
	).Scan(&count)
	if err != nil {
		return 0, errs.Wrap(errs.KindIO, "count untagged transactions", err)
	}
	return count, nil
}

func (r *SQLiteTransactionRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&count); err != nil {
		return 0, errs.Wrap(errs.KindIO, "count transactions", err)
	}
	return count, nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	var date, createdAt, updatedAt string
	var merchant, normalizedName, bankCategory sql.NullString
	var receiptID sql.NullInt64
	if err := row.Scan(&t.ID, &t.AccountID, &date, &t.Description, &merchant, &t.Amount, &t.Currency,
		&t.ImportHash, &t.Excluded, &receiptID, &normalizedName, &bankCategory, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t.Merchant = merchant.String
	t.NormalizedName = normalizedName.String
	t.BankCategory = bankCategory.String
	if receiptID.Valid {
		t.ReceiptID = &receiptID.Int64
	}
	t.Date, _ = time.Parse(time.RFC3339, date)
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &t, nil
}
