package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmylchreest/hone/internal/errs"
	"github.com/jmylchreest/hone/internal/models"
)

// SQLiteReceiptRepository implements ReceiptRepository over database/sql.
type SQLiteReceiptRepository struct {
	db *sql.DB
}

func NewSQLiteReceiptRepository(db *sql.DB) *SQLiteReceiptRepository {
	return &SQLiteReceiptRepository{db: db}
}

func (r *SQLiteReceiptRepository) Create(ctx context.Context, rcpt *models.Receipt) error {
	rcpt.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO receipts (transaction_id, merchant, subtotal, tax, tip, total, purchased_at, raw_text, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rcpt.TransactionID, rcpt.Merchant, rcpt.Subtotal, rcpt.Tax, rcpt.Tip, rcpt.Total,
		fmtTime(rcpt.PurchasedAt), rcpt.RawText, fmtTime(rcpt.CreatedAt))
	if err != nil {
		return errs.Wrap(errs.KindIO, "create receipt", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errs.Wrap(errs.KindIO, "read receipt id", err)
	}
	rcpt.ID = id
	return nil
}

func (r *SQLiteReceiptRepository) GetByID(ctx context.Context, id int64) (*models.Receipt, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, transaction_id, merchant, subtotal, tax, tip, total, purchased_at, raw_text, created_at FROM receipts WHERE id = ?`, id)
	rcpt, err := scanReceipt(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("receipt %d not found", id)
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "get receipt", err)
	}
	return rcpt, nil
}

// Unmatched returns receipts with no linked transaction; the context
// assembler narrows these further to the ±7 day / ±20% amount window against
// candidate transactions before proposing a match.
func (r *SQLiteReceiptRepository) Unmatched(ctx context.Context) ([]*models.Receipt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, transaction_id, merchant, subtotal, tax, tip, total, purchased_at, raw_text, created_at
		 FROM receipts WHERE transaction_id IS NULL ORDER BY purchased_at DESC`)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "list unmatched receipts", err)
	}
	defer rows.Close()

	var out []*models.Receipt
	for rows.Next() {
		rcpt, err := scanReceipt(rows)
		if err != nil {
			return nil, errs.Wrap(errs.KindIO, "scan unmatched receipt", err)
		}
		out = append(out, rcpt)
	}
	return out, rows.Err()
}

func (r *SQLiteReceiptRepository) LinkToTransaction(ctx context.Context, receiptID, transactionID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE receipts SET transaction_id = ? WHERE id = ?`, transactionID, receiptID)
	if err != nil {
		return errs.Wrap(errs.KindIO, "link receipt to transaction", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("receipt %d not found", receiptID)
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE transactions SET receipt_id = ?, updated_at = ? WHERE id = ?`,
		receiptID, fmtTime(time.Now()), transactionID); err != nil {
		return errs.Wrap(errs.KindIO, "link transaction to receipt", err)
	}
	return nil
}

func scanReceipt(row rowScanner) (*models.Receipt, error) {
	var rcpt models.Receipt
	var transactionID sql.NullInt64
	var rawText sql.NullString
	var purchasedAt, createdAt string
	if err := row.Scan(&rcpt.ID, &transactionID, &rcpt.Merchant, &rcpt.Subtotal, &rcpt.Tax, &rcpt.Tip, &rcpt.Total,
		&purchasedAt, &rawText, &createdAt); err != nil {
		return nil, err
	}
	if transactionID.Valid {
		rcpt.TransactionID = &transactionID.Int64
	}
	rcpt.RawText = rawText.String
	rcpt.PurchasedAt, _ = time.Parse(time.RFC3339, purchasedAt)
	rcpt.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &rcpt, nil
}
