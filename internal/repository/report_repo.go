package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmylchreest/hone/internal/errs"
)

// SQLiteReportRepository implements ReportRepository over database/sql.
type SQLiteReportRepository struct {
	db *sql.DB
}

func NewSQLiteReportRepository(db *sql.DB) *SQLiteReportRepository {
	return &SQLiteReportRepository{db: db}
}

func (r *SQLiteReportRepository) SpendingByTagInRange(ctx context.Context, from, to time.Time) ([]SpendingByTag, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.name, SUM(tx.amount) AS total, COUNT(*) AS cnt
		FROM transaction_tags tt
		JOIN tags t ON t.id = tt.tag_id
		JOIN transactions tx ON tx.id = tt.transaction_id
		WHERE tx.excluded = 0 AND tx.date >= ? AND tx.date <= ?
		GROUP BY t.id, t.name
		ORDER BY total ASC
	`, fmtTime(from), fmtTime(to))
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "spending by tag report", err)
	}
	defer rows.Close()

	var out []SpendingByTag
	for rows.Next() {
		var s SpendingByTag
		if err := rows.Scan(&s.TagID, &s.TagName, &s.Total, &s.Count); err != nil {
			return nil, errs.Wrap(errs.KindIO, "scan spending by tag row", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteReportRepository) TopMerchants(ctx context.Context, from, to time.Time, limit int) ([]MerchantTotal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT merchant, SUM(amount) AS total, COUNT(*) AS cnt
		FROM transactions
		WHERE excluded = 0 AND date >= ? AND date <= ? AND merchant IS NOT NULL AND merchant != ''
		GROUP BY merchant
		ORDER BY total ASC
		LIMIT ?
	`, fmtTime(from), fmtTime(to), limit)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "top merchants report", err)
	}
	defer rows.Close()

	var out []MerchantTotal
	for rows.Next() {
		var m MerchantTotal
		if err := rows.Scan(&m.Merchant, &m.Total, &m.Count); err != nil {
			return nil, errs.Wrap(errs.KindIO, "scan top merchant row", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MonthlyTotalForTag sums spending for tagID and all of its descendant tags
// within [monthStart, monthEnd), via a recursive descent over parent_id.
// Outflows are stored as negative amounts, so the sum is negated and spending
// comes back as a positive figure; credits in the range reduce it.
func (r *SQLiteReportRepository) MonthlyTotalForTag(ctx context.Context, tagID int64, monthStart, monthEnd time.Time) (float64, error) {
	var total sql.NullFloat64
	err := r.db.QueryRowContext(ctx, `
		WITH RECURSIVE descendants(id) AS (
			SELECT id FROM tags WHERE id = ?
			UNION ALL
			SELECT t.id FROM tags t JOIN descendants d ON t.parent_id = d.id
		)
		SELECT SUM(-tx.amount)
		FROM transaction_tags tt
		JOIN transactions tx ON tx.id = tt.transaction_id
		WHERE tt.tag_id IN (SELECT id FROM descendants)
		  AND tx.excluded = 0 AND tx.date >= ? AND tx.date < ?
	`, tagID, fmtTime(monthStart), fmtTime(monthEnd)).Scan(&total)
	if err != nil {
		return 0, errs.Wrap(errs.KindIO, "monthly total for tag", err)
	}
	return total.Float64, nil
}
