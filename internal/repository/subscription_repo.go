package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmylchreest/hone/internal/errs"
	"github.com/jmylchreest/hone/internal/models"
)

// SQLiteSubscriptionRepository implements SubscriptionRepository over database/sql.
type SQLiteSubscriptionRepository struct {
	db *sql.DB
}

func NewSQLiteSubscriptionRepository(db *sql.DB) *SQLiteSubscriptionRepository {
	return &SQLiteSubscriptionRepository{db: db}
}

const subscriptionColumns = `id, merchant, account_id, amount, frequency, status, first_seen, last_seen, last_used_at,
	user_acknowledged, acknowledged_at, cancelled_at, cancelled_monthly_amount, created_at, updated_at`

// Upsert inserts a new subscription, or if one already exists matching
// (merchant, account_id) — a nil account_id is its own bucket, not a
// wildcard — advances its last_seen and links the transaction without
// disturbing its status or acknowledgement.
func (r *SQLiteSubscriptionRepository) Upsert(ctx context.Context, s *models.Subscription, transactionID int64) (*models.Subscription, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "begin subscription upsert", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	row := tx.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions WHERE merchant = ? AND COALESCE(account_id, 0) = COALESCE(?, 0)`,
		s.Merchant, s.AccountID)
	existing, err := scanSubscription(row)

	var result *models.Subscription
	switch {
	case err == sql.ErrNoRows:
		s.FirstSeen, s.LastSeen = now, now
		s.CreatedAt, s.UpdatedAt = now, now
		if s.Status == "" {
			s.Status = models.SubscriptionStatusActive
		}
		res, insertErr := tx.ExecContext(ctx,
			`INSERT INTO subscriptions (merchant, account_id, amount, frequency, status, first_seen, last_seen, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.Merchant, s.AccountID, s.Amount, s.Frequency, s.Status, fmtTime(s.FirstSeen), fmtTime(s.LastSeen), fmtTime(now), fmtTime(now))
		if insertErr != nil {
			return nil, errs.Wrap(errs.KindIO, "insert subscription", insertErr)
		}
		id, _ := res.LastInsertId()
		s.ID = id
		result = s
	case err != nil:
		return nil, errs.Wrap(errs.KindIO, "find existing subscription", err)
	default:
		if _, updErr := tx.ExecContext(ctx,
			`UPDATE subscriptions SET last_seen = ?, updated_at = ? WHERE id = ?`,
			fmtTime(now), fmtTime(now), existing.ID); updErr != nil {
			return nil, errs.Wrap(errs.KindIO, "update subscription last_seen", updErr)
		}
		existing.LastSeen = now
		existing.UpdatedAt = now
		result = existing
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO subscription_transactions (subscription_id, transaction_id) VALUES (?, ?)`,
		result.ID, transactionID); err != nil {
		return nil, errs.Wrap(errs.KindIO, "link subscription transaction", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errs.Wrap(errs.KindIO, "commit subscription upsert", err)
	}
	return result, nil
}

func (r *SQLiteSubscriptionRepository) GetByID(ctx context.Context, id int64) (*models.Subscription, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions WHERE id = ?`, id)
	s, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("subscription %d not found", id)
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "get subscription", err)
	}
	return s, nil
}

func (r *SQLiteSubscriptionRepository) List(ctx context.Context, includeExcluded bool) ([]*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions`
	if !includeExcluded {
		query += ` WHERE status != 'excluded'`
	}
	query += ` ORDER BY last_seen DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "list subscriptions", err)
	}
	defer rows.Close()

	var out []*models.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, errs.Wrap(errs.KindIO, "scan subscription", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteSubscriptionRepository) UpdateStatus(ctx context.Context, id int64, status models.SubscriptionStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE subscriptions SET status = ?, updated_at = ? WHERE id = ?`, status, fmtTime(time.Now()), id)
	if err != nil {
		return errs.Wrap(errs.KindIO, "update subscription status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("subscription %d not found", id)
	}
	return nil
}

func (r *SQLiteSubscriptionRepository) Acknowledge(ctx context.Context, id int64) error {
	now := fmtTime(time.Now())
	res, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET user_acknowledged = 1, acknowledged_at = ?, updated_at = ? WHERE id = ?`, now, now, id)
	if err != nil {
		return errs.Wrap(errs.KindIO, "acknowledge subscription", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("subscription %d not found", id)
	}
	return nil
}

// Reactivate is the manual, user-initiated counterpart to Resume: a person
// marking a cancelled or zombie subscription active again through the API,
// as opposed to the waste detector noticing a new matching charge.
func (r *SQLiteSubscriptionRepository) Reactivate(ctx context.Context, id int64) error {
	now := fmtTime(time.Now())
	res, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET status = ?, acknowledged_at = NULL, cancelled_at = NULL, cancelled_monthly_amount = NULL, updated_at = ? WHERE id = ?`,
		models.SubscriptionStatusActive, now, id)
	if err != nil {
		return errs.Wrap(errs.KindIO, "reactivate subscription", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("subscription %d not found", id)
	}
	return nil
}

// Cancel marks a subscription cancelled, recording the monthly-equivalent
// amount it was cancelled at so a later Resume can report the old-vs-new gap.
func (r *SQLiteSubscriptionRepository) Cancel(ctx context.Context, id int64) error {
	s, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	now := fmtTime(time.Now())
	monthly := s.MonthlyEquivalent()
	res, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET status = ?, cancelled_at = ?, cancelled_monthly_amount = ?, updated_at = ? WHERE id = ?`,
		models.SubscriptionStatusCancelled, now, monthly, now, id)
	if err != nil {
		return errs.Wrap(errs.KindIO, "cancel subscription", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("subscription %d not found", id)
	}
	return nil
}

// Resume reactivates a cancelled subscription that the detector has matched
// against a new charge: status returns to active, last_seen advances, and
// the subscription is marked acknowledged since the user no longer needs to
// be told about a charge they were already aware existed before cancelling.
// amount is the newly observed charge amount, persisted as the subscription's
// current amount so MonthlyEquivalent reflects what is being charged now.
func (r *SQLiteSubscriptionRepository) Resume(ctx context.Context, id int64, amount float64, seenAt time.Time) error {
	now := fmtTime(time.Now())
	res, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET status = ?, amount = ?, last_seen = ?, user_acknowledged = 1, acknowledged_at = ?, updated_at = ? WHERE id = ?`,
		models.SubscriptionStatusActive, amount, fmtTime(seenAt), now, now, id)
	if err != nil {
		return errs.Wrap(errs.KindIO, "resume subscription", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("subscription %d not found", id)
	}
	return nil
}

func (r *SQLiteSubscriptionRepository) Exclude(ctx context.Context, id int64) error {
	return r.UpdateStatus(ctx, id, models.SubscriptionStatusExcluded)
}

func (r *SQLiteSubscriptionRepository) Unexclude(ctx context.Context, id int64) error {
	return r.UpdateStatus(ctx, id, models.SubscriptionStatusActive)
}

func (r *SQLiteSubscriptionRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ?`, id)
	if err != nil {
		return errs.Wrap(errs.KindIO, "delete subscription", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("subscription %d not found", id)
	}
	return nil
}

func (r *SQLiteSubscriptionRepository) TransactionIDs(ctx context.Context, subscriptionID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT transaction_id FROM subscription_transactions WHERE subscription_id = ?`, subscriptionID)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "list subscription transactions", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errs.Wrap(errs.KindIO, "scan subscription transaction id", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var s models.Subscription
	var firstSeen, lastSeen, createdAt, updatedAt string
	var accountID sql.NullInt64
	var lastUsedAt, acknowledgedAt, cancelledAt sql.NullString
	var cancelledMonthlyAmount sql.NullFloat64
	if err := row.Scan(&s.ID, &s.Merchant, &accountID, &s.Amount, &s.Frequency, &s.Status,
		&firstSeen, &lastSeen, &lastUsedAt, &s.UserAcknowledged, &acknowledgedAt,
		&cancelledAt, &cancelledMonthlyAmount, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if accountID.Valid {
		s.AccountID = &accountID.Int64
	}
	s.FirstSeen, _ = time.Parse(time.RFC3339, firstSeen)
	s.LastSeen, _ = time.Parse(time.RFC3339, lastSeen)
	s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	s.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if lastUsedAt.Valid {
		t, _ := time.Parse(time.RFC3339, lastUsedAt.String)
		s.LastUsedAt = &t
	}
	if acknowledgedAt.Valid {
		t, _ := time.Parse(time.RFC3339, acknowledgedAt.String)
		s.AcknowledgedAt = &t
	}
	if cancelledAt.Valid {
		t, _ := time.Parse(time.RFC3339, cancelledAt.String)
		s.CancelledAt = &t
	}
	if cancelledMonthlyAmount.Valid {
		s.CancelledMonthlyAmount = &cancelledMonthlyAmount.Float64
	}
	return &s, nil
}
