package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmylchreest/hone/internal/errs"
	"github.com/jmylchreest/hone/internal/models"
)

// SQLiteAlertRepository implements AlertRepository over database/sql.
type SQLiteAlertRepository struct {
	db *sql.DB
}

func NewSQLiteAlertRepository(db *sql.DB) *SQLiteAlertRepository {
	return &SQLiteAlertRepository{db: db}
}

// CreateAlert dedupes on an existing undismissed alert of the same type and
// subscription: if one exists, its id is returned unchanged rather than
// creating a duplicate notification for the same pathology.
func (r *SQLiteAlertRepository) CreateAlert(ctx context.Context, a *models.Alert) (int64, error) {
	if a.SubscriptionID != nil {
		var existingID int64
		err := r.db.QueryRowContext(ctx,
			`SELECT id FROM alerts WHERE type = ? AND subscription_id = ? AND dismissed = 0`,
			a.Type, *a.SubscriptionID).Scan(&existingID)
		if err == nil {
			return existingID, nil
		}
		if err != sql.ErrNoRows {
			return 0, errs.Wrap(errs.KindIO, "check existing alert", err)
		}
	}

	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO alerts (type, subscription_id, message, spending_anomaly_data, ai_analysis, dismissed, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		a.Type, a.SubscriptionID, a.Message, a.SpendingAnomalyData, nullIfEmpty(a.AIAnalysis), fmtTime(now), fmtTime(now))
	if err != nil {
		return 0, errs.Wrap(errs.KindIO, "create alert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errs.Wrap(errs.KindIO, "read alert id", err)
	}
	return id, nil
}

// CreateSpendingAnomalyAlert upserts the single active spending_anomaly alert
// for the given tag, identified by the tag_id field embedded in each alert's
// spending_anomaly_data JSON payload.
func (r *SQLiteAlertRepository) CreateSpendingAnomalyAlert(ctx context.Context, data models.SpendingAnomalyData, message string) (int64, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return 0, errs.Wrap(errs.KindInvalidData, "marshal spending anomaly data", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, spending_anomaly_data FROM alerts WHERE type = ? AND dismissed = 0`, models.AlertTypeSpendingAnomaly)
	if err != nil {
		return 0, errs.Wrap(errs.KindIO, "find existing spending anomaly alerts", err)
	}
	var existingID int64
	for rows.Next() {
		var id int64
		var raw sql.NullString
		if err := rows.Scan(&id, &raw); err != nil {
			rows.Close()
			return 0, errs.Wrap(errs.KindIO, "scan spending anomaly alert", err)
		}
		if !raw.Valid {
			continue
		}
		var existing models.SpendingAnomalyData
		if err := json.Unmarshal([]byte(raw.String), &existing); err == nil && existing.TagID == data.TagID {
			existingID = id
			break
		}
	}
	rows.Close()

	now := fmtTime(time.Now())
	payloadStr := string(payload)
	if existingID != 0 {
		if _, err := r.db.ExecContext(ctx,
			`UPDATE alerts SET message = ?, spending_anomaly_data = ?, updated_at = ? WHERE id = ?`,
			message, payloadStr, now, existingID); err != nil {
			return 0, errs.Wrap(errs.KindIO, "update spending anomaly alert", err)
		}
		return existingID, nil
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO alerts (type, message, spending_anomaly_data, dismissed, created_at, updated_at) VALUES (?, ?, ?, 0, ?, ?)`,
		models.AlertTypeSpendingAnomaly, message, payloadStr, now, now)
	if err != nil {
		return 0, errs.Wrap(errs.KindIO, "create spending anomaly alert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errs.Wrap(errs.KindIO, "read spending anomaly alert id", err)
	}
	return id, nil
}

func (r *SQLiteAlertRepository) GetAlert(ctx context.Context, id int64) (*models.Alert, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, type, subscription_id, message, spending_anomaly_data, ai_analysis, dismissed, dismissed_at, created_at, updated_at
		 FROM alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("alert %d not found", id)
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "get alert", err)
	}
	return a, nil
}

func (r *SQLiteAlertRepository) ListAlerts(ctx context.Context, includeDismissed bool) ([]*models.Alert, error) {
	query := `SELECT id, type, subscription_id, message, spending_anomaly_data, ai_analysis, dismissed, dismissed_at, created_at, updated_at FROM alerts`
	if !includeDismissed {
		query += ` WHERE dismissed = 0`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "list alerts", err)
	}
	defer rows.Close()

	var out []*models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, errs.Wrap(errs.KindIO, "scan alert", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteAlertRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts WHERE dismissed = 0`).Scan(&count); err != nil {
		return 0, errs.Wrap(errs.KindIO, "count active alerts", err)
	}
	return count, nil
}

func (r *SQLiteAlertRepository) Dismiss(ctx context.Context, id int64) error {
	now := fmtTime(time.Now())
	res, err := r.db.ExecContext(ctx, `UPDATE alerts SET dismissed = 1, dismissed_at = ?, updated_at = ? WHERE id = ?`, now, now, id)
	if err != nil {
		return errs.Wrap(errs.KindIO, "dismiss alert", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("alert %d not found", id)
	}
	return nil
}

func (r *SQLiteAlertRepository) Restore(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE alerts SET dismissed = 0, dismissed_at = NULL, updated_at = ? WHERE id = ?`, fmtTime(time.Now()), id)
	if err != nil {
		return errs.Wrap(errs.KindIO, "restore alert", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("alert %d not found", id)
	}
	return nil
}

func (r *SQLiteAlertRepository) GetDashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	var stats models.DashboardStats

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&stats.TotalTransactions); err != nil {
		return nil, errs.Wrap(errs.KindIO, "count transactions", err)
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&stats.TotalAccounts); err != nil {
		return nil, errs.Wrap(errs.KindIO, "count accounts", err)
	}
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscriptions WHERE status = 'active'`).Scan(&stats.ActiveSubscriptions); err != nil {
		return nil, errs.Wrap(errs.KindIO, "count active subscriptions", err)
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts WHERE dismissed = 0`).Scan(&stats.ActiveAlerts); err != nil {
		return nil, errs.Wrap(errs.KindIO, "count active alerts", err)
	}
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE excluded = 0 AND id NOT IN (SELECT transaction_id FROM transaction_tags)`,
	).Scan(&stats.UntaggedTransactions); err != nil {
		return nil, errs.Wrap(errs.KindIO, "count untagged transactions", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT amount, frequency FROM subscriptions WHERE status = 'active'`)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "sum subscription cost", err)
	}
	var monthly, zombieMonthly float64
	for rows.Next() {
		var amount float64
		var frequency models.SubscriptionFrequency
		if err := rows.Scan(&amount, &frequency); err != nil {
			rows.Close()
			return nil, errs.Wrap(errs.KindIO, "scan subscription cost row", err)
		}
		s := models.Subscription{Amount: amount, Frequency: frequency}
		monthly += s.MonthlyEquivalent()
	}
	rows.Close()
	stats.MonthlySubscriptionCost = monthly

	zrows, err := r.db.QueryContext(ctx, `SELECT amount, frequency FROM subscriptions WHERE status = 'zombie'`)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "sum zombie subscription cost", err)
	}
	for zrows.Next() {
		var amount float64
		var frequency models.SubscriptionFrequency
		if err := zrows.Scan(&amount, &frequency); err != nil {
			zrows.Close()
			return nil, errs.Wrap(errs.KindIO, "scan zombie subscription row", err)
		}
		s := models.Subscription{Amount: amount, Frequency: frequency}
		zombieMonthly += s.MonthlyEquivalent()
	}
	zrows.Close()
	stats.PotentialMonthlySavings = zombieMonthly

	return &stats, nil
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	var a models.Alert
	var createdAt, updatedAt string
	var dismissedAt sql.NullString
	var spendingData sql.NullString
	var aiAnalysis sql.NullString
	if err := row.Scan(&a.ID, &a.Type, &a.SubscriptionID, &a.Message, &spendingData, &aiAnalysis, &a.Dismissed, &dismissedAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if spendingData.Valid {
		a.SpendingAnomalyData = &spendingData.String
	}
	if aiAnalysis.Valid {
		a.AIAnalysis = aiAnalysis.String
	}
	if dismissedAt.Valid {
		t, _ := time.Parse(time.RFC3339, dismissedAt.String)
		a.DismissedAt = &t
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &a, nil
}
