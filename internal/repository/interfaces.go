// Package repository defines data-access interfaces over the store.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmylchreest/hone/internal/models"
)

// AccountRepository defines methods for account data access.
type AccountRepository interface {
	Create(ctx context.Context, a *models.Account) error
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	List(ctx context.Context) ([]*models.Account, error)
	Update(ctx context.Context, a *models.Account) error
	Delete(ctx context.Context, id int64) error
}

// TransactionFilter narrows a transaction listing query.
type TransactionFilter struct {
	AccountID    *int64
	TagID        *int64
	Merchant     string
	From         *time.Time
	To           *time.Time
	Untagged     bool
	IncludeExcl  bool
	Limit        int
	Offset       int
}

// TransactionRepository defines methods for transaction data access.
type TransactionRepository interface {
	Create(ctx context.Context, t *models.Transaction) error
	CreateBatch(ctx context.Context, ts []*models.Transaction) (inserted int, skipped int, err error)
	GetByID(ctx context.Context, id int64) (*models.Transaction, error)
	GetByImportHash(ctx context.Context, accountID int64, hash string) (*models.Transaction, error)
	List(ctx context.Context, filter TransactionFilter) ([]*models.Transaction, error)
	Update(ctx context.Context, t *models.Transaction) error
	SetExcluded(ctx context.Context, id int64, excluded bool) error
	CountUntagged(ctx context.Context) (int, error)
	Count(ctx context.Context) (int, error)
}

// TagRepository defines methods for tag data access.
type TagRepository interface {
	Create(ctx context.Context, t *models.Tag) error
	GetByID(ctx context.Context, id int64) (*models.Tag, error)
	GetByName(ctx context.Context, name string, parentID *int64) (*models.Tag, error)
	List(ctx context.Context) ([]*models.Tag, error)
	// Descendants returns the tag itself and all of its descendants, via a
	// recursive CTE over the parent_id hierarchy.
	Descendants(ctx context.Context, tagID int64) ([]*models.Tag, error)
	Delete(ctx context.Context, id int64) error
}

// TagRuleRepository defines methods for tag rule data access.
type TagRuleRepository interface {
	Create(ctx context.Context, r *models.TagRule) error
	List(ctx context.Context) ([]*models.TagRule, error)
	Delete(ctx context.Context, id int64) error
}

// TransactionTagRepository defines methods for transaction/tag link data access.
type TransactionTagRepository interface {
	Assign(ctx context.Context, tt *models.TransactionTag) error
	ListByTransaction(ctx context.Context, transactionID int64) ([]*models.TransactionTag, error)
	Unassign(ctx context.Context, transactionID, tagID int64) error
}

// SubscriptionRepository defines methods for subscription data access.
type SubscriptionRepository interface {
	// Upsert inserts a new subscription or updates last_seen for an existing
	// (merchant, account_id) match, and links the transaction.
	Upsert(ctx context.Context, s *models.Subscription, transactionID int64) (*models.Subscription, error)
	GetByID(ctx context.Context, id int64) (*models.Subscription, error)
	List(ctx context.Context, includeExcluded bool) ([]*models.Subscription, error)
	UpdateStatus(ctx context.Context, id int64, status models.SubscriptionStatus) error
	Acknowledge(ctx context.Context, id int64) error
	Reactivate(ctx context.Context, id int64) error
	// Cancel marks a subscription cancelled, recording the amount it was
	// cancelled at for a later Resume to compare against.
	Cancel(ctx context.Context, id int64) error
	// Resume reactivates a cancelled subscription matched against a new
	// charge of amount seen at seenAt, marking it user-acknowledged.
	Resume(ctx context.Context, id int64, amount float64, seenAt time.Time) error
	Exclude(ctx context.Context, id int64) error
	Unexclude(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	TransactionIDs(ctx context.Context, subscriptionID int64) ([]int64, error)
}

// AlertRepository defines methods for alert and dashboard data access.
type AlertRepository interface {
	// CreateAlert dedupes on an existing undismissed alert of the same type
	// and subscription, returning the existing alert's id if found.
	CreateAlert(ctx context.Context, a *models.Alert) (int64, error)
	// CreateSpendingAnomalyAlert upserts the single active spending_anomaly
	// alert keyed by tag id, carried in spending_anomaly_data.
	CreateSpendingAnomalyAlert(ctx context.Context, data models.SpendingAnomalyData, message string) (int64, error)
	GetAlert(ctx context.Context, id int64) (*models.Alert, error)
	ListAlerts(ctx context.Context, includeDismissed bool) ([]*models.Alert, error)
	CountActive(ctx context.Context) (int, error)
	Dismiss(ctx context.Context, id int64) error
	Restore(ctx context.Context, id int64) error
	GetDashboardStats(ctx context.Context) (*models.DashboardStats, error)
}

// InsightFindingRepository defines methods for insight finding data access.
type InsightFindingRepository interface {
	// Upsert inserts or replaces a finding keyed by (insight_type, key).
	Upsert(ctx context.Context, f *models.InsightFinding) error
	List(ctx context.Context, activeOnly bool) ([]*models.InsightFinding, error)
	GetByKey(ctx context.Context, insightType, key string) (*models.InsightFinding, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// UserFeedbackRepository defines methods for user feedback data access.
type UserFeedbackRepository interface {
	Create(ctx context.Context, f *models.UserFeedback) error
	ListByTarget(ctx context.Context, targetType models.FeedbackTargetType, targetID int64) ([]*models.UserFeedback, error)
	RecentSummary(ctx context.Context, targetType models.FeedbackTargetType, limit int) ([]*models.UserFeedback, error)
}

// OllamaMetricRepository defines methods for AI call metric data access.
type OllamaMetricRepository interface {
	Record(ctx context.Context, m *models.OllamaMetric) error
	RecentFailureCount(ctx context.Context, taskType, model string, since time.Time) (int, error)
	Summary(ctx context.Context, since time.Time) ([]ModelHealthSummary, error)
}

// ModelHealthSummary aggregates recent call outcomes for one (backend, model) pair.
type ModelHealthSummary struct {
	Backend        string
	Model          string
	TotalCalls     int
	FailedCalls    int
	AvgDurationMs  float64
}

// ReceiptRepository defines methods for receipt data access.
type ReceiptRepository interface {
	Create(ctx context.Context, r *models.Receipt) error
	GetByID(ctx context.Context, id int64) (*models.Receipt, error)
	// Unmatched returns every receipt not yet linked to a transaction; no
	// date or amount window is applied.
	Unmatched(ctx context.Context) ([]*models.Receipt, error)
	LinkToTransaction(ctx context.Context, receiptID, transactionID int64) error
}

// MerchantCacheRepository defines methods for the three merchant lookup caches.
type MerchantCacheRepository interface {
	GetTag(ctx context.Context, merchant string) (*models.MerchantTagCache, error)
	SetTag(ctx context.Context, c *models.MerchantTagCache) error
	GetNormalization(ctx context.Context, rawDescription string) (*models.MerchantNormalizationCache, error)
	SetNormalization(ctx context.Context, c *models.MerchantNormalizationCache) error
	GetSubscriptionFlag(ctx context.Context, merchant string) (*models.MerchantSubscriptionCache, error)
	SetSubscriptionFlag(ctx context.Context, c *models.MerchantSubscriptionCache) error
}

// AuditRepository defines methods for the append-only audit log.
type AuditRepository interface {
	Log(ctx context.Context, e *models.AuditEntry) error
	List(ctx context.Context, limit, offset int) ([]*models.AuditEntry, error)
}

// SpendingByTag is one row of a spending-by-category report.
type SpendingByTag struct {
	TagID  int64
	TagName string
	Total  float64
	Count  int
}

// MerchantTotal is one row of a top-merchants report.
type MerchantTotal struct {
	Merchant string
	Total    float64
	Count    int
}

// ReportRepository defines methods for the read-only query surface's
// aggregate reports, backing both the HTTP dashboard and the tool-calling
// orchestrator's tools.
type ReportRepository interface {
	SpendingByTagInRange(ctx context.Context, from, to time.Time) ([]SpendingByTag, error)
	TopMerchants(ctx context.Context, from, to time.Time, limit int) ([]MerchantTotal, error)
	MonthlyTotalForTag(ctx context.Context, tagID int64, monthStart, monthEnd time.Time) (float64, error)
}

// Repositories holds all repository instances.
type Repositories struct {
	Account         AccountRepository
	Transaction     TransactionRepository
	Tag             TagRepository
	TagRule         TagRuleRepository
	TransactionTag  TransactionTagRepository
	Subscription    SubscriptionRepository
	Alert           AlertRepository
	InsightFinding  InsightFindingRepository
	UserFeedback    UserFeedbackRepository
	OllamaMetric    OllamaMetricRepository
	Receipt         ReceiptRepository
	MerchantCache   MerchantCacheRepository
	Audit           AuditRepository
	Report          ReportRepository
}

// NewRepositories creates all repository instances over the given store connection.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Account:        NewSQLiteAccountRepository(db),
		Transaction:    NewSQLiteTransactionRepository(db),
		Tag:            NewSQLiteTagRepository(db),
		TagRule:        NewSQLiteTagRuleRepository(db),
		TransactionTag: NewSQLiteTransactionTagRepository(db),
		Subscription:   NewSQLiteSubscriptionRepository(db),
		Alert:          NewSQLiteAlertRepository(db),
		InsightFinding: NewSQLiteInsightFindingRepository(db),
		UserFeedback:   NewSQLiteUserFeedbackRepository(db),
		OllamaMetric:   NewSQLiteOllamaMetricRepository(db),
		Receipt:        NewSQLiteReceiptRepository(db),
		MerchantCache:  NewSQLiteMerchantCacheRepository(db),
		Audit:          NewSQLiteAuditRepository(db),
		Report:         NewSQLiteReportRepository(db),
	}
}
