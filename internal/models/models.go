// Package models defines the domain entities persisted by the store.
package models

import (
	"strings"
	"time"
)

// Account is a bank or card account whose statements are imported.
type Account struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Institution string    `json:"institution,omitempty"`
	Type        string    `json:"type"` // checking, savings, credit_card, cash
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Transaction is a single ledger entry imported from a statement.
type Transaction struct {
	ID             int64     `json:"id"`
	AccountID      int64     `json:"account_id"`
	Date           time.Time `json:"date"`
	Description    string    `json:"description"`
	Merchant       string    `json:"merchant,omitempty"`
	Amount         float64   `json:"amount"` // negative = debit, positive = credit
	Currency       string    `json:"currency"`
	ImportHash     string    `json:"import_hash"` // dedup key for re-imports
	Excluded       bool      `json:"excluded"`
	ReceiptID      *int64    `json:"receipt_id,omitempty"`
	NormalizedName string    `json:"normalized_name,omitempty"`
	BankCategory   string    `json:"bank_category,omitempty"` // category string as supplied by the import source, if any
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Tag is a hierarchical label applied to transactions.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	// AutoPatterns is a pipe-separated list of description substrings that
	// auto-assign this tag during the pattern stage, e.g. "netflix|hulu".
	AutoPatterns string    `json:"auto_patterns,omitempty"`
	ParentID     *int64    `json:"parent_id,omitempty"`
	Color        string    `json:"color,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// MatchPatterns splits AutoPatterns into its individual substrings, trimmed
// and with blanks dropped.
func (t *Tag) MatchPatterns() []string {
	if t.AutoPatterns == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(t.AutoPatterns, "|") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// PatternType enumerates how a TagRule's Pattern is matched against a transaction field.
type PatternType string

const (
	PatternTypeContains PatternType = "contains"
	PatternTypeRegex    PatternType = "regex"
	PatternTypeExact    PatternType = "exact"
)

// TagRule matches transactions by merchant or description pattern and assigns a tag.
type TagRule struct {
	ID          int64       `json:"id"`
	TagID       int64       `json:"tag_id"`
	Pattern     string      `json:"pattern"`
	PatternType PatternType `json:"pattern_type"` // contains, regex, exact
	MatchField  string      `json:"match_field"`  // merchant, description
	Priority    int         `json:"priority"`
	Source      string      `json:"source"` // user, ai, learned
	CreatedAt   time.Time   `json:"created_at"`
}

// TransactionTag links a transaction to a tag, recording how the link was made.
type TransactionTag struct {
	ID            int64     `json:"id"`
	TransactionID int64     `json:"transaction_id"`
	TagID         int64     `json:"tag_id"`
	Confidence    float64   `json:"confidence"` // 0..1, 1.0 for user-confirmed
	Source        string    `json:"source"`     // user, learned, rule, pattern, bank_category, ollama, fallback
	CreatedAt     time.Time `json:"created_at"`
}

// SubscriptionStatus enumerates lifecycle states of a detected subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusZombie    SubscriptionStatus = "zombie"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExcluded  SubscriptionStatus = "excluded"
)

// SubscriptionFrequency enumerates the detected billing cadence.
type SubscriptionFrequency string

const (
	FrequencyWeekly  SubscriptionFrequency = "weekly"
	FrequencyMonthly SubscriptionFrequency = "monthly"
	FrequencyYearly  SubscriptionFrequency = "yearly"
)

// Subscription is a detected recurring charge. Uniqueness is keyed on
// (Merchant, AccountID), with a nil AccountID treated as its own bucket
// rather than collapsing into every account's subscriptions.
type Subscription struct {
	ID        int64                 `json:"id"`
	Merchant  string                `json:"merchant"`
	AccountID *int64                `json:"account_id,omitempty"`
	Amount    float64               `json:"amount"`
	Frequency SubscriptionFrequency `json:"frequency"`
	Status    SubscriptionStatus    `json:"status"`
	FirstSeen  time.Time             `json:"first_seen"`
	LastSeen   time.Time             `json:"last_seen"`
	LastUsedAt *time.Time            `json:"last_used_at,omitempty"`
	// UserAcknowledged is set once a person has acted on (or dismissed) this
	// subscription, independent of AcknowledgedAt's staleness window.
	UserAcknowledged bool       `json:"user_acknowledged"`
	AcknowledgedAt   *time.Time `json:"acknowledged_at,omitempty"`
	// CancelledAt and CancelledMonthlyAmount are set when the subscription
	// was explicitly cancelled, so a later matching charge can be reported
	// as a resume against the amount it was cancelled at.
	CancelledAt            *time.Time `json:"cancelled_at,omitempty"`
	CancelledMonthlyAmount *float64   `json:"cancelled_monthly_amount,omitempty"`
	TransactionIDs         []int64    `json:"-"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// MonthlyEquivalent normalizes the charge to a monthly amount.
func (s *Subscription) MonthlyEquivalent() float64 {
	switch s.Frequency {
	case FrequencyWeekly:
		return s.Amount * 4.33
	case FrequencyYearly:
		return s.Amount / 12
	default:
		return s.Amount
	}
}

// AlertType enumerates the kinds of alerts the waste detector raises.
type AlertType string

const (
	AlertTypeZombieSubscription AlertType = "zombie_subscription"
	AlertTypeDuplicateService   AlertType = "duplicate_service"
	AlertTypeSpendingAnomaly    AlertType = "spending_anomaly"
	AlertTypeReceiptMismatch    AlertType = "receipt_mismatch"
	AlertTypePriceIncrease      AlertType = "price_increase"
	AlertTypeResume             AlertType = "resume"
)

// SpendingAnomalyData is the structured payload carried on a spending_anomaly Alert.
type SpendingAnomalyData struct {
	TagID          int64   `json:"tag_id"`
	TagName        string  `json:"tag_name"`
	CurrentAmount  float64 `json:"current_amount"`
	BaselineAmount float64 `json:"baseline_amount"`
	PercentChange  float64 `json:"percent_change"`
	Explanation    string  `json:"explanation,omitempty"`
}

// Alert is a raised, dismissible notification about a detected pathology.
// At most one undismissed alert exists per (Type, SubscriptionID), except
// spending_anomaly, which is keyed by tag id instead (see SpendingAnomalyData).
type Alert struct {
	ID                  int64      `json:"id"`
	Type                AlertType  `json:"type"`
	SubscriptionID      *int64     `json:"subscription_id,omitempty"`
	Message             string     `json:"message"`
	AIAnalysis          string     `json:"ai_analysis,omitempty"`
	SpendingAnomalyData *string    `json:"spending_anomaly_data,omitempty"` // JSON-encoded SpendingAnomalyData
	Dismissed           bool       `json:"dismissed"`
	DismissedAt         *time.Time `json:"dismissed_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Severity ranks an InsightFinding's urgency.
type Severity int

const (
	SeverityInfo      Severity = 1
	SeverityAttention Severity = 2
	SeverityWarning   Severity = 3
	SeverityAlert     Severity = 4
)

// Priority returns the sort weight used when ranking findings, highest first.
func (s Severity) Priority() int { return int(s) }

func (s Severity) String() string {
	switch s {
	case SeverityAlert:
		return "alert"
	case SeverityWarning:
		return "warning"
	case SeverityAttention:
		return "attention"
	default:
		return "info"
	}
}

// InsightFinding is a persisted output of one insight analyzer.
type InsightFinding struct {
	ID          int64      `json:"id"`
	InsightType string     `json:"insight_type"`
	Key         string     `json:"key"` // dedup/upsert key, e.g. "spending:dining:2026-07"
	Severity    Severity   `json:"severity"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary"`
	Detail      string     `json:"detail,omitempty"`
	DataJSON    string     `json:"data,omitempty"`
	DetectedAt  time.Time  `json:"detected_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// FeedbackTargetType enumerates what kind of entity a user correction applies to.
type FeedbackTargetType string

const (
	FeedbackTargetTransaction  FeedbackTargetType = "transaction"
	FeedbackTargetSubscription FeedbackTargetType = "subscription"
	FeedbackTargetInsight      FeedbackTargetType = "insight"
	FeedbackTargetReceiptMatch FeedbackTargetType = "receipt_match"
)

// UserFeedback records a correction a user makes to an AI-derived judgment,
// used to improve future prompt context.
type UserFeedback struct {
	ID         int64              `json:"id"`
	TargetType FeedbackTargetType `json:"target_type"`
	TargetID   int64              `json:"target_id"`
	Accepted   bool               `json:"accepted"`
	Correction string             `json:"correction,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

// OllamaMetric records one AI backend call for latency/health observability.
type OllamaMetric struct {
	ID           int64     `json:"id"`
	TaskType     string    `json:"task_type"`
	Model        string    `json:"model"`
	Backend      string    `json:"backend"`
	DurationMs   int64     `json:"duration_ms"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message,omitempty"`
	PromptTokens int       `json:"prompt_tokens,omitempty"`
	OutputTokens int       `json:"output_tokens,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Receipt is a parsed receipt/invoice matched against a transaction.
type Receipt struct {
	ID            int64     `json:"id"`
	TransactionID *int64    `json:"transaction_id,omitempty"`
	Merchant      string    `json:"merchant"`
	Subtotal      float64   `json:"subtotal"`
	Tax           float64   `json:"tax"`
	Tip           float64   `json:"tip"`
	Total         float64   `json:"total"`
	PurchasedAt   time.Time `json:"purchased_at"`
	RawText       string    `json:"raw_text,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// MerchantTagCache remembers the tag most recently assigned to a merchant,
// so the tag assigner's fast path can skip AI classification on repeat merchants.
type MerchantTagCache struct {
	Merchant   string    `json:"merchant"` // stored uppercased
	TagID      int64     `json:"tag_id"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"` // ai, rule, pattern, user_override
	UpdatedAt  time.Time `json:"updated_at"`
}

// MerchantNormalizationCache remembers the normalized display name for a raw
// statement description, so repeat merchants skip AI normalization.
type MerchantNormalizationCache struct {
	RawDescription string    `json:"raw_description"`
	NormalizedName string    `json:"normalized_name"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// MerchantSubscriptionCache remembers whether a merchant is known to be a
// subscription service, so repeat merchants skip AI classification.
type MerchantSubscriptionCache struct {
	Merchant       string    `json:"merchant"` // stored uppercased
	IsSubscription bool      `json:"is_subscription"`
	Source         string    `json:"source"` // ai, user_override
	UpdatedAt      time.Time `json:"updated_at"`
}

// AuditEntry is an append-only record of a user-initiated mutating operation.
type AuditEntry struct {
	ID         int64     `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	UserEmail  string    `json:"user_email,omitempty"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type,omitempty"`
	EntityID   *int64    `json:"entity_id,omitempty"`
	Details    string    `json:"details,omitempty"`
}

// DashboardStats is the aggregate the query surface exposes at /dashboard.
type DashboardStats struct {
	TotalTransactions       int     `json:"total_transactions"`
	TotalAccounts           int     `json:"total_accounts"`
	ActiveSubscriptions     int     `json:"active_subscriptions"`
	MonthlySubscriptionCost float64 `json:"monthly_subscription_cost"`
	ActiveAlerts            int     `json:"active_alerts"`
	PotentialMonthlySavings float64 `json:"potential_monthly_savings"`
	UntaggedTransactions    int     `json:"untagged_transactions"`
}
