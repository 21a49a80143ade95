// Package routes registers the hone HTTP API's operations against a Huma
// API instance, shared between the main server and any future OpenAPI
// generation tooling.
package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/hone/internal/http/handlers"
	"github.com/jmylchreest/hone/internal/http/mw"
	"github.com/jmylchreest/hone/internal/version"
)

// NewHumaConfig builds the shared Huma configuration: API metadata, the
// bearer security scheme, and tag definitions.
func NewHumaConfig(baseURL string) huma.Config {
	cfg := huma.DefaultConfig("hone", version.Get().Short())
	cfg.Info.Description = "Self-hosted personal finance waste detector: recurring charges, zombie subscriptions, duplicate services, spending anomalies, and receipt reconciliation."
	cfg.CreateHooks = nil

	if baseURL != "" {
		cfg.Servers = []*huma.Server{{URL: baseURL, Description: "hone API server"}}
	}

	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		mw.SecurityScheme: {
			Type:        "http",
			Scheme:      "bearer",
			Description: "Bearer token, configured via HONE_API_TOKEN. Leave unset to run without auth on a trusted network.",
		},
	}

	cfg.Tags = []*huma.Tag{
		{Name: "Health", Description: "System health and status"},
		{Name: "Accounts", Description: "Bank and card account management"},
		{Name: "Transactions", Description: "Ledger import, listing, and tagging"},
		{Name: "Tags", Description: "Tag hierarchy and assignment rules"},
		{Name: "Subscriptions", Description: "Detected recurring charges"},
		{Name: "Alerts", Description: "Raised waste-detection alerts"},
		{Name: "Insights", Description: "Forward-looking spending insights"},
		{Name: "Receipts", Description: "Receipt parsing and transaction matching"},
		{Name: "Reports", Description: "Spending aggregates"},
		{Name: "Backups", Description: "Database snapshot management"},
		{Name: "AI", Description: "AI backend call metrics and chat"},
		{Name: "Feedback", Description: "Corrections to AI-derived judgments"},
	}

	return cfg
}

// Register registers every hone API operation against api.
func Register(api huma.API, h *handlers.Handlers) {
	// Public
	mw.PublicGet(api, "/api/v1/health", h.HealthCheck, mw.WithTags("Health"), mw.WithSummary("Health check"), mw.WithOperationID("healthCheck"))
	mw.HiddenGet(api, "/healthz", h.Livez)
	mw.HiddenGet(api, "/readyz", h.Readyz)

	// Accounts
	mw.ProtectedGet(api, "/api/v1/accounts", h.ListAccounts, mw.WithTags("Accounts"), mw.WithSummary("List accounts"), mw.WithOperationID("listAccounts"))
	mw.ProtectedPost(api, "/api/v1/accounts", h.CreateAccount, mw.WithTags("Accounts"), mw.WithSummary("Create account"), mw.WithOperationID("createAccount"))
	mw.ProtectedGet(api, "/api/v1/accounts/{id}", h.GetAccount, mw.WithTags("Accounts"), mw.WithSummary("Get account"), mw.WithOperationID("getAccount"))
	mw.ProtectedPut(api, "/api/v1/accounts/{id}", h.UpdateAccount, mw.WithTags("Accounts"), mw.WithSummary("Update account"), mw.WithOperationID("updateAccount"))
	mw.ProtectedDelete(api, "/api/v1/accounts/{id}", h.DeleteAccount, mw.WithTags("Accounts"), mw.WithSummary("Delete account"), mw.WithOperationID("deleteAccount"))

	// Transactions
	mw.ProtectedGet(api, "/api/v1/transactions", h.ListTransactions, mw.WithTags("Transactions"), mw.WithSummary("List transactions"), mw.WithOperationID("listTransactions"))
	mw.ProtectedPost(api, "/api/v1/transactions/import", h.ImportTransactions, mw.WithTags("Transactions"), mw.WithSummary("Import statement lines"), mw.WithOperationID("importTransactions"))
	mw.ProtectedGet(api, "/api/v1/transactions/{id}", h.GetTransaction, mw.WithTags("Transactions"), mw.WithSummary("Get transaction"), mw.WithOperationID("getTransaction"))
	mw.ProtectedPut(api, "/api/v1/transactions/{id}/excluded", h.SetTransactionExcluded, mw.WithTags("Transactions"), mw.WithSummary("Set transaction excluded"), mw.WithOperationID("setTransactionExcluded"))
	mw.ProtectedPost(api, "/api/v1/transactions/{id}/tags", h.AssignTag, mw.WithTags("Transactions"), mw.WithSummary("Assign tag to transaction"), mw.WithOperationID("assignTag"))
	mw.ProtectedDelete(api, "/api/v1/transactions/{id}/tags/{tagId}", h.UnassignTag, mw.WithTags("Transactions"), mw.WithSummary("Unassign tag from transaction"), mw.WithOperationID("unassignTag"))

	// Tags
	mw.ProtectedGet(api, "/api/v1/tags", h.ListTags, mw.WithTags("Tags"), mw.WithSummary("List tags"), mw.WithOperationID("listTags"))
	mw.ProtectedPost(api, "/api/v1/tags", h.CreateTag, mw.WithTags("Tags"), mw.WithSummary("Create tag"), mw.WithOperationID("createTag"))
	mw.ProtectedGet(api, "/api/v1/tags/{id}/descendants", h.GetTagDescendants, mw.WithTags("Tags"), mw.WithSummary("Get tag and descendants"), mw.WithOperationID("getTagDescendants"))
	mw.ProtectedDelete(api, "/api/v1/tags/{id}", h.DeleteTag, mw.WithTags("Tags"), mw.WithSummary("Delete tag"), mw.WithOperationID("deleteTag"))
	mw.ProtectedGet(api, "/api/v1/tag-rules", h.ListTagRules, mw.WithTags("Tags"), mw.WithSummary("List tag rules"), mw.WithOperationID("listTagRules"))
	mw.ProtectedPost(api, "/api/v1/tag-rules", h.CreateTagRule, mw.WithTags("Tags"), mw.WithSummary("Create tag rule"), mw.WithOperationID("createTagRule"))
	mw.ProtectedDelete(api, "/api/v1/tag-rules/{id}", h.DeleteTagRule, mw.WithTags("Tags"), mw.WithSummary("Delete tag rule"), mw.WithOperationID("deleteTagRule"))

	// Subscriptions
	mw.ProtectedGet(api, "/api/v1/subscriptions", h.ListSubscriptions, mw.WithTags("Subscriptions"), mw.WithSummary("List subscriptions"), mw.WithOperationID("listSubscriptions"))
	mw.ProtectedGet(api, "/api/v1/subscriptions/{id}", h.GetSubscription, mw.WithTags("Subscriptions"), mw.WithSummary("Get subscription"), mw.WithOperationID("getSubscription"))
	mw.ProtectedPost(api, "/api/v1/subscriptions/{id}/acknowledge", h.AcknowledgeSubscription, mw.WithTags("Subscriptions"), mw.WithSummary("Acknowledge subscription"), mw.WithOperationID("acknowledgeSubscription"))
	mw.ProtectedPost(api, "/api/v1/subscriptions/{id}/reactivate", h.ReactivateSubscription, mw.WithTags("Subscriptions"), mw.WithSummary("Reactivate subscription"), mw.WithOperationID("reactivateSubscription"))
	mw.ProtectedPost(api, "/api/v1/subscriptions/{id}/exclude", h.ExcludeSubscription, mw.WithTags("Subscriptions"), mw.WithSummary("Exclude subscription"), mw.WithOperationID("excludeSubscription"))
	mw.ProtectedPost(api, "/api/v1/subscriptions/{id}/unexclude", h.UnexcludeSubscription, mw.WithTags("Subscriptions"), mw.WithSummary("Unexclude subscription"), mw.WithOperationID("unexcludeSubscription"))
	mw.ProtectedPost(api, "/api/v1/subscriptions/{id}/cancel", h.CancelSubscription, mw.WithTags("Subscriptions"), mw.WithSummary("Mark subscription cancelled"), mw.WithOperationID("cancelSubscription"))
	mw.ProtectedDelete(api, "/api/v1/subscriptions/{id}", h.DeleteSubscription, mw.WithTags("Subscriptions"), mw.WithSummary("Delete subscription"), mw.WithOperationID("deleteSubscription"))

	// Alerts + dashboard
	mw.ProtectedGet(api, "/api/v1/alerts", h.ListAlerts, mw.WithTags("Alerts"), mw.WithSummary("List alerts"), mw.WithOperationID("listAlerts"))
	mw.ProtectedGet(api, "/api/v1/alerts/{id}", h.GetAlert, mw.WithTags("Alerts"), mw.WithSummary("Get alert"), mw.WithOperationID("getAlert"))
	mw.ProtectedPost(api, "/api/v1/alerts/{id}/dismiss", h.DismissAlert, mw.WithTags("Alerts"), mw.WithSummary("Dismiss alert"), mw.WithOperationID("dismissAlert"))
	mw.ProtectedPost(api, "/api/v1/alerts/{id}/restore", h.RestoreAlert, mw.WithTags("Alerts"), mw.WithSummary("Restore dismissed alert"), mw.WithOperationID("restoreAlert"))
	mw.ProtectedGet(api, "/api/v1/dashboard", h.Dashboard, mw.WithTags("Alerts"), mw.WithSummary("Get dashboard stats"), mw.WithOperationID("getDashboard"))

	// Insights
	mw.ProtectedGet(api, "/api/v1/insights", h.ListInsights, mw.WithTags("Insights"), mw.WithSummary("List insights"), mw.WithOperationID("listInsights"))

	// Receipts
	mw.ProtectedPost(api, "/api/v1/receipts", h.UploadReceipt, mw.WithTags("Receipts"), mw.WithSummary("Upload and parse a receipt"), mw.WithOperationID("uploadReceipt"))
	mw.ProtectedGet(api, "/api/v1/receipts/unmatched", h.ListUnmatchedReceipts, mw.WithTags("Receipts"), mw.WithSummary("List unmatched receipts"), mw.WithOperationID("listUnmatchedReceipts"))
	mw.ProtectedGet(api, "/api/v1/receipts/{id}", h.GetReceipt, mw.WithTags("Receipts"), mw.WithSummary("Get receipt"), mw.WithOperationID("getReceipt"))
	mw.ProtectedGet(api, "/api/v1/receipts/{id}/suggest-match", h.SuggestReceiptMatch, mw.WithTags("Receipts"), mw.WithSummary("Suggest transaction match"), mw.WithOperationID("suggestReceiptMatch"))
	mw.ProtectedPost(api, "/api/v1/receipts/{id}/link", h.LinkReceipt, mw.WithTags("Receipts"), mw.WithSummary("Link receipt to transaction"), mw.WithOperationID("linkReceipt"))

	// Reports
	mw.ProtectedGet(api, "/api/v1/reports/spending-by-tag", h.SpendingByTag, mw.WithTags("Reports"), mw.WithSummary("Spending by tag"), mw.WithOperationID("spendingByTag"))
	mw.ProtectedGet(api, "/api/v1/reports/top-merchants", h.TopMerchants, mw.WithTags("Reports"), mw.WithSummary("Top merchants"), mw.WithOperationID("topMerchants"))

	// Backups
	mw.ProtectedPost(api, "/api/v1/backups", h.CreateBackup, mw.WithTags("Backups"), mw.WithSummary("Create backup snapshot"), mw.WithOperationID("createBackup"))
	mw.ProtectedGet(api, "/api/v1/backups", h.ListBackups, mw.WithTags("Backups"), mw.WithSummary("List backup snapshots"), mw.WithOperationID("listBackups"))
	mw.ProtectedGet(api, "/api/v1/backups/verify", h.VerifyBackup, mw.WithTags("Backups"), mw.WithSummary("Verify backup snapshot"), mw.WithOperationID("verifyBackup"))
	mw.ProtectedPost(api, "/api/v1/backups/restore", h.RestoreBackup, mw.WithTags("Backups"), mw.WithSummary("Restore from backup"), mw.WithOperationID("restoreBackup"))

	// AI
	mw.ProtectedGet(api, "/api/v1/ai/metrics", h.AIMetrics, mw.WithTags("AI"), mw.WithSummary("AI backend call metrics"), mw.WithOperationID("aiMetrics"))
	mw.ProtectedPost(api, "/api/v1/ai/chat", h.Chat, mw.WithTags("AI"), mw.WithSummary("Ask a question about your finances"), mw.WithOperationID("chat"))

	// Feedback
	mw.ProtectedPost(api, "/api/v1/feedback", h.CreateFeedback, mw.WithTags("Feedback"), mw.WithSummary("Record a correction"), mw.WithOperationID("createFeedback"))
}
