package insight

import (
	"context"
	"testing"
	"time"

	"github.com/jmylchreest/hone/internal/models"
)

var fixedNow = time.Date(2026, time.July, 15, 12, 0, 0, 0, time.UTC)

func TestRefreshSavingsOpportunities_SeverityScalesWithAnnualSavings(t *testing.T) {
	subs := []*models.Subscription{
		{ID: 1, Merchant: "Dead Gym Membership", Amount: 50, Frequency: models.FrequencyMonthly, Status: models.SubscriptionStatusZombie},
		{ID: 2, Merchant: "Forgotten Cloud Storage", Amount: 5, Frequency: models.FrequencyMonthly, Status: models.SubscriptionStatusZombie},
		{ID: 3, Merchant: "Active Streaming", Amount: 15, Frequency: models.FrequencyMonthly, Status: models.SubscriptionStatusActive},
	}
	findings := newFakeInsightFindingRepo()
	e := newTestEngine(subs, nil, nil, findings)
	e.now = func() time.Time { return fixedNow }

	if err := e.refreshSavingsOpportunities(context.Background()); err != nil {
		t.Fatalf("refreshSavingsOpportunities() error = %v", err)
	}

	gymFinding, err := findings.GetByKey(context.Background(), "savings_opportunity", "zombie:1")
	if err != nil {
		t.Fatalf("GetByKey(zombie:1) error = %v", err)
	}
	if gymFinding.Severity != models.SeverityAlert {
		t.Errorf("gym subscription ($600/yr) severity = %v, want alert", gymFinding.Severity)
	}

	storageFinding, err := findings.GetByKey(context.Background(), "savings_opportunity", "zombie:2")
	if err != nil {
		t.Fatalf("GetByKey(zombie:2) error = %v", err)
	}
	if storageFinding.Severity != models.SeverityAttention {
		t.Errorf("storage subscription ($60/yr) severity = %v, want attention", storageFinding.Severity)
	}

	if _, err := findings.GetByKey(context.Background(), "savings_opportunity", "zombie:3"); err == nil {
		t.Error("expected no savings_opportunity finding for a non-zombie subscription")
	}
}

func TestRefreshExpenseForecasts_FlagsChargeWithin30Days(t *testing.T) {
	subs := []*models.Subscription{
		{ID: 1, Merchant: "Netflix", Amount: 15.99, Frequency: models.FrequencyMonthly, Status: models.SubscriptionStatusActive, LastSeen: fixedNow.AddDate(0, 0, -25)},
		{ID: 2, Merchant: "Domain Renewal", Amount: 12, Frequency: models.FrequencyYearly, Status: models.SubscriptionStatusActive, LastSeen: fixedNow.AddDate(0, -11, -20)},
	}
	findings := newFakeInsightFindingRepo()
	e := newTestEngine(subs, nil, nil, findings)
	e.now = func() time.Time { return fixedNow }

	if err := e.refreshExpenseForecasts(context.Background()); err != nil {
		t.Fatalf("refreshExpenseForecasts() error = %v", err)
	}

	if _, err := findings.GetByKey(context.Background(), "expense_forecast", "upcoming:1"); err != nil {
		t.Errorf("expected an upcoming forecast for the subscription renewing within 30 days: %v", err)
	}
}

func TestRefreshExpenseForecasts_FlagsLargeAnnualChargeAsAttention(t *testing.T) {
	subs := []*models.Subscription{
		{ID: 1, Merchant: "Annual Insurance", Amount: 480, Frequency: models.FrequencyYearly, Status: models.SubscriptionStatusActive, LastSeen: fixedNow.AddDate(-1, 0, 10)},
	}
	findings := newFakeInsightFindingRepo()
	e := newTestEngine(subs, nil, nil, findings)
	e.now = func() time.Time { return fixedNow }

	if err := e.refreshExpenseForecasts(context.Background()); err != nil {
		t.Fatalf("refreshExpenseForecasts() error = %v", err)
	}

	finding, err := findings.GetByKey(context.Background(), "expense_forecast", "upcoming:1")
	if err != nil {
		t.Fatalf("GetByKey() error = %v", err)
	}
	if finding.Severity != models.SeverityAttention {
		t.Errorf("large annual charge severity = %v, want attention", finding.Severity)
	}
}

// TestRefreshSpendingExplanations_FlagsAnomalyAboveThreshold is the seed
// scenario for the spending-anomaly threshold: a tag whose current month is
// materially above its trailing baseline (both in percent and absolute
// dollar terms) should be flagged, and one below either threshold should not.
func TestRefreshSpendingExplanations_FlagsAnomalyAboveThreshold(t *testing.T) {
	tags := []*models.Tag{
		{ID: 1, Name: "Dining"},
		{ID: 2, Name: "Groceries"},
		{ID: 3, Name: "Entertainment"},
	}
	reports := newFakeReportRepo()
	e := newTestEngine(nil, tags, reports, nil)
	e.now = func() time.Time { return fixedNow }

	monthStart := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)
	baselineStart := monthStart.AddDate(0, -3, 0)

	// Dining: $300 this month vs a $100/mo baseline (200% over, well above
	// both the 15% and $25 thresholds) -> flagged.
	reports.set(1, monthStart, 300)
	reports.set(1, baselineStart, 300) // baseline total over 3 months -> $100/mo

	// Groceries: $205 vs $200/mo baseline -> 2.5% change, below the 15%
	// threshold even though the $5 delta would otherwise be tiny too -> not flagged.
	reports.set(2, monthStart, 205)
	reports.set(2, baselineStart, 600)

	// Entertainment: baseline under $50/mo is too small a base to reason
	// about percentage swings -> not flagged regardless of current spend.
	reports.set(3, monthStart, 80)
	reports.set(3, baselineStart, 90)

	if err := e.refreshSpendingExplanations(context.Background()); err != nil {
		t.Fatalf("refreshSpendingExplanations() error = %v", err)
	}

	diningFindings, _ := e.repos.InsightFinding.List(context.Background(), false)
	var diningFlagged, groceriesFlagged, entertainmentFlagged bool
	for _, f := range diningFindings {
		switch f.Key {
		case "spending:1:2026-07":
			diningFlagged = true
		case "spending:2:2026-07":
			groceriesFlagged = true
		case "spending:3:2026-07":
			entertainmentFlagged = true
		}
	}
	if !diningFlagged {
		t.Error("expected Dining to be flagged as a spending anomaly")
	}
	if groceriesFlagged {
		t.Error("did not expect Groceries to be flagged (change below the 15% threshold)")
	}
	if entertainmentFlagged {
		t.Error("did not expect Entertainment to be flagged (baseline under $50/mo)")
	}
}

func TestRefreshAll_PrunesExpiredFindings(t *testing.T) {
	findings := newFakeInsightFindingRepo()
	e := newTestEngine(nil, nil, nil, findings)
	e.now = func() time.Time { return fixedNow }

	if err := e.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll() error = %v", err)
	}
	if findings.deleted != 1 {
		t.Errorf("DeleteExpired called %d times, want 1", findings.deleted)
	}
}
