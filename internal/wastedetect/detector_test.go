package wastedetect

import (
	"context"
	"testing"
	"time"

	"github.com/jmylchreest/hone/internal/models"
)

func daysAgo(n int) time.Time { return time.Now().UTC().AddDate(0, 0, -n) }

// TestDetectRecurringCharges_GroupsByMerchantAndAccount is the regression
// test for recurring-charge discovery: the same merchant charged on two
// different accounts must promote to two separate subscriptions instead of
// being collapsed into one.
func TestDetectRecurringCharges_GroupsByMerchantAndAccount(t *testing.T) {
	var txs []*models.Transaction
	id := int64(1)
	for _, acct := range []int64{1, 2} {
		for i := 0; i < 3; i++ {
			txs = append(txs, &models.Transaction{
				ID: id, AccountID: acct, Merchant: "NETFLIX",
				Amount: -15.99, Date: daysAgo(30 * (3 - i)),
			})
			id++
		}
	}
	txRepo := newFakeTransactionRepo(txs...)
	subRepo := newFakeSubscriptionRepo()
	d := newTestDetector(Config{MinOccurrences: 3}, txRepo, subRepo, nil, nil, nil)

	counts := &Counts{}
	if err := d.detectRecurringCharges(context.Background(), counts); err != nil {
		t.Fatalf("detectRecurringCharges() error = %v", err)
	}
	if counts.RecurringPromoted != 2 {
		t.Fatalf("RecurringPromoted = %d, want 2 (one per account)", counts.RecurringPromoted)
	}
	subs, _ := subRepo.List(context.Background(), true)
	if len(subs) != 2 {
		t.Fatalf("got %d subscriptions, want 2", len(subs))
	}
	seen := map[int64]bool{}
	for _, s := range subs {
		if s.AccountID == nil {
			t.Fatal("expected AccountID to be set on promoted subscription")
		}
		seen[*s.AccountID] = true
	}
	if !seen[1] || !seen[2] {
		t.Fatalf("expected one subscription per account, got accounts %v", seen)
	}
}

// TestDetectResumes_ReactivatesCancelledSubscription covers spec seed
// scenario #3: a cancelled subscription charged again is reactivated with
// the new amount, and an alert carries both the old and new amounts.
func TestDetectResumes_ReactivatesCancelledSubscription(t *testing.T) {
	cancelledAt := daysAgo(20)
	accountID := int64(1)
	sub := &models.Subscription{
		ID: 1, Merchant: "GYM", AccountID: &accountID, Amount: 40,
		Frequency: models.FrequencyMonthly, Status: models.SubscriptionStatusCancelled,
		CancelledAt: &cancelledAt, LastSeen: daysAgo(1),
	}
	newCharge := &models.Transaction{ID: 100, AccountID: accountID, Merchant: "GYM", Amount: -45, Date: daysAgo(1)}

	subRepo := newFakeSubscriptionRepo(sub)
	subRepo.linkTransactions(sub.ID, newCharge.ID)
	txRepo := newFakeTransactionRepo(newCharge)
	alertRepo := &fakeAlertRepo{}
	d := newTestDetector(Config{}, txRepo, subRepo, alertRepo, nil, nil)

	counts := &Counts{}
	if err := d.detectResumes(context.Background(), counts); err != nil {
		t.Fatalf("detectResumes() error = %v", err)
	}
	if counts.Resumes != 1 {
		t.Fatalf("Resumes = %d, want 1", counts.Resumes)
	}
	if sub.Status != models.SubscriptionStatusActive {
		t.Errorf("Status = %q, want active", sub.Status)
	}
	if sub.Amount != 45 {
		t.Errorf("Amount = %v, want 45", sub.Amount)
	}
	if len(alertRepo.alerts) != 1 || alertRepo.alerts[0].Type != models.AlertTypeResume {
		t.Fatalf("alerts = %+v, want a single resume alert", alertRepo.alerts)
	}
}

func TestDetectResumes_SkipsSubscriptionsNotRecharged(t *testing.T) {
	cancelledAt := daysAgo(5)
	sub := &models.Subscription{
		ID: 1, Merchant: "GYM", Amount: 40, Frequency: models.FrequencyMonthly,
		Status: models.SubscriptionStatusCancelled, CancelledAt: &cancelledAt, LastSeen: daysAgo(10),
	}
	subRepo := newFakeSubscriptionRepo(sub)
	d := newTestDetector(Config{}, nil, subRepo, nil, nil, nil)

	counts := &Counts{}
	if err := d.detectResumes(context.Background(), counts); err != nil {
		t.Fatalf("detectResumes() error = %v", err)
	}
	if counts.Resumes != 0 {
		t.Fatalf("Resumes = %d, want 0 for a subscription that was never recharged", counts.Resumes)
	}
}

// TestDetectPriceIncreases_FlagsChangeAboveThreshold covers the price-increase
// detection pass: the latest charge compared against the trailing median.
func TestDetectPriceIncreases_FlagsChangeAboveThreshold(t *testing.T) {
	sub := &models.Subscription{ID: 1, Merchant: "STREAMCO", Amount: 10, Frequency: models.FrequencyMonthly, Status: models.SubscriptionStatusActive}
	txs := []*models.Transaction{
		{ID: 1, Merchant: "STREAMCO", Amount: -10, Date: daysAgo(90)},
		{ID: 2, Merchant: "STREAMCO", Amount: -10, Date: daysAgo(60)},
		{ID: 3, Merchant: "STREAMCO", Amount: -10, Date: daysAgo(30)},
		{ID: 4, Merchant: "STREAMCO", Amount: -13, Date: daysAgo(1)}, // 30% jump
	}
	subRepo := newFakeSubscriptionRepo(sub)
	for _, tx := range txs {
		subRepo.linkTransactions(sub.ID, tx.ID)
	}
	txRepo := newFakeTransactionRepo(txs...)
	alertRepo := &fakeAlertRepo{}
	d := newTestDetector(Config{MinOccurrences: 3}, txRepo, subRepo, alertRepo, nil, nil)

	counts := &Counts{}
	if err := d.detectPriceIncreases(context.Background(), counts); err != nil {
		t.Fatalf("detectPriceIncreases() error = %v", err)
	}
	if counts.PriceIncreases != 1 {
		t.Fatalf("PriceIncreases = %d, want 1", counts.PriceIncreases)
	}
	if len(alertRepo.alerts) != 1 || alertRepo.alerts[0].Type != models.AlertTypePriceIncrease {
		t.Fatalf("alerts = %+v, want a single price_increase alert", alertRepo.alerts)
	}
}

func TestDetectPriceIncreases_IgnoresMinorFluctuation(t *testing.T) {
	sub := &models.Subscription{ID: 1, Merchant: "STREAMCO", Amount: 10, Frequency: models.FrequencyMonthly, Status: models.SubscriptionStatusActive}
	txs := []*models.Transaction{
		{ID: 1, Merchant: "STREAMCO", Amount: -10.00, Date: daysAgo(90)},
		{ID: 2, Merchant: "STREAMCO", Amount: -10.00, Date: daysAgo(60)},
		{ID: 3, Merchant: "STREAMCO", Amount: -10.00, Date: daysAgo(30)},
		{ID: 4, Merchant: "STREAMCO", Amount: -10.20, Date: daysAgo(1)}, // 2% jump, under threshold
	}
	subRepo := newFakeSubscriptionRepo(sub)
	for _, tx := range txs {
		subRepo.linkTransactions(sub.ID, tx.ID)
	}
	txRepo := newFakeTransactionRepo(txs...)
	d := newTestDetector(Config{MinOccurrences: 3}, txRepo, subRepo, nil, nil, nil)

	counts := &Counts{}
	if err := d.detectPriceIncreases(context.Background(), counts); err != nil {
		t.Fatalf("detectPriceIncreases() error = %v", err)
	}
	if counts.PriceIncreases != 0 {
		t.Fatalf("PriceIncreases = %d, want 0 for a sub-threshold fluctuation", counts.PriceIncreases)
	}
}

// TestDetectDuplicates_ClustersByTypicalTagCategory covers the corrected
// duplicate-clustering key: two subscriptions with unrelated merchant names
// still cluster when their linked transactions share a typical tag whose
// root ancestor category matches.
func TestDetectDuplicates_ClustersByTypicalTagCategory(t *testing.T) {
	entertainment := &models.Tag{ID: 1, Name: "Entertainment"}
	streamingParentID := entertainment.ID
	streaming := &models.Tag{ID: 2, Name: "Streaming", ParentID: &streamingParentID}
	tagRepo := newFakeTagRepo(entertainment, streaming)

	netflix := &models.Subscription{ID: 1, Merchant: "Netflix Basic", Amount: 9.99, Frequency: models.FrequencyMonthly, Status: models.SubscriptionStatusActive}
	hulu := &models.Subscription{ID: 2, Merchant: "Hulu Premium", Amount: 12.99, Frequency: models.FrequencyMonthly, Status: models.SubscriptionStatusActive}
	subRepo := newFakeSubscriptionRepo(netflix, hulu)
	subRepo.linkTransactions(netflix.ID, 1)
	subRepo.linkTransactions(hulu.ID, 2)

	ttRepo := newFakeTransactionTagRepo()
	ttRepo.assign(1, streaming.ID)
	ttRepo.assign(2, streaming.ID)

	alertRepo := &fakeAlertRepo{}
	d := newTestDetector(Config{DuplicateMinCost: 5}, nil, subRepo, alertRepo, tagRepo, ttRepo)

	counts := &Counts{}
	if err := d.detectDuplicates(context.Background(), counts); err != nil {
		t.Fatalf("detectDuplicates() error = %v", err)
	}
	if counts.Duplicates != 1 {
		t.Fatalf("Duplicates = %d, want 1 (Netflix Basic and Hulu Premium share the Entertainment category)", counts.Duplicates)
	}
	if len(alertRepo.alerts) != 1 {
		t.Fatalf("alerts = %+v, want a single duplicate alert", alertRepo.alerts)
	}
	if alertRepo.alerts[0].SubscriptionID == nil || *alertRepo.alerts[0].SubscriptionID != netflix.ID {
		t.Errorf("SubscriptionID = %v, want the lowest-id subscription (%d)", alertRepo.alerts[0].SubscriptionID, netflix.ID)
	}
}

func TestDetectDuplicates_UnrelatedCategoriesDoNotCluster(t *testing.T) {
	entertainment := &models.Tag{ID: 1, Name: "Entertainment"}
	utilities := &models.Tag{ID: 2, Name: "Utilities"}
	tagRepo := newFakeTagRepo(entertainment, utilities)

	netflix := &models.Subscription{ID: 1, Merchant: "Netflix", Amount: 9.99, Frequency: models.FrequencyMonthly, Status: models.SubscriptionStatusActive}
	power := &models.Subscription{ID: 2, Merchant: "Power Co", Amount: 60, Frequency: models.FrequencyMonthly, Status: models.SubscriptionStatusActive}
	subRepo := newFakeSubscriptionRepo(netflix, power)
	subRepo.linkTransactions(netflix.ID, 1)
	subRepo.linkTransactions(power.ID, 2)

	ttRepo := newFakeTransactionTagRepo()
	ttRepo.assign(1, entertainment.ID)
	ttRepo.assign(2, utilities.ID)

	d := newTestDetector(Config{DuplicateMinCost: 5}, nil, subRepo, nil, tagRepo, ttRepo)

	counts := &Counts{}
	if err := d.detectDuplicates(context.Background(), counts); err != nil {
		t.Fatalf("detectDuplicates() error = %v", err)
	}
	if counts.Duplicates != 0 {
		t.Fatalf("Duplicates = %d, want 0 for unrelated categories", counts.Duplicates)
	}
}

// TestDetectZombies_FlagsInactiveSubscription covers spec seed scenario #2.
func TestDetectZombies_FlagsInactiveSubscription(t *testing.T) {
	sub := &models.Subscription{
		ID: 1, Merchant: "OLDGYM", Amount: 20, Frequency: models.FrequencyMonthly,
		Status: models.SubscriptionStatusActive, LastSeen: daysAgo(120),
	}
	subRepo := newFakeSubscriptionRepo(sub)
	alertRepo := &fakeAlertRepo{}
	d := newTestDetector(Config{InactiveThreshold: 90 * 24 * time.Hour}, nil, subRepo, alertRepo, nil, nil)

	counts := &Counts{}
	if err := d.detectZombies(context.Background(), counts); err != nil {
		t.Fatalf("detectZombies() error = %v", err)
	}
	if counts.ZombiesFlagged != 1 {
		t.Fatalf("ZombiesFlagged = %d, want 1", counts.ZombiesFlagged)
	}
	if sub.Status != models.SubscriptionStatusZombie {
		t.Errorf("Status = %q, want zombie", sub.Status)
	}
	if len(alertRepo.alerts) != 1 || alertRepo.alerts[0].Type != models.AlertTypeZombieSubscription {
		t.Fatalf("alerts = %+v, want a single zombie alert", alertRepo.alerts)
	}
}

func TestDetectZombies_SkipsRecentlyAcknowledged(t *testing.T) {
	ackAt := daysAgo(5)
	sub := &models.Subscription{
		ID: 1, Merchant: "OLDGYM", Amount: 20, Frequency: models.FrequencyMonthly,
		Status: models.SubscriptionStatusActive, LastSeen: daysAgo(120), AcknowledgedAt: &ackAt,
	}
	subRepo := newFakeSubscriptionRepo(sub)
	d := newTestDetector(Config{InactiveThreshold: 90 * 24 * time.Hour, StaleAckThreshold: 90 * 24 * time.Hour}, nil, subRepo, nil, nil, nil)

	counts := &Counts{}
	if err := d.detectZombies(context.Background(), counts); err != nil {
		t.Fatalf("detectZombies() error = %v", err)
	}
	if counts.ZombiesFlagged != 0 {
		t.Fatalf("ZombiesFlagged = %d, want 0 for a fresh acknowledgement", counts.ZombiesFlagged)
	}
}
