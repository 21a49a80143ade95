package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jmylchreest/hone/internal/models"
)

func createTestAccount(t *testing.T, repos *Repositories, name string) *models.Account {
	t.Helper()
	a := &models.Account{Name: name, Type: "checking", Currency: "USD"}
	if err := repos.Account.Create(context.Background(), a); err != nil {
		t.Fatalf("Create(account %q) error = %v", name, err)
	}
	return a
}

// TestSubscriptionRepository_UpsertKeyedByAccount is the regression test for
// the (merchant, account_id) upsert key: the same merchant on two different
// accounts must not collapse into a single subscription row.
func TestSubscriptionRepository_UpsertKeyedByAccount(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	acctA := createTestAccount(t, repos, "Checking")
	acctB := createTestAccount(t, repos, "Savings")

	txA := mustCreateTransaction(t, repos, acctA.ID, "NETFLIX", -15.99)
	txB := mustCreateTransaction(t, repos, acctB.ID, "NETFLIX", -15.99)

	subA, err := repos.Subscription.Upsert(ctx, &models.Subscription{
		Merchant: "NETFLIX", AccountID: &acctA.ID, Amount: 15.99, Frequency: models.FrequencyMonthly,
	}, txA.ID)
	if err != nil {
		t.Fatalf("Upsert(acctA) error = %v", err)
	}

	subB, err := repos.Subscription.Upsert(ctx, &models.Subscription{
		Merchant: "NETFLIX", AccountID: &acctB.ID, Amount: 15.99, Frequency: models.FrequencyMonthly,
	}, txB.ID)
	if err != nil {
		t.Fatalf("Upsert(acctB) error = %v", err)
	}

	if subA.ID == subB.ID {
		t.Fatalf("subscriptions for the same merchant on different accounts collapsed into one row (id %d)", subA.ID)
	}

	all, err := repos.Subscription.List(ctx, true)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("List() returned %d subscriptions, want 2", len(all))
	}
}

// TestSubscriptionRepository_UpsertNullAccountIsOwnBucket verifies a nil
// account_id is its own bucket rather than matching every account's rows.
func TestSubscriptionRepository_UpsertNullAccountIsOwnBucket(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	acct := createTestAccount(t, repos, "Checking")

	txKnown := mustCreateTransaction(t, repos, acct.ID, "SPOTIFY", -9.99)
	txUnknown := mustCreateTransaction(t, repos, acct.ID, "SPOTIFY", -9.99)

	known, err := repos.Subscription.Upsert(ctx, &models.Subscription{
		Merchant: "SPOTIFY", AccountID: &acct.ID, Amount: 9.99, Frequency: models.FrequencyMonthly,
	}, txKnown.ID)
	if err != nil {
		t.Fatalf("Upsert(known account) error = %v", err)
	}

	unknown, err := repos.Subscription.Upsert(ctx, &models.Subscription{
		Merchant: "SPOTIFY", AccountID: nil, Amount: 9.99, Frequency: models.FrequencyMonthly,
	}, txUnknown.ID)
	if err != nil {
		t.Fatalf("Upsert(nil account) error = %v", err)
	}

	if known.ID == unknown.ID {
		t.Fatalf("nil-account subscription collapsed into the known-account row (id %d)", known.ID)
	}
}

func TestSubscriptionRepository_CancelThenResume(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	acct := createTestAccount(t, repos, "Checking")
	tx := mustCreateTransaction(t, repos, acct.ID, "GYM", -40)

	sub, err := repos.Subscription.Upsert(ctx, &models.Subscription{
		Merchant: "GYM", AccountID: &acct.ID, Amount: 40, Frequency: models.FrequencyMonthly,
	}, tx.ID)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if err := repos.Subscription.Cancel(ctx, sub.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	cancelled, err := repos.Subscription.GetByID(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if cancelled.Status != models.SubscriptionStatusCancelled {
		t.Errorf("Status = %q, want cancelled", cancelled.Status)
	}
	if cancelled.CancelledAt == nil {
		t.Fatal("expected CancelledAt to be set after Cancel()")
	}
	if cancelled.CancelledMonthlyAmount == nil || *cancelled.CancelledMonthlyAmount != 40 {
		t.Errorf("CancelledMonthlyAmount = %v, want 40", cancelled.CancelledMonthlyAmount)
	}

	resumeAt := time.Now().UTC()
	if err := repos.Subscription.Resume(ctx, sub.ID, 45, resumeAt); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	resumed, err := repos.Subscription.GetByID(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if resumed.Status != models.SubscriptionStatusActive {
		t.Errorf("Status = %q, want active", resumed.Status)
	}
	if resumed.Amount != 45 {
		t.Errorf("Amount = %v, want 45", resumed.Amount)
	}
	if !resumed.UserAcknowledged {
		t.Error("expected UserAcknowledged to be set by Resume()")
	}
}

var testTxSeq int

func mustCreateTransaction(t *testing.T, repos *Repositories, accountID int64, merchant string, amount float64) *models.Transaction {
	t.Helper()
	testTxSeq++
	tx := &models.Transaction{
		AccountID:   accountID,
		Date:        time.Now().UTC(),
		Description: merchant,
		Merchant:    merchant,
		Amount:      amount,
		Currency:    "USD",
		ImportHash:  fmt.Sprintf("test-hash-%d", testTxSeq),
	}
	if err := repos.Transaction.Create(context.Background(), tx); err != nil {
		t.Fatalf("Create(transaction %q) error = %v", merchant, err)
	}
	return tx
}
