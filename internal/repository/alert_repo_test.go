package repository

import (
	"context"
	"testing"

	"github.com/jmylchreest/hone/internal/models"
)

func TestAlertRepository_CreateAndGetPersistsAIAnalysis(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	acct := createTestAccount(t, repos, "Checking")
	tx := mustCreateTransaction(t, repos, acct.ID, "NETFLIX", -9.99)

	sub, err := repos.Subscription.Upsert(ctx, &models.Subscription{
		Merchant: "NETFLIX", AccountID: &acct.ID, Amount: 9.99, Frequency: models.FrequencyMonthly,
	}, tx.ID)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	alert := &models.Alert{
		Type:           models.AlertTypeDuplicateService,
		SubscriptionID: &sub.ID,
		Message:        "Possible duplicate streaming services.",
		AIAnalysis:     "Netflix and Hulu both offer a similar catalog; consider keeping one.",
	}
	id, err := repos.Alert.CreateAlert(ctx, alert)
	if err != nil {
		t.Fatalf("CreateAlert() error = %v", err)
	}

	got, err := repos.Alert.GetAlert(ctx, id)
	if err != nil {
		t.Fatalf("GetAlert() error = %v", err)
	}
	if got.AIAnalysis != alert.AIAnalysis {
		t.Errorf("AIAnalysis = %q, want %q", got.AIAnalysis, alert.AIAnalysis)
	}

	list, err := repos.Alert.ListAlerts(ctx, false)
	if err != nil {
		t.Fatalf("ListAlerts() error = %v", err)
	}
	if len(list) != 1 || list[0].AIAnalysis != alert.AIAnalysis {
		t.Fatalf("ListAlerts() = %+v, want one alert carrying AIAnalysis", list)
	}
}

func TestAlertRepository_CreateAlertDedupesBySubscription(t *testing.T) {
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

	first, err := repos.Alert.CreateAlert(ctx, &models.Alert{Type: models.AlertTypeZombieSubscription, SubscriptionID: &sub.ID, Message: "unused in a while"})
	if err != nil {
		t.Fatalf("CreateAlert() error = %v", err)
	}
	second, err := repos.Alert.CreateAlert(ctx, &models.Alert{Type: models.AlertTypeZombieSubscription, SubscriptionID: &sub.ID, Message: "unused in a while, again"})
	if err != nil {
		t.Fatalf("CreateAlert() error = %v", err)
	}
	if first != second {
		t.Errorf("CreateAlert() returned a new id %d instead of deduping onto %d", second, first)
	}
}

func TestAlertRepository_DismissAndRestore(t *testing.T) {
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
	id, err := repos.Alert.CreateAlert(ctx, &models.Alert{Type: models.AlertTypeZombieSubscription, SubscriptionID: &sub.ID, Message: "unused"})
	if err != nil {
		t.Fatalf("CreateAlert() error = %v", err)
	}

	if err := repos.Alert.Dismiss(ctx, id); err != nil {
		t.Fatalf("Dismiss() error = %v", err)
	}
	active, err := repos.Alert.CountActive(ctx)
	if err != nil {
		t.Fatalf("CountActive() error = %v", err)
	}
	if active != 0 {
		t.Errorf("CountActive() = %d, want 0 after Dismiss()", active)
	}

	if err := repos.Alert.Restore(ctx, id); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	active, err = repos.Alert.CountActive(ctx)
	if err != nil {
		t.Fatalf("CountActive() error = %v", err)
	}
	if active != 1 {
		t.Errorf("CountActive() = %d, want 1 after Restore()", active)
	}
}
