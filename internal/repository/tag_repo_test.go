package repository

import (
	"context"
	"testing"

	"github.com/jmylchreest/hone/internal/models"
)

func createTestTag(t *testing.T, repos *Repositories, name string) *models.Tag {
	t.Helper()
	tag := &models.Tag{Name: name}
	if err := repos.Tag.Create(context.Background(), tag); err != nil {
		t.Fatalf("Create(%q) error = %v", name, err)
	}
	return tag
}

func TestTagRepository_CreateAndGetByID(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	tag := &models.Tag{Name: "Streaming", Color: "#ff0000", AutoPatterns: "netflix|hulu"}
	if err := repos.Tag.Create(ctx, tag); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if tag.ID == 0 {
		t.Fatal("expected ID to be assigned")
	}

	got, err := repos.Tag.GetByID(ctx, tag.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "Streaming" || got.AutoPatterns != "netflix|hulu" {
		t.Errorf("GetByID() = %+v, want Name=Streaming AutoPatterns=netflix|hulu", got)
	}
}

// TestTagRuleRepository_ListOrdering is the regression test for the rule
// ordering invariant: higher priority first, ties broken by id ascending.
func TestTagRuleRepository_ListOrdering(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	tag := createTestTag(t, repos, "Groceries")

	// Inserted out of priority order, with two rules sharing priority 5.
	ruleA := &models.TagRule{TagID: tag.ID, Pattern: "aldi", PatternType: models.PatternTypeContains, MatchField: "merchant", Priority: 5, Source: "user"}
	ruleB := &models.TagRule{TagID: tag.ID, Pattern: "tesco", PatternType: models.PatternTypeContains, MatchField: "merchant", Priority: 10, Source: "user"}
	ruleC := &models.TagRule{TagID: tag.ID, Pattern: "lidl", PatternType: models.PatternTypeExact, MatchField: "merchant", Priority: 5, Source: "user"}

	for _, r := range []*models.TagRule{ruleA, ruleB, ruleC} {
		if err := repos.TagRule.Create(ctx, r); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	rules, err := repos.TagRule.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(rules) != 3 {
		t.Fatalf("List() returned %d rules, want 3", len(rules))
	}

	// Priority 10 (ruleB) first, then the priority-5 tie broken by id
	// ascending: ruleA was created before ruleC, so it sorts first.
	wantOrder := []int64{ruleB.ID, ruleA.ID, ruleC.ID}
	for i, want := range wantOrder {
		if rules[i].ID != want {
			t.Errorf("rules[%d].ID = %d, want %d (order: %v)", i, rules[i].ID, want, ruleIDs(rules))
		}
	}
}

func TestTagRuleRepository_PatternTypeRoundTrip(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	tag := createTestTag(t, repos, "Utilities")

	rule := &models.TagRule{TagID: tag.ID, Pattern: `^ACME-\d+$`, PatternType: models.PatternTypeRegex, MatchField: "description", Priority: 1, Source: "ai"}
	if err := repos.TagRule.Create(ctx, rule); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	rules, err := repos.TagRule.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(rules) != 1 || rules[0].PatternType != models.PatternTypeRegex {
		t.Fatalf("List() = %+v, want a single regex rule", rules)
	}
}

func ruleIDs(rules []*models.TagRule) []int64 {
	ids := make([]int64, len(rules))
	for i, r := range rules {
		ids[i] = r.ID
	}
	return ids
}
