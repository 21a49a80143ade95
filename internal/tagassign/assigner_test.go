package tagassign

import (
	"context"
	"sync"
	"testing"

	"github.com/jmylchreest/hone/internal/models"
	"github.com/jmylchreest/hone/internal/repository"
)

// fakeMerchantCacheRepo is an in-memory stand-in for MerchantCacheRepository.
type fakeMerchantCacheRepo struct {
	tags map[string]*models.MerchantTagCache
}

func newFakeMerchantCacheRepo() *fakeMerchantCacheRepo {
	return &fakeMerchantCacheRepo{tags: map[string]*models.MerchantTagCache{}}
}

func (f *fakeMerchantCacheRepo) GetTag(_ context.Context, merchant string) (*models.MerchantTagCache, error) {
	c, ok := f.tags[merchant]
	if !ok {
		return nil, nil
	}
	return c, nil
}
func (f *fakeMerchantCacheRepo) SetTag(_ context.Context, c *models.MerchantTagCache) error {
	f.tags[c.Merchant] = c
	return nil
}
func (f *fakeMerchantCacheRepo) GetNormalization(context.Context, string) (*models.MerchantNormalizationCache, error) {
	return nil, nil
}
func (f *fakeMerchantCacheRepo) SetNormalization(context.Context, *models.MerchantNormalizationCache) error {
	return nil
}
func (f *fakeMerchantCacheRepo) GetSubscriptionFlag(context.Context, string) (*models.MerchantSubscriptionCache, error) {
	return nil, nil
}
func (f *fakeMerchantCacheRepo) SetSubscriptionFlag(context.Context, *models.MerchantSubscriptionCache) error {
	return nil
}

func newTestAssigner(cache *fakeMerchantCacheRepo) *Assigner {
	if cache == nil {
		cache = newFakeMerchantCacheRepo()
	}
	repos := &repository.Repositories{MerchantCache: cache}
	return New(repos, nil, 1, nil)
}

func TestClassifyOne_LearnedStageShortCircuits(t *testing.T) {
	cache := newFakeMerchantCacheRepo()
	cache.tags["NETFLIX"] = &models.MerchantTagCache{Merchant: "NETFLIX", TagID: 7, Confidence: 0.9, Source: "ai"}
	a := newTestAssigner(cache)
	tx := &models.Transaction{Merchant: "Netflix"}
	fallback := &models.Tag{ID: 99, Name: FallbackTagName}

	b := &Breakdown{}
	var mu sync.Mutex
	tagID, source, _, err := a.classifyOne(context.Background(), tx, nil, nil, fallback, &mu, b)
	if err != nil {
		t.Fatalf("classifyOne() error = %v", err)
	}
	if tagID != 7 || source != "learned" {
		t.Errorf("tagID=%d source=%q, want 7/learned", tagID, source)
	}
	if b.ByOllamaCached != 1 || b.ByLearned != 0 {
		t.Errorf("breakdown = %+v, want a cache hit attributed to the AI-originated source", b)
	}
}

func TestClassifyOne_RuleStageBeatsPattern(t *testing.T) {
	a := newTestAssigner(nil)
	tx := &models.Transaction{Merchant: "Spotify USA", Description: "SPOTIFY USA"}
	rules := []*models.TagRule{
		{ID: 1, TagID: 10, Pattern: "spotify", PatternType: models.PatternTypeContains, MatchField: "merchant", Priority: 5},
	}
	tags := []*models.Tag{
		{ID: 20, Name: "Streaming", AutoPatterns: "spotify"},
	}
	fallback := &models.Tag{ID: 99, Name: FallbackTagName}

	b := &Breakdown{}
	var mu sync.Mutex
	tagID, source, _, err := a.classifyOne(context.Background(), tx, tags, rules, fallback, &mu, b)
	if err != nil {
		t.Fatalf("classifyOne() error = %v", err)
	}
	if tagID != 10 || source != "rule" {
		t.Errorf("tagID=%d source=%q, want 10/rule (rule stage should win over pattern)", tagID, source)
	}
	if b.ByRule != 1 || b.ByPattern != 0 {
		t.Errorf("breakdown = %+v, want ByRule=1 ByPattern=0", b)
	}
}

func TestClassifyOne_PatternStageBeatsBankCategory(t *testing.T) {
	a := newTestAssigner(nil)
	tx := &models.Transaction{Merchant: "Hulu", Description: "HULU STREAMING", BankCategory: "entertainment"}
	tags := []*models.Tag{
		{ID: 20, Name: "Streaming", AutoPatterns: "hulu|netflix"},
		{ID: 21, Name: "Entertainment"},
	}
	fallback := &models.Tag{ID: 99, Name: FallbackTagName}

	b := &Breakdown{}
	var mu sync.Mutex
	tagID, source, _, err := a.classifyOne(context.Background(), tx, tags, nil, fallback, &mu, b)
	if err != nil {
		t.Fatalf("classifyOne() error = %v", err)
	}
	if tagID != 20 || source != "pattern" {
		t.Errorf("tagID=%d source=%q, want 20/pattern", tagID, source)
	}
}

func TestClassifyOne_BankCategoryStage(t *testing.T) {
	a := newTestAssigner(nil)
	tx := &models.Transaction{Merchant: "Unknown Merchant", BankCategory: "Groceries"}
	tags := []*models.Tag{{ID: 5, Name: "Groceries"}}
	fallback := &models.Tag{ID: 99, Name: FallbackTagName}

	b := &Breakdown{}
	var mu sync.Mutex
	tagID, source, _, err := a.classifyOne(context.Background(), tx, tags, nil, fallback, &mu, b)
	if err != nil {
		t.Fatalf("classifyOne() error = %v", err)
	}
	if tagID != 5 || source != "bank_category" {
		t.Errorf("tagID=%d source=%q, want 5/bank_category", tagID, source)
	}
	if b.ByBankCategory != 1 {
		t.Errorf("breakdown = %+v, want ByBankCategory=1", b)
	}
}

func TestClassifyOne_FallsBackToOther(t *testing.T) {
	a := newTestAssigner(nil)
	tx := &models.Transaction{Merchant: "Totally Unknown"}
	fallback := &models.Tag{ID: 99, Name: FallbackTagName}

	b := &Breakdown{}
	var mu sync.Mutex
	tagID, source, _, err := a.classifyOne(context.Background(), tx, nil, nil, fallback, &mu, b)
	if err != nil {
		t.Fatalf("classifyOne() error = %v", err)
	}
	if tagID != 99 || source != "fallback" {
		t.Errorf("tagID=%d source=%q, want 99/fallback", tagID, source)
	}
	if b.FallbackToOther != 1 {
		t.Errorf("breakdown = %+v, want FallbackToOther=1", b)
	}
}

func TestRuleMatches_PatternTypes(t *testing.T) {
	tests := []struct {
		name    string
		rule    models.TagRule
		field   string
		matches bool
	}{
		{"contains match", models.TagRule{Pattern: "net", PatternType: models.PatternTypeContains}, "netflix", true},
		{"contains no match", models.TagRule{Pattern: "xyz", PatternType: models.PatternTypeContains}, "netflix", false},
		{"exact match", models.TagRule{Pattern: "netflix", PatternType: models.PatternTypeExact}, "netflix", true},
		{"exact no match on substring", models.TagRule{Pattern: "net", PatternType: models.PatternTypeExact}, "netflix", false},
		{"regex match", models.TagRule{Pattern: `^net.*x$`, PatternType: models.PatternTypeRegex}, "netflix", true},
		{"regex no match", models.TagRule{Pattern: `^xyz$`, PatternType: models.PatternTypeRegex}, "netflix", false},
		{"unset pattern type defaults to contains", models.TagRule{Pattern: "net"}, "netflix", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ruleMatches(&tt.rule, tt.field); got != tt.matches {
				t.Errorf("ruleMatches() = %v, want %v", got, tt.matches)
			}
		})
	}
}

func TestMatchRule_HighestPriorityWins(t *testing.T) {
	rules := []*models.TagRule{
		{ID: 1, TagID: 100, Pattern: "store", PatternType: models.PatternTypeContains, MatchField: "merchant", Priority: 1},
		{ID: 2, TagID: 200, Pattern: "store", PatternType: models.PatternTypeContains, MatchField: "merchant", Priority: 10},
	}
	tx := &models.Transaction{Merchant: "Corner Store"}
	// matchRule trusts caller-supplied ordering (TagRuleRepository.List
	// already orders by priority DESC, id ASC) rather than re-sorting, so
	// rules must be passed in that order here.
	ordered := []*models.TagRule{rules[1], rules[0]}
	tagID, ok := matchRule(tx, ordered)
	if !ok || tagID != 200 {
		t.Errorf("matchRule() = (%d, %v), want (200, true)", tagID, ok)
	}
}

func TestMatchAutoPattern_PicksLowestNamedTagOnTie(t *testing.T) {
	tags := []*models.Tag{
		{ID: 1, Name: "Zebra", AutoPatterns: "acme"},
		{ID: 2, Name: "Aardvark", AutoPatterns: "acme"},
	}
	tx := &models.Transaction{Description: "ACME CORP PAYMENT"}
	got := matchAutoPattern(tx, tags)
	if got == nil || got.Name != "Aardvark" {
		t.Errorf("matchAutoPattern() = %v, want Aardvark (lowest name on a tie)", got)
	}
}

func TestBankCategoryTagPath(t *testing.T) {
	path, ok := bankCategoryTagPath("Groceries")
	if !ok || path != "Groceries" {
		t.Errorf("bankCategoryTagPath(Groceries) = (%q, %v), want (Groceries, true)", path, ok)
	}
	if _, ok := bankCategoryTagPath("not a real category"); ok {
		t.Error("bankCategoryTagPath() matched an unknown category")
	}
}

func TestFindTagByPath_MatchesLeafSegment(t *testing.T) {
	tags := []*models.Tag{{ID: 1, Name: "Streaming"}}
	got := findTagByPath(tags, "Entertainment/Streaming")
	if got == nil || got.ID != 1 {
		t.Errorf("findTagByPath() = %v, want the Streaming tag", got)
	}
}
