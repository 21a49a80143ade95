// Package tagassign assigns tags to transactions via a layered pipeline:
// merchant cache (learned), tag rules, tag auto-patterns, bank category,
// AI classification, and a fallback "Other" tag — each layer tried in
// order, cheapest first.
package tagassign

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/jmylchreest/hone/internal/ai"
	"github.com/jmylchreest/hone/internal/models"
	"github.com/jmylchreest/hone/internal/repository"
)

// FallbackTagName is the reserved catch-all tag used when no stage assigns one.
const FallbackTagName = "Other"

// Breakdown counts how many transactions were tagged by each pipeline stage.
type Breakdown struct {
	ByLearned             int `json:"by_learned"`
	ByRule                int `json:"by_rule"`
	ByPattern             int `json:"by_pattern"`
	ByBankCategory        int `json:"by_bank_category"`
	ByOllama              int `json:"by_ollama"`
	ByOllamaCached        int `json:"by_ollama_cached"`
	FallbackToOther       int `json:"fallback_to_other"`
	TransactionsProcessed int `json:"transactions_processed"`
	TransactionsTagged    int `json:"transactions_tagged"`
}

// Assigner runs the tagging pipeline against the repository layer.
type Assigner struct {
	repos       *repository.Repositories
	backend     ai.Backend
	log         *slog.Logger
	concurrency int
}

// New builds an Assigner. backend may be nil, in which case the AI stage is
// skipped and untagged transactions fall straight through to "Other".
// concurrency bounds how many transactions are classified in parallel during
// a backfill (the AI stage is the only one that blocks on network I/O); a
// value below 1 is treated as 1.
func New(repos *repository.Repositories, backend ai.Backend, concurrency int, log *slog.Logger) *Assigner {
	if log == nil {
		log = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Assigner{repos: repos, backend: backend, concurrency: concurrency, log: log}
}

// BackfillTags tags up to limit untagged transactions (0 = no limit).
func (a *Assigner) BackfillTags(ctx context.Context, limit int) (*Breakdown, error) {
	filter := repository.TransactionFilter{Untagged: true, Limit: limit}
	txs, err := a.repos.Transaction.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing untagged transactions: %w", err)
	}

	tags, err := a.repos.Tag.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	rules, err := a.repos.TagRule.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tag rules: %w", err)
	}
	fallbackTag, err := a.ensureFallbackTag(ctx, tags)
	if err != nil {
		return nil, err
	}

	b := &Breakdown{TransactionsProcessed: len(txs)}
	var mu sync.Mutex
	sem := make(chan struct{}, a.concurrency)
	var wg sync.WaitGroup

	for _, tx := range txs {
		tx := tx
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			tagID, source, confidence, err := a.classifyOne(ctx, tx, tags, rules, fallbackTag, &mu, b)
			if err != nil {
				a.log.Warn("tag assignment failed", "transaction_id", tx.ID, "error", err)
				return
			}
			if err := a.repos.TransactionTag.Assign(ctx, &models.TransactionTag{
				TransactionID: tx.ID,
				TagID:         tagID,
				Confidence:    confidence,
				Source:        source,
			}); err != nil {
				a.log.Warn("persisting tag assignment failed", "transaction_id", tx.ID, "error", err)
				return
			}
			mu.Lock()
			b.TransactionsTagged++
			mu.Unlock()
		}()
	}
	wg.Wait()
	return b, nil
}

// classifyOne runs the six-stage pipeline for a single transaction, bumping
// the matching counter on b, and returns the tag id, attribution source,
// and confidence to persist.
func (a *Assigner) classifyOne(ctx context.Context, tx *models.Transaction, tags []*models.Tag, rules []*models.TagRule, fallbackTag *models.Tag, mu *sync.Mutex, b *Breakdown) (int64, string, float64, error) {
	merchant := merchantKey(tx)

	// Stage 1: learned merchant cache.
	if cached, err := a.repos.MerchantCache.GetTag(ctx, merchant); err == nil && cached != nil {
		mu.Lock()
		if cached.Source == "ai" {
			b.ByOllamaCached++
		} else {
			b.ByLearned++
		}
		mu.Unlock()
		return cached.TagID, "learned", cached.Confidence, nil
	}

	// Stage 2: highest-priority matching rule, ties broken by lowest rule
	// id (TagRuleRepository.List orders by priority DESC, rule id ASC).
	if tagID, ok := matchRule(tx, rules); ok {
		mu.Lock()
		b.ByRule++
		mu.Unlock()
		_ = a.repos.MerchantCache.SetTag(ctx, &models.MerchantTagCache{Merchant: merchant, TagID: tagID, Confidence: 1.0, Source: "rule"})
		return tagID, "rule", 1.0, nil
	}

	// Stage 3: tag auto-patterns — any tag whose pipe-separated AutoPatterns
	// match the description case-insensitively, without needing a rule row.
	if tag := matchAutoPattern(tx, tags); tag != nil {
		mu.Lock()
		b.ByPattern++
		mu.Unlock()
		_ = a.repos.MerchantCache.SetTag(ctx, &models.MerchantTagCache{Merchant: merchant, TagID: tag.ID, Confidence: 1.0, Source: "pattern"})
		return tag.ID, "pattern", 1.0, nil
	}

	// Stage 4: bank-supplied category, translated to a tag path via a
	// built-in mapping and resolved against the existing tag tree.
	if tx.BankCategory != "" {
		if path, ok := bankCategoryTagPath(tx.BankCategory); ok {
			if tag := findTagByPath(tags, path); tag != nil {
				mu.Lock()
				b.ByBankCategory++
				mu.Unlock()
				return tag.ID, "bank_category", 1.0, nil
			}
		}
	}

	// Stage 5: AI (Ollama or whichever backend is configured) classification,
	// with write-through cache.
	if a.backend != nil {
		tagTree := renderTagTree(tags)
		res, err := a.backend.ClassifyMerchant(ctx, descriptionFor(tx), "", tagTree)
		if err == nil && res != nil && res.TagPath != "" {
			if tag := findTagByPath(tags, res.TagPath); tag != nil {
				mu.Lock()
				b.ByOllama++
				mu.Unlock()
				_ = a.repos.MerchantCache.SetTag(ctx, &models.MerchantTagCache{Merchant: merchant, TagID: tag.ID, Confidence: res.Confidence, Source: "ai"})
				return tag.ID, "ollama", res.Confidence, nil
			}
		}
	}

	// Stage 6: fallback.
	mu.Lock()
	b.FallbackToOther++
	mu.Unlock()
	return fallbackTag.ID, "fallback", 0, nil
}

// matchAutoPattern returns the first tag (by name, for deterministic
// ordering) whose AutoPatterns contains a substring of tx's normalized name
// (else merchant, else description), case-insensitively.
func matchAutoPattern(tx *models.Transaction, tags []*models.Tag) *models.Tag {
	desc := strings.ToLower(descriptionFor(tx))
	var best *models.Tag
	for _, t := range tags {
		for _, p := range t.MatchPatterns() {
			if strings.Contains(desc, strings.ToLower(p)) {
				if best == nil || t.Name < best.Name {
					best = t
				}
				break
			}
		}
	}
	return best
}

// bankCategoryTagPaths maps common bank/aggregator category strings (as
// supplied by CSV/OFX imports) to the tag path they translate to. Matching
// is case-insensitive against the whole string.
var bankCategoryTagPaths = map[string]string{
	"groceries":      "Groceries",
	"supermarket":    "Groceries",
	"dining":         "Dining",
	"restaurants":    "Dining",
	"food and drink": "Dining",
	"gas":            "Transport",
	"fuel":           "Transport",
	"transportation": "Transport",
	"travel":         "Travel",
	"entertainment":  "Entertainment",
	"subscription":   "Subscriptions",
	"subscriptions":  "Subscriptions",
	"utilities":      "Utilities",
	"shopping":       "Shopping",
	"healthcare":     "Health",
	"medical":        "Health",
	"insurance":      "Insurance",
	"rent":           "Housing",
	"mortgage":       "Housing",
	"home":           "Housing",
}

func bankCategoryTagPath(bankCategory string) (string, bool) {
	path, ok := bankCategoryTagPaths[strings.ToLower(strings.TrimSpace(bankCategory))]
	return path, ok
}

func (a *Assigner) ensureFallbackTag(ctx context.Context, tags []*models.Tag) (*models.Tag, error) {
	for _, t := range tags {
		if strings.EqualFold(t.Name, FallbackTagName) && t.ParentID == nil {
			return t, nil
		}
	}
	t := &models.Tag{Name: FallbackTagName}
	if err := a.repos.Tag.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("creating fallback tag: %w", err)
	}
	return t, nil
}

func merchantKey(tx *models.Transaction) string {
	m := tx.NormalizedName
	if m == "" {
		m = tx.Merchant
	}
	if m == "" {
		m = tx.Description
	}
	return strings.ToUpper(strings.TrimSpace(m))
}

func descriptionFor(tx *models.Transaction) string {
	if tx.NormalizedName != "" {
		return tx.NormalizedName
	}
	if tx.Merchant != "" {
		return tx.Merchant
	}
	return tx.Description
}

// matchRule returns the tag id of the highest-priority matching rule. Ties
// on priority are broken by the lowest rule id, since TagRuleRepository.List
// already orders by priority DESC, rule id ASC.
func matchRule(tx *models.Transaction, rules []*models.TagRule) (int64, bool) {
	desc := strings.ToLower(tx.Description)
	merchant := strings.ToLower(tx.Merchant)
	for _, r := range rules {
		var field string
		switch r.MatchField {
		case "merchant":
			field = merchant
		default:
			field = desc
		}
		if field == "" {
			continue
		}
		if ruleMatches(r, field) {
			return r.TagID, true
		}
	}
	return 0, false
}

// ruleMatches applies r's pattern to field according to r.PatternType. An
// unrecognized or empty PatternType defaults to "contains" for compatibility
// with rules created before pattern_type existed.
func ruleMatches(r *models.TagRule, field string) bool {
	switch r.PatternType {
	case models.PatternTypeExact:
		return field == strings.ToLower(r.Pattern)
	case models.PatternTypeRegex:
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return false
		}
		return re.MatchString(field)
	default:
		return strings.Contains(field, strings.ToLower(r.Pattern))
	}
}

func renderTagTree(tags []*models.Tag) string {
	byParent := map[int64][]*models.Tag{}
	var roots []*models.Tag
	for _, t := range tags {
		if t.ParentID == nil {
			roots = append(roots, t)
		} else {
			byParent[*t.ParentID] = append(byParent[*t.ParentID], t)
		}
	}
	var b strings.Builder
	var walk func(t *models.Tag, depth int)
	walk = func(t *models.Tag, depth int) {
		fmt.Fprintf(&b, "%s- %s\n", strings.Repeat("  ", depth), t.Name)
		for _, c := range byParent[t.ID] {
			walk(c, depth+1)
		}
	}
	for _, r := range roots {
		walk(r, 0)
	}
	return b.String()
}

func findTagByPath(tags []*models.Tag, path string) *models.Tag {
	leaf := path
	if idx := strings.LastIndex(path, "/"); idx != -1 {
		leaf = path[idx+1:]
	}
	leaf = strings.TrimSpace(leaf)
	for _, t := range tags {
		if strings.EqualFold(t.Name, leaf) {
			return t
		}
	}
	return nil
}
