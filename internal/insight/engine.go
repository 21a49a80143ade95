// Package insight runs analyzers that surface forward-looking observations
// (savings opportunities, upcoming expenses, spending explanations) as
// InsightFinding rows, upserted by (insight_type, key) so re-running a pass
// refreshes rather than duplicates.
package insight

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmylchreest/hone/internal/ai"
	"github.com/jmylchreest/hone/internal/models"
	"github.com/jmylchreest/hone/internal/repository"
)

// Engine runs the three analyzers against the repository layer.
type Engine struct {
	repos   *repository.Repositories
	backend ai.Backend
	log     *slog.Logger
	now     func() time.Time
}

// New builds an Engine.
func New(repos *repository.Repositories, backend ai.Backend, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{repos: repos, backend: backend, log: log, now: time.Now}
}

// RefreshAll runs all analyzers once and prunes expired findings.
func (e *Engine) RefreshAll(ctx context.Context) error {
	if err := e.refreshSavingsOpportunities(ctx); err != nil {
		e.log.Warn("savings opportunity analyzer failed", "error", err)
	}
	if err := e.refreshExpenseForecasts(ctx); err != nil {
		e.log.Warn("expense forecaster failed", "error", err)
	}
	if err := e.refreshSpendingExplanations(ctx); err != nil {
		e.log.Warn("spending explainer failed", "error", err)
	}
	if _, err := e.repos.InsightFinding.DeleteExpired(ctx, e.now()); err != nil {
		e.log.Warn("pruning expired insights failed", "error", err)
	}
	return nil
}

// refreshSavingsOpportunities surfaces zombie subscriptions and duplicate
// service clusters as annualized savings opportunities, severity scaled by
// the magnitude of the opportunity.
func (e *Engine) refreshSavingsOpportunities(ctx context.Context) error {
	subs, err := e.repos.Subscription.List(ctx, false)
	if err != nil {
		return fmt.Errorf("listing subscriptions: %w", err)
	}
	for _, s := range subs {
		if s.Status != models.SubscriptionStatusZombie {
			continue
		}
		annual := s.MonthlyEquivalent() * 12
		finding := &models.InsightFinding{
			InsightType: "savings_opportunity",
			Key:         fmt.Sprintf("zombie:%d", s.ID),
			Severity:    severityForAnnualSavings(annual),
			Title:       fmt.Sprintf("Cancel %s to save $%.2f/year", s.Merchant, annual),
			Summary:     fmt.Sprintf("%s has been inactive and is costing $%.2f/%s.", s.Merchant, s.Amount, s.Frequency),
			DetectedAt:  e.now(),
		}
		if err := e.repos.InsightFinding.Upsert(ctx, finding); err != nil {
			e.log.Warn("upserting savings insight failed", "subscription_id", s.ID, "error", err)
		}
	}
	return nil
}

// refreshExpenseForecasts advances each active subscription's cadence past
// today to predict its next charge within a 30-day window, and separately
// flags upcoming annual subscriptions above $100 within the next 60 days.
func (e *Engine) refreshExpenseForecasts(ctx context.Context) error {
	subs, err := e.repos.Subscription.List(ctx, false)
	if err != nil {
		return fmt.Errorf("listing subscriptions: %w", err)
	}
	now := e.now()
	for _, s := range subs {
		if s.Status != models.SubscriptionStatusActive {
			continue
		}
		next := nextOccurrence(s.LastSeen, s.Frequency, now)
		until := next.Sub(now)
		largeAnnual := s.Frequency == models.FrequencyYearly && s.Amount > 100 && until <= 60*24*time.Hour
		if until > 30*24*time.Hour && !largeAnnual {
			continue
		}
		finding := &models.InsightFinding{
			InsightType: "expense_forecast",
			Key:         fmt.Sprintf("upcoming:%d", s.ID),
			Severity:    models.SeverityInfo,
			Title:       fmt.Sprintf("%s renews around %s", s.Merchant, next.Format("Jan 2")),
			Summary:     fmt.Sprintf("Expect a $%.2f charge from %s around %s.", s.Amount, s.Merchant, next.Format("2006-01-02")),
			DetectedAt:  now,
		}
		if largeAnnual {
			finding.Severity = models.SeverityAttention
			finding.Title = fmt.Sprintf("Large annual charge coming: %s ($%.2f)", s.Merchant, s.Amount)
		}
		if err := e.repos.InsightFinding.Upsert(ctx, finding); err != nil {
			e.log.Warn("upserting forecast insight failed", "subscription_id", s.ID, "error", err)
		}
	}
	return nil
}

// refreshSpendingExplanations flags tags whose current-month spend differs
// materially from their trailing 3-month baseline, optionally attaching an
// AI-generated narrative.
func (e *Engine) refreshSpendingExplanations(ctx context.Context) error {
	now := e.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	monthEnd := monthStart.AddDate(0, 1, 0)
	baselineStart := monthStart.AddDate(0, -3, 0)

	tags, err := e.repos.Tag.List(ctx)
	if err != nil {
		return fmt.Errorf("listing tags: %w", err)
	}

	for _, tag := range tags {
		current, err := e.repos.Report.MonthlyTotalForTag(ctx, tag.ID, monthStart, monthEnd)
		if err != nil {
			continue
		}
		baselineTotal, err := e.repos.Report.MonthlyTotalForTag(ctx, tag.ID, baselineStart, monthStart)
		if err != nil {
			continue
		}
		baseline := baselineTotal / 3
		if baseline < 50 {
			continue
		}
		delta := current - baseline
		pct := 0.0
		if baseline != 0 {
			pct = delta / baseline
		}
		if absFloat(pct) < 0.15 || absFloat(delta) < 25 {
			continue
		}

		narrative := ""
		if e.backend != nil {
			if res, err := e.backend.ExplainSpendingChange(ctx, tag.Name, current, baseline, pct*100, "", ""); err == nil && res != nil {
				narrative = res.Narrative
			}
		}
		finding := &models.InsightFinding{
			InsightType: "spending_explanation",
			Key:         fmt.Sprintf("spending:%d:%s", tag.ID, monthStart.Format("2006-01")),
			Severity:    models.SeverityAttention,
			Title:       fmt.Sprintf("%s spending %s %.0f%% this month", tag.Name, direction(delta), absFloat(pct)*100),
			Summary:     fmt.Sprintf("$%.2f this month vs a $%.2f average.", current, baseline),
			Detail:      narrative,
			DetectedAt:  now,
		}
		if err := e.repos.InsightFinding.Upsert(ctx, finding); err != nil {
			e.log.Warn("upserting spending explanation failed", "tag_id", tag.ID, "error", err)
		}
	}
	return nil
}

func severityForAnnualSavings(annual float64) models.Severity {
	switch {
	case annual >= 500:
		return models.SeverityAlert
	case annual >= 150:
		return models.SeverityWarning
	default:
		return models.SeverityAttention
	}
}

func nextOccurrence(last time.Time, freq models.SubscriptionFrequency, after time.Time) time.Time {
	step := func(t time.Time) time.Time {
		switch freq {
		case models.FrequencyWeekly:
			return t.AddDate(0, 0, 7)
		case models.FrequencyYearly:
			return t.AddDate(1, 0, 0)
		default:
			return t.AddDate(0, 1, 0)
		}
	}
	next := last
	for !next.After(after) {
		next = step(next)
	}
	return next
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func direction(delta float64) string {
	if delta < 0 {
		return "dropped"
	}
	return "rose"
}
