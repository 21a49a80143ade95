// Package wastedetect finds recurring charges, zombie subscriptions,
// duplicate services, spending anomalies, and receipt/transaction
// discrepancies, and raises alerts for each.
package wastedetect

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/jmylchreest/hone/internal/ai"
	"github.com/jmylchreest/hone/internal/models"
	"github.com/jmylchreest/hone/internal/repository"
)

// Config tunes the detector's thresholds, each with a sensible default when
// zero-valued.
type Config struct {
	MinOccurrences      int           // recurring-charge promotion threshold; default 3
	LookbackWindow      time.Duration // default 18 months
	AmountTolerance     float64       // fractional; default 0.15
	InactiveThreshold   time.Duration // zombie detection; default 90 days
	StaleAckThreshold   time.Duration // re-flag zombie after ack expires; default 90 days
	AnomalyMinPctChange float64       // default 0.30
	AnomalyMinAbsChange float64       // default 25.0
	AnomalyMinBaseline  float64       // default 50.0
	DuplicateMinCost    float64       // default 5.0
	TipGapMinPct        float64       // default 0.10
	TipGapMinAbs        float64       // default 1.0
}

func (c *Config) fillDefaults() {
	if c.MinOccurrences == 0 {
		c.MinOccurrences = 3
	}
	if c.LookbackWindow == 0 {
		c.LookbackWindow = 18 * 30 * 24 * time.Hour
	}
	if c.AmountTolerance == 0 {
		c.AmountTolerance = 0.15
	}
	if c.InactiveThreshold == 0 {
		c.InactiveThreshold = 90 * 24 * time.Hour
	}
	if c.StaleAckThreshold == 0 {
		c.StaleAckThreshold = 90 * 24 * time.Hour
	}
	if c.AnomalyMinPctChange == 0 {
		c.AnomalyMinPctChange = 0.30
	}
	if c.AnomalyMinAbsChange == 0 {
		c.AnomalyMinAbsChange = 25.0
	}
	if c.AnomalyMinBaseline == 0 {
		c.AnomalyMinBaseline = 50.0
	}
	if c.DuplicateMinCost == 0 {
		c.DuplicateMinCost = 5.0
	}
	if c.TipGapMinPct == 0 {
		c.TipGapMinPct = 0.10
	}
	if c.TipGapMinAbs == 0 {
		c.TipGapMinAbs = 1.0
	}
}

// Counts summarizes one detect_all run.
type Counts struct {
	RecurringPromoted int `json:"recurring_promoted"`
	ZombiesFlagged    int `json:"zombies_flagged"`
	Resumes           int `json:"resumes"`
	PriceIncreases    int `json:"price_increases"`
	Duplicates        int `json:"duplicates"`
	SpendingAnomalies int `json:"spending_anomalies"`
	TipDiscrepancies  int `json:"tip_discrepancies"`
}

// Detector runs the waste-detection passes against the repository layer.
type Detector struct {
	repos   *repository.Repositories
	backend ai.Backend
	cfg     Config
	log     *slog.Logger
	now     func() time.Time
}

// New builds a Detector. backend may be nil; narrative-producing passes
// (duplicate clustering, spending anomaly explanation) then skip the AI
// call and leave the narrative blank.
func New(repos *repository.Repositories, backend ai.Backend, cfg Config, log *slog.Logger) *Detector {
	cfg.fillDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Detector{repos: repos, backend: backend, cfg: cfg, log: log, now: time.Now}
}

// DetectAll runs every detection pass once, idempotently: re-running
// produces no duplicate alerts, since alert creation dedupes on
// (type, subscription_id) or (type, tag_id).
func (d *Detector) DetectAll(ctx context.Context) (*Counts, error) {
	counts := &Counts{}

	if err := d.detectRecurringCharges(ctx, counts); err != nil {
		d.log.Warn("recurring charge detection failed", "error", err)
	}
	if err := d.detectResumes(ctx, counts); err != nil {
		d.log.Warn("resume detection failed", "error", err)
	}
	if err := d.detectZombies(ctx, counts); err != nil {
		d.log.Warn("zombie detection failed", "error", err)
	}
	if err := d.detectPriceIncreases(ctx, counts); err != nil {
		d.log.Warn("price increase detection failed", "error", err)
	}
	if err := d.detectDuplicates(ctx, counts); err != nil {
		d.log.Warn("duplicate detection failed", "error", err)
	}
	if err := d.detectSpendingAnomalies(ctx, counts); err != nil {
		d.log.Warn("spending anomaly detection failed", "error", err)
	}
	if err := d.detectTipDiscrepancies(ctx, counts); err != nil {
		d.log.Warn("tip discrepancy detection failed", "error", err)
	}

	return counts, nil
}

// recurringGroupKey groups candidate recurring charges by merchant *and*
// account — the same merchant charged to two different accounts is two
// separate subscriptions, matching the (merchant, account_id) uniqueness the
// repository enforces on upsert.
type recurringGroupKey struct {
	merchant  string
	accountID int64
}

// detectRecurringCharges groups transactions by (merchant, account), looks
// for ≥ MinOccurrences charges within the lookback window whose amounts
// cluster within AmountTolerance of their median, and promotes matches to
// subscriptions via the repository's upsert-on-(merchant,account_id).
func (d *Detector) detectRecurringCharges(ctx context.Context, counts *Counts) error {
	since := d.now().Add(-d.cfg.LookbackWindow)
	txs, err := d.repos.Transaction.List(ctx, repository.TransactionFilter{From: &since})
	if err != nil {
		return fmt.Errorf("listing transactions: %w", err)
	}

	byGroup := map[recurringGroupKey][]*models.Transaction{}
	for _, tx := range txs {
		if tx.Amount >= 0 || tx.Excluded {
			continue // only outgoing charges
		}
		key := recurringGroupKey{merchant: merchantKey(tx), accountID: tx.AccountID}
		byGroup[key] = append(byGroup[key], tx)
	}

	for _, group := range byGroup {
		if len(group) < d.cfg.MinOccurrences {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].Date.Before(group[j].Date) })

		amounts := make([]float64, len(group))
		for i, tx := range group {
			amounts[i] = math.Abs(tx.Amount)
		}
		median := medianOf(amounts)
		if median == 0 {
			continue
		}

		var clustered []*models.Transaction
		for _, tx := range group {
			if math.Abs(math.Abs(tx.Amount)-median)/median <= d.cfg.AmountTolerance {
				clustered = append(clustered, tx)
			}
		}
		if len(clustered) < d.cfg.MinOccurrences {
			continue
		}

		frequency, ok := dominantInterval(clustered)
		if !ok {
			continue
		}

		last := clustered[len(clustered)-1]
		accountID := last.AccountID
		sub := &models.Subscription{
			Merchant:  merchantKey(last),
			AccountID: &accountID,
			Amount:    median,
			Frequency: frequency,
			FirstSeen: clustered[0].Date,
			LastSeen:  last.Date,
		}
		if _, err := d.repos.Subscription.Upsert(ctx, sub, last.ID); err != nil {
			d.log.Warn("subscription upsert failed", "merchant", sub.Merchant, "error", err)
			continue
		}
		counts.RecurringPromoted++
	}
	return nil
}

// detectResumes looks for subscriptions that were cancelled but have since
// been charged again: Upsert always advances last_seen regardless of status,
// so a cancelled subscription whose last_seen has moved past its
// cancelled_at timestamp has seen a new matching charge. The newest such
// charge's amount becomes the subscription's resumed amount.
func (d *Detector) detectResumes(ctx context.Context, counts *Counts) error {
	subs, err := d.repos.Subscription.List(ctx, false)
	if err != nil {
		return fmt.Errorf("listing subscriptions: %w", err)
	}
	for _, s := range subs {
		if s.Status != models.SubscriptionStatusCancelled || s.CancelledAt == nil {
			continue
		}
		if !s.LastSeen.After(*s.CancelledAt) {
			continue
		}

		txIDs, err := d.repos.Subscription.TransactionIDs(ctx, s.ID)
		if err != nil {
			continue
		}
		var newest *models.Transaction
		for _, txID := range txIDs {
			tx, err := d.repos.Transaction.GetByID(ctx, txID)
			if err != nil || tx == nil || !tx.Date.After(*s.CancelledAt) {
				continue
			}
			if newest == nil || tx.Date.After(newest.Date) {
				newest = tx
			}
		}
		if newest == nil {
			continue
		}

		oldAmount := s.Amount
		if s.CancelledMonthlyAmount != nil {
			oldAmount = *s.CancelledMonthlyAmount
		}
		newAmount := math.Abs(newest.Amount)
		if err := d.repos.Subscription.Resume(ctx, s.ID, newAmount, newest.Date); err != nil {
			d.log.Warn("subscription resume failed", "subscription_id", s.ID, "error", err)
			continue
		}
		msg := fmt.Sprintf("%s was charged again ($%.2f, previously cancelled at $%.2f/%s) and has been marked active again.",
			s.Merchant, newAmount, oldAmount, s.Frequency)
		if _, err := d.repos.Alert.CreateAlert(ctx, &models.Alert{
			Type:           models.AlertTypeResume,
			SubscriptionID: &s.ID,
			Message:        msg,
		}); err != nil {
			d.log.Warn("resume alert creation failed", "subscription_id", s.ID, "error", err)
			continue
		}
		counts.Resumes++
	}
	return nil
}

// detectPriceIncreases compares each active subscription's most recent
// charge against the trailing median of its earlier charges, flagging a
// change whose magnitude clears max(10% of the baseline, $1).
func (d *Detector) detectPriceIncreases(ctx context.Context, counts *Counts) error {
	subs, err := d.repos.Subscription.List(ctx, false)
	if err != nil {
		return fmt.Errorf("listing subscriptions: %w", err)
	}
	for _, s := range subs {
		if s.Status != models.SubscriptionStatusActive {
			continue
		}
		txIDs, err := d.repos.Subscription.TransactionIDs(ctx, s.ID)
		if err != nil || len(txIDs) < d.cfg.MinOccurrences {
			continue
		}
		var txs []*models.Transaction
		for _, id := range txIDs {
			tx, err := d.repos.Transaction.GetByID(ctx, id)
			if err == nil && tx != nil {
				txs = append(txs, tx)
			}
		}
		if len(txs) < 2 {
			continue
		}
		sort.Slice(txs, func(i, j int) bool { return txs[i].Date.Before(txs[j].Date) })

		latest := txs[len(txs)-1]
		trailing := txs[:len(txs)-1]
		amounts := make([]float64, len(trailing))
		for i, tx := range trailing {
			amounts[i] = math.Abs(tx.Amount)
		}
		baseline := medianOf(amounts)
		if baseline == 0 {
			continue
		}
		current := math.Abs(latest.Amount)
		delta := current - baseline
		threshold := math.Max(baseline*0.10, 1.0)
		if math.Abs(delta) < threshold {
			continue
		}

		msg := fmt.Sprintf("%s's charge changed from $%.2f to $%.2f (%+.0f%%).",
			s.Merchant, baseline, current, delta/baseline*100)
		if _, err := d.repos.Alert.CreateAlert(ctx, &models.Alert{
			Type:           models.AlertTypePriceIncrease,
			SubscriptionID: &s.ID,
			Message:        msg,
		}); err != nil {
			d.log.Warn("price increase alert creation failed", "subscription_id", s.ID, "error", err)
			continue
		}
		counts.PriceIncreases++
	}
	return nil
}

// detectZombies flags active subscriptions that have gone quiet: last_seen
// older than InactiveThreshold, and either never acknowledged or whose
// acknowledgement has gone stale past StaleAckThreshold.
func (d *Detector) detectZombies(ctx context.Context, counts *Counts) error {
	subs, err := d.repos.Subscription.List(ctx, false)
	if err != nil {
		return fmt.Errorf("listing subscriptions: %w", err)
	}
	now := d.now()
	for _, s := range subs {
		if s.Status != models.SubscriptionStatusActive {
			continue
		}
		if now.Sub(s.LastSeen) < d.cfg.InactiveThreshold {
			continue
		}
		if s.AcknowledgedAt != nil && now.Sub(*s.AcknowledgedAt) < d.cfg.StaleAckThreshold {
			continue
		}

		if err := d.repos.Subscription.UpdateStatus(ctx, s.ID, models.SubscriptionStatusZombie); err != nil {
			d.log.Warn("zombie status transition failed", "subscription_id", s.ID, "error", err)
			continue
		}
		msg := fmt.Sprintf("%s hasn't charged since %s but is still marked active — likely a zombie subscription costing $%.2f/%s.",
			s.Merchant, s.LastSeen.Format("2006-01-02"), s.Amount, s.Frequency)
		if _, err := d.repos.Alert.CreateAlert(ctx, &models.Alert{
			Type:           models.AlertTypeZombieSubscription,
			SubscriptionID: &s.ID,
			Message:        msg,
		}); err != nil {
			d.log.Warn("zombie alert creation failed", "subscription_id", s.ID, "error", err)
			continue
		}
		counts.ZombiesFlagged++
	}
	return nil
}

// detectDuplicates clusters active subscriptions by category — resolved
// through each subscription's typical tag, the most common tag assigned
// across its linked transactions, walked up to its root ancestor — so that
// e.g. "Netflix Basic" and "Hulu Premium" both resolve to "Entertainment"
// and cluster together even though they share no merchant text. A cluster of
// ≥ 2 whose combined monthly-normalized cost clears DuplicateMinCost emits a
// single duplicate alert, with an AI overlap/unique-features narrative (when
// a backend is configured) attached as AIAnalysis rather than folded into
// the message.
func (d *Detector) detectDuplicates(ctx context.Context, counts *Counts) error {
	subs, err := d.repos.Subscription.List(ctx, false)
	if err != nil {
		return fmt.Errorf("listing subscriptions: %w", err)
	}

	tags, err := d.repos.Tag.List(ctx)
	if err != nil {
		return fmt.Errorf("listing tags: %w", err)
	}
	tagsByID := make(map[int64]*models.Tag, len(tags))
	for _, t := range tags {
		tagsByID[t.ID] = t
	}

	clusters := map[string][]*models.Subscription{}
	for _, s := range subs {
		if s.Status != models.SubscriptionStatusActive {
			continue
		}
		category, err := d.subscriptionCategory(ctx, s, tagsByID)
		if err != nil || category == "" {
			continue
		}
		clusters[category] = append(clusters[category], s)
	}

	for category, cluster := range clusters {
		if len(cluster) < 2 {
			continue
		}
		var total float64
		var names []string
		var ids []int64
		for _, s := range cluster {
			total += s.MonthlyEquivalent()
			names = append(names, s.Merchant)
			ids = append(ids, s.ID)
		}
		if total < d.cfg.DuplicateMinCost {
			continue
		}

		narrative := ""
		if d.backend != nil {
			if res, err := d.backend.AnalyzeDuplicates(ctx, category, joinSubscriptionSummary(cluster)); err == nil && res != nil {
				narrative = res.Narrative
			}
		}
		msg := fmt.Sprintf("Possible duplicate %s services (%s) costing $%.2f/month combined.", category, joinNames(names), total)
		// Dedup on the lowest subscription id in the cluster so re-running
		// DetectAll finds the same existing alert regardless of cluster order.
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		primary := ids[0]
		if _, err := d.repos.Alert.CreateAlert(ctx, &models.Alert{
			Type:           models.AlertTypeDuplicateService,
			SubscriptionID: &primary,
			Message:        msg,
			AIAnalysis:     narrative,
		}); err != nil {
			d.log.Warn("duplicate alert creation failed", "category", category, "error", err)
			continue
		}
		counts.Duplicates++
	}
	return nil
}

// subscriptionCategory resolves a subscription's category as the root
// ancestor of its typical tag: the tag most often assigned across the
// transactions linked to it.
func (d *Detector) subscriptionCategory(ctx context.Context, s *models.Subscription, tagsByID map[int64]*models.Tag) (string, error) {
	txIDs, err := d.repos.Subscription.TransactionIDs(ctx, s.ID)
	if err != nil {
		return "", err
	}
	if len(txIDs) == 0 {
		return "", nil
	}

	tagCounts := map[int64]int{}
	for _, txID := range txIDs {
		links, err := d.repos.TransactionTag.ListByTransaction(ctx, txID)
		if err != nil {
			continue
		}
		for _, link := range links {
			tagCounts[link.TagID]++
		}
	}

	var typicalTagID int64
	var best int
	for tagID, count := range tagCounts {
		if count > best || (count == best && tagID < typicalTagID) {
			best = count
			typicalTagID = tagID
		}
	}
	if typicalTagID == 0 {
		return "", nil
	}

	tag := tagsByID[typicalTagID]
	for tag != nil && tag.ParentID != nil {
		tag = tagsByID[*tag.ParentID]
	}
	if tag == nil {
		return "", nil
	}
	return tag.Name, nil
}

// detectSpendingAnomalies compares each tag's current-month spend against
// its trailing 3-month average, raising an upserted alert when the change
// clears both a percentage and an absolute floor and the baseline itself is
// non-trivial.
func (d *Detector) detectSpendingAnomalies(ctx context.Context, counts *Counts) error {
	now := d.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	monthEnd := monthStart.AddDate(0, 1, 0)
	baselineStart := monthStart.AddDate(0, -3, 0)

	tags, err := d.repos.Tag.List(ctx)
	if err != nil {
		return fmt.Errorf("listing tags: %w", err)
	}

	for _, tag := range tags {
		current, err := d.repos.Report.MonthlyTotalForTag(ctx, tag.ID, monthStart, monthEnd)
		if err != nil {
			continue
		}
		baselineTotal, err := d.repos.Report.MonthlyTotalForTag(ctx, tag.ID, baselineStart, monthStart)
		if err != nil {
			continue
		}
		baseline := baselineTotal / 3
		if baseline < d.cfg.AnomalyMinBaseline {
			continue
		}
		delta := current - baseline
		pct := delta / baseline
		if math.Abs(pct) < d.cfg.AnomalyMinPctChange || math.Abs(delta) < d.cfg.AnomalyMinAbsChange {
			continue
		}

		data := models.SpendingAnomalyData{
			TagID:          tag.ID,
			TagName:        tag.Name,
			CurrentAmount:  current,
			BaselineAmount: baseline,
			PercentChange:  pct * 100,
		}
		if d.backend != nil {
			if res, err := d.backend.ExplainSpendingChange(ctx, tag.Name, current, baseline, pct*100, "", ""); err == nil && res != nil {
				data.Explanation = res.Narrative
			}
		}
		msg := fmt.Sprintf("%s spending changed %.0f%% vs its recent average ($%.2f vs $%.2f).", tag.Name, pct*100, current, baseline)
		if _, err := d.repos.Alert.CreateSpendingAnomalyAlert(ctx, data, msg); err != nil {
			d.log.Warn("spending anomaly alert failed", "tag_id", tag.ID, "error", err)
			continue
		}
		counts.SpendingAnomalies++
	}
	return nil
}

// detectTipDiscrepancies compares matched receipts against their linked
// transaction amount: gap = tx_amount − (subtotal + tax + tip). A gap
// exceeding max($1, 10%) of the transaction amount is flagged.
func (d *Detector) detectTipDiscrepancies(ctx context.Context, counts *Counts) error {
	receipts, err := d.repos.Receipt.Unmatched(ctx)
	if err != nil {
		return fmt.Errorf("listing receipts: %w", err)
	}
	for _, r := range receipts {
		if r.TransactionID == nil {
			continue
		}
		tx, err := d.repos.Transaction.GetByID(ctx, *r.TransactionID)
		if err != nil || tx == nil {
			continue
		}
		expected := r.Subtotal + r.Tax + r.Tip
		gap := math.Abs(tx.Amount) - expected
		threshold := math.Max(d.cfg.TipGapMinAbs, math.Abs(tx.Amount)*d.cfg.TipGapMinPct)
		if math.Abs(gap) <= threshold {
			continue
		}
		msg := fmt.Sprintf("Charge of $%.2f at %s doesn't match receipt total of $%.2f (gap $%.2f).",
			math.Abs(tx.Amount), r.Merchant, expected, gap)
		if _, err := d.repos.Alert.CreateAlert(ctx, &models.Alert{
			Type:    models.AlertTypeReceiptMismatch,
			Message: msg,
		}); err != nil {
			d.log.Warn("tip discrepancy alert failed", "receipt_id", r.ID, "error", err)
			continue
		}
		counts.TipDiscrepancies++
	}
	return nil
}
