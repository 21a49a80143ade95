package wastedetect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jmylchreest/hone/internal/models"
)

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

func medianOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// dominantInterval computes the median gap between consecutive charge dates
// and classifies it as weekly (±2d), monthly (±5d), or yearly (±10d).
func dominantInterval(txs []*models.Transaction) (models.SubscriptionFrequency, bool) {
	if len(txs) < 2 {
		return "", false
	}
	gaps := make([]float64, 0, len(txs)-1)
	for i := 1; i < len(txs); i++ {
		gaps = append(gaps, txs[i].Date.Sub(txs[i-1].Date).Hours()/24)
	}
	median := medianOf(gaps)

	switch {
	case withinDays(median, 7, 2):
		return models.FrequencyWeekly, true
	case withinDays(median, 30, 5):
		return models.FrequencyMonthly, true
	case withinDays(median, 365, 10):
		return models.FrequencyYearly, true
	default:
		return "", false
	}
}

func withinDays(value, target, tolerance float64) bool {
	diff := value - target
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}

func joinSubscriptionSummary(subs []*models.Subscription) string {
	var b strings.Builder
	for _, s := range subs {
		fmt.Fprintf(&b, "%s: $%.2f/%s\n", s.Merchant, s.Amount, s.Frequency)
	}
	return b.String()
}
