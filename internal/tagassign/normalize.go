package tagassign

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmylchreest/hone/internal/models"
	"github.com/jmylchreest/hone/internal/repository"
)

// NormalizeBreakdown counts normalization outcomes.
type NormalizeBreakdown struct {
	UniqueDescriptions int `json:"unique_descriptions"`
	Cached             int `json:"cached"`
	Normalized         int `json:"normalized"`
	Skipped            int `json:"skipped"`
}

// NormalizeMerchants groups transactions that have no normalized name yet by
// exact raw description, makes one backend call per unique description, and
// writes the result to both the transactions and the write-through cache.
// The normalization cache keeps no source marker, so SetNormalization
// replaces any existing entry for the description.
func (a *Assigner) NormalizeMerchants(ctx context.Context, limit int) (*NormalizeBreakdown, error) {
	if a.backend == nil {
		return &NormalizeBreakdown{}, nil
	}

	txs, err := a.repos.Transaction.List(ctx, repository.TransactionFilter{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("listing transactions for normalization: %w", err)
	}

	groups := map[string][]*models.Transaction{}
	var order []string
	for _, tx := range txs {
		if tx.NormalizedName != "" {
			continue
		}
		key := strings.TrimSpace(tx.Description)
		if key == "" {
			continue
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], tx)
	}

	b := &NormalizeBreakdown{UniqueDescriptions: len(order)}
	for _, desc := range order {
		group := groups[desc]
		normalized, err := a.resolveNormalization(ctx, desc, b)
		if err != nil || normalized == "" {
			b.Skipped += len(group)
			continue
		}
		for _, tx := range group {
			tx.NormalizedName = normalized
			if err := a.repos.Transaction.Update(ctx, tx); err == nil {
				b.Normalized++
			}
		}
	}
	return b, nil
}

func (a *Assigner) resolveNormalization(ctx context.Context, description string, b *NormalizeBreakdown) (string, error) {
	if cached, err := a.repos.MerchantCache.GetNormalization(ctx, description); err == nil && cached != nil {
		b.Cached++
		return cached.NormalizedName, nil
	}
	res, err := a.backend.NormalizeMerchant(ctx, description, "")
	if err != nil || res == nil || res.NormalizedName == "" {
		return "", fmt.Errorf("normalizing %q: %w", description, err)
	}
	_ = a.repos.MerchantCache.SetNormalization(ctx, &models.MerchantNormalizationCache{
		RawDescription: description,
		NormalizedName: res.NormalizedName,
	})
	return res.NormalizedName, nil
}
