package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// SpendingByTagInput bounds a spending-by-category report.
type SpendingByTagInput struct {
	From string `query:"from" doc:"RFC3339 or YYYY-MM-DD"`
	To   string `query:"to" doc:"RFC3339 or YYYY-MM-DD"`
}

// SpendingByTagRow is one row of a spending-by-category report.
type SpendingByTagRow struct {
	TagID   int64   `json:"tag_id"`
	TagName string  `json:"tag_name"`
	Total   float64 `json:"total"`
	Count   int     `json:"count"`
}

// SpendingByTagOutput is the response for the spending-by-category report.
type SpendingByTagOutput struct {
	Body struct {
		Rows []SpendingByTagRow `json:"rows"`
	}
}

// SpendingByTag reports total spend per tag over a date range.
func (h *Handlers) SpendingByTag(ctx context.Context, in *SpendingByTagInput) (*SpendingByTagOutput, error) {
	from, to, err := resolveRange(in.From, in.To)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid date range", err)
	}
	rows, err := h.Repos.Report.SpendingByTagInRange(ctx, from, to)
	if err != nil {
		return nil, huma.Error500InternalServerError("computing spending report", err)
	}
	out := &SpendingByTagOutput{}
	for _, r := range rows {
		out.Body.Rows = append(out.Body.Rows, SpendingByTagRow{TagID: r.TagID, TagName: r.TagName, Total: r.Total, Count: r.Count})
	}
	return out, nil
}

// TopMerchantsInput bounds a top-merchants report.
type TopMerchantsInput struct {
	From  string `query:"from" doc:"RFC3339 or YYYY-MM-DD"`
	To    string `query:"to" doc:"RFC3339 or YYYY-MM-DD"`
	Limit int    `query:"limit"`
}

// MerchantTotalRow is one row of a top-merchants report.
type MerchantTotalRow struct {
	Merchant string  `json:"merchant"`
	Total    float64 `json:"total"`
	Count    int     `json:"count"`
}

// TopMerchantsOutput is the response for the top-merchants report.
type TopMerchantsOutput struct {
	Body struct {
		Rows []MerchantTotalRow `json:"rows"`
	}
}

// TopMerchants reports the highest-spend merchants over a date range.
func (h *Handlers) TopMerchants(ctx context.Context, in *TopMerchantsInput) (*TopMerchantsOutput, error) {
	from, to, err := resolveRange(in.From, in.To)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid date range", err)
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 10
	}
	rows, err := h.Repos.Report.TopMerchants(ctx, from, to, limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("computing top merchants", err)
	}
	out := &TopMerchantsOutput{}
	for _, r := range rows {
		out.Body.Rows = append(out.Body.Rows, MerchantTotalRow{Merchant: r.Merchant, Total: r.Total, Count: r.Count})
	}
	return out, nil
}

func resolveRange(fromStr, toStr string) (time.Time, time.Time, error) {
	now := time.Now()
	to := now
	if toStr != "" {
		if t, err := parseDateParam(toStr); err == nil {
			to = t
		} else {
			return time.Time{}, time.Time{}, err
		}
	}
	from := to.AddDate(0, -1, 0)
	if fromStr != "" {
		if t, err := parseDateParam(fromStr); err == nil {
			from = t
		} else {
			return time.Time{}, time.Time{}, err
		}
	}
	return from, to, nil
}
