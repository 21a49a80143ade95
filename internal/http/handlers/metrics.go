package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// ModelHealthRow is one row of the AI backend health summary.
type ModelHealthRow struct {
	Backend       string  `json:"backend"`
	Model         string  `json:"model"`
	TotalCalls    int     `json:"total_calls"`
	FailedCalls   int     `json:"failed_calls"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// AIMetricsInput bounds the metrics summary window.
type AIMetricsInput struct {
	SinceHours int `query:"since_hours" doc:"Lookback window in hours; default 24"`
}

// AIMetricsOutput is the response for the AI call health summary.
type AIMetricsOutput struct {
	Body struct {
		Rows []ModelHealthRow `json:"rows"`
	}
}

// AIMetrics summarizes recent AI backend call volume, failure rate, and
// latency per (backend, model) pair — the same data the router's health
// tracking reacts to in-process, surfaced for operator visibility.
func (h *Handlers) AIMetrics(ctx context.Context, in *AIMetricsInput) (*AIMetricsOutput, error) {
	hours := in.SinceHours
	if hours <= 0 {
		hours = 24
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	rows, err := h.Repos.OllamaMetric.Summary(ctx, since)
	if err != nil {
		return nil, huma.Error500InternalServerError("summarizing AI metrics", err)
	}
	out := &AIMetricsOutput{}
	for _, r := range rows {
		out.Body.Rows = append(out.Body.Rows, ModelHealthRow{Backend: r.Backend, Model: r.Model, TotalCalls: r.TotalCalls, FailedCalls: r.FailedCalls, AvgDurationMs: r.AvgDurationMs})
	}
	return out, nil
}
