package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/hone/internal/models"
)

// InsightBody is the wire representation of an InsightFinding.
type InsightBody struct {
	ID          int64      `json:"id"`
	InsightType string     `json:"insight_type"`
	Key         string     `json:"key"`
	Severity    string     `json:"severity"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary"`
	Detail      string     `json:"detail,omitempty"`
	DetectedAt  time.Time  `json:"detected_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

func insightToBody(f *models.InsightFinding) InsightBody {
	return InsightBody{
		ID: f.ID, InsightType: f.InsightType, Key: f.Key, Severity: f.Severity.String(),
		Title: f.Title, Summary: f.Summary, Detail: f.Detail, DetectedAt: f.DetectedAt, ExpiresAt: f.ExpiresAt,
	}
}

// ListInsightsInput filters the insight listing.
type ListInsightsInput struct {
	ActiveOnly bool `query:"active_only"`
}

// ListInsightsOutput is the response for listing insights.
type ListInsightsOutput struct {
	Body struct {
		Insights []InsightBody `json:"insights"`
	}
}

// ListInsights lists the findings surfaced by the insight engine's
// analyzers, most severe first.
func (h *Handlers) ListInsights(ctx context.Context, in *ListInsightsInput) (*ListInsightsOutput, error) {
	findings, err := h.Repos.InsightFinding.List(ctx, in.ActiveOnly)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing insights", err)
	}
	out := &ListInsightsOutput{}
	for _, f := range findings {
		out.Body.Insights = append(out.Body.Insights, insightToBody(f))
	}
	return out, nil
}
