package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/hone/internal/models"
)

// CreateFeedbackInput is the request body for recording a correction to an
// AI-derived judgment.
type CreateFeedbackInput struct {
	Body struct {
		TargetType string `json:"target_type" enum:"transaction,subscription,insight,receipt_match"`
		TargetID   int64  `json:"target_id"`
		Accepted   bool   `json:"accepted"`
		Correction string `json:"correction,omitempty"`
	}
}

// CreateFeedbackOutput is an empty response.
type CreateFeedbackOutput struct{}

// CreateFeedback records whether the user accepted or corrected an
// AI-derived judgment, feeding future prompt context for that target.
func (h *Handlers) CreateFeedback(ctx context.Context, in *CreateFeedbackInput) (*CreateFeedbackOutput, error) {
	f := &models.UserFeedback{
		TargetType: models.FeedbackTargetType(in.Body.TargetType),
		TargetID:   in.Body.TargetID,
		Accepted:   in.Body.Accepted,
		Correction: in.Body.Correction,
	}
	if err := h.Repos.UserFeedback.Create(ctx, f); err != nil {
		return nil, huma.Error500InternalServerError("recording feedback", err)
	}
	return &CreateFeedbackOutput{}, nil
}
