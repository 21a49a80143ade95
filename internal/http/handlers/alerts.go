package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/hone/internal/models"
)

// AlertBody is the wire representation of an Alert.
type AlertBody struct {
	ID             int64      `json:"id"`
	Type           string     `json:"type"`
	SubscriptionID *int64     `json:"subscription_id,omitempty"`
	Message        string     `json:"message"`
	Dismissed      bool       `json:"dismissed"`
	DismissedAt    *time.Time `json:"dismissed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func alertToBody(a *models.Alert) AlertBody {
	return AlertBody{
		ID: a.ID, Type: string(a.Type), SubscriptionID: a.SubscriptionID,
		Message: a.Message, Dismissed: a.Dismissed, DismissedAt: a.DismissedAt, CreatedAt: a.CreatedAt,
	}
}

// ListAlertsInput filters the alert listing.
type ListAlertsInput struct {
	IncludeDismissed bool `query:"include_dismissed"`
}

// ListAlertsOutput is the response for listing alerts.
type ListAlertsOutput struct {
	Body struct {
		Alerts []AlertBody `json:"alerts"`
	}
}

// ListAlerts lists raised waste-detection alerts.
func (h *Handlers) ListAlerts(ctx context.Context, in *ListAlertsInput) (*ListAlertsOutput, error) {
	alerts, err := h.Repos.Alert.ListAlerts(ctx, in.IncludeDismissed)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing alerts", err)
	}
	out := &ListAlertsOutput{}
	for _, a := range alerts {
		out.Body.Alerts = append(out.Body.Alerts, alertToBody(a))
	}
	return out, nil
}

// GetAlertInput identifies an alert by path id.
type GetAlertInput struct {
	ID int64 `path:"id"`
}

// GetAlertOutput is the response for fetching one alert.
type GetAlertOutput struct {
	Body AlertBody
}

// GetAlert fetches a single alert.
func (h *Handlers) GetAlert(ctx context.Context, in *GetAlertInput) (*GetAlertOutput, error) {
	a, err := h.Repos.Alert.GetAlert(ctx, in.ID)
	if err != nil {
		return nil, huma.Error404NotFound("alert not found", err)
	}
	return &GetAlertOutput{Body: alertToBody(a)}, nil
}

// AlertActionInput identifies an alert to act on.
type AlertActionInput struct {
	ID int64 `path:"id"`
}

// AlertActionOutput is an empty response.
type AlertActionOutput struct{}

// DismissAlert marks an alert dismissed.
func (h *Handlers) DismissAlert(ctx context.Context, in *AlertActionInput) (*AlertActionOutput, error) {
	if err := h.Repos.Alert.Dismiss(ctx, in.ID); err != nil {
		return nil, huma.Error500InternalServerError("dismissing alert", err)
	}
	return &AlertActionOutput{}, nil
}

// RestoreAlert un-dismisses a previously dismissed alert.
func (h *Handlers) RestoreAlert(ctx context.Context, in *AlertActionInput) (*AlertActionOutput, error) {
	if err := h.Repos.Alert.Restore(ctx, in.ID); err != nil {
		return nil, huma.Error500InternalServerError("restoring alert", err)
	}
	return &AlertActionOutput{}, nil
}

// DashboardOutput is the response for the aggregate dashboard endpoint.
type DashboardOutput struct {
	Body models.DashboardStats
}

// Dashboard returns the aggregate stats shown on the self-hosted dashboard.
func (h *Handlers) Dashboard(ctx context.Context, _ *struct{}) (*DashboardOutput, error) {
	stats, err := h.Repos.Alert.GetDashboardStats(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("computing dashboard stats", err)
	}
	return &DashboardOutput{Body: *stats}, nil
}
