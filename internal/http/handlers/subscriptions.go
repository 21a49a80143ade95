package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/hone/internal/models"
)

// SubscriptionBody is the wire representation of a Subscription.
type SubscriptionBody struct {
	ID                     int64      `json:"id"`
	Merchant               string     `json:"merchant"`
	AccountID              *int64     `json:"account_id,omitempty"`
	Amount                 float64    `json:"amount"`
	Frequency              string     `json:"frequency"`
	Status                 string     `json:"status"`
	MonthlyEquivalent      float64    `json:"monthly_equivalent"`
	FirstSeen              time.Time  `json:"first_seen"`
	LastSeen               time.Time  `json:"last_seen"`
	LastUsedAt             *time.Time `json:"last_used_at,omitempty"`
	UserAcknowledged       bool       `json:"user_acknowledged"`
	AcknowledgedAt         *time.Time `json:"acknowledged_at,omitempty"`
	CancelledAt            *time.Time `json:"cancelled_at,omitempty"`
	CancelledMonthlyAmount *float64   `json:"cancelled_monthly_amount,omitempty"`
}

func subscriptionToBody(s *models.Subscription) SubscriptionBody {
	return SubscriptionBody{
		ID: s.ID, Merchant: s.Merchant, AccountID: s.AccountID, Amount: s.Amount, Frequency: string(s.Frequency),
		Status: string(s.Status), MonthlyEquivalent: s.MonthlyEquivalent(),
		FirstSeen: s.FirstSeen, LastSeen: s.LastSeen, LastUsedAt: s.LastUsedAt,
		UserAcknowledged: s.UserAcknowledged, AcknowledgedAt: s.AcknowledgedAt,
		CancelledAt: s.CancelledAt, CancelledMonthlyAmount: s.CancelledMonthlyAmount,
	}
}

// ListSubscriptionsInput filters the subscription listing.
type ListSubscriptionsInput struct {
	IncludeExcluded bool `query:"include_excluded"`
}

// ListSubscriptionsOutput is the response for listing subscriptions.
type ListSubscriptionsOutput struct {
	Body struct {
		Subscriptions []SubscriptionBody `json:"subscriptions"`
	}
}

// ListSubscriptions lists detected recurring charges.
func (h *Handlers) ListSubscriptions(ctx context.Context, in *ListSubscriptionsInput) (*ListSubscriptionsOutput, error) {
	subs, err := h.Repos.Subscription.List(ctx, in.IncludeExcluded)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing subscriptions", err)
	}
	out := &ListSubscriptionsOutput{}
	for _, s := range subs {
		out.Body.Subscriptions = append(out.Body.Subscriptions, subscriptionToBody(s))
	}
	return out, nil
}

// GetSubscriptionInput identifies a subscription by path id.
type GetSubscriptionInput struct {
	ID int64 `path:"id"`
}

// GetSubscriptionOutput is the response for fetching one subscription,
// including the transactions that contributed to it.
type GetSubscriptionOutput struct {
	Body struct {
		SubscriptionBody
		TransactionIDs []int64 `json:"transaction_ids"`
	}
}

// GetSubscription fetches a single subscription with its linked transactions.
func (h *Handlers) GetSubscription(ctx context.Context, in *GetSubscriptionInput) (*GetSubscriptionOutput, error) {
	s, err := h.Repos.Subscription.GetByID(ctx, in.ID)
	if err != nil {
		return nil, huma.Error404NotFound("subscription not found", err)
	}
	ids, _ := h.Repos.Subscription.TransactionIDs(ctx, in.ID)
	out := &GetSubscriptionOutput{}
	out.Body.SubscriptionBody = subscriptionToBody(s)
	out.Body.TransactionIDs = ids
	return out, nil
}

// SubscriptionActionInput identifies a subscription to act on.
type SubscriptionActionInput struct {
	ID int64 `path:"id"`
}

// SubscriptionActionOutput is an empty response.
type SubscriptionActionOutput struct{}

// AcknowledgeSubscription marks a subscription as reviewed, resetting the
// zombie detector's stale-acknowledgement clock.
func (h *Handlers) AcknowledgeSubscription(ctx context.Context, in *SubscriptionActionInput) (*SubscriptionActionOutput, error) {
	if err := h.Repos.Subscription.Acknowledge(ctx, in.ID); err != nil {
		return nil, huma.Error500InternalServerError("acknowledging subscription", err)
	}
	return &SubscriptionActionOutput{}, nil
}

// ReactivateSubscription marks a cancelled or zombie subscription active again.
func (h *Handlers) ReactivateSubscription(ctx context.Context, in *SubscriptionActionInput) (*SubscriptionActionOutput, error) {
	if err := h.Repos.Subscription.Reactivate(ctx, in.ID); err != nil {
		return nil, huma.Error500InternalServerError("reactivating subscription", err)
	}
	return &SubscriptionActionOutput{}, nil
}

// ExcludeSubscription removes a subscription from waste detection (e.g. a
// recurring charge the user has decided is not a problem).
func (h *Handlers) ExcludeSubscription(ctx context.Context, in *SubscriptionActionInput) (*SubscriptionActionOutput, error) {
	if err := h.Repos.Subscription.Exclude(ctx, in.ID); err != nil {
		return nil, huma.Error500InternalServerError("excluding subscription", err)
	}
	return &SubscriptionActionOutput{}, nil
}

// UnexcludeSubscription re-includes a previously excluded subscription.
func (h *Handlers) UnexcludeSubscription(ctx context.Context, in *SubscriptionActionInput) (*SubscriptionActionOutput, error) {
	if err := h.Repos.Subscription.Unexclude(ctx, in.ID); err != nil {
		return nil, huma.Error500InternalServerError("unexcluding subscription", err)
	}
	return &SubscriptionActionOutput{}, nil
}

// CancelSubscriptionInput identifies a subscription the user has manually
// cancelled outside the app.
type CancelSubscriptionInput struct {
	ID int64 `path:"id"`
}

// CancelSubscription marks a subscription cancelled, recording the amount it
// was cancelled at so a later resume can report the old-vs-new gap.
func (h *Handlers) CancelSubscription(ctx context.Context, in *CancelSubscriptionInput) (*SubscriptionActionOutput, error) {
	if err := h.Repos.Subscription.Cancel(ctx, in.ID); err != nil {
		return nil, huma.Error500InternalServerError("cancelling subscription", err)
	}
	return &SubscriptionActionOutput{}, nil
}

// DeleteSubscriptionInput identifies a subscription to delete outright.
type DeleteSubscriptionInput struct {
	ID int64 `path:"id"`
}

// DeleteSubscription removes a subscription record entirely (distinct from
// Cancel/Exclude, which preserve history).
func (h *Handlers) DeleteSubscription(ctx context.Context, in *DeleteSubscriptionInput) (*SubscriptionActionOutput, error) {
	if err := h.Repos.Subscription.Delete(ctx, in.ID); err != nil {
		return nil, huma.Error500InternalServerError("deleting subscription", err)
	}
	return &SubscriptionActionOutput{}, nil
}
