package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/hone/internal/models"
)

// AccountBody is the wire representation of an Account.
type AccountBody struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Institution string    `json:"institution,omitempty"`
	Type        string    `json:"type"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func accountToBody(a *models.Account) AccountBody {
	return AccountBody{ID: a.ID, Name: a.Name, Institution: a.Institution, Type: a.Type, Currency: a.Currency, CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt}
}

// ListAccountsOutput is the response for listing accounts.
type ListAccountsOutput struct {
	Body struct {
		Accounts []AccountBody `json:"accounts"`
	}
}

// ListAccounts returns every configured account.
func (h *Handlers) ListAccounts(ctx context.Context, _ *struct{}) (*ListAccountsOutput, error) {
	accounts, err := h.Repos.Account.List(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing accounts", err)
	}
	out := &ListAccountsOutput{}
	for _, a := range accounts {
		out.Body.Accounts = append(out.Body.Accounts, accountToBody(a))
	}
	return out, nil
}

// CreateAccountInput is the request body for creating an account.
type CreateAccountInput struct {
	Body struct {
		Name        string `json:"name" minLength:"1"`
		Institution string `json:"institution,omitempty"`
		Type        string `json:"type" enum:"checking,savings,credit_card,cash"`
		Currency    string `json:"currency" minLength:"3" maxLength:"3"`
	}
}

// CreateAccountOutput is the response for creating an account.
type CreateAccountOutput struct {
	Body AccountBody
}

// CreateAccount registers a new account to import statements against.
func (h *Handlers) CreateAccount(ctx context.Context, in *CreateAccountInput) (*CreateAccountOutput, error) {
	a := &models.Account{
		Name:        in.Body.Name,
		Institution: in.Body.Institution,
		Type:        in.Body.Type,
		Currency:    in.Body.Currency,
	}
	if a.Currency == "" {
		a.Currency = "USD"
	}
	if err := h.Repos.Account.Create(ctx, a); err != nil {
		return nil, huma.Error500InternalServerError("creating account", err)
	}
	return &CreateAccountOutput{Body: accountToBody(a)}, nil
}

// GetAccountInput identifies an account by path id.
type GetAccountInput struct {
	ID int64 `path:"id"`
}

// GetAccountOutput is the response for fetching one account.
type GetAccountOutput struct {
	Body AccountBody
}

// GetAccount fetches a single account.
func (h *Handlers) GetAccount(ctx context.Context, in *GetAccountInput) (*GetAccountOutput, error) {
	a, err := h.Repos.Account.GetByID(ctx, in.ID)
	if err != nil {
		return nil, huma.Error404NotFound("account not found", err)
	}
	return &GetAccountOutput{Body: accountToBody(a)}, nil
}

// UpdateAccountInput is the request for updating an account.
type UpdateAccountInput struct {
	ID   int64 `path:"id"`
	Body struct {
		Name        string `json:"name" minLength:"1"`
		Institution string `json:"institution,omitempty"`
		Type        string `json:"type" enum:"checking,savings,credit_card,cash"`
		Currency    string `json:"currency" minLength:"3" maxLength:"3"`
	}
}

// UpdateAccountOutput is the response for updating an account.
type UpdateAccountOutput struct {
	Body AccountBody
}

// UpdateAccount edits an account's metadata.
func (h *Handlers) UpdateAccount(ctx context.Context, in *UpdateAccountInput) (*UpdateAccountOutput, error) {
	existing, err := h.Repos.Account.GetByID(ctx, in.ID)
	if err != nil {
		return nil, huma.Error404NotFound("account not found", err)
	}
	existing.Name = in.Body.Name
	existing.Institution = in.Body.Institution
	existing.Type = in.Body.Type
	existing.Currency = in.Body.Currency
	if err := h.Repos.Account.Update(ctx, existing); err != nil {
		return nil, huma.Error500InternalServerError("updating account", err)
	}
	return &UpdateAccountOutput{Body: accountToBody(existing)}, nil
}

// DeleteAccountInput identifies an account to delete.
type DeleteAccountInput struct {
	ID int64 `path:"id"`
}

// DeleteAccountOutput is an empty response.
type DeleteAccountOutput struct{}

// DeleteAccount removes an account and, per the store's foreign keys, its
// transactions.
func (h *Handlers) DeleteAccount(ctx context.Context, in *DeleteAccountInput) (*DeleteAccountOutput, error) {
	if err := h.Repos.Account.Delete(ctx, in.ID); err != nil {
		return nil, huma.Error500InternalServerError("deleting account", err)
	}
	return &DeleteAccountOutput{}, nil
}
