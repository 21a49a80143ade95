package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/hone/internal/models"
	"github.com/jmylchreest/hone/internal/repository"
)

// TransactionBody is the wire representation of a Transaction, including its
// resolved tags.
type TransactionBody struct {
	ID             int64     `json:"id"`
	AccountID      int64     `json:"account_id"`
	Date           time.Time `json:"date"`
	Description    string    `json:"description"`
	Merchant       string    `json:"merchant,omitempty"`
	NormalizedName string    `json:"normalized_name,omitempty"`
	Amount         float64   `json:"amount"`
	Currency       string    `json:"currency"`
	Excluded       bool      `json:"excluded"`
	ReceiptID      *int64    `json:"receipt_id,omitempty"`
	Tags           []TagLinkBody `json:"tags,omitempty"`
}

// TagLinkBody is the wire representation of a TransactionTag.
type TagLinkBody struct {
	TagID      int64   `json:"tag_id"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

func transactionToBody(t *models.Transaction, links []*models.TransactionTag) TransactionBody {
	b := TransactionBody{
		ID: t.ID, AccountID: t.AccountID, Date: t.Date, Description: t.Description,
		Merchant: t.Merchant, NormalizedName: t.NormalizedName, Amount: t.Amount,
		Currency: t.Currency, Excluded: t.Excluded, ReceiptID: t.ReceiptID,
	}
	for _, l := range links {
		b.Tags = append(b.Tags, TagLinkBody{TagID: l.TagID, Confidence: l.Confidence, Source: l.Source})
	}
	return b
}

// ListTransactionsInput filters the transaction listing.
type ListTransactionsInput struct {
	AccountID int64  `query:"account_id"`
	TagID     int64  `query:"tag_id"`
	Merchant  string `query:"merchant"`
	From      string `query:"from" doc:"RFC3339 or YYYY-MM-DD"`
	To        string `query:"to" doc:"RFC3339 or YYYY-MM-DD"`
	Untagged  bool   `query:"untagged"`
	Limit     int    `query:"limit"`
	Offset    int    `query:"offset"`
}

// ListTransactionsOutput is the response for listing transactions.
type ListTransactionsOutput struct {
	Body struct {
		Transactions []TransactionBody `json:"transactions"`
	}
}

// ListTransactions lists transactions matching the given filters.
func (h *Handlers) ListTransactions(ctx context.Context, in *ListTransactionsInput) (*ListTransactionsOutput, error) {
	filter := repository.TransactionFilter{
		Merchant: in.Merchant,
		Untagged: in.Untagged,
		Limit:    in.Limit,
		Offset:   in.Offset,
	}
	if in.AccountID != 0 {
		filter.AccountID = &in.AccountID
	}
	if in.TagID != 0 {
		filter.TagID = &in.TagID
	}
	if t, err := parseDateParam(in.From); err == nil && !t.IsZero() {
		filter.From = &t
	}
	if t, err := parseDateParam(in.To); err == nil && !t.IsZero() {
		filter.To = &t
	}

	txs, err := h.Repos.Transaction.List(ctx, filter)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing transactions", err)
	}
	out := &ListTransactionsOutput{}
	for _, t := range txs {
		links, _ := h.Repos.TransactionTag.ListByTransaction(ctx, t.ID)
		out.Body.Transactions = append(out.Body.Transactions, transactionToBody(t, links))
	}
	return out, nil
}

func parseDateParam(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// GetTransactionInput identifies a transaction by path id.
type GetTransactionInput struct {
	ID int64 `path:"id"`
}

// GetTransactionOutput is the response for fetching one transaction.
type GetTransactionOutput struct {
	Body TransactionBody
}

// GetTransaction fetches a single transaction with its tag links.
func (h *Handlers) GetTransaction(ctx context.Context, in *GetTransactionInput) (*GetTransactionOutput, error) {
	t, err := h.Repos.Transaction.GetByID(ctx, in.ID)
	if err != nil {
		return nil, huma.Error404NotFound("transaction not found", err)
	}
	links, _ := h.Repos.TransactionTag.ListByTransaction(ctx, t.ID)
	return &GetTransactionOutput{Body: transactionToBody(t, links)}, nil
}

// ImportTransactionLine is one statement line submitted for import.
type ImportTransactionLine struct {
	Date        string  `json:"date" doc:"RFC3339 or YYYY-MM-DD"`
	Description string  `json:"description" minLength:"1"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency,omitempty"`
	// Category is the bank or aggregator's own category string for this
	// line, if the import source supplies one (e.g. a CSV "Category" column).
	Category string `json:"category,omitempty"`
}

// ImportTransactionsInput is the request body for a statement import.
type ImportTransactionsInput struct {
	Body struct {
		AccountID    int64                   `json:"account_id"`
		Transactions []ImportTransactionLine `json:"transactions" minItems:"1"`
	}
}

// ImportTransactionsOutput reports how many lines were inserted vs skipped
// as duplicates of an already-imported line.
type ImportTransactionsOutput struct {
	Body struct {
		Inserted int `json:"inserted"`
		Skipped  int `json:"skipped"`
	}
}

// ImportTransactions inserts a batch of statement lines, deduping on a hash
// of (account, date, description, amount) so re-importing the same
// statement is idempotent.
func (h *Handlers) ImportTransactions(ctx context.Context, in *ImportTransactionsInput) (*ImportTransactionsOutput, error) {
	account, err := h.Repos.Account.GetByID(ctx, in.Body.AccountID)
	if err != nil {
		return nil, huma.Error404NotFound("account not found", err)
	}

	txs := make([]*models.Transaction, 0, len(in.Body.Transactions))
	for _, line := range in.Body.Transactions {
		date, err := parseDateParam(line.Date)
		if err != nil || date.IsZero() {
			return nil, huma.Error400BadRequest(fmt.Sprintf("invalid date %q", line.Date))
		}
		currency := line.Currency
		if currency == "" {
			currency = account.Currency
		}
		tx := &models.Transaction{
			AccountID:    account.ID,
			Date:         date,
			Description:  line.Description,
			Amount:       line.Amount,
			Currency:     currency,
			BankCategory: line.Category,
		}
		tx.ImportHash = importHash(account.ID, date, line.Description, line.Amount)
		txs = append(txs, tx)
	}

	inserted, skipped, err := h.Repos.Transaction.CreateBatch(ctx, txs)
	if err != nil {
		return nil, huma.Error500InternalServerError("importing transactions", err)
	}
	out := &ImportTransactionsOutput{}
	out.Body.Inserted = inserted
	out.Body.Skipped = skipped
	return out, nil
}

func importHash(accountID int64, date time.Time, description string, amount float64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%s|%.2f", accountID, date.Format("2006-01-02"), description, amount)))
	return hex.EncodeToString(sum[:])
}

// SetExcludedInput marks a transaction as excluded (or not) from reports.
type SetExcludedInput struct {
	ID   int64 `path:"id"`
	Body struct {
		Excluded bool `json:"excluded"`
	}
}

// SetExcludedOutput is an empty response.
type SetExcludedOutput struct{}

// SetTransactionExcluded toggles whether a transaction counts toward
// spending reports and waste detection.
func (h *Handlers) SetTransactionExcluded(ctx context.Context, in *SetExcludedInput) (*SetExcludedOutput, error) {
	if err := h.Repos.Transaction.SetExcluded(ctx, in.ID, in.Body.Excluded); err != nil {
		return nil, huma.Error500InternalServerError("updating transaction", err)
	}
	return &SetExcludedOutput{}, nil
}

// AssignTagInput assigns a tag to a transaction by hand.
type AssignTagInput struct {
	ID   int64 `path:"id"`
	Body struct {
		TagID int64 `json:"tag_id"`
	}
}

// AssignTagOutput is an empty response.
type AssignTagOutput struct{}

// AssignTag manually assigns a tag to a transaction, recorded with
// source=user and full confidence, overriding any prior AI assignment.
func (h *Handlers) AssignTag(ctx context.Context, in *AssignTagInput) (*AssignTagOutput, error) {
	link := &models.TransactionTag{
		TransactionID: in.ID,
		TagID:         in.Body.TagID,
		Confidence:    1.0,
		Source:        "user",
	}
	if err := h.Repos.TransactionTag.Assign(ctx, link); err != nil {
		return nil, huma.Error500InternalServerError("assigning tag", err)
	}
	_ = h.Repos.UserFeedback.Create(ctx, &models.UserFeedback{
		TargetType: models.FeedbackTargetTransaction,
		TargetID:   in.ID,
		Accepted:   true,
		Correction: fmt.Sprintf("tag_id=%d", in.Body.TagID),
	})
	return &AssignTagOutput{}, nil
}

// UnassignTagInput removes a tag link from a transaction.
type UnassignTagInput struct {
	ID    int64 `path:"id"`
	TagID int64 `path:"tagId"`
}

// UnassignTagOutput is an empty response.
type UnassignTagOutput struct{}

// UnassignTag removes a tag from a transaction.
func (h *Handlers) UnassignTag(ctx context.Context, in *UnassignTagInput) (*UnassignTagOutput, error) {
	if err := h.Repos.TransactionTag.Unassign(ctx, in.ID, in.TagID); err != nil {
		return nil, huma.Error500InternalServerError("unassigning tag", err)
	}
	return &UnassignTagOutput{}, nil
}
