package handlers

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/hone/internal/models"
)

// ReceiptBody is the wire representation of a Receipt.
type ReceiptBody struct {
	ID            int64     `json:"id"`
	TransactionID *int64    `json:"transaction_id,omitempty"`
	Merchant      string    `json:"merchant"`
	Subtotal      float64   `json:"subtotal"`
	Tax           float64   `json:"tax"`
	Tip           float64   `json:"tip"`
	Total         float64   `json:"total"`
	PurchasedAt   time.Time `json:"purchased_at"`
}

func receiptToBody(r *models.Receipt) ReceiptBody {
	return ReceiptBody{
		ID: r.ID, TransactionID: r.TransactionID, Merchant: r.Merchant,
		Subtotal: r.Subtotal, Tax: r.Tax, Tip: r.Tip, Total: r.Total, PurchasedAt: r.PurchasedAt,
	}
}

// UploadReceiptInput is the request body for submitting a receipt image.
type UploadReceiptInput struct {
	Body struct {
		ImageBase64 string `json:"image_base64" minLength:"1" doc:"Raw receipt image, base64-encoded"`
		Hint        string `json:"hint,omitempty" doc:"Optional free-text hint, e.g. an expected merchant name"`
	}
}

// UploadReceiptOutput is the response for a parsed receipt upload.
type UploadReceiptOutput struct {
	Body ReceiptBody
}

// UploadReceipt parses a photographed or scanned receipt via the AI
// backend's vision path and stores the extracted line totals.
func (h *Handlers) UploadReceipt(ctx context.Context, in *UploadReceiptInput) (*UploadReceiptOutput, error) {
	imageBytes, err := base64.StdEncoding.DecodeString(in.Body.ImageBase64)
	if err != nil {
		return nil, huma.Error400BadRequest("image_base64 is not valid base64", err)
	}

	parsed, err := h.Backend.ParseReceipt(ctx, imageBytes, in.Body.Hint, "")
	if err != nil {
		return nil, huma.Error502BadGateway("parsing receipt", err)
	}

	r := &models.Receipt{
		Merchant:    parsed.Merchant,
		Subtotal:    parsed.Subtotal,
		Tax:         parsed.Tax,
		Tip:         parsed.Tip,
		Total:       parsed.Total,
		PurchasedAt: parsed.PurchasedAt,
	}
	if err := h.Repos.Receipt.Create(ctx, r); err != nil {
		return nil, huma.Error500InternalServerError("storing receipt", err)
	}
	return &UploadReceiptOutput{Body: receiptToBody(r)}, nil
}

// GetReceiptInput identifies a receipt by path id.
type GetReceiptInput struct {
	ID int64 `path:"id"`
}

// GetReceiptOutput is the response for fetching one receipt.
type GetReceiptOutput struct {
	Body ReceiptBody
}

// GetReceipt fetches a single receipt.
func (h *Handlers) GetReceipt(ctx context.Context, in *GetReceiptInput) (*GetReceiptOutput, error) {
	r, err := h.Repos.Receipt.GetByID(ctx, in.ID)
	if err != nil {
		return nil, huma.Error404NotFound("receipt not found", err)
	}
	return &GetReceiptOutput{Body: receiptToBody(r)}, nil
}

// ListUnmatchedReceiptsOutput is the response for listing unmatched receipts.
type ListUnmatchedReceiptsOutput struct {
	Body struct {
		Receipts []ReceiptBody `json:"receipts"`
	}
}

// ListUnmatchedReceipts lists receipts not yet linked to a transaction.
func (h *Handlers) ListUnmatchedReceipts(ctx context.Context, _ *struct{}) (*ListUnmatchedReceiptsOutput, error) {
	receipts, err := h.Repos.Receipt.Unmatched(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing unmatched receipts", err)
	}
	out := &ListUnmatchedReceiptsOutput{}
	for _, r := range receipts {
		out.Body.Receipts = append(out.Body.Receipts, receiptToBody(r))
	}
	return out, nil
}

// LinkReceiptInput links a receipt to a transaction by hand, after the
// user reviews the AI's suggested match (or when none was confident enough).
type LinkReceiptInput struct {
	ID   int64 `path:"id"`
	Body struct {
		TransactionID int64 `json:"transaction_id"`
	}
}

// LinkReceiptOutput is an empty response.
type LinkReceiptOutput struct{}

// LinkReceipt links a receipt to a transaction.
func (h *Handlers) LinkReceipt(ctx context.Context, in *LinkReceiptInput) (*LinkReceiptOutput, error) {
	if err := h.Repos.Receipt.LinkToTransaction(ctx, in.ID, in.Body.TransactionID); err != nil {
		return nil, huma.Error500InternalServerError("linking receipt", err)
	}
	return &LinkReceiptOutput{}, nil
}

// SuggestReceiptMatchInput asks the AI backend to evaluate whether a
// receipt and a transaction describe the same purchase.
type SuggestReceiptMatchInput struct {
	ID            int64 `path:"id"`
	TransactionID int64 `query:"transaction_id"`
}

// SuggestReceiptMatchOutput is the AI's match evaluation.
type SuggestReceiptMatchOutput struct {
	Body struct {
		Match      bool    `json:"match"`
		Confidence float64 `json:"confidence"`
		Reason     string  `json:"reason"`
	}
}

// SuggestReceiptMatch evaluates whether a receipt and a candidate
// transaction are likely the same purchase. It returns the backend's
// verdict only; it neither links the two nor computes a tip/tax gap.
func (h *Handlers) SuggestReceiptMatch(ctx context.Context, in *SuggestReceiptMatchInput) (*SuggestReceiptMatchOutput, error) {
	receipt, err := h.Repos.Receipt.GetByID(ctx, in.ID)
	if err != nil {
		return nil, huma.Error404NotFound("receipt not found", err)
	}
	tx, err := h.Repos.Transaction.GetByID(ctx, in.TransactionID)
	if err != nil {
		return nil, huma.Error404NotFound("transaction not found", err)
	}

	result, err := h.Backend.EvaluateReceiptMatch(ctx, receipt.Merchant, receipt.Total, receipt.PurchasedAt, tx.Description, tx.Amount, tx.Date)
	if err != nil {
		return nil, huma.Error502BadGateway("evaluating receipt match", err)
	}
	out := &SuggestReceiptMatchOutput{}
	out.Body.Match = result.Match
	out.Body.Confidence = result.Confidence
	out.Body.Reason = result.Reason
	return out, nil
}
