// Package ai defines the pluggable AI backend interface and its three
// concrete variants (native, openai_compatible, mock), all honoring the
// same operation set over pure text and images.
package ai

import (
	"context"
	"time"

	"github.com/jmylchreest/hone/internal/llm"
	"github.com/jmylchreest/hone/internal/models"
	"github.com/jmylchreest/hone/internal/prompts"
	"github.com/jmylchreest/hone/internal/router"
)

// ClassifyResult is the outcome of a merchant/transaction classification call.
type ClassifyResult struct {
	TagPath    string
	Confidence float64
}

// NormalizeResult is the outcome of a merchant-name normalization call.
type NormalizeResult struct {
	NormalizedName string
}

// ReceiptResult is the outcome of a receipt image parse.
type ReceiptResult struct {
	Merchant    string
	Subtotal    float64
	Tax         float64
	Tip         float64
	Total       float64
	PurchasedAt time.Time
}

// EntitySuggestResult is the outcome of a new-tag suggestion call.
type EntitySuggestResult struct {
	Name   string
	Parent string
}

// SubscriptionClassifyResult is the outcome of a subscription-vs-retail call.
type SubscriptionClassifyResult struct {
	IsSubscription bool
	Confidence     float64
}

// SplitSuggestion is one line of a recommended multi-category split.
type SplitSuggestion struct {
	Tag    string
	Amount float64
}

// SplitResult is the outcome of a split-recommendation call.
type SplitResult struct {
	Splits []SplitSuggestion
}

// ReceiptMatchResult is the outcome of a receipt/transaction match evaluation.
type ReceiptMatchResult struct {
	Match      bool
	Confidence float64
	Reason     string
}

// DuplicateResult is the outcome of a duplicate-cluster narrative call.
type DuplicateResult struct {
	Narrative string
}

// SpendingExplainResult is the outcome of a spending-change narrative call.
type SpendingExplainResult struct {
	Narrative string
}

// Backend is the pluggable AI operation set every variant honors. No
// operation mutates the store; callers are responsible for persistence and
// metric recording is the caller's (Client's) concern, not the transport's.
type Backend interface {
	ClassifyMerchant(ctx context.Context, description, categoryHint, tagTree string) (*ClassifyResult, error)
	ClassifyBatch(ctx context.Context, descriptions []string, tagTree string) ([]*ClassifyResult, error)
	NormalizeMerchant(ctx context.Context, description, extendedContext string) (*NormalizeResult, error)
	ParseReceipt(ctx context.Context, imageBytes []byte, hint string, visionModel string) (*ReceiptResult, error)
	SuggestEntity(ctx context.Context, description, tagTree string) (*EntitySuggestResult, error)
	ClassifySubscription(ctx context.Context, merchant string, amount float64, frequency models.SubscriptionFrequency) (*SubscriptionClassifyResult, error)
	RecommendSplit(ctx context.Context, description string, amount float64, tagTree string) (*SplitResult, error)
	EvaluateReceiptMatch(ctx context.Context, receiptMerchant string, receiptTotal float64, receiptDate time.Time, txDescription string, txAmount float64, txDate time.Time) (*ReceiptMatchResult, error)
	AnalyzeDuplicates(ctx context.Context, category string, subscriptions string) (*DuplicateResult, error)
	ExplainSpendingChange(ctx context.Context, tagName string, currentAmount, baselineAmount, percentChange float64, merchantContributions, feedbackSummary string) (*SpendingExplainResult, error)
	HealthCheck(ctx context.Context) error
}

// MetricSink records one completed AI call for the metrics recorder.
type MetricSink interface {
	Record(ctx context.Context, m *models.OllamaMetric) error
}

// CompleteOptions configures one underlying model completion.
type CompleteOptions struct {
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	// Images holds raw image bytes for a vision-capable completion; empty
	// for text-only calls.
	Images [][]byte
}

// CompleteResult is a raw model completion, before task-specific parsing.
type CompleteResult struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// Completer is the minimal transport contract a concrete backend variant
// implements; Client layers prompt rendering, response parsing, router
// health feedback, and metric recording on top of it.
type Completer interface {
	Name() string
	Complete(ctx context.Context, model, systemPrompt, userPrompt string, opts CompleteOptions) (*CompleteResult, error)
}

// Client is the shared implementation behind all three Backend variants; it
// differs only in which Completer it wraps.
type Client struct {
	completer Completer
	prompts   *prompts.Library
	router    *router.Router
	metrics   MetricSink
}

// New constructs a Client over the given transport.
func New(completer Completer, promptLib *prompts.Library, r *router.Router, metrics MetricSink) *Client {
	return &Client{completer: completer, prompts: promptLib, router: r, metrics: metrics}
}

var _ Backend = (*Client)(nil)

func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.call(ctx, router.TaskFastClassification, prompts.FastClassification,
		map[string]string{"description": "health check", "tag_tree": ""}, "health_check", "")
	return err
}

// call renders promptID with vars, selects a model for task via the router,
// invokes the completer, and records a metric row + router health signal.
// The metric row carries the error message truncated to 500 bytes; no
// input or output excerpt is recorded.
func (c *Client) call(ctx context.Context, task router.TaskType, promptID prompts.ID, vars map[string]string, operation, transactionIDHint string) (string, error) {
	p, err := c.prompts.Get(promptID)
	if err != nil {
		return "", err
	}
	systemPrompt := prompts.Render(p.System, vars)
	userPrompt := prompts.Render(p.User, vars)

	tc := c.router.TaskConfig(task)
	model := c.router.SelectModel(task)

	start := time.Now()
	res, err := c.completer.Complete(ctx, model, systemPrompt, userPrompt, CompleteOptions{
		Temperature: 0.2,
		MaxTokens:   1024,
		Timeout:     tc.Timeout,
	})
	latency := time.Since(start)

	success := err == nil
	var classified *llm.BackendError
	if success {
		c.router.RecordSuccess(model)
	} else {
		classified = llm.ClassifyError(err, c.completer.Name(), model, 0)
		if llm.IsRetryable(classified) {
			c.router.RecordFailure(model)
		}
	}

	if c.metrics != nil {
		m := &models.OllamaMetric{
			TaskType:   string(task),
			Model:      model,
			Backend:    c.completer.Name(),
			DurationMs: latency.Milliseconds(),
			Success:    success,
		}
		if classified != nil {
			m.ErrorMessage = truncate(classified.Error(), 500)
		}
		_ = c.metrics.Record(ctx, m)
	}

	if classified != nil {
		return "", classified.AsHoneError()
	}
	return res.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
