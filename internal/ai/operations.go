package ai

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/hone/internal/models"
	"github.com/jmylchreest/hone/internal/prompts"
	"github.com/jmylchreest/hone/internal/router"
)

func (c *Client) ClassifyMerchant(ctx context.Context, description, categoryHint, tagTree string) (*ClassifyResult, error) {
	raw, err := c.call(ctx, router.TaskFastClassification, prompts.FastClassification, map[string]string{
		"description":   description,
		"category_hint": categoryHint,
		"tag_tree":      tagTree,
	}, "classify_merchant", "")
	if err != nil {
		return nil, err
	}
	return parseClassifyResult(raw)
}

func (c *Client) ClassifyBatch(ctx context.Context, descriptions []string, tagTree string) ([]*ClassifyResult, error) {
	var b strings.Builder
	for i, d := range descriptions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, d)
	}
	raw, err := c.call(ctx, router.TaskFastClassification, prompts.FastClassification, map[string]string{
		"description": b.String(),
		"tag_tree":    tagTree,
	}, "classify_batch", "")
	if err != nil {
		return nil, err
	}
	results, err := parseClassifyBatch(raw)
	if err != nil {
		// Fall back to treating the whole response as a single classification,
		// repeated per description, rather than failing the entire batch.
		single, singleErr := parseClassifyResult(raw)
		if singleErr != nil {
			return nil, err
		}
		results = make([]*ClassifyResult, len(descriptions))
		for i := range results {
			results[i] = single
		}
	}
	return results, nil
}

func (c *Client) NormalizeMerchant(ctx context.Context, description, extendedContext string) (*NormalizeResult, error) {
	raw, err := c.call(ctx, router.TaskFastClassification, prompts.NormalizeMerchant, map[string]string{
		"description":      description,
		"extended_context": extendedContext,
	}, "normalize_merchant", "")
	if err != nil {
		return nil, err
	}
	return parseNormalizeResult(raw)
}

func (c *Client) ParseReceipt(ctx context.Context, imageBytes []byte, hint string, visionModel string) (*ReceiptResult, error) {
	p, err := c.prompts.Get(prompts.StructuredExtractionReceipt)
	if err != nil {
		return nil, err
	}
	vars := map[string]string{"hint": hint}
	systemPrompt := prompts.Render(p.System, vars)
	userPrompt := prompts.Render(p.User, vars)

	model := visionModel
	if model == "" {
		model = c.router.SelectModel(router.TaskVision)
	}
	tc := c.router.TaskConfig(router.TaskVision)

	start := time.Now()
	res, err := c.completer.Complete(ctx, model, systemPrompt, userPrompt, CompleteOptions{
		Temperature: 0.1,
		MaxTokens:   1024,
		Timeout:     tc.Timeout,
		Images:      [][]byte{imageBytes},
	})
	c.recordMetric(ctx, router.TaskVision, model, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return parseReceiptResult(res.Content)
}

func (c *Client) SuggestEntity(ctx context.Context, description, tagTree string) (*EntitySuggestResult, error) {
	raw, err := c.call(ctx, router.TaskFastClassification, prompts.EntitySuggest, map[string]string{
		"description": description,
		"tag_tree":    tagTree,
	}, "suggest_entity", "")
	if err != nil {
		return nil, err
	}
	return parseEntitySuggestResult(raw)
}

func (c *Client) ClassifySubscription(ctx context.Context, merchant string, amount float64, frequency models.SubscriptionFrequency) (*SubscriptionClassifyResult, error) {
	raw, err := c.call(ctx, router.TaskFastClassification, prompts.SubscriptionClassify, map[string]string{
		"merchant":  merchant,
		"amount":    strconv.FormatFloat(amount, 'f', 2, 64),
		"frequency": string(frequency),
	}, "classify_subscription", "")
	if err != nil {
		return nil, err
	}
	return parseSubscriptionClassifyResult(raw)
}

func (c *Client) RecommendSplit(ctx context.Context, description string, amount float64, tagTree string) (*SplitResult, error) {
	raw, err := c.call(ctx, router.TaskStructuredExtraction, prompts.SplitRecommend, map[string]string{
		"description": description,
		"amount":      strconv.FormatFloat(amount, 'f', 2, 64),
		"tag_tree":    tagTree,
	}, "recommend_split", "")
	if err != nil {
		return nil, err
	}
	return parseSplitResult(raw)
}

func (c *Client) EvaluateReceiptMatch(ctx context.Context, receiptMerchant string, receiptTotal float64, receiptDate time.Time, txDescription string, txAmount float64, txDate time.Time) (*ReceiptMatchResult, error) {
	raw, err := c.call(ctx, router.TaskReasoning, prompts.ReceiptMatch, map[string]string{
		"receipt_merchant": receiptMerchant,
		"receipt_total":    strconv.FormatFloat(receiptTotal, 'f', 2, 64),
		"receipt_date":     receiptDate.Format("2006-01-02"),
		"tx_description":   txDescription,
		"tx_amount":        strconv.FormatFloat(txAmount, 'f', 2, 64),
		"tx_date":          txDate.Format("2006-01-02"),
	}, "evaluate_receipt_match", "")
	if err != nil {
		return nil, err
	}
	return parseReceiptMatchResult(raw)
}

func (c *Client) AnalyzeDuplicates(ctx context.Context, category string, subscriptions string) (*DuplicateResult, error) {
	raw, err := c.call(ctx, router.TaskReasoning, prompts.DuplicateAnalysis, map[string]string{
		"category":      category,
		"subscriptions": subscriptions,
	}, "analyze_duplicates", "")
	if err != nil {
		return nil, err
	}
	return &DuplicateResult{Narrative: parseNarrative(raw)}, nil
}

func (c *Client) ExplainSpendingChange(ctx context.Context, tagName string, currentAmount, baselineAmount, percentChange float64, merchantContributions, feedbackSummary string) (*SpendingExplainResult, error) {
	raw, err := c.call(ctx, router.TaskNarrative, prompts.SpendingExplain, map[string]string{
		"tag_name":                tagName,
		"current_amount":          strconv.FormatFloat(currentAmount, 'f', 2, 64),
		"baseline_amount":         strconv.FormatFloat(baselineAmount, 'f', 2, 64),
		"percent_change":          strconv.FormatFloat(percentChange, 'f', 1, 64),
		"merchant_contributions":  merchantContributions,
		"feedback_summary":        feedbackSummary,
	}, "explain_spending_change", "")
	if err != nil {
		return nil, err
	}
	return &SpendingExplainResult{Narrative: parseNarrative(raw)}, nil
}

// recordMetric is the ParseReceipt-path equivalent of call()'s bookkeeping,
// split out because ParseReceipt bypasses call() to pass imageBytes-aware
// options the text-only path doesn't need.
func (c *Client) recordMetric(ctx context.Context, task router.TaskType, model string, latency time.Duration, callErr error) {
	success := callErr == nil
	if success {
		c.router.RecordSuccess(model)
	} else {
		c.router.RecordFailure(model)
	}
	if c.metrics == nil {
		return
	}
	m := &models.OllamaMetric{
		TaskType:   string(task),
		Model:      model,
		Backend:    c.completer.Name(),
		DurationMs: latency.Milliseconds(),
		Success:    success,
	}
	if callErr != nil {
		m.ErrorMessage = truncate(callErr.Error(), 500)
	}
	_ = c.metrics.Record(ctx, m)
}
