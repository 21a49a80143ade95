package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSON scans for the first "{" and the last "}" in s and returns the
// substring between them. Sufficient for single-object responses where the
// model wraps its JSON in prose or a markdown fence.
func extractJSON(s string) (string, error) {
	first := strings.IndexByte(s, '{')
	last := strings.LastIndexByte(s, '}')
	if first == -1 || last == -1 || last < first {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return s[first : last+1], nil
}

// extractBalancedJSON scans for the first top-level JSON object using brace
// depth tracking rather than first/last index, so embedded braces in
// surrounding prose (e.g. a merchant name containing "}") cannot corrupt the
// match. Used specifically for normalization responses, where the input
// description is echoed back and may itself contain brace characters.
func extractBalancedJSON(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON object in response")
}

func parseClassifyResult(raw string) (*ClassifyResult, error) {
	js, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}
	var out struct {
		Tag        string  `json:"tag"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(js), &out); err != nil {
		return nil, fmt.Errorf("parsing classify response: %w", err)
	}
	return &ClassifyResult{TagPath: out.Tag, Confidence: out.Confidence}, nil
}

func parseClassifyBatch(raw string) ([]*ClassifyResult, error) {
	first := strings.IndexByte(raw, '[')
	last := strings.LastIndexByte(raw, ']')
	if first == -1 || last == -1 || last < first {
		return nil, fmt.Errorf("no JSON array found in batch response")
	}
	var items []struct {
		Tag        string  `json:"tag"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw[first:last+1]), &items); err != nil {
		return nil, fmt.Errorf("parsing batch classify response: %w", err)
	}
	out := make([]*ClassifyResult, len(items))
	for i, it := range items {
		out[i] = &ClassifyResult{TagPath: it.Tag, Confidence: it.Confidence}
	}
	return out, nil
}

// parseNormalizeResult uses balanced-brace scanning: the raw merchant
// description is often echoed into the response and may contain braces.
func parseNormalizeResult(raw string) (*NormalizeResult, error) {
	js, err := extractBalancedJSON(raw)
	if err != nil {
		return nil, err
	}
	var out struct {
		NormalizedName string `json:"normalized_name"`
	}
	if err := json.Unmarshal([]byte(js), &out); err != nil {
		return nil, fmt.Errorf("parsing normalize response: %w", err)
	}
	return &NormalizeResult{NormalizedName: out.NormalizedName}, nil
}

func parseReceiptResult(raw string) (*ReceiptResult, error) {
	js, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}
	var out struct {
		Merchant    string  `json:"merchant"`
		Subtotal    float64 `json:"subtotal"`
		Tax         float64 `json:"tax"`
		Tip         float64 `json:"tip"`
		Total       float64 `json:"total"`
		PurchasedAt string  `json:"purchased_at"`
	}
	if err := json.Unmarshal([]byte(js), &out); err != nil {
		return nil, fmt.Errorf("parsing receipt response: %w", err)
	}
	r := &ReceiptResult{Merchant: out.Merchant, Subtotal: out.Subtotal, Tax: out.Tax, Tip: out.Tip, Total: out.Total}
	if t, err := parseFlexibleTime(out.PurchasedAt); err == nil {
		r.PurchasedAt = t
	}
	return r, nil
}

func parseEntitySuggestResult(raw string) (*EntitySuggestResult, error) {
	js, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}
	var out struct {
		Name   string `json:"name"`
		Parent string `json:"parent"`
	}
	if err := json.Unmarshal([]byte(js), &out); err != nil {
		return nil, fmt.Errorf("parsing entity suggestion response: %w", err)
	}
	return &EntitySuggestResult{Name: out.Name, Parent: out.Parent}, nil
}

func parseSubscriptionClassifyResult(raw string) (*SubscriptionClassifyResult, error) {
	js, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}
	var out struct {
		IsSubscription bool    `json:"is_subscription"`
		Confidence     float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(js), &out); err != nil {
		return nil, fmt.Errorf("parsing subscription classify response: %w", err)
	}
	return &SubscriptionClassifyResult{IsSubscription: out.IsSubscription, Confidence: out.Confidence}, nil
}

func parseSplitResult(raw string) (*SplitResult, error) {
	js, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}
	var out struct {
		Splits []struct {
			Tag    string  `json:"tag"`
			Amount float64 `json:"amount"`
		} `json:"splits"`
	}
	if err := json.Unmarshal([]byte(js), &out); err != nil {
		return nil, fmt.Errorf("parsing split response: %w", err)
	}
	splits := make([]SplitSuggestion, len(out.Splits))
	for i, s := range out.Splits {
		splits[i] = SplitSuggestion{Tag: s.Tag, Amount: s.Amount}
	}
	return &SplitResult{Splits: splits}, nil
}

func parseReceiptMatchResult(raw string) (*ReceiptMatchResult, error) {
	js, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}
	var out struct {
		Match      bool    `json:"match"`
		Confidence float64 `json:"confidence"`
		Reason     string  `json:"reason"`
	}
	if err := json.Unmarshal([]byte(js), &out); err != nil {
		return nil, fmt.Errorf("parsing receipt match response: %w", err)
	}
	return &ReceiptMatchResult{Match: out.Match, Confidence: out.Confidence, Reason: out.Reason}, nil
}

func parseNarrative(raw string) string {
	js, err := extractJSON(raw)
	if err != nil {
		return strings.TrimSpace(raw)
	}
	var out struct {
		Narrative string `json:"narrative"`
	}
	if err := json.Unmarshal([]byte(js), &out); err != nil || out.Narrative == "" {
		return strings.TrimSpace(raw)
	}
	return out.Narrative
}
