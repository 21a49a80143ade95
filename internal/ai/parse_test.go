package ai

import (
	"context"
	"testing"
)

func TestExtractBalancedJSON_IgnoresBracesInsideStrings(t *testing.T) {
	raw := `Sure, here you go: {"normalized_name": "Foo {Bar} Corp"} -- hope that helps`
	got, err := extractBalancedJSON(raw)
	if err != nil {
		t.Fatalf("extractBalancedJSON() error = %v", err)
	}
	want := `{"normalized_name": "Foo {Bar} Corp"}`
	if got != want {
		t.Errorf("extractBalancedJSON() = %q, want %q", got, want)
	}
}

func TestExtractBalancedJSON_NoObjectErrors(t *testing.T) {
	if _, err := extractBalancedJSON("no json here"); err == nil {
		t.Error("extractBalancedJSON() error = nil, want an error for input with no object")
	}
}

func TestParseNormalizeResult_HandlesEchoedBraces(t *testing.T) {
	raw := `{"normalized_name": "Amazon {Prime}"}`
	res, err := parseNormalizeResult(raw)
	if err != nil {
		t.Fatalf("parseNormalizeResult() error = %v", err)
	}
	if res.NormalizedName != "Amazon {Prime}" {
		t.Errorf("NormalizedName = %q, want %q", res.NormalizedName, "Amazon {Prime}")
	}
}

func TestParseClassifyBatch_ErrorsOnNonArrayResponse(t *testing.T) {
	raw := `{"tag": "Dining", "confidence": 0.8}`
	results, err := parseClassifyBatch(raw)
	if err == nil {
		t.Fatalf("parseClassifyBatch() error = nil, want an error for a non-array response, got %+v", results)
	}
}

// TestClient_ClassifyBatch_FallsBackToSingleResultRepeated exercises the
// Client-level fallback: a non-array batch response is retried as a single
// classification and repeated across every description, rather than failing
// the whole batch.
func TestClient_ClassifyBatch_FallsBackToSingleResultRepeated(t *testing.T) {
	completer := NewMockCompleter(`{"tag": "Dining", "confidence": 0.8}`)
	c := testClient(t, completer)

	results, err := c.ClassifyBatch(context.Background(), []string{"CHIPOTLE", "STARBUCKS"}, "- Dining\n")
	if err != nil {
		t.Fatalf("ClassifyBatch() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	for i, r := range results {
		if r.TagPath != "Dining" {
			t.Errorf("results[%d].TagPath = %q, want Dining", i, r.TagPath)
		}
	}
}

func TestParseNarrative_FallsBackToRawTextWhenNotJSON(t *testing.T) {
	got := parseNarrative("  Netflix and Hulu overlap heavily in catalog.  ")
	if got != "Netflix and Hulu overlap heavily in catalog." {
		t.Errorf("parseNarrative() = %q, want the trimmed raw text", got)
	}
}

func TestParseNarrative_ExtractsNarrativeField(t *testing.T) {
	got := parseNarrative(`{"narrative": "These look like duplicate streaming subscriptions."}`)
	want := "These look like duplicate streaming subscriptions."
	if got != want {
		t.Errorf("parseNarrative() = %q, want %q", got, want)
	}
}

func TestParseSplitResult_ParsesMultipleLines(t *testing.T) {
	raw := `{"splits": [{"tag": "Groceries", "amount": 30.5}, {"tag": "Household", "amount": 12.25}]}`
	res, err := parseSplitResult(raw)
	if err != nil {
		t.Fatalf("parseSplitResult() error = %v", err)
	}
	if len(res.Splits) != 2 {
		t.Fatalf("len(Splits) = %d, want 2", len(res.Splits))
	}
	if res.Splits[0].Tag != "Groceries" || res.Splits[0].Amount != 30.5 {
		t.Errorf("Splits[0] = %+v, want Tag=Groceries Amount=30.5", res.Splits[0])
	}
}

func TestParseReceiptMatchResult(t *testing.T) {
	raw := `{"match": true, "confidence": 0.87, "reason": "same total and date"}`
	res, err := parseReceiptMatchResult(raw)
	if err != nil {
		t.Fatalf("parseReceiptMatchResult() error = %v", err)
	}
	if !res.Match || res.Confidence != 0.87 || res.Reason != "same total and date" {
		t.Errorf("parseReceiptMatchResult() = %+v, unexpected", res)
	}
}
