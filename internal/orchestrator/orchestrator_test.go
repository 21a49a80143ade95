package orchestrator

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/jmylchreest/hone/internal/ai"
	"github.com/jmylchreest/hone/internal/prompts"
)

func testRegistry(calls *int) *Registry {
	r := &Registry{byName: make(map[string]Tool)}
	r.register(Tool{
		Name:        "search_transactions",
		Description: "test tool",
		Parameters:  map[string]any{"type": "object"},
		Handler: func(context.Context, map[string]any) (string, error) {
			if calls != nil {
				*calls++
			}
			return `{"results":[]}`, nil
		},
	})
	return r
}

func TestRun_AnswersDirectlyWithoutToolCalls(t *testing.T) {
	completer := ai.NewMockCompleter().WithToolTurns(&ai.Turn{Text: "You spent $42 on dining.", StopReason: "end_turn"})
	o := New(completer, prompts.NewLibrary(""), testRegistry(nil), 6)

	res, err := o.Run(context.Background(), "test-model", "how much did I spend on dining?")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Answer != "You spent $42 on dining." {
		t.Errorf("Answer = %q, want the scripted text", res.Answer)
	}
	if len(res.ToolCalls) != 0 {
		t.Errorf("ToolCalls = %v, want none", res.ToolCalls)
	}
}

func TestRun_CallsToolThenAnswers(t *testing.T) {
	var calls int
	registry := testRegistry(&calls)

	toolArgs, _ := json.Marshal(map[string]any{"merchant": "netflix"})
	completer := ai.NewMockCompleter().WithToolTurns(
		&ai.Turn{
			ToolUses:   []ai.ToolUse{{ID: "t1", Name: "search_transactions", Input: toolArgs}},
			StopReason: "tool_use",
		},
		&ai.Turn{Text: "Found one Netflix charge.", StopReason: "end_turn"},
	)
	o := New(completer, prompts.NewLibrary(""), registry, 6)

	res, err := o.Run(context.Background(), "test-model", "did I pay netflix?")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Answer != "Found one Netflix charge." {
		t.Errorf("Answer = %q, want the final turn's text", res.Answer)
	}
	if len(res.ToolCalls) != 1 || res.ToolCalls[0] != "search_transactions" {
		t.Errorf("ToolCalls = %v, want [search_transactions]", res.ToolCalls)
	}
	if calls != 1 {
		t.Errorf("tool handler invoked %d times, want 1", calls)
	}
}

func TestRun_UnknownToolNameReturnsErrorResultWithoutPanicking(t *testing.T) {
	var calls int
	registry := testRegistry(&calls)

	completer := ai.NewMockCompleter().WithToolTurns(
		&ai.Turn{
			ToolUses:   []ai.ToolUse{{ID: "t1", Name: "delete_everything", Input: json.RawMessage(`{}`)}},
			StopReason: "tool_use",
		},
		&ai.Turn{Text: "I can't do that.", StopReason: "end_turn"},
	)
	o := New(completer, prompts.NewLibrary(""), registry, 6)

	res, err := o.Run(context.Background(), "test-model", "delete everything")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Answer != "I can't do that." {
		t.Errorf("Answer = %q, want the follow-up text", res.Answer)
	}
	if calls != 0 {
		t.Errorf("tool handler invoked for an unknown tool name, want 0 invocations, got %d", calls)
	}
}

// TestRun_ToolUseOnFinalTurnFailsWithoutExecuting is the boundary test: a
// tool_use response on the last allowed turn must be reported as an error
// without the tool ever running, since there is no further turn to report
// the result back on.
func TestRun_ToolUseOnFinalTurnFailsWithoutExecuting(t *testing.T) {
	var calls int
	registry := testRegistry(&calls)

	completer := ai.NewMockCompleter().WithToolTurns(&ai.Turn{
		ToolUses:   []ai.ToolUse{{ID: "t1", Name: "search_transactions", Input: json.RawMessage(`{}`)}},
		StopReason: "tool_use",
	})
	o := New(completer, prompts.NewLibrary(""), registry, 1)

	_, err := o.Run(context.Background(), "test-model", "did I pay netflix?")
	if err == nil {
		t.Fatal("Run() error = nil, want an exceeded-max-turns error")
	}
	if !strings.Contains(err.Error(), "maximum turns") {
		t.Errorf("Run() error = %v, want it to mention the max-turns boundary", err)
	}
	if calls != 0 {
		t.Errorf("tool handler invoked on the final turn, want 0 invocations, got %d", calls)
	}
}

func TestRun_ErrorWhenModelReturnsNeitherTextNorToolUse(t *testing.T) {
	completer := ai.NewMockCompleter().WithToolTurns(&ai.Turn{StopReason: "end_turn"})
	o := New(completer, prompts.NewLibrary(""), testRegistry(nil), 6)

	_, err := o.Run(context.Background(), "test-model", "anything")
	if err == nil {
		t.Fatal("Run() error = nil, want an error for an empty response")
	}
}
