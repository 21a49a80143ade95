package ai

import (
	"context"
	"sync"
)

// MockCompleter returns canned or programmable responses without making any
// network call. Used for tests and for running with no AI backend
// configured (AI_BACKEND=mock or unset).
type MockCompleter struct {
	mu        sync.Mutex
	responses []string
	calls     []MockCall
	fn        func(model, systemPrompt, userPrompt string) (string, error)
	toolTurns []*Turn
}

// MockCall records one Complete invocation for test assertions.
type MockCall struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
}

// NewMockCompleter builds a completer that returns responses in order, one
// per call, repeating the last one once exhausted. An empty responses list
// yields a generic JSON classification stub.
func NewMockCompleter(responses ...string) *MockCompleter {
	return &MockCompleter{responses: responses}
}

// WithFunc overrides response selection with a callback, for tests that need
// responses to vary by prompt content.
func (m *MockCompleter) WithFunc(fn func(model, systemPrompt, userPrompt string) (string, error)) *MockCompleter {
	m.fn = fn
	return m
}

// WithToolTurns scripts the sequence of Turn values CompleteWithTools
// returns, one per call, repeating the last one once exhausted — for tests
// driving the orchestrator's tool-call loop through a fixed scenario
// (request a tool, then answer; or never answer, to exercise max_turns).
func (m *MockCompleter) WithToolTurns(turns ...*Turn) *MockCompleter {
	m.toolTurns = turns
	return m
}

var _ ToolCompleter = (*MockCompleter)(nil)

func (m *MockCompleter) Name() string { return "mock" }

func (m *MockCompleter) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockCompleter) Complete(_ context.Context, model, systemPrompt, userPrompt string, _ CompleteOptions) (*CompleteResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Model: model, SystemPrompt: systemPrompt, UserPrompt: userPrompt})
	idx := len(m.calls) - 1
	m.mu.Unlock()

	if m.fn != nil {
		content, err := m.fn(model, systemPrompt, userPrompt)
		if err != nil {
			return nil, err
		}
		return &CompleteResult{Content: content}, nil
	}

	if len(m.responses) == 0 {
		return &CompleteResult{Content: `{"tag": "Uncategorized", "confidence": 0.1}`}, nil
	}
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return &CompleteResult{Content: m.responses[idx]}, nil
}

// CompleteWithTools returns the next scripted Turn set via WithToolTurns, or
// a bare end_turn answer built from Complete's canned response when none
// were scripted.
func (m *MockCompleter) CompleteWithTools(ctx context.Context, model, systemPrompt string, history []Message, continuation string, tools []ToolDef, opts CompleteOptions) (*Turn, error) {
	m.mu.Lock()
	var turn *Turn
	if len(m.toolTurns) > 0 {
		idx := len(m.calls)
		if idx >= len(m.toolTurns) {
			idx = len(m.toolTurns) - 1
		}
		turn = m.toolTurns[idx]
	}
	m.mu.Unlock()

	if turn != nil {
		m.mu.Lock()
		m.calls = append(m.calls, MockCall{Model: model, SystemPrompt: systemPrompt})
		m.mu.Unlock()
		return turn, nil
	}

	var userPrompt string
	if len(history) > 0 {
		userPrompt = history[0].Text
	}
	res, err := m.Complete(ctx, model, systemPrompt, userPrompt, opts)
	if err != nil {
		return nil, err
	}
	return &Turn{Text: res.Content, StopReason: "end_turn"}, nil
}
