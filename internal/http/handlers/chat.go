package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/hone/internal/router"
)

// ChatInput is the request body for a natural-language question to the
// tool-calling orchestrator.
type ChatInput struct {
	Body struct {
		Question string `json:"question" minLength:"1"`
	}
}

// ChatOutput is the orchestrator's final answer plus which tools it used to
// reach it.
type ChatOutput struct {
	Body struct {
		Answer    string   `json:"answer"`
		ToolCalls []string `json:"tool_calls,omitempty"`
	}
}

// Chat answers a natural-language question about the user's finances by
// driving the tool-calling orchestrator over the read-only report/ledger
// tools, selecting a model via the router's reasoning task bucket.
func (h *Handlers) Chat(ctx context.Context, in *ChatInput) (*ChatOutput, error) {
	if h.Orchestrator == nil {
		return nil, huma.Error503ServiceUnavailable("chat is not configured: no AI backend")
	}
	model := h.Router.SelectModel(router.TaskReasoning)
	result, err := h.Orchestrator.Run(ctx, model, in.Body.Question)
	if err != nil {
		return nil, huma.Error502BadGateway("answering question", err)
	}
	out := &ChatOutput{}
	out.Body.Answer = result.Answer
	out.Body.ToolCalls = result.ToolCalls
	return out, nil
}
