package ai

import (
	"context"
	"encoding/json"
)

// ToolDef describes one callable tool in backend-neutral form: a name, a
// human description, and a JSON-schema input shape (the "properties" +
// "required" object a tool call's arguments must satisfy).
type ToolDef struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ToolUse is one tool invocation the model requested.
type ToolUse struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolResult is the outcome of executing one ToolUse, reported back to the
// model as the next turn's input.
type ToolResult struct {
	ToolUseID string
	Content   string
	IsError   bool
}

// MessageRole distinguishes the two sides of a tool-calling conversation.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one backend-neutral turn in a tool-calling conversation: a
// plain user question, an assistant turn (text and/or tool_use blocks), or
// a user turn carrying tool_result blocks answering the prior assistant
// turn. Each ToolCompleter variant translates this into its own SDK's
// content-block shape.
type Message struct {
	Role        MessageRole
	Text        string
	ToolUses    []ToolUse
	ToolResults []ToolResult
}

// Turn is one model response within a tool-calling conversation.
type Turn struct {
	Text       string
	ToolUses   []ToolUse
	StopReason string // "end_turn", "tool_use", "max_tokens", ...
	// Continuation is an opaque, backend-specific conversation handle
	// (e.g. the OpenAI Responses API's previous_response_id) that a
	// stateful backend returns from one turn and expects back on the
	// next. Stateless backends (the native Anthropic protocol, which
	// instead replays the full message history every turn) leave it empty.
	Continuation string
}

// ToolCompleter is the transport contract for a backend capable of a
// tool-calling protocol: each call carries the tools on offer, the
// conversation history so far (interpreted however that backend's protocol
// needs — full replay for a stateless backend, or just the latest
// exchange for one chaining via Continuation), and returns the model's next
// turn, which may request zero or more tool calls.
type ToolCompleter interface {
	Completer
	CompleteWithTools(ctx context.Context, model, systemPrompt string, history []Message, continuation string, tools []ToolDef, opts CompleteOptions) (*Turn, error)
}
