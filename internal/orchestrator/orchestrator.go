package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmylchreest/hone/internal/ai"
	"github.com/jmylchreest/hone/internal/prompts"
)

// Result is the terminal outcome of a Run call.
type Result struct {
	Answer    string
	ToolCalls []string // names of tools invoked, in order, for observability
}

// Orchestrator drives the multi-turn tool-calling loop over a completer and
// a fixed read-only tool registry, using the backend's native tool_use
// protocol rather than a prompted text envelope.
type Orchestrator struct {
	completer ai.ToolCompleter
	prompts   *prompts.Library
	registry  *Registry
	maxTurns  int
}

// New builds an orchestrator. maxTurns bounds the tool-call loop; a value of
// 1 allows exactly one model turn and treats any tool_use response on that
// turn as an immediate failure rather than executing the tool, since there
// would be no further turn left to report the result back on.
func New(completer ai.ToolCompleter, promptLib *prompts.Library, registry *Registry, maxTurns int) *Orchestrator {
	if maxTurns <= 0 {
		maxTurns = 6
	}
	return &Orchestrator{completer: completer, prompts: promptLib, registry: registry, maxTurns: maxTurns}
}

// Run answers userQuestion, calling tools as needed, up to maxTurns model
// turns. Returns an error if the loop is exhausted without a final answer.
func (o *Orchestrator) Run(ctx context.Context, model, userQuestion string) (*Result, error) {
	systemPrompt, err := o.buildSystemPrompt()
	if err != nil {
		return nil, err
	}
	tools := o.toolDefs()

	history := []ai.Message{{Role: ai.RoleUser, Text: userQuestion}}
	var toolsCalled []string
	continuation := ""

	for turn := 1; turn <= o.maxTurns; turn++ {
		res, err := o.completer.CompleteWithTools(ctx, model, systemPrompt, history, continuation, tools, ai.CompleteOptions{
			Temperature: 0.1,
			MaxTokens:   1024,
		})
		if err != nil {
			return nil, fmt.Errorf("orchestrator turn %d: %w", turn, err)
		}
		continuation = res.Continuation

		if len(res.ToolUses) == 0 {
			if res.Text == "" {
				return nil, fmt.Errorf("orchestrator turn %d: model returned neither a tool call nor an answer", turn)
			}
			return &Result{Answer: res.Text, ToolCalls: toolsCalled}, nil
		}

		if turn == o.maxTurns {
			return nil, fmt.Errorf("orchestrator exceeded maximum turns (%d) without a final answer", o.maxTurns)
		}

		history = append(history, ai.Message{Role: ai.RoleAssistant, Text: res.Text, ToolUses: res.ToolUses})

		results := make([]ai.ToolResult, 0, len(res.ToolUses))
		for _, use := range res.ToolUses {
			tool, ok := o.registry.Get(use.Name)
			if !ok {
				results = append(results, ai.ToolResult{
					ToolUseID: use.ID,
					Content:   fmt.Sprintf("tool %q does not exist; available tools: %s", use.Name, o.toolNames()),
					IsError:   true,
				})
				continue
			}
			args, err := parseToolArgs(use.Input)
			if err != nil {
				results = append(results, ai.ToolResult{ToolUseID: use.ID, Content: err.Error(), IsError: true})
				continue
			}
			output, err := tool.Handler(ctx, args)
			toolsCalled = append(toolsCalled, use.Name)
			if err != nil {
				results = append(results, ai.ToolResult{ToolUseID: use.ID, Content: err.Error(), IsError: true})
				continue
			}
			results = append(results, ai.ToolResult{ToolUseID: use.ID, Content: output})
		}
		history = append(history, ai.Message{Role: ai.RoleUser, ToolResults: results})
	}

	return nil, fmt.Errorf("orchestrator exceeded maximum turns (%d) without a final answer", o.maxTurns)
}

func (o *Orchestrator) buildSystemPrompt() (string, error) {
	base, err := o.prompts.Get(prompts.AgentSystem)
	if err != nil {
		return "", err
	}
	return base.System, nil
}

func (o *Orchestrator) toolDefs() []ai.ToolDef {
	tools := o.registry.Tools()
	defs := make([]ai.ToolDef, len(tools))
	for i, t := range tools {
		defs[i] = ai.ToolDef{Name: t.Name, Description: t.Description, InputSchema: t.Parameters}
	}
	return defs
}

func (o *Orchestrator) toolNames() string {
	tools := o.registry.Tools()
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return strings.Join(names, ", ")
}

func parseToolArgs(input json.RawMessage) (map[string]any, error) {
	if len(input) == 0 {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("parsing tool arguments: %w", err)
	}
	return args, nil
}
