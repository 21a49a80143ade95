package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// NativeCompleter talks directly to the Anthropic Messages API.
type NativeCompleter struct {
	client anthropic.Client
}

// NewNativeCompleter builds a completer authenticated with apiKey.
func NewNativeCompleter(apiKey string) *NativeCompleter {
	return &NativeCompleter{client: anthropic.NewClient(option.WithAPIKey(apiKey))}
}

var _ ToolCompleter = (*NativeCompleter)(nil)

func (c *NativeCompleter) Name() string { return "native" }

func (c *NativeCompleter) Complete(ctx context.Context, model, systemPrompt, userPrompt string, opts CompleteOptions) (*CompleteResult, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	maxTokens := int64(opts.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 1024
	}

	var blocks []anthropic.ContentBlockParamUnion
	blocks = append(blocks, anthropic.NewTextBlock(userPrompt))
	for _, img := range opts.Images {
		blocks = append(blocks, anthropic.NewImageBlockBase64("image/jpeg", base64.StdEncoding.EncodeToString(img)))
	}

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("native backend: %w", err)
	}

	var content string
	for _, block := range msg.Content {
		if text := block.Text; text != "" {
			content += text
		}
	}
	if content == "" {
		return nil, fmt.Errorf("native backend: empty response content")
	}

	return &CompleteResult{
		Content:      content,
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}

// CompleteWithTools drives one turn of the real Anthropic tool_use protocol:
// tools are declared via ToolInputSchemaParam, and the conversation so far
// is translated into alternating assistant/user messages carrying tool_use
// and tool_result blocks, exactly the shape the Messages API expects for a
// multi-turn tool-calling exchange. The Messages API is stateless across
// calls, so it replays the full history every turn rather than using a
// continuation token.
func (c *NativeCompleter) CompleteWithTools(ctx context.Context, model, systemPrompt string, history []Message, _ string, tools []ToolDef, opts CompleteOptions) (*Turn, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	maxTokens := int64(opts.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 1024
	}

	toolParams := make([]anthropic.ToolUnionParam, len(tools))
	for i, td := range tools {
		properties, _ := td.InputSchema["properties"].(map[string]any)
		toolParams[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        td.Name,
				Description: anthropic.String(td.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: properties,
				},
			},
		}
	}

	messages := make([]anthropic.MessageParam, len(history))
	for i, m := range history {
		messages[i] = toAnthropicMessage(m)
	}

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: messages,
		Tools:    toolParams,
	})
	if err != nil {
		return nil, fmt.Errorf("native backend: %w", err)
	}

	turn := &Turn{StopReason: string(msg.StopReason)}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			turn.Text += block.Text
		case "tool_use":
			turn.ToolUses = append(turn.ToolUses, ToolUse{ID: block.ID, Name: block.Name, Input: json.RawMessage(block.Input)})
		}
	}
	return turn, nil
}

func toAnthropicMessage(m Message) anthropic.MessageParam {
	var blocks []anthropic.ContentBlockParamUnion
	if m.Text != "" {
		blocks = append(blocks, anthropic.NewTextBlock(m.Text))
	}
	for _, tu := range m.ToolUses {
		blocks = append(blocks, anthropic.ContentBlockParamUnion{
			OfToolUse: &anthropic.ToolUseBlockParam{
				ID:    tu.ID,
				Name:  tu.Name,
				Input: json.RawMessage(tu.Input),
			},
		})
	}
	for _, tr := range m.ToolResults {
		blocks = append(blocks, anthropic.NewToolResultBlock(tr.ToolUseID, tr.Content, tr.IsError))
	}
	if m.Role == RoleAssistant {
		return anthropic.NewAssistantMessage(blocks...)
	}
	return anthropic.NewUserMessage(blocks...)
}
