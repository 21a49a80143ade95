package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
)

// OpenAICompatibleCompleter talks to any OpenAI-Responses-API-compatible
// endpoint: OpenAI itself, or a local Ollama/LM Studio/llama.cpp server
// exposing the same surface.
type OpenAICompatibleCompleter struct {
	client *openai.Client
}

// NewOpenAICompatibleCompleter builds a completer pointed at baseURL with
// apiKey (empty is fine for unauthenticated local servers).
func NewOpenAICompatibleCompleter(baseURL, apiKey string) *OpenAICompatibleCompleter {
	opts := []option.RequestOption{option.WithMaxRetries(2)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := openai.NewClient(opts...)
	return &OpenAICompatibleCompleter{client: &client}
}

var _ ToolCompleter = (*OpenAICompatibleCompleter)(nil)

func (c *OpenAICompatibleCompleter) Name() string { return "openai_compatible" }

func (c *OpenAICompatibleCompleter) Complete(ctx context.Context, model, systemPrompt, userPrompt string, opts CompleteOptions) (*CompleteResult, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var inputParam responses.ResponseNewParamsInputUnion
	if len(opts.Images) == 0 {
		inputParam = responses.ResponseNewParamsInputUnion{OfString: openai.String(userPrompt)}
	} else {
		contentList := responses.ResponseInputMessageContentListParam{
			responses.ResponseInputContentParamOfInputText(userPrompt),
		}
		for _, img := range opts.Images {
			dataURL := fmt.Sprintf("data:image/jpeg;base64,%s", base64.StdEncoding.EncodeToString(img))
			contentList = append(contentList, responses.ResponseInputContentUnionParam{
				OfInputImage: &responses.ResponseInputImageParam{
					Detail:   responses.ResponseInputImageDetailAuto,
					ImageURL: param.NewOpt(dataURL),
				},
			})
		}
		inputParam = responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(contentList, responses.EasyInputMessageRoleUser),
			},
		}
	}

	params := responses.ResponseNewParams{
		Model:        openai.ChatModel(model),
		Instructions: openai.String(systemPrompt),
		Input:        inputParam,
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("openai_compatible backend: status %d: %w", apiErr.StatusCode, err)
		}
		return nil, fmt.Errorf("openai_compatible backend: %w", err)
	}

	content := resp.OutputText()
	if content == "" {
		return nil, fmt.Errorf("openai_compatible backend: empty response content")
	}
	return &CompleteResult{
		Content:      content,
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}, nil
}

// CompleteWithTools drives one turn of the Responses API's function-calling
// protocol, chaining turns via PreviousResponseID rather than replaying the
// full history: on the first call (continuation == "") history[0].Text
// becomes the plain input; on every following call only the latest
// message's tool results are sent, as function_call_output items referring
// back to the call ids the previous turn issued.
func (c *OpenAICompatibleCompleter) CompleteWithTools(ctx context.Context, model, systemPrompt string, history []Message, continuation string, tools []ToolDef, opts CompleteOptions) (*Turn, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	toolParams := make([]responses.ToolUnionParam, len(tools))
	for i, td := range tools {
		toolParams[i] = responses.ToolUnionParam{
			OfFunction: &responses.FunctionToolParam{
				Name:        td.Name,
				Description: openai.String(td.Description),
				Parameters:  td.InputSchema,
			},
		}
	}

	params := responses.ResponseNewParams{
		Model:        openai.ChatModel(model),
		Instructions: openai.String(systemPrompt),
		Tools:        toolParams,
	}
	if continuation != "" {
		params.PreviousResponseID = openai.String(continuation)
	}

	if continuation == "" {
		var prompt string
		if len(history) > 0 {
			prompt = history[0].Text
		}
		params.Input = responses.ResponseNewParamsInputUnion{OfString: openai.String(prompt)}
	} else {
		var last Message
		if len(history) > 0 {
			last = history[len(history)-1]
		}
		items := make([]responses.ResponseInputItemUnionParam, 0, len(last.ToolResults))
		for _, tr := range last.ToolResults {
			items = append(items, responses.ResponseInputItemParamOfFunctionCallOutput(tr.ToolUseID, tr.Content))
		}
		params.Input = responses.ResponseNewParamsInputUnion{OfInputItemList: items}
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("openai_compatible backend: status %d: %w", apiErr.StatusCode, err)
		}
		return nil, fmt.Errorf("openai_compatible backend: %w", err)
	}

	turn := &Turn{StopReason: "end_turn", Continuation: resp.ID}
	for _, item := range resp.Output {
		if item.Type != "function_call" {
			continue
		}
		fc := item.AsFunctionCall()
		turn.ToolUses = append(turn.ToolUses, ToolUse{ID: fc.CallID, Name: fc.Name, Input: json.RawMessage(fc.Arguments)})
		turn.StopReason = "tool_use"
	}
	if turn.StopReason == "end_turn" {
		turn.Text = resp.OutputText()
	}
	return turn, nil
}
