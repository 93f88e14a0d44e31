// ABOUTME: OpenAI provider adapter built on the official openai-go SDK.
// ABOUTME: Uses Chat Completions, which OpenAI-compatible gateways also serve.

package llm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIAdapter implements ProviderAdapter over the OpenAI Chat Completions
// API. A custom base URL points it at compatible providers.
type OpenAIAdapter struct {
	client openai.Client
}

// OpenAIOption configures an OpenAIAdapter.
type OpenAIOption func(*[]option.RequestOption)

// WithOpenAIBaseURL routes requests to an OpenAI-compatible endpoint.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(opts *[]option.RequestOption) {
		*opts = append(*opts, option.WithBaseURL(url))
	}
}

// NewOpenAIAdapter builds an adapter for the given API key.
func NewOpenAIAdapter(apiKey string, opts ...OpenAIOption) *OpenAIAdapter {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	for _, opt := range opts {
		opt(&reqOpts)
	}
	return &OpenAIAdapter{client: openai.NewClient(reqOpts...)}
}

// Name returns "openai".
func (a *OpenAIAdapter) Name() string {
	return "openai"
}

// Complete sends one synchronous chat completion request.
func (a *OpenAIAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	params := a.buildParams(req)
	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, &ProviderError{
			SDKError: SDKError{Message: "openai: completion failed", Cause: err},
			Provider: "openai",
		}
	}
	return a.convertResponse(resp), nil
}

// Close releases adapter resources.
func (a *OpenAIAdapter) Close() error {
	return nil
}

func (a *OpenAIAdapter) buildParams(req Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model: req.Model,
	}
	if req.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	var messages []openai.ChatCompletionMessageParamUnion
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.TextContent()))
		case RoleUser:
			messages = append(messages, openai.UserMessage(msg.TextContent()))
		case RoleTool:
			for _, part := range msg.Content {
				if part.Kind == ContentToolResult && part.ToolResult != nil {
					messages = append(messages, openai.ToolMessage(part.ToolResult.Content, part.ToolResult.ToolCallID))
				}
			}
		case RoleAssistant:
			messages = append(messages, a.convertAssistantMessage(msg))
		}
	}
	params.Messages = messages

	if len(req.Tools) > 0 && (req.ToolChoice == nil || req.ToolChoice.Mode != ToolChoiceNone) {
		tools := make([]openai.ChatCompletionToolParam, 0, len(req.Tools))
		for _, tool := range req.Tools {
			fn := openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
			}
			if tool.Parameters != nil {
				var schema openai.FunctionParameters
				if err := json.Unmarshal(tool.Parameters, &schema); err == nil {
					fn.Parameters = schema
				}
			}
			tools = append(tools, openai.ChatCompletionToolParam{
				Type:     "function",
				Function: fn,
			})
		}
		params.Tools = tools
	}

	return params
}

func (a *OpenAIAdapter) convertAssistantMessage(msg Message) openai.ChatCompletionMessageParamUnion {
	var toolCalls []openai.ChatCompletionMessageToolCallParam
	for _, part := range msg.Content {
		if part.Kind == ContentToolCall && part.ToolCall != nil {
			toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
				ID:   part.ToolCall.ID,
				Type: "function",
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      part.ToolCall.Name,
					Arguments: string(part.ToolCall.Arguments),
				},
			})
		}
	}

	text := msg.TextContent()
	if len(toolCalls) == 0 {
		return openai.AssistantMessage(text)
	}

	asst := openai.ChatCompletionAssistantMessageParam{
		Role:      "assistant",
		ToolCalls: toolCalls,
	}
	if text != "" {
		asst.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: openai.String(text),
		}
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &asst}
}

func (a *OpenAIAdapter) convertResponse(resp *openai.ChatCompletion) *Response {
	result := &Response{
		ID:       resp.ID,
		Model:    resp.Model,
		Provider: "openai",
		Message:  Message{Role: RoleAssistant},
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
		Created: time.Now(),
	}

	if len(resp.Choices) == 0 {
		result.FinishReason = FinishReason{Reason: FinishOther}
		return result
	}

	choice := resp.Choices[0]
	switch choice.FinishReason {
	case "stop":
		result.FinishReason = FinishReason{Reason: FinishStop, Raw: choice.FinishReason}
	case "tool_calls":
		result.FinishReason = FinishReason{Reason: FinishToolCalls, Raw: choice.FinishReason}
	case "length":
		result.FinishReason = FinishReason{Reason: FinishLength, Raw: choice.FinishReason}
	default:
		result.FinishReason = FinishReason{Reason: FinishOther, Raw: choice.FinishReason}
	}

	if choice.Message.Content != "" {
		result.Message.Content = append(result.Message.Content, TextPart(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		result.Message.Content = append(result.Message.Content, ContentPart{
			Kind: ContentToolCall,
			ToolCall: &ToolCallData{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(tc.Function.Arguments),
			},
		})
	}

	return result
}
