// ABOUTME: Anthropic provider adapter over the Messages API (/v1/messages).
// ABOUTME: Translates unified requests and responses to and from the Anthropic wire format.

package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicDefaultVersion = "2023-06-01"
	anthropicDefaultMaxToks = 4096
)

// AnthropicAdapter implements ProviderAdapter for the Anthropic Messages API.
type AnthropicAdapter struct {
	*BaseAdapter
	version string
}

// AnthropicOption configures an AnthropicAdapter.
type AnthropicOption func(*AnthropicAdapter)

// WithAnthropicBaseURL overrides the API base URL.
func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(a *AnthropicAdapter) {
		a.BaseURL = url
	}
}

// WithAnthropicTimeout overrides the adapter timeouts.
func WithAnthropicTimeout(timeout AdapterTimeout) AnthropicOption {
	return func(a *AnthropicAdapter) {
		a.Timeout = timeout
		a.HTTPClient = &http.Client{Timeout: timeout.Request}
	}
}

// NewAnthropicAdapter builds an adapter for the given API key. Anthropic
// authenticates with x-api-key rather than a Bearer token, so the key lives
// in DefaultHeaders.
func NewAnthropicAdapter(apiKey string, opts ...AnthropicOption) *AnthropicAdapter {
	adapter := &AnthropicAdapter{
		BaseAdapter: NewBaseAdapter("", anthropicDefaultBaseURL, DefaultAdapterTimeout()),
		version:     anthropicDefaultVersion,
	}
	adapter.DefaultHeaders["x-api-key"] = apiKey
	adapter.DefaultHeaders["anthropic-version"] = adapter.version

	for _, opt := range opts {
		opt(adapter)
	}
	return adapter
}

// Name returns "anthropic".
func (a *AnthropicAdapter) Name() string {
	return "anthropic"
}

// Complete sends one synchronous completion request.
func (a *AnthropicAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	body := a.buildRequestBody(req)

	resp, err := a.DoRequest(ctx, http.MethodPost, "/v1/messages", body, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, a.parseError(resp.StatusCode, respBody)
	}

	return a.parseResponse(respBody)
}

// Close releases adapter resources.
func (a *AnthropicAdapter) Close() error {
	return nil
}

func (a *AnthropicAdapter) buildRequestBody(req Request) map[string]any {
	systemText, remaining := ExtractSystemMessages(req.Messages)
	merged := MergeConsecutiveMessages(remaining)

	body := map[string]any{
		"model":    req.Model,
		"messages": a.translateMessages(merged),
	}
	if systemText != "" {
		body["system"] = systemText
	}

	// max_tokens is mandatory on this API
	if req.MaxTokens != nil {
		body["max_tokens"] = *req.MaxTokens
	} else {
		body["max_tokens"] = anthropicDefaultMaxToks
	}

	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if len(req.StopSequences) > 0 {
		body["stop_sequences"] = req.StopSequences
	}

	a.applyToolConfig(body, req)
	return body
}

func (a *AnthropicAdapter) translateMessages(messages []Message) []map[string]any {
	result := make([]map[string]any, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleTool:
			// Tool results travel as user messages with tool_result blocks.
			result = append(result, map[string]any{
				"role":    "user",
				"content": a.translateContentParts(msg.Content),
			})
		case RoleUser, RoleAssistant:
			result = append(result, map[string]any{
				"role":    string(msg.Role),
				"content": a.translateContentParts(msg.Content),
			})
		}
	}
	return result
}

func (a *AnthropicAdapter) translateContentParts(parts []ContentPart) []map[string]any {
	blocks := make([]map[string]any, 0, len(parts))
	for _, part := range parts {
		switch part.Kind {
		case ContentText:
			blocks = append(blocks, map[string]any{"type": "text", "text": part.Text})

		case ContentImage:
			if part.Image != nil {
				blocks = append(blocks, a.translateImage(part.Image))
			}

		case ContentToolCall:
			if part.ToolCall != nil {
				var input any
				if len(part.ToolCall.Arguments) > 0 {
					_ = json.Unmarshal(part.ToolCall.Arguments, &input)
				}
				if input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, map[string]any{
					"type":  "tool_use",
					"id":    part.ToolCall.ID,
					"name":  part.ToolCall.Name,
					"input": input,
				})
			}

		case ContentToolResult:
			if part.ToolResult != nil {
				block := map[string]any{
					"type":        "tool_result",
					"tool_use_id": part.ToolResult.ToolCallID,
					"content":     part.ToolResult.Content,
				}
				if part.ToolResult.IsError {
					block["is_error"] = true
				}
				blocks = append(blocks, block)
			}
		}
	}
	return blocks
}

func (a *AnthropicAdapter) translateImage(img *ImageData) map[string]any {
	if img.URL != "" {
		return map[string]any{
			"type":   "image",
			"source": map[string]any{"type": "url", "url": img.URL},
		}
	}
	return map[string]any{
		"type": "image",
		"source": map[string]any{
			"type":       "base64",
			"media_type": img.MediaType,
			"data":       base64.StdEncoding.EncodeToString(img.Data),
		},
	}
}

func (a *AnthropicAdapter) applyToolConfig(body map[string]any, req Request) {
	if len(req.Tools) == 0 {
		return
	}
	if req.ToolChoice != nil && req.ToolChoice.Mode == ToolChoiceNone {
		return
	}

	tools := make([]map[string]any, 0, len(req.Tools))
	for _, tool := range req.Tools {
		t := map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
		}
		if len(tool.Parameters) > 0 {
			var schema any
			_ = json.Unmarshal(tool.Parameters, &schema)
			t["input_schema"] = schema
		}
		tools = append(tools, t)
	}
	body["tools"] = tools

	if req.ToolChoice != nil {
		switch req.ToolChoice.Mode {
		case ToolChoiceAuto:
			body["tool_choice"] = map[string]any{"type": "auto"}
		case ToolChoiceRequired:
			body["tool_choice"] = map[string]any{"type": "any"}
		case ToolChoiceNamed:
			body["tool_choice"] = map[string]any{"type": "tool", "name": req.ToolChoice.ToolName}
		}
	}
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Model      string                  `json:"model"`
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      anthropicUsage          `json:"usage"`
}

type anthropicContentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (a *AnthropicAdapter) parseResponse(body []byte) (*Response, error) {
	var raw anthropicResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	parts := make([]ContentPart, 0, len(raw.Content))
	for _, block := range raw.Content {
		switch block.Type {
		case "text":
			parts = append(parts, TextPart(block.Text))
		case "tool_use":
			parts = append(parts, ContentPart{
				Kind: ContentToolCall,
				ToolCall: &ToolCallData{
					ID:        block.ID,
					Name:      block.Name,
					Arguments: block.Input,
				},
			})
		}
	}

	return &Response{
		ID:       raw.ID,
		Model:    raw.Model,
		Provider: "anthropic",
		Message: Message{
			Role:    RoleAssistant,
			Content: parts,
		},
		FinishReason: a.mapStopReason(raw.StopReason),
		Usage: Usage{
			InputTokens:  raw.Usage.InputTokens,
			OutputTokens: raw.Usage.OutputTokens,
			TotalTokens:  raw.Usage.InputTokens + raw.Usage.OutputTokens,
		},
		Created: time.Now(),
		Raw:     json.RawMessage(body),
	}, nil
}

func (a *AnthropicAdapter) mapStopReason(reason string) FinishReason {
	var unified string
	switch reason {
	case "end_turn", "stop_sequence":
		unified = FinishStop
	case "max_tokens":
		unified = FinishLength
	case "tool_use":
		unified = FinishToolCalls
	default:
		unified = FinishOther
	}
	return FinishReason{Reason: unified, Raw: reason}
}

type anthropicErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *AnthropicAdapter) parseError(statusCode int, body []byte) error {
	var errResp anthropicErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return ErrorFromStatusCode(statusCode, fmt.Sprintf("HTTP %d", statusCode), "anthropic", "", json.RawMessage(body), nil)
	}
	return ErrorFromStatusCode(statusCode, errResp.Error.Message, "anthropic", errResp.Error.Type, json.RawMessage(body), nil)
}
