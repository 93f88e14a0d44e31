// ABOUTME: Core data model for the model-invocation surface used by the test runner.
// ABOUTME: Defines Message, ContentPart, Request, Response, tools, usage, and finish reasons.

package llm

import (
	"context"
	"encoding/json"
	"time"
)

// Role identifies who produced a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentKind discriminates the payload of a ContentPart.
type ContentKind string

const (
	ContentText       ContentKind = "text"
	ContentImage      ContentKind = "image"
	ContentToolCall   ContentKind = "tool_call"
	ContentToolResult ContentKind = "tool_result"
)

// ImageData carries screenshot or other image content, either by URL or raw bytes.
type ImageData struct {
	URL       string `json:"url,omitempty"`
	Data      []byte `json:"data,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// ToolCallData is a model-initiated tool invocation.
type ToolCallData struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ArgumentsMap decodes the raw JSON arguments into a map.
func (tc *ToolCallData) ArgumentsMap() (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(tc.Arguments, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ToolResultData is the outcome of executing one tool call.
type ToolResultData struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error"`
}

// ContentPart is one piece of content inside a message. Kind selects which
// data field is populated.
type ContentPart struct {
	Kind       ContentKind     `json:"kind"`
	Text       string          `json:"text,omitempty"`
	Image      *ImageData      `json:"image,omitempty"`
	ToolCall   *ToolCallData   `json:"tool_call,omitempty"`
	ToolResult *ToolResultData `json:"tool_result,omitempty"`
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Kind: ContentText, Text: text}
}

// ImageDataPart builds an image content part from raw bytes.
func ImageDataPart(data []byte, mediaType string) ContentPart {
	return ContentPart{Kind: ContentImage, Image: &ImageData{Data: data, MediaType: mediaType}}
}

// ToolCallPart builds a tool call content part.
func ToolCallPart(id, name string, args json.RawMessage) ContentPart {
	return ContentPart{
		Kind:     ContentToolCall,
		ToolCall: &ToolCallData{ID: id, Name: name, Arguments: args},
	}
}

// ToolResultPart builds a tool result content part.
func ToolResultPart(toolCallID, content string, isError bool) ContentPart {
	return ContentPart{
		Kind:       ContentToolResult,
		ToolResult: &ToolResultData{ToolCallID: toolCallID, Content: content, IsError: isError},
	}
}

// Message is the unit of conversation exchanged with a provider.
type Message struct {
	Role       Role          `json:"role"`
	Content    []ContentPart `json:"content"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

// TextContent concatenates the text of all text parts.
func (m *Message) TextContent() string {
	var out string
	for _, part := range m.Content {
		if part.Kind == ContentText {
			out += part.Text
		}
	}
	return out
}

// ToolCalls collects every tool call carried by the message.
func (m *Message) ToolCalls() []ToolCallData {
	var calls []ToolCallData
	for _, part := range m.Content {
		if part.Kind == ContentToolCall && part.ToolCall != nil {
			calls = append(calls, *part.ToolCall)
		}
	}
	return calls
}

// SystemMessage builds a system role message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: []ContentPart{TextPart(text)}}
}

// UserMessage builds a user role message with text.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: []ContentPart{TextPart(text)}}
}

// UserMessageWithParts builds a user role message from arbitrary parts.
func UserMessageWithParts(parts ...ContentPart) Message {
	return Message{Role: RoleUser, Content: parts}
}

// AssistantMessage builds an assistant role message with text.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: []ContentPart{TextPart(text)}}
}

// ToolResultMessage builds a tool role message carrying one result.
func ToolResultMessage(toolCallID, content string, isError bool) Message {
	return Message{
		Role:       RoleTool,
		Content:    []ContentPart{ToolResultPart(toolCallID, content, isError)},
		ToolCallID: toolCallID,
	}
}

// FinishReason records why generation stopped, in both unified and raw provider form.
type FinishReason struct {
	Reason string `json:"reason"`
	Raw    string `json:"raw,omitempty"`
}

const (
	FinishStop      = "stop"
	FinishLength    = "length"
	FinishToolCalls = "tool_calls"
	FinishError     = "error"
	FinishOther     = "other"
)

// Usage tracks token consumption for one call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add sums two usage values.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
	}
}

// ToolChoice controls whether the model must, may, or must not use tools.
type ToolChoice struct {
	Mode     string `json:"mode"`
	ToolName string `json:"tool_name,omitempty"`
}

const (
	ToolChoiceAuto     = "auto"
	ToolChoiceNone     = "none"
	ToolChoiceRequired = "required"
	ToolChoiceNamed    = "named"
)

// ToolDefinition describes one tool offered to the model.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Tool pairs a definition with an optional execute handler.
type Tool struct {
	ToolDefinition
	Execute func(ctx context.Context, args json.RawMessage) (string, error) `json:"-"`
}

// IsActive reports whether the tool can be executed in-process.
func (t *Tool) IsActive() bool {
	return t.Execute != nil
}

// Request is the unified input for a generate call.
type Request struct {
	Model         string           `json:"model"`
	Messages      []Message        `json:"messages"`
	Provider      string           `json:"provider,omitempty"`
	Tools         []ToolDefinition `json:"tools,omitempty"`
	ToolChoice    *ToolChoice      `json:"tool_choice,omitempty"`
	Temperature   *float64         `json:"temperature,omitempty"`
	MaxTokens     *int             `json:"max_tokens,omitempty"`
	StopSequences []string         `json:"stop_sequences,omitempty"`
}

// Response is the unified output of a generate call.
type Response struct {
	ID           string          `json:"id"`
	Model        string          `json:"model"`
	Provider     string          `json:"provider"`
	Message      Message         `json:"message"`
	FinishReason FinishReason    `json:"finish_reason"`
	Usage        Usage           `json:"usage"`
	Created      time.Time       `json:"created"`
	Raw          json.RawMessage `json:"raw,omitempty"`
}

// TextContent returns the concatenated text of the response message.
func (r *Response) TextContent() string {
	return r.Message.TextContent()
}

// ToolCalls returns the tool calls in the response message.
func (r *Response) ToolCalls() []ToolCallData {
	return r.Message.ToolCalls()
}

// AdapterTimeout bounds outbound HTTP activity at the adapter level.
type AdapterTimeout struct {
	Connect time.Duration `json:"connect"`
	Request time.Duration `json:"request"`
}

// DefaultAdapterTimeout returns the stock adapter timeouts.
func DefaultAdapterTimeout() AdapterTimeout {
	return AdapterTimeout{
		Connect: 10 * time.Second,
		Request: 120 * time.Second,
	}
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 { return &v }
