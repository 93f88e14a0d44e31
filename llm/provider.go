// ABOUTME: ProviderAdapter interface and shared HTTP plumbing for provider adapters.
// ABOUTME: Request building, header handling, message shaping, and call ID generation.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// ProviderAdapter is implemented by every provider backend. It translates the
// unified Request/Response pair to and from one provider's wire format.
type ProviderAdapter interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
	Close() error
}

// BaseAdapter holds the HTTP machinery shared by raw-HTTP provider adapters.
type BaseAdapter struct {
	APIKey         string
	BaseURL        string
	DefaultHeaders map[string]string
	Timeout        AdapterTimeout
	HTTPClient     *http.Client
}

// NewBaseAdapter builds a BaseAdapter with an HTTP client bound to the
// request timeout.
func NewBaseAdapter(apiKey, baseURL string, timeout AdapterTimeout) *BaseAdapter {
	return &BaseAdapter{
		APIKey:         apiKey,
		BaseURL:        baseURL,
		DefaultHeaders: make(map[string]string),
		Timeout:        timeout,
		HTTPClient:     &http.Client{Timeout: timeout.Request},
	}
}

// DoRequest JSON-encodes body (when non-nil), applies default and per-request
// headers, and executes the request under ctx.
func (b *BaseAdapter) DoRequest(ctx context.Context, method, path string, body any, headers map[string]string) (*http.Response, error) {
	url := b.BaseURL + path

	var reqBody *bytes.Buffer
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewBuffer(encoded)
	}

	var httpReq *http.Request
	var err error
	if reqBody != nil {
		httpReq, err = http.NewRequestWithContext(ctx, method, url, reqBody)
	} else {
		httpReq, err = http.NewRequestWithContext(ctx, method, url, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if b.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.APIKey)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range b.DefaultHeaders {
		httpReq.Header.Set(k, v)
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := b.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, NewNetworkError(err)
	}
	return resp, nil
}

// ExtractSystemMessages pulls system messages out of the conversation,
// concatenating their text, and returns the remaining messages. Providers
// that take the system prompt out of band need this split.
func ExtractSystemMessages(messages []Message) (systemText string, remaining []Message) {
	var parts []string
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if text := msg.TextContent(); text != "" {
				parts = append(parts, text)
			}
		} else {
			remaining = append(remaining, msg)
		}
	}
	return strings.Join(parts, "\n"), remaining
}

// MergeConsecutiveMessages folds runs of same-role messages into one message,
// required by providers that enforce strict role alternation.
func MergeConsecutiveMessages(messages []Message) []Message {
	if len(messages) == 0 {
		return nil
	}

	result := []Message{{
		Role:    messages[0].Role,
		Content: append([]ContentPart(nil), messages[0].Content...),
	}}

	for i := 1; i < len(messages); i++ {
		last := &result[len(result)-1]
		if messages[i].Role == last.Role {
			last.Content = append(last.Content, messages[i].Content...)
		} else {
			result = append(result, Message{
				Role:    messages[i].Role,
				Content: append([]ContentPart(nil), messages[i].Content...),
			})
		}
	}
	return result
}

// GenerateCallID mints a unique tool-call identifier for providers that do
// not assign their own.
func GenerateCallID() string {
	return "call_" + uuid.NewString()
}
