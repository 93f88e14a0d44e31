// ABOUTME: Replay middleware that intercepts generate calls for one test run.
// ABOUTME: Durable hit replays the recorded decision; miss records to scratch and may commit optimistically.

package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/2389-research/playback/llm"
)

// visualMatchThreshold is the Hamming distance up to which two screenshot
// hashes count as the same page state.
const visualMatchThreshold = 10

// Stats counts middleware outcomes for one run.
type Stats struct {
	Hits      int
	Misses    int
	Commits   int
	ModelCost llm.Usage
}

// Middleware drives replay and recording for a single test's runs. A durable
// hit returns the recorded decision without touching the model surface; a
// miss invokes the model and stages a trimmed projection in the scratch
// store. A valid embedded "pass" verdict triggers an immediate optimistic
// commit of the scratch store.
type Middleware struct {
	test    TestRef
	durable Store
	scratch Store
	enabled bool
	onTrace func(msg string)

	mu    sync.Mutex
	stats Stats
}

// MiddlewareOption configures a Middleware.
type MiddlewareOption func(*Middleware)

// WithReplayDisabled bypasses lookup and recording entirely; every call goes
// straight to the model surface.
func WithReplayDisabled() MiddlewareOption {
	return func(m *Middleware) {
		m.enabled = false
	}
}

// WithTraceFunc installs a sink for trace-level diagnostics.
func WithTraceFunc(fn func(msg string)) MiddlewareOption {
	return func(m *Middleware) {
		m.onTrace = fn
	}
}

// NewMiddleware builds a replay middleware for one test, bound to its durable
// store and a fresh scratch store.
func NewMiddleware(test TestRef, durable, scratch Store, opts ...MiddlewareOption) *Middleware {
	m := &Middleware{
		test:    test,
		durable: durable,
		scratch: scratch,
		enabled: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Stats returns a snapshot of the middleware counters.
func (m *Middleware) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Generate is the llm.Middleware entry point.
func (m *Middleware) Generate(ctx context.Context, req llm.Request, next llm.NextFunc) (*llm.Response, error) {
	if !m.enabled {
		return next(ctx, req)
	}

	fp, err := Fingerprint(requestPayload(req))
	if err != nil {
		// An unfingerprintable request cannot be cached; pass it through.
		m.trace("request fingerprint failed: " + err.Error())
		return next(ctx, req)
	}
	key := Key(NamespaceAI, fp)

	if entry, ok := m.durable.Get(key); ok {
		m.mu.Lock()
		m.stats.Hits++
		m.mu.Unlock()
		return replayResponse(req, entry), nil
	}

	resp, err := next(ctx, req)
	if err != nil {
		// Failures are never cached and propagate untouched.
		return nil, err
	}

	m.mu.Lock()
	m.stats.Misses++
	m.stats.ModelCost = m.stats.ModelCost.Add(resp.Usage)
	m.mu.Unlock()

	m.scratch.Set(key, projectEntry(m.test, resp))

	// An embedded "pass" verdict commits the run's speculative entries right
	// away, ahead of the suite-level outcome. A missing or malformed verdict
	// only skips the commit; it can never fail the call.
	if verdict, verr := ExtractVerdict(resp.TextContent()); verr == nil && verdict.Result == VerdictPass {
		if cerr := m.Commit(); cerr != nil {
			m.trace("optimistic commit failed: " + cerr.Error())
		}
	}

	return resp, nil
}

// ObserveScreenshot stages a screenshot observation under the visual
// namespace, keyed by its perceptual hash, and reports whether a previous
// passing run recorded a matching page state. Near-identical screenshots
// match within a small Hamming distance.
func (m *Middleware) ObserveScreenshot(hash uint64, step Step) bool {
	if !m.enabled {
		return false
	}
	key := Key(NamespaceVisual, fmt.Sprintf("%016x", hash))
	m.scratch.Set(key, NewEntry(m.test, []Step{step}))

	if _, ok := m.durable.Get(key); ok {
		return true
	}
	prefix := NamespaceVisual + ":"
	for _, k := range m.durable.Keys() {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		recorded, err := strconv.ParseUint(strings.TrimPrefix(k, prefix), 16, 64)
		if err != nil {
			continue
		}
		if HammingDistance(hash, recorded) <= visualMatchThreshold {
			return true
		}
	}
	return false
}

// Commit merges the scratch store into the durable store.
func (m *Middleware) Commit() error {
	if err := EmitCache(m.scratch, m.durable); err != nil {
		return err
	}
	m.mu.Lock()
	m.stats.Commits++
	m.mu.Unlock()
	return nil
}

func (m *Middleware) trace(msg string) {
	if m.onTrace != nil {
		m.onTrace(msg)
	}
}

// requestPayload is the fingerprinted projection of an outbound request:
// model, conversation, and tool schemas. Provider routing and sampling knobs
// are part of the decision identity too. Tool-call IDs are volatile per run
// and stay out of the fingerprint so replayed conversations keep hitting.
func requestPayload(req llm.Request) map[string]any {
	payload := map[string]any{
		"model":    req.Model,
		"messages": normalizeMessages(req.Messages),
		"provider": req.Provider,
	}
	if len(req.Tools) > 0 {
		payload["tools"] = req.Tools
	}
	if req.ToolChoice != nil {
		payload["tool_choice"] = req.ToolChoice
	}
	if req.Temperature != nil {
		payload["temperature"] = *req.Temperature
	}
	return payload
}

// normalizeMessages projects a conversation to its fingerprint-relevant
// content: roles, text, tool names and arguments, tool-result payloads.
func normalizeMessages(messages []llm.Message) []map[string]any {
	normalized := make([]map[string]any, 0, len(messages))
	for _, msg := range messages {
		parts := make([]map[string]any, 0, len(msg.Content))
		for _, part := range msg.Content {
			p := map[string]any{"kind": string(part.Kind)}
			switch part.Kind {
			case llm.ContentText:
				p["text"] = part.Text
			case llm.ContentImage:
				if part.Image != nil {
					p["image_url"] = part.Image.URL
					if len(part.Image.Data) > 0 {
						sum := sha256.Sum256(part.Image.Data)
						p["image_digest"] = hex.EncodeToString(sum[:])
					}
				}
			case llm.ContentToolCall:
				if part.ToolCall != nil {
					p["name"] = part.ToolCall.Name
					p["arguments"] = json.RawMessage(part.ToolCall.Arguments)
				}
			case llm.ContentToolResult:
				if part.ToolResult != nil {
					p["content"] = part.ToolResult.Content
					p["is_error"] = part.ToolResult.IsError
				}
			}
			parts = append(parts, p)
		}
		normalized = append(normalized, map[string]any{
			"role":  string(msg.Role),
			"parts": parts,
		})
	}
	return normalized
}

// projectEntry trims a model response to the recorded step sequence: one step
// per tool call, or a single text step. The first step carries the response
// text as reasoning and the model metadata extra; raw payloads are dropped.
func projectEntry(test TestRef, resp *llm.Response) *Entry {
	now := time.Now().UnixMilli()
	meta := &Extra{
		Kind: ExtraModel,
		Model: &ModelMeta{
			Model:        resp.Model,
			FinishReason: resp.FinishReason.Reason,
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}

	calls := resp.ToolCalls()
	if len(calls) == 0 {
		return NewEntry(test, []Step{{
			Reasoning: resp.TextContent(),
			Action:    &Action{Type: ActionText},
			Timestamp: now,
			Extra:     meta,
		}})
	}

	steps := make([]Step, 0, len(calls))
	for i, call := range calls {
		var input map[string]any
		if err := json.Unmarshal(call.Arguments, &input); err != nil {
			input = map[string]any{}
		}
		step := Step{
			Action: &Action{
				Type:  ActionToolUse,
				Name:  call.Name,
				Input: input,
			},
			Timestamp: now,
		}
		if i == 0 {
			step.Reasoning = resp.TextContent()
			step.Extra = meta
		}
		steps = append(steps, step)
	}
	return NewEntry(test, steps)
}

// replayResponse rebuilds a live response from a recorded entry. Timestamps
// are reconstructed to the present; usage is zero because the model was never
// invoked.
func replayResponse(req llm.Request, entry *Entry) *llm.Response {
	msg := llm.Message{Role: llm.RoleAssistant}
	finish := llm.FinishReason{Reason: llm.FinishStop}
	model := req.Model

	for i, step := range entry.Data.Steps {
		if i == 0 {
			if step.Reasoning != "" {
				msg.Content = append(msg.Content, llm.TextPart(step.Reasoning))
			}
			if step.Extra != nil && step.Extra.Kind == ExtraModel && step.Extra.Model != nil {
				if step.Extra.Model.FinishReason != "" {
					finish.Reason = step.Extra.Model.FinishReason
				}
				if step.Extra.Model.Model != "" {
					model = step.Extra.Model.Model
				}
			}
		}
		if step.Action != nil && step.Action.Type == ActionToolUse {
			args, err := json.Marshal(step.Action.Input)
			if err != nil {
				args = []byte("{}")
			}
			msg.Content = append(msg.Content, llm.ToolCallPart(llm.GenerateCallID(), step.Action.Name, args))
			finish.Reason = llm.FinishToolCalls
		}
	}

	return &llm.Response{
		ID:           "replay_" + entry.Test.Name,
		Model:        model,
		Provider:     req.Provider,
		Message:      msg,
		FinishReason: finish,
		Created:      time.Now(),
	}
}

// Compile-time check that Generate satisfies llm.Middleware.
var _ llm.Middleware = (&Middleware{}).Generate
