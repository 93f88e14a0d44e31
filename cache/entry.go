// ABOUTME: Cache entry data model: steps, actions, and the closed extras union.
// ABOUTME: Matches the one-JSON-document-per-test durable file format.

package cache

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActionType discriminates a recorded AI action.
type ActionType string

const (
	ActionToolUse ActionType = "tool_use"
	ActionText    ActionType = "text"
)

// Action is one recorded AI decision: either a named tool invocation with
// structured input, or a plain text turn.
type Action struct {
	Type  ActionType     `json:"type"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`
}

// ExtraKind discriminates the Extra union on a step.
type ExtraKind string

const (
	ExtraScreenshot  ExtraKind = "screenshot"
	ExtraDOMSnapshot ExtraKind = "dom_snapshot"
	ExtraModel       ExtraKind = "model"
)

// ScreenshotMeta records the perceptual hash and dimensions of a screenshot
// taken alongside a step.
type ScreenshotMeta struct {
	Hash   uint64 `json:"hash"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// DOMSnapshotRef points at an externally stored DOM snapshot.
type DOMSnapshotRef struct {
	Path   string `json:"path"`
	Digest string `json:"digest,omitempty"`
}

// ModelMeta is the trimmed projection of a model response attached to the
// step that recorded it: usage, finish reason, and model id. Raw provider
// payloads are never stored.
type ModelMeta struct {
	Model        string `json:"model,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
}

// Extra is a closed tagged union of known step attachments. Unknown kinds are
// rejected at the serialization boundary.
type Extra struct {
	Kind        ExtraKind       `json:"kind"`
	Screenshot  *ScreenshotMeta `json:"screenshot,omitempty"`
	DOMSnapshot *DOMSnapshotRef `json:"dom_snapshot,omitempty"`
	Model       *ModelMeta      `json:"model,omitempty"`
}

// Validate checks that the kind is known and its payload is populated.
func (e *Extra) Validate() error {
	switch e.Kind {
	case ExtraScreenshot:
		if e.Screenshot == nil {
			return fmt.Errorf("cache: screenshot extra missing payload")
		}
	case ExtraDOMSnapshot:
		if e.DOMSnapshot == nil {
			return fmt.Errorf("cache: dom_snapshot extra missing payload")
		}
	case ExtraModel:
		if e.Model == nil {
			return fmt.Errorf("cache: model extra missing payload")
		}
	default:
		return fmt.Errorf("cache: unknown extra kind %q", e.Kind)
	}
	return nil
}

// UnmarshalJSON decodes and validates the union.
func (e *Extra) UnmarshalJSON(data []byte) error {
	type alias Extra
	var decoded alias
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*e = Extra(decoded)
	return e.Validate()
}

// Step is one reasoning/action/result record in chronological order.
type Step struct {
	Reasoning string  `json:"reasoning"`
	Action    *Action `json:"action"`
	Timestamp int64   `json:"timestamp"`
	Result    *string `json:"result"`
	Extra     *Extra  `json:"extras,omitempty"`
}

// TestRef identifies the test a cache entry belongs to.
type TestRef struct {
	Name     string `json:"name"`
	FilePath string `json:"filePath"`
}

// StepData wraps the ordered step sequence.
type StepData struct {
	Steps []Step `json:"steps"`
}

// Entry is one cached record: the recorded steps for a single fingerprinted
// request, stamped with the owning test and a creation time in epoch ms.
type Entry struct {
	Test      TestRef  `json:"test"`
	Data      StepData `json:"data"`
	Timestamp int64    `json:"timestamp"`
}

// NewEntry builds an entry stamped with the current time.
func NewEntry(test TestRef, steps []Step) *Entry {
	return &Entry{
		Test:      test,
		Data:      StepData{Steps: steps},
		Timestamp: time.Now().UnixMilli(),
	}
}

// NowMilli returns the current time in epoch milliseconds, the timestamp unit
// used throughout the cache file format.
func NowMilli() int64 {
	return time.Now().UnixMilli()
}
