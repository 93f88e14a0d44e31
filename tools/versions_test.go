// ABOUTME: Tests for model-to-family and family-to-protocol-version resolution.
// ABOUTME: Longest prefix wins; unresolved lookups report absence, never guess.

package tools

import "testing"

func TestModelFamilyLongestPrefix(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"claude-3-5-sonnet-20241022", "claude-3-5"},
		{"claude-3-7-sonnet-20250219", "claude-3-7"},
		{"claude-sonnet-4-20250514", "claude-4"},
		{"claude-opus-4-20250514", "claude-4"},
		{"gpt-4o-2024-11-20", "gpt-4o"},
		{"gpt-4.1-mini", "gpt-4.1"},
		{"o3-2025-04-16", "o-series"},
		{"totally-unknown-model", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := ModelFamily(tt.model); got != tt.want {
				t.Errorf("ModelFamily(%q) = %q, want %q", tt.model, got, tt.want)
			}
		})
	}
}

func TestToolVersionResolution(t *testing.T) {
	tests := []struct {
		provider, family, toolType string
		want                       string
		ok                         bool
	}{
		{"anthropic", "claude-3-5", TypeComputer, "computer_20241022", true},
		{"anthropic", "claude-4", TypeBash, "bash_20250124", true},
		{"openai", "gpt-4o", TypeComputer, "computer_use_preview", true},
		{"openai", "gpt-4o", TypeBash, "", false},
		{"anthropic", "unknown-family", TypeComputer, "", false},
		{"nonexistent", "claude-4", TypeComputer, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.provider+"/"+tt.family+"/"+tt.toolType, func(t *testing.T) {
			got, ok := ToolVersion(tt.provider, tt.family, tt.toolType)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ToolVersion = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}
