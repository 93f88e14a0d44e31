// ABOUTME: Tests for the write-once tool registry.
// ABOUTME: Duplicate keys must error immediately and never replace the original entry.

package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/2389-research/playback/browser"
	"github.com/2389-research/playback/llm"
)

func staticFactory(name, output string) Factory {
	return func(driver browser.Driver) llm.Tool {
		return llm.Tool{
			ToolDefinition: llm.ToolDefinition{Name: name},
			Execute: func(ctx context.Context, args json.RawMessage) (string, error) {
				return output, nil
			},
		}
	}
}

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	key := RegistryKey("anthropic", TypeBash, "bash_20250124")
	if err := r.Register(key, Entry{Name: "bash", Category: CategoryProvider, Factory: staticFactory("bash", "v1")}); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	entry, ok := r.Lookup(key)
	if !ok {
		t.Fatal("expected entry after registration")
	}
	if entry.Name != "bash" || entry.Category != CategoryProvider {
		t.Errorf("entry = %+v", entry)
	}
}

func TestDuplicateRegistrationFailsAndPreservesOriginal(t *testing.T) {
	r := NewRegistry()
	key := RegistryKey("anthropic", TypeBash, "bash_20250124")

	if err := r.Register(key, Entry{Name: "bash", Category: CategoryProvider, Factory: staticFactory("bash", "original")}); err != nil {
		t.Fatalf("first Register error: %v", err)
	}
	err := r.Register(key, Entry{Name: "bash", Category: CategoryProvider, Factory: staticFactory("bash", "replacement")})
	if err == nil {
		t.Fatal("second registration under the same key must fail")
	}

	entry, _ := r.Lookup(key)
	out, execErr := entry.Factory(nil).Execute(context.Background(), json.RawMessage("{}"))
	if execErr != nil {
		t.Fatal(execErr)
	}
	if out != "original" {
		t.Errorf("original entry was replaced, got %q", out)
	}
}

func TestRegisterRejectsEmptyKeyAndNilFactory(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("  ", Entry{Name: "x", Factory: staticFactory("x", "")}); err == nil {
		t.Error("blank key must be rejected")
	}
	if err := r.Register("a:b:c", Entry{Name: "x"}); err == nil {
		t.Error("nil factory must be rejected")
	}
}

func TestKeysSorted(t *testing.T) {
	r := NewRegistry()
	for _, key := range []string{"b:x:1", "a:x:1", "c:x:1"} {
		if err := r.Register(key, Entry{Name: "x", Factory: staticFactory("x", "")}); err != nil {
			t.Fatal(err)
		}
	}
	keys := r.Keys()
	want := []string{"a:x:1", "b:x:1", "c:x:1"}
	for i, k := range want {
		if keys[i] != k {
			t.Fatalf("Keys = %v, want %v", keys, want)
		}
	}
}
