// ABOUTME: Write-once registry of automation tools keyed by provider, tool type, and protocol version.
// ABOUTME: Re-registering an existing key is an error, never a silent overwrite.

package tools

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/2389-research/playback/browser"
	"github.com/2389-research/playback/llm"
)

// Category distinguishes provider-shipped tools from user-supplied ones.
type Category string

const (
	CategoryProvider Category = "provider"
	CategoryCustom   Category = "custom"
)

// Tool types resolved per provider/model family.
const (
	TypeComputer = "computer"
	TypeBash     = "bash"
)

// Factory builds a concrete tool, optionally bound to an automation driver.
type Factory func(driver browser.Driver) llm.Tool

// Entry is one registered tool under a composite key.
type Entry struct {
	Name     string
	Category Category
	Factory  Factory
}

// RegistryKey composes the lookup key "provider:toolType:version".
func RegistryKey(provider, toolType, version string) string {
	return provider + ":" + toolType + ":" + version
}

// Registry maps composite keys to tool entries. Keys are write-once.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds an entry under key. Registering a key that already exists is
// a configuration error and fails immediately.
func (r *Registry) Register(key string, entry Entry) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("tools: registry key must not be empty")
	}
	if entry.Factory == nil {
		return fmt.Errorf("tools: entry %q has no factory", key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[key]; exists {
		return fmt.Errorf("tools: key %q already registered", key)
	}
	r.entries[key] = entry
	return nil
}

// Lookup returns the entry for key.
func (r *Registry) Lookup(key string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[key]
	return entry, ok
}

// Keys returns all registered keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// customEntries returns the keys of custom-category entries, sorted.
func (r *Registry) customEntries() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var keys []string
	for k, e := range r.entries {
		if e.Category == CategoryCustom {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
