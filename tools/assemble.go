// ABOUTME: Assembles the tool set handed to the model for a given provider and model.
// ABOUTME: Missing registry rows omit the tool category with a trace log, never a failure.

package tools

import (
	"strings"

	"github.com/2389-research/playback/browser"
	"github.com/2389-research/playback/llm"
	"github.com/2389-research/playback/logging"
)

// GetTools resolves the tools available to a model run: the provider's
// computer and bash tools for the model's family, plus every custom tool not
// namespaced to a different provider. A category with no matching registry
// entry is skipped. The returned set is deterministic for a given
// (provider, model) pair.
func GetTools(registry *Registry, provider, model string, driver browser.Driver) []llm.Tool {
	family := ModelFamily(model)

	var result []llm.Tool
	for _, toolType := range []string{TypeComputer, TypeBash} {
		tool, ok := resolveProviderTool(registry, provider, family, toolType, driver)
		if !ok {
			logging.Tracef("tools: no %s entry for provider=%s family=%s, omitting", toolType, provider, family)
			continue
		}
		result = append(result, tool)
	}

	for _, key := range registry.customEntries() {
		if foreignProvider(key, provider) {
			continue
		}
		entry, ok := registry.Lookup(key)
		if !ok {
			continue
		}
		result = append(result, entry.Factory(driver))
	}
	return result
}

func resolveProviderTool(registry *Registry, provider, family, toolType string, driver browser.Driver) (llm.Tool, bool) {
	version, ok := ToolVersion(provider, family, toolType)
	if !ok {
		return llm.Tool{}, false
	}
	entry, ok := registry.Lookup(RegistryKey(provider, toolType, version))
	if !ok {
		return llm.Tool{}, false
	}
	return entry.Factory(driver), true
}

// foreignProvider reports whether key is namespaced to a provider other than
// the one requested. Keys whose first segment is not a known provider name
// are treated as provider-neutral.
func foreignProvider(key, provider string) bool {
	segment, _, found := strings.Cut(key, ":")
	if !found {
		return false
	}
	if segment == provider {
		return false
	}
	_, known := toolVersions[segment]
	return known
}
