// ABOUTME: Data tables resolving a model identifier to its family and a (family, toolType)
// ABOUTME: pair to the provider's tool-protocol version string.

package tools

import (
	"sort"
	"strings"
)

// modelFamilies maps model-identifier prefixes to family names. Resolution
// picks the longest matching prefix so more specific entries win. New models
// are added as rows, not as code branches.
var modelFamilies = map[string]string{
	"claude-3-5-sonnet": "claude-3-5",
	"claude-3-5-haiku":  "claude-3-5",
	"claude-3-7-sonnet": "claude-3-7",
	"claude-sonnet-4":   "claude-4",
	"claude-opus-4":     "claude-4",
	"gpt-4o":            "gpt-4o",
	"gpt-4.1":           "gpt-4.1",
	"o3":                "o-series",
	"o4-mini":           "o-series",
}

// toolVersions maps provider → family → toolType → protocol version string.
// Providers revise tool-use protocols independently of model releases, so the
// table nests on family rather than on the raw model identifier.
var toolVersions = map[string]map[string]map[string]string{
	"anthropic": {
		"claude-3-5": {
			TypeComputer: "computer_20241022",
			TypeBash:     "bash_20241022",
		},
		"claude-3-7": {
			TypeComputer: "computer_20250124",
			TypeBash:     "bash_20250124",
		},
		"claude-4": {
			TypeComputer: "computer_20250124",
			TypeBash:     "bash_20250124",
		},
	},
	"openai": {
		"gpt-4o": {
			TypeComputer: "computer_use_preview",
		},
		"gpt-4.1": {
			TypeComputer: "computer_use_preview",
		},
	},
}

// ModelFamily resolves a model identifier to its family by longest prefix
// match. Unknown models resolve to the empty family.
func ModelFamily(model string) string {
	best := ""
	family := ""
	for prefix, fam := range modelFamilies {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
			family = fam
		}
	}
	return family
}

// ToolVersion resolves the protocol version string for a provider, model
// family, and tool type. The second return reports whether a row exists.
func ToolVersion(provider, family, toolType string) (string, bool) {
	families, ok := toolVersions[provider]
	if !ok {
		return "", false
	}
	types, ok := families[family]
	if !ok {
		return "", false
	}
	version, ok := types[toolType]
	return version, ok
}

// KnownFamilies returns the distinct family names in sorted order.
func KnownFamilies() []string {
	seen := make(map[string]struct{})
	for _, fam := range modelFamilies {
		seen[fam] = struct{}{}
	}
	families := make([]string, 0, len(seen))
	for fam := range seen {
		families = append(families, fam)
	}
	sort.Strings(families)
	return families
}
