// ABOUTME: Deterministic fingerprinting of request payloads for cache addressing.
// ABOUTME: Canonical JSON (sorted keys, recursively) digested with SHA-256.

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Cache key namespaces. Distinct namespaces keep unrelated subsystems from
// colliding on the same fingerprint.
const (
	NamespaceAI     = "ai"
	NamespaceVisual = "visual"
)

// Fingerprint digests a value into a stable hex string. Semantically equal
// inputs produce identical fingerprints regardless of map key insertion
// order; any differing field changes the digest.
func Fingerprint(v any) (string, error) {
	canonical, err := canonicalize(v)
	if err != nil {
		return "", fmt.Errorf("cache: canonicalizing value: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Key composes a namespaced cache key: "<namespace>:<fingerprint>".
func Key(namespace, fingerprint string) string {
	return namespace + ":" + fingerprint
}

// canonicalize produces a deterministic JSON encoding. Structs and other
// non-map values are round-tripped through JSON first so that their fields
// are treated uniformly with map keys.
func canonicalize(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}

	switch val := v.(type) {
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	case string, bool, float64, float32,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		json.Number:
		return json.Marshal(val)
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		var generic any
		if err := json.Unmarshal(encoded, &generic); err != nil {
			return nil, err
		}
		// A round-tripped scalar comes back as a primitive; anything else
		// recurses into the map/slice cases above.
		if m, ok := generic.(map[string]any); ok {
			return canonicalizeMap(m)
		}
		if s, ok := generic.([]any); ok {
			return canonicalizeSlice(s)
		}
		return json.Marshal(generic)
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		valBytes, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	return append(result, '}'), nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}
		valBytes, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	return append(result, ']'), nil
}
