// ABOUTME: Extraction of the structured pass/fail verdict from free-text model output.
// ABOUTME: Exactly one valid trailing JSON object is required; anything else is ambiguous.

package cache

import (
	"encoding/json"
	"errors"
	"strings"
)

// Verdict is the structured judgment a model embeds in its free-text output.
type Verdict struct {
	Result string `json:"result"`
	Reason string `json:"reason"`
}

// Verdict results.
const (
	VerdictPass = "pass"
	VerdictFail = "fail"
)

// ErrNoVerdict is returned when the text contains no valid verdict object.
var ErrNoVerdict = errors.New("cache: no verdict object in model output")

// ErrAmbiguousVerdict is returned when more than one candidate verdict object
// is present.
var ErrAmbiguousVerdict = errors.New("cache: multiple verdict objects in model output")

// ExtractVerdict scans text for balanced top-level JSON objects and returns
// the verdict if exactly one of them validates against
// {"result":"pass"|"fail","reason":string}. Zero candidates yield
// ErrNoVerdict, several yield ErrAmbiguousVerdict; callers treat both as
// non-fatal.
func ExtractVerdict(text string) (*Verdict, error) {
	var verdicts []Verdict

	for _, candidate := range scanJSONObjects(text) {
		v, ok := parseVerdict(candidate)
		if ok {
			verdicts = append(verdicts, v)
		}
	}

	switch len(verdicts) {
	case 0:
		return nil, ErrNoVerdict
	case 1:
		return &verdicts[0], nil
	default:
		return nil, ErrAmbiguousVerdict
	}
}

func parseVerdict(candidate string) (Verdict, bool) {
	dec := json.NewDecoder(strings.NewReader(candidate))
	dec.DisallowUnknownFields()

	// Both fields must be present, so decode through pointers first.
	var raw struct {
		Result *string `json:"result"`
		Reason *string `json:"reason"`
	}
	if err := dec.Decode(&raw); err != nil {
		return Verdict{}, false
	}
	if raw.Result == nil || raw.Reason == nil {
		return Verdict{}, false
	}
	if *raw.Result != VerdictPass && *raw.Result != VerdictFail {
		return Verdict{}, false
	}
	return Verdict{Result: *raw.Result, Reason: *raw.Reason}, true
}

// scanJSONObjects finds balanced top-level {...} substrings, tracking string
// literals and escapes so braces inside strings do not confuse the scan.
func scanJSONObjects(text string) []string {
	var objects []string
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					objects = append(objects, text[start:i+1])
					start = -1
				}
			}
		}
	}
	return objects
}
