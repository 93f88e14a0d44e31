// ABOUTME: TestCase is the immutable identity of one test, with a derived content identifier.
// ABOUTME: The identifier is hashed once at construction and addresses the durable cache file.

package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/2389-research/playback/browser"
	"github.com/2389-research/playback/cache"
)

// Hook runs before or after a test case.
type Hook func(ctx context.Context) error

// DirectFunc is a programmatic test body, run without the AI step loop.
type DirectFunc func(ctx context.Context, driver browser.Driver) error

// CaseSpec carries the fields a TestCase is built from.
type CaseSpec struct {
	Name     string
	FilePath string
	Payload  any
	Steps    []string
	Direct   bool
	Func     DirectFunc
	Before   Hook
	After    Hook
}

// TestCase is an immutable test identity. All fields are fixed at
// construction; the identifier is a pure function of the identity fields, so
// equal inputs always address the same durable cache file across restarts.
type TestCase struct {
	name       string
	filePath   string
	payload    any
	steps      []string
	direct     bool
	fn         DirectFunc
	before     Hook
	after      Hook
	identifier string
}

// NewTestCase builds a TestCase and hashes its identity. Hooks and the
// function body do not participate in identity; they are not serializable and
// a test's cache address must not change when its code is reformatted.
func NewTestCase(spec CaseSpec) (*TestCase, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return nil, fmt.Errorf("runner: test case name must not be empty")
	}
	if spec.Direct && spec.Func == nil {
		return nil, fmt.Errorf("runner: direct test %q has no function body", spec.Name)
	}

	identity := map[string]any{
		"name":     spec.Name,
		"filePath": spec.FilePath,
		"payload":  spec.Payload,
		"steps":    spec.Steps,
		"direct":   spec.Direct,
	}
	identifier, err := cache.Fingerprint(identity)
	if err != nil {
		return nil, fmt.Errorf("runner: hashing identity of %q: %w", spec.Name, err)
	}

	steps := make([]string, len(spec.Steps))
	copy(steps, spec.Steps)

	return &TestCase{
		name:       spec.Name,
		filePath:   spec.FilePath,
		payload:    spec.Payload,
		steps:      steps,
		direct:     spec.Direct,
		fn:         spec.Func,
		before:     spec.Before,
		after:      spec.After,
		identifier: identifier,
	}, nil
}

func (tc *TestCase) Name() string       { return tc.name }
func (tc *TestCase) FilePath() string   { return tc.filePath }
func (tc *TestCase) Payload() any       { return tc.payload }
func (tc *TestCase) Direct() bool       { return tc.direct }
func (tc *TestCase) Func() DirectFunc   { return tc.fn }
func (tc *TestCase) Before() Hook       { return tc.before }
func (tc *TestCase) After() Hook        { return tc.after }
func (tc *TestCase) Identifier() string { return tc.identifier }

// Steps returns a copy of the expectation steps.
func (tc *TestCase) Steps() []string {
	steps := make([]string, len(tc.steps))
	copy(steps, tc.steps)
	return steps
}

// Ref returns the cache-entry reference for this case.
func (tc *TestCase) Ref() cache.TestRef {
	return cache.TestRef{Name: tc.name, FilePath: tc.filePath}
}
