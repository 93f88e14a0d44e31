// ABOUTME: Suite is the explicit test-case registry threaded into discovery and execution.
// ABOUTME: There is no package-level global; callers construct and own their Suite.

package runner

import (
	"fmt"
	"sort"
	"sync"
)

// Suite collects TestCases by name. It is constructed once at runner start-up
// and passed by reference into file loading and execution.
type Suite struct {
	mu    sync.Mutex
	cases map[string]*TestCase
}

// NewSuite returns an empty suite.
func NewSuite() *Suite {
	return &Suite{cases: make(map[string]*TestCase)}
}

// Register adds a case. Two cases with the same name is a load error.
func (s *Suite) Register(tc *TestCase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.cases[tc.Name()]; exists {
		return fmt.Errorf("runner: test %q already registered", tc.Name())
	}
	s.cases[tc.Name()] = tc
	return nil
}

// Get returns the case registered under name.
func (s *Suite) Get(name string) (*TestCase, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tc, ok := s.cases[name]
	return tc, ok
}

// Cases returns all cases sorted by name, for deterministic scheduling.
func (s *Suite) Cases() []*TestCase {
	s.mu.Lock()
	defer s.mu.Unlock()
	cases := make([]*TestCase, 0, len(s.cases))
	for _, tc := range s.cases {
		cases = append(cases, tc)
	}
	sort.Slice(cases, func(i, j int) bool { return cases[i].Name() < cases[j].Name() })
	return cases
}

// Len returns the number of registered cases.
func (s *Suite) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cases)
}
