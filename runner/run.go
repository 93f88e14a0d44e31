// ABOUTME: TestRun tracks one execution attempt of a TestCase through its state machine.
// ABOUTME: pending transitions to running, then exactly once to passed or failed.

package runner

import (
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/2389-research/playback/cache"
)

// Status is a TestRun lifecycle state.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusPassed || s == StatusFailed
}

// ErrInvalidTransition is returned when a run is moved out of order or a
// terminal run is moved again.
type ErrInvalidTransition struct {
	From Status
	To   Status
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("runner: invalid transition %s to %s", e.From, e.To)
}

// TestRun is one execution attempt. It accumulates the executed step sequence
// regardless of final status so commit and discard decisions can inspect it
// after the fact. Runs are reported and discarded, never persisted themselves.
type TestRun struct {
	ID   string
	Case *TestCase

	mu      sync.Mutex
	status  Status
	steps   []cache.Step
	started time.Time
	ended   time.Time
	err     error
}

// NewTestRun creates a pending run for tc with a fresh ULID.
func NewTestRun(tc *TestCase) *TestRun {
	return &TestRun{
		ID:     ulid.Make().String(),
		Case:   tc,
		status: StatusPending,
	}
}

// Start moves the run from pending to running and stamps the start time.
func (r *TestRun) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusPending {
		return &ErrInvalidTransition{From: r.status, To: StatusRunning}
	}
	r.status = StatusRunning
	r.started = time.Now()
	return nil
}

// Finish moves a running run to its terminal state. A second terminal
// transition is an error; no run re-enters running.
func (r *TestRun) Finish(passed bool, runErr error) error {
	to := StatusFailed
	if passed {
		to = StatusPassed
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusRunning {
		return &ErrInvalidTransition{From: r.status, To: to}
	}
	r.status = to
	r.ended = time.Now()
	r.err = runErr
	return nil
}

// AppendStep records one executed step in chronological order.
func (r *TestRun) AppendStep(step cache.Step) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step)
}

// Status returns the current state.
func (r *TestRun) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Steps returns a copy of the executed step sequence.
func (r *TestRun) Steps() []cache.Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	steps := make([]cache.Step, len(r.steps))
	copy(steps, r.steps)
	return steps
}

// Err returns the failure cause, if any.
func (r *TestRun) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Started returns the start timestamp; zero until Start.
func (r *TestRun) Started() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// Ended returns the end timestamp; zero until Finish.
func (r *TestRun) Ended() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ended
}

// Duration returns the elapsed run time, zero for unfinished runs.
func (r *TestRun) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started.IsZero() || r.ended.IsZero() {
		return 0
	}
	return r.ended.Sub(r.started)
}
