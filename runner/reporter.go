// ABOUTME: Reporter receives run lifecycle events; ConsoleReporter renders them with lipgloss.
// ABOUTME: Reporting is observation only and never influences run outcomes.

package runner

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/playback/cache"
)

// Reporter observes run progress and results.
type Reporter interface {
	RunStarted(run *TestRun)
	RunFinished(run *TestRun, stats cache.Stats)
	SuiteFinished(passed, failed int, elapsed time.Duration)
}

var (
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	passedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	nameStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// ConsoleReporter writes styled, line-oriented progress to a writer. Safe for
// concurrent runs.
type ConsoleReporter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleReporter builds a reporter writing to out.
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out}
}

func (r *ConsoleReporter) RunStarted(run *TestRun) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "%s %s\n", runningStyle.Render("RUN "), nameStyle.Render(run.Case.Name()))
}

func (r *ConsoleReporter) RunFinished(run *TestRun, stats cache.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	label := passedStyle.Render("PASS")
	if run.Status() == StatusFailed {
		label = failedStyle.Render("FAIL")
	}
	detail := fmt.Sprintf("%d steps, %d cache hits, %d misses, %s",
		len(run.Steps()), stats.Hits, stats.Misses, run.Duration().Round(time.Millisecond))
	fmt.Fprintf(r.out, "%s %s %s\n", label, nameStyle.Render(run.Case.Name()), dimStyle.Render(detail))

	if err := run.Err(); err != nil {
		fmt.Fprintf(r.out, "     %s\n", failedStyle.Render(err.Error()))
	}
}

func (r *ConsoleReporter) SuiteFinished(passed, failed int, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	summary := fmt.Sprintf("%d passed, %d failed in %s", passed, failed, elapsed.Round(time.Millisecond))
	style := passedStyle
	if failed > 0 {
		style = failedStyle
	}
	fmt.Fprintf(r.out, "\n%s\n", style.Render(summary))
}

// NopReporter discards all events.
type NopReporter struct{}

func (NopReporter) RunStarted(*TestRun)                   {}
func (NopReporter) RunFinished(*TestRun, cache.Stats)     {}
func (NopReporter) SuiteFinished(int, int, time.Duration) {}
