// ABOUTME: Runner executes suite cases through the decide, act, observe loop with cached replay.
// ABOUTME: Distinct cases fan out across a bounded worker pool; each run owns its own scratch store.

package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/2389-research/playback/browser"
	"github.com/2389-research/playback/cache"
	"github.com/2389-research/playback/history"
	"github.com/2389-research/playback/llm"
	"github.com/2389-research/playback/logging"
	"github.com/2389-research/playback/tools"
)

// Summary aggregates a suite execution.
type Summary struct {
	Passed  int
	Failed  int
	Elapsed time.Duration
}

// Runner orchestrates suite execution.
type Runner struct {
	cfg      Config
	client   *llm.Client
	registry *tools.Registry
	driver   browser.Driver
	reporter Reporter
	history  *history.Index
}

// Option configures a Runner.
type Option func(*Runner)

// WithReporter installs a reporter; the default discards events.
func WithReporter(r Reporter) Option {
	return func(rn *Runner) { rn.reporter = r }
}

// WithHistory records completed runs into idx.
func WithHistory(idx *history.Index) Option {
	return func(rn *Runner) { rn.history = idx }
}

// NewRunner builds a runner over a model client, tool registry, and browser
// driver.
func NewRunner(cfg Config, client *llm.Client, registry *tools.Registry, driver browser.Driver, opts ...Option) *Runner {
	rn := &Runner{
		cfg:      cfg,
		client:   client,
		registry: registry,
		driver:   driver,
		reporter: NopReporter{},
	}
	for _, opt := range opts {
		opt(rn)
	}
	return rn
}

// Run executes every case in the suite across at most cfg.Workers concurrent
// slots and returns the aggregate summary. Individual case failures are part
// of the summary, not an error; Run errors only on setup-level problems.
func (rn *Runner) Run(ctx context.Context, suite *Suite) (Summary, error) {
	if err := rn.cfg.Validate(); err != nil {
		return Summary{}, err
	}

	start := time.Now()
	cases := suite.Cases()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		summary Summary
	)
	slots := make(chan struct{}, rn.cfg.Workers)

	for _, tc := range cases {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		slots <- struct{}{}
		go func(tc *TestCase) {
			defer wg.Done()
			defer func() { <-slots }()

			run := rn.runCase(ctx, tc)

			mu.Lock()
			if run.Status() == StatusPassed {
				summary.Passed++
			} else {
				summary.Failed++
			}
			mu.Unlock()
		}(tc)
	}
	wg.Wait()

	summary.Elapsed = time.Since(start)
	rn.reporter.SuiteFinished(summary.Passed, summary.Failed, summary.Elapsed)
	return summary, ctx.Err()
}

// runCase executes one case end to end and returns its finished run.
func (rn *Runner) runCase(ctx context.Context, tc *TestCase) *TestRun {
	run := NewTestRun(tc)
	rn.reporter.RunStarted(run)
	if err := run.Start(); err != nil {
		// A fresh run is always pending; a failure here is a programming error.
		logging.Errorf("runner: starting run %s: %v", run.ID, err)
	}

	durable := cache.NewFileStore(rn.cfg.CacheDir, tc.Identifier())
	scratch := cache.NewMemoryStore()
	var mwOpts []cache.MiddlewareOption
	if logging.TraceEnabled() {
		mwOpts = append(mwOpts, cache.WithTraceFunc(func(msg string) { logging.Tracef("%s", msg) }))
	}
	if rn.cfg.NoCache {
		mwOpts = append(mwOpts, cache.WithReplayDisabled())
	}
	mw := cache.NewMiddleware(tc.Ref(), durable, scratch, mwOpts...)

	passed, runErr := rn.execute(ctx, tc, run, mw)

	if passed {
		// The optimistic verdict commit usually ran already; committing again
		// rewrites the same entries and keeps aborted-commit runs consistent.
		if err := mw.Commit(); err != nil {
			logging.Errorf("runner: committing cache for %s: %v", tc.Name(), err)
		}
	}

	if err := run.Finish(passed, runErr); err != nil {
		logging.Errorf("runner: finishing run %s: %v", run.ID, err)
	}

	stats := mw.Stats()
	rn.reporter.RunFinished(run, stats)
	rn.record(run, stats)
	return run
}

// execute runs the case body: hooks around either the direct function or the
// AI step loop. Scratch entries from a failing path are simply dropped.
func (rn *Runner) execute(ctx context.Context, tc *TestCase, run *TestRun, mw *cache.Middleware) (bool, error) {
	if before := tc.Before(); before != nil {
		if err := before(ctx); err != nil {
			return false, fmt.Errorf("before hook: %w", err)
		}
	}
	if after := tc.After(); after != nil {
		defer func() {
			if err := after(ctx); err != nil {
				logging.Errorf("runner: after hook for %s: %v", tc.Name(), err)
			}
		}()
	}

	if tc.Direct() {
		if err := tc.Func()(ctx, rn.driver); err != nil {
			return false, err
		}
		return true, nil
	}
	return rn.stepLoop(ctx, tc, run, mw)
}

// stepLoop drives the decide, act, observe cycle until the model emits a
// verdict or the step budget runs out.
func (rn *Runner) stepLoop(ctx context.Context, tc *TestCase, run *TestRun, mw *cache.Middleware) (bool, error) {
	toolSet := tools.GetTools(rn.registry, rn.cfg.Provider, rn.cfg.Model, rn.driver)
	byName := make(map[string]llm.Tool, len(toolSet))
	defs := make([]llm.ToolDefinition, 0, len(toolSet))
	for _, tool := range toolSet {
		byName[tool.Name] = tool
		defs = append(defs, tool.ToolDefinition)
	}

	messages := []llm.Message{
		llm.SystemMessage(systemPrompt(tc)),
		llm.UserMessage(taskPrompt(tc)),
	}

	next := llm.NextFunc(func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		return rn.client.Complete(ctx, req)
	})

	for step := 0; step < rn.cfg.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		req := llm.Request{
			Model:      rn.cfg.Model,
			Provider:   rn.cfg.Provider,
			Messages:   messages,
			Tools:      defs,
			ToolChoice: &llm.ToolChoice{Mode: llm.ToolChoiceAuto},
		}
		resp, err := mw.Generate(ctx, req, next)
		if err != nil {
			return false, err
		}

		text := resp.Message.TextContent()
		toolCalls := resp.Message.ToolCalls()
		messages = append(messages, resp.Message)

		if len(toolCalls) == 0 {
			run.AppendStep(cache.Step{
				Reasoning: text,
				Action:    &cache.Action{Type: cache.ActionText},
				Timestamp: cache.NowMilli(),
			})
			verdict, verr := cache.ExtractVerdict(text)
			if verr != nil {
				return false, fmt.Errorf("model stopped without a verdict: %s", firstLine(text))
			}
			return verdict.Result == cache.VerdictPass, nil
		}

		for i, call := range toolCalls {
			reasoning := ""
			if i == 0 {
				reasoning = text
			}
			result, err := rn.dispatch(ctx, byName, call)
			if err != nil {
				return false, err
			}
			input, merr := call.ArgumentsMap()
			if merr != nil {
				input = map[string]any{}
			}
			step := cache.Step{
				Reasoning: reasoning,
				Action: &cache.Action{
					Type:  cache.ActionToolUse,
					Name:  call.Name,
					Input: input,
				},
				Timestamp: cache.NowMilli(),
				Result:    &result,
			}
			if input["action"] == "screenshot" {
				if hash, herr := cache.ImageFingerprint([]byte(result)); herr == nil {
					step.Extra = &cache.Extra{
						Kind:       cache.ExtraScreenshot,
						Screenshot: &cache.ScreenshotMeta{Hash: hash},
					}
					if mw.ObserveScreenshot(hash, step) {
						logging.Tracef("runner: screenshot for %s matches a recorded page state", tc.Name())
					}
				}
			}
			run.AppendStep(step)
			messages = append(messages, llm.ToolResultMessage(call.ID, result, false))
		}

		// A verdict alongside tool calls ends the run after the observations
		// above are recorded.
		if verdict, verr := cache.ExtractVerdict(text); verr == nil {
			return verdict.Result == cache.VerdictPass, nil
		}
	}
	return false, fmt.Errorf("no verdict after %d steps", rn.cfg.MaxSteps)
}

// dispatch executes one tool call against the registered tool set.
func (rn *Runner) dispatch(ctx context.Context, byName map[string]llm.Tool, call llm.ToolCallData) (string, error) {
	tool, ok := byName[call.Name]
	if !ok {
		return "", fmt.Errorf("model requested unknown tool %q", call.Name)
	}
	if !tool.IsActive() {
		return "", fmt.Errorf("tool %q has no execute handler", call.Name)
	}
	args := call.Arguments
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	result, err := tool.Execute(ctx, args)
	if err != nil {
		return "", fmt.Errorf("tool %s: %w", call.Name, err)
	}
	return result, nil
}

func (rn *Runner) record(run *TestRun, stats cache.Stats) {
	if rn.history == nil {
		return
	}
	rec := history.Record{
		RunID:      run.ID,
		TestName:   run.Case.Name(),
		FilePath:   run.Case.FilePath(),
		Identifier: run.Case.Identifier(),
		Status:     string(run.Status()),
		StepCount:  len(run.Steps()),
		CacheHits:  stats.Hits,
		StartedAt:  run.Started(),
		EndedAt:    run.Ended(),
	}
	if err := rn.history.Record(rec); err != nil {
		logging.Errorf("runner: recording history for %s: %v", run.Case.Name(), err)
	}
}

func systemPrompt(tc *TestCase) string {
	var b strings.Builder
	b.WriteString("You are an end-to-end browser test agent. ")
	b.WriteString("Use the provided tools to drive the browser and verify the expected behavior. ")
	b.WriteString("When you have determined the outcome, finish your reply with exactly one JSON object ")
	b.WriteString(`of the form {"result":"pass","reason":"..."} or {"result":"fail","reason":"..."}.`)
	if payload := tc.Payload(); payload != nil {
		if buf, err := json.Marshal(payload); err == nil {
			b.WriteString("\n\nTest data:\n")
			b.Write(buf)
		}
	}
	return b.String()
}

func taskPrompt(tc *TestCase) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Test: %s\n", tc.Name())
	steps := tc.Steps()
	if len(steps) == 0 {
		b.WriteString("Verify the application behaves as the test name describes.")
		return b.String()
	}
	b.WriteString("Expected behavior, in order:\n")
	for i, step := range steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}
