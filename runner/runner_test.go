// ABOUTME: End-to-end runner tests over a scripted provider adapter and a fake browser driver.
// ABOUTME: Covers commit-on-pass, discard-on-fail, full-run replay, and worker-pool isolation.

package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/2389-research/playback/browser"
	"github.com/2389-research/playback/cache"
	"github.com/2389-research/playback/llm"
	"github.com/2389-research/playback/tools"
)

// scriptedAdapter plays canned responses in order and counts invocations.
type scriptedAdapter struct {
	mu        sync.Mutex
	calls     int
	responses []*llm.Response
}

func (a *scriptedAdapter) Name() string { return "anthropic" }

func (a *scriptedAdapter) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	resp := a.responses[a.calls%len(a.responses)]
	a.calls++
	return resp, nil
}

func (a *scriptedAdapter) Close() error { return nil }

func (a *scriptedAdapter) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type recordingDriver struct {
	mu         sync.Mutex
	performed  []browser.Action
	screenshot []byte
}

func (d *recordingDriver) Perform(ctx context.Context, action browser.Action, input map[string]any) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.performed = append(d.performed, action)
	return "page loaded", nil
}

func (d *recordingDriver) Screenshot(ctx context.Context) ([]byte, error) {
	if d.screenshot != nil {
		return d.screenshot, nil
	}
	return []byte("png"), nil
}

func (d *recordingDriver) Close() error { return nil }

func (d *recordingDriver) actions() []browser.Action {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]browser.Action, len(d.performed))
	copy(out, d.performed)
	return out
}

func assistantText(text string) *llm.Response {
	return &llm.Response{
		ID:    "resp",
		Model: "claude-sonnet-4-20250514",
		Message: llm.Message{
			Role:    llm.RoleAssistant,
			Content: []llm.ContentPart{llm.TextPart(text)},
		},
		FinishReason: llm.FinishReason{Reason: llm.FinishStop},
		Usage:        llm.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}
}

func assistantToolCall(text, tool string, args map[string]any) *llm.Response {
	raw, _ := json.Marshal(args)
	resp := assistantText(text)
	resp.Message.Content = append(resp.Message.Content, llm.ToolCallPart("call_x", tool, raw))
	resp.FinishReason = llm.FinishReason{Reason: llm.FinishToolCalls}
	return resp
}

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.CacheDir = t.TempDir()
	cfg.Model = "claude-sonnet-4-20250514"
	cfg.MaxSteps = 10
	return cfg
}

func newRunnerUnderTest(t *testing.T, cfg Config, adapter *scriptedAdapter, driver browser.Driver) *Runner {
	t.Helper()
	client := llm.NewClient(
		llm.WithProvider("anthropic", adapter),
		llm.WithDefaultProvider("anthropic"),
	)
	registry := tools.NewRegistry()
	if err := tools.RegisterBuiltins(registry); err != nil {
		t.Fatal(err)
	}
	return NewRunner(cfg, client, registry, driver, WithReporter(NopReporter{}))
}

func singleCaseSuite(t *testing.T, tc *TestCase) *Suite {
	t.Helper()
	suite := NewSuite()
	if err := suite.Register(tc); err != nil {
		t.Fatal(err)
	}
	return suite
}

func TestPassingRunCommitsDurableCache(t *testing.T) {
	cfg := testConfig(t)
	adapter := &scriptedAdapter{responses: []*llm.Response{
		assistantToolCall("opening the login page", "computer", map[string]any{"action": "navigate", "url": "https://app.test/login"}),
		assistantText(`The dashboard is visible. {"result":"pass","reason":"dashboard loaded"}`),
	}}
	driver := &recordingDriver{}
	rn := newRunnerUnderTest(t, cfg, adapter, driver)

	tc := mustCase(t, CaseSpec{Name: "Login", FilePath: "/t.ts", Steps: []string{"log in", "see dashboard"}})
	summary, err := rn.Run(context.Background(), singleCaseSuite(t, tc))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if summary.Passed != 1 || summary.Failed != 0 {
		t.Fatalf("summary = %+v", summary)
	}

	// The durable document exists and holds both recorded decisions.
	durablePath := filepath.Join(cfg.CacheDir, tc.Identifier()+".json")
	if _, err := os.Stat(durablePath); err != nil {
		t.Fatalf("durable cache file missing: %v", err)
	}
	store := cache.NewFileStore(cfg.CacheDir, tc.Identifier())
	if got := len(store.Keys()); got != 2 {
		t.Errorf("durable entries = %d, want 2", got)
	}

	// The tool call reached the browser.
	actions := driver.actions()
	if len(actions) != 1 || actions[0] != browser.ActionNavigate {
		t.Errorf("driver actions = %v", actions)
	}
}

func TestFailingRunLeavesDurableUntouched(t *testing.T) {
	cfg := testConfig(t)
	adapter := &scriptedAdapter{responses: []*llm.Response{
		assistantToolCall("trying to click", "computer", map[string]any{"action": "click", "selector": "#missing"}),
		assistantText(`The element never appeared. {"result":"fail","reason":"element missing"}`),
	}}
	rn := newRunnerUnderTest(t, cfg, adapter, &recordingDriver{})

	tc := mustCase(t, CaseSpec{Name: "Broken", FilePath: "/b.ts"})
	summary, err := rn.Run(context.Background(), singleCaseSuite(t, tc))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	if _, err := os.Stat(filepath.Join(cfg.CacheDir, tc.Identifier()+".json")); !os.IsNotExist(err) {
		t.Errorf("failing run must not persist a cache file, stat err = %v", err)
	}
}

func TestRerunReplaysWithZeroModelCalls(t *testing.T) {
	cfg := testConfig(t)
	responses := []*llm.Response{
		assistantToolCall("navigate to the app", "computer", map[string]any{"action": "navigate", "url": "https://app.test"}),
		assistantText(`Done. {"result":"pass","reason":"ok"}`),
	}
	tc := mustCase(t, CaseSpec{Name: "Login", FilePath: "/t.ts", Steps: []string{"open app"}})

	// First run records.
	seed := &scriptedAdapter{responses: responses}
	firstDriver := &recordingDriver{}
	if _, err := newRunnerUnderTest(t, cfg, seed, firstDriver).Run(context.Background(), singleCaseSuite(t, tc)); err != nil {
		t.Fatal(err)
	}
	if seed.callCount() == 0 {
		t.Fatal("seed run should have invoked the model")
	}

	// Second run over the same cache dir replays the whole decision chain.
	replay := &scriptedAdapter{responses: responses}
	replayDriver := &recordingDriver{}
	summary, err := newRunnerUnderTest(t, cfg, replay, replayDriver).Run(context.Background(), singleCaseSuite(t, tc))
	if err != nil {
		t.Fatal(err)
	}
	if summary.Passed != 1 {
		t.Fatalf("replay summary = %+v", summary)
	}
	if got := replay.callCount(); got != 0 {
		t.Errorf("replay run invoked the model %d times, want 0", got)
	}

	// The recorded action sequence is reproduced against the browser.
	first := firstDriver.actions()
	second := replayDriver.actions()
	if len(second) != len(first) {
		t.Fatalf("replay actions = %v, recorded = %v", second, first)
	}
	for i := range first {
		if second[i] != first[i] {
			t.Fatalf("replay actions = %v, recorded = %v", second, first)
		}
	}
}

func TestDirectCaseRunsFunctionBody(t *testing.T) {
	cfg := testConfig(t)
	adapter := &scriptedAdapter{responses: []*llm.Response{assistantText("unused")}}
	driver := &recordingDriver{}
	rn := newRunnerUnderTest(t, cfg, adapter, driver)

	ran := false
	tc := mustCase(t, CaseSpec{
		Name:   "Direct",
		Direct: true,
		Func: func(ctx context.Context, d browser.Driver) error {
			ran = true
			_, err := d.Perform(ctx, browser.ActionNavigate, map[string]any{"url": "https://x.test"})
			return err
		},
	})
	summary, err := rn.Run(context.Background(), singleCaseSuite(t, tc))
	if err != nil {
		t.Fatal(err)
	}
	if !ran || summary.Passed != 1 {
		t.Errorf("ran = %v, summary = %+v", ran, summary)
	}
	if adapter.callCount() != 0 {
		t.Errorf("direct case must not invoke the model")
	}
}

func TestDefinitionOnlyToolFailsRunCleanly(t *testing.T) {
	cfg := testConfig(t)
	adapter := &scriptedAdapter{responses: []*llm.Response{
		assistantToolCall("checking the page", "noop", map[string]any{}),
	}}
	rn := newRunnerUnderTest(t, cfg, adapter, &recordingDriver{})

	// A registered tool is allowed to carry only a definition, with no
	// in-process execute handler.
	err := rn.registry.Register("custom:noop:v1", tools.Entry{
		Name:     "noop",
		Category: tools.CategoryCustom,
		Factory: func(browser.Driver) llm.Tool {
			return llm.Tool{ToolDefinition: llm.ToolDefinition{Name: "noop", Description: "declared only"}}
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	tc := mustCase(t, CaseSpec{Name: "Declared", FilePath: "/d.ts"})
	summary, runErr := rn.Run(context.Background(), singleCaseSuite(t, tc))
	if runErr != nil {
		t.Fatalf("Run error: %v", runErr)
	}
	if summary.Failed != 1 || summary.Passed != 0 {
		t.Fatalf("summary = %+v, want the single case failed", summary)
	}
	if _, err := os.Stat(filepath.Join(cfg.CacheDir, tc.Identifier()+".json")); !os.IsNotExist(err) {
		t.Errorf("failed run must not persist a cache file, stat err = %v", err)
	}
}

// captureReporter keeps the finished runs for inspection.
type captureReporter struct {
	mu   sync.Mutex
	runs []*TestRun
}

func (r *captureReporter) RunStarted(run *TestRun) {}

func (r *captureReporter) RunFinished(run *TestRun, stats cache.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
}

func (r *captureReporter) SuiteFinished(passed, failed int, elapsed time.Duration) {}

func encodeTestPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(255 - x*8)})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestScreenshotStepCarriesPerceptualHash(t *testing.T) {
	cfg := testConfig(t)
	adapter := &scriptedAdapter{responses: []*llm.Response{
		assistantToolCall("inspecting the page", "computer", map[string]any{"action": "screenshot"}),
		assistantText(`Looks right. {"result":"pass","reason":"layout matches"}`),
	}}
	driver := &recordingDriver{screenshot: encodeTestPNG(t)}
	reporter := &captureReporter{}
	rn := newRunnerUnderTest(t, cfg, adapter, driver)
	rn.reporter = reporter

	tc := mustCase(t, CaseSpec{Name: "Visual", FilePath: "/v.ts"})
	summary, err := rn.Run(context.Background(), singleCaseSuite(t, tc))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if summary.Passed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(reporter.runs) != 1 {
		t.Fatalf("finished runs = %d, want 1", len(reporter.runs))
	}

	var shot *cache.Step
	for _, step := range reporter.runs[0].Steps() {
		if step.Action != nil && step.Action.Input["action"] == "screenshot" {
			s := step
			shot = &s
			break
		}
	}
	if shot == nil {
		t.Fatal("no screenshot step recorded")
	}
	if shot.Extra == nil || shot.Extra.Kind != cache.ExtraScreenshot || shot.Extra.Screenshot == nil {
		t.Fatalf("screenshot step extra = %+v", shot.Extra)
	}
	if shot.Extra.Screenshot.Hash == 0 {
		t.Error("gradient screenshot should not hash to zero")
	}

	// The passing run persists the page state under the visual namespace.
	store := cache.NewFileStore(cfg.CacheDir, tc.Identifier())
	var visual int
	for _, key := range store.Keys() {
		if strings.HasPrefix(key, "visual:") {
			visual++
		}
	}
	if visual != 1 {
		t.Errorf("visual entries = %d, want 1 (keys %v)", visual, store.Keys())
	}
}

func TestHooksRunAroundCase(t *testing.T) {
	cfg := testConfig(t)
	adapter := &scriptedAdapter{responses: []*llm.Response{
		assistantText(`{"result":"pass","reason":"ok"}`),
	}}
	rn := newRunnerUnderTest(t, cfg, adapter, &recordingDriver{})

	var order []string
	tc := mustCase(t, CaseSpec{
		Name:   "Hooked",
		Before: func(ctx context.Context) error { order = append(order, "before"); return nil },
		After:  func(ctx context.Context) error { order = append(order, "after"); return nil },
	})
	if _, err := rn.Run(context.Background(), singleCaseSuite(t, tc)); err != nil {
		t.Fatal(err)
	}
	if len(order) != 2 || order[0] != "before" || order[1] != "after" {
		t.Errorf("hook order = %v", order)
	}
}

func TestWorkerPoolIsolatesDistinctTests(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workers = 4
	adapter := &scriptedAdapter{responses: []*llm.Response{
		assistantText(`{"result":"pass","reason":"ok"}`),
	}}
	rn := newRunnerUnderTest(t, cfg, adapter, &recordingDriver{})

	suite := NewSuite()
	var cases []*TestCase
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		tc := mustCase(t, CaseSpec{Name: name, FilePath: "/" + name + ".yaml"})
		cases = append(cases, tc)
		if err := suite.Register(tc); err != nil {
			t.Fatal(err)
		}
	}

	summary, err := rn.Run(context.Background(), suite)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Passed != len(cases) {
		t.Fatalf("summary = %+v, want %d passed", summary, len(cases))
	}

	// Every test got its own durable document; none cross-contaminated.
	for _, tc := range cases {
		store := cache.NewFileStore(cfg.CacheDir, tc.Identifier())
		keys := store.Keys()
		if len(keys) != 1 {
			t.Errorf("test %s durable entries = %d, want 1", tc.Name(), len(keys))
			continue
		}
		entry, _ := store.Get(keys[0])
		if entry.Test.Name != tc.Name() {
			t.Errorf("store for %s holds entry owned by %s", tc.Name(), entry.Test.Name)
		}
	}
}
