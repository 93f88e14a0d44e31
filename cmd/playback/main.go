// ABOUTME: CLI entrypoint for the playback test runner: discovery, execution, and cache maintenance.
// ABOUTME: Wires together the model client, tool registry, browser driver, history index, and reporter.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/2389-research/playback/browser"
	"github.com/2389-research/playback/cache"
	"github.com/2389-research/playback/history"
	"github.com/2389-research/playback/llm"
	"github.com/2389-research/playback/logging"
	"github.com/2389-research/playback/runner"
	"github.com/2389-research/playback/tools"
)

var version = "dev"

type cliConfig struct {
	configPath  string
	purgeCache  bool
	clearCache  bool
	maxAge      time.Duration
	noCache     bool
	trace       bool
	showVersion bool
}

func main() {
	_ = godotenv.Load()

	cfg := parseFlags()

	if cfg.showVersion {
		fmt.Printf("playback %s\n", version)
		os.Exit(0)
	}

	os.Exit(run(cfg))
}

func parseFlags() cliConfig {
	var cfg cliConfig

	fs := flag.NewFlagSet("playback", flag.ContinueOnError)
	fs.StringVar(&cfg.configPath, "config", "playback.yaml", "Path to the runner config file")
	fs.BoolVar(&cfg.purgeCache, "purge-cache", false, "Delete every durable cache file and exit")
	fs.BoolVar(&cfg.clearCache, "clear-cache", false, "Remove stale or invalid cache files and exit")
	fs.DurationVar(&cfg.maxAge, "max-age", 0, "Age threshold for -clear-cache (0 removes only invalid files)")
	fs.BoolVar(&cfg.noCache, "no-cache", false, "Run every test against the live model, ignoring the cache")
	fs.BoolVar(&cfg.trace, "trace", false, "Enable trace logging")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}
	return cfg
}

func run(cli cliConfig) int {
	logging.Initialize(cli.trace)

	cfg, err := runner.LoadConfig(cli.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "playback: %v\n", err)
		return 1
	}
	if cli.noCache {
		cfg.NoCache = true
	}

	if cli.purgeCache {
		if err := cache.PurgeAll(cfg.CacheDir); err != nil {
			fmt.Fprintf(os.Stderr, "playback: purging cache: %v\n", err)
			return 1
		}
		fmt.Println("cache purged")
		return 0
	}
	if cli.clearCache {
		if err := cache.Clear(cfg.CacheDir, cli.maxAge); err != nil {
			fmt.Fprintf(os.Stderr, "playback: clearing cache: %v\n", err)
			return 1
		}
		fmt.Println("cache cleared")
		return 0
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := buildClient(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "playback: %v\n", err)
		return 1
	}
	defer func() { _ = client.Close() }()

	registry := tools.NewRegistry()
	if err := tools.RegisterBuiltins(registry); err != nil {
		fmt.Fprintf(os.Stderr, "playback: %v\n", err)
		return 1
	}

	driver, err := browser.NewMCPDriver(ctx, cfg.Browser.Command, cfg.Browser.Args...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "playback: starting browser driver: %v\n", err)
		return 1
	}
	defer func() { _ = driver.Close() }()

	suite := runner.NewSuite()
	if err := runner.Discover(cfg.TestRoot, suite); err != nil {
		fmt.Fprintf(os.Stderr, "playback: discovering tests: %v\n", err)
		return 1
	}
	if suite.Len() == 0 {
		fmt.Fprintf(os.Stderr, "playback: no tests found under %s\n", cfg.TestRoot)
		return 1
	}
	logging.Infof("playback: discovered %d tests under %s", suite.Len(), cfg.TestRoot)

	opts := []runner.Option{runner.WithReporter(runner.NewConsoleReporter(os.Stdout))}
	if cfg.HistoryPath != "" {
		idx, err := history.Open(cfg.HistoryPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "playback: opening history: %v\n", err)
			return 1
		}
		defer func() { _ = idx.Close() }()
		opts = append(opts, runner.WithHistory(idx))
	}

	rn := runner.NewRunner(cfg, client, registry, driver, opts...)
	summary, err := rn.Run(ctx, suite)
	if err != nil {
		fmt.Fprintf(os.Stderr, "playback: %v\n", err)
		return 1
	}
	if summary.Failed > 0 {
		return 1
	}
	return 0
}

// buildClient assembles the model client with both provider adapters and the
// retry middleware. Adapter selection for a request follows its provider
// field; the config's provider is the default route.
func buildClient(cfg runner.Config) (*llm.Client, error) {
	var opts []llm.ClientOption

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		opts = append(opts, llm.WithProvider("anthropic", llm.NewAnthropicAdapter(key)))
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		opts = append(opts, llm.WithProvider("openai", llm.NewOpenAIAdapter(key)))
	}
	if len(opts) == 0 {
		return nil, fmt.Errorf("no provider API key set (ANTHROPIC_API_KEY or OPENAI_API_KEY)")
	}

	opts = append(opts,
		llm.WithDefaultProvider(cfg.Provider),
		llm.WithMiddleware(llm.RetryMiddleware(llm.DefaultRetryPolicy())),
	)
	return llm.NewClient(opts...), nil
}
