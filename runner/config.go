// ABOUTME: Runner configuration loaded from a YAML document with sensible defaults.
// ABOUTME: Validation catches the misconfigurations a run cannot recover from.

package runner

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BrowserConfig configures the MCP server subprocess that drives the browser.
type BrowserConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// Config holds runner settings.
type Config struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	TestRoot    string        `yaml:"testRoot"`
	CacheDir    string        `yaml:"cacheDir"`
	HistoryPath string        `yaml:"historyPath"`
	MaxSteps    int           `yaml:"maxSteps"`
	Workers     int           `yaml:"workers"`
	NoCache     bool          `yaml:"noCache"`
	Browser     BrowserConfig `yaml:"browser"`
}

// DefaultConfig returns a config with defaults applied.
func DefaultConfig() Config {
	return Config{
		Provider: "anthropic",
		Model:    "claude-sonnet-4-20250514",
		TestRoot: ".",
		CacheDir: ".playback-cache",
		MaxSteps: 25,
		Workers:  1,
		Browser: BrowserConfig{
			Command: "npx",
			Args:    []string{"@playwright/mcp@latest"},
		},
	}
}

// LoadConfig reads path into a Config over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	buf, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("runner: reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return cfg, fmt.Errorf("runner: parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the config for values no run can proceed with.
func (c Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("runner: config missing provider")
	}
	if c.Model == "" {
		return fmt.Errorf("runner: config missing model")
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("runner: maxSteps must be positive, got %d", c.MaxSteps)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("runner: workers must be positive, got %d", c.Workers)
	}
	return nil
}
