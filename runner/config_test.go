// ABOUTME: Tests for runner configuration loading and validation.

package runner

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigAppliesDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "playback.yaml")
	doc := `provider: openai
model: gpt-4o-2024-11-20
testRoot: ./e2e
workers: 3
browser:
  command: node
  args: [mcp-server.js]
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Provider != "openai" || cfg.Model != "gpt-4o-2024-11-20" || cfg.Workers != 3 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.MaxSteps != DefaultConfig().MaxSteps {
		t.Errorf("MaxSteps default lost: %d", cfg.MaxSteps)
	}
	if cfg.Browser.Command != "node" {
		t.Errorf("browser command = %q", cfg.Browser.Command)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty provider", func(c *Config) { c.Provider = "" }},
		{"empty model", func(c *Config) { c.Model = "" }},
		{"zero maxSteps", func(c *Config) { c.MaxSteps = 0 }},
		{"negative workers", func(c *Config) { c.Workers = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tt.name)
			}
		})
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}
