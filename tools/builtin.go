// ABOUTME: Built-in computer and bash tool factories bound to a browser automation driver.
// ABOUTME: RegisterBuiltins seeds the registry with one entry per provider/family/version row.

package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/2389-research/playback/browser"
	"github.com/2389-research/playback/llm"
)

var computerToolSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "action": {
      "type": "string",
      "enum": ["navigate", "click", "type", "press_key", "scroll", "screenshot", "wait"],
      "description": "The browser action to perform"
    },
    "url": {"type": "string", "description": "Target URL for navigate"},
    "selector": {"type": "string", "description": "CSS selector for element actions"},
    "text": {"type": "string", "description": "Text to type"},
    "key": {"type": "string", "description": "Key name for press_key"},
    "direction": {"type": "string", "enum": ["up", "down"], "description": "Scroll direction"},
    "seconds": {"type": "number", "description": "Duration for wait"}
  },
  "required": ["action"]
}`)

var bashToolSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "command": {"type": "string", "description": "Shell command to run"}
  },
  "required": ["command"]
}`)

// ComputerTool builds the browser-control tool. Every invocation is routed
// through the automation driver; a screenshot action returns the capture as a
// base64 payload from the driver.
func ComputerTool(driver browser.Driver) llm.Tool {
	return llm.Tool{
		ToolDefinition: llm.ToolDefinition{
			Name:        "computer",
			Description: "Control the browser: navigate, click, type, press keys, scroll, wait, and capture screenshots.",
			Parameters:  computerToolSchema,
		},
		Execute: func(ctx context.Context, args json.RawMessage) (string, error) {
			if driver == nil {
				return "", fmt.Errorf("computer tool invoked without an automation driver")
			}
			var input struct {
				Action string `json:"action"`
			}
			if err := json.Unmarshal(args, &input); err != nil {
				return "", fmt.Errorf("computer tool arguments: %w", err)
			}
			if input.Action == string(browser.ActionScreenshot) {
				buf, err := driver.Screenshot(ctx)
				if err != nil {
					return "", err
				}
				return string(buf), nil
			}
			var full map[string]any
			if err := json.Unmarshal(args, &full); err != nil {
				return "", fmt.Errorf("computer tool arguments: %w", err)
			}
			delete(full, "action")
			return driver.Perform(ctx, browser.Action(input.Action), full)
		},
	}
}

// BashTool builds the shell tool. Commands run through the driver so replay
// and live runs share a single execution path.
func BashTool(driver browser.Driver) llm.Tool {
	return llm.Tool{
		ToolDefinition: llm.ToolDefinition{
			Name:        "bash",
			Description: "Run a shell command in the test environment and return its output.",
			Parameters:  bashToolSchema,
		},
		Execute: func(ctx context.Context, args json.RawMessage) (string, error) {
			if driver == nil {
				return "", fmt.Errorf("bash tool invoked without an automation driver")
			}
			var input struct {
				Command string `json:"command"`
			}
			if err := json.Unmarshal(args, &input); err != nil {
				return "", fmt.Errorf("bash tool arguments: %w", err)
			}
			return driver.Perform(ctx, browser.ActionBash, map[string]any{"command": input.Command})
		},
	}
}

// RegisterBuiltins registers a computer and bash entry for every
// provider/family/version row in the resolution tables. Distinct families
// sharing a version string collapse to one registry key, so registration
// tracks seen keys rather than erroring on the overlap.
func RegisterBuiltins(registry *Registry) error {
	seen := make(map[string]struct{})
	for provider, families := range toolVersions {
		for _, types := range families {
			for toolType, version := range types {
				key := RegistryKey(provider, toolType, version)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}

				factory := ComputerTool
				if toolType == TypeBash {
					factory = BashTool
				}
				err := registry.Register(key, Entry{
					Name:     toolType,
					Category: CategoryProvider,
					Factory:  factory,
				})
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}
