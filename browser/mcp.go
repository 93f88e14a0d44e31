// ABOUTME: MCPDriver runs browser actions through a Playwright MCP server over stdio.
// ABOUTME: Each Action maps to one MCP tool call with translated argument names.

package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/2389-research/playback/logging"
)

// actionTools maps driver actions to Playwright MCP tool names.
var actionTools = map[Action]string{
	ActionNavigate:   "browser_navigate",
	ActionClick:      "browser_click",
	ActionType:       "browser_type",
	ActionPressKey:   "browser_press_key",
	ActionScroll:     "browser_scroll",
	ActionScreenshot: "browser_take_screenshot",
	ActionWait:       "browser_wait_for",
	ActionBash:       "browser_evaluate",
}

// MCPDriver drives a browser through an MCP server subprocess.
type MCPDriver struct {
	client *client.Client
}

// NewMCPDriver launches the MCP server command, initializes the session, and
// returns a driver bound to it.
func NewMCPDriver(ctx context.Context, command string, args ...string) (*MCPDriver, error) {
	stdioTransport := transport.NewStdio(command, nil, args...)
	c := client.NewClient(stdioTransport)

	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting mcp client: %w", err)
	}

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "playback",
		Version: "1.0.0",
	}

	serverInfo, err := c.Initialize(ctx, initRequest)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("initializing mcp session: %w", err)
	}
	if serverInfo.Capabilities.Tools == nil {
		c.Close()
		return nil, fmt.Errorf("mcp server %s does not expose tools", serverInfo.ServerInfo.Name)
	}
	logging.Tracef("browser: connected to mcp server %s %s", serverInfo.ServerInfo.Name, serverInfo.ServerInfo.Version)

	return &MCPDriver{client: c}, nil
}

// Perform executes one action and returns the server's textual observation.
func (d *MCPDriver) Perform(ctx context.Context, action Action, input map[string]any) (string, error) {
	toolName, ok := actionTools[action]
	if !ok {
		return "", fmt.Errorf("unsupported browser action %q", action)
	}

	request := mcp.CallToolRequest{}
	request.Params.Name = toolName
	request.Params.Arguments = translateArguments(action, input)

	result, err := d.client.CallTool(ctx, request)
	if err != nil {
		return "", fmt.Errorf("mcp tool %s: %w", toolName, err)
	}
	text := contentText(result)
	if result.IsError {
		return "", fmt.Errorf("mcp tool %s failed: %s", toolName, text)
	}
	return text, nil
}

// Screenshot captures the viewport and returns decoded image bytes.
func (d *MCPDriver) Screenshot(ctx context.Context) ([]byte, error) {
	request := mcp.CallToolRequest{}
	request.Params.Name = actionTools[ActionScreenshot]
	request.Params.Arguments = map[string]any{"raw": false}

	result, err := d.client.CallTool(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("mcp screenshot: %w", err)
	}
	if result.IsError {
		return nil, fmt.Errorf("mcp screenshot failed: %s", contentText(result))
	}
	for _, content := range result.Content {
		image, ok := content.(mcp.ImageContent)
		if !ok {
			continue
		}
		buf, err := base64.StdEncoding.DecodeString(image.Data)
		if err != nil {
			return nil, fmt.Errorf("decoding screenshot payload: %w", err)
		}
		return buf, nil
	}
	return nil, fmt.Errorf("mcp screenshot returned no image content")
}

// Close shuts down the MCP subprocess.
func (d *MCPDriver) Close() error {
	return d.client.Close()
}

// translateArguments renames driver inputs to the Playwright MCP parameter
// names where they differ.
func translateArguments(action Action, input map[string]any) map[string]any {
	args := make(map[string]any, len(input))
	for k, v := range input {
		args[k] = v
	}
	switch action {
	case ActionClick:
		if selector, ok := args["selector"]; ok {
			args["element"] = selector
			delete(args, "selector")
		}
	case ActionType:
		if selector, ok := args["selector"]; ok {
			args["element"] = selector
			delete(args, "selector")
		}
	case ActionWait:
		if seconds, ok := args["seconds"]; ok {
			args["time"] = seconds
			delete(args, "seconds")
		}
	case ActionBash:
		if command, ok := args["command"]; ok {
			args["function"] = command
			delete(args, "command")
		}
	}
	return args
}

func contentText(result *mcp.CallToolResult) string {
	var parts []string
	for _, content := range result.Content {
		if text, ok := content.(mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}
