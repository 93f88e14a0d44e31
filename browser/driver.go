// ABOUTME: Driver abstracts the browser automation backend the tools execute against.
// ABOUTME: Actions are a closed vocabulary so recorded runs replay against any backend.

package browser

import "context"

// Action identifies one automation operation.
type Action string

const (
	ActionNavigate   Action = "navigate"
	ActionClick      Action = "click"
	ActionType       Action = "type"
	ActionPressKey   Action = "press_key"
	ActionScroll     Action = "scroll"
	ActionScreenshot Action = "screenshot"
	ActionWait       Action = "wait"
	ActionBash       Action = "bash"
)

// Driver executes automation actions against a live browser session.
type Driver interface {
	// Perform runs one action with its input and returns the textual
	// observation the model sees.
	Perform(ctx context.Context, action Action, input map[string]any) (string, error)

	// Screenshot captures the current viewport as encoded image bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// Close tears down the browser session.
	Close() error
}
