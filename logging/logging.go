// ABOUTME: Minimal leveled logging shared across the runner.
// ABOUTME: Trace output is gated; info and error always print.

package logging

import (
	"io"
	"log"
	"os"
	"sync"
)

type logger struct {
	traceEnabled bool
	out          *log.Logger
}

var (
	mu     sync.RWMutex
	global = &logger{out: log.New(os.Stderr, "", log.LstdFlags)}
)

// Initialize configures the process logger. trace enables Tracef output.
func Initialize(trace bool) {
	InitializeWithWriter(trace, os.Stderr)
}

// InitializeWithWriter configures the process logger with a custom writer.
func InitializeWithWriter(trace bool, w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	global = &logger{
		traceEnabled: trace,
		out:          log.New(w, "", log.LstdFlags),
	}
}

// Infof logs an informational message.
func Infof(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	global.out.Printf(format, args...)
}

// Errorf logs an error message.
func Errorf(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	global.out.Printf("ERROR: "+format, args...)
}

// Tracef logs a trace-level diagnostic, dropped unless tracing is enabled.
func Tracef(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if global.traceEnabled {
		global.out.Printf("TRACE: "+format, args...)
	}
}

// TraceEnabled reports whether trace output is on.
func TraceEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return global.traceEnabled
}
