// Package logger holds the process-wide structured logger.
//
// Every redo process writes its diagnostics to stderr, where they interleave
// with the output of the rest of the invocation tree. Lines are prefixed with
// "redo" (and the pid when debug_pids is on) and indented by the session
// depth so nested builds read as a tree.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/zhubert/redo-core/optbool"
	"golang.org/x/term"
)

var (
	root     *slog.Logger
	levelVar = new(slog.LevelVar)
	logFile  *os.File
	mu       sync.Mutex
	logPath  string
	initDone bool
	settings Settings
)

// Settings control the console format. They normally come from the session.
type Settings struct {
	// Debug is the REDO_DEBUG level; any positive value enables debug output.
	Debug int
	// Depth is prepended to every message.
	Depth string
	// PIDs adds the process id to the prefix.
	PIDs bool
	// Color forces ANSI colors on or off; Auto checks whether stderr is a
	// terminal.
	Color optbool.OptionalBool
}

// SetDebug enables or disables debug level logging
func SetDebug(enabled bool) {
	if enabled {
		levelVar.Set(slog.LevelDebug)
	} else {
		levelVar.Set(slog.LevelInfo)
	}
}

// Configure rebuilds the root logger on stderr with the given settings.
// It replaces a logger set up by Init.
func Configure(s Settings) {
	mu.Lock()
	defer mu.Unlock()

	closeFile()
	settings = s
	SetDebug(s.Debug > 0)
	color := s.Color.UnwrapOrElse(func() bool {
		return term.IsTerminal(int(os.Stderr.Fd()))
	})
	root = slog.New(newConsoleHandler(os.Stderr, consoleOptions{
		Level: levelVar,
		Depth: s.Depth,
		PIDs:  s.PIDs,
		Color: color,
	}))
	initDone = true
}

// InitWriter sends plain (uncolored) console output to w. Must be called
// before logging. Intended for tests and for redirecting output.
func InitWriter(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	closeFile()
	root = slog.New(newConsoleHandler(w, consoleOptions{
		Level: levelVar,
		Depth: settings.Depth,
		PIDs:  settings.PIDs,
	}))
	initDone = true
}

// Init sends structured text logs to the file at path instead of stderr.
// Returns an error if the log file cannot be opened.
func Init(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if initDone && logPath == path {
		return nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	closeFile()
	logPath = path
	logFile = f
	root = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: levelVar}))
	initDone = true
	return nil
}

// ensureInit falls back to a console logger on stderr using the last
// settings. Caller must hold mu.
func ensureInit() {
	if initDone {
		return
	}
	root = slog.New(newConsoleHandler(os.Stderr, consoleOptions{
		Level: levelVar,
		Depth: settings.Depth,
		PIDs:  settings.PIDs,
	}))
	initDone = true
}

// closeFile closes the log file opened by Init, if any. Caller must hold mu.
func closeFile() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	logPath = ""
}

// Get returns the root logger instance.
func Get() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	ensureInit()
	return root
}

// WithComponent returns a logger with the component name attached.
//
// Example:
//
//	log := logger.WithComponent("session")
//	log.Debug("links dir created", "path", dir)
//	// Output: redo links dir created component=session path=/tmp/redo-links-123
func WithComponent(component string) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	ensureInit()
	return root.With("component", component)
}

// WithTarget returns a logger with the target being built attached.
func WithTarget(target string) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	ensureInit()
	return root.With("target", target)
}

// Close closes the log file, if any.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	closeFile()
	root = nil
	initDone = false
}

// Reset resets the logger state, allowing reinitialization.
// This is primarily for testing purposes.
func Reset() {
	mu.Lock()
	defer mu.Unlock()

	closeFile()
	initDone = false
	root = nil
	settings = Settings{}
	levelVar = new(slog.LevelVar)
}
