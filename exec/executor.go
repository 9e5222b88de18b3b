// Package exec starts child processes with an explicit environment block.
// Production code uses RealExecutor, while tests inject a MockExecutor that
// records each call, including the environment it was handed.
package exec

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
)

// CommandExecutor runs a command attached to this process's stdin, stdout
// and stderr, and waits for it.
//
// env is the complete environment of the child, in os.Environ form. A nil env
// gives the child the current process environment.
type CommandExecutor interface {
	Attach(ctx context.Context, dir string, env []string, name string, args ...string) error
}

// RealExecutor executes commands using os/exec.
type RealExecutor struct{}

// NewRealExecutor returns a new RealExecutor.
func NewRealExecutor() *RealExecutor {
	return &RealExecutor{}
}

// Attach executes a command on the current stdio and waits for it.
func (e *RealExecutor) Attach(ctx context.Context, dir string, env []string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// ExitCode returns the status a command exited with: 0 for a nil error, the
// child's status when err carries one, and 1 otherwise (including children
// killed by a signal).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		if code := coder.ExitCode(); code >= 0 {
			return code
		}
	}
	return 1
}

// MockResponse is the result of a mocked command.
type MockResponse struct {
	Err error
}

// CommandMatcher reports whether a command matches a rule.
type CommandMatcher func(dir, name string, args []string) bool

type mockRule struct {
	match    CommandMatcher
	response MockResponse
}

// MockExecutor answers commands from registered rules, first match wins, and
// records every call. Unmatched commands succeed.
type MockExecutor struct {
	mu    sync.Mutex
	rules []mockRule
	calls []MockCall
}

// MockCall records a command invocation for verification.
type MockCall struct {
	Dir  string
	Env  []string
	Name string
	Args []string
}

// Getenv returns the value of key in the recorded environment.
func (c MockCall) Getenv(key string) (string, bool) {
	prefix := key + "="
	for i := len(c.Env) - 1; i >= 0; i-- {
		if v, ok := strings.CutPrefix(c.Env[i], prefix); ok {
			return v, true
		}
	}
	return "", false
}

// NewMockExecutor creates a MockExecutor with no rules.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{}
}

// AddRule adds a matching rule with its response.
func (e *MockExecutor) AddRule(match CommandMatcher, response MockResponse) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, mockRule{match: match, response: response})
}

// AddExactMatch adds a rule that matches a specific command exactly.
func (e *MockExecutor) AddExactMatch(name string, args []string, response MockResponse) {
	e.AddRule(func(_, n string, a []string) bool {
		return n == name && slices.Equal(a, args)
	}, response)
}

// AddPrefixMatch adds a rule that matches commands starting with specific args.
func (e *MockExecutor) AddPrefixMatch(name string, prefixArgs []string, response MockResponse) {
	e.AddRule(func(_, n string, a []string) bool {
		return n == name && len(a) >= len(prefixArgs) && slices.Equal(a[:len(prefixArgs)], prefixArgs)
	}, response)
}

// GetCalls returns all recorded command invocations.
func (e *MockExecutor) GetCalls() []MockCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.calls)
}

// Attach records the call and returns the first matching rule's error.
func (e *MockExecutor) Attach(_ context.Context, dir string, env []string, name string, args ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, MockCall{
		Dir:  dir,
		Env:  slices.Clone(env),
		Name: name,
		Args: slices.Clone(args),
	})
	for _, r := range e.rules {
		if r.match(dir, name, args) {
			return r.response.Err
		}
	}
	return nil
}

var (
	_ CommandExecutor = (*RealExecutor)(nil)
	_ CommandExecutor = (*MockExecutor)(nil)
)
