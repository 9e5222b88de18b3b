// Package env reads and writes the environment variables that carry a redo
// session from a parent process to its children.
//
// Production code uses the process environment (OS), while tests and
// spawn-time child environments use an in-memory Map. The read helpers are
// total: absent or malformed values fall back to defaults.
package env

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Variable names shared by every process in an invocation tree.
const (
	Redo        = "REDO"
	Base        = "REDO_BASE"
	Pwd         = "REDO_PWD"
	StartDir    = "REDO_STARTDIR"
	Target      = "REDO_TARGET"
	Depth       = "REDO_DEPTH"
	Debug       = "REDO_DEBUG"
	Verbose     = "REDO_VERBOSE"
	XTrace      = "REDO_XTRACE"
	DebugLocks  = "REDO_DEBUG_LOCKS"
	DebugPids   = "REDO_DEBUG_PIDS"
	KeepGoing   = "REDO_KEEP_GOING"
	Shuffle     = "REDO_SHUFFLE"
	Unlocked    = "REDO_UNLOCKED"
	NoOOB       = "REDO_NO_OOB"
	LocksBroken = "REDO_LOCKS_BROKEN"
	Log         = "REDO_LOG"
	LogInode    = "REDO_LOG_INODE"
	Color       = "REDO_COLOR"
	Pretty      = "REDO_PRETTY"
	RunID       = "REDO_RUNID"
	Path        = "PATH"
)

// NotDefined is the placeholder stored in REDO and REDO_BASE by sessions
// that never touch the state database.
const NotDefined = "NOT_DEFINED"

// ErrAlreadySet is returned by SetOnce when the key already holds a value.
var ErrAlreadySet = errors.New("environment variable already set")

// Environ is a mutable set of environment variables.
type Environ interface {
	// Lookup returns the value of key and whether it is present.
	Lookup(key string) (string, bool)

	// Set stores value under key.
	Set(key, value string) error

	// Unset removes key.
	Unset(key string) error

	// Environ returns the variables as "key=value" strings, suitable for
	// exec.Cmd.Env.
	Environ() []string
}

// GetInt parses key as a 64-bit integer. Absence or a parse failure yields def.
func GetInt(e Environ, key string, def int64) int64 {
	v, ok := e.Lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

// GetBool reports whether key is present and non-empty. The content of the
// value is not interpreted.
func GetBool(e Environ, key string) bool {
	v, ok := e.Lookup(key)
	return ok && v != ""
}

// GetString returns the raw value of key, or "" when unset.
func GetString(e Environ, key string) string {
	v, _ := e.Lookup(key)
	return v
}

// SetOnce stores value under key unless key already holds a non-empty value,
// in which case it returns ErrAlreadySet and leaves the environment alone.
func SetOnce(e Environ, key, value string) error {
	if GetBool(e, key) {
		return fmt.Errorf("%s: %w", key, ErrAlreadySet)
	}
	return e.Set(key, value)
}

// SetBool stores "1" for true and "" for false.
func SetBool(e Environ, key string, v bool) error {
	if v {
		return e.Set(key, "1")
	}
	return e.Set(key, "")
}

// SetInt stores n in decimal.
func SetInt(e Environ, key string, n int64) error {
	return e.Set(key, strconv.FormatInt(n, 10))
}

// PrependPath returns each of dirs followed by the list separator, then old.
func PrependPath(dirs []string, old string) string {
	var sb strings.Builder
	for _, d := range dirs {
		sb.WriteString(d)
		sb.WriteByte(os.PathListSeparator)
	}
	sb.WriteString(old)
	return sb.String()
}

// osEnviron is the process environment.
type osEnviron struct{}

// OS returns the process environment.
func OS() Environ {
	return osEnviron{}
}

func (osEnviron) Lookup(key string) (string, bool) { return os.LookupEnv(key) }
func (osEnviron) Set(key, value string) error      { return os.Setenv(key, value) }
func (osEnviron) Unset(key string) error           { return os.Unsetenv(key) }
func (osEnviron) Environ() []string                { return os.Environ() }

// Map is an in-memory environment. It is safe for concurrent use, and the
// zero value is an empty environment.
type Map struct {
	mu   sync.RWMutex
	vars map[string]string
}

// NewMap returns a Map holding the given key/value pairs. It panics on an odd
// number of arguments.
func NewMap(kv ...string) *Map {
	if len(kv)%2 != 0 {
		panic("env.NewMap: odd number of arguments")
	}
	m := &Map{vars: make(map[string]string, len(kv)/2)}
	for i := 0; i < len(kv); i += 2 {
		m.vars[kv[i]] = kv[i+1]
	}
	return m
}

// FromList parses "key=value" strings such as os.Environ() output. Entries
// without '=' are ignored; later duplicates win.
func FromList(list []string) *Map {
	m := &Map{vars: make(map[string]string, len(list))}
	for _, kv := range list {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		m.vars[k] = v
	}
	return m
}

// Snapshot copies all variables of e into a new Map.
func Snapshot(e Environ) *Map {
	return FromList(e.Environ())
}

func (m *Map) Lookup(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vars[key]
	return v, ok
}

func (m *Map) Set(key, value string) error {
	if key == "" || strings.ContainsAny(key, "=\x00") {
		return fmt.Errorf("invalid environment variable name %q", key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vars == nil {
		m.vars = make(map[string]string)
	}
	m.vars[key] = value
	return nil
}

func (m *Map) Unset(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vars, key)
	return nil
}

// Environ returns the variables sorted by key.
func (m *Map) Environ() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.vars))
	for k, v := range m.vars {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// Ensure implementations satisfy the interface.
var _ Environ = osEnviron{}
var _ Environ = (*Map)(nil)
