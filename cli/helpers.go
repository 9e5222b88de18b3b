// Package cli checks that the helper commands of a redo session can be found
// by the .do scripts it runs.
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zhubert/redo-core/session"
)

// ErrNotFound is returned by LookPath when no directory on the search path
// holds an executable of the given name.
var ErrNotFound = errors.New("executable file not found in search path")

// Helper represents one command name a .do script may invoke.
type Helper struct {
	Name        string // Command name (e.g., "redo-ifchange")
	Required    bool   // Whether .do scripts need it to declare dependencies
	Description string // Human-readable description
}

var descriptions = map[string]string{
	"redo":          "build targets unconditionally",
	"redo-always":   "mark the current target as always out of date",
	"redo-ifchange": "build and depend on targets",
	"redo-ifcreate": "depend on a file not existing",
	"redo-log":      "print build logs",
	"redo-ood":      "list out-of-date targets",
	"redo-sources":  "list source files",
	"redo-stamp":    "checksum the current target's output",
	"redo-targets":  "list known targets",
	"redo-unlocked": "build without taking target locks",
	"redo-whichdo":  "explain which .do file builds a target",
}

// Inspection commands are only run by people, never by .do scripts.
var optional = map[string]bool{
	"redo-log":     true,
	"redo-ood":     true,
	"redo-sources": true,
	"redo-targets": true,
	"redo-whichdo": true,
}

// DefaultHelpers returns every helper name a session exposes.
func DefaultHelpers() []Helper {
	helpers := make([]Helper, 0, len(session.Helpers))
	for _, name := range session.Helpers {
		helpers = append(helpers, Helper{
			Name:        name,
			Required:    !optional[name],
			Description: descriptions[name],
		})
	}
	return helpers
}

// CheckResult contains the result of checking a helper
type CheckResult struct {
	Helper Helper
	Found  bool
	Path   string // Path to the executable if found
	// Foreign is set when the helper resolves to a binary other than the
	// session's redo, e.g. another install earlier on PATH.
	Foreign bool
	Error   error
}

// LookPath searches the directories of pathList, a PATH-style list, for an
// executable named name. An empty list element means the current directory.
func LookPath(name, pathList string) (string, error) {
	for _, dir := range filepath.SplitList(pathList) {
		if dir == "" {
			dir = "."
		}
		path := filepath.Join(dir, name)
		if isExecutable(path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("%s: %w", name, ErrNotFound)
}

func isExecutable(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !fi.IsDir() && fi.Mode().Perm()&0111 != 0
}

// Check verifies that h resolves through pathList. When exe is not empty the
// resolved file must also be exe, after following symlinks.
func Check(h Helper, pathList, exe string) CheckResult {
	result := CheckResult{Helper: h}

	path, err := LookPath(h.Name, pathList)
	if err != nil {
		result.Error = fmt.Errorf("%s not found in PATH", h.Name)
		return result
	}

	result.Found = true
	result.Path = path

	if exe != "" && !sameFile(path, exe) {
		result.Foreign = true
		result.Error = fmt.Errorf("%s resolves to %s, not %s", h.Name, path, exe)
	}
	return result
}

func sameFile(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

// CheckAll verifies all helpers and returns results
func CheckAll(helpers []Helper, pathList, exe string) []CheckResult {
	results := make([]CheckResult, len(helpers))
	for i, h := range helpers {
		results[i] = Check(h, pathList, exe)
	}
	return results
}

// ValidateRequired returns nil if every required helper was found and
// resolves to the session's redo, otherwise an error describing what's wrong.
func ValidateRequired(results []CheckResult) error {
	var problems []string

	for _, r := range results {
		if !r.Helper.Required {
			continue
		}
		if !r.Found || r.Foreign {
			problems = append(problems, fmt.Sprintf("  - %s (%s): %v",
				r.Helper.Name, r.Helper.Description, r.Error))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("redo helpers not usable:\n%s", strings.Join(problems, "\n"))
	}

	return nil
}

// FormatCheckResults formats check results for display
func FormatCheckResults(results []CheckResult) string {
	var sb strings.Builder

	sb.WriteString("redo helpers:\n")
	for _, r := range results {
		status := "✓"
		switch {
		case r.Found && r.Foreign:
			status = "!"
		case !r.Found && r.Helper.Required:
			status = "✗"
		case !r.Found:
			status = "○"
		}

		fmt.Fprintf(&sb, "  %s %s", status, r.Helper.Name)
		switch {
		case r.Found:
			fmt.Fprintf(&sb, " (%s)", r.Path)
		case r.Helper.Required:
			sb.WriteString(" [REQUIRED]")
		default:
			sb.WriteString(" [optional]")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
