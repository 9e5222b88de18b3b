package paths

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Target is a validated target path as named on the command line or in
// REDO_TARGET. It is usually relative to the directory of the .do script
// building it.
type Target string

// AllTarget is used when no targets are named.
const AllTarget Target = "all"

// InvalidTargetError reports a target that cannot be used, either because it
// fails validation or because it has no parent directory.
type InvalidTargetError struct {
	Target string
	Reason string
}

func (e *InvalidTargetError) Error() string {
	return fmt.Sprintf("invalid target %q: %s", e.Target, e.Reason)
}

// ParseTarget validates s. The empty string is a valid (unset) target.
func ParseTarget(s string) (Target, error) {
	if !utf8.ValidString(s) {
		return "", &InvalidTargetError{Target: s, Reason: "not valid UTF-8"}
	}
	if strings.ContainsRune(s, 0) {
		return "", &InvalidTargetError{Target: s, Reason: "contains NUL byte"}
	}
	return Target(s), nil
}

// ParseTargets validates every element of args.
func ParseTargets(args []string) ([]Target, error) {
	targets := make([]Target, 0, len(args))
	for _, a := range args {
		t, err := ParseTarget(a)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func (t Target) String() string {
	return string(t)
}

// Parent returns the directory part of t. Unlike filepath.Dir, a bare name
// has the parent "" and the root and the empty path have no parent at all:
//
//	"a/b/out" -> "a/b"
//	"out"     -> ""
//	"/out"    -> "/"
//	"/", ""   -> no parent
func (t Target) Parent() (string, bool) {
	s := strings.TrimRight(string(t), "/")
	if s == "" {
		return "", false
	}
	i := strings.LastIndexByte(s, '/')
	if i < 0 {
		return "", true
	}
	parent := strings.TrimRight(s[:i], "/")
	if parent == "" {
		return "/", true
	}
	return parent, true
}
