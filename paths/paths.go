// Package paths resolves the project root ("base directory") of a redo
// invocation tree.
//
// The base directory is the directory that contains, or should contain, the
// .redo state directory. It is computed once by the first process of a tree
// and passed to every descendant through REDO_BASE:
//
//  1. Take the parent directory of every target (or of "all" when none are
//     given), made absolute against the current directory.
//  2. Find the longest common ancestor of those parents and the current
//     directory.
//  3. Walk upwards from that ancestor; the first directory containing a
//     .redo entry is the base.
//  4. If no such directory exists, the common ancestor itself is the base.
//
// Descendants never recompute the base, even when run from another
// directory: they read it from the environment.
package paths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/zhubert/redo-core/env"
)

// MarkerDir is the name of the build-state directory that marks an
// initialized project root.
const MarkerDir = ".redo"

// Abs returns p joined to cwd when relative, lexically cleaned.
func Abs(cwd, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(cwd, p)
}

// CommonAncestor returns the longest common leading directory of the given
// absolute paths, compared component by component. It returns "" when given
// no paths.
func CommonAncestor(dirs ...string) string {
	if len(dirs) == 0 {
		return ""
	}
	common := splitPath(dirs[0])
	for _, d := range dirs[1:] {
		parts := splitPath(d)
		n := 0
		for n < len(common) && n < len(parts) && common[n] == parts[n] {
			n++
		}
		common = common[:n]
	}
	if len(common) == 0 {
		return string(filepath.Separator)
	}
	return string(filepath.Separator) + filepath.Join(common...)
}

func splitPath(p string) []string {
	p = filepath.Clean(p)
	var parts []string
	for _, c := range strings.Split(p, string(filepath.Separator)) {
		if c != "" {
			parts = append(parts, c)
		}
	}
	return parts
}

// FindMarker walks from dir towards the filesystem root and returns the
// first directory that has a MarkerDir entry.
func FindMarker(dir string) (string, bool) {
	for {
		if _, err := os.Stat(filepath.Join(dir, MarkerDir)); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// FindBase computes the base directory for targets built from cwd, which
// must be absolute. An empty targets slice means AllTarget.
func FindBase(cwd string, targets []Target) (string, error) {
	if len(targets) == 0 {
		targets = []Target{AllTarget}
	}
	dirs := make([]string, 0, len(targets)+1)
	for _, t := range targets {
		parent, ok := t.Parent()
		if !ok {
			return "", &InvalidTargetError{Target: string(t), Reason: "has no parent directory"}
		}
		dirs = append(dirs, Abs(cwd, parent))
	}
	dirs = append(dirs, cwd)

	ancestor := CommonAncestor(dirs...)
	if base, ok := FindMarker(ancestor); ok {
		return base, nil
	}
	return ancestor, nil
}

// EstablishBase runs FindBase and records the result in REDO_BASE and cwd in
// REDO_STARTDIR, unless REDO_BASE is already set by an ancestor process.
// It reports whether it wrote anything.
func EstablishBase(e env.Environ, cwd string, targets []Target) (bool, error) {
	if env.GetBool(e, env.Base) {
		return false, nil
	}
	base, err := FindBase(cwd, targets)
	if err != nil {
		return false, err
	}
	if err := env.SetOnce(e, env.Base, base); err != nil {
		return false, err
	}
	if err := e.Set(env.StartDir, cwd); err != nil {
		return false, err
	}
	return true, nil
}
