package session

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// UnlockedHelper names the helper whose presence in a directory shows that
// the install layout already provides every helper command.
const UnlockedHelper = "redo-unlocked"

// Helpers lists the command names redo answers to. All of them are the same
// binary, which dispatches on the name it was invoked as.
var Helpers = []string{
	"redo",
	"redo-always",
	"redo-ifchange",
	"redo-ifcreate",
	"redo-log",
	"redo-ood",
	"redo-sources",
	"redo-stamp",
	"redo-targets",
	UnlockedHelper,
	"redo-whichdo",
}

// LinksDir is a temporary directory holding one symlink per helper name,
// all pointing at the redo executable.
type LinksDir struct {
	path string
	once sync.Once
	err  error
}

// newLinksDir creates the directory under parent ("" for the system temp
// directory) and populates it. On failure nothing is left behind.
func newLinksDir(parent, exe string) (*LinksDir, error) {
	dir, err := os.MkdirTemp(parent, "redo-links-")
	if err != nil {
		return nil, fmt.Errorf("creating helper links directory: %w", err)
	}
	d := &LinksDir{path: dir}
	for _, name := range Helpers {
		if err := os.Symlink(exe, filepath.Join(dir, name)); err != nil {
			d.Remove()
			return nil, fmt.Errorf("linking helper %s: %w", name, err)
		}
	}
	return d, nil
}

// Path returns the directory path.
func (d *LinksDir) Path() string {
	return d.path
}

// Remove deletes the directory and its links. Only the first call does any
// work; later calls return the first result.
func (d *LinksDir) Remove() error {
	d.once.Do(func() {
		d.err = os.RemoveAll(d.path)
	})
	return d.err
}

// searchDirs lists the directories to put on PATH for the given executable
// paths, in order: every <dir>/../lib/redo, every <dir>/../redo, then every
// <dir>. Duplicates are dropped. It also reports whether any candidate
// already contains UnlockedHelper.
func searchDirs(exes ...string) ([]string, bool) {
	parents := make([]string, 0, len(exes))
	for _, exe := range exes {
		parents = append(parents, filepath.Dir(exe))
	}
	sep := string(filepath.Separator)
	var candidates []string
	for _, p := range parents {
		candidates = append(candidates, p+sep+filepath.Join("..", "lib", "redo"))
	}
	for _, p := range parents {
		candidates = append(candidates, p+sep+filepath.Join("..", "redo"))
	}
	candidates = append(candidates, parents...)

	var dirs []string
	found := false
	for _, c := range candidates {
		if !found {
			if _, err := os.Stat(c + sep + UnlockedHelper); err == nil {
				found = true
			}
		}
		if !slices.Contains(dirs, c) {
			dirs = append(dirs, c)
		}
	}
	return dirs, found
}
