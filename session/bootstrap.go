package session

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zhubert/redo-core/env"
	"github.com/zhubert/redo-core/logger"
	"github.com/zhubert/redo-core/paths"
)

// Options replaces the process facilities Init uses. The zero value uses the
// real process.
type Options struct {
	// Environ is read and written instead of the process environment.
	Environ env.Environ
	// Executable returns the path of the running redo binary.
	Executable func() (string, error)
	// Getwd returns the current directory.
	Getwd func() (string, error)
	// TempDir is the parent of the helper links directory; "" means the
	// system temp directory.
	TempDir string
}

func (o Options) withDefaults() Options {
	if o.Environ == nil {
		o.Environ = env.OS()
	}
	if o.Executable == nil {
		o.Executable = os.Executable
	}
	if o.Getwd == nil {
		o.Getwd = os.Getwd
	}
	return o
}

// Init starts a session, if needed, for a command that uses the state
// database, then decodes it. targets are the targets named on the command
// line; they only matter to the first process of the tree, which uses them
// to find the base directory.
//
// The returned session must be closed.
func Init(opts Options, targets ...paths.Target) (_ *Session, err error) {
	opts = opts.withDefaults()
	e := opts.Environ
	log := logger.WithComponent("session")

	isToplevel := false
	var links *LinksDir
	var restore []func()
	defer func() {
		if err == nil {
			return
		}
		for _, undo := range restore {
			undo()
		}
		if links != nil {
			links.Remove()
		}
	}()

	if !env.GetBool(e, env.Redo) {
		isToplevel = true
		restore = append(restore, saveVar(e, env.Path), saveVar(e, env.Redo))
		exe, err := opts.Executable()
		if err != nil {
			return nil, fmt.Errorf("locating redo executable: %w", err)
		}
		realExe, err := filepath.EvalSymlinks(exe)
		if err != nil {
			return nil, fmt.Errorf("resolving redo executable %s: %w", exe, err)
		}

		dirs, haveHelpers := searchDirs(exe, realExe)
		if !haveHelpers {
			links, err = newLinksDir(opts.TempDir, exe)
			if err != nil {
				return nil, err
			}
			dirs = append(dirs, links.Path())
			log.Debug("created helper links", "path", links.Path())
		}

		newPath := env.PrependPath(dirs, env.GetString(e, env.Path))
		if err := e.Set(env.Path, newPath); err != nil {
			return nil, err
		}
		if err := e.Set(env.Redo, exe); err != nil {
			return nil, err
		}
		log.Debug("started invocation tree", "exe", exe, "search", dirs)
	}

	if !env.GetBool(e, env.Base) {
		cwd, err := opts.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		if _, err := paths.EstablishBase(e, cwd, targets); err != nil {
			return nil, err
		}
		log.Debug("resolved base directory", "base", env.GetString(e, env.Base), "startdir", cwd)
	}

	s, err := Inherit(e)
	if err != nil {
		return nil, err
	}
	s.isToplevel = isToplevel
	s.linksDir = links
	return s, nil
}

// saveVar returns a func that puts key back the way it is now.
func saveVar(e env.Environ, key string) func() {
	old, ok := e.Lookup(key)
	return func() {
		if ok {
			e.Set(key, old)
		} else {
			e.Unset(key)
		}
	}
}

// InitNoState starts a session, if needed, for a command that never uses
// the state database, then decodes it.
func InitNoState(opts Options) (*Session, error) {
	opts = opts.withDefaults()
	e := opts.Environ

	isToplevel := false
	if !env.GetBool(e, env.Redo) {
		if err := e.Set(env.Redo, env.NotDefined); err != nil {
			return nil, err
		}
		isToplevel = true
	}
	if !env.GetBool(e, env.Base) {
		if err := e.Set(env.Base, env.NotDefined); err != nil {
			return nil, err
		}
	}

	s, err := Inherit(e)
	if err != nil {
		return nil, err
	}
	s.isToplevel = isToplevel
	return s, nil
}
