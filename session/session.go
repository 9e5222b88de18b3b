package session

import (
	"fmt"
	"strings"

	"github.com/zhubert/redo-core/env"
	"github.com/zhubert/redo-core/logger"
	"github.com/zhubert/redo-core/optbool"
	"github.com/zhubert/redo-core/paths"
)

// Session is the validated view of the REDO_* environment for one process.
type Session struct {
	env env.Environ

	isToplevel bool
	redo       string
	base       string
	pwd        string
	startdir   string
	target     paths.Target
	depth      string

	debug   int
	verbose int
	xtrace  int

	debugLocks  bool
	debugPids   bool
	keepGoing   bool
	shuffle     bool
	unlocked    bool
	noOOB       bool
	locksBroken bool

	log      optbool.OptionalBool
	logInode string
	color    optbool.OptionalBool
	pretty   optbool.OptionalBool

	runID WriteOnce[int64]

	linksDir *LinksDir
}

// Inherit reads an already established environment. REDO_UNLOCKED and
// REDO_NO_OOB apply to this process only: they are cleared in e once read.
func Inherit(e env.Environ) (*Session, error) {
	if !env.GetBool(e, env.Redo) {
		return nil, ErrNotInSession
	}

	target, err := paths.ParseTarget(env.GetString(e, env.Target))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", env.Target, err)
	}
	depth := env.GetString(e, env.Depth)
	if strings.ContainsFunc(depth, func(r rune) bool { return r != ' ' }) {
		return nil, &DepthError{Depth: depth}
	}

	s := &Session{
		env:         e,
		redo:        env.GetString(e, env.Redo),
		base:        env.GetString(e, env.Base),
		pwd:         env.GetString(e, env.Pwd),
		startdir:    env.GetString(e, env.StartDir),
		target:      target,
		depth:       depth,
		debug:       int(env.GetInt(e, env.Debug, 0)),
		verbose:     int(env.GetInt(e, env.Verbose, 0)),
		xtrace:      int(env.GetInt(e, env.XTrace, 0)),
		debugLocks:  env.GetBool(e, env.DebugLocks),
		debugPids:   env.GetBool(e, env.DebugPids),
		keepGoing:   env.GetBool(e, env.KeepGoing),
		shuffle:     env.GetBool(e, env.Shuffle),
		unlocked:    env.GetBool(e, env.Unlocked),
		noOOB:       env.GetBool(e, env.NoOOB),
		locksBroken: env.GetBool(e, env.LocksBroken),
		log:         optbool.FromInt(env.GetInt(e, env.Log, 1)),
		logInode:    env.GetString(e, env.LogInode),
		color:       optbool.FromInt(env.GetInt(e, env.Color, 0)),
		pretty:      optbool.FromInt(env.GetInt(e, env.Pretty, 0)),
	}
	if id := env.GetInt(e, env.RunID, 0); id != 0 {
		_ = s.runID.Set(id)
	}

	if err := e.Set(env.Unlocked, ""); err != nil {
		return nil, err
	}
	if err := e.Set(env.NoOOB, ""); err != nil {
		return nil, err
	}
	return s, nil
}

// IsToplevel reports whether this process started the invocation tree.
func (s *Session) IsToplevel() bool {
	return s.isToplevel
}

// Executable returns the value of REDO: the path of the redo binary that
// started the tree, or a placeholder for state-free sessions.
func (s *Session) Executable() string {
	return s.redo
}

// Base is the absolute path of the directory that contains (or should
// contain) the .redo directory.
func (s *Session) Base() string {
	return s.base
}

func (s *Session) Pwd() string {
	return s.pwd
}

// StartDir is the working directory of the process that started the tree.
func (s *Session) StartDir() string {
	return s.startdir
}

func (s *Session) Target() paths.Target {
	return s.target
}

// Depth is the log indent for this process, as a string of spaces.
func (s *Session) Depth() string {
	return s.depth
}

func (s *Session) Debug() int {
	return s.debug
}

func (s *Session) Verbose() int {
	return s.verbose
}

func (s *Session) XTrace() int {
	return s.xtrace
}

// DebugLocks reports whether to print messages about file locking.
func (s *Session) DebugLocks() bool {
	return s.debugLocks
}

func (s *Session) SetDebugLocks(v bool) {
	s.debugLocks = v
}

// DebugPids reports whether to print process ids in log messages.
func (s *Session) DebugPids() bool {
	return s.debugPids
}

func (s *Session) SetDebugPids(v bool) {
	s.debugPids = v
}

func (s *Session) KeepGoing() bool {
	return s.keepGoing
}

func (s *Session) Shuffle() bool {
	return s.shuffle
}

func (s *Session) IsUnlocked() bool {
	return s.unlocked
}

func (s *Session) NoOOB() bool {
	return s.noOOB
}

func (s *Session) LocksBroken() bool {
	return s.locksBroken
}

func (s *Session) Log() optbool.OptionalBool {
	return s.log
}

func (s *Session) LogInode() string {
	return s.logInode
}

func (s *Session) Color() optbool.OptionalBool {
	return s.color
}

func (s *Session) Pretty() optbool.OptionalBool {
	return s.pretty
}

// RunID returns the run identifier and whether one has been assigned.
func (s *Session) RunID() (int64, bool) {
	return s.runID.Get()
}

// LinksDir returns the helper symlink directory owned by this session, or ""
// if it owns none.
func (s *Session) LinksDir() string {
	if s.linksDir == nil {
		return ""
	}
	return s.linksDir.Path()
}

// MarkLocksBroken records that file locking does not work. redo-log cannot
// follow logs without working locks, so logging is forced off as well.
func (s *Session) MarkLocksBroken() error {
	if err := env.SetBool(s.env, env.LocksBroken, true); err != nil {
		return err
	}
	if err := env.SetInt(s.env, env.Log, optbool.Off.Int()); err != nil {
		return err
	}
	s.locksBroken = true
	s.log = optbool.Off
	return nil
}

// FillRunID exports the run identifier for this build to children, then
// records it; if the export fails the session stays without one. It panics
// if the session already has one, or if id is zero (which children would
// read as unset).
func (s *Session) FillRunID(id int64) error {
	if id == 0 {
		panic("session: run id must be non-zero")
	}
	if s.runID.IsSet() {
		panic("session: run id assigned twice")
	}
	if err := env.SetInt(s.env, env.RunID, id); err != nil {
		return err
	}
	if err := s.runID.Set(id); err != nil {
		panic(fmt.Sprintf("session: run id assigned twice: %v", err))
	}
	return nil
}

// Export writes every inheritable setting of s into dst. REDO_UNLOCKED and
// REDO_NO_OOB are written empty.
func (s *Session) Export(dst env.Environ) error {
	strs := []struct{ k, v string }{
		{env.Redo, s.redo},
		{env.Base, s.base},
		{env.Pwd, s.pwd},
		{env.StartDir, s.startdir},
		{env.Target, string(s.target)},
		{env.Depth, s.depth},
		{env.LogInode, s.logInode},
		{env.Unlocked, ""},
		{env.NoOOB, ""},
	}
	for _, kv := range strs {
		if err := dst.Set(kv.k, kv.v); err != nil {
			return err
		}
	}

	ints := []struct {
		k string
		v int64
	}{
		{env.Debug, int64(s.debug)},
		{env.Verbose, int64(s.verbose)},
		{env.XTrace, int64(s.xtrace)},
		{env.Log, s.log.Int()},
		{env.Color, s.color.Int()},
		{env.Pretty, s.pretty.Int()},
	}
	for _, kv := range ints {
		if err := env.SetInt(dst, kv.k, kv.v); err != nil {
			return err
		}
	}

	bools := []struct {
		k string
		v bool
	}{
		{env.DebugLocks, s.debugLocks},
		{env.DebugPids, s.debugPids},
		{env.KeepGoing, s.keepGoing},
		{env.Shuffle, s.shuffle},
		{env.LocksBroken, s.locksBroken},
	}
	for _, kv := range bools {
		if err := env.SetBool(dst, kv.k, kv.v); err != nil {
			return err
		}
	}

	if id, ok := s.runID.Get(); ok {
		return env.SetInt(dst, env.RunID, id)
	}
	return dst.Unset(env.RunID)
}

// Environ returns the environment block to hand to a child process.
func (s *Session) Environ() []string {
	return s.env.Environ()
}

// Child returns the environment for a child process that builds target from
// directory pwd, indented one level deeper than this process.
func (s *Session) Child(target paths.Target, pwd string) (*env.Map, error) {
	m := env.Snapshot(s.env)
	if err := s.Export(m); err != nil {
		return nil, err
	}
	if err := m.Set(env.Target, string(target)); err != nil {
		return nil, err
	}
	if err := m.Set(env.Pwd, pwd); err != nil {
		return nil, err
	}
	if err := m.Set(env.Depth, s.depth+"  "); err != nil {
		return nil, err
	}
	return m, nil
}

// LoggerSettings returns the console settings this session asks for.
func (s *Session) LoggerSettings() logger.Settings {
	return logger.Settings{
		Debug: s.debug,
		Depth: s.depth,
		PIDs:  s.debugPids,
		Color: s.color,
	}
}

// Close releases the helper links directory if this session owns one. It is
// safe to call more than once and on sessions that own nothing.
func (s *Session) Close() error {
	if s.linksDir == nil {
		return nil
	}
	err := s.linksDir.Remove()
	if err != nil {
		logger.WithComponent("session").Warn("failed to remove helper links", "path", s.linksDir.Path(), "error", err)
	}
	return err
}
