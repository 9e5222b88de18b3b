// redo-env bootstraps a redo session the way the redo front end does, then
// either prints what every process in the tree would decode or runs a command
// inside the session.
//
//	redo-env [flags] [target...]
//	redo-env [flags] [target...] -- command [arg...]
//
// The first form prints the session as YAML. The second runs command with the
// session environment and exits with its status, so a .do script can be
// exercised by hand: redo-env -d -- sh default.o.do a a.o tmp
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/zhubert/redo-core/cli"
	"github.com/zhubert/redo-core/config"
	"github.com/zhubert/redo-core/env"
	"github.com/zhubert/redo-core/exec"
	"github.com/zhubert/redo-core/logger"
	"github.com/zhubert/redo-core/optbool"
	"github.com/zhubert/redo-core/paths"
	"github.com/zhubert/redo-core/session"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(runMain())
}

func runMain() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{
		env:             env.OS(),
		stdout:          os.Stdout,
		stderr:          os.Stderr,
		executor:        exec.NewRealExecutor(),
		configureLogger: logger.Configure,
	}
	return a.run(ctx, os.Args[1:])
}

// app carries the process facilities run uses, so tests can replace them.
type app struct {
	env             env.Environ
	stdout          io.Writer
	stderr          io.Writer
	executor        exec.CommandExecutor
	configureLogger func(logger.Settings)
	sessionOpts     session.Options
}

// usageError marks errors caused by the command line.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

type flags struct {
	debug, verbose, xtrace int
	keepGoing, shuffle     bool
	debugLocks, debugPids  bool
	unlocked, noOOB        bool
	log, color, pretty     optbool.OptionalBool

	noState     bool
	optionsFile string
	check       bool
	runID       bool
	help        bool
}

func newFlagSet(f *flags) *pflag.FlagSet {
	fs := pflag.NewFlagSet("redo-env", pflag.ContinueOnError)
	fs.CountVarP(&f.debug, "debug", "d", "print dependency checks as they happen (repeat for more)")
	fs.CountVarP(&f.verbose, "verbose", "v", "print commands as they are read from .do files (repeat for more)")
	fs.CountVarP(&f.xtrace, "xtrace", "x", "print commands as they are executed (repeat for more)")
	fs.BoolVarP(&f.keepGoing, "keep-going", "k", false, "keep going as long as possible even if some targets fail")
	fs.BoolVar(&f.shuffle, "shuffle", false, "randomize the build order to find dependency bugs")
	fs.BoolVar(&f.debugLocks, "debug-locks", false, "print messages about file locking")
	fs.BoolVar(&f.debugPids, "debug-pids", false, "print process ids in log messages")
	fs.BoolVar(&f.unlocked, "unlocked", false, "build without taking target locks (this process only)")
	fs.BoolVar(&f.noOOB, "no-oob", false, "disable out-of-band dependency checks (this process only)")

	for _, tri := range []struct {
		v     *optbool.OptionalBool
		name  string
		usage string
	}{
		{&f.log, "log", "capture build output for redo-log"},
		{&f.color, "color", "colorize log messages"},
		{&f.pretty, "pretty", "print pretty build progress"},
	} {
		fl := fs.VarPF(tri.v, tri.name, "", tri.usage+" (true, false or auto)")
		fl.NoOptDefVal = "true"
	}

	fs.BoolVar(&f.noState, "no-state", false, "start a session that never touches the state database")
	fs.StringVar(&f.optionsFile, "options", "", "read default flag values from this YAML file")
	fs.BoolVar(&f.check, "check", false, "verify that every helper command resolves through PATH")
	fs.BoolVar(&f.runID, "runid", false, "assign a run id if the session has none")
	fs.BoolVarP(&f.help, "help", "h", false, "show help")
	return fs
}

// overlay returns the settings given on the command line.
func (f *flags) overlay(fs *pflag.FlagSet) *config.Config {
	cfg := &config.Config{}
	set := func(name string, fn func()) {
		if fs.Changed(name) {
			fn()
		}
	}
	set("debug", func() { cfg.Debug = &f.debug })
	set("verbose", func() { cfg.Verbose = &f.verbose })
	set("xtrace", func() { cfg.XTrace = &f.xtrace })
	set("keep-going", func() { cfg.KeepGoing = &f.keepGoing })
	set("shuffle", func() { cfg.Shuffle = &f.shuffle })
	set("debug-locks", func() { cfg.DebugLocks = &f.debugLocks })
	set("debug-pids", func() { cfg.DebugPids = &f.debugPids })
	set("unlocked", func() { cfg.Unlocked = &f.unlocked })
	set("no-oob", func() { cfg.NoOOB = &f.noOOB })
	set("log", func() { cfg.Log = &f.log })
	set("color", func() { cfg.Color = &f.color })
	set("pretty", func() { cfg.Pretty = &f.pretty })
	return cfg
}

func (a *app) run(ctx context.Context, args []string) int {
	err := a.runE(ctx, args)
	if err == nil {
		return exitOK
	}

	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return exec.ExitCode(err)
	}
	fmt.Fprintf(a.stderr, "redo-env: %v\n", err)
	var ue usageError
	if errors.As(err, &ue) {
		return exitUsage
	}
	return exitError
}

func (a *app) runE(ctx context.Context, args []string) error {
	var f flags
	fs := newFlagSet(&f)
	fs.SetOutput(io.Discard)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(a.stdout, fs)
			return nil
		}
		return usageError{err}
	}
	if f.help {
		printHelp(a.stdout, fs)
		return nil
	}

	rest := fs.Args()
	targetArgs, command := rest, []string(nil)
	if dash := fs.ArgsLenAtDash(); dash >= 0 {
		targetArgs, command = rest[:dash], rest[dash:]
		if len(command) == 0 {
			return usagef("no command after --")
		}
	}
	targets, err := paths.ParseTargets(targetArgs)
	if err != nil {
		return usageError{err}
	}

	var fileCfg *config.Config
	if f.optionsFile != "" {
		fileCfg, err = config.Load(f.optionsFile)
		if err != nil {
			return err
		}
		if fileCfg == nil {
			return usagef("options file %s does not exist", f.optionsFile)
		}
	}
	cfg := config.Merge(f.overlay(fs), fileCfg)
	if errs := config.Validate(cfg); len(errs) > 0 {
		return usageError{errs[0]}
	}
	if err := cfg.Apply(a.env); err != nil {
		return err
	}

	// Bootstrap runs before the console is configured; honour an inherited
	// debug level for its messages.
	logger.SetDebug(env.GetInt(a.env, env.Debug, 0) > 0)

	opts := a.sessionOpts
	opts.Environ = a.env
	var sess *session.Session
	if f.noState {
		sess, err = session.InitNoState(opts)
	} else {
		sess, err = session.Init(opts, targets...)
	}
	if err != nil {
		return err
	}
	defer sess.Close()

	a.configureLogger(sess.LoggerSettings())
	log := logger.WithComponent("redo-env")
	if t := sess.Target(); t != "" {
		log = logger.WithTarget(t.String()).With("component", "redo-env")
	}
	log.Debug("session ready", "toplevel", sess.IsToplevel(), "base", sess.Base(), "depth", len(sess.Depth()))

	if f.runID {
		if id, ok := sess.RunID(); ok {
			log.Debug("keeping inherited run id", "runid", id)
		} else if err := sess.FillRunID(session.NewRunID()); err != nil {
			return err
		}
	}

	if f.check {
		exe := sess.Executable()
		if exe == env.NotDefined {
			exe = ""
		}
		results := cli.CheckAll(cli.DefaultHelpers(), env.GetString(a.env, env.Path), exe)
		fmt.Fprint(a.stdout, cli.FormatCheckResults(results))
		if err := cli.ValidateRequired(results); err != nil {
			return err
		}
	}

	if command != nil {
		log.Debug("running command", "argv", command)
		return a.executor.Attach(ctx, "", sess.Environ(), command[0], command[1:]...)
	}
	if f.check {
		return nil
	}
	return printSession(a.stdout, sess)
}

type snapshot struct {
	Toplevel    bool                 `yaml:"toplevel"`
	Redo        string               `yaml:"redo"`
	Base        string               `yaml:"base"`
	StartDir    string               `yaml:"startdir"`
	Pwd         string               `yaml:"pwd,omitempty"`
	Target      string               `yaml:"target,omitempty"`
	Depth       string               `yaml:"depth"`
	Debug       int                  `yaml:"debug"`
	Verbose     int                  `yaml:"verbose"`
	XTrace      int                  `yaml:"xtrace"`
	KeepGoing   bool                 `yaml:"keep_going"`
	Shuffle     bool                 `yaml:"shuffle"`
	DebugLocks  bool                 `yaml:"debug_locks"`
	DebugPids   bool                 `yaml:"debug_pids"`
	Unlocked    bool                 `yaml:"unlocked"`
	NoOOB       bool                 `yaml:"no_oob"`
	LocksBroken bool                 `yaml:"locks_broken"`
	Log         optbool.OptionalBool `yaml:"log"`
	Color       optbool.OptionalBool `yaml:"color"`
	Pretty      optbool.OptionalBool `yaml:"pretty"`
	LogInode    string               `yaml:"log_inode,omitempty"`
	RunID       *int64               `yaml:"runid,omitempty"`
	LinksDir    string               `yaml:"links_dir,omitempty"`
}

func printSession(w io.Writer, s *session.Session) error {
	snap := snapshot{
		Toplevel:    s.IsToplevel(),
		Redo:        s.Executable(),
		Base:        s.Base(),
		StartDir:    s.StartDir(),
		Pwd:         s.Pwd(),
		Target:      s.Target().String(),
		Depth:       s.Depth(),
		Debug:       s.Debug(),
		Verbose:     s.Verbose(),
		XTrace:      s.XTrace(),
		KeepGoing:   s.KeepGoing(),
		Shuffle:     s.Shuffle(),
		DebugLocks:  s.DebugLocks(),
		DebugPids:   s.DebugPids(),
		Unlocked:    s.IsUnlocked(),
		NoOOB:       s.NoOOB(),
		LocksBroken: s.LocksBroken(),
		Log:         s.Log(),
		Color:       s.Color(),
		Pretty:      s.Pretty(),
		LogInode:    s.LogInode(),
		LinksDir:    s.LinksDir(),
	}
	if id, ok := s.RunID(); ok {
		snap.RunID = &id
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	return enc.Close()
}

func printHelp(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(w, `redo-env: start or join a redo session and show or use it.

Usage:
  redo-env [flags] [target...]
  redo-env [flags] [target...] -- command [arg...]

Without a command the decoded session is printed as YAML. With a command,
the command runs inside the session and its exit status is passed through.
Targets only matter to the first process of a tree, which uses them to
find the project base directory.

Flags:
`)
	fs.SetOutput(w)
	fs.PrintDefaults()
}
