// Package config holds the settings a user can pass to the root of an
// invocation tree. The environment is the only channel between processes, so
// a Config does nothing until it is applied to one.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zhubert/redo-core/env"
	"github.com/zhubert/redo-core/optbool"
)

// Config is an overlay of session settings. A nil field leaves whatever the
// environment already holds.
type Config struct {
	Debug   *int `yaml:"debug,omitempty"`
	Verbose *int `yaml:"verbose,omitempty"`
	XTrace  *int `yaml:"xtrace,omitempty"`

	KeepGoing  *bool `yaml:"keep_going,omitempty"`
	Shuffle    *bool `yaml:"shuffle,omitempty"`
	DebugLocks *bool `yaml:"debug_locks,omitempty"`
	DebugPids  *bool `yaml:"debug_pids,omitempty"`
	Unlocked   *bool `yaml:"unlocked,omitempty"`
	NoOOB      *bool `yaml:"no_oob,omitempty"`

	Log    *optbool.OptionalBool `yaml:"log,omitempty"`
	Color  *optbool.OptionalBool `yaml:"color,omitempty"`
	Pretty *optbool.OptionalBool `yaml:"pretty,omitempty"`
}

// Load reads a YAML options file. It returns nil, nil if the file does not
// exist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read options file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse options file %s: %w", path, err)
	}
	return &cfg, nil
}

// Merge returns a Config holding every field set in override, and the fields
// of base that override leaves nil. Either argument may be nil.
func Merge(override, base *Config) *Config {
	result := &Config{}
	if base != nil {
		*result = *base
	}
	if override == nil {
		return result
	}

	mergePtr(&result.Debug, override.Debug)
	mergePtr(&result.Verbose, override.Verbose)
	mergePtr(&result.XTrace, override.XTrace)
	mergePtr(&result.KeepGoing, override.KeepGoing)
	mergePtr(&result.Shuffle, override.Shuffle)
	mergePtr(&result.DebugLocks, override.DebugLocks)
	mergePtr(&result.DebugPids, override.DebugPids)
	mergePtr(&result.Unlocked, override.Unlocked)
	mergePtr(&result.NoOOB, override.NoOOB)
	mergePtr(&result.Log, override.Log)
	mergePtr(&result.Color, override.Color)
	mergePtr(&result.Pretty, override.Pretty)
	return result
}

func mergePtr[T any](dst **T, src *T) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

// Apply writes every non-nil field into e using the REDO_* encoding. It must
// run before the session is bootstrapped.
func (c *Config) Apply(e env.Environ) error {
	ints := []struct {
		key string
		v   *int
	}{
		{env.Debug, c.Debug},
		{env.Verbose, c.Verbose},
		{env.XTrace, c.XTrace},
	}
	for _, f := range ints {
		if f.v == nil {
			continue
		}
		if err := env.SetInt(e, f.key, int64(*f.v)); err != nil {
			return err
		}
	}

	bools := []struct {
		key string
		v   *bool
	}{
		{env.KeepGoing, c.KeepGoing},
		{env.Shuffle, c.Shuffle},
		{env.DebugLocks, c.DebugLocks},
		{env.DebugPids, c.DebugPids},
		{env.Unlocked, c.Unlocked},
		{env.NoOOB, c.NoOOB},
	}
	for _, f := range bools {
		if f.v == nil {
			continue
		}
		if err := env.SetBool(e, f.key, *f.v); err != nil {
			return err
		}
	}

	tris := []struct {
		key string
		v   *optbool.OptionalBool
	}{
		{env.Log, c.Log},
		{env.Color, c.Color},
		{env.Pretty, c.Pretty},
	}
	for _, f := range tris {
		if f.v == nil {
			continue
		}
		if err := env.SetInt(e, f.key, f.v.Int()); err != nil {
			return err
		}
	}
	return nil
}
