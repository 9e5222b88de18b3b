package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/zhubert/redo-core/env"
	"github.com/zhubert/redo-core/optbool"
)

func ptr[T any](v T) *T { return &v }

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "redo.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Missing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != nil {
		t.Errorf("expected nil config for missing file, got %+v", cfg)
	}
}

func TestLoad_Full(t *testing.T) {
	path := writeFile(t, `
debug: 2
verbose: 1
xtrace: 0
keep_going: true
shuffle: false
debug_locks: true
debug_pids: false
unlocked: true
no_oob: false
log: auto
color: "on"
pretty: 0
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Debug == nil || *cfg.Debug != 2 {
		t.Errorf("Debug = %v", cfg.Debug)
	}
	if cfg.XTrace == nil || *cfg.XTrace != 0 {
		t.Errorf("XTrace should be set to 0, got %v", cfg.XTrace)
	}
	if cfg.KeepGoing == nil || !*cfg.KeepGoing {
		t.Errorf("KeepGoing = %v", cfg.KeepGoing)
	}
	if cfg.Shuffle == nil || *cfg.Shuffle {
		t.Errorf("Shuffle should be set to false, got %v", cfg.Shuffle)
	}
	if cfg.Log == nil || *cfg.Log != optbool.Auto {
		t.Errorf("Log = %v", cfg.Log)
	}
	if cfg.Color == nil || *cfg.Color != optbool.On {
		t.Errorf("Color = %v", cfg.Color)
	}
	if cfg.Pretty == nil || *cfg.Pretty != optbool.Off {
		t.Errorf("Pretty = %v", cfg.Pretty)
	}
}

func TestLoad_Partial(t *testing.T) {
	cfg, err := Load(writeFile(t, "verbose: 3\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Verbose == nil || *cfg.Verbose != 3 {
		t.Errorf("Verbose = %v", cfg.Verbose)
	}
	if cfg.Debug != nil || cfg.Log != nil || cfg.KeepGoing != nil {
		t.Errorf("unset keys should stay nil: %+v", cfg)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "debug: [1\n"},
		{"bad tri-state", "log: sometimes\n"},
		{"tri-state list", "color: [true]\n"},
		{"wrong type", "debug: lots\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), "failed to parse options file") {
				t.Errorf("error = %v", err)
			}
		})
	}
}

func TestLoad_Unreadable(t *testing.T) {
	// A directory exists but cannot be read as a file.
	_, err := Load(t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "failed to read options file") {
		t.Errorf("error = %v", err)
	}
}

func TestMerge(t *testing.T) {
	base := &Config{
		Debug:     ptr(1),
		KeepGoing: ptr(true),
		Log:       ptr(optbool.Off),
	}
	override := &Config{
		Debug: ptr(3),
		Color: ptr(optbool.On),
	}

	got := Merge(override, base)

	if *got.Debug != 3 {
		t.Errorf("Debug = %d, override should win", *got.Debug)
	}
	if got.KeepGoing == nil || !*got.KeepGoing {
		t.Error("KeepGoing should come from base")
	}
	if got.Log == nil || *got.Log != optbool.Off {
		t.Error("Log should come from base")
	}
	if got.Color == nil || *got.Color != optbool.On {
		t.Error("Color should come from override")
	}

	*got.Debug = 9
	if *override.Debug != 3 {
		t.Error("Merge result aliases the override")
	}
}

func TestMerge_Nil(t *testing.T) {
	if got := Merge(nil, nil); got == nil || got.Debug != nil {
		t.Errorf("Merge(nil, nil) = %+v", got)
	}
	base := &Config{Shuffle: ptr(true)}
	if got := Merge(nil, base); got.Shuffle == nil || !*got.Shuffle {
		t.Error("Merge(nil, base) should copy base")
	}
	over := &Config{Verbose: ptr(2)}
	if got := Merge(over, nil); got.Verbose == nil || *got.Verbose != 2 {
		t.Error("Merge(override, nil) should copy override")
	}
}

func TestApply(t *testing.T) {
	cfg := &Config{
		Debug:     ptr(2),
		Verbose:   ptr(0),
		KeepGoing: ptr(true),
		Shuffle:   ptr(false),
		DebugPids: ptr(true),
		Unlocked:  ptr(true),
		Log:       ptr(optbool.Off),
		Color:     ptr(optbool.On),
		Pretty:    ptr(optbool.Auto),
	}
	e := env.NewMap(env.Shuffle, "1", env.XTrace, "4", env.NoOOB, "1")

	if err := cfg.Apply(e); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	want := map[string]string{
		env.Debug:     "2",
		env.Verbose:   "0",
		env.KeepGoing: "1",
		env.Shuffle:   "",
		env.DebugPids: "1",
		env.Unlocked:  "1",
		env.Log:       "0",
		env.Color:     "2",
		env.Pretty:    "1",
		// untouched
		env.XTrace: "4",
		env.NoOOB:  "1",
	}
	for k, v := range want {
		if got := env.GetString(e, k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	if _, ok := e.Lookup(env.DebugLocks); ok {
		t.Error("nil field should not create a variable")
	}
}

func TestApply_FromYAML(t *testing.T) {
	in := &Config{
		Debug:     ptr(1),
		KeepGoing: ptr(true),
		Log:       ptr(optbool.Off),
		Color:     ptr(optbool.Auto),
	}
	data, err := yaml.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out, err := Load(writeFile(t, string(data)))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	a, b := env.NewMap(), env.NewMap()
	if err := in.Apply(a); err != nil {
		t.Fatal(err)
	}
	if err := out.Apply(b); err != nil {
		t.Fatal(err)
	}
	if strings.Join(a.Environ(), " ") != strings.Join(b.Environ(), " ") {
		t.Errorf("environment differs after YAML round trip:\n%v\n%v", a.Environ(), b.Environ())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		cfg    *Config
		fields []string
	}{
		{"nil", nil, nil},
		{"empty", &Config{}, nil},
		{"zero levels", &Config{Debug: ptr(0), Verbose: ptr(0), XTrace: ptr(0)}, nil},
		{"negative debug", &Config{Debug: ptr(-1)}, []string{"debug"}},
		{"all negative", &Config{Debug: ptr(-1), Verbose: ptr(-2), XTrace: ptr(-3)}, []string{"debug", "verbose", "xtrace"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(tt.cfg)
			if len(errs) != len(tt.fields) {
				t.Fatalf("got %d errors (%v), want %d", len(errs), errs, len(tt.fields))
			}
			for i, f := range tt.fields {
				if errs[i].Field != f {
					t.Errorf("errs[%d].Field = %q, want %q", i, errs[i].Field, f)
				}
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	e := ValidationError{Field: "debug", Message: "bad"}
	if e.Error() != "debug: bad" {
		t.Errorf("Error() = %q", e.Error())
	}
}
