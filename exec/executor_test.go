package exec

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH, skipping test")
	}
}

// captureStdout points os.Stdout at a file for the duration of f.
func captureStdout(t *testing.T, f func()) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stdout")
	out, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	orig := os.Stdout
	os.Stdout = out
	defer func() { os.Stdout = orig }()

	f()

	if err := out.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestRealExecutor_Attach(t *testing.T) {
	requireSh(t)
	err := NewRealExecutor().Attach(context.Background(), "", nil, "sh", "-c", "exit 3")
	if got := ExitCode(err); got != 3 {
		t.Errorf("ExitCode = %d, want 3 (err = %v)", got, err)
	}
}

func TestRealExecutor_AttachEnv(t *testing.T) {
	requireSh(t)
	t.Setenv("REDO_TEST_PARENT", "leaked")

	env := []string{"REDO=/bin/redo", "REDO_DEPTH=  ", "REDO_TARGET=all"}
	var err error
	got := captureStdout(t, func() {
		err = NewRealExecutor().Attach(context.Background(), "", env, "sh", "-c",
			`printf '%s|%s|%s|%s' "$REDO" "$REDO_DEPTH" "$REDO_TARGET" "${REDO_TEST_PARENT-unset}"`)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/bin/redo|  |all|unset" {
		t.Errorf("child saw %q", got)
	}
}

func TestRealExecutor_AttachDir(t *testing.T) {
	requireSh(t)
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	got := captureStdout(t, func() {
		err = NewRealExecutor().Attach(context.Background(), dir, nil, "sh", "-c", "pwd -P")
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(got) != dir {
		t.Errorf("child ran in %q, want %q", strings.TrimSpace(got), dir)
	}
}

func TestRealExecutor_Canceled(t *testing.T) {
	requireSh(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := NewRealExecutor().Attach(ctx, "", nil, "sh", "-c", "sleep 5"); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

type exitErr int

func (e exitErr) Error() string { return "exit status" }
func (e exitErr) ExitCode() int { return int(e) }

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain error", errors.New("not found"), 1},
		{"exit status", exitErr(7), 7},
		{"wrapped", errors.Join(errors.New("ctx"), exitErr(42)), 42},
		{"signaled", exitErr(-1), 1},
		{"zero carried", exitErr(0), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMockExecutor_RecordsCall(t *testing.T) {
	mock := NewMockExecutor()
	env := []string{"REDO=/bin/redo", "REDO_TARGET=a.o"}

	if err := mock.Attach(context.Background(), "/proj", env, "redo-ifchange", "a.o"); err != nil {
		t.Fatalf("unmatched Attach should succeed, got %v", err)
	}

	calls := mock.GetCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	c := calls[0]
	if c.Dir != "/proj" || c.Name != "redo-ifchange" || len(c.Args) != 1 || c.Args[0] != "a.o" {
		t.Errorf("recorded %+v", c)
	}
	if v, ok := c.Getenv("REDO_TARGET"); !ok || v != "a.o" {
		t.Errorf("recorded REDO_TARGET = (%q, %v)", v, ok)
	}

	// The record must not alias the caller's slice.
	env[1] = "REDO_TARGET=changed"
	if v, _ := mock.GetCalls()[0].Getenv("REDO_TARGET"); v != "a.o" {
		t.Errorf("recorded env aliases caller slice: %q", v)
	}
}

func TestMockCall_Getenv(t *testing.T) {
	c := MockCall{Env: []string{"A=1", "REDO=x", "A=2", "EMPTY="}}

	if v, ok := c.Getenv("A"); !ok || v != "2" {
		t.Errorf("Getenv(A) = (%q, %v), want last value", v, ok)
	}
	if v, ok := c.Getenv("EMPTY"); !ok || v != "" {
		t.Errorf("Getenv(EMPTY) = (%q, %v)", v, ok)
	}
	if _, ok := c.Getenv("RED"); ok {
		t.Error("Getenv should not match key prefixes")
	}
}

func TestMockExecutor_Rules(t *testing.T) {
	mock := NewMockExecutor()
	mock.AddExactMatch("redo", []string{"-x", "all"}, MockResponse{Err: exitErr(2)})
	mock.AddPrefixMatch("redo", []string{"-x"}, MockResponse{Err: exitErr(3)})
	mock.AddRule(func(dir, _ string, _ []string) bool {
		return dir == "/special"
	}, MockResponse{Err: exitErr(4)})

	tests := []struct {
		name string
		dir  string
		args []string
		want int
	}{
		{"exact wins over later prefix", "", []string{"-x", "all"}, 2},
		{"prefix", "", []string{"-x", "clean"}, 3},
		{"prefix longer than args", "", nil, 0},
		{"custom rule", "/special", []string{"all"}, 4},
		{"unmatched", "", []string{"all"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mock.Attach(context.Background(), tt.dir, nil, "redo", tt.args...)
			if got := ExitCode(err); got != tt.want {
				t.Errorf("ExitCode = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMockExecutor_ConcurrentAttach(t *testing.T) {
	mock := NewMockExecutor()
	mock.AddPrefixMatch("false", nil, MockResponse{Err: exitErr(1)})

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = mock.Attach(context.Background(), "", nil, "false")
		}()
	}
	wg.Wait()

	if n := len(mock.GetCalls()); n != 50 {
		t.Errorf("expected 50 calls, got %d", n)
	}
}
