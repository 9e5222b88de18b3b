package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/muesli/termenv"
)

type consoleOptions struct {
	Level slog.Leveler
	Depth string
	PIDs  bool
	Color bool
}

// consoleHandler writes one line per record:
//
//	redo[pid] <depth>LEVEL: message key=value ...
//
// The level is only spelled out for warnings and errors.
type consoleHandler struct {
	opts   consoleOptions
	mu     *sync.Mutex
	w      io.Writer
	attrs  string
	groups string
}

func newConsoleHandler(w io.Writer, opts consoleOptions) *consoleHandler {
	return &consoleHandler{opts: opts, mu: new(sync.Mutex), w: w}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.opts.Level != nil {
		min = h.opts.Level.Level()
	}
	return level >= min
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder
	tag := "redo"
	if h.opts.PIDs {
		tag = fmt.Sprintf("redo[%d]", os.Getpid())
	}
	sb.WriteString(h.paint(tag, r.Level))
	sb.WriteByte(' ')
	sb.WriteString(h.opts.Depth)
	if r.Level >= slog.LevelWarn {
		sb.WriteString(h.paint(r.Level.String()+":", r.Level))
		sb.WriteByte(' ')
	}
	sb.WriteString(r.Message)
	sb.WriteString(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&sb, h.groups, a)
		return true
	})
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, sb.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	var sb strings.Builder
	sb.WriteString(h.attrs)
	for _, a := range attrs {
		appendAttr(&sb, h.groups, a)
	}
	h2.attrs = sb.String()
	return &h2
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.groups = h.groups + name + "."
	return &h2
}

func (h *consoleHandler) paint(s string, level slog.Level) string {
	if !h.opts.Color {
		return s
	}
	code := "2" // green
	switch {
	case level >= slog.LevelError:
		code = "1"
	case level >= slog.LevelWarn:
		code = "3"
	case level < slog.LevelInfo:
		code = "4"
	}
	p := termenv.ANSI
	return p.String(s).Foreground(p.Color(code)).Bold().String()
}

func appendAttr(sb *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			appendAttr(sb, p, ga)
		}
		return
	}
	sb.WriteByte(' ')
	sb.WriteString(prefix)
	sb.WriteString(a.Key)
	sb.WriteByte('=')
	v := a.Value.String()
	if v == "" || strings.ContainsAny(v, " \t\n\"=") {
		v = strconv.Quote(v)
	}
	sb.WriteString(v)
}
