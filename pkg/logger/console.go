package logger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	debugColor = color.New(color.FgHiBlack)
	infoColor  = color.New(color.FgCyan)
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed, color.Bold)
	keyColor   = color.New(color.FgMagenta)
)

// consoleHandler writes one human-readable line per record:
//
//	15:04:05.000 INFO  message key=value key=value (file.go:42)
type consoleHandler struct {
	mu        *sync.Mutex
	out       io.Writer
	level     slog.Level
	addSource bool
	attrs     []slog.Attr
	group     string
}

func newConsoleHandler(out io.Writer, level slog.Level, addSource bool) *consoleHandler {
	return &consoleHandler{
		mu:        &sync.Mutex{},
		out:       out,
		level:     level,
		addSource: addSource,
	}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer

	buf.WriteString(r.Time.UTC().Format("15:04:05.000"))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(r.Level))
	buf.WriteByte(' ')
	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		h.writeAttr(&buf, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&buf, a)
		return true
	})

	if h.addSource && r.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := frames.Next()
		fmt.Fprintf(&buf, " (%s:%d)", filepath.Base(f.File), f.Line)
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) writeAttr(buf *bytes.Buffer, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if h.group != "" {
		key = h.group + "." + key
	}
	buf.WriteByte(' ')
	buf.WriteString(keyColor.Sprint(key))
	buf.WriteByte('=')

	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindTime:
		buf.WriteString(v.Time().UTC().Format(time.RFC3339))
	case slog.KindString:
		fmt.Fprintf(buf, "%q", v.String())
	default:
		fmt.Fprintf(buf, "%v", v.Any())
	}
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	next := *h
	if next.group != "" {
		name = next.group + "." + name
	}
	next.group = name
	return &next
}

func levelLabel(l slog.Level) string {
	switch {
	case l >= slogFatal:
		return errorColor.Sprint("FATAL")
	case l >= slog.LevelError:
		return errorColor.Sprint("ERROR")
	case l >= slog.LevelWarn:
		return warnColor.Sprint("WARN ")
	case l >= slog.LevelInfo:
		return infoColor.Sprint("INFO ")
	default:
		return debugColor.Sprint("DEBUG")
	}
}
