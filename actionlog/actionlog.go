// Leveled sink for the moderation agent's log records.
//
// A Log keeps the most recent entries in memory (served to the owner by the `/log` command) and appends every entry to a plain-text file. It plugs into log/slog as a decorating Handler, so components keep logging through an ordinary *slog.Logger.
package actionlog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const DefaultSize = 30

type Log struct {
	mu      sync.Mutex
	entries []string
	size    int
	out     io.Writer
	path    string
	closer  io.Closer
	stderr  io.Writer
	now     func() time.Time
}

// Opens (creating if needed) the append-only log file at path. An empty path keeps entries in memory only.
func Open(path string, size int) (*Log, error) {
	l := New(size)
	if path == "" {
		return l, nil
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	l.out = f
	l.closer = f
	l.path = path
	return l, nil
}

// In-memory only log, keeping the last size entries.
func New(size int) *Log {
	if size <= 0 {
		size = DefaultSize
	}
	return &Log{
		size:   size,
		stderr: os.Stderr,
		now:    time.Now,
	}
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	l.out = nil
	return err
}

func (l *Log) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

func (l *Log) SetSize(size int) {
	if size <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.size = size
	l.trim()
}

// Snapshot of retained entries, oldest first.
func (l *Log) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) trim() {
	if over := len(l.entries) - l.size; over > 0 {
		l.entries = append([]string(nil), l.entries[over:]...)
	}
}

// Records one formatted line.
func (l *Log) Add(msg string) {
	line := fmt.Sprintf("[%s] %s", l.now().UTC().Format(time.DateTime), msg)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, line)
	l.trim()
	if l.out == nil {
		return
	}
	if _, err := fmt.Fprintln(l.out, line); err != nil {
		ioMsg := fmt.Sprintf("[%s] Error: unable to write to %s: %v", l.now().UTC().Format(time.DateTime), l.path, err)
		l.entries = append(l.entries, ioMsg)
		l.trim()
		fmt.Fprintln(l.stderr, ioMsg)
	}
}

// Decorates inner so that every record at INFO or above is also recorded in l.
func (l *Log) Handler(inner slog.Handler) slog.Handler {
	return &Handler{log: l, inner: inner}
}

type Handler struct {
	log    *Log
	inner  slog.Handler
	attrs  []slog.Attr
	prefix string
}

var _ slog.Handler = (*Handler)(nil)

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo || h.inner.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelInfo {
		h.log.Add(h.format(r))
	}
	if h.inner.Enabled(ctx, r.Level) {
		return h.inner.Handle(ctx, r)
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := *h
	out.inner = h.inner.WithAttrs(attrs)
	out.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	out.attrs = append(out.attrs, h.attrs...)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		out.attrs = append(out.attrs, a)
	}
	return &out
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	out := *h
	out.inner = h.inner.WithGroup(name)
	out.prefix = h.prefix + name + "."
	return &out
}

func (h *Handler) format(r slog.Record) string {
	var sb strings.Builder
	if r.Level >= slog.LevelError {
		sb.WriteString("ERROR ")
	}
	sb.WriteString(r.Message)
	for _, a := range h.attrs {
		writeAttr(&sb, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&sb, h.prefix, a)
		return true
	})
	return sb.String()
}

func writeAttr(sb *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(sb, prefix+a.Key+".", ga)
		}
		return
	}
	fmt.Fprintf(sb, " %s%s=%v", prefix, a.Key, a.Value.Any())
}
