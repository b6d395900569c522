// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ConsoleHandler writes one human-readable line per record:
//
//	2026-01-02T15:04:05Z appwall[1234]: [info] capture: client connected peer=127.0.0.1:50412
type ConsoleHandler struct {
	opts  slog.HandlerOptions
	out   io.Writer
	mu    *sync.Mutex
	attrs []slog.Attr
}

var (
	processName   = "appwall"
	processNameMu sync.RWMutex
)

// SetProcessName sets the name printed before the pid (e.g. "appwall-helper").
func SetProcessName(name string) {
	processNameMu.Lock()
	defer processNameMu.Unlock()
	processName = name
}

func getProcessName() string {
	processNameMu.RLock()
	defer processNameMu.RUnlock()
	return processName
}

// NewConsoleHandler creates a new ConsoleHandler.
func NewConsoleHandler(out io.Writer, opts *slog.HandlerOptions) *ConsoleHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &ConsoleHandler{
		out:  out,
		opts: *opts,
		mu:   &sync.Mutex{},
	}
}

func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)

	t := r.Time
	if t.IsZero() {
		t = time.Now()
	}
	buf = append(buf, t.Format(time.RFC3339)...)
	buf = append(buf, fmt.Sprintf(" %s[%d]: [", getProcessName(), os.Getpid())...)
	buf = append(buf, strings.ToLower(r.Level.String())...)
	buf = append(buf, "] "...)

	// component is promoted to the line header; record attrs override bound ones
	component := ""
	for _, a := range h.attrs {
		if a.Key == "component" {
			component = a.Value.String()
		}
	}
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			component = a.Value.String()
			return false
		}
		return true
	})
	if component != "" {
		buf = append(buf, strings.ToLower(component)...)
		buf = append(buf, ": "...)
	}

	buf = append(buf, r.Message...)

	for _, a := range h.attrs {
		if a.Key != "component" {
			buf = appendAttr(buf, a)
		}
	}
	r.Attrs(func(a slog.Attr) bool {
		if a.Key != "component" {
			buf = appendAttr(buf, a)
		}
		return true
	})
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf)
	return err
}

func appendAttr(buf []byte, a slog.Attr) []byte {
	buf = append(buf, ' ')
	buf = append(buf, a.Key...)
	buf = append(buf, '=')
	val := a.Value.Resolve().String()
	if val == "" || strings.ContainsAny(val, " \t\n\"=") {
		return append(buf, fmt.Sprintf("%q", val)...)
	}
	return append(buf, val...)
}

func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &ConsoleHandler{
		opts:  h.opts,
		out:   h.out,
		mu:    h.mu,
		attrs: merged,
	}
}

// WithGroup is a no-op; console output is flat.
func (h *ConsoleHandler) WithGroup(string) slog.Handler {
	return h
}
