// Package sessionlog copies warning and error log records out of the slog
// pipeline so they can be journaled next to the intents that caused them.
package sessionlog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"time"
)

// Entry is a flattened log record.
type Entry struct {
	Time    time.Time
	Level   slog.Level
	Message string
	// Source is the dot-joined slog group path, "" at top level.
	Source string
	// Attrs renders the record's attributes as space-separated key=value
	// pairs, handler-bound attributes first.
	Attrs string
}

// Text returns the message followed by its attributes.
func (e Entry) Text() string {
	if e.Attrs == "" {
		return e.Message
	}
	return e.Message + " " + e.Attrs
}

// Sink receives entries. It runs inline on the logging goroutine and must
// not block or log.
type Sink func(Entry)

// TeeHandler forwards every record to a base handler and hands records at
// or above minLevel to a Sink.
type TeeHandler struct {
	base     slog.Handler
	sink     Sink
	minLevel slog.Level
	group    string
	bound    string
}

// NewTeeHandler wraps base. A nil sink makes the handler a pass-through.
func NewTeeHandler(base slog.Handler, minLevel slog.Level, sink Sink) *TeeHandler {
	return &TeeHandler{base: base, sink: sink, minLevel: minLevel}
}

// Enabled defers to the base handler.
func (h *TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

// Handle forwards r to the base handler, then to the sink. The sink sees
// the record even when the base handler fails; the base error is returned.
func (h *TeeHandler) Handle(ctx context.Context, r slog.Record) error {
	err := h.base.Handle(ctx, r)
	if h.sink == nil || r.Level < h.minLevel {
		return err
	}

	var sb strings.Builder
	sb.WriteString(h.bound)
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&sb, h.group, a)
		return true
	})
	entry := Entry{Time: r.Time, Level: r.Level, Message: r.Message, Source: h.group, Attrs: sb.String()}

	func() {
		defer func() {
			if p := recover(); p != nil {
				// stderr, not slog: logging here would re-enter this handler.
				fmt.Fprintf(os.Stderr, "[sessionlog] sink panicked: %v\n%s\n", p, debug.Stack())
			}
		}()
		h.sink(entry)
	}()
	return err
}

// WithAttrs returns a handler whose base and sink both carry attrs.
func (h *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	var sb strings.Builder
	sb.WriteString(h.bound)
	for _, a := range attrs {
		appendAttr(&sb, h.group, a)
	}
	clone := *h
	clone.base = h.base.WithAttrs(attrs)
	clone.bound = sb.String()
	return &clone
}

// WithGroup returns a handler that nests subsequent attributes under name.
func (h *TeeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.base = h.base.WithGroup(name)
	if h.group == "" {
		clone.group = name
	} else {
		clone.group = h.group + "." + name
	}
	return &clone
}

func appendAttr(sb *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" && key != "" {
		key = prefix + "." + key
	} else if key == "" {
		key = prefix
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			appendAttr(sb, key, ga)
		}
		return
	}
	if sb.Len() > 0 {
		sb.WriteByte(' ')
	}
	sb.WriteString(key)
	sb.WriteByte('=')
	sb.WriteString(a.Value.String())
}
