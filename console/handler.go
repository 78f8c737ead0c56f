package console

import (
	"context"
	"log/slog"
	"reflect"
	"slices"
)

var _ slog.Handler = (*handler)(nil)

type groupOrAttrs struct {
	group string
	attrs []slog.Attr
}

// handler records every slog record and passes it to the wrapped handler.
type handler struct {
	rec     *Recorder
	next    slog.Handler
	goas    []groupOrAttrs
	builtin bool
}

// Handler wraps next so that records handled by it are recorded as well.
// Use it for loggers that are not the slog default.
func (r *Recorder) Handler(next slog.Handler) slog.Handler {
	return &handler{rec: r, next: next, builtin: isBuiltinHandler(next)}
}

// isBuiltinHandler detects the handler slog uses before any SetDefault call,
// it writes through the log package.
func isBuiltinHandler(h slog.Handler) bool {
	t := reflect.TypeOf(h)
	return t != nil && t.String() == "*slog.defaultHandler"
}

// Enabled implements slog.Handler: an active recorder wants records of all levels,
// once restored the decision is left to the wrapped handler.
func (h *handler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.rec.Active() {
		return true
	}
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler: records the Record and passes it to the wrapped handler if it is enabled.
func (h *handler) Handle(ctx context.Context, record slog.Record) error {
	h.rec.capture(FromSlog(record.Level), func() ([]any, string) {
		return h.message(record), h.rec.callers()
	})

	if !h.next.Enabled(ctx, record.Level) {
		return nil
	}
	if h.builtin {
		h.rec.forwarding.Add(1)
		defer h.rec.forwarding.Add(-1)
	}
	return h.next.Handle(ctx, record)
}

// WithAttrs implements slog.Handler.
func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return h.with(h.next.WithAttrs(attrs), groupOrAttrs{attrs: attrs})
}

// WithGroup implements slog.Handler.
func (h *handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.with(h.next.WithGroup(name), groupOrAttrs{group: name})
}

func (h *handler) with(next slog.Handler, goa groupOrAttrs) *handler {
	return &handler{
		rec:     h.rec,
		next:    next,
		goas:    append(h.goas[:len(h.goas):len(h.goas)], goa),
		builtin: h.builtin,
	}
}

// message turns the record into logging call arguments: the message itself and,
// if there are any, the attributes of the record and of the handler as a single map.
func (h *handler) message(record slog.Record) []any {
	msg := []any{record.Message}

	attrs := make([]slog.Attr, 0, record.NumAttrs())
	record.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})

	for i := len(h.goas) - 1; i >= 0; i-- {
		goa := h.goas[i]
		if goa.group == "" {
			attrs = append(slices.Clone(goa.attrs), attrs...)
			continue
		}
		if len(attrs) > 0 {
			attrs = []slog.Attr{{Key: goa.group, Value: slog.GroupValue(attrs...)}}
		}
	}
	if len(attrs) == 0 {
		return msg
	}

	serialized := serializeAttrs(attrs)
	if m, ok := serialized.(map[string]any); ok && len(m) == 0 {
		return msg
	}
	return append(msg, serialized)
}

// Unrecorded wraps next so that records handled by it are never recorded,
// also when next writes through the intercepted log package.
// Use it for the logger of code that reports the recorded logs.
func (r *Recorder) Unrecorded(next slog.Handler) slog.Handler {
	return &unrecorded{rec: r, next: next}
}

type unrecorded struct {
	rec  *Recorder
	next slog.Handler
}

// Enabled implements slog.Handler.
func (h *unrecorded) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *unrecorded) Handle(ctx context.Context, record slog.Record) error {
	h.rec.forwarding.Add(1)
	defer h.rec.forwarding.Add(-1)
	return h.next.Handle(ctx, record)
}

// WithAttrs implements slog.Handler.
func (h *unrecorded) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &unrecorded{rec: h.rec, next: h.next.WithAttrs(attrs)}
}

// WithGroup implements slog.Handler.
func (h *unrecorded) WithGroup(name string) slog.Handler {
	return &unrecorded{rec: h.rec, next: h.next.WithGroup(name)}
}
