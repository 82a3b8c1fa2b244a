package logging

import (
	"context"
	"log/slog"
)

// redactHandler wraps a slog.Handler and masks sensitive attribute
// values before they reach the underlying handler. Redaction at the
// handler level means loggers derived with With or WithGroup keep it.
type redactHandler struct {
	inner    slog.Handler
	redactor *Redactor
}

func newRedactHandler(inner slog.Handler, r *Redactor) *redactHandler {
	return &redactHandler{inner: inner, redactor: r}
}

func (h *redactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *redactHandler) Handle(ctx context.Context, record slog.Record) error {
	clean := slog.NewRecord(record.Time, record.Level, h.redactor.RedactString(record.Message), record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		clean.AddAttrs(h.redactAttr(attr))
		return true
	})
	return h.inner.Handle(ctx, clean)
}

func (h *redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		clean[i] = h.redactAttr(attr)
	}
	return &redactHandler{inner: h.inner.WithAttrs(clean), redactor: h.redactor}
}

func (h *redactHandler) WithGroup(name string) slog.Handler {
	return &redactHandler{inner: h.inner.WithGroup(name), redactor: h.redactor}
}

func (h *redactHandler) redactAttr(attr slog.Attr) slog.Attr {
	switch attr.Value.Kind() {
	case slog.KindString:
		value := attr.Value.String()
		if h.redactor.IsSensitiveKey(attr.Key) {
			return slog.String(attr.Key, h.redactor.RedactValue(value))
		}
		return slog.String(attr.Key, h.redactor.RedactString(value))
	case slog.KindGroup:
		members := attr.Value.Group()
		clean := make([]any, 0, len(members))
		for _, member := range members {
			clean = append(clean, h.redactAttr(member))
		}
		return slog.Group(attr.Key, clean...)
	default:
		return attr
	}
}
