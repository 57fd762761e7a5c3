package logging

import (
	"context"
	"log/slog"
)

// componentLevelHandler applies per-component minimum levels. The wrapped
// handler should be configured with the most verbose level needed globally;
// a component without an override inherits it.
type componentLevelHandler struct {
	next      slog.Handler
	overrides map[string]slog.Level
	level     *slog.Level
}

func newComponentLevelHandler(next slog.Handler, overrides map[string]slog.Level) slog.Handler {
	if next == nil {
		return slog.DiscardHandler
	}
	return &componentLevelHandler{next: next, overrides: overrides}
}

func (h *componentLevelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.level != nil {
		return level >= *h.level
	}
	return h.next.Enabled(ctx, level)
}

func (h *componentLevelHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.level != nil && record.Level < *h.level {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h *componentLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := &componentLevelHandler{
		next:      h.next.WithAttrs(attrs),
		overrides: h.overrides,
		level:     h.level,
	}
	for _, attr := range attrs {
		if attr.Key != FieldComponent {
			continue
		}
		if lvl, ok := h.overrides[attr.Value.String()]; ok {
			clone.level = &lvl
		}
	}
	return clone
}

func (h *componentLevelHandler) WithGroup(name string) slog.Handler {
	return &componentLevelHandler{
		next:      h.next.WithGroup(name),
		overrides: h.overrides,
		level:     h.level,
	}
}
