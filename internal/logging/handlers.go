package logging

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/lo"
)

// ContextProvider returns attributes computed at log time, such as the
// number of joined sessions. It runs on every record and must not take
// locks that are held while logging.
type ContextProvider func() []slog.Attr

// ContextHandler appends the provider's attributes to each record.
type ContextHandler struct {
	slog.Handler
	provider ContextProvider
}

// NewContextHandler wraps inner. A nil provider adds nothing.
func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{Handler: inner, provider: provider}
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider != nil {
		if attrs := h.provider(); len(attrs) > 0 {
			r.AddAttrs(attrs...)
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewContextHandler(h.Handler.WithAttrs(attrs), h.provider)
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return NewContextHandler(h.Handler.WithGroup(name), h.provider)
}

// MultiHandler hands each record to every sink enabled for its level.
// A failing sink does not stop the others; Handle returns their errors joined.
type MultiHandler struct {
	sinks []slog.Handler
}

// NewMultiHandler drops nil sinks.
func NewMultiHandler(sinks ...slog.Handler) *MultiHandler {
	return &MultiHandler{sinks: lo.Compact(sinks)}
}

func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return lo.ContainsBy(m.sinks, func(s slog.Handler) bool {
		return s.Enabled(ctx, level)
	})
}

func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, s := range m.sinks {
		if !s.Enabled(ctx, r.Level) {
			continue
		}
		if err := s.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &MultiHandler{sinks: lo.Map(m.sinks, func(s slog.Handler, _ int) slog.Handler {
		return s.WithAttrs(attrs)
	})}
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return m
	}
	return &MultiHandler{sinks: lo.Map(m.sinks, func(s slog.Handler, _ int) slog.Handler {
		return s.WithGroup(name)
	})}
}
