// Package log connects application logging to strata. Log records are
// tagged with the active trace and span ids and recorded as breadcrumbs on
// the isolation scope of the context they are logged with.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/kzs0/strata"
)

// Handler is a slog.Handler that injects trace context into logs and
// records them as breadcrumbs.
type Handler struct {
	inner           slog.Handler
	store           *strata.Store
	breadcrumbLevel slog.Leveler
	attrs           []slog.Attr
	groups          []string
}

// HandlerOptions configures the Handler.
type HandlerOptions struct {
	// Level is the minimum log level to output.
	Level slog.Leveler
	// AddSource adds source code position to log output.
	AddSource bool
	// Output is the writer to write logs to. Defaults to os.Stderr.
	Output io.Writer
	// Format is the output format ("json" or "text"). Defaults to "json".
	Format string
	// Inner replaces the handler built from Level, AddSource, Output and Format.
	Inner slog.Handler
	// BreadcrumbLevel is the minimum level recorded as a breadcrumb.
	// Defaults to slog.LevelInfo.
	BreadcrumbLevel slog.Leveler
	// Store defaults to strata.DefaultStore().
	Store *strata.Store
}

// NewHandler creates a new Handler with the given options.
//
// Usage:
//
//	logger := slog.New(log.NewHandler(&log.HandlerOptions{Format: "text"}))
//	logger.InfoContext(ctx, "user loaded", "id", id)
func NewHandler(opts *HandlerOptions) *Handler {
	if opts == nil {
		opts = &HandlerOptions{}
	}

	inner := opts.Inner
	if inner == nil {
		output := opts.Output
		if output == nil {
			output = os.Stderr
		}
		handlerOpts := &slog.HandlerOptions{
			Level:     opts.Level,
			AddSource: opts.AddSource,
		}
		if opts.Format == "text" {
			inner = slog.NewTextHandler(output, handlerOpts)
		} else {
			inner = slog.NewJSONHandler(output, handlerOpts)
		}
	}

	store := opts.Store
	if store == nil {
		store = strata.DefaultStore()
	}
	level := opts.BreadcrumbLevel
	if level == nil {
		level = slog.LevelInfo
	}

	return &Handler{
		inner:           inner,
		store:           store,
		breadcrumbLevel: level,
	}
}

// Enabled reports whether the handler handles records at the given level.
// Records below the output level may still become breadcrumbs.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level) || level >= h.breadcrumbLevel.Level()
}

// Handle handles the Record.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if r.Level >= h.breadcrumbLevel.Level() {
		h.store.Isolation(ctx).AddBreadcrumb(h.breadcrumb(r), strata.BreadcrumbHint{"record": r})
	}

	if !h.inner.Enabled(ctx, r.Level) {
		return nil
	}

	traceID, spanID := h.store.ActiveTraceIDs(ctx)
	r = r.Clone()
	r.AddAttrs(slog.String("trace_id", traceID), slog.String("span_id", spanID))
	return h.inner.Handle(ctx, r)
}

func (h *Handler) breadcrumb(r slog.Record) *strata.Breadcrumb {
	data := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		addAttr(data, "", a)
	}
	prefix := strings.Join(h.groups, ".")
	r.Attrs(func(a slog.Attr) bool {
		addAttr(data, prefix, a)
		return true
	})
	if len(data) == 0 {
		data = nil
	}

	return &strata.Breadcrumb{
		Type:      "log",
		Category:  "log",
		Message:   r.Message,
		Level:     levelFromSlog(r.Level),
		Timestamp: r.Time,
		Data:      data,
	}
}

// addAttr flattens groups into dotted keys.
func addAttr(data map[string]any, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key == "" {
			key = prefix
		}
		for _, ga := range a.Value.Group() {
			addAttr(data, key, ga)
		}
		return
	}
	data[key] = a.Value.Any()
}

func levelFromSlog(l slog.Level) strata.Level {
	switch {
	case l >= slog.LevelError:
		return strata.LevelError
	case l >= slog.LevelWarn:
		return strata.LevelWarning
	case l >= slog.LevelInfo:
		return strata.LevelInfo
	default:
		return strata.LevelDebug
	}
}

// WithAttrs returns a new Handler with the given attributes added.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := strings.Join(h.groups, ".")
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	for _, a := range attrs {
		if prefix != "" {
			a = slog.Group(prefix, a)
		}
		newAttrs = append(newAttrs, a)
	}

	return &Handler{
		inner:           h.inner.WithAttrs(attrs),
		store:           h.store,
		breadcrumbLevel: h.breadcrumbLevel,
		attrs:           newAttrs,
		groups:          h.groups,
	}
}

// WithGroup returns a new Handler with the given group name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)

	return &Handler{
		inner:           h.inner.WithGroup(name),
		store:           h.store,
		breadcrumbLevel: h.breadcrumbLevel,
		attrs:           h.attrs,
		groups:          newGroups,
	}
}
