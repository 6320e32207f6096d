package log

import (
	"context"

	"github.com/kzs0/strata"
	"github.com/sirupsen/logrus"
)

// Hook is a logrus.Hook that adds trace_id and span_id fields to entries
// and records them as breadcrumbs. Log with WithContext so the entry
// carries the context of the unit of work.
//
// Usage:
//
//	logrus.AddHook(log.NewHook(nil))
//	logrus.WithContext(ctx).Info("payment accepted")
type Hook struct {
	store  *strata.Store
	levels []logrus.Level
}

var _ logrus.Hook = (*Hook)(nil)

// NewHook creates a Hook for store, or the default store when nil. Without
// levels, entries at info and above are recorded.
func NewHook(store *strata.Store, levels ...logrus.Level) *Hook {
	if store == nil {
		store = strata.DefaultStore()
	}
	if len(levels) == 0 {
		levels = []logrus.Level{
			logrus.PanicLevel,
			logrus.FatalLevel,
			logrus.ErrorLevel,
			logrus.WarnLevel,
			logrus.InfoLevel,
		}
	}
	return &Hook{store: store, levels: levels}
}

func (h *Hook) Levels() []logrus.Level {
	return h.levels
}

func (h *Hook) Fire(entry *logrus.Entry) error {
	ctx := entry.Context
	if ctx == nil {
		ctx = context.Background()
	}

	var data map[string]any
	if len(entry.Data) > 0 {
		data = make(map[string]any, len(entry.Data))
		for k, v := range entry.Data {
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			data[k] = v
		}
	}

	h.store.Isolation(ctx).AddBreadcrumb(&strata.Breadcrumb{
		Type:      "log",
		Category:  "log",
		Message:   entry.Message,
		Level:     levelFromLogrus(entry.Level),
		Timestamp: entry.Time,
		Data:      data,
	}, strata.BreadcrumbHint{"entry": entry})

	traceID, spanID := h.store.ActiveTraceIDs(ctx)
	if entry.Data == nil {
		entry.Data = logrus.Fields{}
	}
	entry.Data["trace_id"] = traceID
	entry.Data["span_id"] = spanID
	return nil
}

func levelFromLogrus(l logrus.Level) strata.Level {
	switch l {
	case logrus.PanicLevel, logrus.FatalLevel:
		return strata.LevelFatal
	case logrus.ErrorLevel:
		return strata.LevelError
	case logrus.WarnLevel:
		return strata.LevelWarning
	case logrus.InfoLevel:
		return strata.LevelInfo
	default:
		return strata.LevelDebug
	}
}
