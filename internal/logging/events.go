package logging

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/JonMunkholm/recimport/internal/core"
)

// EventLogger is a core.EventSink that writes each event as one slog
// record at the event's level.
type EventLogger struct {
	logger *slog.Logger
}

// NewEventLogger writes events to logger. A nil logger uses slog.Default
// at emit time, so a later Setup call still takes effect.
func NewEventLogger(logger *slog.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

// Emit implements core.EventSink.
func (l *EventLogger) Emit(ctx context.Context, ev core.Event) {
	logger := l.logger
	if logger == nil {
		logger = slog.Default()
	}
	if !logger.Enabled(ctx, ev.Level) {
		return
	}

	attrs := []slog.Attr{
		slog.String("action", string(ev.Action)),
		slog.String("result", ev.Result),
	}
	if ev.BatchID != "" {
		attrs = append(attrs, slog.String("batch_id", ev.BatchID))
	}
	if ev.FileName != "" {
		attrs = append(attrs, slog.String("file_name", ev.FileName))
	}
	if ev.IDType != "" || ev.IDValue != "" {
		attrs = append(attrs,
			slog.String("id_type", ev.IDType),
			slog.String("id_value", ev.IDValue),
			slog.String("product", ev.Product),
		)
	}
	if ev.Row > 0 {
		attrs = append(attrs, slog.Int("row", ev.Row))
	}
	keys := make([]string, 0, len(ev.Fields))
	for k := range ev.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, ev.Fields[k]))
	}
	if reqID := requestID(ctx); reqID != "" {
		attrs = append(attrs, slog.String("request_id", reqID))
	}

	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	r := slog.NewRecord(ts, ev.Level, string(ev.Action), 0)
	r.AddAttrs(attrs...)
	_ = logger.Handler().Handle(ctx, r)
}
