package notify

import (
	"context"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/recimport/internal/core"
)

// Log writes reports to a logger instead of mailing them.
type Log struct {
	logger *slog.Logger
}

// NewLog returns a notifier logging to logger, or slog.Default when nil.
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

// NotifyRejected implements core.Notifier.
func (l *Log) NotifyRejected(ctx context.Context, r core.Report) error {
	logger := l.logger
	if logger == nil {
		logger = slog.Default()
	}
	var b strings.Builder
	if err := RenderText(&b, r); err != nil {
		return err
	}
	logger.WarnContext(ctx, "rejected file report",
		"file_name", r.FileName,
		"author", r.Author,
		"batch_id", r.BatchID,
		"errors", len(r.Errors),
		"report", b.String(),
	)
	return nil
}
