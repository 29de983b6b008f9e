package core

// scheduler.go runs import batches on a fixed interval.
//
// The poller runs a batch immediately on start, then every interval until
// the context is cancelled. A failed batch is logged and retried on the next
// tick; it never stops the poller. Ticks that fire while a batch is still
// running are dropped rather than queued.

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DefaultPollInterval is used when the configured interval is not positive.
const DefaultPollInterval = 5 * time.Minute

// BatchRunner is the part of Service the poller drives.
type BatchRunner interface {
	RunBatch(ctx context.Context) (BatchResult, error)
}

// StartPoller blocks, running batches until ctx is cancelled.
func StartPoller(ctx context.Context, runner BatchRunner, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	slog.Info("import poller started", "interval", interval.String())

	runScheduledBatch(ctx, runner)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("import poller stopped")
			return
		case <-ticker.C:
			runScheduledBatch(ctx, runner)
		}
	}
}

func runScheduledBatch(ctx context.Context, runner BatchRunner) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	res, err := runner.RunBatch(ctx)
	if errors.Is(err, ErrBatchRunning) {
		slog.Info("scheduled batch skipped, previous batch still running")
		return
	}
	if err != nil {
		slog.Error("scheduled batch failed", "batch_id", res.BatchID, "error", err)
		return
	}
	if len(res.Files) > 0 {
		imported, broken := res.Counts()
		slog.Info("scheduled batch completed",
			"batch_id", res.BatchID,
			"imported", imported,
			"broken", broken,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
