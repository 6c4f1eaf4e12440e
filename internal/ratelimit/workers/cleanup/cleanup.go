// Package cleanup garbage-collects expired rate records on a fixed interval.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"sayarat/internal/ratelimit/store/record"
)

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

type Worker struct {
	store    record.Store
	logger   *slog.Logger
	interval time.Duration
}

func New(store record.Store, opts ...Option) *Worker {
	worker := &Worker{
		store:    store,
		logger:   slog.Default(),
		interval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(worker)
	}
	return worker
}

// Start sweeps until the context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			removed, err := w.RunOnce(ctx)
			if err != nil {
				w.logger.Error("rate_record_sweep_failed",
					"error", err,
					"duration_ms", time.Since(start).Milliseconds(),
				)
				continue
			}
			w.logger.Info("rate_record_sweep_completed",
				"records_removed", removed,
				"duration_ms", time.Since(start).Milliseconds(),
			)

		case <-ctx.Done():
			w.logger.Info("rate record sweep worker stopping", "reason", ctx.Err())
			return ctx.Err()
		}
	}
}

// RunOnce executes a single sweep. Logging is handled by the caller (Start).
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	return w.store.Sweep(ctx, time.Now())
}
