package engine

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
)

// Run executes assessment cycles for every team on the given interval until
// the context is cancelled. Cycles within one tick run concurrently up to
// the configured limit; a tick that overruns the interval simply delays the
// next one rather than stacking cycles.
func (e *Engine) Run(ctx context.Context, interval time.Duration, maxConcurrent int) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.log.Info("engine running", "interval", interval, "concurrency", maxConcurrent)

	// First sweep immediately so operators see state without waiting a tick.
	e.sweep(ctx, maxConcurrent)

	for {
		select {
		case <-ctx.Done():
			e.log.Info("engine stopping")
			return ctx.Err()
		case <-ticker.C:
			e.sweep(ctx, maxConcurrent)
		}
	}
}

func (e *Engine) sweep(ctx context.Context, maxConcurrent int) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for _, teamID := range e.TeamIDs() {
		teamID := teamID
		g.Go(func() error {
			_, _, err := e.Assess(gctx, teamID)
			switch {
			case err == nil:
			case errors.Is(err, ErrCycleInProgress):
				e.log.Debug("cycle still in progress, skipping", "team", teamID)
			case errors.Is(err, context.Canceled):
			default:
				e.log.Warn("assessment cycle failed", "team", teamID, "err", err)
			}
			// per-team failures never abort the sweep
			return nil
		})
	}
	_ = g.Wait()
}
