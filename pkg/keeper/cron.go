package keeper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Runner sweeps due payments on a cron schedule.
type Runner struct {
	cron     *cron.Cron
	keeper   *Keeper
	schedule string
	logger   *slog.Logger
}

// NewRunner creates a Runner. Sweeps never overlap: a tick that fires while the previous sweep
// is still running is skipped.
func NewRunner(k *Keeper, schedule string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Runner{
		cron:     c,
		keeper:   k,
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the sweep job and starts the scheduler.
func (r *Runner) Start(ctx context.Context) error {
	if _, err := r.cron.AddFunc(r.schedule, func() { r.Sweep(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule keeper sweep %q: %w", r.schedule, err)
	}
	r.logger.Info("Scheduled keeper sweep", "schedule", r.schedule)
	r.cron.Start()
	return nil
}

// Sweep runs one distribution pass.
func (r *Runner) Sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := r.keeper.DistributeDue(ctx); err != nil {
		r.logger.ErrorContext(ctx, "Keeper sweep failed", "error", err)
	}
}

// Stop stops the scheduler. The returned context is done once a running sweep finishes.
func (r *Runner) Stop() context.Context {
	return r.cron.Stop()
}
