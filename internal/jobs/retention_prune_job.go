package jobs

import (
	"context"
	"log/slog"

	"dispatch/internal/core/ports"
	"dispatch/internal/metrics"

	"github.com/robfig/cron/v3"
)

// RetentionPruneJob trims the event log down to the retained count. Runs
// every minute; observers whose resync cursor falls behind the pruned horizon
// are cut over to fresh snapshots on their next reconnect.
type RetentionPruneJob struct {
	events ports.EventRepository
	retain int
	cron   *cron.Cron
	logger *slog.Logger
}

// NewRetentionPruneJob creates the retention pruning job.
func NewRetentionPruneJob(events ports.EventRepository, retain int, logger *slog.Logger) *RetentionPruneJob {
	return &RetentionPruneJob{
		events: events,
		retain: retain,
		cron:   cron.New(cron.WithSeconds()),
		logger: logger.With("component", "retention_prune_job"),
	}
}

// Start begins the pruning sweep, running every minute.
func (j *RetentionPruneJob) Start() error {
	_, err := j.cron.AddFunc("0 * * * * *", func() {
		ctx := context.Background()

		pruned, pruneErr := j.events.PruneToCount(ctx, j.retain)
		if pruneErr != nil {
			j.logger.ErrorContext(ctx, "Event retention pruning failed", "error", pruneErr)
			return
		}
		if pruned > 0 {
			metrics.EventsPruned.Add(float64(pruned))
			j.logger.InfoContext(ctx, "Pruned events past retention", "count", pruned, "retain", j.retain)
		}
	})
	if err != nil {
		return err
	}

	j.cron.Start()
	j.logger.InfoContext(context.Background(), "Retention prune job started (running every minute)")
	return nil
}

// Stop stops the pruning sweep.
func (j *RetentionPruneJob) Stop() {
	j.cron.Stop()
	j.logger.InfoContext(context.Background(), "Retention prune job stopped")
}
