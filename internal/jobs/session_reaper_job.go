package jobs

import (
	"context"
	"log/slog"
	"time"

	"dispatch/internal/metrics"
	"dispatch/internal/session"

	"github.com/robfig/cron/v3"
)

// SessionReaperJob destroys observer sessions that have been idle past the
// configured timeout. Runs every 30 seconds; a reaped observer has to
// reconnect with a fresh snapshot.
type SessionReaperJob struct {
	registry    *session.Registry
	idleTimeout time.Duration
	cron        *cron.Cron
	logger      *slog.Logger
}

// NewSessionReaperJob creates the session reaper job.
func NewSessionReaperJob(registry *session.Registry, idleTimeout time.Duration, logger *slog.Logger) *SessionReaperJob {
	return &SessionReaperJob{
		registry:    registry,
		idleTimeout: idleTimeout,
		cron:        cron.New(cron.WithSeconds()),
		logger:      logger.With("component", "session_reaper_job"),
	}
}

// Start begins the reaper sweep, running every 30 seconds.
func (j *SessionReaperJob) Start() error {
	_, err := j.cron.AddFunc("*/30 * * * * *", func() {
		ctx := context.Background()

		reaped := j.registry.ReapIdle(j.idleTimeout)
		if len(reaped) > 0 {
			metrics.SessionsReaped.Add(float64(len(reaped)))
			j.logger.InfoContext(ctx, "Reaped idle sessions", "count", len(reaped), "observer_ids", reaped)
		}
	})
	if err != nil {
		return err
	}

	j.cron.Start()
	j.logger.InfoContext(context.Background(), "Session reaper job started (running every 30 seconds)")
	return nil
}

// Stop stops the reaper sweep.
func (j *SessionReaperJob) Stop() {
	j.cron.Stop()
	j.logger.InfoContext(context.Background(), "Session reaper job stopped")
}
