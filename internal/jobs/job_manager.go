package jobs

import (
	"fmt"
	"log/slog"
	"time"

	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/ports"
	"dispatch/internal/session"
)

// JobManager coordinates all scheduled jobs in the application.
// Provides a unified interface to start and stop all background jobs.
type JobManager struct {
	dispatchJob       *DispatchJob
	offerTimeoutJob   *OfferTimeoutJob
	sessionReaperJob  *SessionReaperJob
	retentionPruneJob *RetentionPruneJob
}

// NewJobManager creates a new job manager with all required jobs.
func NewJobManager(
	dispatchHandler commands.DispatchOrdersCommandHandler,
	expireHandler commands.ExpireOffersCommandHandler,
	registry *session.Registry,
	events ports.EventRepository,
	sessionIdleTimeout time.Duration,
	eventRetention int,
	logger *slog.Logger,
) *JobManager {
	return &JobManager{
		dispatchJob:       NewDispatchJob(dispatchHandler, logger),
		offerTimeoutJob:   NewOfferTimeoutJob(expireHandler, logger),
		sessionReaperJob:  NewSessionReaperJob(registry, sessionIdleTimeout, logger),
		retentionPruneJob: NewRetentionPruneJob(events, eventRetention, logger),
	}
}

// StartAll starts all scheduled jobs.
// Returns an error if any job fails to start.
func (jm *JobManager) StartAll() error {
	started := make([]interface{ Stop() }, 0, 4)
	stopStarted := func() {
		for _, job := range started {
			job.Stop()
		}
	}

	if err := jm.offerTimeoutJob.Start(); err != nil {
		return fmt.Errorf("failed to start offer timeout job: %w", err)
	}
	started = append(started, jm.offerTimeoutJob)

	if err := jm.dispatchJob.Start(); err != nil {
		stopStarted()
		return fmt.Errorf("failed to start dispatch job: %w", err)
	}
	started = append(started, jm.dispatchJob)

	if err := jm.sessionReaperJob.Start(); err != nil {
		stopStarted()
		return fmt.Errorf("failed to start session reaper job: %w", err)
	}
	started = append(started, jm.sessionReaperJob)

	if err := jm.retentionPruneJob.Start(); err != nil {
		stopStarted()
		return fmt.Errorf("failed to start retention prune job: %w", err)
	}

	return nil
}

// StopAll stops all scheduled jobs gracefully.
func (jm *JobManager) StopAll() {
	jm.retentionPruneJob.Stop()
	jm.sessionReaperJob.Stop()
	jm.dispatchJob.Stop()
	jm.offerTimeoutJob.Stop()
}
