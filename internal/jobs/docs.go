// Package jobs provides scheduled background tasks for the dispatch engine.
//
// This package implements cron-based jobs using github.com/robfig/cron/v3
// to handle the periodic sweeps the engine relies on.
//
// # Available Jobs
//
// 1. DispatchJob - Runs every second to offer due driverless orders to nearby drivers
// 2. OfferTimeoutJob - Runs every second to expire offers whose response deadline passed
// 3. SessionReaperJob - Runs every 30 seconds to destroy idle observer sessions
// 4. RetentionPruneJob - Runs every minute to trim the event log to the retained count
//
// # Usage
//
// Jobs are managed through JobManager which provides a unified interface:
//
//	// Create job manager with required dependencies
//	jobManager := jobs.NewJobManager(dispatchHandler, expireHandler, registry,
//		eventRepository, cfg.SessionIdleTimeout, cfg.EventRetention, logger)
//
//	// Start all jobs
//	if err := jobManager.StartAll(); err != nil {
//		log.Fatal("Failed to start jobs:", err)
//	}
//
//	// Stop all jobs when shutting down
//	defer jobManager.StopAll()
//
// # Scheduling
//
// The dispatch and timeout sweeps use the cron expression "* * * * * *" and
// run every second, which keeps offer turnaround near real time. The reaper
// and pruning sweeps are housekeeping and run far less often.
//
// # Error Handling
//
// - Sweep handlers treat an empty batch as success, so every handler error is logged
// - Failed job starts will stop any already running jobs
package jobs
