package jobs

import (
	"context"
	"log/slog"

	"dispatch/internal/core/application/usecases/commands"

	"github.com/robfig/cron/v3"
)

// OfferTimeoutJob expires offers whose response deadline has passed. Runs
// every second so a timed-out offer frees its order and driver promptly for
// the next dispatch sweep.
type OfferTimeoutJob struct {
	handler commands.ExpireOffersCommandHandler
	cron    *cron.Cron
	logger  *slog.Logger
}

// NewOfferTimeoutJob creates the offer timeout job.
func NewOfferTimeoutJob(handler commands.ExpireOffersCommandHandler, logger *slog.Logger) *OfferTimeoutJob {
	return &OfferTimeoutJob{
		handler: handler,
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger.With("component", "offer_timeout_job"),
	}
}

// Start begins the offer timeout sweep, running every second.
func (j *OfferTimeoutJob) Start() error {
	_, err := j.cron.AddFunc("* * * * * *", func() {
		ctx := context.Background()
		cmd := commands.NewExpireOffersCommand()

		if err := j.handler.Handle(ctx, cmd); err != nil {
			j.logger.ErrorContext(ctx, "Offer timeout sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	j.cron.Start()
	j.logger.InfoContext(context.Background(), "Offer timeout job started (running every second)")
	return nil
}

// Stop stops the offer timeout sweep.
func (j *OfferTimeoutJob) Stop() {
	j.cron.Stop()
	j.logger.InfoContext(context.Background(), "Offer timeout job stopped")
}
