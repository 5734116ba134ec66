package services

import (
	"math"
	"time"

	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/pkg/errs"
)

// Cruise speeds per vehicle class, in meters per second, used for delivery
// estimates. Deliberately conservative city-traffic figures.
const (
	bicycleSpeedMps    = 4.0
	motorcycleSpeedMps = 9.0
	carSpeedMps        = 7.0

	// handlingBuffer covers pickup, parking and handover on top of travel.
	handlingBuffer = 5 * time.Minute
)

// PlannerSettings are the dispatch tunables. The source material leaves all
// of them open, so they arrive from configuration rather than constants.
type PlannerSettings struct {
	// BaseRadiusMeters is the search radius for an order's first dispatch
	// attempt.
	BaseRadiusMeters float64
	// MaxRadiusMeters caps the widened radius of later attempts.
	MaxRadiusMeters float64
	// OfferTimeout is how long a driver has to answer an offer.
	OfferTimeout time.Duration
	// RetryBackoffBase is the delay before the second dispatch attempt;
	// later attempts double it.
	RetryBackoffBase time.Duration
	// RetryBackoffCap bounds the exponential retry delay.
	RetryBackoffCap time.Duration
}

// Validate checks the settings are usable.
func (s PlannerSettings) Validate() error {
	if s.BaseRadiusMeters <= 0 {
		return errs.NewValueIsInvalidError("baseRadiusMeters")
	}
	if s.MaxRadiusMeters < s.BaseRadiusMeters {
		return errs.NewValueIsInvalidError("maxRadiusMeters")
	}
	if s.OfferTimeout <= 0 {
		return errs.NewValueIsInvalidError("offerTimeout")
	}
	if s.RetryBackoffBase <= 0 {
		return errs.NewValueIsInvalidError("retryBackoffBase")
	}
	if s.RetryBackoffCap < s.RetryBackoffBase {
		return errs.NewValueIsInvalidError("retryBackoffCap")
	}
	return nil
}

// DispatchPlanner is the domain service that turns an order's dispatch
// history into the parameters of its next round: how wide to search, how
// long an offer stays open, when to retry after an empty round, and what
// delivery time to promise once a driver accepts.
type DispatchPlanner struct {
	settings PlannerSettings
}

// NewDispatchPlanner creates a planner with the given tunables.
func NewDispatchPlanner(settings PlannerSettings) (DispatchPlanner, error) {
	if err := settings.Validate(); err != nil {
		return DispatchPlanner{}, err
	}
	return DispatchPlanner{settings: settings}, nil
}

// RadiusForAttempt returns the search radius for a dispatch round: the base
// radius doubled per prior attempt, capped at the configured maximum. An
// order that keeps coming up empty is progressively offered to drivers
// further away rather than starving.
func (p DispatchPlanner) RadiusForAttempt(attempts int) float64 {
	if attempts < 0 {
		attempts = 0
	}
	radius := p.settings.BaseRadiusMeters * math.Pow(2, float64(attempts))
	if radius > p.settings.MaxRadiusMeters {
		return p.settings.MaxRadiusMeters
	}
	return radius
}

// NextAttemptAt returns when an order that found no driver becomes eligible
// for dispatch again: exponential backoff on the attempt count, capped.
func (p DispatchPlanner) NextAttemptAt(now time.Time, attempts int) time.Time {
	if attempts < 0 {
		attempts = 0
	}
	delay := p.settings.RetryBackoffBase << uint(attempts)
	if delay > p.settings.RetryBackoffCap || delay <= 0 {
		delay = p.settings.RetryBackoffCap
	}
	return now.Add(delay)
}

// OfferDeadline returns when an offer created now expires unanswered.
func (p DispatchPlanner) OfferDeadline(now time.Time) time.Time {
	return now.Add(p.settings.OfferTimeout)
}

// EstimateDelivery projects a delivery time from the driver's current
// distance to the destination and its vehicle class.
func (p DispatchPlanner) EstimateDelivery(now time.Time, distanceMeters float64, vehicle driver.VehicleClass) time.Time {
	speed := carSpeedMps
	switch vehicle {
	case driver.Bicycle:
		speed = bicycleSpeedMps
	case driver.Motorcycle:
		speed = motorcycleSpeedMps
	case driver.Car:
		speed = carSpeedMps
	}

	travel := time.Duration(distanceMeters / speed * float64(time.Second))
	return now.Add(travel + handlingBuffer)
}
