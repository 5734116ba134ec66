// Package metrics defines the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_orders_created_total",
		Help: "Total number of orders created.",
	})

	OrderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_order_transitions_total",
		Help: "Total number of accepted order status transitions, labelled by target status.",
	}, []string{"status"})

	ConcurrencyConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_concurrency_conflicts_total",
		Help: "Total number of optimistic-concurrency conflicts, labelled by aggregate.",
	}, []string{"aggregate"})

	StalePositionReports = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_stale_position_reports_total",
		Help: "Total number of driver position reports dropped as stale.",
	})

	OffersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_offers_created_total",
		Help: "Total number of dispatch offers made to drivers.",
	})

	OffersResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_offers_resolved_total",
		Help: "Total number of offers leaving the open state, labelled by outcome.",
	}, []string{"outcome"})

	DispatchRoundsEmpty = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_rounds_empty_total",
		Help: "Total number of dispatch rounds that found no candidate driver.",
	})

	EventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_events_published_total",
		Help: "Total number of events appended to the durable log.",
	})

	EventsPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_events_pruned_total",
		Help: "Total number of events removed by retention pruning.",
	})

	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_sessions_active",
		Help: "Number of currently registered observer sessions.",
	})

	SessionsReaped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_sessions_reaped_total",
		Help: "Total number of sessions destroyed by the idle reaper.",
	})

	IndexedDrivers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_indexed_drivers",
		Help: "Number of drivers currently held in the geospatial index.",
	})
)
