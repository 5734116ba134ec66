package cmd

import "time"

// Config carries everything the composition root needs: database
// connectivity, the HTTP port and the dispatch tunables. All values come
// from the environment; main parses them before wiring.
type Config struct {
	HTTPPort   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string

	// Dispatch tunables.
	BaseRadiusMeters float64
	MaxRadiusMeters  float64
	OfferTimeout     time.Duration
	RetryBackoffBase time.Duration
	RetryBackoffCap  time.Duration
	// BatchLimit bounds the orders and offers taken per sweep round.
	BatchLimit     int
	CandidateLimit int

	// Synchronization tunables.
	EventRetention     int
	SessionIdleTimeout time.Duration
	GeoCellSizeMeters  float64
}
