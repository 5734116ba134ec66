// Package session tracks connected observers and reconciles their view of
// the system against the authoritative event history.
//
// The Registry owns every Session. Connect delivers a consistent snapshot
// per subscription scope plus the sequence baseline the snapshot is current
// as of; the live stream then continues strictly after that baseline.
// Resync on reconnect replays the missed range when it is still retained,
// or falls back to a fresh snapshot with a reset baseline when it is not.
//
// Delivery is at-least-once across reconnects and exactly-once within one
// unbroken connection: each session tracks the highest delivered sequence
// per subscription and drops anything at or below it. Events carry absolute
// state, so the occasional re-delivery after a reconnect is harmless.
//
// Sessions idle past a configurable timeout are destroyed by a recurring
// reaper sweep.
package session
