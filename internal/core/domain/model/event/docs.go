// Package event defines the immutable event records produced by accepted
// mutations, the subscription scopes used to select them, and the payload
// builders that snapshot aggregates into wire-ready JSON.
//
// Exactly one event is produced per accepted mutation. The event repository
// assigns the sequence number when the record is appended inside the same
// transaction as the aggregate's version bump, so no event is ever observed
// for a mutation that did not commit and no committed mutation is missing
// its event.
//
// Payloads describe absolute entity state rather than deltas. A consumer
// that re-applies the same event twice ends up in the same state as one
// that applied it once, which is what makes at-least-once delivery across
// reconnects safe.
package event
