package ports

import (
	"context"

	"dispatch/internal/core/domain/model/event"
)

// EventRepository defines the persistence contract for the append-only event
// log.
//
// Append runs inside the same transaction as the aggregate mutation that
// produced the events, which makes the version bump and the event append
// indivisible: no event is ever observed for a mutation that did not commit,
// and no committed mutation is missing its event. Sequences are assigned by
// storage at append time and are globally strictly increasing.
type EventRepository interface {
	// Append durably records the events and returns them with their
	// assigned sequences, in input order.
	Append(ctx context.Context, events ...event.Event) ([]event.Event, error)

	// ReadSince returns retained events with a sequence strictly greater
	// than sinceSeq, ascending. Returns eventbus.ErrHistoryTruncated via
	// the adapter when events after sinceSeq were already pruned.
	ReadSince(ctx context.Context, sinceSeq int64) ([]event.Event, error)

	// ReadRange returns retained events with fromSeq <= sequence <= toSeq,
	// ascending.
	ReadRange(ctx context.Context, fromSeq, toSeq int64) ([]event.Event, error)

	// Head returns the newest assigned sequence, or 0 when the log is
	// empty.
	Head(ctx context.Context) (int64, error)

	// PruneToCount deletes the oldest events beyond the retained count and
	// returns how many were removed. Run by the retention pruning job.
	PruneToCount(ctx context.Context, retain int) (int64, error)
}
