package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"dispatch/internal/core/domain/model/event"
	"dispatch/internal/metrics"
)

// ErrHistoryTruncated is returned when a replay is requested from before the
// retention horizon. The caller must fall back to a full-state snapshot
// instead of incremental replay.
var ErrHistoryTruncated = errors.New("event history truncated")

// ErrBusClosed is returned when subscribing to a bus that has been shut down.
var ErrBusClosed = errors.New("event bus is closed")

// Log is the durable event log the bus replays from. Events are durably
// appended and sequenced by the mutation's own transaction before they reach
// the bus, so the log is always at or ahead of the bus's in-memory window.
type Log interface {
	// ReadSince returns retained events with a sequence strictly greater
	// than sinceSeq, in ascending order. Returns ErrHistoryTruncated when
	// events after sinceSeq have already been pruned.
	ReadSince(ctx context.Context, sinceSeq int64) ([]event.Event, error)
	// ReadRange returns retained events with fromSeq <= sequence <= toSeq,
	// in ascending order. Returns ErrHistoryTruncated when part of the
	// range has been pruned.
	ReadRange(ctx context.Context, fromSeq, toSeq int64) ([]event.Event, error)
}

// Bus fans committed events out to in-process subscribers and retains a
// bounded in-memory window for incremental replay.
//
// Durability is not the bus's job: the event repository appends and sequences
// each event inside the same transaction as the aggregate mutation, and the
// command handler notifies the bus only after commit. Notifications can still
// arrive out of sequence order, so the bus appends strictly in sequence:
// an event ahead of the expected next one waits in the pending buffer until
// the hole below it is filled, either by the missing notification or by a
// read of the durable log. The retained window is therefore always
// contiguous, and no committed event is ever skipped.
//
// Retention is bounded by a configured count. A subscriber that falls more
// than the retention window behind is cut off with ErrHistoryTruncated
// rather than force-fed an unbounded backlog.
type Bus struct {
	log       Log
	logger    *slog.Logger
	retention int

	mu      sync.Mutex
	window  []event.Event
	nextSeq int64
	pending map[int64]event.Event
	subs    map[*Subscription]struct{}
	closed  bool
}

// NewBus creates a bus replaying from log, retaining up to retention events
// in memory. The first published event is expected to carry headSeq+1.
func NewBus(log Log, retention int, headSeq int64, logger *slog.Logger) *Bus {
	if retention < 1 {
		retention = 1
	}
	return &Bus{
		log:       log,
		logger:    logger.With("component", "eventbus"),
		retention: retention,
		nextSeq:   headSeq + 1,
		pending:   make(map[int64]event.Event),
		subs:      make(map[*Subscription]struct{}),
	}
}

// Head returns the sequence of the newest event the bus has seen, or the
// boot baseline when nothing has been published yet.
func (b *Bus) Head() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextSeq - 1
}

// Publish hands committed events to the bus for fan-out. Events must already
// carry their durably assigned sequences. Out-of-order arrival is tolerated:
// already-seen sequences are dropped, and a sequence ahead of the expected
// next one is held back until every event below it has been appended, so the
// window never develops a hole and no committed event is lost.
func (b *Bus) Publish(ctx context.Context, events ...event.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	for _, e := range events {
		if e.Sequence < b.nextSeq {
			continue
		}
		b.pending[e.Sequence] = e
	}
	b.drainPending(ctx)
}

// drainPending appends pending events strictly in sequence order. A hole at
// nextSeq means a notification has not arrived yet; the durable log is
// consulted once per call, and when the missing event is not committed there
// either, the drain stops and leaves everything buffered for the publish
// that closes the hole. nextSeq only ever advances over an appended event,
// never over a hole. Called with the bus locked.
func (b *Bus) drainPending(ctx context.Context) {
	consulted := false
	for len(b.pending) > 0 {
		if e, ok := b.pending[b.nextSeq]; ok {
			delete(b.pending, b.nextSeq)
			b.append(e)
			continue
		}
		if len(b.pending) > b.retention {
			// The hole has stalled the stream for a whole retention
			// window. Give up on replaying across it and make every
			// subscriber resync from a snapshot instead.
			b.restartAt(b.lowestPending())
			continue
		}
		if consulted {
			break
		}
		consulted = true
		if !b.fillFromLog(ctx) {
			break
		}
	}
}

// fillFromLog reads the missing range from the durable log into the pending
// buffer. Reports whether the drain can make progress; a transient read
// error or a still-uncommitted hole leaves the buffer untouched until the
// next notification retries. Called with the bus locked.
func (b *Bus) fillFromLog(ctx context.Context) bool {
	upTo := b.highestPending()
	missing, err := b.log.ReadRange(ctx, b.nextSeq, upTo)
	if errors.Is(err, ErrHistoryTruncated) {
		// The missing range was pruned before the bus ever saw it.
		b.restartAt(b.lowestPending())
		return true
	}
	if err != nil {
		b.logger.Error("gap repair failed, retrying on the next notification",
			"from", b.nextSeq, "to", upTo, "error", err)
		return false
	}

	for _, e := range missing {
		if e.Sequence >= b.nextSeq {
			b.pending[e.Sequence] = e
		}
	}
	if _, ok := b.pending[b.nextSeq]; !ok {
		// The transaction holding the next sequence has not committed
		// yet; its own notification will close the hole.
		return false
	}
	return true
}

// restartAt abandons continuity: every live subscription is cut off with
// ErrHistoryTruncated so its session falls back to a snapshot resync, and
// the window restarts at seq. Called with the bus locked.
func (b *Bus) restartAt(seq int64) {
	b.logger.Warn("live window lost continuity, forcing snapshot resync",
		"resume_seq", seq, "subscribers", len(b.subs))
	for sub := range b.subs {
		sub.shutdown(ErrHistoryTruncated)
	}
	b.subs = make(map[*Subscription]struct{})
	b.window = nil
	b.nextSeq = seq
}

func (b *Bus) lowestPending() int64 {
	var lowest int64
	for seq := range b.pending {
		if lowest == 0 || seq < lowest {
			lowest = seq
		}
	}
	return lowest
}

func (b *Bus) highestPending() int64 {
	var highest int64
	for seq := range b.pending {
		if seq > highest {
			highest = seq
		}
	}
	return highest
}

// append adds one event to the window and fans it out. Called with the bus
// locked; the event's sequence must equal nextSeq.
func (b *Bus) append(e event.Event) {
	b.window = append(b.window, e)
	if len(b.window) > b.retention {
		b.window = b.window[len(b.window)-b.retention:]
	}
	b.nextSeq = e.Sequence + 1
	metrics.EventsPublished.Inc()

	for sub := range b.subs {
		if sub.scope.Matches(e) {
			if !sub.enqueue(e) {
				delete(b.subs, sub)
			}
		}
	}
}

// SubscribeFrom creates a subscription that first replays every retained
// event in scope with a sequence strictly greater than sinceSeq, then stays
// live, with no gap and no duplicate for the lifetime of the subscription.
//
// Replay older than the in-memory window falls through to the durable log;
// replay older than the log's retention fails with ErrHistoryTruncated and
// the caller must take a fresh snapshot instead.
func (b *Bus) SubscribeFrom(ctx context.Context, scope event.Scope, sinceSeq int64) (*Subscription, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}

	windowStart := b.nextSeq
	if len(b.window) > 0 {
		windowStart = b.window[0].Sequence
	}

	if sinceSeq >= windowStart-1 {
		sub := b.register(scope)
		for _, e := range b.window {
			if e.Sequence > sinceSeq && scope.Matches(e) {
				sub.enqueue(e)
			}
		}
		b.mu.Unlock()
		return sub, nil
	}
	b.mu.Unlock()

	// The requested start predates the in-memory window; replay the older
	// range from the durable log, then splice in whatever the window has
	// accumulated since the read. The log read happens unlocked, so the
	// window can only have grown past the read's last sequence, never
	// diverged from it.
	replay, err := b.log.ReadSince(ctx, sinceSeq)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}

	sub := b.register(scope)
	lastSeq := sinceSeq
	for _, e := range replay {
		if scope.Matches(e) {
			sub.enqueue(e)
		}
		lastSeq = e.Sequence
	}
	for _, e := range b.window {
		if e.Sequence > lastSeq && scope.Matches(e) {
			sub.enqueue(e)
		}
	}
	return sub, nil
}

// register creates and tracks a subscription. Called with the bus locked.
func (b *Bus) register(scope event.Scope) *Subscription {
	sub := newSubscription(b, scope, b.retention)
	b.subs[sub] = struct{}{}
	return sub
}

// unregister drops a subscription from fan-out.
func (b *Bus) unregister(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, sub)
}

// Close shuts the bus down and closes every active subscription.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.subs = make(map[*Subscription]struct{})
	b.closed = true
	b.mu.Unlock()

	for _, sub := range subs {
		sub.shutdown(nil)
	}
}
