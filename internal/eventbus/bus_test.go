package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch/internal/core/domain/model/event"
	"dispatch/internal/core/domain/model/kernel"
)

// memLog is an in-memory Log with an explicit prune horizon. Setting readErr
// makes the next range read fail once, like a dropped database connection.
type memLog struct {
	events       []event.Event
	prunedBefore int64
	readErr      error
}

func (l *memLog) ReadSince(_ context.Context, sinceSeq int64) ([]event.Event, error) {
	if sinceSeq+1 < l.prunedBefore {
		return nil, ErrHistoryTruncated
	}
	var out []event.Event
	for _, e := range l.events {
		if e.Sequence > sinceSeq {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *memLog) ReadRange(_ context.Context, fromSeq, toSeq int64) ([]event.Event, error) {
	if l.readErr != nil {
		err := l.readErr
		l.readErr = nil
		return nil, err
	}
	if fromSeq < l.prunedBefore {
		return nil, ErrHistoryTruncated
	}
	var out []event.Event
	for _, e := range l.events {
		if e.Sequence >= fromSeq && e.Sequence <= toSeq {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *memLog) append(events ...event.Event) {
	l.events = append(l.events, events...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func orderEvent(seq int64, id kernel.UUID) event.Event {
	return event.Event{
		Sequence:   seq,
		EntityKind: event.KindOrder,
		EntityID:   id,
		EventType:  event.TypeOrderUpdated,
		Payload:    json.RawMessage(fmt.Sprintf(`{"seq":%d}`, seq)),
		Timestamp:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(seq) * time.Second),
	}
}

func driverEvent(seq int64, id kernel.UUID) event.Event {
	e := orderEvent(seq, id)
	e.EntityKind = event.KindDriver
	e.EventType = event.TypeDriverUpdated
	return e
}

// collect reads exactly n events or fails the test after a timeout.
func collect(t *testing.T, sub *Subscription, n int) []event.Event {
	t.Helper()

	out := make([]event.Event, 0, n)
	for len(out) < n {
		select {
		case e, ok := <-sub.Events():
			require.True(t, ok, "channel closed early: %v", sub.Err())
			out = append(out, e)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d events", len(out), n)
		}
	}
	return out
}

func sequences(events []event.Event) []int64 {
	out := make([]int64, 0, len(events))
	for _, e := range events {
		out = append(out, e.Sequence)
	}
	return out
}

func TestBusSubscribeFrom(t *testing.T) {
	ctx := context.Background()

	t.Run("should replay retained events strictly after sinceSeq", func(t *testing.T) {
		log := &memLog{}
		bus := NewBus(log, 100, 0, testLogger())
		id := kernel.NewUUID()
		e1, e2, e3 := orderEvent(1, id), orderEvent(2, id), orderEvent(3, id)
		log.append(e1, e2, e3)
		bus.Publish(ctx, e1, e2, e3)

		sub, err := bus.SubscribeFrom(ctx, event.ScopeKind(event.KindOrder), 1)
		require.NoError(t, err)
		defer sub.Close()

		got := collect(t, sub, 2)
		assert.Equal(t, []int64{2, 3}, sequences(got))
	})

	t.Run("should deliver live events after replay with no gap or duplicate", func(t *testing.T) {
		log := &memLog{}
		bus := NewBus(log, 100, 0, testLogger())
		id := kernel.NewUUID()
		e1 := orderEvent(1, id)
		log.append(e1)
		bus.Publish(ctx, e1)

		sub, err := bus.SubscribeFrom(ctx, event.ScopeKind(event.KindOrder), 0)
		require.NoError(t, err)
		defer sub.Close()

		e2, e3 := orderEvent(2, id), orderEvent(3, id)
		log.append(e2, e3)
		bus.Publish(ctx, e2, e3)

		got := collect(t, sub, 3)
		assert.Equal(t, []int64{1, 2, 3}, sequences(got))
	})

	t.Run("should fall back to durable log when sinceSeq predates the window", func(t *testing.T) {
		log := &memLog{}
		bus := NewBus(log, 2, 0, testLogger())
		id := kernel.NewUUID()
		for seq := int64(1); seq <= 5; seq++ {
			e := orderEvent(seq, id)
			log.append(e)
			bus.Publish(ctx, e)
		}

		// window holds only 4 and 5 now
		sub, err := bus.SubscribeFrom(ctx, event.ScopeKind(event.KindOrder), 0)
		require.NoError(t, err)
		defer sub.Close()

		got := collect(t, sub, 5)
		assert.Equal(t, []int64{1, 2, 3, 4, 5}, sequences(got))
	})

	t.Run("should fail with ErrHistoryTruncated past the retention horizon", func(t *testing.T) {
		log := &memLog{prunedBefore: 4}
		bus := NewBus(log, 2, 5, testLogger())
		id := kernel.NewUUID()
		log.append(orderEvent(4, id), orderEvent(5, id))

		_, err := bus.SubscribeFrom(ctx, event.ScopeKind(event.KindOrder), 1)

		assert.ErrorIs(t, err, ErrHistoryTruncated)
	})

	t.Run("should filter by entity scope", func(t *testing.T) {
		log := &memLog{}
		bus := NewBus(log, 100, 0, testLogger())
		mine := kernel.NewUUID()
		other := kernel.NewUUID()
		e1, e2, e3 := orderEvent(1, mine), orderEvent(2, other), orderEvent(3, mine)
		log.append(e1, e2, e3)
		bus.Publish(ctx, e1, e2, e3)

		sub, err := bus.SubscribeFrom(ctx, event.ScopeEntity(event.KindOrder, mine), 0)
		require.NoError(t, err)
		defer sub.Close()

		got := collect(t, sub, 2)
		assert.Equal(t, []int64{1, 3}, sequences(got))
	})

	t.Run("should filter by kind scope", func(t *testing.T) {
		log := &memLog{}
		bus := NewBus(log, 100, 0, testLogger())
		e1 := orderEvent(1, kernel.NewUUID())
		e2 := driverEvent(2, kernel.NewUUID())
		log.append(e1, e2)
		bus.Publish(ctx, e1, e2)

		sub, err := bus.SubscribeFrom(ctx, event.ScopeKind(event.KindDriver), 0)
		require.NoError(t, err)
		defer sub.Close()

		got := collect(t, sub, 1)
		assert.Equal(t, []int64{2}, sequences(got))
	})

	t.Run("should reject invalid scope", func(t *testing.T) {
		bus := NewBus(&memLog{}, 100, 0, testLogger())

		_, err := bus.SubscribeFrom(ctx, event.ScopeKind(event.Kind("warehouse")), 0)

		assert.Error(t, err)
	})
}

func TestBusGapRepair(t *testing.T) {
	ctx := context.Background()

	t.Run("should repair out-of-order notification from the durable log", func(t *testing.T) {
		log := &memLog{}
		bus := NewBus(log, 100, 0, testLogger())
		id := kernel.NewUUID()
		e1, e2, e3 := orderEvent(1, id), orderEvent(2, id), orderEvent(3, id)
		log.append(e1, e2, e3)

		sub, err := bus.SubscribeFrom(ctx, event.ScopeKind(event.KindOrder), 0)
		require.NoError(t, err)
		defer sub.Close()

		// handler for 3 commits and notifies before the handlers for 1 and 2
		bus.Publish(ctx, e3)

		got := collect(t, sub, 3)
		assert.Equal(t, []int64{1, 2, 3}, sequences(got))
	})

	t.Run("should hold a notification back until the earlier commit lands", func(t *testing.T) {
		log := &memLog{}
		bus := NewBus(log, 100, 0, testLogger())
		id := kernel.NewUUID()
		e1, e2 := orderEvent(1, id), orderEvent(2, id)

		sub, err := bus.SubscribeFrom(ctx, event.ScopeKind(event.KindOrder), 0)
		require.NoError(t, err)
		defer sub.Close()

		// the handler holding sequence 2 commits and notifies while the
		// one holding sequence 1 is still in flight
		log.append(e2)
		bus.Publish(ctx, e2)
		assert.Equal(t, int64(0), bus.Head())

		log.append(e1)
		bus.Publish(ctx, e1)

		got := collect(t, sub, 2)
		assert.Equal(t, []int64{1, 2}, sequences(got))
	})

	t.Run("should retry gap repair after a transient log error", func(t *testing.T) {
		log := &memLog{}
		bus := NewBus(log, 100, 0, testLogger())
		id := kernel.NewUUID()
		e1, e2, e3, e4 := orderEvent(1, id), orderEvent(2, id), orderEvent(3, id), orderEvent(4, id)

		sub, err := bus.SubscribeFrom(ctx, event.ScopeKind(event.KindOrder), 0)
		require.NoError(t, err)
		defer sub.Close()

		log.append(e1, e2, e3)
		log.readErr = fmt.Errorf("connection reset")
		bus.Publish(ctx, e3)
		assert.Equal(t, int64(0), bus.Head())

		// the next notification retries the repair and drains the backlog
		log.append(e4)
		bus.Publish(ctx, e4)

		got := collect(t, sub, 4)
		assert.Equal(t, []int64{1, 2, 3, 4}, sequences(got))
	})

	t.Run("should cut subscribers over to resync when the missing range was pruned", func(t *testing.T) {
		log := &memLog{prunedBefore: 3}
		bus := NewBus(log, 100, 0, testLogger())
		id := kernel.NewUUID()
		e3 := orderEvent(3, id)

		sub, err := bus.SubscribeFrom(ctx, event.ScopeKind(event.KindOrder), 0)
		require.NoError(t, err)

		log.append(e3)
		bus.Publish(ctx, e3)

		require.Eventually(t, func() bool {
			select {
			case _, ok := <-sub.Events():
				return !ok
			default:
				return false
			}
		}, 2*time.Second, 10*time.Millisecond)
		assert.ErrorIs(t, sub.Err(), ErrHistoryTruncated)

		// the stream resumes at the first surviving sequence
		fresh, err := bus.SubscribeFrom(ctx, event.ScopeKind(event.KindOrder), 2)
		require.NoError(t, err)
		defer fresh.Close()
		got := collect(t, fresh, 1)
		assert.Equal(t, []int64{3}, sequences(got))
	})

	t.Run("should force resync rather than stall when a hole outlives retention", func(t *testing.T) {
		log := &memLog{}
		bus := NewBus(log, 2, 0, testLogger())
		id := kernel.NewUUID()

		sub, err := bus.SubscribeFrom(ctx, event.ScopeKind(event.KindOrder), 0)
		require.NoError(t, err)

		// sequence 1 never commits; the stream keeps moving without it
		for seq := int64(2); seq <= 4; seq++ {
			e := orderEvent(seq, id)
			log.append(e)
			bus.Publish(ctx, e)
		}

		require.Eventually(t, func() bool {
			select {
			case _, ok := <-sub.Events():
				return !ok
			default:
				return false
			}
		}, 2*time.Second, 10*time.Millisecond)
		assert.ErrorIs(t, sub.Err(), ErrHistoryTruncated)
		assert.Equal(t, int64(4), bus.Head())
	})

	t.Run("should drop duplicate notifications", func(t *testing.T) {
		log := &memLog{}
		bus := NewBus(log, 100, 0, testLogger())
		id := kernel.NewUUID()
		e1 := orderEvent(1, id)
		log.append(e1)

		sub, err := bus.SubscribeFrom(ctx, event.ScopeKind(event.KindOrder), 0)
		require.NoError(t, err)
		defer sub.Close()

		bus.Publish(ctx, e1)
		bus.Publish(ctx, e1)
		e2 := orderEvent(2, id)
		log.append(e2)
		bus.Publish(ctx, e2)

		got := collect(t, sub, 2)
		assert.Equal(t, []int64{1, 2}, sequences(got))
	})
}

func TestBusBackpressure(t *testing.T) {
	ctx := context.Background()

	t.Run("should cut off a consumer that falls past retention", func(t *testing.T) {
		log := &memLog{}
		bus := NewBus(log, 2, 0, testLogger())
		id := kernel.NewUUID()

		sub, err := bus.SubscribeFrom(ctx, event.ScopeKind(event.KindOrder), 0)
		require.NoError(t, err)

		for seq := int64(1); seq <= 10; seq++ {
			e := orderEvent(seq, id)
			log.append(e)
			bus.Publish(ctx, e)
		}

		// never read; the channel must close instead of buffering forever
		require.Eventually(t, func() bool {
			select {
			case _, ok := <-sub.Events():
				return !ok
			default:
				return false
			}
		}, 2*time.Second, 10*time.Millisecond)
		assert.ErrorIs(t, sub.Err(), ErrHistoryTruncated)
	})
}

func TestSubscriptionClose(t *testing.T) {
	ctx := context.Background()

	t.Run("should close the channel with nil error", func(t *testing.T) {
		bus := NewBus(&memLog{}, 100, 0, testLogger())
		sub, err := bus.SubscribeFrom(ctx, event.ScopeKind(event.KindOrder), 0)
		require.NoError(t, err)

		sub.Close()

		require.Eventually(t, func() bool {
			select {
			case _, ok := <-sub.Events():
				return !ok
			default:
				return false
			}
		}, 2*time.Second, 10*time.Millisecond)
		assert.NoError(t, sub.Err())
	})

	t.Run("should stop delivery after close", func(t *testing.T) {
		log := &memLog{}
		bus := NewBus(log, 100, 0, testLogger())
		sub, err := bus.SubscribeFrom(ctx, event.ScopeKind(event.KindOrder), 0)
		require.NoError(t, err)
		sub.Close()

		e1 := orderEvent(1, kernel.NewUUID())
		log.append(e1)
		bus.Publish(ctx, e1)

		assert.Equal(t, int64(1), bus.Head())
	})
}

func TestBusClose(t *testing.T) {
	t.Run("should end subscriptions and refuse new ones", func(t *testing.T) {
		ctx := context.Background()
		bus := NewBus(&memLog{}, 100, 0, testLogger())
		sub, err := bus.SubscribeFrom(ctx, event.ScopeKind(event.KindOrder), 0)
		require.NoError(t, err)

		bus.Close()

		require.Eventually(t, func() bool {
			select {
			case _, ok := <-sub.Events():
				return !ok
			default:
				return false
			}
		}, 2*time.Second, 10*time.Millisecond)

		_, err = bus.SubscribeFrom(ctx, event.ScopeKind(event.KindOrder), 0)
		assert.ErrorIs(t, err, ErrBusClosed)
	})
}
