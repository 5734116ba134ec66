package eventbus

import (
	"sync"

	"dispatch/internal/core/domain/model/event"
)

// Subscription is one subscriber's ordered, gap-free view of the bus.
// Events arrive on the channel returned by Events; when the channel closes,
// Err reports why: nil after Close, ErrHistoryTruncated when the subscriber
// fell more than the retention window behind, or ErrBusClosed on shutdown.
type Subscription struct {
	bus   *Bus
	scope event.Scope

	mu           sync.Mutex
	pending      []event.Event
	maxPending   int
	lastEnqueued int64
	closed       bool
	err          error

	wake chan struct{}
	quit chan struct{}
	ch   chan event.Event
}

func newSubscription(bus *Bus, scope event.Scope, maxPending int) *Subscription {
	sub := &Subscription{
		bus:          bus,
		scope:        scope,
		maxPending:   maxPending,
		lastEnqueued: -1,
		wake:         make(chan struct{}, 1),
		quit:         make(chan struct{}),
		ch:           make(chan event.Event),
	}
	go sub.pump()
	return sub
}

// Scope returns the subscription's event scope.
func (s *Subscription) Scope() event.Scope {
	return s.scope
}

// Events returns the delivery channel. It is closed when the subscription
// ends; check Err afterwards for the reason.
func (s *Subscription) Events() <-chan event.Event {
	return s.ch
}

// Err returns the terminal error after the delivery channel has closed.
// It is nil when the subscription ended through Close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close ends the subscription and detaches it from the bus.
func (s *Subscription) Close() {
	s.bus.unregister(s)
	s.shutdown(nil)
}

// enqueue hands an event to the subscription's pending queue and reports
// whether the subscription is still live. Never blocks: a queue already
// holding maxPending events means the consumer cannot keep up within the
// retention window, and the subscription is cut off with ErrHistoryTruncated
// instead of growing without bound. The caller holds the bus lock and drops
// a dead subscription from fan-out itself, so enqueue must not call back
// into the bus.
func (s *Subscription) enqueue(e event.Event) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if e.Sequence <= s.lastEnqueued {
		s.mu.Unlock()
		return true
	}
	if len(s.pending) >= s.maxPending {
		s.pending = nil
		s.closed = true
		s.err = ErrHistoryTruncated
		s.mu.Unlock()
		close(s.quit)
		s.signal()
		return false
	}
	s.pending = append(s.pending, e)
	s.lastEnqueued = e.Sequence
	s.mu.Unlock()
	s.signal()
	return true
}

// shutdown terminates the subscription with the given reason. Safe to call
// more than once; only the first reason sticks.
func (s *Subscription) shutdown(reason error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	s.closed = true
	s.err = reason
	s.mu.Unlock()
	close(s.quit)
	s.signal()
}

func (s *Subscription) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// pump drains the pending queue into the delivery channel. A blocked send
// holds only this subscription's goroutine; publishers never wait on a slow
// consumer.
func (s *Subscription) pump() {
	defer close(s.ch)
	for {
		select {
		case <-s.wake:
		case <-s.quit:
			return
		}

		for {
			s.mu.Lock()
			if len(s.pending) == 0 {
				closed := s.closed
				s.mu.Unlock()
				if closed {
					return
				}
				break
			}
			e := s.pending[0]
			s.pending = s.pending[1:]
			s.mu.Unlock()

			select {
			case s.ch <- e:
			case <-s.quit:
				return
			}
		}
	}
}
