package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"dispatch/internal/core/domain/model/event"
	"dispatch/internal/eventbus"
)

// Snapshot is the full current state of every entity in one scope, together
// with the event sequence the state is consistent with. A client applies the
// snapshot and then consumes events strictly after BaselineSeq.
type Snapshot struct {
	Scope       event.Scope       `json:"scope"`
	States      []json.RawMessage `json:"states"`
	BaselineSeq int64             `json:"baseline_seq"`
}

// SnapshotSource produces consistent scope snapshots. Implementations read
// current entity state and the event head inside one storage transaction so
// the baseline sequence matches the returned states exactly.
type SnapshotSource interface {
	Snapshot(ctx context.Context, scope event.Scope) (Snapshot, error)
}

// Delivery is one event pushed to a connected observer, tagged with the
// subscription scope it matched.
type Delivery struct {
	Scope event.Scope `json:"scope"`
	Event event.Event `json:"event"`
}

type scopeKey struct {
	kind event.Kind
	id   string
}

func keyOf(scope event.Scope) scopeKey {
	k := scopeKey{kind: scope.Kind}
	if !scope.IsKindWide() {
		k.id = scope.ID.String()
	}
	return k
}

// Session is one connected observer's delivery pipeline. It merges the
// observer's subscriptions into a single ordered-per-scope stream and tracks
// the highest delivered sequence per subscription, so an unbroken connection
// never sees the same event twice.
//
// A Session is owned exclusively by the Registry.
type Session struct {
	observerID string
	registry   *Registry

	mu           sync.Mutex
	scopes       []event.Scope
	subs         []*eventbus.Subscription
	highest      map[scopeKey]int64
	lastActiveAt time.Time
	attached     bool
	truncated    bool

	out  chan Delivery
	quit chan struct{}
	// wg counts the current attachment's pumps. Each attachment gets its
	// own WaitGroup: a resync detaches and re-attaches back to back, and
	// the previous attachment's drain goroutine may still be inside Wait
	// when the new pumps call Add.
	wg *sync.WaitGroup
}

// ObserverID returns the observer this session belongs to.
func (s *Session) ObserverID() string {
	return s.observerID
}

// Scopes returns the subscription scopes the session was created with.
func (s *Session) Scopes() []event.Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.Scope, len(s.scopes))
	copy(out, s.scopes)
	return out
}

// Deliveries returns the merged event stream. The channel closes when the
// connection ends; Truncated reports whether the observer fell behind the
// retention window and must resync.
func (s *Session) Deliveries() <-chan Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out
}

// Truncated reports whether the stream was cut because the observer fell
// past the retention horizon. The observer must call Registry.Resync, which
// will hand it a fresh snapshot.
func (s *Session) Truncated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.truncated
}

// LastActiveAt returns the time of the last delivery or lifecycle action.
func (s *Session) LastActiveAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActiveAt
}

// attach wires the session to a set of live bus subscriptions, one per
// scope, replacing any previous attachment. Baselines seed the per-scope
// dedupe watermarks. Called with the session unattached.
func (s *Session) attach(subs []*eventbus.Subscription, baselines map[scopeKey]int64, now time.Time) {
	out := make(chan Delivery, deliveryBuffer)
	quit := make(chan struct{})
	wg := &sync.WaitGroup{}

	s.mu.Lock()
	s.subs = subs
	s.highest = baselines
	s.lastActiveAt = now
	s.attached = true
	s.truncated = false
	s.out = out
	s.quit = quit
	s.wg = wg
	s.mu.Unlock()

	for _, sub := range subs {
		wg.Add(1)
		go s.pump(sub, wg)
	}
	go s.closeWhenDrained(wg, out, quit)
}

// closeWhenDrained closes the delivery channel once every pump for this
// attachment has returned.
func (s *Session) closeWhenDrained(wg *sync.WaitGroup, out chan Delivery, quit chan struct{}) {
	wg.Wait()
	s.closeQuit(quit)
	close(out)
}

// closeQuit closes the attachment's quit channel exactly once. Both detach
// and the drain goroutine can race to end an attachment.
func (s *Session) closeQuit(quit chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-quit:
	default:
		close(quit)
	}
}

// pump forwards one subscription into the merged stream, dropping anything
// at or below the scope's delivered watermark.
func (s *Session) pump(sub *eventbus.Subscription, wg *sync.WaitGroup) {
	defer wg.Done()
	key := keyOf(sub.Scope())

	for e := range sub.Events() {
		s.mu.Lock()
		if e.Sequence <= s.highest[key] {
			s.mu.Unlock()
			continue
		}
		s.highest[key] = e.Sequence
		s.lastActiveAt = s.registry.now()
		out, quit := s.out, s.quit
		s.mu.Unlock()

		select {
		case out <- Delivery{Scope: sub.Scope(), Event: e}:
		case <-quit:
			sub.Close()
			return
		}
	}

	if sub.Err() != nil {
		s.mu.Lock()
		s.truncated = true
		s.mu.Unlock()
		s.detachOthers(sub)
	}
}

// detachOthers closes the sibling subscriptions after one of them was cut
// off, so the observer resyncs all scopes from one consistent point.
func (s *Session) detachOthers(cut *eventbus.Subscription) {
	s.mu.Lock()
	subs := s.subs
	s.mu.Unlock()
	for _, sub := range subs {
		if sub != cut {
			sub.Close()
		}
	}
}

// detach closes the live subscriptions, ending the delivery stream. The
// session record itself survives for resync until the reaper collects it.
func (s *Session) detach() {
	s.mu.Lock()
	if !s.attached {
		s.mu.Unlock()
		return
	}
	s.attached = false
	subs := s.subs
	s.subs = nil
	quit := s.quit
	wg := s.wg
	s.mu.Unlock()

	s.closeQuit(quit)
	for _, sub := range subs {
		sub.Close()
	}
	wg.Wait()
}

// watermarks returns a copy of the per-scope delivered sequences.
func (s *Session) watermarks() map[scopeKey]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[scopeKey]int64, len(s.highest))
	for k, v := range s.highest {
		out[k] = v
	}
	return out
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActiveAt = now
	s.mu.Unlock()
}
