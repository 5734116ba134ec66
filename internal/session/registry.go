package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"dispatch/internal/core/domain/model/event"
	"dispatch/internal/eventbus"
	"dispatch/internal/metrics"
	"dispatch/internal/pkg/errs"
)

// deliveryBuffer is the per-session channel depth between the pumps and the
// transport writer. Sustained backlog beyond it pushes back into the bus
// subscriptions, which enforce the retention cutoff.
const deliveryBuffer = 64

// ErrSessionNotFound is returned when resyncing an observer whose session
// was never created or has already been reaped.
var ErrSessionNotFound = errors.New("session not found")

// Registry owns every connected observer's session. Connect creates a
// session and hands back consistent snapshots; Resync reconciles a
// reconnecting observer against the retained event history; the reaper
// sweep destroys sessions idle past the configured timeout.
type Registry struct {
	bus    *eventbus.Bus
	source SnapshotSource
	logger *slog.Logger
	clock  func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry on top of the bus and snapshot source.
func NewRegistry(bus *eventbus.Bus, source SnapshotSource, logger *slog.Logger) *Registry {
	return &Registry{
		bus:      bus,
		source:   source,
		logger:   logger.With("component", "session"),
		clock:    time.Now,
		sessions: make(map[string]*Session),
	}
}

func (r *Registry) now() time.Time {
	return r.clock()
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Connect creates a session for the observer, replacing any previous one,
// and returns one consistent snapshot per subscription scope. The session's
// live stream starts strictly after each snapshot's baseline sequence, so
// applying the snapshots and then the stream yields a gap-free view.
func (r *Registry) Connect(ctx context.Context, observerID string, scopes []event.Scope) (*Session, []Snapshot, error) {
	if observerID == "" {
		return nil, nil, errs.NewValueIsRequiredError("observerID")
	}
	if len(scopes) == 0 {
		return nil, nil, errs.NewValueIsRequiredError("scopes")
	}
	for _, scope := range scopes {
		if err := scope.Validate(); err != nil {
			return nil, nil, err
		}
	}

	snapshots := make([]Snapshot, 0, len(scopes))
	baselines := make(map[scopeKey]int64, len(scopes))
	subs := make([]*eventbus.Subscription, 0, len(scopes))
	for _, scope := range scopes {
		snap, err := r.source.Snapshot(ctx, scope)
		if err != nil {
			closeAll(subs)
			return nil, nil, err
		}
		sub, err := r.bus.SubscribeFrom(ctx, scope, snap.BaselineSeq)
		if err != nil {
			closeAll(subs)
			return nil, nil, err
		}
		snapshots = append(snapshots, snap)
		baselines[keyOf(scope)] = snap.BaselineSeq
		subs = append(subs, sub)
	}

	sess := &Session{
		observerID: observerID,
		registry:   r,
		scopes:     append([]event.Scope(nil), scopes...),
	}

	r.mu.Lock()
	old := r.sessions[observerID]
	r.sessions[observerID] = sess
	metrics.SessionsActive.Set(float64(len(r.sessions)))
	r.mu.Unlock()
	if old != nil {
		old.detach()
	}

	sess.attach(subs, baselines, r.now())
	r.logger.Debug("session connected", "observer_id", observerID, "scopes", len(scopes))
	return sess, snapshots, nil
}

// Resync reconciles a reconnecting observer. When lastKnownSeq is still
// inside the retention window the missed range is replayed and no snapshot
// is returned; the replay may legitimately include events the observer
// already saw if it acknowledged an older sequence than it truly received,
// which is safe because events carry absolute state. When lastKnownSeq has
// aged out, fresh snapshots are returned and the session's baseline resets.
func (r *Registry) Resync(ctx context.Context, observerID string, lastKnownSeq int64) (*Session, []Snapshot, error) {
	r.mu.Lock()
	sess, ok := r.sessions[observerID]
	r.mu.Unlock()
	if !ok {
		return nil, nil, ErrSessionNotFound
	}

	sess.detach()
	scopes := sess.Scopes()

	subs := make([]*eventbus.Subscription, 0, len(scopes))
	baselines := make(map[scopeKey]int64, len(scopes))
	truncated := false
	for _, scope := range scopes {
		sub, err := r.bus.SubscribeFrom(ctx, scope, lastKnownSeq)
		if errors.Is(err, eventbus.ErrHistoryTruncated) {
			truncated = true
			break
		}
		if err != nil {
			closeAll(subs)
			return nil, nil, err
		}
		subs = append(subs, sub)
		baselines[keyOf(scope)] = lastKnownSeq
	}

	if !truncated {
		sess.attach(subs, baselines, r.now())
		r.logger.Debug("session resynced", "observer_id", observerID, "since", lastKnownSeq)
		return sess, nil, nil
	}

	// Replay is impossible; cut over to fresh snapshots with a reset baseline.
	closeAll(subs)
	snapshots := make([]Snapshot, 0, len(scopes))
	subs = subs[:0]
	for _, scope := range scopes {
		snap, err := r.source.Snapshot(ctx, scope)
		if err != nil {
			closeAll(subs)
			return nil, nil, err
		}
		sub, err := r.bus.SubscribeFrom(ctx, scope, snap.BaselineSeq)
		if err != nil {
			closeAll(subs)
			return nil, nil, err
		}
		snapshots = append(snapshots, snap)
		baselines[keyOf(scope)] = snap.BaselineSeq
		subs = append(subs, sub)
	}

	sess.attach(subs, baselines, r.now())
	r.logger.Debug("session reset after truncation", "observer_id", observerID)
	return sess, snapshots, nil
}

// Touch records observer activity, e.g. a transport-level heartbeat, so the
// reaper does not collect a quiet but healthy session.
func (r *Registry) Touch(observerID string) error {
	r.mu.Lock()
	sess, ok := r.sessions[observerID]
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	sess.touch(r.now())
	return nil
}

// Disconnect ends the observer's live stream but keeps the session record
// so a prompt reconnect can resync incrementally.
func (r *Registry) Disconnect(observerID string) {
	r.mu.Lock()
	sess, ok := r.sessions[observerID]
	r.mu.Unlock()
	if ok {
		sess.detach()
	}
}

// Remove destroys the observer's session entirely.
func (r *Registry) Remove(observerID string) {
	r.mu.Lock()
	sess, ok := r.sessions[observerID]
	delete(r.sessions, observerID)
	metrics.SessionsActive.Set(float64(len(r.sessions)))
	r.mu.Unlock()
	if ok {
		sess.detach()
	}
}

// ReapIdle destroys every session idle for longer than idleFor and returns
// the observer ids that were collected.
func (r *Registry) ReapIdle(idleFor time.Duration) []string {
	cutoff := r.now().Add(-idleFor)

	r.mu.Lock()
	var victims []*Session
	for id, sess := range r.sessions {
		if sess.LastActiveAt().Before(cutoff) {
			victims = append(victims, sess)
			delete(r.sessions, id)
		}
	}
	metrics.SessionsActive.Set(float64(len(r.sessions)))
	r.mu.Unlock()

	ids := make([]string, 0, len(victims))
	for _, sess := range victims {
		sess.detach()
		ids = append(ids, sess.ObserverID())
	}
	return ids
}

func closeAll(subs []*eventbus.Subscription) {
	for _, sub := range subs {
		sub.Close()
	}
}
