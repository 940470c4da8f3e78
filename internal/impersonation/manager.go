package impersonation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/atlas-hq/atlas-console/internal/clock"
	"github.com/atlas-hq/atlas-console/internal/observability"
	"github.com/atlas-hq/atlas-console/internal/platform/coreapi"
)

// API is the slice of the core API the manager needs.
type API interface {
	StartImpersonation(ctx context.Context, targetUserID, reason string) (coreapi.ImpersonationGrant, error)
	EndImpersonation(ctx context.Context, sessionID, endedReason string) error
}

// Locker enforces the one-active-session-per-operator invariant across
// console instances. May be nil in single-instance deployments.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// LockKey builds the lock key for an operator's impersonation slot.
func LockKey(actorID string) string {
	return "impersonation:actor:" + actorID + ":lock"
}

const tickInterval = time.Second

type state struct {
	session Session
	ticker  clock.Ticker
	done    chan struct{}
	stop    sync.Once
}

func (st *state) cancel() {
	st.stop.Do(func() {
		if st.ticker != nil {
			st.ticker.Stop()
		}
		close(st.done)
	})
}

// Manager owns the impersonation session lifecycle per operator.
type Manager struct {
	logger  *slog.Logger
	api     API
	clk     clock.Clock
	ttl     time.Duration
	locker  Locker
	metrics *observability.Metrics

	mu          sync.Mutex
	sessions    map[string]*state
	starting    map[string]bool
	subscribers []chan Event
}

// NewManager constructs a Manager.
func NewManager(logger *slog.Logger, api API, clk clock.Clock, ttl time.Duration, locker Locker, metrics *observability.Metrics) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		logger:   logger,
		api:      api,
		clk:      clk,
		ttl:      ttl,
		locker:   locker,
		metrics:  metrics,
		sessions: make(map[string]*state),
		starting: make(map[string]bool),
	}
}

// Start validates the request locally, then asks the core API to open the
// session. Validation failures are rejected before any network call. On
// remote failure nothing is created: there is never an observable active
// state ahead of server confirmation.
func (m *Manager) Start(ctx context.Context, actorID string, input StartInput) (Session, error) {
	reason := strings.TrimSpace(input.Reason)
	if input.TargetUserID == "" {
		return Session{}, fmt.Errorf("%w: target user is required", ErrValidation)
	}
	if len(reason) < MinReasonLength {
		return Session{}, fmt.Errorf("%w: reason must be at least %d characters", ErrValidation, MinReasonLength)
	}
	if !input.AcknowledgeRisk {
		return Session{}, fmt.Errorf("%w: risk acknowledgment is required", ErrValidation)
	}

	m.mu.Lock()
	if st, ok := m.sessions[actorID]; ok && st.session.Status == StatusActive {
		m.mu.Unlock()
		return st.session, ErrSessionActive
	}
	if m.starting[actorID] {
		m.mu.Unlock()
		return Session{}, ErrSessionActive
	}
	m.starting[actorID] = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.starting, actorID)
		m.mu.Unlock()
	}()

	if m.locker != nil {
		acquired, err := m.locker.Acquire(ctx, LockKey(actorID), m.ttl)
		if err != nil {
			return Session{}, fmt.Errorf("impersonation: acquire lock: %w", err)
		}
		if !acquired {
			return Session{}, ErrSessionActive
		}
	}

	grant, err := m.api.StartImpersonation(ctx, input.TargetUserID, reason)
	if err != nil {
		if m.locker != nil {
			if rerr := m.locker.Release(context.WithoutCancel(ctx), LockKey(actorID)); rerr != nil {
				m.logger.Warn("release impersonation lock", slog.Any("error", rerr))
			}
		}
		return Session{}, err
	}

	startedAt := grant.StartedAt
	if startedAt.IsZero() {
		startedAt = m.clk.Now()
	}
	expiresAt := grant.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = startedAt.Add(m.ttl)
	}
	sess := Session{
		ID:              grant.SessionID,
		ActorID:         actorID,
		TargetUserID:    grant.TargetUserID,
		TargetUserEmail: grant.TargetUserEmail,
		Reason:          reason,
		StartedAt:       startedAt,
		ExpiresAt:       expiresAt,
		Status:          StatusActive,
	}

	st := &state{
		session: sess,
		ticker:  m.clk.NewTicker(tickInterval),
		done:    make(chan struct{}),
	}
	m.mu.Lock()
	m.sessions[actorID] = st
	m.mu.Unlock()

	go m.countdown(actorID, sess.ID, st)

	m.notify(Event{Type: EventStarted, Session: sess})
	return sess, nil
}

// End closes the active session with the manual reason. Remote failure
// holds the session ACTIVE and keeps the banner up: a privileged session
// must not silently appear to end while the server still considers it
// live. Calling End after the session reached a terminal status is a
// no-op returning that terminal session.
func (m *Manager) End(ctx context.Context, actorID string) (Session, error) {
	m.mu.Lock()
	st, ok := m.sessions[actorID]
	if !ok {
		m.mu.Unlock()
		return Session{}, ErrNoSession
	}
	if st.session.Status != StatusActive {
		sess := st.session
		m.mu.Unlock()
		return sess, nil
	}
	sessionID := st.session.ID
	m.mu.Unlock()

	if err := m.api.EndImpersonation(ctx, sessionID, EndedReasonManual); err != nil {
		m.mu.Lock()
		sess := st.session
		m.mu.Unlock()
		return sess, err
	}

	m.mu.Lock()
	// The countdown may have expired the session while the end call was in
	// flight; the first transition out of ACTIVE is authoritative.
	if st.session.Status != StatusActive || st.session.ID != sessionID {
		sess := st.session
		m.mu.Unlock()
		return sess, nil
	}
	st.session.Status = StatusEnded
	st.session.EndedReason = EndedReasonManual
	st.cancel()
	sess := st.session
	m.mu.Unlock()

	m.releaseLock(ctx, actorID)
	m.notify(Event{Type: EventEnded, Session: sess})
	return sess, nil
}

// Session returns the operator's current session, terminal states included.
func (m *Manager) Session(actorID string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.sessions[actorID]
	if !ok {
		return Session{}, false
	}
	return st.session, true
}

// Subscribe registers an observer for session transitions. Delivery is
// best-effort.
func (m *Manager) Subscribe() <-chan Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan Event, 16)
	m.subscribers = append(m.subscribers, ch)
	return ch
}

// Close cancels every countdown. Sessions keep their last status; a timer
// left running past teardown would only ever no-op, but it is still a leak.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range m.sessions {
		st.cancel()
	}
}

func (m *Manager) countdown(actorID, sessionID string, st *state) {
	for {
		select {
		case <-st.done:
			return
		case <-st.ticker.C():
			if !m.clk.Now().Before(st.session.ExpiresAt) {
				m.expire(actorID, sessionID, st)
				return
			}
		}
	}
}

// expire performs the forced EXPIRED transition exactly once. The banner's
// end-of-session flow runs off the emitted event without operator input.
func (m *Manager) expire(actorID, sessionID string, st *state) {
	m.mu.Lock()
	if st.session.Status != StatusActive || st.session.ID != sessionID {
		m.mu.Unlock()
		return
	}
	st.session.Status = StatusExpired
	st.session.EndedReason = EndedReasonExpired
	st.cancel()
	sess := st.session
	m.mu.Unlock()

	m.notify(Event{Type: EventExpired, Session: sess})

	// Best-effort server-side close so the audit entry is written; the
	// worker sweep backstops this if the call is lost.
	ctx, cancelFn := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFn()
	if err := m.api.EndImpersonation(ctx, sessionID, EndedReasonExpired); err != nil {
		m.logger.Warn("close expired impersonation session",
			slog.String("session_id", sessionID),
			slog.Any("error", err))
	}
	m.releaseLock(ctx, actorID)
}

func (m *Manager) releaseLock(ctx context.Context, actorID string) {
	if m.locker == nil {
		return
	}
	if err := m.locker.Release(context.WithoutCancel(ctx), LockKey(actorID)); err != nil {
		m.logger.Warn("release impersonation lock", slog.Any("error", err))
	}
}

func (m *Manager) notify(event Event) {
	m.metrics.ObserveSessionTransition(string(event.Type))
	m.mu.Lock()
	subs := make([]chan Event, len(m.subscribers))
	copy(subs, m.subscribers)
	m.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}
