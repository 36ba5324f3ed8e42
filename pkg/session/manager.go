package session

import (
	"sync"

	"k8s.io/utils/clock"

	"github.com/clawbernetes/gateway/pkg/events"
	"github.com/clawbernetes/gateway/pkg/ids"
	"github.com/clawbernetes/gateway/pkg/metrics"
)

// ParseFailureThreshold is the count of consecutive frame parse failures
// that escalates a ProtocolError into session teardown (spec.md §4.7:
// "only transport-level errors (parse failure counts exceeding threshold,
// close frame) terminate it").
const ParseFailureThreshold = 5

// Manager tracks live sessions and their disconnect bookkeeping. It does
// not own the socket read/write loops (those belong to the transport
// layer composing this package); it owns session lifecycle state only.
type Manager struct {
	mu       sync.RWMutex
	clock    clock.Clock
	bus      *events.Bus
	sessions map[ids.ID]*sessionState
}

type sessionState struct {
	session       *Session
	parseFailures int
}

// NewManager constructs an empty session Manager.
func NewManager(clk clock.Clock, bus *events.Bus) *Manager {
	return &Manager{clock: clk, bus: bus, sessions: make(map[ids.ID]*sessionState)}
}

// Open registers a new Connected session.
func (m *Manager) Open() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now().UTC()
	sess := &Session{
		SessionID:     ids.New(),
		State:         Connected,
		ConnectedAt:   now,
		LastMessageAt: now,
	}
	m.sessions[sess.SessionID] = &sessionState{session: sess}
	return sess
}

// Touch records that a message was received, preserving per-session
// ordering of heartbeats/updates (spec.md §5).
func (m *Manager) Touch(sessionID ids.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.sessions[sessionID]; ok {
		st.session.LastMessageAt = m.clock.Now().UTC()
	}
}

// RecordParseFailure increments the session's consecutive-parse-failure
// counter and reports whether it has now crossed ParseFailureThreshold.
func (m *Manager) RecordParseFailure(sessionID ids.ID) (shouldTerminate bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.sessions[sessionID]
	if !ok {
		return true
	}
	st.parseFailures++
	metrics.SessionParseFailuresTotal.Inc()
	return st.parseFailures >= ParseFailureThreshold
}

// ResetParseFailures clears the counter after a successfully parsed frame.
func (m *Manager) ResetParseFailures(sessionID ids.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.sessions[sessionID]; ok {
		st.parseFailures = 0
	}
}

// BeginDisconnect transitions a session to Disconnecting, the cooperative
// shutdown signal the read-task checks at the next message boundary.
func (m *Manager) BeginDisconnect(sessionID ids.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.sessions[sessionID]
	if !ok {
		return &NotFoundError{SessionID: sessionID.String()}
	}
	if !isAllowedTransition(st.session.State, Disconnecting) {
		return &InvalidTransitionError{From: st.session.State, To: Disconnecting}
	}
	st.session.State = Disconnecting
	return nil
}

// Close finalizes a session as Disconnected. If the session was
// Registered, the caller (the transport composition root) is responsible
// for calling C2.Unregister; workloads assigned to that node are left
// alone to transition via their own next update, per spec.md §4.7 (they
// do not auto-terminate on disconnect).
func (m *Manager) Close(sessionID ids.ID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.sessions[sessionID]
	if !ok {
		return nil, &NotFoundError{SessionID: sessionID.String()}
	}
	st.session.State = Disconnected
	delete(m.sessions, sessionID)
	if st.session.NodeID != nil {
		m.bus.Publish(events.Event{Kind: events.NodeUnregistered, Subject: st.session.NodeID.String()})
	}
	return st.session, nil
}

// Get returns the current state of sessionID.
func (m *Manager) Get(sessionID ids.ID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.sessions[sessionID]
	if !ok {
		return nil, &NotFoundError{SessionID: sessionID.String()}
	}
	cp := *st.session
	return &cp, nil
}

// NotFoundError reports a lookup against an unknown session id.
type NotFoundError struct{ SessionID string }

func (e *NotFoundError) Error() string { return "session: " + e.SessionID + " not found" }

// InvalidTransitionError reports a rejected session state transition.
type InvalidTransitionError struct{ From, To State }

func (e *InvalidTransitionError) Error() string {
	return "session: invalid transition " + string(e.From) + " -> " + string(e.To)
}
