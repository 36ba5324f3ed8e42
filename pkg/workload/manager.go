// Package workload implements C3 (Workload Manager): the workload lifecycle
// state machine, per-workload log ring buffers, and the namespace admission
// two-phase commit paired around submission and terminal transitions.
//
// Grounded on the teacher's node-lifecycle controller (pkg/controllers/state
// and pkg/controllers/termination): a map-of-id-to-record guarded by a
// single RWMutex, state transitions validated against an explicit table
// before any mutation, clock.Clock injected for testability.
package workload

import (
	"sort"
	"sync"

	"k8s.io/utils/clock"

	"github.com/clawbernetes/gateway/pkg/ids"
	"github.com/clawbernetes/gateway/pkg/tenancy"
)

// Admitter is the subset of C1 the Workload Manager depends on. Modeled as
// an interface so tests can substitute a fake without pulling in the full
// tenancy.Registry lock discipline.
type Admitter interface {
	RecordAdmit(namespaceID ids.ID, resources tenancy.Resources) error
	RecordRelease(namespaceID ids.ID, resources tenancy.Resources) error
}

// Manager owns the WorkloadId -> Workload mapping. It is acquired after
// the Node Registry in the system's lock order (spec.md §5).
type Manager struct {
	mu         sync.RWMutex
	clock      clock.Clock
	admitter   Admitter
	ringLines  int
	maxLineLen int
	workloads  map[ids.ID]*Workload
	logs       map[ids.ID]*logBuffers
}

// New constructs a Manager backed by admitter for namespace admission,
// using the default log ring dimensions (spec.md §3).
func New(clk clock.Clock, admitter Admitter) *Manager {
	return &Manager{
		clock:      clk,
		admitter:   admitter,
		ringLines:  DefaultRingLines,
		maxLineLen: DefaultMaxLineBytes,
		workloads:  make(map[ids.ID]*Workload),
		logs:       make(map[ids.ID]*logBuffers),
	}
}

// WithLogDimensions overrides the default ring buffer capacity and maximum
// line length. It applies to workloads submitted after the call; buffers of
// already-submitted workloads keep the dimensions they were created with.
func (m *Manager) WithLogDimensions(ringLines, maxLineBytes int) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ringLines = ringLines
	m.maxLineLen = maxLineBytes
	return m
}

func toResources(r Resources) tenancy.Resources {
	return tenancy.Resources{GPUs: r.GPUs, MemoryMiB: r.MemoryMiB, CPUCores: r.CPUCores}
}

// Submit admits and reserves spec against its namespace quota immediately,
// enqueuing a new Pending workload. The reservation is committed here, not
// deferred to dispatch, so a still-Pending workload already counts against
// quota and a second submission racing it sees the reservation (spec.md §8
// Scenario 2); RecordRelease on terminal transition is this reservation's
// only release path.
func (m *Manager) Submit(spec Spec) (ids.ID, error) {
	if err := m.admitter.RecordAdmit(spec.Owner.NamespaceID, toResources(spec.Resources)); err != nil {
		return ids.Nil, &AdmissionError{Cause: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	w := &Workload{
		ID:        ids.New(),
		Spec:      spec,
		State:     Pending,
		CreatedAt: m.clock.Now().UTC(),
	}
	m.workloads[w.ID] = w
	m.logs[w.ID] = newLogBuffers(m.ringLines, m.maxLineLen)
	return w.ID, nil
}

// Dispatch assigns nodeID to a placed workload and transitions it
// Pending -> Starting. The namespace admission reservation was already
// committed at Submit; dispatch does not touch it.
func (m *Manager) Dispatch(id, nodeID ids.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workloads[id]
	if !ok {
		return &NotFoundError{WorkloadID: id.String()}
	}
	n := nodeID
	w.AssignedNode = &n
	return m.transitionLocked(w, Starting)
}

// Cancel issues the cancellation semantics of spec.md §4.3: Pending moves
// directly to Stopped; Starting/Running move to Stopping pending the
// node's terminal confirmation.
func (m *Manager) Cancel(id ids.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workloads[id]
	if !ok {
		return &NotFoundError{WorkloadID: id.String()}
	}
	switch w.State {
	case Pending:
		return m.transitionLocked(w, Stopped)
	case Starting, Running:
		return m.transitionLocked(w, Stopping)
	default:
		return &InvalidTransitionError{From: w.State, To: Stopped}
	}
}

// ForceTerminal drives id straight to Stopped regardless of its current
// state, bypassing the normal adjacency table in transitions.go. This is
// the forced half of eviction's grace-expiry path (spec.md §4.5): the node
// may never have acknowledged the stop order, so the usual
// Running -> Stopping -> Stopped path cannot be assumed. A no-op if id is
// already terminal.
func (m *Manager) ForceTerminal(id ids.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workloads[id]
	if !ok {
		return &NotFoundError{WorkloadID: id.String()}
	}
	if w.State.IsTerminal() {
		return nil
	}
	now := m.clock.Now().UTC()
	w.State = Stopped
	w.FinishedAt = &now
	w.AssignedNode = nil
	return m.admitter.RecordRelease(w.Spec.Owner.NamespaceID, toResources(w.Spec.Resources))
}

// UpdateState applies a validated state transition. Invalid transitions
// are rejected without mutating state. Terminal transitions release the
// namespace admission and clear the assigned-node backreference.
func (m *Manager) UpdateState(id ids.ID, newState State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workloads[id]
	if !ok {
		return &NotFoundError{WorkloadID: id.String()}
	}
	return m.transitionLocked(w, newState)
}

// SetExit records exit_code/error alongside a Running -> Completed|Failed
// transition, per spec.md §4.3.
func (m *Manager) SetExit(id ids.ID, newState State, exitCode int32, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workloads[id]
	if !ok {
		return &NotFoundError{WorkloadID: id.String()}
	}
	if err := m.transitionLocked(w, newState); err != nil {
		return err
	}
	if newState == Completed {
		code := int32(0)
		w.ExitCode = &code
	} else if newState == Failed {
		if exitCode != 0 {
			code := exitCode
			w.ExitCode = &code
		}
		w.Error = errMsg
	}
	return nil
}

func (m *Manager) transitionLocked(w *Workload, to State) error {
	if !isAllowedTransition(w.State, to) {
		return &InvalidTransitionError{From: w.State, To: to}
	}
	now := m.clock.Now().UTC()
	w.State = to
	if to == Running {
		t := now
		w.StartedAt = &t
	}
	if to.IsTerminal() {
		t := now
		w.FinishedAt = &t
		w.AssignedNode = nil
		if releaseErr := m.admitter.RecordRelease(w.Spec.Owner.NamespaceID, toResources(w.Spec.Resources)); releaseErr != nil {
			return releaseErr
		}
	}
	return nil
}

// Get returns a copy of the workload record for id.
func (m *Manager) Get(id ids.ID) (*Workload, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workloads[id]
	if !ok {
		return nil, &NotFoundError{WorkloadID: id.String()}
	}
	return cloneWorkload(w), nil
}

// List returns workloads matching filter, ordered created_at-ascending.
// Priority values are not known to this package, so the result is not
// ordered by priority; the placement order of spec.md §4.4 is applied by
// scheduling.Order.
func (m *Manager) List(filter Filter) []*Workload {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Workload, 0, len(m.workloads))
	for _, w := range m.workloads {
		if filter.matches(w) {
			out = append(out, cloneWorkload(w))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// AppendLogs appends lines to a workload's stream ring buffer.
func (m *Manager) AppendLogs(id ids.ID, stream Stream, lines []string) error {
	m.mu.RLock()
	lb, ok := m.logs[id]
	m.mu.RUnlock()
	if !ok {
		return &NotFoundError{WorkloadID: id.String()}
	}
	lb.append(stream, lines)
	return nil
}

// ReadLogs returns the last tail lines of a workload's stream (or all
// buffered lines if tail <= 0).
func (m *Manager) ReadLogs(id ids.ID, stream Stream, tail int) ([]string, error) {
	m.mu.RLock()
	lb, ok := m.logs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{WorkloadID: id.String()}
	}
	return lb.read(stream, tail), nil
}

// Remove deletes a workload record and frees its log buffers. Only valid
// for terminal workloads.
func (m *Manager) Remove(id ids.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workloads[id]
	if !ok {
		return &NotFoundError{WorkloadID: id.String()}
	}
	if !w.State.IsTerminal() {
		return &InvalidTransitionError{From: w.State, To: Stopped}
	}
	delete(m.workloads, id)
	delete(m.logs, id)
	return nil
}

func cloneWorkload(w *Workload) *Workload {
	cp := *w
	cp.Spec.Command = append([]string(nil), w.Spec.Command...)
	if w.Spec.Env != nil {
		cp.Spec.Env = make(map[string]string, len(w.Spec.Env))
		for k, v := range w.Spec.Env {
			cp.Spec.Env[k] = v
		}
	}
	if w.AssignedNode != nil {
		n := *w.AssignedNode
		cp.AssignedNode = &n
	}
	if w.StartedAt != nil {
		t := *w.StartedAt
		cp.StartedAt = &t
	}
	if w.FinishedAt != nil {
		t := *w.FinishedAt
		cp.FinishedAt = &t
	}
	if w.ExitCode != nil {
		c := *w.ExitCode
		cp.ExitCode = &c
	}
	return &cp
}
