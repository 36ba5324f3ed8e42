// Package registry implements C2 (Node Registry): registered nodes,
// heartbeat-driven health derivation, and the capability index the
// scheduler reads from directly (it never caches capability state).
//
// Grounded on the teacher's cluster state tracker (pkg/controllers/state),
// adapted from "nodes known to the cloudprovider" to "nodes known to the
// gateway via an open session"; the single-RWMutex-per-registry idiom and
// clock.Clock injection are kept verbatim.
package registry

import (
	"sort"
	"sync"

	"github.com/mitchellh/hashstructure/v2"
	"golang.org/x/exp/maps"
	"k8s.io/utils/clock"

	"github.com/clawbernetes/gateway/pkg/ids"
	"github.com/clawbernetes/gateway/pkg/metrics"
)

// Registry is the single source of truth for node capability and health.
// It is acquired after Tenancy and before the Workload Manager in the
// system's lock order (spec.md §5).
type Registry struct {
	mu         sync.RWMutex
	clock      clock.Clock
	thresholds Thresholds
	nodes      map[ids.ID]*Node
	// capHash detects a capability change across a re-registration; the
	// result is Register's second return value, which the session router
	// uses to decide whether to publish NodeRegistered.
	capHash map[ids.ID]uint64
}

// New constructs an empty Registry with the default health thresholds.
func New(clk clock.Clock) *Registry {
	return &Registry{
		clock:      clk,
		thresholds: DefaultThresholds(),
		nodes:      make(map[ids.ID]*Node),
		capHash:    make(map[ids.ID]uint64),
	}
}

// WithThresholds overrides the default health-derivation thresholds.
func (r *Registry) WithThresholds(t Thresholds) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.thresholds = t
	return r
}

// Register enrolls nodeID with name and capabilities. Re-registration of a
// known id is idempotent: capability fields are refreshed, last_heartbeat
// is set to now, and existing workload assignments are preserved (spec.md
// §4.2) so a reconnect after a transient disconnect never loses placement.
func (r *Registry) Register(nodeID ids.ID, name string, caps Capabilities) (*Node, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now().UTC()

	hash, _ := hashstructure.Hash(caps, hashstructure.FormatV2, nil)

	if existing, ok := r.nodes[nodeID]; ok {
		changed := r.capHash[nodeID] != hash
		existing.Name = name
		existing.Capabilities = caps
		existing.LastHeartbeat = now
		r.capHash[nodeID] = hash
		return cloneNode(existing), changed, nil
	}

	n := &Node{
		ID:            nodeID,
		Name:          name,
		Capabilities:  caps,
		RegisteredAt:  now,
		LastHeartbeat: now,
		Workloads:     make(map[ids.ID]struct{}),
	}
	r.nodes[nodeID] = n
	r.capHash[nodeID] = hash
	return cloneNode(n), true, nil
}

// Unregister removes a node entirely, discarding its workload assignments
// (the Workload Manager is responsible for reacting to the session drop).
func (r *Registry) Unregister(nodeID ids.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.nodes[nodeID]; !ok {
		return &NotFoundError{NodeID: nodeID.String()}
	}
	delete(r.nodes, nodeID)
	delete(r.capHash, nodeID)
	return nil
}

// Heartbeat records liveness for nodeID at the current instant.
func (r *Registry) Heartbeat(nodeID ids.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[nodeID]
	if !ok {
		return &NotFoundError{NodeID: nodeID.String()}
	}
	n.LastHeartbeat = r.clock.Now().UTC()
	return nil
}

// Get returns a copy of the node record for nodeID.
func (r *Registry) Get(nodeID ids.ID) (*Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[nodeID]
	if !ok {
		return nil, &NotFoundError{NodeID: nodeID.String()}
	}
	return cloneNode(n), nil
}

// Health returns the derived health of nodeID at the current instant.
func (r *Registry) Health(nodeID ids.ID) (Health, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[nodeID]
	if !ok {
		return "", &NotFoundError{NodeID: nodeID.String()}
	}
	return r.thresholds.Derive(n, r.clock.Now().UTC()), nil
}

// ListHealthy returns copies of all nodes currently deriving Healthy,
// ordered by node id for determinism (the scheduler's tie-break, spec.md
// §4.4, depends on a stable ordering).
func (r *Registry) ListHealthy() []*Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	now := r.clock.Now().UTC()
	out := make([]*Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		if r.thresholds.Derive(n, now) == Healthy {
			out = append(out, cloneNode(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// List returns copies of every registered node regardless of health,
// ordered by node id, for the GET /nodes external interface (spec.md §6).
func (r *Registry) List() []*Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, cloneNode(n))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// SetDraining toggles a node's draining flag.
func (r *Registry) SetDraining(nodeID ids.ID, draining bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[nodeID]
	if !ok {
		return &NotFoundError{NodeID: nodeID.String()}
	}
	n.Draining = draining
	return nil
}

// TouchWorkloadAssignment records or clears a workload assignment mirror
// on nodeID. The registry holds only the id-reference (spec.md §3
// Ownership); the Workload Manager owns the authoritative record.
func (r *Registry) TouchWorkloadAssignment(nodeID, workloadID ids.ID, present bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[nodeID]
	if !ok {
		return &NotFoundError{NodeID: nodeID.String()}
	}
	if present {
		n.Workloads[workloadID] = struct{}{}
	} else {
		delete(n.Workloads, workloadID)
	}
	return nil
}

// Summary returns per-health-class node counts at the current instant.
func (r *Registry) Summary() Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	now := r.clock.Now().UTC()
	var s Summary
	nodeIDs := maps.Keys(r.nodes)
	sort.Slice(nodeIDs, func(i, j int) bool { return nodeIDs[i].String() < nodeIDs[j].String() })
	for _, id := range nodeIDs {
		switch r.thresholds.Derive(r.nodes[id], now) {
		case Healthy:
			s.Healthy++
		case Unhealthy:
			s.Unhealthy++
		case Offline:
			s.Offline++
		case Draining:
			s.Draining++
		}
		s.Total++
	}
	metrics.NodesByHealth.WithLabelValues(string(Healthy)).Set(float64(s.Healthy))
	metrics.NodesByHealth.WithLabelValues(string(Unhealthy)).Set(float64(s.Unhealthy))
	metrics.NodesByHealth.WithLabelValues(string(Offline)).Set(float64(s.Offline))
	metrics.NodesByHealth.WithLabelValues(string(Draining)).Set(float64(s.Draining))
	return s
}

func cloneNode(n *Node) *Node {
	cp := *n
	cp.Capabilities.GPUs = append([]GPU(nil), n.Capabilities.GPUs...)
	cp.Workloads = make(map[ids.ID]struct{}, len(n.Workloads))
	for id := range n.Workloads {
		cp.Workloads[id] = struct{}{}
	}
	return &cp
}
