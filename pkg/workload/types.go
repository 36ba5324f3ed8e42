package workload

import (
	"time"

	"github.com/clawbernetes/gateway/pkg/ids"
)

// State is a Workload's lifecycle stage (spec.md §4.3).
type State string

const (
	Pending   State = "Pending"
	Starting  State = "Starting"
	Running   State = "Running"
	Stopping  State = "Stopping"
	Stopped   State = "Stopped"
	Completed State = "Completed"
	Failed    State = "Failed"
)

// IsTerminal reports whether s admits no further transitions.
func (s State) IsTerminal() bool {
	switch s {
	case Stopped, Completed, Failed:
		return true
	default:
		return false
	}
}

// Resources is the GPU/memory/CPU footprint a workload consumes.
type Resources struct {
	GPUs      uint32
	MemoryMiB uint64
	CPUCores  uint32
}

// Owner identifies the (tenant, namespace) pair a workload is billed to.
type Owner struct {
	TenantID    ids.ID
	NamespaceID ids.ID
}

// Spec is the immutable submission payload for a workload.
type Spec struct {
	Image         string
	Command       []string
	Env           map[string]string
	Resources     Resources
	PriorityClass string
	Owner         Owner
}

// Workload is the Workload Manager's authoritative record.
type Workload struct {
	ID            ids.ID
	Spec          Spec
	State         State
	AssignedNode  *ids.ID
	CreatedAt     time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
	ExitCode      *int32
	Error         string
	RestartCount  uint32
}

// Filter narrows List results. Zero-value fields are unconstrained.
type Filter struct {
	TenantID    *ids.ID
	NamespaceID *ids.ID
	State       *State
	NodeID      *ids.ID
}

func (f Filter) matches(w *Workload) bool {
	if f.TenantID != nil && w.Spec.Owner.TenantID != *f.TenantID {
		return false
	}
	if f.NamespaceID != nil && w.Spec.Owner.NamespaceID != *f.NamespaceID {
		return false
	}
	if f.State != nil && w.State != *f.State {
		return false
	}
	if f.NodeID != nil {
		if w.AssignedNode == nil || *w.AssignedNode != *f.NodeID {
			return false
		}
	}
	return true
}

// Stream identifies a workload's log stream.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)
