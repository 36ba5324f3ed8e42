package preemption

import (
	"time"

	"github.com/clawbernetes/gateway/pkg/ids"
	"github.com/clawbernetes/gateway/pkg/workload"
)

// Strategy selects which victim-ordering a preemption request uses.
type Strategy string

const (
	LowestPriority  Strategy = "LowestPriority"
	ShortestRunning Strategy = "ShortestRunning"
	LowestCost      Strategy = "LowestCost"
	MostResources   Strategy = "MostResources"
	Balanced        Strategy = "Balanced"
)

// Request is the input to Select (spec.md §4.5).
type Request struct {
	RequiredResources workload.Resources
	RequesterPriority uint32
	NodeFilter        *ids.ID // restrict candidates to this node, if set
	MaxCost           *float64
	Strategy          Strategy
}

// Candidate is a Running workload eligible to be considered as a victim.
type Candidate struct {
	Workload      *workload.Workload
	NodeID        ids.ID
	PriorityValue uint32
	Policy        string // "Never" or "PreemptLowerPriority"; Never is never eligible
	StartedAt     time.Time
	Cost          float64 // preemption_cost, strategy-defined unit
}

// Result is the outcome of Select: the chosen victims and whether they
// collectively satisfy the request.
type Result struct {
	Victims          []Candidate
	SatisfiesRequest bool
	TotalCost        float64
	Freed            workload.Resources
}

// EvictionFailure reports a single victim's eviction that did not succeed;
// aggregated into the caller's result rather than propagated (spec.md §7).
type EvictionFailure struct {
	WorkloadID ids.ID
	Reason     string
}

func (e EvictionFailure) Error() string {
	return "preemption: eviction of " + e.WorkloadID.String() + " failed: " + e.Reason
}
