// Package scheduling implements C4 (Scheduler/Placer): a pull-model
// scheduler that matches Pending workloads to Healthy, non-draining nodes
// under capability and quota constraints, consulting C5 for preemption
// candidates when no free node satisfies a priority-preempting workload.
//
// Grounded on the teacher's bin-packing scorer (pkg/scheduling in the
// original karpenter-core tree): filter -> score -> tie-break by id, kept
// structurally but re-pointed from "most cost-efficient instance type" to
// "tightest GPU fit."
package scheduling

import (
	"sort"

	"github.com/clawbernetes/gateway/pkg/ids"
	"github.com/clawbernetes/gateway/pkg/priorityclass"
	"github.com/clawbernetes/gateway/pkg/registry"
	"github.com/clawbernetes/gateway/pkg/workload"
)

// Candidate is a schedulable unit: a Pending workload plus the priority
// value that orders it against its peers.
type Candidate struct {
	Workload      *workload.Workload
	PriorityValue uint32
	Policy        priorityclass.Policy
}

// Decision is the outcome of attempting to place one workload.
type Decision struct {
	WorkloadID ids.ID
	NodeID     ids.ID
	Placed     bool
	// NeedsPreemption is set when no node satisfied the request outright
	// and the workload's policy permits consulting C5.
	NeedsPreemption bool
}

// ErrNoCapacity describes the case where no node could satisfy resources and
// the workload's policy does not permit preemption. Place does not return
// it; Place reports that case as a Decision with Placed and NeedsPreemption
// both false.
var ErrNoCapacity = noCapacityError{}

type noCapacityError struct{}

func (noCapacityError) Error() string { return "scheduling: no capacity" }

// Order sorts candidates priority-descending, created_at-ascending (spec.md
// §4.4), so high-priority work never starves behind older low-priority work
// while same-priority work remains FIFO.
func Order(candidates []Candidate) []Candidate {
	out := append([]Candidate(nil), candidates...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PriorityValue != out[j].PriorityValue {
			return out[i].PriorityValue > out[j].PriorityValue
		}
		return out[i].Workload.CreatedAt.Before(out[j].Workload.CreatedAt)
	})
	return out
}

// Filter returns the nodes whose free capacity (capabilities minus used)
// satisfies res. It does not check health or the draining flag; callers
// pass nodes already restricted to Healthy ones (the gateway passes
// Registry.ListHealthy, under which a draining node reports Draining).
func Filter(nodes []*registry.Node, used map[ids.ID]workload.Resources, res workload.Resources) []*registry.Node {
	out := make([]*registry.Node, 0, len(nodes))
	for _, n := range nodes {
		if fits(n, used[n.ID], res) {
			out = append(out, n)
		}
	}
	return out
}

func fits(n *registry.Node, committed workload.Resources, res workload.Resources) bool {
	freeGPUs := uint32(n.Capabilities.TotalGPUs()) - committed.GPUs
	if res.GPUs > freeGPUs {
		return false
	}
	freeMem := n.Capabilities.MemoryMiB - committed.MemoryMiB
	if res.MemoryMiB > freeMem {
		return false
	}
	freeCPU := n.Capabilities.CPUCores - committed.CPUCores
	if res.CPUCores > freeCPU {
		return false
	}
	return true
}

// Score picks the best node for res among candidates, per spec.md §4.4:
// primary = tightest GPU fit (free-GPU count after placement closest to
// zero), secondary = most free memory, tertiary = lowest current workload
// count, tie-break = node id lexicographic.
func Score(candidates []*registry.Node, used map[ids.ID]workload.Resources, res workload.Resources) (*registry.Node, bool) {
	if len(candidates) == 0 {
		return nil, false
	}
	type scored struct {
		node        *registry.Node
		gpusAfter   uint32
		freeMemory  uint64
		workloadCnt int
	}
	scoredNodes := make([]scored, 0, len(candidates))
	for _, n := range candidates {
		committed := used[n.ID]
		freeGPUs := uint32(n.Capabilities.TotalGPUs()) - committed.GPUs
		scoredNodes = append(scoredNodes, scored{
			node:        n,
			gpusAfter:   freeGPUs - res.GPUs,
			freeMemory:  n.Capabilities.MemoryMiB - committed.MemoryMiB - res.MemoryMiB,
			workloadCnt: len(n.Workloads),
		})
	}
	sort.Slice(scoredNodes, func(i, j int) bool {
		a, b := scoredNodes[i], scoredNodes[j]
		if a.gpusAfter != b.gpusAfter {
			return a.gpusAfter < b.gpusAfter
		}
		if a.freeMemory != b.freeMemory {
			return a.freeMemory > b.freeMemory
		}
		if a.workloadCnt != b.workloadCnt {
			return a.workloadCnt < b.workloadCnt
		}
		return a.node.ID.String() < b.node.ID.String()
	})
	return scoredNodes[0].node, true
}

// Place attempts to select a node for a single workload against
// healthyNodes, with used tracking each node's already-committed footprint
// (accumulated across the tick so repeat placements in one tick see a
// consistent, decreasing view of free capacity). On success the caller is
// responsible for updating used, calling C2.TouchWorkloadAssignment, and
// C3.Dispatch.
func Place(c Candidate, healthyNodes []*registry.Node, used map[ids.ID]workload.Resources) Decision {
	res := c.Workload.Spec.Resources
	filtered := Filter(healthyNodes, used, res)
	node, ok := Score(filtered, used, res)
	if !ok {
		return Decision{
			WorkloadID:      c.Workload.ID,
			NeedsPreemption: c.Policy == priorityclass.PreemptLowerPriority,
		}
	}
	return Decision{WorkloadID: c.Workload.ID, NodeID: node.ID, Placed: true}
}
