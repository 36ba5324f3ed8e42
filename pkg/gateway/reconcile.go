package gateway

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/clawbernetes/gateway/pkg/events"
	"github.com/clawbernetes/gateway/pkg/ids"
	"github.com/clawbernetes/gateway/pkg/metrics"
	"github.com/clawbernetes/gateway/pkg/preemption"
	"github.com/clawbernetes/gateway/pkg/priorityclass"
	"github.com/clawbernetes/gateway/pkg/registry"
	"github.com/clawbernetes/gateway/pkg/scheduling"
	"github.com/clawbernetes/gateway/pkg/workload"
)

// Reconcile runs one scheduler tick (spec.md §4.4): every Pending workload
// is ordered priority-descending/created_at-ascending and attempted against
// Healthy, non-draining nodes; a workload whose policy permits preemption
// and that found no free capacity triggers a single-node preemption
// attempt before being left Pending for the next tick.
func (g *Gateway) Reconcile(ctx context.Context) {
	timer := prometheus.NewTimer(metrics.SchedulerTickDurationSeconds)
	defer timer.ObserveDuration()

	pending := g.Workloads.List(workload.Filter{State: statePtr(workload.Pending)})
	if len(pending) == 0 {
		return
	}

	candidates := make([]scheduling.Candidate, 0, len(pending))
	for _, w := range pending {
		class := g.classFor(w.Spec.PriorityClass)
		candidates = append(candidates, scheduling.Candidate{Workload: w, PriorityValue: class.Value, Policy: class.Policy})
	}
	ordered := scheduling.Order(candidates)

	healthyNodes := g.Nodes.ListHealthy()
	used := g.committedByNode()

	for _, c := range ordered {
		decision := scheduling.Place(c, healthyNodes, used)
		if decision.Placed {
			g.commitPlacement(c.Workload, decision.NodeID, used)
			metrics.SchedulerPlacementsTotal.WithLabelValues("placed").Inc()
			continue
		}
		if !decision.NeedsPreemption {
			metrics.SchedulerPlacementsTotal.WithLabelValues("no_capacity").Inc()
			continue
		}
		if g.attemptPreemptAndPlace(ctx, c, healthyNodes, used) {
			metrics.SchedulerPlacementsTotal.WithLabelValues("placed_after_preemption").Inc()
		} else {
			metrics.SchedulerPlacementsTotal.WithLabelValues("no_capacity").Inc()
		}
	}
}

func (g *Gateway) classFor(name string) priorityclass.Class {
	if name == "" {
		name = priorityclass.Default
	}
	class, err := g.Priority.Get(name)
	if err != nil {
		class, _ = g.Priority.Get(priorityclass.Default)
	}
	return class
}

// committedByNode sums the resource footprint of every non-terminal
// workload already assigned to a node, the baseline Place scores against.
func (g *Gateway) committedByNode() map[ids.ID]workload.Resources {
	used := make(map[ids.ID]workload.Resources)
	for _, w := range g.Workloads.List(workload.Filter{}) {
		if w.AssignedNode == nil || w.State.IsTerminal() {
			continue
		}
		r := used[*w.AssignedNode]
		r.GPUs += w.Spec.Resources.GPUs
		r.MemoryMiB += w.Spec.Resources.MemoryMiB
		r.CPUCores += w.Spec.Resources.CPUCores
		used[*w.AssignedNode] = r
	}
	return used
}

func (g *Gateway) commitPlacement(w *workload.Workload, nodeID ids.ID, used map[ids.ID]workload.Resources) {
	if err := g.Workloads.Dispatch(w.ID, nodeID); err != nil {
		g.Log.Error(err, "dispatch failed after placement", "workload", w.ID, "node", nodeID)
		return
	}
	if err := g.Nodes.TouchWorkloadAssignment(nodeID, w.ID, true); err != nil {
		g.Log.Error(err, "failed to record assignment on node", "workload", w.ID, "node", nodeID)
	}
	r := used[nodeID]
	r.GPUs += w.Spec.Resources.GPUs
	r.MemoryMiB += w.Spec.Resources.MemoryMiB
	r.CPUCores += w.Spec.Resources.CPUCores
	used[nodeID] = r

	if err := g.Dispatcher.SendStart(nodeID, w.ID, w.Spec); err != nil {
		g.Log.Error(err, "failed to send StartWorkload", "workload", w.ID, "node", nodeID)
	}

	if updated, err := g.Workloads.Get(w.ID); err == nil {
		if err := g.Store.PutWorkload(updated); err != nil {
			g.Log.Error(err, "failed to persist workload after placement", "workload", w.ID)
		}
	}
	g.Bus.Publish(events.Event{Kind: events.WorkloadAssigned, Subject: w.ID.String(), Data: nodeID.String()})
}

// attemptPreemptAndPlace looks for a single node whose eligible lower-
// priority victims, once evicted, would free enough capacity for c. It
// tries nodes in ListHealthy order and stops at the first that satisfies
// the shortfall, so the fewest victims are disturbed for the common case
// of one undersized node.
func (g *Gateway) attemptPreemptAndPlace(ctx context.Context, c scheduling.Candidate, nodes []*registry.Node, used map[ids.ID]workload.Resources) bool {
	res := c.Workload.Spec.Resources
	engineCfg := g.Config.ToEngineConfig()
	strategy := preemption.Strategy(g.Config.Preemption.Strategy)

	for _, n := range nodes {
		shortfall := shortfallFor(n, used[n.ID], res)
		if shortfall == (workload.Resources{}) {
			continue // node already has room; Place would have taken it
		}
		runningOnNode := g.runningCandidatesOnNode(n.ID)
		if len(runningOnNode) == 0 {
			continue
		}
		nodeID := n.ID
		result := preemption.SelectWithConfig(preemption.Request{
			RequiredResources: shortfall,
			RequesterPriority: c.PriorityValue,
			NodeFilter:        &nodeID,
			Strategy:          strategy,
		}, runningOnNode, g.Clock.Now().UTC(), engineCfg)
		if !result.SatisfiesRequest {
			continue
		}
		if err := g.Evictor.EvictAll(ctx, result.Victims); err != nil {
			g.Log.Error(err, "preemption eviction reported failures", "node", nodeID)
		}
		for range result.Victims {
			metrics.PreemptionVictimsTotal.WithLabelValues(string(strategy)).Inc()
		}
		refreshed := g.committedByNode()
		decision := scheduling.Place(c, []*registry.Node{n}, refreshed)
		if decision.Placed {
			g.commitPlacement(c.Workload, decision.NodeID, refreshed)
			for k, v := range refreshed {
				used[k] = v
			}
			return true
		}
	}
	return false
}

func (g *Gateway) runningCandidatesOnNode(nodeID ids.ID) []preemption.Candidate {
	running := g.Workloads.List(workload.Filter{State: statePtr(workload.Running), NodeID: &nodeID})
	out := make([]preemption.Candidate, 0, len(running))
	for _, w := range running {
		class := g.classFor(w.Spec.PriorityClass)
		startedAt := w.CreatedAt
		if w.StartedAt != nil {
			startedAt = *w.StartedAt
		}
		out = append(out, preemption.Candidate{
			Workload:      w,
			NodeID:        nodeID,
			PriorityValue: class.Value,
			Policy:        string(class.Policy),
			StartedAt:     startedAt,
		})
	}
	return out
}

func shortfallFor(n *registry.Node, committed, req workload.Resources) workload.Resources {
	var out workload.Resources
	if freeGPUs := uint32(n.Capabilities.TotalGPUs()) - committed.GPUs; req.GPUs > freeGPUs {
		out.GPUs = req.GPUs - freeGPUs
	}
	if freeMem := n.Capabilities.MemoryMiB - committed.MemoryMiB; req.MemoryMiB > freeMem {
		out.MemoryMiB = req.MemoryMiB - freeMem
	}
	if freeCPU := n.Capabilities.CPUCores - committed.CPUCores; req.CPUCores > freeCPU {
		out.CPUCores = req.CPUCores - freeCPU
	}
	return out
}

func statePtr(s workload.State) *workload.State { return &s }
