// Package preemption implements C5: victim selection and two-phase
// eviction to satisfy high-priority demand that the scheduler could not
// place outright.
//
// Grounded on the teacher's disruption/consolidation scorer (pkg/controllers
// in the original karpenter-core tree), which ranks nodes for voluntary
// termination by a similarly pluggable scoring strategy; re-pointed here
// from "which node to drain" to "which Running workload to evict."
package preemption

import (
	"sort"
	"time"

	"github.com/clawbernetes/gateway/pkg/workload"
)

// Eligible filters candidates to the catalog Select may choose from:
// Running workloads whose priority is strictly below the requester's and
// whose policy is not Never (system-critical is categorically safe).
func Eligible(candidates []Candidate, requesterPriority uint32) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Policy == "Never" {
			continue
		}
		if c.PriorityValue >= requesterPriority {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Select runs the configured strategy over the eligible catalog and
// greedily accumulates victims until the request is satisfied, the set is
// exhausted, or MaxCost would be exceeded (spec.md §4.5). It applies no
// MinPriorityDifference/MaxVictims caps; use SelectWithConfig for those.
func Select(req Request, catalog []Candidate, now time.Time) Result {
	return SelectWithConfig(req, catalog, now, Config{})
}

// SelectWithConfig is Select with the supplemented PreemptionConfig knobs
// (min_priority_difference, max_victims) applied from original_source/'s
// claw-preemption/src/lib.rs.
func SelectWithConfig(req Request, catalog []Candidate, now time.Time, cfg Config) Result {
	eligible := EligibleWithConfig(catalog, req.RequesterPriority, cfg)
	if req.NodeFilter != nil {
		filtered := make([]Candidate, 0, len(eligible))
		for _, c := range eligible {
			if c.NodeID == *req.NodeFilter {
				filtered = append(filtered, c)
			}
		}
		eligible = filtered
	}

	ordered := order(eligible, req.Strategy, now)

	var result Result
	for _, c := range ordered {
		if satisfied(result.Freed, req.RequiredResources) {
			break
		}
		if cfg.MaxVictims > 0 && uint32(len(result.Victims)) >= cfg.MaxVictims {
			break
		}
		if req.MaxCost != nil && result.TotalCost+c.Cost > *req.MaxCost {
			continue
		}
		result.Victims = append(result.Victims, c)
		result.TotalCost += c.Cost
		result.Freed.GPUs += c.Workload.Spec.Resources.GPUs
		result.Freed.MemoryMiB += c.Workload.Spec.Resources.MemoryMiB
		result.Freed.CPUCores += c.Workload.Spec.Resources.CPUCores
	}
	result.SatisfiesRequest = satisfied(result.Freed, req.RequiredResources)
	return result
}

func satisfied(freed, required workload.Resources) bool {
	return freed.GPUs >= required.GPUs &&
		freed.MemoryMiB >= required.MemoryMiB &&
		freed.CPUCores >= required.CPUCores
}

func order(candidates []Candidate, strategy Strategy, now time.Time) []Candidate {
	out := append([]Candidate(nil), candidates...)
	switch strategy {
	case ShortestRunning:
		sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	case LowestCost:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Cost < out[j].Cost })
	case MostResources:
		sort.SliceStable(out, func(i, j int) bool { return magnitude(out[i]) > magnitude(out[j]) })
	case Balanced:
		sort.SliceStable(out, func(i, j int) bool { return balancedScore(out[i], out, now) > balancedScore(out[j], out, now) })
	case LowestPriority, "":
		fallthrough
	default:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].PriorityValue != out[j].PriorityValue {
				return out[i].PriorityValue < out[j].PriorityValue
			}
			return out[i].StartedAt.After(out[j].StartedAt)
		})
	}
	return out
}

func magnitude(c Candidate) uint64 {
	r := c.Workload.Spec.Resources
	return uint64(r.GPUs)*1_000_000 + r.MemoryMiB
}

// balancedScore weighs normalized priority (lower is better), runtime
// (shorter-running scores higher, i.e. cheaper to take), cost (lower is
// better), and freed-resource magnitude (higher is better) equally. The
// spec leaves Balanced's weights unspecified for preemption (unlike
// marketplace bid selection's explicit 0.4/0.35/0.25); equal quartile
// weights were chosen as the least surprising default.
func balancedScore(c Candidate, pool []Candidate, now time.Time) float64 {
	maxPriority, maxCost, maxMagnitude, maxRuntime := float64(1), float64(1), float64(1), float64(1)
	for _, p := range pool {
		if v := float64(p.PriorityValue); v > maxPriority {
			maxPriority = v
		}
		if p.Cost > maxCost {
			maxCost = p.Cost
		}
		if m := float64(magnitude(p)); m > maxMagnitude {
			maxMagnitude = m
		}
		if r := runtimeSeconds(p, now); r > maxRuntime {
			maxRuntime = r
		}
	}
	priorityScore := 1 - float64(c.PriorityValue)/maxPriority
	costScore := 1 - c.Cost/maxCost
	magnitudeScore := float64(magnitude(c)) / maxMagnitude
	runtimeScore := 1 - runtimeSeconds(c, now)/maxRuntime
	return 0.25*priorityScore + 0.25*runtimeScore + 0.25*costScore + 0.25*magnitudeScore
}

func runtimeSeconds(c Candidate, now time.Time) float64 {
	if c.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(c.StartedAt).Seconds()
}
