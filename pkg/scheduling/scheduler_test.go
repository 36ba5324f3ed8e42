package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clawbernetes/gateway/pkg/ids"
	"github.com/clawbernetes/gateway/pkg/priorityclass"
	"github.com/clawbernetes/gateway/pkg/registry"
	"github.com/clawbernetes/gateway/pkg/workload"
)

func node(id ids.ID, gpus, memMiB uint64, existingWorkloads int) *registry.Node {
	gpuList := make([]registry.GPU, gpus)
	for i := range gpuList {
		gpuList[i] = registry.GPU{Index: uint32(i), MemoryMiB: 40000}
	}
	wl := make(map[ids.ID]struct{}, existingWorkloads)
	for i := 0; i < existingWorkloads; i++ {
		wl[ids.New()] = struct{}{}
	}
	return &registry.Node{
		ID:           id,
		Capabilities: registry.Capabilities{GPUs: gpuList, MemoryMiB: memMiB, CPUCores: 64},
		Workloads:    wl,
	}
}

func TestOrderPriorityDescendingCreatedAtAscending(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	low := Candidate{Workload: &workload.Workload{ID: ids.New(), CreatedAt: now}, PriorityValue: 100}
	highOld := Candidate{Workload: &workload.Workload{ID: ids.New(), CreatedAt: now}, PriorityValue: 750}
	highNew := Candidate{Workload: &workload.Workload{ID: ids.New(), CreatedAt: now.Add(time.Second)}, PriorityValue: 750}

	ordered := Order([]Candidate{low, highNew, highOld})
	require.Len(t, ordered, 3)
	assert.Equal(t, highOld.Workload.ID, ordered[0].Workload.ID)
	assert.Equal(t, highNew.Workload.ID, ordered[1].Workload.ID)
	assert.Equal(t, low.Workload.ID, ordered[2].Workload.ID)
}

func TestScorePrefersTightestGPUFit(t *testing.T) {
	exact := node(ids.New(), 2, 100000, 0)
	loose := node(ids.New(), 8, 100000, 0)

	used := map[ids.ID]workload.Resources{}
	best, ok := Score([]*registry.Node{loose, exact}, used, workload.Resources{GPUs: 2, MemoryMiB: 1000})
	require.True(t, ok)
	assert.Equal(t, exact.ID, best.ID)
}

func TestFilterExcludesInsufficientCapacity(t *testing.T) {
	small := node(ids.New(), 1, 10000, 0)
	big := node(ids.New(), 4, 100000, 0)
	used := map[ids.ID]workload.Resources{}

	filtered := Filter([]*registry.Node{small, big}, used, workload.Resources{GPUs: 2})
	require.Len(t, filtered, 1)
	assert.Equal(t, big.ID, filtered[0].ID)
}

func TestPlaceSignalsPreemptionWhenNoCapacity(t *testing.T) {
	w := &workload.Workload{ID: ids.New(), Spec: workload.Spec{Resources: workload.Resources{GPUs: 8}}}
	c := Candidate{Workload: w, Policy: priorityclass.PreemptLowerPriority}

	decision := Place(c, nil, map[ids.ID]workload.Resources{})
	assert.False(t, decision.Placed)
	assert.True(t, decision.NeedsPreemption)
}
