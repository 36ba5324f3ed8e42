package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testclock "k8s.io/utils/clock/testing"

	"github.com/clawbernetes/gateway/pkg/ids"
)

var fixedNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestRegisterIsIdempotentAndPreservesAssignments(t *testing.T) {
	fc := testclock.NewFakeClock(fixedNow)
	r := New(fc)
	nodeID := ids.New()

	n, created, err := r.Register(nodeID, "gpu-box-1", Capabilities{CPUCores: 8, MemoryMiB: 1024})
	require.NoError(t, err)
	require.True(t, created)
	require.NoError(t, r.TouchWorkloadAssignment(nodeID, ids.New(), true))

	before, err := r.Get(nodeID)
	require.NoError(t, err)
	require.Len(t, before.Workloads, 1)

	fc.Step(10 * time.Second)
	n2, changed, err := r.Register(nodeID, "gpu-box-1-renamed", Capabilities{CPUCores: 16, MemoryMiB: 2048})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "gpu-box-1-renamed", n2.Name)

	after, err := r.Get(nodeID)
	require.NoError(t, err)
	assert.Len(t, after.Workloads, 1, "re-registration must preserve workload assignments")
	assert.Equal(t, uint32(16), after.Capabilities.CPUCores)
	_ = n
}

func TestHealthDerivation(t *testing.T) {
	fc := testclock.NewFakeClock(fixedNow)
	r := New(fc)
	nodeID := ids.New()
	_, _, err := r.Register(nodeID, "n1", Capabilities{})
	require.NoError(t, err)

	h, err := r.Health(nodeID)
	require.NoError(t, err)
	assert.Equal(t, Healthy, h)

	fc.Step(31 * time.Second)
	h, err = r.Health(nodeID)
	require.NoError(t, err)
	assert.Equal(t, Unhealthy, h)

	fc.Step(60 * time.Second)
	h, err = r.Health(nodeID)
	require.NoError(t, err)
	assert.Equal(t, Offline, h)
}

func TestDrainingOverridesHealth(t *testing.T) {
	fc := testclock.NewFakeClock(fixedNow)
	r := New(fc)
	nodeID := ids.New()
	_, _, err := r.Register(nodeID, "n1", Capabilities{})
	require.NoError(t, err)
	require.NoError(t, r.SetDraining(nodeID, true))

	h, err := r.Health(nodeID)
	require.NoError(t, err)
	assert.Equal(t, Draining, h)
}

func TestListHealthyExcludesUnhealthyAndDraining(t *testing.T) {
	fc := testclock.NewFakeClock(fixedNow)
	r := New(fc)
	healthy := ids.New()
	stale := ids.New()
	draining := ids.New()
	_, _, _ = r.Register(healthy, "h", Capabilities{})
	_, _, _ = r.Register(stale, "s", Capabilities{})
	_, _, _ = r.Register(draining, "d", Capabilities{})
	require.NoError(t, r.SetDraining(draining, true))
	fc.Step(200 * time.Second)
	require.NoError(t, r.Heartbeat(healthy))

	list := r.ListHealthy()
	require.Len(t, list, 1)
	assert.Equal(t, healthy, list[0].ID)
}

func TestSummaryCounts(t *testing.T) {
	fc := testclock.NewFakeClock(fixedNow)
	r := New(fc)
	_, _, _ = r.Register(ids.New(), "a", Capabilities{})
	_, _, _ = r.Register(ids.New(), "b", Capabilities{})
	s := r.Summary()
	assert.Equal(t, 2, s.Healthy)
	assert.Equal(t, 2, s.Total)
}
