package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clawbernetes/gateway/pkg/ids"
	"github.com/clawbernetes/gateway/pkg/priorityclass"
	"github.com/clawbernetes/gateway/pkg/tenancy"
	"github.com/clawbernetes/gateway/pkg/workload"
)

func TestTenantRoundTrip(t *testing.T) {
	s := New()
	tenant := &tenancy.Tenant{ID: ids.New(), Name: "acme", Namespaces: []ids.ID{ids.New()}}
	require.NoError(t, s.PutTenant(tenant))

	got, ok := s.Tenant(tenant.ID)
	require.True(t, ok)
	assert.Equal(t, "acme", got.Name)

	got.Name = "mutated"
	reread, _ := s.Tenant(tenant.ID)
	assert.Equal(t, "acme", reread.Name, "stored copy must not alias the caller's mutation")

	s.DeleteTenant(tenant.ID)
	_, ok = s.Tenant(tenant.ID)
	assert.False(t, ok)
}

func TestListWorkloads(t *testing.T) {
	s := New()
	w1 := &workload.Workload{ID: ids.New(), State: workload.Pending, CreatedAt: time.Now()}
	w2 := &workload.Workload{ID: ids.New(), State: workload.Running, CreatedAt: time.Now()}
	require.NoError(t, s.PutWorkload(w1))
	require.NoError(t, s.PutWorkload(w2))

	all := s.ListWorkloads()
	assert.Len(t, all, 2)
}

func TestSettlementLedgerAppendOnly(t *testing.T) {
	s := New()
	s.AppendSettlement(SettlementRecord{JobID: "job-1", AmountPaid: 100, DurationSeconds: 3600})
	s.AppendSettlement(SettlementRecord{JobID: "job-2", AmountPaid: 50, DurationSeconds: 1800})

	ledger := s.ListSettlements()
	require.Len(t, ledger, 2)
	assert.Equal(t, "job-1", ledger[0].JobID)
}

func TestPriorityClassRoundTrip(t *testing.T) {
	s := New()
	require.NoError(t, s.PutPriorityClass(priorityclass.Class{Name: "custom", Value: 600, Policy: priorityclass.PreemptLowerPriority}))
	classes := s.ListPriorityClasses()
	require.Len(t, classes, 1)
	assert.Equal(t, "custom", classes[0].Name)
}
