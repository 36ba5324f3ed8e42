package preemption

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testclock "k8s.io/utils/clock/testing"

	"github.com/clawbernetes/gateway/pkg/ids"
	"github.com/clawbernetes/gateway/pkg/workload"
)

type fakeStopper struct {
	confirms map[ids.ID]bool // workload ids that confirm before grace expires
}

func (f *fakeStopper) StopAndAwait(ctx context.Context, nodeID, workloadID ids.ID, grace time.Duration) error {
	if f.confirms[workloadID] {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

type fakeTerminator struct {
	forced map[ids.ID]bool
}

func (f *fakeTerminator) ForceTerminal(id ids.ID) error {
	f.forced[id] = true
	return nil
}

func TestEvictAllConfirmsWithoutForcingTerminal(t *testing.T) {
	victim := Candidate{Workload: &workload.Workload{ID: ids.New()}, NodeID: ids.New()}
	stopper := &fakeStopper{confirms: map[ids.ID]bool{victim.Workload.ID: true}}
	terminator := &fakeTerminator{forced: map[ids.ID]bool{}}
	e := NewEvictor(testclock.NewFakeClock(now), stopper, terminator, time.Millisecond)

	err := e.EvictAll(context.Background(), []Candidate{victim})
	require.NoError(t, err)
	assert.False(t, terminator.forced[victim.Workload.ID])
}

func TestEvictAllForcesTerminalOnGraceExpiry(t *testing.T) {
	victim := Candidate{Workload: &workload.Workload{ID: ids.New()}, NodeID: ids.New()}
	stopper := &fakeStopper{confirms: map[ids.ID]bool{}}
	terminator := &fakeTerminator{forced: map[ids.ID]bool{}}
	e := NewEvictor(testclock.NewFakeClock(now), stopper, terminator, time.Millisecond)

	err := e.EvictAll(context.Background(), []Candidate{victim})
	require.Error(t, err)
	var failure EvictionFailure
	require.True(t, errors.As(err, &failure))
	assert.True(t, terminator.forced[victim.Workload.ID], "an unconfirmed victim must be forced terminal once grace expires")
}

func TestEvictAllContinuesPastOneVictimsFailure(t *testing.T) {
	confirmed := Candidate{Workload: &workload.Workload{ID: ids.New()}, NodeID: ids.New()}
	stuck := Candidate{Workload: &workload.Workload{ID: ids.New()}, NodeID: ids.New()}
	stopper := &fakeStopper{confirms: map[ids.ID]bool{confirmed.Workload.ID: true}}
	terminator := &fakeTerminator{forced: map[ids.ID]bool{}}
	e := NewEvictor(testclock.NewFakeClock(now), stopper, terminator, time.Millisecond)

	err := e.EvictAll(context.Background(), []Candidate{confirmed, stuck})
	require.Error(t, err)
	assert.False(t, terminator.forced[confirmed.Workload.ID])
	assert.True(t, terminator.forced[stuck.Workload.ID])
}
