package priorityclass

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinsRegistered(t *testing.T) {
	r := NewRegistry()
	sc, err := r.Get(SystemCritical)
	require.NoError(t, err)
	assert.Equal(t, uint32(1000), sc.Value)
	assert.Equal(t, Never, sc.Policy)

	spot, err := r.Get(Spot)
	require.NoError(t, err)
	assert.Equal(t, PreemptLowerPriority, spot.Policy)
}

func TestRegisterRejectsBuiltinName(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Class{Name: Default, Value: 1, Policy: Never})
	require.Error(t, err)
}

func TestRegisterRejectsOutOfRangeValue(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Class{Name: "custom", Value: 1001, Policy: Never})
	require.Error(t, err)
}

func TestCanPreemptNeverIsCategoricallySafe(t *testing.T) {
	sc := Class{Name: SystemCritical, Value: 1000, Policy: Never}
	assert.False(t, CanPreempt(sc, 999999))
}

func TestCanPreemptRequiresStrictlyLower(t *testing.T) {
	equal := Class{Name: "default", Value: 500, Policy: PreemptLowerPriority}
	assert.False(t, CanPreempt(equal, 500))
	assert.True(t, CanPreempt(equal, 501))
}
