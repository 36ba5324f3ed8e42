package marketplace

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculatePaymentExactHour(t *testing.T) {
	assert.Equal(t, uint64(100), CalculatePayment(3600, 100))
}

func TestCalculatePaymentPartialHour(t *testing.T) {
	assert.Equal(t, uint64(50), CalculatePayment(1800, 100))
}

func TestCalculatePaymentCeilsUpFromFraction(t *testing.T) {
	assert.Equal(t, uint64(1), CalculatePayment(1, 3599))
	assert.Equal(t, uint64(2), CalculatePayment(1, 7200))
}

func TestCalculatePaymentZeroInputsYieldZero(t *testing.T) {
	assert.Equal(t, uint64(0), CalculatePayment(0, 100))
	assert.Equal(t, uint64(0), CalculatePayment(100, 0))
}

func TestCalculatePaymentNonZeroAlwaysAtLeastOne(t *testing.T) {
	assert.GreaterOrEqual(t, CalculatePayment(1, 1), uint64(1))
}

func TestCalculatePaymentSaturatesOnOverflow(t *testing.T) {
	got := CalculatePayment(math.MaxUint64, math.MaxUint64)
	assert.Equal(t, uint64(math.MaxUint64), got)
}

func TestCalculatePaymentWithRoundingFloorVsCeil(t *testing.T) {
	ceil := CalculatePaymentWithRounding(1, 3599, true)
	floor := CalculatePaymentWithRounding(1, 3599, false)
	assert.Equal(t, uint64(1), ceil)
	assert.Equal(t, uint64(0), floor)
}

func TestSettleRejectsEndBeforeStart(t *testing.T) {
	start := time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	_, err := Settle(JobSettlement{StartTime: start, EndTime: end, RatePerHour: 100, EscrowAmount: 1000})
	require.Error(t, err)
	assert.Equal(t, SettlementError{Reason: "end before start"}, err)
}

func TestSettleCapsAtEscrow(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	result, err := Settle(JobSettlement{JobID: "job-1", StartTime: start, EndTime: end, RatePerHour: 1000, EscrowAmount: 500})
	require.NoError(t, err)
	assert.Equal(t, uint64(500), result.AmountPaid)
	assert.Equal(t, uint64(3600), result.DurationSeconds)
}

func TestSettleIsIdempotent(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)
	job := JobSettlement{JobID: "job-2", StartTime: start, EndTime: end, RatePerHour: 77, EscrowAmount: math.MaxUint64}
	r1, err := Settle(job)
	require.NoError(t, err)
	r2, err := Settle(job)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}

func TestScoreBidLowestPricePrefersCheaper(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cheap := Bid{Price: 10, Reputation: 50, AvailableAt: now, ExpiresAt: now.Add(time.Hour)}
	pricey := Bid{Price: 90, Reputation: 50, AvailableAt: now, ExpiresAt: now.Add(time.Hour)}
	assert.Greater(t, ScoreBid(LowestPrice, cheap, 100, now), ScoreBid(LowestPrice, pricey, 100, now))
}

func TestSelectBidFiltersExpiredAndUnderReputation(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	expired := Bid{Price: 1, Reputation: 99, AvailableAt: now, ExpiresAt: now.Add(-time.Minute)}
	lowRep := Bid{Price: 1, Reputation: 10, AvailableAt: now, ExpiresAt: now.Add(time.Hour)}
	good := Bid{Price: 20, Reputation: 80, AvailableAt: now, ExpiresAt: now.Add(time.Hour)}
	job := Job{MaxPrice: 100, MinReputation: 50}

	selected, ok := SelectBid(job, []Bid{expired, lowRep, good}, LowestPrice, now)
	require.True(t, ok)
	assert.Equal(t, good.Price, selected.Bid.Price)
}
