package marketplace

import (
	"fmt"
	"math/bits"
	"time"
)

// SecondsPerHour is the settlement divisor (spec.md §4.6).
const SecondsPerHour = 3600

// SettlementError reports a rejected settlement input.
type SettlementError struct{ Reason string }

func (e SettlementError) Error() string { return fmt.Sprintf("marketplace: settlement: %s", e.Reason) }

// JobSettlement is the input to Settle (spec.md §3: "Marketplace Job").
type JobSettlement struct {
	JobID         string
	StartTime     time.Time
	EndTime       time.Time
	RatePerHour   uint64
	EscrowAmount  uint64
}

// SettlementResult is the pure output of Settle.
type SettlementResult struct {
	JobID           string
	AmountPaid      uint64
	DurationSeconds uint64
}

// CalculatePayment computes ceil(durationSeconds * ratePerHour / 3600) with
// a 128-bit-safe intermediate product (via math/bits.Mul64/Div64, since Go
// has no native u128), saturating to math.MaxUint64 on overflow. This is
// the Go expression of molt-market/src/settlement.rs's calculate_payment:
// zero inputs yield zero, any non-zero work at any non-zero rate yields at
// least 1 (ceiling rounding favors the provider).
func CalculatePayment(durationSeconds, ratePerHour uint64) uint64 {
	return calculatePayment(durationSeconds, ratePerHour, true)
}

// CalculatePaymentWithRounding exposes the rounding mode explicitly,
// matching the original's calculate_payment_with_rounding: ceiling
// (round_up=true) is provider-favorable; floor (round_up=false) is not
// used by Settle but is supplied for callers that need the exact-division
// variant (e.g. reconciliation audits comparing against floor-rounded
// third-party ledgers).
func CalculatePaymentWithRounding(durationSeconds, ratePerHour uint64, roundUp bool) uint64 {
	return calculatePayment(durationSeconds, ratePerHour, roundUp)
}

func calculatePayment(durationSeconds, ratePerHour uint64, roundUp bool) uint64 {
	if durationSeconds == 0 || ratePerHour == 0 {
		return 0
	}

	// 128-bit intermediate product: numerator = hi*2^64 + lo.
	hi, lo := bits.Mul64(durationSeconds, ratePerHour)

	if roundUp {
		// Ceiling division: (numerator + divisor - 1) / divisor, with the
		// addition's carry folded into hi so it never wraps silently.
		var carry uint64
		lo, carry = bits.Add64(lo, SecondsPerHour-1, 0)
		hi += carry
	}

	// bits.Div64 requires the quotient to fit in 64 bits, i.e. its hi
	// argument must be < divisor. Split the division in two: the whole
	// contribution of hi/divisor (which, if non-zero, means the true
	// 128-bit quotient itself exceeds 64 bits and must saturate), then
	// the remainder of hi combined with lo via Div64.
	if hi/SecondsPerHour > 0 {
		return ^uint64(0)
	}
	quotient, _ := bits.Div64(hi%SecondsPerHour, lo, SecondsPerHour)
	return quotient
}

// Settle computes a job's final payment, capped at escrow, rejecting an
// end time before the start time. Settlement is a pure, idempotent
// function of its inputs (spec.md §4.6 / §8).
func Settle(job JobSettlement) (SettlementResult, error) {
	if job.EndTime.Before(job.StartTime) {
		return SettlementResult{}, SettlementError{Reason: "end before start"}
	}
	duration := uint64(job.EndTime.Sub(job.StartTime).Seconds())
	payment := CalculatePayment(duration, job.RatePerHour)
	paid := payment
	if job.EscrowAmount < paid {
		paid = job.EscrowAmount
	}
	return SettlementResult{JobID: job.JobID, AmountPaid: paid, DurationSeconds: duration}, nil
}
