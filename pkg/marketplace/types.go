// Package marketplace implements C6: bid negotiation (offline, pure scoring
// over a list of candidate bids) and payment settlement (exact fixed-point
// arithmetic, no floating point).
//
// Grounded on molt-agent/src/negotiation.rs (bid scoring weights) and
// molt-market/src/settlement.rs (the u128-intermediate ceiling-division
// payment formula) from original_source/, re-expressed in the teacher's
// idiom of small pure functions over value types plus a thin registry.
package marketplace

import (
	"time"

	"github.com/google/uuid"
)

// ProviderID identifies a marketplace compute provider.
type ProviderID string

// Job is a buyer's request for compute, evaluated against a bid pool.
type Job struct {
	Resources        Resources
	MaxPrice         uint64
	MaxDurationSecs  uint64
	MinReputation    uint8
}

// Resources is the compute footprint a marketplace job requests.
type Resources struct {
	GPUs      uint32
	MemoryMiB uint64
}

// Bid is a provider's offer for a job.
type Bid struct {
	ID          uuid.UUID
	Provider    ProviderID
	Price       uint64
	AvailableAt time.Time
	ExpiresAt   time.Time
	Reputation  uint8
}

// IsExpired reports whether the bid has expired as of now.
func (b Bid) IsExpired(now time.Time) bool { return !now.Before(b.ExpiresAt) }

// IsAvailable reports whether the provider can start now.
func (b Bid) IsAvailable(now time.Time) bool { return !now.Before(b.AvailableAt) }

// WaitSeconds is the non-negative wait until availability.
func (b Bid) WaitSeconds(now time.Time) float64 {
	wait := b.AvailableAt.Sub(now).Seconds()
	if wait < 0 {
		return 0
	}
	return wait
}

// SelectedBid is the winning bid plus the score and reason it won.
type SelectedBid struct {
	Bid    Bid
	Score  float64
	Reason string
}

// Strategy selects how bids are scored.
type Strategy string

const (
	LowestPrice         Strategy = "LowestPrice"
	HighestReputation   Strategy = "HighestReputation"
	FastestAvailability Strategy = "FastestAvailability"
	Balanced            Strategy = "Balanced"
)
