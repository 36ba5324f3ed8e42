package preemption

// Config configures a preemption engine instance. Grounded on
// claw-preemption/src/lib.rs's PreemptionConfig from original_source/,
// which carries min_priority_difference and max_victims caps beyond the
// grace-period bound spec.md §4.5 already specifies; a zero value on
// either optional knob means unbounded, preserving spec.md's defaults.
type Config struct {
	DefaultGraceSeconds    uint32
	MaxGraceSeconds        uint32
	Strategy               Strategy
	// MinPriorityDifference, if non-zero, requires a victim's priority to
	// be at least this much lower than the requester's, not merely lower.
	MinPriorityDifference uint32
	// MaxVictims, if non-zero, caps how many workloads a single
	// preemption request may evict regardless of whether more are needed
	// to satisfy it.
	MaxVictims uint32
}

// DefaultConfig returns spec.md §4.5/§6's documented defaults.
func DefaultConfig() Config {
	return Config{
		DefaultGraceSeconds: DefaultGraceSeconds,
		MaxGraceSeconds:     MaxGraceSeconds,
		Strategy:            LowestPriority,
	}
}

// EligibleWithConfig narrows Eligible further by cfg.MinPriorityDifference.
func EligibleWithConfig(candidates []Candidate, requesterPriority uint32, cfg Config) []Candidate {
	base := Eligible(candidates, requesterPriority)
	if cfg.MinPriorityDifference == 0 {
		return base
	}
	out := make([]Candidate, 0, len(base))
	for _, c := range base {
		if requesterPriority-c.PriorityValue >= cfg.MinPriorityDifference {
			out = append(out, c)
		}
	}
	return out
}
