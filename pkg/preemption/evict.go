package preemption

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"k8s.io/utils/clock"

	"github.com/clawbernetes/gateway/pkg/ids"
)

// DefaultGraceSeconds and MaxGraceSeconds bound the eviction grace period
// (spec.md §4.5): the default is 30s and the configured ceiling is 120s.
// An Evictor applies its one grace period to every victim; there is no
// per-workload grace override.
const (
	DefaultGraceSeconds = 30
	MaxGraceSeconds     = 120
)

// BoundGrace clamps a requested grace period to [0, maxGrace].
func BoundGrace(requested, maxGrace time.Duration) time.Duration {
	if requested < 0 {
		return 0
	}
	if requested > maxGrace {
		return maxGrace
	}
	return requested
}

// Stopper issues a stop-with-grace order to the node hosting a victim, and
// reports whether the node confirmed termination before ctx's deadline.
// Implemented by the session layer in production; faked in tests.
type Stopper interface {
	StopAndAwait(ctx context.Context, nodeID, workloadID ids.ID, grace time.Duration) error
}

// Terminator forces a victim workload straight to Stopped when the node
// fails to confirm its stop within the grace period, freeing the capacity
// the scheduler is waiting on instead of leaving it committed to an
// unresponsive node indefinitely. A plain UpdateState call cannot do this:
// the state table does not allow Stopped from Running, and a node that never
// even acknowledged the stop order leaves its victim sitting in Running.
type Terminator interface {
	ForceTerminal(id ids.ID) error
}

// Evictor runs the eviction protocol spec.md §4.5 describes: issue a
// stop-with-grace order to each victim's node, and on either node
// confirmation or grace expiry the victim ends up Stopped -- the node's own
// WorkloadUpdate does it on confirmation; Evictor forces it directly when
// the grace period lapses with no confirmation.
type Evictor struct {
	clock      clock.Clock
	stopper    Stopper
	terminator Terminator
	grace      time.Duration
}

// NewEvictor builds an Evictor with the given default grace period.
func NewEvictor(clk clock.Clock, stopper Stopper, terminator Terminator, grace time.Duration) *Evictor {
	return &Evictor{clock: clk, stopper: stopper, terminator: terminator, grace: grace}
}

// EvictAll evicts every victim in result, continuing past individual
// failures and aggregating them with multierr (spec.md §4.5: "if any
// single eviction fails, report per-victim EvictionFailure but continue
// with the remainder"). A victim whose node never confirms within grace is
// forced to Stopped here so the scheduler's retried placement sees freed
// capacity regardless of how unresponsive the node is.
func (e *Evictor) EvictAll(ctx context.Context, victims []Candidate) error {
	var errs error
	for _, v := range victims {
		grace := e.grace
		stopCtx, cancel := context.WithTimeout(ctx, grace)
		err := e.stopper.StopAndAwait(stopCtx, v.NodeID, v.Workload.ID, grace)
		cancel()
		if err != nil {
			errs = multierr.Append(errs, EvictionFailure{WorkloadID: v.Workload.ID, Reason: err.Error()})
			if termErr := e.terminator.ForceTerminal(v.Workload.ID); termErr != nil {
				errs = multierr.Append(errs, termErr)
			}
		}
	}
	return errs
}
