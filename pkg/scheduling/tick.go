package scheduling

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/robfig/cron/v3"
)

// TickFunc performs one reconciliation pass: filter+score+place every
// Pending workload in priority order, retrying workloads a prior tick
// could not place (spec.md §7: "a scheduler tick that fails to place a
// workload does not remove it from Pending").
type TickFunc func(ctx context.Context)

// Ticker drives TickFunc on the periodic reconciliation schedule of
// spec.md §4.4 (default every 5s), using a seconds-resolution cron
// scheduler since the default interval is sub-minute.
type Ticker struct {
	cron *cron.Cron
	log  logr.Logger
}

// NewTicker builds a Ticker that invokes fn on every tick described by
// spec, e.g. "@every 5s".
func NewTicker(log logr.Logger, spec string, fn TickFunc) (*Ticker, error) {
	c := cron.New(cron.WithSeconds())
	_, err := c.AddFunc(spec, func() {
		fn(context.Background())
	})
	if err != nil {
		return nil, err
	}
	return &Ticker{cron: c, log: log.WithName("scheduler-tick")}, nil
}

// Start begins firing ticks in the background.
func (t *Ticker) Start() { t.cron.Start() }

// Stop cancels future ticks and waits for any in-flight tick to finish.
func (t *Ticker) Stop() { <-t.cron.Stop().Done() }
