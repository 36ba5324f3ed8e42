// Package config defines the gateway's runtime configuration and how it is
// loaded from command-line flags, in the teacher's operator/options idiom
// (a package-level constructor that starts from defaults and merges flag
// overrides on top) but without the Kubernetes ConfigMap watcher, since no
// apiserver backs this gateway.
package config

import (
	"time"

	"github.com/imdario/mergo"
	"github.com/spf13/pflag"

	"github.com/clawbernetes/gateway/pkg/preemption"
)

// Config is the full set of tunables enumerated in spec.md §6
// "Configuration".
type Config struct {
	HeartbeatIntervalSecs   uint32
	MetricsIntervalSecs     uint32
	HealthyThresholdSecs    uint32
	UnhealthyThresholdSecs  uint32
	SchedulerTickIntervalSecs uint32

	Preemption PreemptionConfig

	LogBufferLinesPerStream uint32
	LogLineMaxBytes         uint32

	SessionOutboundDrainTimeoutSecs uint32
}

// PreemptionConfig mirrors preemption.Config's shape at the config-file
// boundary so flags can bind to plain scalars; ToEngineConfig converts it.
type PreemptionConfig struct {
	DefaultGraceSecs      uint32
	MaxGraceSecs          uint32
	Strategy              string
	MinPriorityDifference uint32
	MaxVictims            uint32
}

// Default returns spec.md §6's documented defaults.
func Default() Config {
	return Config{
		HeartbeatIntervalSecs:     30,
		MetricsIntervalSecs:       10,
		HealthyThresholdSecs:      30,
		UnhealthyThresholdSecs:    90,
		SchedulerTickIntervalSecs: 5,
		Preemption: PreemptionConfig{
			DefaultGraceSecs: 30,
			MaxGraceSecs:     120,
			Strategy:         string(preemption.LowestPriority),
		},
		LogBufferLinesPerStream:         1024,
		LogLineMaxBytes:                 4096,
		SessionOutboundDrainTimeoutSecs: 5,
	}
}

// HeartbeatInterval is HeartbeatIntervalSecs as a time.Duration.
func (c Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSecs) * time.Second
}

// MetricsInterval is MetricsIntervalSecs as a time.Duration.
func (c Config) MetricsInterval() time.Duration {
	return time.Duration(c.MetricsIntervalSecs) * time.Second
}

// SessionOutboundDrainTimeout is SessionOutboundDrainTimeoutSecs as a
// time.Duration.
func (c Config) SessionOutboundDrainTimeout() time.Duration {
	return time.Duration(c.SessionOutboundDrainTimeoutSecs) * time.Second
}

// HealthyThresholdDuration is HealthyThresholdSecs as a time.Duration.
func (c Config) HealthyThresholdDuration() time.Duration {
	return time.Duration(c.HealthyThresholdSecs) * time.Second
}

// UnhealthyThresholdDuration is UnhealthyThresholdSecs as a time.Duration.
func (c Config) UnhealthyThresholdDuration() time.Duration {
	return time.Duration(c.UnhealthyThresholdSecs) * time.Second
}

// DefaultGraceDuration is Preemption.DefaultGraceSecs as a time.Duration.
func (c PreemptionConfig) DefaultGraceDuration() time.Duration {
	return time.Duration(c.DefaultGraceSecs) * time.Second
}

// ToEngineConfig converts the flag-facing PreemptionConfig into the
// pkg/preemption.Config the engine actually consumes.
func (c Config) ToEngineConfig() preemption.Config {
	return preemption.Config{
		DefaultGraceSeconds:   c.Preemption.DefaultGraceSecs,
		MaxGraceSeconds:       c.Preemption.MaxGraceSecs,
		Strategy:              preemption.Strategy(c.Preemption.Strategy),
		MinPriorityDifference: c.Preemption.MinPriorityDifference,
		MaxVictims:            c.Preemption.MaxVictims,
	}
}

// FlagSet registers a pflag.FlagSet bound to override, starting from
// Default()'s values as the flags' own defaults. Call Parse on the
// returned set, then pass override to Load.
func FlagSet(override *Config) *pflag.FlagSet {
	d := Default()
	fs := pflag.NewFlagSet("clawbernetes-gateway", pflag.ContinueOnError)

	fs.Uint32Var(&override.HeartbeatIntervalSecs, "heartbeat-interval-secs", d.HeartbeatIntervalSecs, "node heartbeat cadence advertised on Register")
	fs.Uint32Var(&override.MetricsIntervalSecs, "metrics-interval-secs", d.MetricsIntervalSecs, "node metrics push cadence advertised on Register")
	fs.Uint32Var(&override.HealthyThresholdSecs, "health-healthy-threshold-secs", d.HealthyThresholdSecs, "max heartbeat age before a node is no longer Healthy")
	fs.Uint32Var(&override.UnhealthyThresholdSecs, "health-unhealthy-threshold-secs", d.UnhealthyThresholdSecs, "max heartbeat age before a node is Offline")
	fs.Uint32Var(&override.SchedulerTickIntervalSecs, "scheduler-tick-interval-secs", d.SchedulerTickIntervalSecs, "reconciliation tick cadence")

	fs.Uint32Var(&override.Preemption.DefaultGraceSecs, "preemption-default-grace-secs", d.Preemption.DefaultGraceSecs, "default eviction grace period")
	fs.Uint32Var(&override.Preemption.MaxGraceSecs, "preemption-max-grace-secs", d.Preemption.MaxGraceSecs, "upper bound on requested eviction grace")
	fs.StringVar(&override.Preemption.Strategy, "preemption-strategy", d.Preemption.Strategy, "victim selection strategy (LowestPriority, ShortestRunning, LowestCost, MostResources, Balanced)")
	fs.Uint32Var(&override.Preemption.MinPriorityDifference, "preemption-min-priority-difference", d.Preemption.MinPriorityDifference, "minimum priority gap required to preempt a victim (0 = unbounded)")
	fs.Uint32Var(&override.Preemption.MaxVictims, "preemption-max-victims", d.Preemption.MaxVictims, "max workloads a single preemption request may evict (0 = unbounded)")

	fs.Uint32Var(&override.LogBufferLinesPerStream, "log-buffer-lines-per-stream", d.LogBufferLinesPerStream, "ring buffer capacity per workload/stdio stream")
	fs.Uint32Var(&override.LogLineMaxBytes, "log-line-max-bytes", d.LogLineMaxBytes, "truncation length for a single buffered log line")

	fs.Uint32Var(&override.SessionOutboundDrainTimeoutSecs, "session-outbound-drain-timeout-secs", d.SessionOutboundDrainTimeoutSecs, "max time to flush queued outbound frames on cooperative shutdown")

	return fs
}

// Load starts from Default() and merges override on top, the way the
// teacher's settings layer merges partial overrides onto defaults. Fields
// left at their flag defaults by the caller are harmless to re-merge since
// FlagSet already seeded override with the same defaults; Load exists so
// callers constructing a Config by hand (tests, embedding) get the same
// merge semantics without going through pflag.
func Load(override Config) (Config, error) {
	result := Default()
	if err := mergo.Merge(&result, override, mergo.WithOverride); err != nil {
		return Config{}, err
	}
	return result, nil
}
