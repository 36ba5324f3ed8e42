package registry

import (
	"time"

	"github.com/clawbernetes/gateway/pkg/ids"
)

// GPU describes a single GPU device reported by a node.
type GPU struct {
	Index      uint32
	ModelName  string
	MemoryMiB  uint64
	UUID       string
}

// Capabilities is a node's advertised hardware footprint.
type Capabilities struct {
	CPUCores  uint32
	MemoryMiB uint64
	GPUs      []GPU
}

// Health is the derived (never stored) health class of a Node.
type Health string

const (
	Healthy   Health = "Healthy"
	Unhealthy Health = "Unhealthy"
	Offline   Health = "Offline"
	Draining  Health = "Draining"
)

// Node is a registered compute node. Health is never stored on the struct;
// it is always derived from LastHeartbeat via Thresholds.Derive.
type Node struct {
	ID             ids.ID
	Name           string
	Capabilities   Capabilities
	RegisteredAt   time.Time
	LastHeartbeat  time.Time
	Draining       bool
	Workloads      map[ids.ID]struct{}
}

// Summary is the per-health-class node count returned by Registry.Summary.
type Summary struct {
	Healthy   int
	Unhealthy int
	Offline   int
	Draining  int
	Total     int
}

// Thresholds configures health derivation (spec.md §4.2).
type Thresholds struct {
	HealthyThreshold   time.Duration
	UnhealthyThreshold time.Duration
	DrainingOverrides  bool
}

// DefaultThresholds returns H_healthy=30s, H_unhealthy=90s, draining_overrides=true.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HealthyThreshold:   30 * time.Second,
		UnhealthyThreshold: 90 * time.Second,
		DrainingOverrides:  true,
	}
}

// Derive computes a Node's health at instant now.
func (t Thresholds) Derive(n *Node, now time.Time) Health {
	if n.Draining && t.DrainingOverrides {
		return Draining
	}
	age := now.Sub(n.LastHeartbeat)
	switch {
	case age <= t.HealthyThreshold:
		return Healthy
	case age <= t.UnhealthyThreshold:
		return Unhealthy
	default:
		return Offline
	}
}

// TotalGPUs returns the number of GPUs the node advertises, reserved or
// not (the registry itself only knows which workload ids are assigned,
// not their GPU footprints; free capacity is computed by the scheduler).
func (c Capabilities) TotalGPUs() int { return len(c.GPUs) }
