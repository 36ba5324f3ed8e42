// Package testutil provides human-readable fixture data for tests across
// the gateway, in the teacher's own test-fixture idiom (pkg/test in the
// retrieved tree favors generated readable names over opaque counters).
package testutil

import (
	"strings"

	"github.com/Pallinder/go-randomdata"

	"github.com/clawbernetes/gateway/pkg/registry"
	"github.com/clawbernetes/gateway/pkg/workload"
)

// TenantName returns a readable, spec.md §3-valid tenant name
// ("[A-Za-z]([A-Za-z0-9_-]{0,126}[A-Za-z0-9])?").
func TenantName() string {
	return randomdata.SillyName()
}

// NamespaceName returns a readable, spec.md §3-valid namespace name
// ("[a-z]([a-z0-9-]{0,61}[a-z0-9])?"): lowercase, hyphen-separated.
func NamespaceName() string {
	raw := randomdata.Adjective() + "-" + randomdata.Noun()
	return sanitizeLower(raw)
}

// NodeName returns a readable node name in the same style kubelet-less
// node registration would pick, e.g. "silent-falcon-7".
func NodeName() string {
	return sanitizeLower(randomdata.Adjective()+"-"+randomdata.Noun()) + "-" + randomdata.StringNumber(1, "")
}

// WorkloadImage returns a plausible container image reference for fixture
// workload specs; it is never pulled, only stored.
func WorkloadImage() string {
	return "registry.example.com/" + sanitizeLower(randomdata.Noun()) + ":latest"
}

// Capabilities returns a small, fixed node capability set suitable for
// most scheduling/placement fixtures.
func Capabilities(gpus int, memMiB uint64, cpu uint32) registry.Capabilities {
	caps := registry.Capabilities{CPUCores: cpu, MemoryMiB: memMiB}
	for i := 0; i < gpus; i++ {
		caps.GPUs = append(caps.GPUs, registry.GPU{Index: uint32(i), MemoryMiB: memMiB / uint64(max(gpus, 1))})
	}
	return caps
}

// WorkloadResources returns a workload.Resources fixture requesting gpus
// GPUs with proportionate memory/CPU.
func WorkloadResources(gpus uint32) workload.Resources {
	return workload.Resources{GPUs: gpus, MemoryMiB: uint64(gpus) * 16384, CPUCores: gpus * 4}
}

func sanitizeLower(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '-'
		}
	}, s)
	return strings.Trim(s, "-")
}
