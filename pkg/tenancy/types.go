package tenancy

import (
	"time"

	"github.com/clawbernetes/gateway/pkg/ids"
)

// BillingPlan enumerates the billing tiers of spec.md §3.
type BillingPlan string

const (
	PlanFree         BillingPlan = "Free"
	PlanStarter      BillingPlan = "Starter"
	PlanProfessional BillingPlan = "Professional"
	PlanEnterprise   BillingPlan = "Enterprise"
	PlanCustom       BillingPlan = "Custom"
)

// Billing describes a tenant's billing plan and optional period label.
type Billing struct {
	Plan   BillingPlan
	Period string
}

// Resources is a workload's resource footprint, as counted against quota.
type Resources struct {
	GPUs      uint32
	MemoryMiB uint64
	CPUCores  uint32
}

// Quota is a set of optional upper bounds; a nil field is unlimited.
type Quota struct {
	MaxWorkloads *uint32
	MaxGPUs      *uint32
	MemoryMiB    *uint64
	GPUHours     *float64
}

// QuotaUsage tracks resource consumption attributed to a namespace.
type QuotaUsage struct {
	GPUsInUse    uint32
	MemoryMiBUsed uint64
	GPUHoursUsed float64
}

// subtractSaturating subtracts footprint from usage, clamping at zero so a
// double-release or an accounting slip never wraps around.
func (u *QuotaUsage) subtractSaturating(r Resources) {
	if r.GPUs > u.GPUsInUse {
		u.GPUsInUse = 0
	} else {
		u.GPUsInUse -= r.GPUs
	}
	if r.MemoryMiB > u.MemoryMiBUsed {
		u.MemoryMiBUsed = 0
	} else {
		u.MemoryMiBUsed -= r.MemoryMiB
	}
}

func (u *QuotaUsage) add(r Resources) {
	u.GPUsInUse += r.GPUs
	u.MemoryMiBUsed += r.MemoryMiB
}

// Tenant is the top-level billing/ownership unit; see spec.md §3.
type Tenant struct {
	ID                    ids.ID
	Name                  string
	DisplayName           string
	Namespaces            []ids.ID
	DefaultNamespaceQuota Quota
	TenantQuota           Quota
	Billing               Billing
	Active                bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Namespace belongs to exactly one tenant; see spec.md §3.
type Namespace struct {
	ID              ids.ID
	Name            string
	TenantID        ids.ID
	Quota           Quota
	Usage           QuotaUsage
	ActiveWorkloads uint32
	Labels          map[string]string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreateTenantOptions carries the optional fields of create_tenant.
type CreateTenantOptions struct {
	DisplayName           string
	DefaultNamespaceQuota Quota
	TenantQuota           Quota
	Billing               Billing
}

// CreateNamespaceOptions carries the optional fields of create_namespace.
type CreateNamespaceOptions struct {
	Quota  *Quota // nil inherits the tenant's default_namespace_quota
	Labels map[string]string
}
