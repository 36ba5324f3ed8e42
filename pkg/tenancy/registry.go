// Package tenancy implements C1 (Identity & Tenancy): tenant/namespace
// naming and quota accounting. Admission is a pure function over a usage
// snapshot; record_admit/record_release are the two-phase commit the
// Workload Manager pairs around submission and terminal transitions.
//
// Grounded on the teacher's lock-per-registry idiom (pkg/controllers/state):
// a single sync.RWMutex guards all tenant/namespace state, held only for the
// duration of one operation, never across I/O.
package tenancy

import (
	"sync"

	"github.com/samber/lo"
	"k8s.io/utils/clock"

	"github.com/clawbernetes/gateway/pkg/ids"
)

// Registry is the single source of truth for tenants, namespaces, and their
// quota usage. It is the first lock acquired in the system's lock order
// (spec.md §5): Tenancy -> Node Registry -> Workload Manager -> Preemption.
type Registry struct {
	mu     sync.RWMutex
	clock  clock.Clock
	tenants         map[ids.ID]*Tenant
	tenantNames     map[string]ids.ID
	namespaces      map[ids.ID]*Namespace
	namespacesByKey map[string]ids.ID // tenantID.String()+"/"+name -> namespace id
}

// New constructs an empty Registry using clk as the source of wall-clock time.
func New(clk clock.Clock) *Registry {
	return &Registry{
		clock:           clk,
		tenants:         make(map[ids.ID]*Tenant),
		tenantNames:     make(map[string]ids.ID),
		namespaces:      make(map[ids.ID]*Namespace),
		namespacesByKey: make(map[string]ids.ID),
	}
}

// CreateTenant validates name and registers a new tenant.
func (r *Registry) CreateTenant(name string, opts CreateTenantOptions) (*Tenant, error) {
	if err := validateTenantName(name); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tenantNames[name]; exists {
		return nil, &AlreadyExistsError{Kind: "tenant", Name: name}
	}
	now := r.clock.Now().UTC()
	billing := opts.Billing
	if billing.Plan == "" {
		billing.Plan = PlanFree
	}
	t := &Tenant{
		ID:                    ids.New(),
		Name:                  name,
		DisplayName:           opts.DisplayName,
		DefaultNamespaceQuota: opts.DefaultNamespaceQuota,
		TenantQuota:           opts.TenantQuota,
		Billing:               billing,
		Active:                true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	r.tenants[t.ID] = t
	r.tenantNames[name] = t.ID
	return cloneTenant(t), nil
}

// Tenant looks up a tenant by id.
func (r *Registry) Tenant(id ids.ID) (*Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tenants[id]
	if !ok {
		return nil, &NotFoundError{Kind: "tenant", ID: id.String()}
	}
	return cloneTenant(t), nil
}

// DeleteTenant removes a tenant, rejecting if any of its namespaces still
// has active workloads (spec.md §3 Ownership).
func (r *Registry) DeleteTenant(id ids.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tenants[id]
	if !ok {
		return &NotFoundError{Kind: "tenant", ID: id.String()}
	}
	for _, nsID := range t.Namespaces {
		ns := r.namespaces[nsID]
		if ns != nil && ns.ActiveWorkloads > 0 {
			return &HasActiveWorkloadsError{TenantID: id.String(), Count: ns.ActiveWorkloads}
		}
	}
	for _, nsID := range t.Namespaces {
		ns := r.namespaces[nsID]
		delete(r.namespaces, nsID)
		if ns != nil {
			delete(r.namespacesByKey, namespaceKey(id, ns.Name))
		}
	}
	delete(r.tenants, id)
	delete(r.tenantNames, t.Name)
	return nil
}

// CreateNamespace validates name and registers a namespace under tenantID.
func (r *Registry) CreateNamespace(tenantID ids.ID, name string, opts CreateNamespaceOptions) (*Namespace, error) {
	if err := validateNamespaceName(name); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tenants[tenantID]
	if !ok {
		return nil, &NotFoundError{Kind: "tenant", ID: tenantID.String()}
	}
	key := namespaceKey(tenantID, name)
	if _, exists := r.namespacesByKey[key]; exists {
		return nil, &AlreadyExistsError{Kind: "namespace", Name: name}
	}
	quota := t.DefaultNamespaceQuota
	if opts.Quota != nil {
		quota = *opts.Quota
	}
	now := r.clock.Now().UTC()
	ns := &Namespace{
		ID:        ids.New(),
		Name:      name,
		TenantID:  tenantID,
		Quota:     quota,
		Labels:    lo.Assign(map[string]string{}, opts.Labels),
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.namespaces[ns.ID] = ns
	r.namespacesByKey[key] = ns.ID
	t.Namespaces = append(t.Namespaces, ns.ID)
	t.UpdatedAt = now
	return cloneNamespace(ns), nil
}

// Namespace looks up a namespace by id.
func (r *Registry) Namespace(id ids.ID) (*Namespace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ns, ok := r.namespaces[id]
	if !ok {
		return nil, &NotFoundError{Kind: "namespace", ID: id.String()}
	}
	return cloneNamespace(ns), nil
}

// CheckAdmit is the pure admission check: given the current usage snapshot,
// would admitting r violate the namespace's (or its tenant's) quota? It
// checks, in order, max_workloads, max_gpus, memory_mib, returning the first
// violation. It does not mutate state.
func (r *Registry) CheckAdmit(namespaceID ids.ID, resources Resources) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ns, ok := r.namespaces[namespaceID]
	if !ok {
		return &NotFoundError{Kind: "namespace", ID: namespaceID.String()}
	}
	t, ok := r.tenants[ns.TenantID]
	if !ok {
		return &NotFoundError{Kind: "tenant", ID: ns.TenantID.String()}
	}
	if !t.Active {
		return &NotActiveError{TenantID: t.ID.String()}
	}
	if err := checkQuota(ns.Quota, ns.Usage, ns.ActiveWorkloads, resources); err != nil {
		return err
	}
	return checkQuota(t.TenantQuota, aggregateUsage(r.namespaces, t.Namespaces), aggregateActive(r.namespaces, t.Namespaces), resources)
}

// RecordAdmit atomically re-checks and commits an admission: this is the
// operation the Workload Manager calls at Submit, pairing with
// RecordRelease on the namespace's next terminal transition.
func (r *Registry) RecordAdmit(namespaceID ids.ID, resources Resources) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ns, ok := r.namespaces[namespaceID]
	if !ok {
		return &NotFoundError{Kind: "namespace", ID: namespaceID.String()}
	}
	t, ok := r.tenants[ns.TenantID]
	if !ok {
		return &NotFoundError{Kind: "tenant", ID: ns.TenantID.String()}
	}
	if !t.Active {
		return &NotActiveError{TenantID: t.ID.String()}
	}
	if err := checkQuota(ns.Quota, ns.Usage, ns.ActiveWorkloads, resources); err != nil {
		return err
	}
	if err := checkQuota(t.TenantQuota, aggregateUsage(r.namespaces, t.Namespaces), aggregateActive(r.namespaces, t.Namespaces), resources); err != nil {
		return err
	}
	ns.Usage.add(resources)
	ns.ActiveWorkloads++
	ns.UpdatedAt = r.clock.Now().UTC()
	return nil
}

// RecordRelease reverses a RecordAdmit with saturating arithmetic: it never
// underflows even if called more than once for the same footprint.
func (r *Registry) RecordRelease(namespaceID ids.ID, resources Resources) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ns, ok := r.namespaces[namespaceID]
	if !ok {
		return &NotFoundError{Kind: "namespace", ID: namespaceID.String()}
	}
	ns.Usage.subtractSaturating(resources)
	if ns.ActiveWorkloads > 0 {
		ns.ActiveWorkloads--
	}
	ns.UpdatedAt = r.clock.Now().UTC()
	return nil
}

// ChargeGPUHours adds fractional GPU-hours to a namespace's running usage
// total; it is a metering record, not an admission check.
func (r *Registry) ChargeGPUHours(namespaceID ids.ID, hours float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ns, ok := r.namespaces[namespaceID]
	if !ok {
		return &NotFoundError{Kind: "namespace", ID: namespaceID.String()}
	}
	ns.Usage.GPUHoursUsed += hours
	ns.UpdatedAt = r.clock.Now().UTC()
	return nil
}

func checkQuota(q Quota, usage QuotaUsage, activeWorkloads uint32, incoming Resources) error {
	if q.MaxWorkloads != nil {
		used := uint64(activeWorkloads) + 1
		if used > uint64(*q.MaxWorkloads) {
			return &QuotaExceededError{Resource: "workloads", Used: used, Limit: uint64(*q.MaxWorkloads)}
		}
	}
	if q.MaxGPUs != nil {
		used := uint64(usage.GPUsInUse) + uint64(incoming.GPUs)
		if used > uint64(*q.MaxGPUs) {
			return &QuotaExceededError{Resource: "gpus", Used: used, Limit: uint64(*q.MaxGPUs)}
		}
	}
	if q.MemoryMiB != nil {
		used := usage.MemoryMiBUsed + incoming.MemoryMiB
		if used > *q.MemoryMiB {
			return &QuotaExceededError{Resource: "memory_mib", Used: used, Limit: *q.MemoryMiB}
		}
	}
	return nil
}

func aggregateUsage(namespaces map[ids.ID]*Namespace, nsIDs []ids.ID) QuotaUsage {
	var out QuotaUsage
	for _, id := range nsIDs {
		if ns := namespaces[id]; ns != nil {
			out.GPUsInUse += ns.Usage.GPUsInUse
			out.MemoryMiBUsed += ns.Usage.MemoryMiBUsed
			out.GPUHoursUsed += ns.Usage.GPUHoursUsed
		}
	}
	return out
}

func aggregateActive(namespaces map[ids.ID]*Namespace, nsIDs []ids.ID) uint32 {
	var total uint32
	for _, id := range nsIDs {
		if ns := namespaces[id]; ns != nil {
			total += ns.ActiveWorkloads
		}
	}
	return total
}

func namespaceKey(tenantID ids.ID, name string) string {
	return tenantID.String() + "/" + name
}

func cloneTenant(t *Tenant) *Tenant {
	cp := *t
	cp.Namespaces = append([]ids.ID(nil), t.Namespaces...)
	return &cp
}

func cloneNamespace(ns *Namespace) *Namespace {
	cp := *ns
	cp.Labels = lo.Assign(map[string]string{}, ns.Labels)
	return &cp
}
