// Package store defines the persistence boundary of spec.md §6's
// "Persistent state layout": tenants/namespaces, workload records,
// priority class registrations, and the settled-job ledger. Logs and live
// metrics are explicitly not durable and have no home here.
//
// No durable-storage crate appears anywhere in the retrieved example pack
// or in original_source/'s crate list, so the only implementation is a
// standard-library, mutex-protected in-memory store behind the Store
// interface — the interface boundary is what would let a real backend be
// substituted later without touching C1/C3/C6, which only ever see Store.
package store

import (
	"sync"

	"github.com/clawbernetes/gateway/pkg/ids"
	"github.com/clawbernetes/gateway/pkg/priorityclass"
	"github.com/clawbernetes/gateway/pkg/tenancy"
	"github.com/clawbernetes/gateway/pkg/workload"
)

// SettlementRecord is one completed marketplace settlement, the durable
// ledger entry spec.md §6 requires outlive the in-memory bid/job objects.
type SettlementRecord struct {
	JobID           string
	ProviderID      string
	AmountPaid      uint64
	DurationSeconds uint64
}

// Store is the persistence boundary. Every method is safe for concurrent
// use; callers pass copies in and receive copies out, the same value
// semantics the in-process registries already use.
type Store interface {
	PutTenant(t *tenancy.Tenant) error
	Tenant(id ids.ID) (*tenancy.Tenant, bool)
	DeleteTenant(id ids.ID)
	ListTenants() []*tenancy.Tenant

	PutNamespace(ns *tenancy.Namespace) error
	Namespace(id ids.ID) (*tenancy.Namespace, bool)
	DeleteNamespace(id ids.ID)
	ListNamespaces() []*tenancy.Namespace

	PutWorkload(w *workload.Workload) error
	Workload(id ids.ID) (*workload.Workload, bool)
	DeleteWorkload(id ids.ID)
	ListWorkloads() []*workload.Workload

	PutPriorityClass(c priorityclass.Class) error
	ListPriorityClasses() []priorityclass.Class

	AppendSettlement(rec SettlementRecord)
	ListSettlements() []SettlementRecord
}

// MemoryStore is the default, and only, Store implementation: a
// sync.RWMutex-guarded set of maps, mirroring the lock-per-registry idiom
// the rest of this repo's stateful components use.
type MemoryStore struct {
	mu              sync.RWMutex
	tenants         map[ids.ID]*tenancy.Tenant
	namespaces      map[ids.ID]*tenancy.Namespace
	workloads       map[ids.ID]*workload.Workload
	priorityClasses map[string]priorityclass.Class
	settlements     []SettlementRecord
}

// New constructs an empty MemoryStore.
func New() *MemoryStore {
	return &MemoryStore{
		tenants:         make(map[ids.ID]*tenancy.Tenant),
		namespaces:      make(map[ids.ID]*tenancy.Namespace),
		workloads:       make(map[ids.ID]*workload.Workload),
		priorityClasses: make(map[string]priorityclass.Class),
	}
}

func (s *MemoryStore) PutTenant(t *tenancy.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	cp.Namespaces = append([]ids.ID(nil), t.Namespaces...)
	s.tenants[t.ID] = &cp
	return nil
}

func (s *MemoryStore) Tenant(id ids.ID) (*tenancy.Tenant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, false
	}
	cp := *t
	return &cp, true
}

func (s *MemoryStore) DeleteTenant(id ids.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tenants, id)
}

func (s *MemoryStore) ListTenants() []*tenancy.Tenant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*tenancy.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		cp := *t
		out = append(out, &cp)
	}
	return out
}

func (s *MemoryStore) PutNamespace(ns *tenancy.Namespace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ns
	s.namespaces[ns.ID] = &cp
	return nil
}

func (s *MemoryStore) Namespace(id ids.ID) (*tenancy.Namespace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ns, ok := s.namespaces[id]
	if !ok {
		return nil, false
	}
	cp := *ns
	return &cp, true
}

func (s *MemoryStore) DeleteNamespace(id ids.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.namespaces, id)
}

func (s *MemoryStore) ListNamespaces() []*tenancy.Namespace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*tenancy.Namespace, 0, len(s.namespaces))
	for _, ns := range s.namespaces {
		cp := *ns
		out = append(out, &cp)
	}
	return out
}

func (s *MemoryStore) PutWorkload(w *workload.Workload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *w
	s.workloads[w.ID] = &cp
	return nil
}

func (s *MemoryStore) Workload(id ids.ID) (*workload.Workload, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workloads[id]
	if !ok {
		return nil, false
	}
	cp := *w
	return &cp, true
}

func (s *MemoryStore) DeleteWorkload(id ids.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.workloads, id)
}

func (s *MemoryStore) ListWorkloads() []*workload.Workload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*workload.Workload, 0, len(s.workloads))
	for _, w := range s.workloads {
		cp := *w
		out = append(out, &cp)
	}
	return out
}

func (s *MemoryStore) PutPriorityClass(c priorityclass.Class) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.priorityClasses[c.Name] = c
	return nil
}

func (s *MemoryStore) ListPriorityClasses() []priorityclass.Class {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]priorityclass.Class, 0, len(s.priorityClasses))
	for _, c := range s.priorityClasses {
		out = append(out, c)
	}
	return out
}

func (s *MemoryStore) AppendSettlement(rec SettlementRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settlements = append(s.settlements, rec)
}

func (s *MemoryStore) ListSettlements() []SettlementRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SettlementRecord(nil), s.settlements...)
}
