package tenancy

import "fmt"

// InvalidNameError reports why a tenant or namespace name was rejected.
// Grounded on the original Rust implementation's field-level validation
// errors (claw-validation/src/strings.rs), which name the offending field
// and reason rather than returning a bare string.
type InvalidNameError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("tenancy: invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// AlreadyExistsError reports a duplicate tenant or namespace name.
type AlreadyExistsError struct {
	Kind string
	Name string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("tenancy: %s %q already exists", e.Kind, e.Name)
}

// NotFoundError reports a missing tenant or namespace.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tenancy: %s %q not found", e.Kind, e.ID)
}

// QuotaExceededError reports the first quota bound a request would violate.
type QuotaExceededError struct {
	Resource string
	Used     uint64
	Limit    uint64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("tenancy: quota exceeded for %s: used=%d limit=%d", e.Resource, e.Used, e.Limit)
}

// NotActiveError reports that a tenant is deactivated and cannot admit work.
type NotActiveError struct {
	TenantID string
}

func (e *NotActiveError) Error() string {
	return fmt.Sprintf("tenancy: tenant %q is not active", e.TenantID)
}

// HasActiveWorkloadsError rejects deleting a tenant that still has active workloads.
type HasActiveWorkloadsError struct {
	TenantID string
	Count    uint32
}

func (e *HasActiveWorkloadsError) Error() string {
	return fmt.Sprintf("tenancy: tenant %q has %d active workload(s)", e.TenantID, e.Count)
}
