package registry

import "fmt"

// AlreadyRegisteredError reports a duplicate node registration. Register
// never returns it: re-registration of a known id is idempotent (spec.md
// §4.2), and nothing else in this package raises it.
type AlreadyRegisteredError struct{ NodeID string }

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("registry: node %q already registered", e.NodeID)
}

// NotFoundError reports a lookup against an unregistered node id.
type NotFoundError struct{ NodeID string }

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("registry: node %q not found", e.NodeID)
}
