// Package session implements the Glue component: per-node session state
// machine, length-delimited JSON message framing, and routing of inbound
// node messages to C2 (registry) and C3 (workload).
//
// Grounded on the teacher's per-controller reconciliation loop shape
// (read -> validate -> dispatch -> respond) and clock.Clock injection;
// the length-delimited wire framing follows spec.md §6 literally ("length-
// delimited framed messages, JSON-encoded") rather than the original Rust
// implementation's WebSocket transport (claw-gateway-server/src/session.rs
// uses tokio-tungstenite) since no length-delimited-framing library
// appears anywhere in the example pack; this one boundary is built on
// encoding/binary + bufio, justified in DESIGN.md.
package session

import (
	"time"

	"github.com/clawbernetes/gateway/pkg/ids"
)

// State is a node session's lifecycle stage (spec.md §4.7).
type State string

const (
	Connected     State = "Connected"
	Registered    State = "Registered"
	Disconnecting State = "Disconnecting"
	Disconnected  State = "Disconnected"
)

// Session tracks one node connection's lifecycle.
type Session struct {
	SessionID     ids.ID
	NodeID        *ids.ID
	State         State
	ConnectedAt   time.Time
	LastMessageAt time.Time
}

// GPUMetric is one GPU's point-in-time utilization sample.
type GPUMetric struct {
	Index       uint32
	UtilPercent float32
	MemUsedMiB  uint64
}

var transitions = map[State]map[State]bool{
	Connected:     {Registered: true, Disconnecting: true, Disconnected: true},
	Registered:    {Disconnecting: true, Disconnected: true},
	Disconnecting: {Disconnected: true},
}

func isAllowedTransition(from, to State) bool {
	return transitions[from][to]
}
