package session

import (
	"github.com/clawbernetes/gateway/pkg/ids"
	"github.com/clawbernetes/gateway/pkg/registry"
	"github.com/clawbernetes/gateway/pkg/workload"
)

// RegisterPayload is the inbound Register message body.
type RegisterPayload struct {
	NodeID       ids.ID
	Name         string
	Capabilities registry.Capabilities
}

// RegisteredPayload is the outbound reply to Register.
type RegisteredPayload struct {
	NodeID               ids.ID
	HeartbeatIntervalSecs uint32
	MetricsIntervalSecs   uint32
}

// HeartbeatPayload is the inbound Heartbeat message body.
type HeartbeatPayload struct {
	NodeID ids.ID
}

// HeartbeatAckPayload is the outbound reply to Heartbeat.
type HeartbeatAckPayload struct {
	ServerTimeUnixMilli int64
}

// MetricsPayload is the inbound Metrics message body.
type MetricsPayload struct {
	NodeID     ids.ID
	GPUMetrics []GPUMetric
}

// WorkloadUpdatePayload is the inbound WorkloadUpdate message body.
type WorkloadUpdatePayload struct {
	WorkloadID ids.ID
	State      workload.State
	Message    string
	ExitCode   *int32
}

// WorkloadLogsPayload is the inbound WorkloadLogs message body.
type WorkloadLogsPayload struct {
	WorkloadID ids.ID
	Lines      []string
	IsStderr   bool
}

// MeshReadyPayload is the inbound MeshReady message body.
type MeshReadyPayload struct {
	NodeID    ids.ID
	MeshIP    string
	PeerCount uint32
	Error     string
}

// StartWorkloadPayload is the outbound StartWorkload message body.
type StartWorkloadPayload struct {
	WorkloadID ids.ID
	Spec       workload.Spec
}

// StopWorkloadPayload is the outbound StopWorkload message body.
type StopWorkloadPayload struct {
	WorkloadID ids.ID
	GraceSecs  uint32
}

// ErrorPayload is the outbound error reply for a rejected inbound message.
type ErrorPayload struct {
	Kind    string
	Message string
}
