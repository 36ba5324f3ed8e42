package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/patrickmn/go-cache"

	"github.com/clawbernetes/gateway/pkg/events"
	"github.com/clawbernetes/gateway/pkg/ids"
	"github.com/clawbernetes/gateway/pkg/metrics"
	"github.com/clawbernetes/gateway/pkg/registry"
	"github.com/clawbernetes/gateway/pkg/workload"
)

// NodeRegistry is the subset of C2 the router depends on.
type NodeRegistry interface {
	Register(nodeID ids.ID, name string, caps registry.Capabilities) (*registry.Node, bool, error)
	Heartbeat(nodeID ids.ID) error
	Unregister(nodeID ids.ID) error
}

// WorkloadUpdater is the subset of C3 the router depends on.
type WorkloadUpdater interface {
	UpdateState(id ids.ID, newState workload.State) error
	SetExit(id ids.ID, newState workload.State, exitCode int32, errMsg string) error
	AppendLogs(id ids.ID, stream workload.Stream, lines []string) error
}

// Router dispatches inbound envelopes to C2/C3 and publishes live-update
// events, per the message table of spec.md §4.7.
type Router struct {
	log                   logr.Logger
	nodes                 NodeRegistry
	workloads             WorkloadUpdater
	bus                   *events.Bus
	heartbeatIntervalSecs uint32
	metricsIntervalSecs   uint32
	// recentMetrics caches the last Metrics payload per node for the
	// GET /nodes/{id} detail endpoint, avoiding a round trip to the live
	// session for a value that is allowed to be briefly stale.
	recentMetrics *cache.Cache
}

// NewRouter builds a Router. heartbeatIntervalSecs/metricsIntervalSecs are
// echoed back to the node in the Registered reply (spec.md §4.7).
func NewRouter(log logr.Logger, nodes NodeRegistry, workloads WorkloadUpdater, bus *events.Bus, heartbeatIntervalSecs, metricsIntervalSecs uint32) *Router {
	return &Router{
		log:                   log.WithName("session-router"),
		nodes:                 nodes,
		workloads:             workloads,
		bus:                   bus,
		heartbeatIntervalSecs: heartbeatIntervalSecs,
		metricsIntervalSecs:   metricsIntervalSecs,
		recentMetrics:         cache.New(2*time.Minute, 5*time.Minute),
	}
}

// RecentMetrics returns the last cached Metrics payload for nodeID, if any.
func (r *Router) RecentMetrics(nodeID ids.ID) (MetricsPayload, bool) {
	v, ok := r.recentMetrics.Get(nodeID.String())
	if !ok {
		return MetricsPayload{}, false
	}
	return v.(MetricsPayload), true
}

// Dispatch handles one inbound envelope for sess, returning an optional
// reply envelope. Handler errors are returned to the caller to log; per
// spec.md §7 they must not drop the session (only Transport-class errors
// do that).
func (r *Router) Dispatch(sess *Session, env Envelope) (*Envelope, error) {
	metrics.SessionMessagesTotal.WithLabelValues(string(env.Tag)).Inc()

	switch env.Tag {
	case TagRegister:
		return r.handleRegister(sess, env)
	case TagHeartbeat:
		return r.handleHeartbeat(sess, env)
	case TagMetrics:
		return nil, r.handleMetrics(sess, env)
	case TagWorkloadUpdate:
		return nil, r.handleWorkloadUpdate(env)
	case TagWorkloadLogs:
		return nil, r.handleWorkloadLogs(env)
	case TagMeshReady:
		return nil, r.handleMeshReady(env)
	default:
		return nil, fmt.Errorf("session: unknown message tag %q", env.Tag)
	}
}

func (r *Router) handleRegister(sess *Session, env Envelope) (*Envelope, error) {
	var p RegisterPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil, fmt.Errorf("session: malformed Register payload: %w", err)
	}
	node, created, err := r.nodes.Register(p.NodeID, p.Name, p.Capabilities)
	if err != nil {
		return nil, err
	}
	sess.NodeID = &p.NodeID
	if isAllowedTransition(sess.State, Registered) {
		sess.State = Registered
	}
	if created {
		r.bus.Publish(events.Event{Kind: events.NodeRegistered, Subject: node.ID.String(), Data: node})
	}
	reply, err := Encode(TagRegistered, RegisteredPayload{
		NodeID:                p.NodeID,
		HeartbeatIntervalSecs: r.heartbeatIntervalSecs,
		MetricsIntervalSecs:   r.metricsIntervalSecs,
	})
	return &reply, err
}

func (r *Router) handleHeartbeat(sess *Session, env Envelope) (*Envelope, error) {
	var p HeartbeatPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil, fmt.Errorf("session: malformed Heartbeat payload: %w", err)
	}
	if sess.NodeID == nil || *sess.NodeID != p.NodeID {
		errEnv, _ := Encode(TagError, ErrorPayload{Kind: "NotFound", Message: "heartbeat from unregistered node"})
		return &errEnv, nil
	}
	if err := r.nodes.Heartbeat(p.NodeID); err != nil {
		errEnv, _ := Encode(TagError, ErrorPayload{Kind: "NotFound", Message: err.Error()})
		return &errEnv, nil
	}
	r.bus.Publish(events.Event{Kind: events.Heartbeat, Subject: p.NodeID.String()})
	reply, err := Encode(TagHeartbeatAck, HeartbeatAckPayload{ServerTimeUnixMilli: sess.LastMessageAt.UnixMilli()})
	return &reply, err
}

func (r *Router) handleMetrics(sess *Session, env Envelope) error {
	var p MetricsPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return fmt.Errorf("session: malformed Metrics payload: %w", err)
	}
	if sess.NodeID == nil || *sess.NodeID != p.NodeID {
		return fmt.Errorf("session: metrics from unregistered node %s", p.NodeID)
	}
	r.recentMetrics.Set(p.NodeID.String(), p, cache.DefaultExpiration)
	r.bus.Publish(events.Event{Kind: events.MetricsUpdate, Subject: p.NodeID.String(), Data: p})
	return nil
}

func (r *Router) handleWorkloadUpdate(env Envelope) error {
	var p WorkloadUpdatePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return fmt.Errorf("session: malformed WorkloadUpdate payload: %w", err)
	}
	var err error
	if p.State == workload.Completed || p.State == workload.Failed {
		var exitCode int32
		if p.ExitCode != nil {
			exitCode = *p.ExitCode
		}
		err = r.workloads.SetExit(p.WorkloadID, p.State, exitCode, p.Message)
	} else {
		err = r.workloads.UpdateState(p.WorkloadID, p.State)
	}
	if err != nil {
		return err
	}
	r.bus.Publish(events.Event{Kind: events.WorkloadStateChanged, Subject: p.WorkloadID.String(), Data: p})
	return nil
}

func (r *Router) handleWorkloadLogs(env Envelope) error {
	var p WorkloadLogsPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return fmt.Errorf("session: malformed WorkloadLogs payload: %w", err)
	}
	stream := workload.Stdout
	if p.IsStderr {
		stream = workload.Stderr
	}
	if err := r.workloads.AppendLogs(p.WorkloadID, stream, p.Lines); err != nil {
		return err
	}
	for _, line := range p.Lines {
		r.bus.Publish(events.Event{Kind: events.LogLine, Subject: p.WorkloadID.String(), Data: line})
	}
	return nil
}

func (r *Router) handleMeshReady(env Envelope) error {
	var p MeshReadyPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return fmt.Errorf("session: malformed MeshReady payload: %w", err)
	}
	if p.Error != "" {
		r.log.Info("mesh not ready", "node", p.NodeID, "error", p.Error)
	} else {
		r.log.Info("mesh ready", "node", p.NodeID, "meshIP", p.MeshIP, "peers", p.PeerCount)
	}
	return nil
}
