package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/clawbernetes/gateway/pkg/ids"
	"github.com/clawbernetes/gateway/pkg/session"
	"github.com/clawbernetes/gateway/pkg/workload"
)

// NodeDispatcher tracks which outbound Sender currently owns each
// registered node's session and implements preemption.Stopper on top of
// it, plus the waiter bookkeeping StopAndAwait needs to know when a node
// has confirmed a stop. It is the composition root's analog of the
// teacher's EventRecorder: a small piece of session-aware plumbing no
// single component (C2/C3/C5) should own outright.
type NodeDispatcher struct {
	mu      sync.Mutex
	senders map[ids.ID]session.Sender
	waiters map[ids.ID][]chan struct{}
}

// NewNodeDispatcher builds an empty NodeDispatcher.
func NewNodeDispatcher() *NodeDispatcher {
	return &NodeDispatcher{
		senders: make(map[ids.ID]session.Sender),
		waiters: make(map[ids.ID][]chan struct{}),
	}
}

// RegisterSender associates nodeID with its live outbound Sender, replacing
// any prior one from a dropped connection.
func (d *NodeDispatcher) RegisterSender(nodeID ids.ID, sender session.Sender) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.senders[nodeID] = sender
}

// UnregisterSender removes nodeID's sender, e.g. on session close.
func (d *NodeDispatcher) UnregisterSender(nodeID ids.ID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.senders, nodeID)
}

// NotifyWorkloadTerminal wakes any StopAndAwait callers blocked on
// workloadID reaching a terminal state, called by the gateway's
// terminal-observing WorkloadUpdater decorator.
func (d *NodeDispatcher) NotifyWorkloadTerminal(workloadID ids.ID) {
	d.mu.Lock()
	waiters := d.waiters[workloadID]
	delete(d.waiters, workloadID)
	d.mu.Unlock()
	for _, ch := range waiters {
		close(ch)
	}
}

// SendStart pushes a StartWorkload frame to nodeID for a freshly placed
// workload. It does not wait for acknowledgement; the node's first
// WorkloadUpdate carries the resulting state transition.
func (d *NodeDispatcher) SendStart(nodeID, workloadID ids.ID, spec workload.Spec) error {
	d.mu.Lock()
	sender, ok := d.senders[nodeID]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("gateway: no active session for node %s", nodeID)
	}
	env, err := session.Encode(session.TagStartWorkload, session.StartWorkloadPayload{WorkloadID: workloadID, Spec: spec})
	if err != nil {
		return err
	}
	return sender.WriteEnvelope(env)
}

// StopAndAwait implements preemption.Stopper: it sends a StopWorkload
// message to the node currently hosting workloadID and blocks until either
// the workload manager observes a terminal state for it or ctx expires.
func (d *NodeDispatcher) StopAndAwait(ctx context.Context, nodeID, workloadID ids.ID, grace time.Duration) error {
	d.mu.Lock()
	sender, ok := d.senders[nodeID]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("gateway: no active session for node %s", nodeID)
	}
	waiter := make(chan struct{})
	d.waiters[workloadID] = append(d.waiters[workloadID], waiter)
	d.mu.Unlock()

	graceSecs := uint32(grace / time.Second)
	env, err := session.Encode(session.TagStopWorkload, session.StopWorkloadPayload{WorkloadID: workloadID, GraceSecs: graceSecs})
	if err != nil {
		return err
	}
	if err := sender.WriteEnvelope(env); err != nil {
		return err
	}

	select {
	case <-waiter:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// notifyingUpdater decorates a workload.Manager so terminal transitions
// observed from an inbound WorkloadUpdate also wake any preemption.Evictor
// waiting on that workload via NodeDispatcher.StopAndAwait.
type notifyingUpdater struct {
	inner      *workload.Manager
	dispatcher *NodeDispatcher
}

func (n *notifyingUpdater) UpdateState(id ids.ID, newState workload.State) error {
	err := n.inner.UpdateState(id, newState)
	if err == nil && newState.IsTerminal() {
		n.dispatcher.NotifyWorkloadTerminal(id)
	}
	return err
}

func (n *notifyingUpdater) SetExit(id ids.ID, newState workload.State, exitCode int32, errMsg string) error {
	err := n.inner.SetExit(id, newState, exitCode, errMsg)
	if err == nil && newState.IsTerminal() {
		n.dispatcher.NotifyWorkloadTerminal(id)
	}
	return err
}

func (n *notifyingUpdater) AppendLogs(id ids.ID, stream workload.Stream, lines []string) error {
	return n.inner.AppendLogs(id, stream, lines)
}

// ForceTerminal satisfies preemption.Terminator, notifying any
// StopAndAwait waiter the same as a state transition observed off the wire
// so a stale waiter channel doesn't linger past a forced eviction.
func (n *notifyingUpdater) ForceTerminal(id ids.ID) error {
	err := n.inner.ForceTerminal(id)
	if err == nil {
		n.dispatcher.NotifyWorkloadTerminal(id)
	}
	return err
}
