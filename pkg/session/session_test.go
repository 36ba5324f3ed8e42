package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testclock "k8s.io/utils/clock/testing"

	"github.com/clawbernetes/gateway/pkg/events"
	"github.com/clawbernetes/gateway/pkg/ids"
	"github.com/clawbernetes/gateway/pkg/registry"
	"github.com/clawbernetes/gateway/pkg/workload"
)

var fixedNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf)
	env, err := Encode(TagHeartbeat, HeartbeatPayload{NodeID: ids.New()})
	require.NoError(t, err)
	require.NoError(t, fw.WriteEnvelope(env))

	fr := NewFrameReader(&buf)
	got, err := fr.ReadEnvelope()
	require.NoError(t, err)
	assert.Equal(t, TagHeartbeat, got.Tag)

	var p HeartbeatPayload
	require.NoError(t, json.Unmarshal(got.Payload, &p))
	assert.Equal(t, env.Tag, got.Tag)
}

func TestFrameReaderRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	fr := NewFrameReader(&buf)
	_, err := fr.ReadEnvelope()
	require.Error(t, err)
}

type fakeNodeRegistry struct {
	registered map[ids.ID]bool
	heartbeats int
}

func (f *fakeNodeRegistry) Register(nodeID ids.ID, name string, caps registry.Capabilities) (*registry.Node, bool, error) {
	f.registered[nodeID] = true
	return &registry.Node{ID: nodeID, Name: name, Capabilities: caps}, true, nil
}

func (f *fakeNodeRegistry) Heartbeat(nodeID ids.ID) error {
	if !f.registered[nodeID] {
		return errors.New("not found")
	}
	f.heartbeats++
	return nil
}

func (f *fakeNodeRegistry) Unregister(nodeID ids.ID) error {
	delete(f.registered, nodeID)
	return nil
}

type fakeWorkloadUpdater struct {
	states map[ids.ID]workload.State
	logs   map[ids.ID][]string
}

func (f *fakeWorkloadUpdater) UpdateState(id ids.ID, newState workload.State) error {
	f.states[id] = newState
	return nil
}

func (f *fakeWorkloadUpdater) SetExit(id ids.ID, newState workload.State, exitCode int32, errMsg string) error {
	f.states[id] = newState
	return nil
}

func (f *fakeWorkloadUpdater) AppendLogs(id ids.ID, stream workload.Stream, lines []string) error {
	f.logs[id] = append(f.logs[id], lines...)
	return nil
}

func newTestRouter() (*Router, *fakeNodeRegistry, *fakeWorkloadUpdater) {
	nodes := &fakeNodeRegistry{registered: make(map[ids.ID]bool)}
	workloads := &fakeWorkloadUpdater{states: make(map[ids.ID]workload.State), logs: make(map[ids.ID][]string)}
	bus := events.NewBus()
	return NewRouter(logr.Discard(), nodes, workloads, bus, 30, 10), nodes, workloads
}

func TestRouterHandlesRegisterThenHeartbeat(t *testing.T) {
	router, nodes, _ := newTestRouter()
	nodeID := ids.New()
	sess := &Session{SessionID: ids.New(), State: Connected, LastMessageAt: fixedNow}

	regEnv, err := Encode(TagRegister, RegisterPayload{NodeID: nodeID, Name: "n1"})
	require.NoError(t, err)
	reply, err := router.Dispatch(sess, regEnv)
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, TagRegistered, reply.Tag)
	assert.Equal(t, Registered, sess.State)
	assert.True(t, nodes.registered[nodeID])

	hbEnv, err := Encode(TagHeartbeat, HeartbeatPayload{NodeID: nodeID})
	require.NoError(t, err)
	reply, err = router.Dispatch(sess, hbEnv)
	require.NoError(t, err)
	assert.Equal(t, TagHeartbeatAck, reply.Tag)
	assert.Equal(t, 1, nodes.heartbeats)
}

func TestRouterRejectsHeartbeatFromUnregisteredSession(t *testing.T) {
	router, _, _ := newTestRouter()
	sess := &Session{SessionID: ids.New(), State: Connected}
	hbEnv, err := Encode(TagHeartbeat, HeartbeatPayload{NodeID: ids.New()})
	require.NoError(t, err)
	reply, err := router.Dispatch(sess, hbEnv)
	require.NoError(t, err)
	assert.Equal(t, TagError, reply.Tag)
}

func TestRouterAppendsWorkloadLogs(t *testing.T) {
	router, _, workloads := newTestRouter()
	sess := &Session{SessionID: ids.New(), State: Registered}
	wid := ids.New()
	env, err := Encode(TagWorkloadLogs, WorkloadLogsPayload{WorkloadID: wid, Lines: []string{"hello", "world"}})
	require.NoError(t, err)
	_, err = router.Dispatch(sess, env)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "world"}, workloads.logs[wid])
}

func TestManagerLifecycle(t *testing.T) {
	clk := testclock.NewFakeClock(fixedNow)
	m := NewManager(clk, events.NewBus())
	sess := m.Open()
	assert.Equal(t, Connected, sess.State)

	require.NoError(t, m.BeginDisconnect(sess.SessionID))
	got, err := m.Get(sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, Disconnecting, got.State)

	_, err = m.Close(sess.SessionID)
	require.NoError(t, err)
	_, err = m.Get(sess.SessionID)
	require.Error(t, err)
}

func TestManagerParseFailureThreshold(t *testing.T) {
	clk := testclock.NewFakeClock(fixedNow)
	m := NewManager(clk, events.NewBus())
	sess := m.Open()

	var shouldTerminate bool
	for i := 0; i < ParseFailureThreshold; i++ {
		shouldTerminate = m.RecordParseFailure(sess.SessionID)
	}
	assert.True(t, shouldTerminate)
}
