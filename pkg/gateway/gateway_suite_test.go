package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	testclock "k8s.io/utils/clock/testing"

	"github.com/clawbernetes/gateway/pkg/config"
	"github.com/clawbernetes/gateway/pkg/ids"
	"github.com/clawbernetes/gateway/pkg/priorityclass"
	"github.com/clawbernetes/gateway/pkg/registry"
	"github.com/clawbernetes/gateway/pkg/tenancy"
	"github.com/clawbernetes/gateway/pkg/workload"
)

func TestGateway(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Gateway Suite")
}

var suiteNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func fourGPUCapabilities() registry.Capabilities {
	return registry.Capabilities{
		CPUCores:  32,
		MemoryMiB: 256 * 1024,
		GPUs: []registry.GPU{
			{Index: 0}, {Index: 1}, {Index: 2}, {Index: 3},
		},
	}
}

func submitPending(g *Gateway, nsID ids.ID, priorityClass string, gpus uint32) ids.ID {
	id, err := g.Workloads.Submit(workload.Spec{
		Image:         "registry.local/train:latest",
		Resources:     workload.Resources{GPUs: gpus, MemoryMiB: 1024},
		PriorityClass: priorityClass,
		Owner:         workload.Owner{NamespaceID: nsID},
	})
	Expect(err).NotTo(HaveOccurred())
	return id
}

// runOnNode drives a workload all the way to Running on nodeID, mirroring
// what commitPlacement plus an inbound WorkloadUpdate would do in
// production, without needing a real node session.
func runOnNode(g *Gateway, id, nodeID ids.ID) {
	Expect(g.Workloads.Dispatch(id, nodeID)).To(Succeed())
	Expect(g.Nodes.TouchWorkloadAssignment(nodeID, id, true)).To(Succeed())
	Expect(g.Workloads.UpdateState(id, workload.Running)).To(Succeed())
}

var _ = Describe("Reconcile", func() {
	var (
		fc   *testclock.FakeClock
		g    *Gateway
		nsID ids.ID
		node *registry.Node
	)

	BeforeEach(func() {
		fc = testclock.NewFakeClock(suiteNow)
		var err error
		g, err = New(config.Default(), logr.Discard(), fc)
		Expect(err).NotTo(HaveOccurred())

		tenant, err := g.Tenancy.CreateTenant("acme", tenancy.CreateTenantOptions{})
		Expect(err).NotTo(HaveOccurred())
		ns, err := g.Tenancy.CreateNamespace(tenant.ID, "prod", tenancy.CreateNamespaceOptions{})
		Expect(err).NotTo(HaveOccurred())
		nsID = ns.ID

		node, _, err = g.Nodes.Register(ids.New(), "gpu-box-1", fourGPUCapabilities())
		Expect(err).NotTo(HaveOccurred())
	})

	It("evicts lower-priority victims and places the preempting workload in the same tick", func() {
		spot1 := submitPending(g, nsID, priorityclass.Spot, 2)
		spot2 := submitPending(g, nsID, priorityclass.Spot, 2)
		runOnNode(g, spot1, node.ID)
		runOnNode(g, spot2, node.ID)

		urgent := submitPending(g, nsID, priorityclass.HighPriority, 4)

		g.Reconcile(context.Background())

		w, err := g.Workloads.Get(urgent)
		Expect(err).NotTo(HaveOccurred())
		Expect(w.State).To(Equal(workload.Starting))
		Expect(w.AssignedNode).NotTo(BeNil())
		Expect(*w.AssignedNode).To(Equal(node.ID))

		v1, err := g.Workloads.Get(spot1)
		Expect(err).NotTo(HaveOccurred())
		Expect(v1.State).To(Equal(workload.Stopped))

		v2, err := g.Workloads.Get(spot2)
		Expect(err).NotTo(HaveOccurred())
		Expect(v2.State).To(Equal(workload.Stopped))
	})

	It("leaves a workload Pending when no node, even after preemption, has room", func() {
		spot1 := submitPending(g, nsID, priorityclass.Spot, 2)
		spot2 := submitPending(g, nsID, priorityclass.Spot, 2)
		runOnNode(g, spot1, node.ID)
		runOnNode(g, spot2, node.ID)

		tooBig := submitPending(g, nsID, priorityclass.HighPriority, 8)

		g.Reconcile(context.Background())

		w, err := g.Workloads.Get(tooBig)
		Expect(err).NotTo(HaveOccurred())
		Expect(w.State).To(Equal(workload.Pending))
		Expect(w.AssignedNode).To(BeNil())
	})
})
