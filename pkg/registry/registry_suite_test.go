package registry_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	testclock "k8s.io/utils/clock/testing"

	"github.com/clawbernetes/gateway/pkg/ids"
	. "github.com/clawbernetes/gateway/pkg/registry"
)

func TestRegistry(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Registry Suite")
}

var fixedNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

var _ = Describe("Registry", func() {
	var (
		fc *testclock.FakeClock
		r  *Registry
	)

	BeforeEach(func() {
		fc = testclock.NewFakeClock(fixedNow)
		r = New(fc)
	})

	Describe("Register", func() {
		It("enrolls a new node as created", func() {
			nodeID := ids.New()
			n, created, err := r.Register(nodeID, "gpu-box-1", Capabilities{CPUCores: 8, MemoryMiB: 1024})
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeTrue())
			Expect(n.Name).To(Equal("gpu-box-1"))
		})

		It("reports unchanged when re-registering with identical capabilities", func() {
			nodeID := ids.New()
			_, _, err := r.Register(nodeID, "n1", Capabilities{CPUCores: 8, MemoryMiB: 1024})
			Expect(err).NotTo(HaveOccurred())

			_, changed, err := r.Register(nodeID, "n1", Capabilities{CPUCores: 8, MemoryMiB: 1024})
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeFalse())
		})

		It("preserves workload assignments across a re-registration with new capabilities", func() {
			nodeID := ids.New()
			_, _, err := r.Register(nodeID, "gpu-box-1", Capabilities{CPUCores: 8, MemoryMiB: 1024})
			Expect(err).NotTo(HaveOccurred())
			Expect(r.TouchWorkloadAssignment(nodeID, ids.New(), true)).To(Succeed())

			fc.Step(10 * time.Second)
			n2, changed, err := r.Register(nodeID, "gpu-box-1-renamed", Capabilities{CPUCores: 16, MemoryMiB: 2048})
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeTrue())
			Expect(n2.Name).To(Equal("gpu-box-1-renamed"))

			after, err := r.Get(nodeID)
			Expect(err).NotTo(HaveOccurred())
			Expect(after.Workloads).To(HaveLen(1), "re-registration must preserve workload assignments")
			Expect(after.Capabilities.CPUCores).To(Equal(uint32(16)))
		})
	})

	Describe("Unregister", func() {
		It("removes a known node", func() {
			nodeID := ids.New()
			_, _, err := r.Register(nodeID, "n1", Capabilities{})
			Expect(err).NotTo(HaveOccurred())

			Expect(r.Unregister(nodeID)).To(Succeed())
			_, err = r.Get(nodeID)
			Expect(err).To(HaveOccurred())
		})

		It("errors on an unknown node", func() {
			Expect(r.Unregister(ids.New())).To(HaveOccurred())
		})
	})

	Describe("Health derivation", func() {
		It("moves Healthy -> Unhealthy -> Offline as heartbeats age out", func() {
			nodeID := ids.New()
			_, _, err := r.Register(nodeID, "n1", Capabilities{})
			Expect(err).NotTo(HaveOccurred())

			Expect(r.Health(nodeID)).To(Equal(Healthy))

			fc.Step(31 * time.Second)
			Expect(r.Health(nodeID)).To(Equal(Unhealthy))

			fc.Step(60 * time.Second)
			Expect(r.Health(nodeID)).To(Equal(Offline))
		})

		It("overrides health to Draining regardless of heartbeat recency", func() {
			nodeID := ids.New()
			_, _, err := r.Register(nodeID, "n1", Capabilities{})
			Expect(err).NotTo(HaveOccurred())
			Expect(r.SetDraining(nodeID, true)).To(Succeed())

			Expect(r.Health(nodeID)).To(Equal(Draining))
		})
	})

	Describe("ListHealthy and List", func() {
		It("ListHealthy excludes unhealthy and draining nodes while List returns all of them", func() {
			healthy := ids.New()
			stale := ids.New()
			draining := ids.New()
			_, _, _ = r.Register(healthy, "h", Capabilities{})
			_, _, _ = r.Register(stale, "s", Capabilities{})
			_, _, _ = r.Register(draining, "d", Capabilities{})
			Expect(r.SetDraining(draining, true)).To(Succeed())
			fc.Step(200 * time.Second)
			Expect(r.Heartbeat(healthy)).To(Succeed())

			list := r.ListHealthy()
			Expect(list).To(HaveLen(1))
			Expect(list[0].ID).To(Equal(healthy))

			all := r.List()
			Expect(all).To(HaveLen(3))
		})
	})

	Describe("Summary", func() {
		It("tallies node counts by derived health", func() {
			_, _, _ = r.Register(ids.New(), "a", Capabilities{})
			_, _, _ = r.Register(ids.New(), "b", Capabilities{})
			s := r.Summary()
			Expect(s.Healthy).To(Equal(2))
			Expect(s.Total).To(Equal(2))
		})
	})
})
