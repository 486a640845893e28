package policy_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/backend-scheduler/internal/backend"
	"github.com/angeloszaimis/backend-scheduler/internal/policy"
)

var _ = Describe("RoundRobin", func() {
	var (
		pol      policy.Policy
		backends []*backend.Backend
	)

	BeforeEach(func() {
		pol = policy.NewRoundRobin(1)

		backends = []*backend.Backend{
			newBackend("app-1", "worker-a", 1, backend.StateActive),
			newBackend("app-1", "worker-b", 1, backend.StateActive),
			newBackend("app-1", "worker-c", 1, backend.StateActive),
		}
	})

	Describe("SelectBackends", func() {
		Context("with all active backends", func() {
			It("should visit each backend once per cycle in registration order", func() {
				Expect(pol.SelectBackends(backends)).To(Equal(backends[0:1]))
				Expect(pol.SelectBackends(backends)).To(Equal(backends[1:2]))
				Expect(pol.SelectBackends(backends)).To(Equal(backends[2:3]))
				Expect(pol.SelectBackends(backends)).To(Equal(backends[0:1]))
			})

			It("should distribute selections evenly", func() {
				counts := make(map[string]int)
				for i := 0; i < 300; i++ {
					selected := pol.SelectBackends(backends)
					Expect(selected).To(HaveLen(1))
					counts[selected[0].InstanceID]++
				}
				Expect(counts["worker-a"]).To(Equal(100))
				Expect(counts["worker-b"]).To(Equal(100))
				Expect(counts["worker-c"]).To(Equal(100))
			})
		})

		Context("with a limit above one", func() {
			BeforeEach(func() {
				pol = policy.NewRoundRobin(2)
			})

			It("should return a rotated window and advance by the window size", func() {
				Expect(pol.SelectBackends(backends)).To(Equal([]*backend.Backend{backends[0], backends[1]}))
				Expect(pol.SelectBackends(backends)).To(Equal([]*backend.Backend{backends[2], backends[0]}))
				Expect(pol.SelectBackends(backends)).To(Equal([]*backend.Backend{backends[1], backends[2]}))
			})
		})

		Context("with a limit above the active count", func() {
			BeforeEach(func() {
				pol = policy.NewRoundRobin(10)
			})

			It("should return all active backends without padding", func() {
				Expect(pol.SelectBackends(backends)).To(HaveLen(3))
			})

			It("should not advance the cursor past the active set", func() {
				first := pol.SelectBackends(backends)
				second := pol.SelectBackends(backends)
				Expect(second).To(Equal(first))
			})
		})

		Context("with down backends in the candidate list", func() {
			BeforeEach(func() {
				backends[1].State = backend.StateDown
			})

			It("should skip down backends entirely", func() {
				Expect(pol.SelectBackends(backends)).To(Equal(backends[0:1]))
				Expect(pol.SelectBackends(backends)).To(Equal(backends[2:3]))
				Expect(pol.SelectBackends(backends)).To(Equal(backends[0:1]))
			})
		})

		Context("with no active backends", func() {
			BeforeEach(func() {
				for _, b := range backends {
					b.State = backend.StateDown
				}
			})

			It("should return an empty selection", func() {
				Expect(pol.SelectBackends(backends)).To(BeEmpty())
			})
		})

		Context("with an empty candidate list", func() {
			It("should return an empty selection", func() {
				Expect(pol.SelectBackends(nil)).To(BeEmpty())
			})
		})

		Context("when the active set shrinks between calls", func() {
			It("should wrap the stale cursor instead of panicking", func() {
				Expect(pol.SelectBackends(backends)).To(HaveLen(1))
				Expect(pol.SelectBackends(backends)).To(HaveLen(1))

				shrunk := backends[:1]
				Expect(pol.SelectBackends(shrunk)).To(Equal(backends[0:1]))
			})
		})
	})

	Describe("SetLimit", func() {
		It("should keep the cursor position", func() {
			Expect(pol.SelectBackends(backends)).To(Equal(backends[0:1]))

			pol.SetLimit(1)
			Expect(pol.SelectBackends(backends)).To(Equal(backends[1:2]))
		})
	})
})
