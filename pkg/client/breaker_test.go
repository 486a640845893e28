package client_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/backend-scheduler/pkg/client"
)

var _ = Describe("CircuitBreaker", func() {
	It("starts closed and allows requests", func() {
		cb := client.NewCircuitBreaker(3, time.Minute)
		Expect(cb.State()).To(Equal(client.BreakerClosed))
		Expect(cb.Allow()).To(BeTrue())
	})

	It("opens after reaching the failure threshold", func() {
		cb := client.NewCircuitBreaker(3, time.Minute)

		cb.RecordFailure()
		cb.RecordFailure()
		Expect(cb.State()).To(Equal(client.BreakerClosed))

		cb.RecordFailure()
		Expect(cb.State()).To(Equal(client.BreakerOpen))
		Expect(cb.Allow()).To(BeFalse())
	})

	It("allows a probe after the reset timeout", func() {
		cb := client.NewCircuitBreaker(1, 10*time.Millisecond)
		cb.RecordFailure()
		Expect(cb.Allow()).To(BeFalse())

		time.Sleep(15 * time.Millisecond)
		Expect(cb.Allow()).To(BeTrue())
		Expect(cb.State()).To(Equal(client.BreakerHalfOpen))
	})

	It("re-opens when the half-open probe fails", func() {
		cb := client.NewCircuitBreaker(1, 10*time.Millisecond)
		cb.RecordFailure()
		time.Sleep(15 * time.Millisecond)
		Expect(cb.Allow()).To(BeTrue())

		cb.RecordFailure()
		Expect(cb.State()).To(Equal(client.BreakerOpen))
		Expect(cb.Allow()).To(BeFalse())
	})

	It("closes again after a successful probe", func() {
		cb := client.NewCircuitBreaker(1, 10*time.Millisecond)
		cb.RecordFailure()
		time.Sleep(15 * time.Millisecond)
		Expect(cb.Allow()).To(BeTrue())

		cb.RecordSuccess()
		Expect(cb.State()).To(Equal(client.BreakerClosed))
		Expect(cb.Allow()).To(BeTrue())
	})

	It("reports readable state names", func() {
		Expect(client.BreakerClosed.String()).To(Equal("CLOSED"))
		Expect(client.BreakerOpen.String()).To(Equal("OPEN"))
		Expect(client.BreakerHalfOpen.String()).To(Equal("HALF-OPEN"))
	})
})
