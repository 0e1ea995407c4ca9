package mshr_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/dcachesim/dcache/internal/mshr"
	"github.com/sarchlab/dcachesim/mem"
)

var _ = Describe("MSHR", func() {
	var m mshr.MSHR

	BeforeEach(func() {
		m = mshr.NewMSHR(4)
	})

	It("should allocate an entry", func() {
		slot, reason := m.Allocate(1, 0, 1)

		Expect(reason).To(Equal(mem.NoDeps))
		Expect(slot).To(Equal(0))
		Expect(m.Lookup(1)).To(BeTrue())
		Expect(m.Size()).To(Equal(1))
	})

	It("should collide on a duplicate outstanding miss", func() {
		m.Allocate(1, 0, 1)

		_, reason := m.Allocate(1, 0, 2)

		Expect(reason).To(Equal(mem.MSHRCollide))
		Expect(m.Size()).To(Equal(1))
	})

	It("should fail when full", func() {
		m.Allocate(1, 0, 1)
		m.Allocate(2, 0, 2)
		m.Allocate(3, 0, 3)

		Expect(m.IsFull()).To(BeFalse())

		m.Allocate(4, 0, 4)

		Expect(m.IsFull()).To(BeTrue())

		_, reason := m.Allocate(5, 0, 5)
		Expect(reason).To(Equal(mem.MSHRFull))
	})

	It("should dequeue from the front on completion", func() {
		m.Allocate(1, 0, 1)
		m.Allocate(2, 0, 2)

		Expect(m.Complete(1)).To(Succeed())

		Expect(m.Lookup(1)).To(BeFalse())
		Expect(m.Lookup(2)).To(BeTrue())
		Expect(m.Size()).To(Equal(1))
	})

	It("should defer the dequeue of out-of-order completions", func() {
		m.Allocate(1, 0, 1)
		m.Allocate(2, 0, 2)

		Expect(m.Complete(2)).To(Succeed())

		// Slot 2's flag is clear but slot 1 still blocks the front.
		Expect(m.Lookup(2)).To(BeFalse())
		Expect(m.Size()).To(Equal(2))

		Expect(m.Complete(1)).To(Succeed())

		Expect(m.Size()).To(Equal(0))
	})

	It("should list the waiting misses oldest first", func() {
		m.Allocate(3, 0, 1)
		m.Allocate(1, 0, 2)
		m.Allocate(2, 0, 3)

		Expect(m.Complete(1)).To(Succeed())

		Expect(m.Waiting()).To(Equal([]mem.Addr{3, 2}))
	})

	It("should reuse slots after wraparound", func() {
		for addr := mem.Addr(1); addr <= 4; addr++ {
			m.Allocate(addr, 0, mem.TID(addr))
		}
		for addr := mem.Addr(1); addr <= 4; addr++ {
			Expect(m.Complete(addr)).To(Succeed())
		}

		slot, reason := m.Allocate(5, 0, 5)

		Expect(reason).To(Equal(mem.NoDeps))
		Expect(slot).To(Equal(0))
		Expect(m.Size()).To(Equal(1))
	})

	It("should allow a new miss to an address after completion", func() {
		m.Allocate(1, 0, 1)
		m.Complete(1)

		_, reason := m.Allocate(1, 0, 2)

		Expect(reason).To(Equal(mem.NoDeps))
	})

	It("should error when completing a miss that is not outstanding",
		func() {
			Expect(m.Complete(1)).
				To(MatchError("completing a miss that is not outstanding"))
		})

	It("should reset", func() {
		m.Allocate(1, 0, 1)

		m.Reset()

		Expect(m.Size()).To(Equal(0))
		Expect(m.Lookup(1)).To(BeFalse())
	})
})
