package wbuf_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/dcachesim/dcache/internal/wbuf"
	"github.com/sarchlab/dcachesim/mem"
)

var _ = Describe("WBUF", func() {
	var w wbuf.WBUF

	BeforeEach(func() {
		w = wbuf.NewWBUF(2, 3)
	})

	drain := func() {
		for i := 0; i < 3; i++ {
			w.Tick()
		}
	}

	It("should open an entry for a new store", func() {
		slot, reason := w.Open(1, 10)

		Expect(reason).To(Equal(mem.NoDeps))
		Expect(slot).To(Equal(0))
		Expect(w.Lookup(1)).To(BeTrue())
	})

	It("should collide on a buffered write to the same address", func() {
		w.Open(1, 10)

		_, reason := w.Open(1, 11)

		Expect(reason).To(Equal(mem.WBufCollide))
		Expect(w.Size()).To(Equal(1))
	})

	It("should expose a buffered entry by address", func() {
		w.Open(1, 10)

		e, ok := w.Peek(1)

		Expect(ok).To(BeTrue())
		Expect(e.Addr).To(Equal(mem.Addr(1)))
		Expect(e.Data).To(Equal(mem.Data(10)))

		_, ok = w.Peek(2)

		Expect(ok).To(BeFalse())
	})

	It("should fail when no free slot exists", func() {
		w.Open(1, 10)
		w.Open(2, 20)

		_, reason := w.Open(3, 30)

		Expect(reason).To(Equal(mem.WBufFull))
	})

	It("should not send an entry before it drains", func() {
		w.Open(1, 10)
		w.Tick()

		_, ok := w.Send()

		Expect(ok).To(BeFalse())
	})

	It("should send the front eligible entry after draining", func() {
		w.Open(1, 10)
		w.Open(2, 20)
		drain()

		e, ok := w.Send()

		Expect(ok).To(BeTrue())
		Expect(e.Addr).To(Equal(mem.Addr(1)))
		Expect(e.Data).To(Equal(mem.Data(10)))
		Expect(e.State).To(Equal(wbuf.StateSent))
	})

	It("should free the slot on acknowledgment", func() {
		w.Open(1, 10)
		drain()
		w.Send()

		Expect(w.Ack(1)).To(Succeed())

		Expect(w.Size()).To(Equal(0))
		Expect(w.Lookup(1)).To(BeFalse())
	})

	It("should keep a slot occupied until the front retires", func() {
		w.Open(1, 10)
		w.Open(2, 20)
		drain()
		w.Send()
		w.Send()

		// Entry 2 retires first; its slot stays occupied behind entry 1.
		Expect(w.Ack(2)).To(Succeed())
		Expect(w.Size()).To(Equal(2))

		Expect(w.Ack(1)).To(Succeed())
		Expect(w.Size()).To(Equal(0))
	})

	It("should accept a new write to the address after retirement", func() {
		w.Open(1, 10)
		drain()
		w.Send()
		w.Ack(1)

		_, reason := w.Open(1, 11)

		Expect(reason).To(Equal(mem.NoDeps))
	})

	It("should error when acknowledging a write that was not sent",
		func() {
			w.Open(1, 10)

			Expect(w.Ack(1)).
				To(MatchError("acknowledging a write that was not sent"))
		})

	It("should reuse slots after wraparound", func() {
		w.Open(1, 10)
		drain()
		w.Send()
		w.Ack(1)

		slot, reason := w.Open(2, 20)

		Expect(reason).To(Equal(mem.NoDeps))
		Expect(slot).To(Equal(1))

		slot, reason = w.Open(3, 30)

		Expect(reason).To(Equal(mem.NoDeps))
		Expect(slot).To(Equal(0))
	})

	It("should reset", func() {
		w.Open(1, 10)

		w.Reset()

		Expect(w.Size()).To(Equal(0))
		Expect(w.Lookup(1)).To(BeFalse())
	})
})
