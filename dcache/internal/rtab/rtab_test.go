package rtab_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/dcachesim/dcache/internal/rtab"
	"github.com/sarchlab/dcachesim/mem"
)

func loadReq(addr mem.Addr, tid mem.TID) mem.Request {
	return mem.Request{Op: mem.OpLoad, SID: 0, TID: tid, Addr: addr}
}

var _ = Describe("RTAB", func() {
	var r rtab.RTAB

	BeforeEach(func() {
		r = rtab.NewRTAB(4)
	})

	It("should admit a blocked request as a new chain", func() {
		slot, err := r.Admit(loadReq(1, 1), mem.MSHRCollide)

		Expect(err).To(BeNil())
		Expect(slot).To(Equal(0))
		Expect(r.HasMatch(1)).To(BeTrue())
		Expect(r.WellFormed()).To(Succeed())
	})

	It("should append same-address same-reason requests in FIFO order",
		func() {
			r.Admit(loadReq(1, 1), mem.MSHRCollide)
			r.Admit(loadReq(1, 2), mem.MSHRCollide)
			r.Admit(loadReq(1, 3), mem.MSHRCollide)

			chain := r.Chain(1, mem.MSHRCollide)

			Expect(chain).To(HaveLen(3))
			Expect(chain[0].TID).To(Equal(mem.TID(1)))
			Expect(chain[1].TID).To(Equal(mem.TID(2)))
			Expect(chain[2].TID).To(Equal(mem.TID(3)))
			Expect(r.WellFormed()).To(Succeed())
		})

	It("should keep different reasons in different chains", func() {
		r.Admit(loadReq(1, 1), mem.MSHRCollide)
		r.Admit(loadReq(1, 2), mem.RTabHit)

		Expect(r.Chain(1, mem.MSHRCollide)).To(HaveLen(1))
		Expect(r.Chain(1, mem.RTabHit)).To(HaveLen(1))
		Expect(r.WellFormed()).To(Succeed())
	})

	It("should fail when the table is full", func() {
		for tid := mem.TID(1); tid <= 4; tid++ {
			_, err := r.Admit(loadReq(mem.Addr(tid), tid), mem.MSHRFull)
			Expect(err).To(BeNil())
		}

		Expect(r.IsFull()).To(BeTrue())

		_, err := r.Admit(loadReq(5, 5), mem.MSHRFull)

		Expect(err).To(MatchError(rtab.ErrTableFull))
	})

	It("should pop chain heads in FIFO order", func() {
		r.Admit(loadReq(1, 1), mem.MSHRCollide)
		r.Admit(loadReq(1, 2), mem.MSHRCollide)

		e, ok := r.PopOldestHead(
			rtab.Match{Addr: 1, Reason: mem.MSHRCollide})

		Expect(ok).To(BeTrue())
		Expect(e.Req.TID).To(Equal(mem.TID(1)))
		Expect(r.WellFormed()).To(Succeed())

		e, ok = r.PopOldestHead(
			rtab.Match{Addr: 1, Reason: mem.MSHRCollide})

		Expect(ok).To(BeTrue())
		Expect(e.Req.TID).To(Equal(mem.TID(2)))
		Expect(r.Size()).To(Equal(0))
		Expect(r.WellFormed()).To(Succeed())
	})

	It("should not pop heads that match no selector", func() {
		r.Admit(loadReq(1, 1), mem.MSHRCollide)

		_, ok := r.PopOldestHead(
			rtab.Match{Addr: 2, Reason: mem.MSHRCollide},
			rtab.Match{Addr: 1, Reason: mem.WBufCollide})

		Expect(ok).To(BeFalse())
		Expect(r.Size()).To(Equal(1))
	})

	It("should match any address when the selector carries NoAddr",
		func() {
			r.Admit(loadReq(3, 1), mem.MSHRFull)

			e, ok := r.PopOldestHead(
				rtab.Match{Addr: mem.NoAddr, Reason: mem.MSHRFull})

			Expect(ok).To(BeTrue())
			Expect(e.Req.Addr).To(Equal(mem.Addr(3)))
		})

	It("should break cross-chain ties by admission order", func() {
		r.Admit(loadReq(1, 1), mem.MSHRFull)
		r.Admit(loadReq(2, 2), mem.WBufFull)
		r.Admit(loadReq(3, 3), mem.MSHRFull)

		e, ok := r.PopOldestHead(
			rtab.Match{Addr: mem.NoAddr, Reason: mem.MSHRFull},
			rtab.Match{Addr: mem.NoAddr, Reason: mem.WBufFull})

		Expect(ok).To(BeTrue())
		Expect(e.Req.TID).To(Equal(mem.TID(1)))

		e, ok = r.PopOldestHead(
			rtab.Match{Addr: mem.NoAddr, Reason: mem.MSHRFull},
			rtab.Match{Addr: mem.NoAddr, Reason: mem.WBufFull})

		Expect(ok).To(BeTrue())
		Expect(e.Req.TID).To(Equal(mem.TID(2)))
	})

	It("should reuse a freed slot without corrupting chains", func() {
		r.Admit(loadReq(1, 1), mem.MSHRCollide)
		r.Admit(loadReq(1, 2), mem.MSHRCollide)
		r.PopOldestHead(rtab.Match{Addr: 1, Reason: mem.MSHRCollide})

		// Slot 0 is free again; the next admission takes it and joins
		// the tail of the surviving chain.
		slot, err := r.Admit(loadReq(1, 3), mem.MSHRCollide)

		Expect(err).To(BeNil())
		Expect(slot).To(Equal(0))

		chain := r.Chain(1, mem.MSHRCollide)
		Expect(chain).To(HaveLen(2))
		Expect(chain[0].TID).To(Equal(mem.TID(2)))
		Expect(chain[1].TID).To(Equal(mem.TID(3)))
		Expect(r.WellFormed()).To(Succeed())
	})

	It("should not pop a head while an older entry for the address is "+
		"parked in another chain", func() {
		r.Admit(loadReq(1, 1), mem.WBufFull)
		r.Admit(loadReq(1, 2), mem.RTabHit)

		_, ok := r.PopOldestHead(
			rtab.Match{Addr: mem.NoAddr, Reason: mem.RTabHit})

		Expect(ok).To(BeFalse())

		e, ok := r.PopOldestHead(
			rtab.Match{Addr: mem.NoAddr, Reason: mem.WBufFull})

		Expect(ok).To(BeTrue())
		Expect(e.Req.TID).To(Equal(mem.TID(1)))

		e, ok = r.PopOldestHead(
			rtab.Match{Addr: mem.NoAddr, Reason: mem.RTabHit})

		Expect(ok).To(BeTrue())
		Expect(e.Req.TID).To(Equal(mem.TID(2)))
	})

	It("should readmit a popped entry ahead of younger requests", func() {
		r.Admit(loadReq(1, 1), mem.MSHRCollide)
		r.Admit(loadReq(1, 2), mem.RTabHit)

		e, ok := r.PopOldestHead(
			rtab.Match{Addr: 1, Reason: mem.MSHRCollide})
		Expect(ok).To(BeTrue())

		// The replayed request blocks again, this time on the write
		// buffer. Its original admission order is preserved, so it still
		// replays before the younger RTabHit request.
		_, err := r.Readmit(e, mem.WBufCollide)
		Expect(err).To(BeNil())
		Expect(r.WellFormed()).To(Succeed())

		_, ok = r.PopOldestHead(
			rtab.Match{Addr: mem.NoAddr, Reason: mem.RTabHit})
		Expect(ok).To(BeFalse())

		e, ok = r.PopOldestHead(
			rtab.Match{Addr: 1, Reason: mem.WBufCollide})
		Expect(ok).To(BeTrue())
		Expect(e.Req.TID).To(Equal(mem.TID(1)))
	})

	It("should reset", func() {
		r.Admit(loadReq(1, 1), mem.MSHRCollide)

		r.Reset()

		Expect(r.Size()).To(Equal(0))
		Expect(r.HasMatch(1)).To(BeFalse())
		Expect(r.WellFormed()).To(Succeed())
	})
})
