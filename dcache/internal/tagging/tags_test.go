package tagging_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/dcachesim/dcache/internal/tagging"
	"github.com/sarchlab/dcachesim/mem"
)

var _ = Describe("Tags", func() {
	var tags tagging.Tags

	BeforeEach(func() {
		tags = tagging.NewTags(4)
	})

	It("should miss on an empty cache", func() {
		_, found := tags.Lookup(1)

		Expect(found).To(BeFalse())
	})

	It("should hit after an update", func() {
		tags.Update(tagging.Slot{ID: 2, Addr: 1, Data: 10, IsValid: true})

		slot, found := tags.Lookup(1)

		Expect(found).To(BeTrue())
		Expect(slot.ID).To(Equal(2))
		Expect(slot.Data).To(Equal(mem.Data(10)))
	})

	It("should miss after invalidation", func() {
		tags.Update(tagging.Slot{ID: 2, Addr: 1, Data: 10, IsValid: true})
		tags.Update(tagging.Slot{ID: 2})

		_, found := tags.Lookup(1)

		Expect(found).To(BeFalse())
	})

	It("should reset the PLRU vector when all bits saturate", func() {
		for i := 0; i < 3; i++ {
			tags.Touch(i)
		}

		Expect(tags.PLRUBits()).To(Equal([]bool{true, true, true, false}))

		tags.Touch(3)

		Expect(tags.PLRUBits()).To(Equal([]bool{false, false, false, true}))
	})
})

var _ = Describe("PLRUVictimFinder", func() {
	var (
		tags   tagging.Tags
		finder tagging.VictimFinder
	)

	BeforeEach(func() {
		tags = tagging.NewTags(2)
		finder = tagging.NewPLRUVictimFinder()
	})

	It("should prefer an invalid slot", func() {
		tags.Update(tagging.Slot{ID: 0, Addr: 1, Data: 10, IsValid: true})
		tags.Touch(0)

		victim, found := finder.FindVictim(tags)

		Expect(found).To(BeTrue())
		Expect(victim.ID).To(Equal(1))
	})

	It("should avoid the recently used slot", func() {
		tags.Update(tagging.Slot{ID: 0, Addr: 1, Data: 10, IsValid: true})
		tags.Update(tagging.Slot{ID: 1, Addr: 2, Data: 20, IsValid: true})
		tags.Touch(1)

		victim, found := finder.FindVictim(tags)

		Expect(found).To(BeTrue())
		Expect(victim.ID).To(Equal(0))
	})
})
