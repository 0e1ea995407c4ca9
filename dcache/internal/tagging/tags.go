// Package tagging tracks what the cache currently holds: a flat array of
// line slots and the pseudo-LRU bit vector that biases eviction.
package tagging

import (
	"log"

	"github.com/sarchlab/dcachesim/mem"
)

// A Slot is one cache line. It either holds an (address, data) pair or is
// invalid.
type Slot struct {
	ID      int
	Addr    mem.Addr
	Data    mem.Data
	IsValid bool
}

// Tags is the bookkeeping side of the cache. It maintains the slot array
// and the pseudo-LRU bits; picking the eviction victim is left to a
// VictimFinder so the replacement policy stays external.
type Tags interface {
	Lookup(addr mem.Addr) (Slot, bool)
	Update(slot Slot)
	Touch(slotID int)
	Slot(slotID int) Slot
	PLRUBits() []bool
	NumSlots() int
	Reset()
}

// NewTags creates a tag array with numSlots cache lines.
func NewTags(numSlots int) Tags {
	if numSlots <= 0 {
		panic("cache must have at least one slot")
	}

	t := &tagsImpl{numSlots: numSlots}
	t.Reset()

	return t
}

type tagsImpl struct {
	numSlots int
	slots    []Slot
	plru     []bool
}

// Lookup finds the valid slot holding addr.
func (t *tagsImpl) Lookup(addr mem.Addr) (Slot, bool) {
	for _, s := range t.slots {
		if s.IsValid && s.Addr == addr {
			return s, true
		}
	}

	return Slot{}, false
}

// Update overwrites the slot identified by slot.ID. It enforces that an
// address never occupies two valid slots.
func (t *tagsImpl) Update(slot Slot) {
	if slot.IsValid {
		for _, s := range t.slots {
			if s.IsValid && s.Addr == slot.Addr && s.ID != slot.ID {
				log.Panicf("address %d would occupy two cache slots",
					slot.Addr)
			}
		}
	}

	t.slots[slot.ID] = slot
}

// Touch marks the slot as recently used. When every bit saturates, the
// vector resets with only the touched slot marked, keeping the
// approximation meaningful.
func (t *tagsImpl) Touch(slotID int) {
	t.plru[slotID] = true

	for _, bit := range t.plru {
		if !bit {
			return
		}
	}

	for i := range t.plru {
		t.plru[i] = false
	}
	t.plru[slotID] = true
}

// Slot returns a copy of the slot with the given id.
func (t *tagsImpl) Slot(slotID int) Slot {
	return t.slots[slotID]
}

// PLRUBits returns a copy of the pseudo-LRU bit vector. The replacement
// policy reads it; this package only writes it.
func (t *tagsImpl) PLRUBits() []bool {
	bits := make([]bool, t.numSlots)
	copy(bits, t.plru)

	return bits
}

// NumSlots returns the number of cache lines.
func (t *tagsImpl) NumSlots() int {
	return t.numSlots
}

// Reset invalidates every slot and clears the pseudo-LRU bits.
func (t *tagsImpl) Reset() {
	t.slots = make([]Slot, t.numSlots)
	for i := range t.slots {
		t.slots[i].ID = i
	}

	t.plru = make([]bool, t.numSlots)
}
