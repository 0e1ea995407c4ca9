package tagging

// A VictimFinder decides which slot should be evicted on a fill.
type VictimFinder interface {
	FindVictim(tags Tags) (Slot, bool)
}

// PLRUVictimFinder evicts a slot whose pseudo-LRU bit is clear.
type PLRUVictimFinder struct {
}

// NewPLRUVictimFinder returns a newly constructed pseudo-LRU evictor.
func NewPLRUVictimFinder() *PLRUVictimFinder {
	return new(PLRUVictimFinder)
}

// FindVictim returns an invalid slot if one exists, otherwise the first
// slot that was not recently used.
func (e *PLRUVictimFinder) FindVictim(tags Tags) (Slot, bool) {
	for i := 0; i < tags.NumSlots(); i++ {
		slot := tags.Slot(i)
		if !slot.IsValid {
			return slot, true
		}
	}

	bits := tags.PLRUBits()
	for i, bit := range bits {
		if !bit {
			return tags.Slot(i), true
		}
	}

	// All bits set is transient; Touch resets the vector before this can
	// be observed.
	return tags.Slot(0), true
}
