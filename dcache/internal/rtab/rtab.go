// Package rtab implements the replay table that parks requests blocked by
// a structural hazard until the hazard clears.
//
// The table is a fixed arena of entries. Entries blocked on the same
// (address, reason) pair form an intrusive singly-linked FIFO chain
// through array indices; head and tail flags mark the chain boundaries.
// Replay always starts at a chain head, so per-address request order is
// preserved. Across chains, eligibility ties are broken by admission
// order.
package rtab

import (
	"errors"
	"fmt"

	"github.com/sarchlab/dcachesim/mem"
)

// NoIndex marks the absence of a successor in a chain.
const NoIndex = -1

// ErrTableFull is returned by Admit when no slot is free. The table has
// no fallback storage, so the condition must be surfaced to the requester
// as backpressure.
var ErrTableFull = errors.New("replay table is full")

// An Entry is one slot of the replay table.
type Entry struct {
	Valid  bool
	Reason mem.Reason
	LLHead bool
	LLTail bool
	LLNext int
	Req    mem.Request

	seq uint64
}

// A Match selects chain heads eligible for replay. Addr set to NoAddr
// matches any address.
type Match struct {
	Addr   mem.Addr
	Reason mem.Reason
}

// RTAB is the replay table.
type RTAB interface {
	Admit(req mem.Request, reason mem.Reason) (int, error)
	Readmit(e Entry, reason mem.Reason) (int, error)
	HasMatch(addr mem.Addr) bool
	PopOldestHead(matches ...Match) (Entry, bool)
	Chain(addr mem.Addr, reason mem.Reason) []mem.Request
	IsFull() bool
	Size() int
	Capacity() int
	Reset()
	WellFormed() error
}

// NewRTAB creates a replay table with the given number of slots.
func NewRTAB(capacity int) RTAB {
	if capacity <= 0 {
		panic("rtab capacity must be positive")
	}

	r := &rtabImpl{
		capacity: capacity,
		entries:  make([]Entry, capacity),
	}
	r.Reset()

	return r
}

type rtabImpl struct {
	capacity int
	entries  []Entry
	count    int
	nextSeq  uint64
}

// Admit parks a blocked request under the given reason. If a chain for
// the same (address, reason) already exists, the request is appended to
// its tail so replay preserves admission order. Admit fails with
// ErrTableFull when no slot is free.
func (r *rtabImpl) Admit(req mem.Request, reason mem.Reason) (int, error) {
	slot := r.freeSlot()
	if slot == NoIndex {
		return NoIndex, ErrTableFull
	}

	e := Entry{
		Valid:  true,
		Reason: reason,
		LLNext: NoIndex,
		Req:    req,
		seq:    r.nextSeq,
	}
	r.nextSeq++

	tail := r.chainTail(req.Addr, reason)
	if tail == NoIndex {
		e.LLHead = true
		e.LLTail = true
	} else {
		r.entries[tail].LLTail = false
		r.entries[tail].LLNext = slot
		e.LLTail = true
	}

	r.entries[slot] = e
	r.count++

	return slot, nil
}

// HasMatch reports whether any valid entry holds a request for addr.
func (r *rtabImpl) HasMatch(addr mem.Addr) bool {
	for i := range r.entries {
		if r.entries[i].Valid && r.entries[i].Req.Addr == addr {
			return true
		}
	}

	return false
}

// PopOldestHead removes and returns the eligible chain-head entry that
// was admitted earliest. A head is eligible when it satisfies any of the
// given matches and no older entry for the same address is parked in
// another chain; the older entry must replay first or same-address
// request order would break. The successor entry, if any, becomes the
// new head.
func (r *rtabImpl) PopOldestHead(matches ...Match) (Entry, bool) {
	best := NoIndex

	for i := range r.entries {
		e := &r.entries[i]
		if !e.Valid || !e.LLHead {
			continue
		}

		if !matchesAny(e, matches) {
			continue
		}

		if r.hasOlderForAddr(e) {
			continue
		}

		if best == NoIndex || e.seq < r.entries[best].seq {
			best = i
		}
	}

	if best == NoIndex {
		return Entry{LLNext: NoIndex}, false
	}

	e := r.entries[best]
	if e.LLNext != NoIndex {
		r.entries[e.LLNext].LLHead = true
	}

	r.entries[best] = Entry{LLNext: NoIndex}
	r.count--

	return e, true
}

// Readmit parks a popped entry again under a new reason, keeping its
// original admission order. A popped entry had no older same-address
// entry, so it belongs before every parked request for its address: it
// is prepended to the (address, reason) chain rather than appended.
func (r *rtabImpl) Readmit(e Entry, reason mem.Reason) (int, error) {
	slot := r.freeSlot()
	if slot == NoIndex {
		return NoIndex, ErrTableFull
	}

	fresh := Entry{
		Valid:  true,
		Reason: reason,
		LLHead: true,
		LLNext: NoIndex,
		Req:    e.Req,
		seq:    e.seq,
	}

	head := r.chainHead(e.Req.Addr, reason)
	if head == NoIndex {
		fresh.LLTail = true
	} else {
		r.entries[head].LLHead = false
		fresh.LLNext = head
	}

	r.entries[slot] = fresh
	r.count++

	return slot, nil
}

// Chain returns the requests of the (addr, reason) chain in FIFO order.
func (r *rtabImpl) Chain(addr mem.Addr, reason mem.Reason) []mem.Request {
	head := NoIndex

	for i := range r.entries {
		e := &r.entries[i]
		if e.Valid && e.LLHead && e.Req.Addr == addr && e.Reason == reason {
			head = i
			break
		}
	}

	var reqs []mem.Request
	for i := head; i != NoIndex; i = r.entries[i].LLNext {
		reqs = append(reqs, r.entries[i].Req)
	}

	return reqs
}

// IsFull reports whether no slot is free.
func (r *rtabImpl) IsFull() bool {
	return r.count >= r.capacity
}

// Size returns the number of valid entries.
func (r *rtabImpl) Size() int {
	return r.count
}

// Capacity returns the number of slots.
func (r *rtabImpl) Capacity() int {
	return r.capacity
}

// Reset invalidates every entry.
func (r *rtabImpl) Reset() {
	for i := range r.entries {
		r.entries[i] = Entry{LLNext: NoIndex}
	}
	r.count = 0
}

// WellFormed checks the chain invariants: every valid entry belongs to
// exactly one chain, every chain has a single head and a single tail, and
// following LLNext from a head visits each chain member exactly once.
func (r *rtabImpl) WellFormed() error {
	visited := make([]bool, r.capacity)
	reached := 0

	for i := range r.entries {
		e := &r.entries[i]
		if !e.Valid || !e.LLHead {
			continue
		}

		steps := 0
		for j := i; j != NoIndex; j = r.entries[j].LLNext {
			if steps > r.capacity {
				return fmt.Errorf("chain starting at %d is cyclic", i)
			}
			steps++

			member := &r.entries[j]
			if !member.Valid {
				return fmt.Errorf("chain starting at %d reaches the "+
					"invalid entry %d", i, j)
			}

			if visited[j] {
				return fmt.Errorf("entry %d appears in two chains", j)
			}
			visited[j] = true
			reached++

			if j != i && member.LLHead {
				return fmt.Errorf("chain starting at %d has a second "+
					"head at %d", i, j)
			}

			if member.LLTail != (member.LLNext == NoIndex) {
				return fmt.Errorf("entry %d has a mismatched tail flag", j)
			}
		}
	}

	valid := 0
	for i := range r.entries {
		if r.entries[i].Valid {
			valid++
		}
	}

	if reached != valid {
		return fmt.Errorf("%d valid entries are not reachable from a head",
			valid-reached)
	}

	if valid != r.count {
		return fmt.Errorf("entry count %d does not match %d valid entries",
			r.count, valid)
	}

	return nil
}

func (r *rtabImpl) freeSlot() int {
	for i := range r.entries {
		if !r.entries[i].Valid {
			return i
		}
	}

	return NoIndex
}

func (r *rtabImpl) chainHead(addr mem.Addr, reason mem.Reason) int {
	for i := range r.entries {
		e := &r.entries[i]
		if e.Valid && e.LLHead && e.Req.Addr == addr && e.Reason == reason {
			return i
		}
	}

	return NoIndex
}

func (r *rtabImpl) chainTail(addr mem.Addr, reason mem.Reason) int {
	for i := range r.entries {
		e := &r.entries[i]
		if e.Valid && e.LLTail && e.Req.Addr == addr && e.Reason == reason {
			return i
		}
	}

	return NoIndex
}

func (r *rtabImpl) hasOlderForAddr(e *Entry) bool {
	for i := range r.entries {
		f := &r.entries[i]
		if f.Valid && f.Req.Addr == e.Req.Addr && f.seq < e.seq {
			return true
		}
	}

	return false
}

func matchesAny(e *Entry, matches []Match) bool {
	for _, m := range matches {
		if m.Reason != e.Reason {
			continue
		}

		if m.Addr == mem.NoAddr || m.Addr == e.Req.Addr {
			return true
		}
	}

	return false
}
