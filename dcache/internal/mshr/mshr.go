// Package mshr implements the miss-status holding registers that track
// the cache's outstanding misses.
package mshr

import (
	"fmt"

	"github.com/sarchlab/dcachesim/mem"
)

// An Entry records one outstanding miss. Waiting stays true until the
// refill response for the address arrives.
type Entry struct {
	Addr    mem.Addr
	SID     mem.SID
	TID     mem.TID
	Waiting bool
}

// MSHR tracks the cache's in-flight requests to the bottom memory. It is
// a bounded circular queue; entries leave from the front only after their
// refill has arrived.
type MSHR interface {
	Lookup(addr mem.Addr) bool
	Allocate(addr mem.Addr, sid mem.SID, tid mem.TID) (int, mem.Reason)
	Complete(addr mem.Addr) error
	Waiting() []mem.Addr
	IsFull() bool
	Size() int
	Capacity() int
	Reset()
}

// NewMSHR creates an MSHR with the given number of entries.
func NewMSHR(capacity int) MSHR {
	if capacity <= 0 {
		panic("mshr capacity must be positive")
	}

	return &mshrImpl{
		capacity: capacity,
		entries:  make([]Entry, capacity),
	}
}

type mshrImpl struct {
	capacity int
	entries  []Entry
	front    int
	rear     int
	count    int
}

// Lookup reports whether an entry for addr is still waiting for its
// refill.
func (m *mshrImpl) Lookup(addr mem.Addr) bool {
	for i := 0; i < m.count; i++ {
		e := &m.entries[(m.front+i)%m.capacity]
		if e.Addr == addr && e.Waiting {
			return true
		}
	}

	return false
}

// Allocate enqueues an outstanding miss for addr. It fails with MSHRFull
// when the queue has no free slot and with MSHRCollide when a waiting
// entry for the same address already exists. On success it returns the
// slot index the entry occupies.
func (m *mshrImpl) Allocate(
	addr mem.Addr,
	sid mem.SID,
	tid mem.TID,
) (int, mem.Reason) {
	if m.Lookup(addr) {
		return -1, mem.MSHRCollide
	}

	if m.IsFull() {
		return -1, mem.MSHRFull
	}

	slot := m.rear
	m.entries[slot] = Entry{
		Addr:    addr,
		SID:     sid,
		TID:     tid,
		Waiting: true,
	}
	m.rear = (m.rear + 1) % m.capacity
	m.count++

	return slot, mem.NoDeps
}

// Complete clears the waiting flag of the entry for addr. The flag may
// clear out of order, but the structural slot is only reclaimed once the
// entry reaches the front of the queue: Complete dequeues every leading
// entry whose flag is already clear.
func (m *mshrImpl) Complete(addr mem.Addr) error {
	found := false

	for i := 0; i < m.count; i++ {
		e := &m.entries[(m.front+i)%m.capacity]
		if e.Addr == addr && e.Waiting {
			e.Waiting = false
			found = true

			break
		}
	}

	if !found {
		return fmt.Errorf("completing a miss that is not outstanding")
	}

	for m.count > 0 && !m.entries[m.front].Waiting {
		m.entries[m.front] = Entry{}
		m.front = (m.front + 1) % m.capacity
		m.count--
	}

	return nil
}

// Waiting returns the addresses still waiting for a refill, oldest
// first.
func (m *mshrImpl) Waiting() []mem.Addr {
	addrs := []mem.Addr{}

	for i := 0; i < m.count; i++ {
		e := &m.entries[(m.front+i)%m.capacity]
		if e.Waiting {
			addrs = append(addrs, e.Addr)
		}
	}

	return addrs
}

// IsFull reports whether the queue has no free slot.
func (m *mshrImpl) IsFull() bool {
	return m.count >= m.capacity
}

// Size returns the number of occupied slots.
func (m *mshrImpl) Size() int {
	return m.count
}

// Capacity returns the number of slots.
func (m *mshrImpl) Capacity() int {
	return m.capacity
}

// Reset empties the queue.
func (m *mshrImpl) Reset() {
	m.entries = make([]Entry, m.capacity)
	m.front = 0
	m.rear = 0
	m.count = 0
}
