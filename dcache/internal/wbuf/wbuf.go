// Package wbuf implements the write buffer that stages store data before
// it is committed to the backing memory.
package wbuf

import (
	"fmt"

	"github.com/sarchlab/dcachesim/mem"
)

// A State is the lifecycle phase of a write-buffer entry. An entry cycles
// Free -> Open -> Pend -> Sent -> Free.
type State int

// The write-buffer entry states.
const (
	StateFree State = iota
	StateOpen
	StatePend
	StateSent
)

func (s State) String() string {
	switch s {
	case StateFree:
		return "Free"
	case StateOpen:
		return "Open"
	case StatePend:
		return "Pend"
	case StateSent:
		return "Sent"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// An Entry stages one pending write. Counter counts the ticks since the
// entry opened; once it reaches the drain threshold the entry becomes
// eligible to be sent to memory.
type Entry struct {
	Addr    mem.Addr
	Data    mem.Data
	Counter int
	State   State
}

// WBUF buffers writes on their way to the backing memory. It is a bounded
// circular queue; slots are reclaimed from the front once the memory has
// acknowledged the write.
type WBUF interface {
	Lookup(addr mem.Addr) bool
	Peek(addr mem.Addr) (Entry, bool)
	Open(addr mem.Addr, data mem.Data) (int, mem.Reason)
	Tick()
	Send() (Entry, bool)
	Ack(addr mem.Addr) error
	IsFull() bool
	Size() int
	Capacity() int
	Reset()
}

// NewWBUF creates a write buffer. drainThreshold is the number of ticks
// an entry ages before it becomes eligible to drain.
func NewWBUF(capacity, drainThreshold int) WBUF {
	if capacity <= 0 {
		panic("wbuf capacity must be positive")
	}

	if drainThreshold <= 0 {
		panic("wbuf drain threshold must be positive")
	}

	return &wbufImpl{
		capacity:       capacity,
		drainThreshold: drainThreshold,
		entries:        make([]Entry, capacity),
	}
}

type wbufImpl struct {
	capacity       int
	drainThreshold int
	entries        []Entry
	front          int
	rear           int
	count          int
}

// Lookup reports whether a non-Free entry for addr exists.
func (w *wbufImpl) Lookup(addr mem.Addr) bool {
	for i := 0; i < w.count; i++ {
		e := &w.entries[(w.front+i)%w.capacity]
		if e.State != StateFree && e.Addr == addr {
			return true
		}
	}

	return false
}

// Peek returns a copy of the buffered entry for addr, if one exists.
func (w *wbufImpl) Peek(addr mem.Addr) (Entry, bool) {
	for i := 0; i < w.count; i++ {
		e := &w.entries[(w.front+i)%w.capacity]
		if e.State != StateFree && e.Addr == addr {
			return *e, true
		}
	}

	return Entry{}, false
}

// Open allocates an entry for a new store. It fails with WBufFull when no
// Free slot exists and with WBufCollide when a pending write to the same
// address is already buffered. Colliding stores are not merged; they wait
// in the replay table until the buffered write retires.
func (w *wbufImpl) Open(addr mem.Addr, data mem.Data) (int, mem.Reason) {
	if w.Lookup(addr) {
		return -1, mem.WBufCollide
	}

	if w.IsFull() {
		return -1, mem.WBufFull
	}

	slot := w.rear
	w.entries[slot] = Entry{
		Addr:  addr,
		Data:  data,
		State: StateOpen,
	}
	w.rear = (w.rear + 1) % w.capacity
	w.count++

	return slot, mem.NoDeps
}

// Tick ages every Open and Pend entry by one step. An Open entry whose
// counter reaches the drain threshold becomes Pend.
func (w *wbufImpl) Tick() {
	for i := 0; i < w.count; i++ {
		e := &w.entries[(w.front+i)%w.capacity]

		switch e.State {
		case StateOpen:
			e.Counter++
			if e.Counter >= w.drainThreshold {
				e.State = StatePend
			}
		case StatePend:
			e.Counter++
		}
	}
}

// Send moves the frontmost Pend entry to Sent and returns a copy of it so
// the caller can issue the memory write. It returns false when no entry
// is eligible.
func (w *wbufImpl) Send() (Entry, bool) {
	for i := 0; i < w.count; i++ {
		e := &w.entries[(w.front+i)%w.capacity]
		if e.State == StatePend {
			e.State = StateSent
			return *e, true
		}
	}

	return Entry{}, false
}

// Ack retires the Sent entry for addr after the memory confirmed the
// write. The slot returns to Free; leading Free slots are reclaimed from
// the front of the queue.
func (w *wbufImpl) Ack(addr mem.Addr) error {
	found := false

	for i := 0; i < w.count; i++ {
		e := &w.entries[(w.front+i)%w.capacity]
		if e.State == StateSent && e.Addr == addr {
			*e = Entry{}
			found = true

			break
		}
	}

	if !found {
		return fmt.Errorf("acknowledging a write that was not sent")
	}

	for w.count > 0 && w.entries[w.front].State == StateFree {
		w.entries[w.front] = Entry{}
		w.front = (w.front + 1) % w.capacity
		w.count--
	}

	return nil
}

// IsFull reports whether no Free slot exists.
func (w *wbufImpl) IsFull() bool {
	return w.count >= w.capacity
}

// Size returns the number of occupied slots.
func (w *wbufImpl) Size() int {
	return w.count
}

// Capacity returns the number of slots.
func (w *wbufImpl) Capacity() int {
	return w.capacity
}

// Reset empties the buffer.
func (w *wbufImpl) Reset() {
	w.entries = make([]Entry, w.capacity)
	w.front = 0
	w.rear = 0
	w.count = 0
}
