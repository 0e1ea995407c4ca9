// Package dcache models the bookkeeping core of a hardware data cache: a
// cache front-end backed by a fixed-size memory, a miss-tracking buffer
// (MSHR), a write-coalescing buffer (WBUF), and a hazard-replay table
// (RTAB) that parks requests which cannot proceed immediately.
package dcache

import (
	"fmt"

	"github.com/sarchlab/dcachesim/dcache/internal/mshr"
	"github.com/sarchlab/dcachesim/dcache/internal/rtab"
	"github.com/sarchlab/dcachesim/dcache/internal/tagging"
	"github.com/sarchlab/dcachesim/dcache/internal/wbuf"
	"github.com/sarchlab/dcachesim/mem"
)

// ErrReplayTableFull is the error wrapped by Process when a blocked
// request cannot be parked because the replay table is full. The
// producer must clear a hazard (refill or drain) before retrying.
var ErrReplayTableFull = rtab.ErrTableFull

// An Outcome describes how the controller disposed of a request. Reason
// is NoDeps when the request proceeded; otherwise it names the hazard
// that blocked it. Parked is true when the blocked request was admitted
// to the replay table and will be replayed automatically once the hazard
// clears.
type Outcome struct {
	Reason mem.Reason
	Hit    bool
	Data   mem.Data
	Parked bool
}

// Stats counts the observable events of one controller. Loads and
// Stores count each admitted request once, no matter how often it
// parks and replays; Hits and Misses count load resolutions the same
// way. Replayed counts replay attempts, including ones that block
// again.
type Stats struct {
	Loads    uint64
	Stores   uint64
	Refills  uint64
	Hits     uint64
	Misses   uint64
	Parked   uint64
	Replayed uint64
	Drained  uint64
}

// Comp is the cache controller. It is a single logical actor: every
// exported method runs an admission decision or a hazard-clearing event
// to completion before returning, and no structure is ever mutated by
// two actors in the same step.
type Comp struct {
	name string

	storage      *mem.Storage
	tags         tagging.Tags
	victimFinder tagging.VictimFinder
	mshr         mshr.MSHR
	wbuf         wbuf.WBUF
	rtab         rtab.RTAB

	stats Stats
}

// Name returns the name of the controller.
func (c *Comp) Name() string {
	return c.name
}

// Stats returns a copy of the event counters.
func (c *Comp) Stats() Stats {
	return c.stats
}

// Storage exposes the backing memory of the model.
func (c *Comp) Storage() *mem.Storage {
	return c.storage
}

// PLRUBits exposes the pseudo-LRU bit vector for the external
// replacement policy.
func (c *Comp) PLRUBits() []bool {
	return c.tags.PLRUBits()
}

// PendingMisses returns the addresses whose refill responses are still
// outstanding, oldest first. The producer that models the bottom memory
// answers each of them with a refill request.
func (c *Comp) PendingMisses() []mem.Addr {
	return c.mshr.Waiting()
}

// Occupancy reports the number of occupied slots in the three bounded
// structures, in the order MSHR, WBUF, RTAB.
func (c *Comp) Occupancy() (int, int, int) {
	return c.mshr.Size(), c.wbuf.Size(), c.rtab.Size()
}

// CheckInvariants verifies the structural invariants that must hold at
// every observable point: occupancies within capacity and well-formed
// replay chains.
func (c *Comp) CheckInvariants() error {
	if c.mshr.Size() > c.mshr.Capacity() {
		return fmt.Errorf("mshr occupancy exceeds its capacity")
	}

	if c.wbuf.Size() > c.wbuf.Capacity() {
		return fmt.Errorf("wbuf occupancy exceeds its capacity")
	}

	if c.rtab.Size() > c.rtab.Capacity() {
		return fmt.Errorf("rtab occupancy exceeds its capacity")
	}

	return c.rtab.WellFormed()
}

// Process runs one request through the admission path. Loads and stores
// that hit a hazard are parked in the replay table; the only
// unrecoverable condition is a full replay table, which surfaces as an
// error so the producer can apply backpressure. Refill requests clear
// the matching miss, fill the cache, and replay every chain the refill
// unblocks before returning.
func (c *Comp) Process(req mem.Request) (Outcome, error) {
	if !req.Valid() {
		return Outcome{}, fmt.Errorf("processing an absent request")
	}

	if req.Op == mem.OpRefill {
		return c.processRefill(req.Addr)
	}

	switch req.Op {
	case mem.OpLoad:
		c.stats.Loads++
	case mem.OpStore:
		c.stats.Stores++
	}

	// A request whose address already has parked predecessors must wait
	// behind them, or replay would reorder same-address requests.
	if c.rtab.HasMatch(req.Addr) {
		return c.park(req, mem.RTabHit)
	}

	outcome, err := c.classify(req)
	if err != nil {
		return outcome, err
	}

	if outcome.Reason.Blocking() {
		return c.park(req, outcome.Reason)
	}

	return outcome, nil
}

// Tick ages every write-buffer entry by one drain step.
func (c *Comp) Tick() {
	c.wbuf.Tick()
}

// DrainOne sends the frontmost eligible write-buffer entry to memory,
// retires it on the (immediate) completion, and replays the chains the
// freed slot unblocks. It returns the retired write, if any.
func (c *Comp) DrainOne() (mem.Addr, mem.Data, bool, error) {
	entry, ok := c.wbuf.Send()
	if !ok {
		return mem.NoAddr, mem.NoData, false, nil
	}

	if err := c.storage.Write(entry.Addr, entry.Data); err != nil {
		return entry.Addr, entry.Data, false, err
	}

	if err := c.wbuf.Ack(entry.Addr); err != nil {
		return entry.Addr, entry.Data, false, err
	}

	c.stats.Drained++

	err := c.replay(
		rtab.Match{Addr: entry.Addr, Reason: mem.WBufCollide},
		rtab.Match{Addr: mem.NoAddr, Reason: mem.WBufFull},
		rtab.Match{Addr: mem.NoAddr, Reason: mem.RTabHit},
	)

	return entry.Addr, entry.Data, true, err
}

func (c *Comp) processRefill(addr mem.Addr) (Outcome, error) {
	c.stats.Refills++

	if err := c.mshr.Complete(addr); err != nil {
		return Outcome{}, err
	}

	data, err := c.storage.Read(addr)
	if err != nil {
		return Outcome{}, err
	}

	// A store to the line may still be buffered; its data is newer than
	// the word the memory returned, and the drain that commits it will
	// not touch the cache.
	if pending, ok := c.wbuf.Peek(addr); ok {
		data = pending.Data
	}

	c.fill(addr, data)

	err = c.replay(
		rtab.Match{Addr: addr, Reason: mem.MSHRCollide},
		rtab.Match{Addr: mem.NoAddr, Reason: mem.MSHRFull},
		rtab.Match{Addr: mem.NoAddr, Reason: mem.RTabHit},
	)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{Reason: mem.NoDeps, Data: data}, nil
}

// classify is the admission attempt shared by fresh requests and
// replayed ones. It reports a blocking reason without parking; the
// caller decides between Admit and Readmit.
func (c *Comp) classify(req mem.Request) (Outcome, error) {
	switch req.Op {
	case mem.OpLoad:
		return c.processLoad(req), nil
	case mem.OpStore:
		return c.processStore(req), nil
	default:
		return Outcome{}, fmt.Errorf("cannot classify request %s", req)
	}
}

func (c *Comp) processLoad(req mem.Request) Outcome {
	if slot, found := c.tags.Lookup(req.Addr); found {
		c.tags.Touch(slot.ID)
		c.stats.Hits++

		return Outcome{Reason: mem.NoDeps, Hit: true, Data: slot.Data}
	}

	if _, reason := c.mshr.Allocate(req.Addr, req.SID, req.TID); reason.Blocking() {
		return Outcome{Reason: reason}
	}

	c.stats.Misses++

	return Outcome{Reason: mem.NoDeps}
}

func (c *Comp) processStore(req mem.Request) Outcome {
	if _, reason := c.wbuf.Open(req.Addr, req.Data); reason.Blocking() {
		return Outcome{Reason: reason}
	}

	// Keep a cached copy coherent with the buffered write.
	if slot, found := c.tags.Lookup(req.Addr); found {
		slot.Data = req.Data
		c.tags.Update(slot)
		c.tags.Touch(slot.ID)
	}

	return Outcome{Reason: mem.NoDeps}
}

func (c *Comp) park(req mem.Request, reason mem.Reason) (Outcome, error) {
	if _, err := c.rtab.Admit(req, reason); err != nil {
		return Outcome{Reason: reason},
			fmt.Errorf("cannot park request %s: %w", req, err)
	}

	c.stats.Parked++

	return Outcome{Reason: reason, Parked: true}, nil
}

// replay walks the eligible chains in admission order, re-issuing each
// head through the normal admission path. A request that blocks again is
// held aside, under the new reason, until the walk finishes; holding it
// keeps the walk from re-popping it, and the walk must go on, because a
// later head may wait on exactly the hazard this event cleared and no
// future event would match it again. A popped request whose address is
// already held must not overtake the held one, so it is held too,
// unclassified. Held requests re-park with their original admission
// order preserved; the pops that preceded them freed slots, so
// re-admission cannot fail.
func (c *Comp) replay(matches ...rtab.Match) error {
	var held []rtab.Entry

	heldAddrs := map[mem.Addr]bool{}

	defer func() {
		// Youngest first, so each chain's oldest ends up at its head.
		for i := len(held) - 1; i >= 0; i-- {
			if _, err := c.rtab.Readmit(held[i], held[i].Reason); err != nil {
				panic(fmt.Errorf("cannot repark request %s: %w",
					held[i].Req, err))
			}
		}
	}()

	for i := 0; i < c.rtab.Capacity(); i++ {
		e, ok := c.rtab.PopOldestHead(matches...)
		if !ok {
			return nil
		}

		if heldAddrs[e.Req.Addr] {
			held = append(held, e)
			continue
		}

		c.stats.Replayed++

		outcome, err := c.classify(e.Req)
		if err != nil {
			return err
		}

		if outcome.Reason.Blocking() {
			e.Reason = outcome.Reason
			held = append(held, e)
			heldAddrs[e.Req.Addr] = true
		}
	}

	return nil
}

// fill installs (addr, data) in the cache slot chosen by the victim
// finder, invalidating any prior copy of addr first.
func (c *Comp) fill(addr mem.Addr, data mem.Data) {
	if prior, found := c.tags.Lookup(addr); found {
		prior.IsValid = false
		c.tags.Update(prior)
	}

	victim, found := c.victimFinder.FindVictim(c.tags)
	if !found {
		panic("victim finder returned no slot")
	}

	c.tags.Update(tagging.Slot{
		ID:      victim.ID,
		Addr:    addr,
		Data:    data,
		IsValid: true,
	})
	c.tags.Touch(victim.ID)
}
