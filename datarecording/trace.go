package datarecording

// An AccessEntry records the admission decision for one request.
type AccessEntry struct {
	Seq    uint64
	Op     string
	Addr   int
	Data   int
	Reason string
	Hit    bool
	Parked bool
}

// A DrainEntry records one write-buffer entry retiring to memory.
type DrainEntry struct {
	Seq  uint64
	Addr int
	Data int
}

// A RefillEntry records one refill filling the cache.
type RefillEntry struct {
	Seq  uint64
	Addr int
	Data int
}

// Table names used by the Tracer.
const (
	AccessTable = "access_trace"
	DrainTable  = "drain_trace"
	RefillTable = "refill_trace"
)

// A Tracer records the observable events of a model run through a
// DataRecorder backend.
type Tracer struct {
	recorder DataRecorder
	seq      uint64
}

// NewTracer creates a tracer and creates the trace tables on the
// backend.
func NewTracer(recorder DataRecorder) *Tracer {
	recorder.CreateTable(AccessTable, AccessEntry{})
	recorder.CreateTable(DrainTable, DrainEntry{})
	recorder.CreateTable(RefillTable, RefillEntry{})

	return &Tracer{recorder: recorder}
}

// RecordAccess records one admission decision.
func (t *Tracer) RecordAccess(e AccessEntry) {
	e.Seq = t.seq
	t.seq++
	t.recorder.InsertData(AccessTable, e)
}

// RecordDrain records one retiring write.
func (t *Tracer) RecordDrain(addr, data int) {
	t.recorder.InsertData(DrainTable, DrainEntry{
		Seq:  t.seq,
		Addr: addr,
		Data: data,
	})
	t.seq++
}

// RecordRefill records one cache fill.
func (t *Tracer) RecordRefill(addr, data int) {
	t.recorder.InsertData(RefillTable, RefillEntry{
		Seq:  t.seq,
		Addr: addr,
		Data: data,
	})
	t.seq++
}

// Flush flushes the backend.
func (t *Tracer) Flush() {
	t.recorder.Flush()
}
