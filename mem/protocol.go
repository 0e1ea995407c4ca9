// Package mem defines the value types that flow through the data-cache
// model: addresses, data words, requests, and the blocking reasons that
// classify why a request cannot proceed.
package mem

import "fmt"

// An Addr identifies one word in the modeled address domain. The ordinal
// value of an address is used directly as an array index. The zero value
// NoAddr is a sentinel that marks a slot as not yet holding an address and
// is never presented to Memory or the cache.
type Addr int

// NoAddr is the sentinel address. It occupies ordinal 0 so that valid
// addresses map to indices 1 and above.
const NoAddr Addr = 0

// A Data is one word of modeled data. The domain is closed and small so
// that whole-system states remain enumerable. NoData marks a slot whose
// content has not been written yet.
type Data int

// NoData is the sentinel data word.
const NoData Data = 0

// An Op tells the controller what a request wants to do.
type Op int

// The operations a request can carry. OpNone is reserved for the
// zero-value request (NoReq).
const (
	OpNone Op = iota
	OpLoad
	OpStore
	OpRefill
)

func (o Op) String() string {
	switch o {
	case OpNone:
		return "None"
	case OpLoad:
		return "Load"
	case OpStore:
		return "Store"
	case OpRefill:
		return "Refill"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// An SID identifies the requester that issued a request. The current
// configuration models a single requester, but the type stays explicit so
// that multi-requester setups only change a capacity constant.
type SID int

// A TID disambiguates in-flight requests from the same requester. TIDs
// live in the cyclic range [1, TIDCount].
type TID int

// TIDCount bounds the transaction-id domain.
const TIDCount = 50

// FirstTID is the first transaction id handed out.
const FirstTID TID = 1

// Succ returns the next transaction id, wrapping TIDCount back to 1.
func (t TID) Succ() TID {
	if t >= TIDCount {
		return FirstTID
	}

	return t + 1
}

// A Request is one operation entering the cache controller. Requests are
// immutable value records; ownership passes from the producer to whichever
// structure currently holds the request. The zero value is NoReq.
type Request struct {
	Op   Op
	Data Data
	SID  SID
	TID  TID
	Addr Addr
}

// NoReq is the absent request.
var NoReq = Request{}

// Valid reports whether the request carries an operation.
func (r Request) Valid() bool {
	return r.Op != OpNone
}

func (r Request) String() string {
	if !r.Valid() {
		return "NoReq"
	}

	return fmt.Sprintf("%s[sid=%d,tid=%d,addr=%d,data=%d]",
		r.Op, r.SID, r.TID, r.Addr, r.Data)
}

// A Reason classifies the outcome of an admission attempt. NoDeps means
// the request proceeded; every other value names the hazard that blocked
// it. All blocked reasons except the replay-table-full condition are
// recoverable by parking the request in the replay table.
type Reason int

// The admission outcomes.
const (
	NoDeps Reason = iota
	MSHRFull
	MSHRCollide
	WBufFull
	WBufCollide
	RTabHit
)

func (r Reason) String() string {
	switch r {
	case NoDeps:
		return "NoDeps"
	case MSHRFull:
		return "MSHRFull"
	case MSHRCollide:
		return "MSHRCollide"
	case WBufFull:
		return "WBufFull"
	case WBufCollide:
		return "WBufCollide"
	case RTabHit:
		return "RTabHit"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// Blocking reports whether the reason prevents a request from proceeding.
func (r Reason) Blocking() bool {
	return r != NoDeps
}
