package pin

import "fmt"

// StatusCode classifies how far a certification transaction has progressed
// towards finality on its chain.
//
// The numeric values are part of the wire format. CONFIRMED is numerically
// the smallest but is the only terminal status: compare by identity, never
// by magnitude.
type StatusCode int

const (
	StatusUnknown            StatusCode = -1 // no status query has succeeded yet
	StatusConfirmed          StatusCode = 0
	StatusNotFound           StatusCode = 10
	StatusInMempool          StatusCode = 20
	StatusPartiallyConfirmed StatusCode = 30
)

// Confirmation thresholds used by the backends when none is configured.
const (
	UTXOFinalConfirmations    = 6
	AccountFinalConfirmations = 10
)

func (s StatusCode) String() string {
	switch s {
	case StatusConfirmed:
		return "CONFIRMED"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusInMempool:
		return "IN_MEMPOOL"
	case StatusPartiallyConfirmed:
		return "PARTIALLY_CONFIRMED"
	case StatusUnknown:
		return "UNKNOWN"
	}
	return fmt.Sprintf("STATUS(%d)", int(s))
}

// IsTerminal reports whether polling should stop successfully at this status.
func (s StatusCode) IsTerminal() bool {
	return s == StatusConfirmed
}

// Result is one snapshot of a certification's status. A fresh Result is
// built on every status query; snapshots are replaced, never mutated.
type Result struct {
	Status        StatusCode `json:"status"`
	Message       string     `json:"msg,omitempty"`
	Confirmations *int64     `json:"confirmations,omitempty"`
}

// NewResult builds a Result without a confirmation count.
func NewResult(status StatusCode, msg string) Result {
	return Result{Status: status, Message: msg}
}

// UnknownResult is returned by the poller before any query succeeded.
func UnknownResult() Result {
	return Result{Status: StatusUnknown}
}

// NotFoundResult is the status of a transaction the backend does not know.
func NotFoundResult() Result {
	return NewResult(StatusNotFound, "TX not found")
}

// Classify maps a confirmation count onto the three-tier status for a
// backend whose finality threshold is final. A negative count (a wallet
// transaction conflicted out of the chain) is reported as not found.
func Classify(confirmations int64, final int64) Result {
	if confirmations < 0 {
		return NotFoundResult()
	}
	c := confirmations
	r := Result{Confirmations: &c}
	switch {
	case c == 0:
		r.Status = StatusInMempool
		r.Message = "In mempool"
	case c < final:
		r.Status = StatusPartiallyConfirmed
		r.Message = fmt.Sprintf("Partially confirmed: %d", c)
	default:
		r.Status = StatusConfirmed
		r.Message = fmt.Sprintf("Confirmed: %d", c)
	}
	return r
}

// ConfirmationCount returns the confirmation count, or zero when absent.
func (r Result) ConfirmationCount() int64 {
	if r.Confirmations == nil {
		return 0
	}
	return *r.Confirmations
}

// Equal compares two snapshots by value.
func (r Result) Equal(o Result) bool {
	if r.Status != o.Status || r.Message != o.Message {
		return false
	}
	if (r.Confirmations == nil) != (o.Confirmations == nil) {
		return false
	}
	return r.Confirmations == nil || *r.Confirmations == *o.Confirmations
}
