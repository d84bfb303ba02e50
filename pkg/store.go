package pin

import "time"

// Certification is the journal entry for one fingerprint anchored by an
// engine, with the last status observed for its transaction.
type Certification struct {
	TxID          TxID       `json:"txid"`
	Engine        string     `json:"engine"`
	Fingerprint   string     `json:"fingerprint"` // hex
	Tag           string     `json:"tag"`
	Status        StatusCode `json:"status"`
	Message       string     `json:"msg,omitempty"`
	Confirmations int64      `json:"confirmations"`
	Created       time.Time  `json:"created"`
	Updated       time.Time  `json:"updated"`
}

// Result returns the last observed status as a Result snapshot.
func (c Certification) Result() Result {
	r := NewResult(c.Status, c.Message)
	if c.Status != StatusNotFound && c.Status != StatusUnknown {
		n := c.Confirmations
		r.Confirmations = &n
	}
	return r
}

// Store is the certification journal. Engines never touch it; only the API
// and the confirmer services record what was submitted and observed.
type Store interface {
	// StoreCertification records a newly broadcast certification.
	StoreCertification(cert Certification) error
	// UpdateCertification records the latest status snapshot for txid.
	UpdateCertification(txid TxID, res Result) error
	// GetCertification returns the record for txid (NotFound error if missing).
	GetCertification(txid TxID) (Certification, error)
	// ListCertifications returns a page of records, newest first.
	// pagination: next_cursor should be passed as 'cursor' on the next call (initial cursor = 0)
	// pagination: when next_cursor == 0, that is the final page of results.
	ListCertifications(cursor int, limit int) (items []Certification, next_cursor int, err error)
	// ListPending returns every record not yet CONFIRMED.
	ListPending() ([]Certification, error)
	// Close releases the database.
	Close()
}
