package store

import (
	"sort"
	"sync"
	"time"

	pin "github.com/legalpin/legalcert/pkg"
)

// interface guard ensures Mock implements pin.Store
var _ pin.Store = &Mock{}

// Mock keeps the journal in memory.
type Mock struct {
	mu    sync.Mutex
	certs map[pin.TxID]*mockCert
	seq   int
}

type mockCert struct {
	seq  int
	cert pin.Certification
}

// NewMock returns a pin.Store implementor that keeps certifications in memory
func NewMock() *Mock {
	return &Mock{certs: make(map[pin.TxID]*mockCert, 10)}
}

func (m *Mock) StoreCertification(cert pin.Certification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.certs[cert.TxID]; exists {
		return pin.NewErr(pin.AlreadyExists, "certification already exists: %s", cert.TxID)
	}
	if cert.Created.IsZero() {
		cert.Created = time.Now().UTC()
	}
	if cert.Updated.IsZero() {
		cert.Updated = cert.Created
	}
	m.seq++
	m.certs[cert.TxID] = &mockCert{seq: m.seq, cert: cert}
	return nil
}

func (m *Mock) UpdateCertification(txid pin.TxID, res pin.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.certs[txid]
	if !ok {
		return pin.NewErr(pin.NotFound, "certification not found: %s", txid)
	}
	c.cert.Status = res.Status
	c.cert.Message = res.Message
	c.cert.Confirmations = res.ConfirmationCount()
	c.cert.Updated = time.Now().UTC()
	return nil
}

func (m *Mock) GetCertification(txid pin.TxID) (pin.Certification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.certs[txid]
	if !ok {
		return pin.Certification{}, pin.NewErr(pin.NotFound, "certification not found: %s", txid)
	}
	return c.cert, nil
}

// newest first
func (m *Mock) sorted() []*mockCert {
	all := make([]*mockCert, 0, len(m.certs))
	for _, c := range m.certs {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seq > all[j].seq })
	return all
}

func (m *Mock) ListCertifications(cursor int, limit int) (items []pin.Certification, next_cursor int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 10
	}
	for _, c := range m.sorted() {
		if cursor > 0 && c.seq >= cursor {
			continue
		}
		items = append(items, c.cert)
		next_cursor = c.seq
		if len(items) == limit {
			return
		}
	}
	return items, 0, nil
}

func (m *Mock) ListPending() (items []pin.Certification, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted()
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].cert.Status != pin.StatusConfirmed {
			items = append(items, all[i].cert)
		}
	}
	return
}

func (m *Mock) Close() {}
