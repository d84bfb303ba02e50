package store

import (
	"database/sql"
	"strconv"
	"strings"
	"time"

	pin "github.com/legalpin/legalcert/pkg"
)

// sqlStore is the journal over database/sql shared by the sqlite and
// postgres backends. Queries are written with '?' placeholders and rebound
// for drivers that number them.
type sqlStore struct {
	db       *sql.DB
	numbered bool
	dbErr    func(err error, where string) error
}

const certColumns = "seq, txid, engine, fingerprint, tag, status, msg, confirmations, created, updated"

// Defer this until shutdown
func (s sqlStore) Close() {
	s.db.Close()
}

func (s sqlStore) rebind(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s sqlStore) StoreCertification(cert pin.Certification) error {
	now := time.Now().UTC()
	if cert.Created.IsZero() {
		cert.Created = now
	}
	if cert.Updated.IsZero() {
		cert.Updated = cert.Created
	}
	_, err := s.db.Exec(s.rebind(
		"INSERT INTO certification (txid, engine, fingerprint, tag, status, msg, confirmations, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		string(cert.TxID), cert.Engine, cert.Fingerprint, cert.Tag, int(cert.Status), cert.Message, cert.Confirmations, cert.Created.UTC(), cert.Updated.UTC())
	if err != nil {
		return s.dbErr(err, "StoreCertification: insert")
	}
	return nil
}

func (s sqlStore) UpdateCertification(txid pin.TxID, res pin.Result) error {
	result, err := s.db.Exec(s.rebind(
		"UPDATE certification SET status = ?, msg = ?, confirmations = ?, updated = ? WHERE txid = ?"),
		int(res.Status), res.Message, res.ConfirmationCount(), time.Now().UTC(), string(txid))
	if err != nil {
		return s.dbErr(err, "UpdateCertification: update")
	}
	num_rows, err := result.RowsAffected()
	if err != nil {
		return s.dbErr(err, "UpdateCertification: rows affected")
	}
	if num_rows < 1 {
		return pin.NewErr(pin.NotFound, "certification not found: %s", txid)
	}
	return nil
}

func (s sqlStore) GetCertification(txid pin.TxID) (pin.Certification, error) {
	row := s.db.QueryRow(s.rebind("SELECT "+certColumns+" FROM certification WHERE txid = ?"), string(txid))
	cert, _, err := scanCertification(row)
	if err == sql.ErrNoRows {
		// MUST detect this error to fulfil the API contract.
		return pin.Certification{}, pin.NewErr(pin.NotFound, "certification not found: %s", txid)
	}
	if err != nil {
		return pin.Certification{}, s.dbErr(err, "GetCertification: row.Scan")
	}
	return cert, nil
}

func (s sqlStore) ListCertifications(cursor int, limit int) (items []pin.Certification, next_cursor int, err error) {
	// newest first: the cursor is the seq of the last row returned, the next
	// page continues strictly below it. cursor 0 starts at the newest row.
	if limit <= 0 {
		limit = 10
	}
	rows_found := 0
	var rows *sql.Rows
	if cursor > 0 {
		rows, err = s.db.Query(s.rebind("SELECT "+certColumns+" FROM certification WHERE seq < ? ORDER BY seq DESC LIMIT ?"), cursor, limit)
	} else {
		rows, err = s.db.Query(s.rebind("SELECT "+certColumns+" FROM certification ORDER BY seq DESC LIMIT ?"), limit)
	}
	if err != nil {
		return nil, 0, s.dbErr(err, "ListCertifications: querying")
	}
	defer rows.Close()
	for rows.Next() {
		cert, seq, err := scanCertification(rows)
		if err != nil {
			return nil, 0, s.dbErr(err, "ListCertifications: scanning row")
		}
		items = append(items, cert)
		next_cursor = int(seq)
		rows_found++
	}
	if err = rows.Err(); err != nil { // docs say this check is required!
		return nil, 0, s.dbErr(err, "ListCertifications: querying")
	}
	if rows_found < limit {
		next_cursor = 0 // meaning "end of query results"
	}
	return
}

func (s sqlStore) ListPending() (items []pin.Certification, err error) {
	rows, err := s.db.Query(s.rebind("SELECT "+certColumns+" FROM certification WHERE status <> ? ORDER BY seq"), int(pin.StatusConfirmed))
	if err != nil {
		return nil, s.dbErr(err, "ListPending: querying")
	}
	defer rows.Close()
	for rows.Next() {
		cert, _, err := scanCertification(rows)
		if err != nil {
			return nil, s.dbErr(err, "ListPending: scanning row")
		}
		items = append(items, cert)
	}
	if err = rows.Err(); err != nil {
		return nil, s.dbErr(err, "ListPending: querying")
	}
	return
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCertification(row scanner) (pin.Certification, int64, error) {
	var cert pin.Certification
	var seq int64
	var txid string
	var status int
	err := row.Scan(&seq, &txid, &cert.Engine, &cert.Fingerprint, &cert.Tag, &status, &cert.Message, &cert.Confirmations, &cert.Created, &cert.Updated)
	if err != nil {
		return pin.Certification{}, 0, err
	}
	cert.TxID = pin.TxID(txid)
	cert.Status = pin.StatusCode(status)
	return cert, seq, nil
}
