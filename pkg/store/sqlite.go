package store

import (
	"database/sql"

	pin "github.com/legalpin/legalcert/pkg"

	"github.com/mattn/go-sqlite3"
)

const SETUP_SQL string = `
CREATE TABLE IF NOT EXISTS certification (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	txid TEXT NOT NULL UNIQUE,
	engine TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	tag TEXT NOT NULL,
	status INTEGER NOT NULL,
	msg TEXT NOT NULL,
	confirmations INTEGER NOT NULL,
	created DATETIME NOT NULL,
	updated DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS certification_status_i ON certification (status);
`

// interface guard ensures SQLiteStore implements pin.Store
var _ pin.Store = SQLiteStore{}

type SQLiteStore struct {
	sqlStore
}

// NewSQLiteStore returns a pin.Store implementor that uses sqlite
func NewSQLiteStore(fileName string) (SQLiteStore, error) {
	db, err := sql.Open("sqlite3", fileName)
	if err != nil {
		return SQLiteStore{}, sqliteErr(err, "opening database")
	}
	// a single connection: every :memory: connection is a separate database,
	// and sqlite serialises writers anyway
	db.SetMaxOpenConns(1)
	_, err = db.Exec(SETUP_SQL)
	if err != nil {
		db.Close()
		return SQLiteStore{}, sqliteErr(err, "creating database schema")
	}
	return SQLiteStore{sqlStore{db: db, dbErr: sqliteErr}}, nil
}

func sqliteErr(err error, where string) error {
	if e, ok := err.(sqlite3.Error); ok && e.ExtendedCode == sqlite3.ErrConstraintUnique {
		return pin.NewErr(pin.AlreadyExists, "SQLiteStore error: %s: %v", where, err)
	}
	return pin.NewErr(pin.NotAvailable, "SQLiteStore error: %s: %v", where, err)
}
