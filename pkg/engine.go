package pin

import (
	"context"
	"time"
)

// TxID is the opaque handle a chain returns for a broadcast transaction.
type TxID string

// Engine anchors fingerprints into one blockchain.
//
// Engines keep no local state: everything is re-derived from the node on
// each call. Certify on a UTXO engine is not safe for concurrent use: two
// calls may select the same coin before either broadcasts. Callers that
// certify concurrently must serialise per engine (API does).
type Engine interface {
	StatusChecker

	// Certify embeds tag||fingerprint in a transaction and broadcasts it.
	// Fails with InvalidInput, NoCoinAvailable or SigningIncomplete, or
	// with whatever the transport returned.
	Certify(ctx context.Context, fingerprint []byte) (TxID, error)

	// CheckCert is reserved for on-chain payload verification and
	// currently always succeeds.
	CheckCert(ctx context.Context, data []byte) (bool, error)

	// Lock locks the node wallet or account used for signing.
	Lock(ctx context.Context) error

	// Unlock unlocks signing for timeout (zero: engine default). It returns
	// false without error when the node rejects the password.
	Unlock(ctx context.Context, password string, timeout time.Duration) (bool, error)

	// IsLocked reports whether signing currently needs Unlock. Backends that
	// cannot observe the lock state answer conservatively.
	IsLocked(ctx context.Context) (bool, error)
}

// StatusChecker is the part of an Engine the confirmation poller needs.
type StatusChecker interface {
	// CertStatus classifies a transaction by its confirmations. An unknown
	// transaction is the NOT_FOUND status, not an error; errors are only
	// transport failures.
	CertStatus(ctx context.Context, txid TxID) (Result, error)
}
