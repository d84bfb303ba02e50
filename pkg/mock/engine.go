// Package mock is an in-memory chain for tests and demos. It certifies by
// spending from a scripted coin list and confirms transactions when Mine
// is called.
package mock

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync"
	"time"

	pin "github.com/legalpin/legalcert/pkg"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// interface guard ensures Engine implements pin.Engine
var _ pin.Engine = &Engine{}

type Engine struct {
	mu       sync.Mutex
	framer   pin.Framer
	fee      pin.CoinAmount
	final    int64
	height   int64
	coins    []pin.UnspentCoin
	txns     map[pin.TxID]*mockTxn
	password string
	locked   bool
	nonce    uint64
	fail     error
}

type mockTxn struct {
	payload []byte
	height  int64 // 0 while in the mempool
}

// NewEngine returns a chain at height 100 with one spendable coin of 1.0
// and an unlocked wallet protected by "password".
func NewEngine(conf pin.EngineConfig, tag string) (*Engine, error) {
	fee, err := conf.FeeAmount()
	if err != nil {
		return nil, err
	}
	e := &Engine{
		framer:   pin.NewFramer(tag),
		fee:      fee,
		final:    conf.FinalConfirmations(),
		height:   100,
		txns:     make(map[pin.TxID]*mockTxn),
		password: "password",
	}
	e.AddCoin(decimal.NewFromInt(1))
	return e, nil
}

// AddCoin funds the wallet with a new spendable coin.
func (e *Engine) AddCoin(amount pin.CoinAmount) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nonce++
	e.coins = append(e.coins, pin.UnspentCoin{
		TxID:      e.hash([]byte("coin")),
		VOut:      0,
		Address:   "mockAddress",
		Amount:    amount,
		Spendable: true,
	})
}

// Drain removes every coin.
func (e *Engine) Drain() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.coins = nil
}

// Mine adds n blocks, including every mempool transaction in the first.
func (e *Engine) Mine(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := 0; i < n; i++ {
		e.height++
		for _, tx := range e.txns {
			if tx.height == 0 {
				tx.height = e.height
			}
		}
	}
	log.Debugf("MockEngine: mined %d blocks, height %d", n, e.height)
}

// Forget drops a transaction, as if it was evicted from the mempool.
func (e *Engine) Forget(txid pin.TxID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.txns, txid)
}

// FailWith makes every node call fail with err until called with nil.
func (e *Engine) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fail = err
}

// Payload returns the bytes written on-chain by txid.
func (e *Engine) Payload(txid pin.TxID) ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	tx, ok := e.txns[txid]
	if !ok {
		return nil, false
	}
	return tx.payload, true
}

func (e *Engine) hash(data []byte) string {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], e.nonce)
	sum := sha256.Sum256(append(n[:], data...))
	return hex.EncodeToString(sum[:])
}

func (e *Engine) Certify(ctx context.Context, fingerprint []byte) (pin.TxID, error) {
	payload, err := e.framer.Frame(fingerprint)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail != nil {
		return "", e.fail
	}
	if e.locked {
		return "", pin.NewErr(pin.SigningIncomplete, "wallet is locked")
	}
	coin, ok := pin.SelectCoin(e.coins, e.fee)
	if !ok {
		return "", pin.NewErr(pin.NoCoinAvailable, "no spendable coin of at least %s", e.fee)
	}
	e.nonce++
	txid := pin.TxID(e.hash(payload))
	e.txns[txid] = &mockTxn{payload: payload}

	// spend the coin, keep the change as a new unconfirmed coin
	for i, c := range e.coins {
		if c.TxID == coin.TxID && c.VOut == coin.VOut {
			e.coins = append(e.coins[:i], e.coins[i+1:]...)
			break
		}
	}
	e.coins = append(e.coins, pin.UnspentCoin{
		TxID:      string(txid),
		VOut:      1,
		Address:   coin.Address,
		Amount:    coin.Amount.Sub(e.fee),
		Spendable: true,
	})
	return txid, nil
}

func (e *Engine) CertStatus(ctx context.Context, txid pin.TxID) (pin.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail != nil {
		return pin.Result{}, e.fail
	}
	tx, ok := e.txns[txid]
	if !ok {
		return pin.NotFoundResult(), nil
	}
	if tx.height == 0 {
		return pin.Classify(0, e.final), nil
	}
	return pin.Classify(e.height-tx.height+1, e.final), nil
}

func (e *Engine) CheckCert(ctx context.Context, data []byte) (bool, error) {
	return true, nil
}

func (e *Engine) Lock(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.locked = true
	return nil
}

func (e *Engine) Unlock(ctx context.Context, password string, timeout time.Duration) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if password != e.password {
		return false, nil
	}
	e.locked = false
	return true, nil
}

func (e *Engine) IsLocked(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.locked, nil
}
