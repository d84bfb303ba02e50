// Package ether certifies fingerprints on an account-based chain by sending
// a self-addressed transaction whose data field carries the payload.
package ether

import (
	"context"
	"encoding/hex"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	pin "github.com/legalpin/legalcert/pkg"
	log "github.com/sirupsen/logrus"
)

const (
	LockProbeAssumeLocked = "assume-locked"
	LockProbeSign         = "sign"
)

// Caller is the subset of *rpc.Client the engine uses.
type Caller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// interface guard ensures *rpc.Client implements Caller
var _ Caller = (*rpc.Client)(nil)

// interface guard ensures AccountEngine implements pin.Engine
var _ pin.Engine = &AccountEngine{}

// AccountEngine uses the node's first account as both sender and recipient.
type AccountEngine struct {
	rpc       Caller
	framer    pin.Framer
	final     int64
	lockProbe string
}

// Dial connects to the node at conf.URL (http, ws or IPC path).
func Dial(ctx context.Context, conf pin.EngineConfig) (*rpc.Client, error) {
	if conf.URL == "" {
		return nil, pin.NewErr(pin.BadRequest, "account engine needs a url")
	}
	c, err := rpc.DialContext(ctx, conf.URL)
	if err != nil {
		return nil, pin.NewErr(pin.TransportFailure, "dial %s: %v", conf.URL, err)
	}
	return c, nil
}

func NewAccountEngine(rpc Caller, conf pin.EngineConfig, tag string) (*AccountEngine, error) {
	probe := conf.LockProbe
	switch probe {
	case "":
		probe = LockProbeAssumeLocked
	case LockProbeAssumeLocked, LockProbeSign:
	default:
		return nil, pin.NewErr(pin.BadRequest, "unknown lock_probe %q", probe)
	}
	return &AccountEngine{
		rpc:       rpc,
		framer:    pin.NewFramer(tag),
		final:     conf.ConfirmationsOr(pin.AccountFinalConfirmations),
		lockProbe: probe,
	}, nil
}

type sendTxArgs struct {
	From common.Address `json:"from"`
	To   common.Address `json:"to"`
	Data hexutil.Bytes  `json:"data"`
}

// eth_getTransactionByHash result; only the fields we read.
type rpcTransaction struct {
	Hash        common.Hash  `json:"hash"`
	BlockNumber *hexutil.Big `json:"blockNumber"`
}

func (e *AccountEngine) account(ctx context.Context) (common.Address, error) {
	var accounts []common.Address
	if err := e.rpc.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return common.Address{}, err
	}
	if len(accounts) == 0 {
		return common.Address{}, pin.NewErr(pin.NotAvailable, "node has no accounts")
	}
	return accounts[0], nil
}

func (e *AccountEngine) Certify(ctx context.Context, fingerprint []byte) (pin.TxID, error) {
	payload, err := e.framer.Frame(fingerprint)
	if err != nil {
		return "", err
	}
	addr, err := e.account(ctx)
	if err != nil {
		return "", err
	}

	var balance hexutil.Big
	if err := e.rpc.CallContext(ctx, &balance, "eth_getBalance", addr, "latest"); err != nil {
		return "", err
	}
	if (*big.Int)(&balance).Sign() <= 0 {
		return "", pin.NewErr(pin.NoCoinAvailable, "account %s has no balance to pay for gas", addr.Hex())
	}
	log.Debugf("AccountEngine: sending from %s (balance %s)", addr.Hex(), (*big.Int)(&balance))

	var hash common.Hash
	tx := sendTxArgs{From: addr, To: addr, Data: payload}
	if err := e.rpc.CallContext(ctx, &hash, "eth_sendTransaction", tx); err != nil {
		return "", err
	}
	return pin.TxID(hex.EncodeToString(hash[:])), nil
}

func (e *AccountEngine) CertStatus(ctx context.Context, txid pin.TxID) (pin.Result, error) {
	hash := common.HexToHash(string(txid))
	var tx *rpcTransaction
	if err := e.rpc.CallContext(ctx, &tx, "eth_getTransactionByHash", hash); err != nil {
		return pin.Result{}, err
	}
	if tx == nil {
		return pin.NotFoundResult(), nil
	}
	if tx.BlockNumber == nil {
		return pin.Classify(0, e.final), nil
	}

	var head hexutil.Uint64
	if err := e.rpc.CallContext(ctx, &head, "eth_blockNumber"); err != nil {
		return pin.Result{}, err
	}
	mined := tx.BlockNumber.ToInt().Int64()
	confirmations := int64(head) - mined + 1
	if confirmations < 1 {
		// head lagging behind the block that holds the tx (load balanced nodes)
		confirmations = 1
	}
	return pin.Classify(confirmations, e.final), nil
}

func (e *AccountEngine) CheckCert(ctx context.Context, data []byte) (bool, error) {
	return true, nil
}

func (e *AccountEngine) Lock(ctx context.Context) error {
	addr, err := e.account(ctx)
	if err != nil {
		return err
	}
	var ok bool
	return e.rpc.CallContext(ctx, &ok, "personal_lockAccount", addr)
}

func (e *AccountEngine) Unlock(ctx context.Context, password string, timeout time.Duration) (bool, error) {
	addr, err := e.account(ctx)
	if err != nil {
		return false, err
	}
	var duration *uint64
	if timeout > 0 {
		seconds := uint64(timeout / time.Second)
		duration = &seconds
	}
	var ok bool
	if err := e.rpc.CallContext(ctx, &ok, "personal_unlockAccount", addr, password, duration); err != nil {
		if isAuthError(err) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

// IsLocked cannot observe the account state through the standard RPC. With
// the assume-locked probe it always answers true; with the sign probe it
// asks the node to eth_sign and reads an authentication error as locked.
func (e *AccountEngine) IsLocked(ctx context.Context) (bool, error) {
	if e.lockProbe == LockProbeAssumeLocked {
		return true, nil
	}
	addr, err := e.account(ctx)
	if err != nil {
		return false, err
	}
	var sig hexutil.Bytes
	err = e.rpc.CallContext(ctx, &sig, "eth_sign", addr, hexutil.Bytes(e.framer.Tag()))
	if err == nil {
		return false, nil
	}
	if isAuthError(err) {
		return true, nil
	}
	return false, err
}

func isAuthError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "authentication needed") ||
		strings.Contains(msg, "could not decrypt key")
}
