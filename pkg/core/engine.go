package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	pin "github.com/legalpin/legalcert/pkg"
	log "github.com/sirupsen/logrus"
)

const (
	SignRawTransaction           = "signrawtransaction"
	SignRawTransactionWithWallet = "signrawtransactionwithwallet"
)

// interface guard ensures UTXOEngine implements pin.Engine
var _ pin.Engine = &UTXOEngine{}

// UTXOEngine certifies on a Bitcoin-family chain through the node wallet:
// it picks one coin, spends it into a data output plus change, and lets
// the node sign and broadcast.
type UTXOEngine struct {
	rpc          Caller
	framer       pin.Framer
	fee          pin.CoinAmount
	final        int64
	signMethod   string
	probeAddress string
	unlock       time.Duration // walletpassphrase duration when none is given
}

// NewUTXOEngine returns an engine using rpc; tag is the payload prefix.
func NewUTXOEngine(rpc Caller, conf pin.EngineConfig, tag string) (*UTXOEngine, error) {
	fee, err := conf.FeeAmount()
	if err != nil {
		return nil, err
	}
	sign := conf.SignMethod
	switch sign {
	case "":
		sign = SignRawTransaction
	case SignRawTransaction, SignRawTransactionWithWallet:
	default:
		return nil, pin.NewErr(pin.BadRequest, "unknown sign_method %q", sign)
	}
	return &UTXOEngine{
		rpc:          rpc,
		framer:       pin.NewFramer(tag),
		fee:          fee,
		final:        conf.ConfirmationsOr(pin.UTXOFinalConfirmations),
		unlock:       conf.UnlockTimeout(),
		signMethod:   sign,
		probeAddress: conf.ProbeAddress,
	}, nil
}

// gettransaction result; only the fields we read.
type walletTransaction struct {
	TxID          string `json:"txid"`
	Confirmations int64  `json:"confirmations"`
	BlockHash     string `json:"blockhash"`
}

func (e *UTXOEngine) Certify(ctx context.Context, fingerprint []byte) (pin.TxID, error) {
	payloadHex, err := e.framer.FrameHex(fingerprint)
	if err != nil {
		return "", err
	}

	unspent, err := e.listUnspent(ctx)
	if err != nil {
		return "", err
	}
	coin, ok := pin.SelectCoin(unspent, e.fee)
	if !ok {
		return "", pin.NewErr(pin.NoCoinAvailable, "no spendable coin of at least %s among %d unspent outputs", e.fee, len(unspent))
	}
	log.Debugf("UTXOEngine: spending %s:%d (%s)", coin.TxID, coin.VOut, coin.Amount)

	inputs := []btcjson.TransactionInput{{Txid: coin.TxID, Vout: coin.VOut}}
	change := coin.Amount.Sub(e.fee)
	outputs := map[string]any{
		"data":       payloadHex,
		coin.Address: json.Number(change.StringFixed(8)),
	}
	var rawHex string
	err = e.rpc.Call(ctx, "createrawtransaction", []any{inputs, outputs}, &rawHex)
	if err != nil {
		return "", err
	}

	var signed btcjson.SignRawTransactionResult
	err = e.rpc.Call(ctx, e.signMethod, []any{rawHex}, &signed)
	if err != nil {
		return "", err
	}
	if !signed.Complete {
		return "", pin.NewErr(pin.SigningIncomplete, "error signing transaction: %+v", signed)
	}

	var txid string
	err = e.rpc.Call(ctx, "sendrawtransaction", []any{signed.Hex}, &txid)
	if err != nil {
		return "", err
	}
	return pin.TxID(txid), nil
}

func (e *UTXOEngine) listUnspent(ctx context.Context) ([]pin.UnspentCoin, error) {
	var unspent []pin.UnspentCoin
	err := e.rpc.Call(ctx, "listunspent", nil, &unspent)
	return unspent, err
}

func (e *UTXOEngine) CertStatus(ctx context.Context, txid pin.TxID) (pin.Result, error) {
	var tx walletTransaction
	err := e.rpc.Call(ctx, "gettransaction", []any{string(txid)}, &tx)
	if IsRPCError(err, btcjson.ErrRPCInvalidAddressOrKey) {
		return pin.NotFoundResult(), nil
	}
	if err != nil {
		return pin.Result{}, err
	}
	return pin.Classify(tx.Confirmations, e.final), nil
}

func (e *UTXOEngine) CheckCert(ctx context.Context, data []byte) (bool, error) {
	return true, nil
}

func (e *UTXOEngine) Lock(ctx context.Context) error {
	return e.rpc.Call(ctx, "walletlock", nil, nil)
}

func (e *UTXOEngine) Unlock(ctx context.Context, password string, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		timeout = e.unlock
	}
	seconds := int64(timeout / time.Second)
	err := e.rpc.Call(ctx, "walletpassphrase", []any{password, seconds}, nil)
	if IsRPCError(err, btcjson.ErrRPCWalletPassphraseIncorrect) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// IsLocked probes the wallet with signmessage: Core checks the lock before
// anything else, so only ErrRPCWalletUnlockNeeded means locked. Any other
// answer, success or failure, is taken as unlocked.
func (e *UTXOEngine) IsLocked(ctx context.Context) (bool, error) {
	addr := e.probeAddress
	if addr == "" {
		if unspent, err := e.listUnspent(ctx); err == nil && len(unspent) > 0 {
			addr = unspent[0].Address
		}
	}
	var signature string
	err := e.rpc.Call(ctx, "signmessage", []any{addr, "legalcert lock probe"}, &signature)
	if IsRPCError(err, btcjson.ErrRPCWalletUnlockNeeded) {
		return true, nil
	}
	if err != nil {
		if _, ok := err.(*btcjson.RPCError); !ok {
			return false, err
		}
	}
	return false, nil
}
