package pin

import (
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type CoinAmount = decimal.Decimal

var ZeroCoins = decimal.NewFromInt(0)

// DefaultFee is the flat fee paid by every certification transaction on a
// UTXO chain.
var DefaultFee = decimal.New(1, -4) // 0.0001

// UnspentCoin is one spendable output as reported by the node's
// listunspent. It is a snapshot: every certify call lists coins again.
type UnspentCoin struct {
	TxID          string     `json:"txid"`          // source transaction - part of unique key
	VOut          uint32     `json:"vout"`          // output index - part of unique key
	Address       string     `json:"address"`       // address owning the output, receives the change
	Amount        CoinAmount `json:"amount"`        // value of the output
	Spendable     bool       `json:"spendable"`     // the wallet holds the keys to spend it
	Confirmations int64      `json:"confirmations"` // informational only
}

// SelectCoin returns the first coin in listing order that is spendable and
// holds at least minAmount (first fit, no balance optimisation).
func SelectCoin(unspent []UnspentCoin, minAmount CoinAmount) (UnspentCoin, bool) {
	log.Debugf("SelectCoin: %d unspent entries", len(unspent))
	for _, coin := range unspent {
		log.Debugf("SelectCoin: %s:%d %s spendable=%v", coin.TxID, coin.VOut, coin.Amount, coin.Spendable)
		if coin.Spendable && coin.Amount.GreaterThanOrEqual(minAmount) {
			return coin, true
		}
	}
	return UnspentCoin{}, false
}
