package pin

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func coin(txid string, amount string, spendable bool) UnspentCoin {
	return UnspentCoin{TxID: txid, Amount: decimal.RequireFromString(amount), Spendable: spendable}
}

func TestSelectCoin(t *testing.T) {
	unspent := []UnspentCoin{
		coin("a", "10", false),
		coin("b", "0.00009999", true),
		coin("c", "0.0001", true),
		coin("d", "5", true),
	}
	got, ok := SelectCoin(unspent, DefaultFee)
	require.True(t, ok)
	require.Equal(t, "c", got.TxID)

	_, ok = SelectCoin(unspent[:2], DefaultFee)
	require.False(t, ok)
	_, ok = SelectCoin(nil, DefaultFee)
	require.False(t, ok)
}

func TestUnspentCoinJSON(t *testing.T) {
	// listunspent entry as a node returns it
	raw := `{"txid":"ab","vout":2,"address":"mxyz","amount":0.01000000,"spendable":true,"confirmations":12,"scriptPubKey":"76a9"}`
	var c UnspentCoin
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	require.Equal(t, uint32(2), c.VOut)
	require.True(t, c.Amount.Equal(decimal.RequireFromString("0.01")))
	require.True(t, c.Spendable)
}
