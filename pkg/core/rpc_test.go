package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcjson"
	pin "github.com/legalpin/legalcert/pkg"
	"github.com/stretchr/testify/require"
)

type nodeRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	Id     uint64            `json:"id"`
}

func newTestNode(t *testing.T, handle func(w http.ResponseWriter, req nodeRequest)) *RPCClient {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "alice", user)
		require.Equal(t, "hunter2", pass)

		var req nodeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		handle(w, req)
	}))
	t.Cleanup(srv.Close)
	return NewRPCClient("test", pin.EngineConfig{URL: srv.URL, RPCUser: "alice", RPCPass: "hunter2"})
}

func TestRPCClientResult(t *testing.T) {
	c := newTestNode(t, func(w http.ResponseWriter, req nodeRequest) {
		require.Equal(t, "gettransaction", req.Method)
		require.Len(t, req.Params, 1)
		require.JSONEq(t, `"abc"`, string(req.Params[0]))
		json.NewEncoder(w).Encode(map[string]any{
			"id":     req.Id,
			"result": map[string]any{"txid": "abc", "confirmations": 3},
			"error":  nil,
		})
	})

	var tx walletTransaction
	err := c.Call(context.Background(), "gettransaction", []any{"abc"}, &tx)
	require.NoError(t, err)
	require.Equal(t, "abc", tx.TxID)
	require.Equal(t, int64(3), tx.Confirmations)
}

func TestRPCClientNodeError(t *testing.T) {
	c := newTestNode(t, func(w http.ResponseWriter, req nodeRequest) {
		// Core sends RPC errors with a 500 status
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{
			"id":     req.Id,
			"result": nil,
			"error":  map[string]any{"code": -5, "message": "Invalid or non-wallet transaction id"},
		})
	})

	err := c.Call(context.Background(), "gettransaction", []any{"abc"}, &walletTransaction{})
	require.Error(t, err)
	require.True(t, IsRPCError(err, btcjson.ErrRPCInvalidAddressOrKey))
	require.False(t, pin.IsError(err, pin.TransportFailure))
}

func TestRPCClientNullResult(t *testing.T) {
	c := newTestNode(t, func(w http.ResponseWriter, req nodeRequest) {
		require.Empty(t, req.Params)
		json.NewEncoder(w).Encode(map[string]any{"id": req.Id, "result": nil, "error": nil})
	})
	require.NoError(t, c.Call(context.Background(), "walletlock", nil, nil))
}

func TestRPCClientTransportFailures(t *testing.T) {
	c := newTestNode(t, func(w http.ResponseWriter, req nodeRequest) {
		switch req.Method {
		case "unauthorized":
			w.WriteHeader(http.StatusUnauthorized)
		case "garbage":
			w.Write([]byte("<html>nope</html>"))
		case "wrongid":
			json.NewEncoder(w).Encode(map[string]any{"id": req.Id + 100, "result": 1})
		}
	})

	for _, method := range []string{"unauthorized", "garbage", "wrongid"} {
		var out any
		err := c.Call(context.Background(), method, nil, &out)
		require.True(t, pin.IsError(err, pin.TransportFailure), "%s: %v", method, err)
	}
}

func TestRPCClientDefaultURL(t *testing.T) {
	c := NewRPCClient("test", pin.EngineConfig{RPCHost: "node.local", RPCPort: 8332})
	require.Equal(t, "http://node.local:8332", c.url)

	c = NewRPCClient("test", pin.EngineConfig{RPCPort: 18332})
	require.True(t, strings.HasPrefix(c.url, "http://localhost:"))
}
