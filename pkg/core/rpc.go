package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	pin "github.com/legalpin/legalcert/pkg"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// Caller performs one JSON-RPC call against a node. A nil result discards
// the returned value (walletlock, walletpassphrase return null).
type Caller interface {
	Call(ctx context.Context, method string, params []any, result any) error
}

// interface guard ensures RPCClient implements Caller
var _ Caller = &RPCClient{}

// RPCClient speaks Bitcoin Core style JSON-RPC 1.0 over HTTP with basic auth.
//
// Node-side errors are returned as *btcjson.RPCError so callers can inspect
// the code; everything else is a pin.TransportFailure.
type RPCClient struct {
	url     string
	user    string
	pass    string
	id      uint64
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewRPCClient returns a client for the node described by conf.
func NewRPCClient(name string, conf pin.EngineConfig) *RPCClient {
	host := conf.RPCHost
	if host == "" {
		host = "localhost"
	}
	url := conf.URL
	if url == "" {
		url = fmt.Sprintf("http://%s:%d", host, conf.RPCPort)
	}
	return &RPCClient{
		url:     url,
		user:    conf.RPCUser,
		pass:    conf.RPCPass,
		http:    &http.Client{Timeout: 60 * time.Second},
		breaker: newCircuitBreaker(name),
	}
}

type rpcRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
	Id     uint64 `json:"id"`
}
type rpcResponse struct {
	Id     uint64            `json:"id"`
	Result *json.RawMessage  `json:"result"`
	Error  *btcjson.RPCError `json:"error"`
}

func (c *RPCClient) Call(ctx context.Context, method string, params []any, result any) error {
	if params == nil {
		params = []any{}
	}
	var rpcErr *btcjson.RPCError
	_, err := c.breaker.Execute(func() (interface{}, error) {
		raw, err := c.roundTrip(ctx, method, params)
		if err != nil {
			if e, ok := err.(*btcjson.RPCError); ok {
				// the node answered: not a transport failure
				rpcErr = e
				return nil, nil
			}
			return nil, err
		}
		if result == nil {
			return nil, nil
		}
		if raw == nil {
			return nil, pin.NewErr(pin.TransportFailure, "json-rpc %s: missing result", method)
		}
		if err := json.Unmarshal(*raw, result); err != nil {
			return nil, pin.NewErr(pin.TransportFailure, "json-rpc %s: unmarshal result: %v | %v", method, err, string(*raw))
		}
		return nil, nil
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return pin.NewErr(pin.TransportFailure, "json-rpc %s: node unavailable (%v)", method, err)
	}
	if err != nil {
		return err
	}
	if rpcErr != nil {
		return rpcErr
	}
	return nil
}

func (c *RPCClient) roundTrip(ctx context.Context, method string, params []any) (*json.RawMessage, error) {
	body := rpcRequest{
		Method: method,
		Params: params,
		Id:     atomic.AddUint64(&c.id, 1), // each request should use a unique ID
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, pin.NewErr(pin.TransportFailure, "json-rpc marshal request: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewBuffer(payload))
	if err != nil {
		return nil, pin.NewErr(pin.TransportFailure, "json-rpc request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" || c.pass != "" {
		req.SetBasicAuth(c.user, c.pass)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, pin.NewErr(pin.TransportFailure, "json-rpc transport: %v", err)
	}
	// we MUST read all of res.Body and call res.Close,
	// otherwise the underlying connection cannot be re-used.
	defer res.Body.Close()
	resBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, pin.NewErr(pin.TransportFailure, "json-rpc read response: %v", err)
	}
	// Core answers RPC errors with HTTP 404/500 and a JSON body, so try the
	// body before looking at the status code.
	var rpcres rpcResponse
	if err := json.Unmarshal(resBytes, &rpcres); err != nil {
		if res.StatusCode != http.StatusOK {
			return nil, pin.NewErr(pin.TransportFailure, "json-rpc status code: %s", res.Status)
		}
		return nil, pin.NewErr(pin.TransportFailure, "json-rpc unmarshal response: %v", err)
	}
	if rpcres.Error != nil {
		return nil, rpcres.Error
	}
	if res.StatusCode != http.StatusOK {
		return nil, pin.NewErr(pin.TransportFailure, "json-rpc status code: %s", res.Status)
	}
	if rpcres.Id != body.Id {
		return nil, pin.NewErr(pin.TransportFailure, "json-rpc wrong ID returned: %v vs %v", rpcres.Id, body.Id)
	}
	return rpcres.Result, nil
}

func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests > 10 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				log.Warnf("%s: node seems down, stop allowing requests", name)
			}
			if from == gobreaker.StateOpen && to == gobreaker.StateHalfOpen {
				log.Infof("%s: checking node status", name)
			}
			if from == gobreaker.StateHalfOpen && to == gobreaker.StateClosed {
				log.Infof("%s: node seems ok, restart allowing requests", name)
			}
		},
	})
}

// IsRPCError reports whether err is a node error with the given code.
func IsRPCError(err error, code btcjson.RPCErrorCode) bool {
	if e, ok := err.(*btcjson.RPCError); ok {
		return e.Code == code
	}
	return false
}
