package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	pin "github.com/legalpin/legalcert/pkg"
	"github.com/legalpin/legalcert/pkg/conductor"
	"github.com/legalpin/legalcert/pkg/core"
	"github.com/legalpin/legalcert/pkg/mock"
	"github.com/legalpin/legalcert/pkg/store"
	"github.com/stretchr/testify/require"
)

func TestNewEngines(t *testing.T) {
	conf := pin.TestConfig()
	conf.Engines["btc"] = pin.EngineConfig{Kind: pin.KindUTXO, RPCHost: "localhost", RPCPort: 18332, Fee: "0.0001"}

	engines, err := NewEngines(context.Background(), conf)
	require.NoError(t, err)
	require.Len(t, engines, 2)
	require.IsType(t, &mock.Engine{}, engines["mock"])
	require.IsType(t, &core.UTXOEngine{}, engines["btc"])

	conf.Engines["bad"] = pin.EngineConfig{Kind: "paper"}
	_, err = NewEngines(context.Background(), conf)
	require.True(t, pin.IsError(err, pin.BadRequest))

	_, err = NewEngine(context.Background(), "missing", conf)
	require.True(t, pin.IsNotFoundError(err))

	_, err = NewEngines(context.Background(), pin.Config{})
	require.Error(t, err)
}

func TestNewStore(t *testing.T) {
	conf := pin.TestConfig()
	s, err := NewStore(conf)
	require.NoError(t, err)
	defer s.Close()

	conf.Store.Driver = "csv"
	_, err = NewStore(conf)
	require.True(t, pin.IsError(err, pin.BadRequest))
}

func TestFingerprintArgs(t *testing.T) {
	fp, err := certifyArgs{Text: "PAYLOAD"}.fingerprint()
	require.NoError(t, err)
	require.Equal(t, []byte("PAYLOAD"), fp)

	fp, err = certifyArgs{Hex: "00ff"}.fingerprint()
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0xff}, fp)

	_, err = certifyArgs{Hex: "zz"}.fingerprint()
	require.Error(t, err)
	_, err = certifyArgs{Text: "a", Hex: "00"}.fingerprint()
	require.Error(t, err)
	_, err = certifyArgs{}.fingerprint()
	require.Error(t, err)
}

func TestAdminAPIURL(t *testing.T) {
	conf := pin.TestConfig()
	u, err := adminAPIURL(conf, "", "/certs?limit=5")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8085/certs?limit=5", u)

	u, err = adminAPIURL(conf, "https://admin.example:9000/", "/certs")
	require.NoError(t, err)
	require.Equal(t, "https://admin.example:9000/certs", u)
}

func TestGetURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/certs" {
			http.Error(w, "nope", http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	require.NoError(t, getURL(srv.URL+"/certs", &out))
	require.Equal(t, `{"items":[]}`, out.String())

	require.Error(t, getURL(srv.URL+"/other", &out))
}

type closeRecorder struct {
	*store.Mock
	closed chan struct{}
}

func (r closeRecorder) Close() {
	close(r.closed)
}

func TestServeClosesJournal(t *testing.T) {
	rec := closeRecorder{store.NewMock(), make(chan struct{})}
	openStore = func(pin.Config) (pin.Store, error) { return rec, nil }
	defer func() { openStore = NewStore }()

	conf := pin.TestConfig()
	conf.WebAPI.AdminBind, conf.WebAPI.AdminPort = "127.0.0.1", "0"
	conf.WebAPI.PubBind, conf.WebAPI.PubPort = "127.0.0.1", "0"
	c := conductor.NewConductor()

	done := make(chan error, 1)
	go func() { done <- Serve(c, conf) }()
	time.Sleep(200 * time.Millisecond)
	c.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return")
	}
	select {
	case <-rec.closed:
	default:
		t.Fatal("journal was not closed")
	}
}

func TestServeBadEngineConfig(t *testing.T) {
	conf := pin.TestConfig()
	conf.Engines["bad"] = pin.EngineConfig{Kind: "paper"}
	err := Serve(conductor.NewConductor(), conf)
	require.True(t, pin.IsError(err, pin.BadRequest))
}
