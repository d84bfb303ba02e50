package webapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"
	pin "github.com/legalpin/legalcert/pkg"
	"github.com/legalpin/legalcert/pkg/mock"
	"github.com/legalpin/legalcert/pkg/store"
	"github.com/stretchr/testify/require"
)

func TestWebAPI(t *testing.T) {
	admin, pub, chain := newTestRig(t)

	// Certify 32 zero bytes
	var cert pin.Certification
	request(t, admin, "/cert/mock", `{"fingerprint":"`+strings.Repeat("00", 32)+`"}`, &cert)
	require.NotEmpty(t, cert.TxID)
	require.Equal(t, "mock", cert.Engine)
	require.Equal(t, pin.StatusUnknown, cert.Status)

	// Status: in mempool
	var status CertStatusResponse
	request(t, admin, "/cert/mock/"+string(cert.TxID), "", &status)
	require.Equal(t, pin.StatusInMempool, status.Status)
	require.Equal(t, "In mempool", status.Message)

	// Confirmed after six blocks, visible on the public API too
	chain.Mine(6)
	request(t, pub, "/cert/mock/"+string(cert.TxID), "", &status)
	require.Equal(t, pin.StatusConfirmed, status.Status)
	require.Equal(t, "Confirmed: 6", status.Message)

	// wait returns at once for a confirmed transaction
	request(t, admin, "/cert/mock/"+string(cert.TxID)+"/wait?timeout=1", "", &status)
	require.Equal(t, pin.StatusConfirmed, status.Status)

	// the journal followed the status
	var list pin.ListCertificationsResponse
	request(t, admin, "/certs?cursor=0&limit=10", "", &list)
	require.Equal(t, 0, list.Cursor)
	require.Len(t, list.Items, 1)
	require.Equal(t, cert.TxID, list.Items[0].TxID)
	require.Equal(t, pin.StatusConfirmed, list.Items[0].Status)

	// unknown transaction
	request(t, admin, "/cert/mock/feed", "", &status)
	require.Equal(t, pin.StatusNotFound, status.Status)
	require.Equal(t, "TX not found", status.Message)
}

func TestWebAPIErrors(t *testing.T) {
	admin, _, chain := newTestRig(t)

	res := rawRequest(admin, "POST", "/cert/mock", `{"fingerprint":"zz"}`)
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Contains(t, res.Body.String(), string(pin.InvalidInput))

	res = rawRequest(admin, "POST", "/cert/mock", `{"fingerprint":"`+strings.Repeat("ab", 33)+`"}`)
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = rawRequest(admin, "POST", "/cert/nope", `{"fingerprint":"ab"}`)
	require.Equal(t, http.StatusNotFound, res.Code)

	chain.Drain()
	res = rawRequest(admin, "POST", "/cert/mock", `{"fingerprint":"ab"}`)
	require.Equal(t, http.StatusConflict, res.Code)
	require.Contains(t, res.Body.String(), string(pin.NoCoinAvailable))

	res = rawRequest(admin, "GET", "/certs?limit=1000", "")
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = rawRequest(admin, "GET", "/cert/mock/abc/wait?timeout=0", "")
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestWebAPIWallet(t *testing.T) {
	admin, _, _ := newTestRig(t)

	var locked LockedResponse
	request(t, admin, "/wallet/mock/locked", "", &locked)
	require.False(t, locked.Locked)

	request(t, admin, "/wallet/mock/lock", "{}", &locked)
	require.True(t, locked.Locked)
	request(t, admin, "/wallet/mock/locked", "", &locked)
	require.True(t, locked.Locked)

	var unlocked UnlockResponse
	request(t, admin, "/wallet/mock/unlock", `{"password":"wrong"}`, &unlocked)
	require.False(t, unlocked.Unlocked)
	request(t, admin, "/wallet/mock/unlock", `{"password":"password","timeout":30}`, &unlocked)
	require.True(t, unlocked.Unlocked)
	request(t, admin, "/wallet/mock/locked", "", &locked)
	require.False(t, locked.Locked)
}

func TestWebAPIQRCode(t *testing.T) {
	_, pub, _ := newTestRig(t)
	res := rawRequest(pub, "GET", "/cert/mock/abcd/qr.png?fg=000&bg=ffffff", "")
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "image/png", res.Header().Get("Content-Type"))
	require.True(t, bytes.HasPrefix(res.Body.Bytes(), []byte("\x89PNG")))
}

func TestCertificateLink(t *testing.T) {
	require.Equal(t, "https://x/tx/ab", CertificateLink(pin.EngineConfig{ExplorerURL: "https://x/tx/%s"}, "btc", "ab"))
	require.Equal(t, "btc:ab", CertificateLink(pin.EngineConfig{}, "btc", "ab"))
}

func TestMetricsEndpoint(t *testing.T) {
	admin, _, _ := newTestRig(t)
	request(t, admin, "/cert/mock", `{"fingerprint":"01"}`, &pin.Certification{})
	res := rawRequest(admin, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), "legalcert_certify_total")
}

// Helpers.

func rawRequest(mux *httprouter.Router, method string, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	res := httptest.NewRecorder()
	mux.ServeHTTP(res, req)
	return res
}

func request(t *testing.T, mux *httprouter.Router, path string, body string, out any) *http.Response {
	method := "GET"
	if body != "" {
		method = "POST"
	}
	res := rawRequest(mux, method, path, body)
	result := res.Result()
	if result.StatusCode != 200 {
		t.Fatalf("%s request failed: %v %v", path, result.StatusCode, res.Body)
	}
	err := json.NewDecoder(res.Body).Decode(out)
	if err != nil {
		t.Fatalf("%s bad json: %v", path, res.Body)
	}
	return result
}

func newTestRig(t *testing.T) (adminMux *httprouter.Router, pubMux *httprouter.Router, chain *mock.Engine) {
	config := pin.TestConfig()
	journal, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("Cannot create in-memory database: %v", err)
	}
	t.Cleanup(journal.Close)
	chain, err = mock.NewEngine(config.Engines["mock"], config.EngineTag("mock"))
	require.NoError(t, err)
	bus := pin.NewMessageBus()
	api := pin.NewAPI(map[string]pin.Engine{"mock": chain}, journal, bus, config)

	web := WebAPI{api: api, config: config}
	adminMux, pubMux = web.createRouters()
	return
}
