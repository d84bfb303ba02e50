package webapi

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	pin "github.com/legalpin/legalcert/pkg"
	"github.com/legalpin/legalcert/pkg/conductor"
	"github.com/legalpin/legalcert/pkg/metrics"
	log "github.com/sirupsen/logrus"
)

const maxWaitSeconds = 600

// WebAPI implements conductor.Service
type WebAPI struct {
	api    *pin.API
	config pin.Config
}

// interface guard ensures WebAPI implements conductor.Service
var _ conductor.Service = WebAPI{}

func NewWebAPI(config pin.Config, api *pin.API) (WebAPI, error) {
	return WebAPI{api: api, config: config}, nil
}

func (t WebAPI) Run(started, stopped chan bool, stop chan context.Context) error {
	adminMux, pubMux := t.createRouters()
	servers := []*http.Server{
		listen("admin", t.config.WebAPI.AdminBind, t.config.WebAPI.AdminPort, adminMux),
		listen("public", t.config.WebAPI.PubBind, t.config.WebAPI.PubPort, pubMux),
	}
	go func() {
		started <- true
		ctx := <-stop
		for _, srv := range servers {
			if err := srv.Shutdown(ctx); err != nil {
				log.Warnf("WebAPI: shutdown %s: %v", srv.Addr, err)
			}
		}
		stopped <- true
	}()
	return nil
}

// listen serves handler on bind:port in the background.
func listen(name, bind, port string, handler http.Handler) *http.Server {
	srv := &http.Server{
		Addr:              bind + ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Infof("WebAPI: %s API listening on %s", name, srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("WebAPI: %s ListenAndServe: %v", name, err)
		}
	}()
	return srv
}

func (t WebAPI) createRouters() (adminMux *httprouter.Router, pubMux *httprouter.Router) {
	adminMux = httprouter.New() // Admin APIs
	pubMux = httprouter.New()   // Public APIs

	// Admin APIs

	// POST { "fingerprint": hex } /cert/:engine -> { certification } anchor a fingerprint
	adminMux.POST("/cert/:engine", t.certify)

	// GET /cert/:engine/:txid -> { status } query the chain once
	adminMux.GET("/cert/:engine/:txid", t.getCertStatus)

	// GET /cert/:engine/:txid/wait ? timeout -> { status } long-poll until CONFIRMED or timeout
	adminMux.GET("/cert/:engine/:txid/wait", t.waitCert)

	// GET /certs ? cursor & limit -> { items, cursor } journalled certifications, newest first
	adminMux.GET("/certs", t.listCerts)

	// POST { "password", "timeout" } /wallet/:engine/unlock -> { unlocked }
	adminMux.POST("/wallet/:engine/unlock", t.unlockWallet)

	// POST /wallet/:engine/lock -> { locked }
	adminMux.POST("/wallet/:engine/lock", t.lockWallet)

	// GET /wallet/:engine/locked -> { locked }
	adminMux.GET("/wallet/:engine/locked", t.isWalletLocked)

	// GET /metrics -> prometheus exposition
	adminMux.Handler("GET", "/metrics", metrics.Handler())

	// External APIs

	// GET /cert/:engine/:txid -> { status }
	pubMux.GET("/cert/:engine/:txid", t.getCertStatus)

	// GET /cert/:engine/:txid/qr.png ? fg & bg -> QR code linking to the transaction
	pubMux.GET("/cert/:engine/:txid/qr.png", t.getCertQR)

	return
}

type CertifyRequest struct {
	Fingerprint string `json:"fingerprint"` // hex
}

// CertStatusResponse is a status snapshot for one transaction.
type CertStatusResponse struct {
	TxID   pin.TxID `json:"txid"`
	Engine string   `json:"engine"`
	pin.Result
}

type UnlockRequest struct {
	Password string `json:"password"`
	Timeout  int64  `json:"timeout"` // seconds, 0: engine default
}

type UnlockResponse struct {
	Unlocked bool `json:"unlocked"`
}

type LockedResponse struct {
	Locked bool `json:"locked"`
}

// certify anchors the hex fingerprint in the body with the engine in the URL
func (t WebAPI) certify(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	engine := p.ByName("engine")
	var o CertifyRequest
	err := json.NewDecoder(r.Body).Decode(&o)
	if err != nil {
		sendBadRequest(w, fmt.Sprintf("bad request body (expecting JSON): %v", err))
		return
	}
	fp, err := hex.DecodeString(o.Fingerprint)
	if err != nil {
		sendErrorResponse(w, http.StatusBadRequest, pin.InvalidInput, "fingerprint must be hex encoded")
		return
	}
	cert, err := t.api.Certify(r.Context(), engine, fp)
	if err != nil {
		sendError(w, "Certify", err)
		return
	}
	sendResponse(w, cert)
}

func (t WebAPI) getCertStatus(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	engine := p.ByName("engine")
	txid := pin.TxID(p.ByName("txid"))
	res, err := t.api.CertStatus(r.Context(), engine, txid)
	if err != nil {
		sendError(w, "CertStatus", err)
		return
	}
	sendResponse(w, CertStatusResponse{TxID: txid, Engine: engine, Result: res})
}

// waitCert polls until the transaction is CONFIRMED or the timeout passes;
// on timeout the last status is returned.
func (t WebAPI) waitCert(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	engine := p.ByName("engine")
	txid := pin.TxID(p.ByName("txid"))
	timeout := 30
	if qs := r.URL.Query().Get("timeout"); qs != "" {
		n, err := strconv.Atoi(qs)
		if err != nil || n < 1 || n > maxWaitSeconds {
			sendBadRequest(w, fmt.Sprintf("invalid timeout in URL (1 to %d seconds)", maxWaitSeconds))
			return
		}
		timeout = n
	}
	opts := t.config.PollOptions()
	opts.Timeout = time.Duration(timeout) * time.Second
	res, err := t.api.AwaitConfirmation(r.Context(), engine, txid, opts)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		sendError(w, "AwaitConfirmation", err)
		return
	}
	sendResponse(w, CertStatusResponse{TxID: txid, Engine: engine, Result: res})
}

func (t WebAPI) listCerts(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	// optional pagination: cursor comes from the previous response (or zero)
	icursor := 0
	ilimit := 10
	qs := r.URL.Query()
	cursor := qs.Get("cursor")
	var err error
	if cursor != "" {
		icursor, err = strconv.Atoi(cursor)
		if err != nil || icursor < 0 {
			sendBadRequest(w, "invalid cursor in URL")
			return
		}
	}
	limit := qs.Get("limit")
	if limit != "" {
		ilimit, err = strconv.Atoi(limit)
		if err != nil || ilimit < 1 {
			sendBadRequest(w, "invalid limit in URL")
			return
		}
		if ilimit > 100 {
			sendBadRequest(w, "invalid limit in URL (cannot be greater than 100)")
			return
		}
	}
	certs, err := t.api.ListCertifications(icursor, ilimit)
	if err != nil {
		sendError(w, "ListCertifications", err)
		return
	}
	sendResponse(w, certs)
}

func (t WebAPI) unlockWallet(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var o UnlockRequest
	err := json.NewDecoder(r.Body).Decode(&o)
	if err != nil {
		sendBadRequest(w, fmt.Sprintf("bad request body (expecting JSON): %v", err))
		return
	}
	if o.Timeout < 0 {
		sendBadRequest(w, "timeout cannot be negative")
		return
	}
	ok, err := t.api.Unlock(r.Context(), p.ByName("engine"), o.Password, time.Duration(o.Timeout)*time.Second)
	if err != nil {
		sendError(w, "Unlock", err)
		return
	}
	sendResponse(w, UnlockResponse{Unlocked: ok})
}

func (t WebAPI) lockWallet(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	err := t.api.Lock(r.Context(), p.ByName("engine"))
	if err != nil {
		sendError(w, "Lock", err)
		return
	}
	sendResponse(w, LockedResponse{Locked: true})
}

func (t WebAPI) isWalletLocked(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	locked, err := t.api.IsLocked(r.Context(), p.ByName("engine"))
	if err != nil {
		sendError(w, "IsLocked", err)
		return
	}
	sendResponse(w, LockedResponse{Locked: locked})
}

func (t WebAPI) getCertQR(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	_, engine, err := t.api.Engine(p.ByName("engine"))
	if err != nil {
		sendError(w, "Engine", err)
		return
	}
	txid := pin.TxID(p.ByName("txid"))
	qs := r.URL.Query()
	link := CertificateLink(t.config.Engines[engine], engine, txid)
	qr, err := GenerateQRCodePNG(link, 512, qs.Get("fg"), qs.Get("bg"))
	if err != nil {
		sendError(w, "GenerateQRCode", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	// a txid never changes what it links to
	w.Header().Set("Cache-Control", "max-age=86400, immutable")
	w.Write(qr)
}
