package pin

import (
	"context"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"github.com/legalpin/legalcert/pkg/metrics"
	log "github.com/sirupsen/logrus"
)

// API is the façade used by the HTTP API, the CLI and the services. It
// owns the named engines and records what they do in the journal.
type API struct {
	engines map[string]Engine
	certify map[string]*sync.Mutex // serialises Certify per engine instance
	store   Store                  // optional
	bus     *MessageBus            // optional
	config  Config
}

func NewAPI(engines map[string]Engine, store Store, bus *MessageBus, config Config) *API {
	locks := make(map[string]*sync.Mutex, len(engines))
	for name := range engines {
		locks[name] = &sync.Mutex{}
	}
	return &API{
		engines: engines,
		certify: locks,
		store:   store,
		bus:     bus,
		config:  config,
	}
}

func (a *API) Config() Config {
	return a.config
}

// EngineNames lists the configured engines in name order.
func (a *API) EngineNames() []string {
	names := make([]string, 0, len(a.engines))
	for name := range a.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Engine resolves an engine by name; the empty name is the default engine.
func (a *API) Engine(name string) (Engine, string, error) {
	if name == "" {
		name = a.config.Legalcert.DefaultEngine
	}
	e, ok := a.engines[name]
	if !ok {
		return nil, name, NewErr(NotFound, "no such engine: %q", name)
	}
	return e, name, nil
}

// Certify anchors fingerprint with the named engine and journals the
// resulting transaction.
func (a *API) Certify(ctx context.Context, engineName string, fingerprint []byte) (Certification, error) {
	engine, name, err := a.Engine(engineName)
	if err != nil {
		return Certification{}, err
	}

	mu := a.certify[name]
	mu.Lock()
	start := time.Now()
	txid, err := engine.Certify(ctx, fingerprint)
	mu.Unlock()
	metrics.ObserveCertify(name, err, time.Since(start))
	if err != nil {
		a.bus.Send(CERT_FAILED, map[string]string{"engine": name, "error": err.Error()})
		return Certification{}, err
	}

	now := time.Now().UTC()
	cert := Certification{
		TxID:        txid,
		Engine:      name,
		Fingerprint: hex.EncodeToString(fingerprint),
		Tag:         a.config.EngineTag(name),
		Status:      StatusUnknown,
		Message:     "Broadcast",
		Created:     now,
		Updated:     now,
	}
	if a.store != nil {
		if err := a.store.StoreCertification(cert); err != nil {
			// the transaction is already on its way; report and carry on
			log.Errorf("[!] Certify: cannot journal %s: %v", txid, err)
			a.bus.Send(SYS_ERR, "journal: "+err.Error())
		}
	}
	a.bus.Send(CERT_SUBMITTED, cert, string(txid))
	log.WithFields(log.Fields{"engine": name, "txid": txid}).Info("certification broadcast")
	return cert, nil
}

// CertStatus queries the engine once and records the snapshot.
func (a *API) CertStatus(ctx context.Context, engineName string, txid TxID) (Result, error) {
	engine, name, err := a.Engine(engineName)
	if err != nil {
		return Result{}, err
	}
	res, err := engine.CertStatus(ctx, txid)
	if err != nil {
		metrics.ObserveStatusError(name)
		return Result{}, err
	}
	a.RecordStatus(name, txid, res)
	return res, nil
}

// AwaitConfirmation polls the named engine until txid is CONFIRMED, see
// the package-level AwaitConfirmation. Every snapshot is recorded.
func (a *API) AwaitConfirmation(ctx context.Context, engineName string, txid TxID, opts PollOptions) (Result, error) {
	engine, name, err := a.Engine(engineName)
	if err != nil {
		return Result{}, err
	}
	onStatus := opts.OnStatus
	opts.OnStatus = func(res Result) {
		a.RecordStatus(name, txid, res)
		if onStatus != nil {
			onStatus(res)
		}
	}
	return AwaitConfirmation(ctx, engine, txid, opts)
}

// RecordStatus journals a snapshot for a known certification and emits
// CERT:STATUS (and CERT:CONFIRMED) when it differs from the last one.
func (a *API) RecordStatus(engineName string, txid TxID, res Result) {
	metrics.ObserveStatus(engineName, res.Status.String())
	if a.store == nil {
		return
	}
	prev, err := a.store.GetCertification(txid)
	if err != nil {
		if !IsNotFoundError(err) {
			log.Errorf("[!] RecordStatus: %s: %v", txid, err)
		}
		return
	}
	if prev.Result().Equal(res) {
		return
	}
	if err := a.store.UpdateCertification(txid, res); err != nil {
		log.Errorf("[!] RecordStatus: cannot update %s: %v", txid, err)
		return
	}
	event := map[string]any{"txid": txid, "engine": engineName, "result": res}
	a.bus.Send(CERT_STATUS, event, string(txid))
	if res.Status == StatusConfirmed {
		a.bus.Send(CERT_CONFIRMED, event, string(txid))
	}
}

func (a *API) CheckCert(ctx context.Context, engineName string, data []byte) (bool, error) {
	engine, _, err := a.Engine(engineName)
	if err != nil {
		return false, err
	}
	return engine.CheckCert(ctx, data)
}

func (a *API) Lock(ctx context.Context, engineName string) error {
	engine, name, err := a.Engine(engineName)
	if err != nil {
		return err
	}
	if err := engine.Lock(ctx); err != nil {
		return err
	}
	a.bus.Send(WALLET_LOCKED, map[string]string{"engine": name})
	return nil
}

// Unlock unlocks the named engine's wallet; timeout zero uses the
// configured unlock duration.
func (a *API) Unlock(ctx context.Context, engineName string, password string, timeout time.Duration) (bool, error) {
	engine, name, err := a.Engine(engineName)
	if err != nil {
		return false, err
	}
	if timeout <= 0 {
		timeout = a.config.Engines[name].UnlockTimeout()
	}
	ok, err := engine.Unlock(ctx, password, timeout)
	if err != nil || !ok {
		return ok, err
	}
	a.bus.Send(WALLET_UNLOCKED, map[string]any{"engine": name, "seconds": int64(timeout / time.Second)})
	return true, nil
}

func (a *API) IsLocked(ctx context.Context, engineName string) (bool, error) {
	engine, _, err := a.Engine(engineName)
	if err != nil {
		return false, err
	}
	return engine.IsLocked(ctx)
}

func (a *API) GetCertification(txid TxID) (Certification, error) {
	if a.store == nil {
		return Certification{}, NewErr(NotAvailable, "no certification journal configured")
	}
	return a.store.GetCertification(txid)
}

type ListCertificationsResponse struct {
	Items  []Certification `json:"items"`
	Cursor int             `json:"cursor"`
}

func (a *API) ListCertifications(cursor int, limit int) (ListCertificationsResponse, error) {
	if a.store == nil {
		return ListCertificationsResponse{}, NewErr(NotAvailable, "no certification journal configured")
	}
	items, next, err := a.store.ListCertifications(cursor, limit)
	if err != nil {
		return ListCertificationsResponse{}, err
	}
	if items == nil {
		items = []Certification{} // encoded as '[]' in JSON
	}
	return ListCertificationsResponse{Items: items, Cursor: next}, nil
}

// ListPending returns journalled certifications not yet CONFIRMED.
func (a *API) ListPending() ([]Certification, error) {
	if a.store == nil {
		return nil, nil
	}
	return a.store.ListPending()
}
