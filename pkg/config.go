package pin

import (
	"time"

	"github.com/jinzhu/configor"
	"github.com/shopspring/decimal"
)

// Engine kinds understood by the engine factory.
const (
	KindUTXO    = "utxo"
	KindAccount = "account"
	KindMock    = "mock"
)

type Config struct {
	Legalcert struct {
		// prefix written before every fingerprint
		Tag string `default:"LEGALPIN:" toml:"tag"`
		// key for which Engines entry the CLI uses when --engine is not given
		DefaultEngine string `default:"bitcoin" toml:"default_engine" env:"LEGALCERT_ENGINE"`
		// seconds between status queries while waiting for confirmation
		PollSeconds int `default:"1" toml:"poll_seconds"`
		// give up waiting after this many seconds (0: wait forever)
		PollTimeoutSeconds int `default:"0" toml:"poll_timeout_seconds"`
	}

	// info for connecting to each chain node, keyed by engine name
	Engines map[string]EngineConfig

	Store struct {
		Driver string `default:"sqlite3" toml:"driver"`
		DBFile string `default:"legalcert.db" toml:"db_file"`
	}

	WebAPI struct {
		AdminBind string `default:"localhost" toml:"admin_bind"`
		AdminPort string `default:"8085" toml:"admin_port"`
		PubBind   string `default:"localhost" toml:"pub_bind"`
		PubPort   string `default:"8086" toml:"pub_port"`
	}

	Loggers   map[string]LoggersConfig
	Callbacks map[string]CallbackConfig
}

type EngineConfig struct {
	Kind    string `toml:"kind"`
	RPCHost string `default:"localhost" toml:"rpc_host"`
	RPCPort int    `toml:"rpc_port"`
	RPCUser string `toml:"rpc_user"`
	RPCPass string `toml:"rpc_pass"`
	// account chains: http(s)://, ws(s):// or an IPC socket path
	URL string `toml:"url"`
	// flat fee per certification on UTXO chains, in coins
	Fee string `default:"0.0001" toml:"fee"`
	// confirmations needed for CONFIRMED (0: backend default)
	Confirmations int64 `toml:"confirmations"`
	// overrides the global tag for this engine
	Tag string `toml:"tag"`
	// signrawtransaction or signrawtransactionwithwallet
	SignMethod string `default:"signrawtransaction" toml:"sign_method"`
	// address used by the signmessage lock probe (first unspent when empty)
	ProbeAddress string `toml:"probe_address"`
	// node ZMQ publisher port for hashblock notifications (0: disabled)
	ZMQPort int `toml:"zmq_port"`
	// printf pattern of a block explorer link for a txid
	ExplorerURL string `toml:"explorer_url"`
	// wallet unlock duration when none is requested
	UnlockSeconds int `default:"60" toml:"unlock_seconds"`
	// account chains: assume-locked or sign
	LockProbe string `default:"assume-locked" toml:"lock_probe"`
}

type LoggersConfig struct {
	Path  string   `toml:"path"`
	Types []string `toml:"types"`
}

type CallbackConfig struct {
	Path       string   `toml:"path"`
	Types      []string `toml:"types"`
	HMACSecret string   `toml:"hmac_secret"`
}

// EngineTag is the tag an engine frames payloads with.
func (c Config) EngineTag(name string) string {
	if e, ok := c.Engines[name]; ok && e.Tag != "" {
		return e.Tag
	}
	if c.Legalcert.Tag != "" {
		return c.Legalcert.Tag
	}
	return DefaultTag
}

// PollOptions converts the configured cadence and deadline.
func (c Config) PollOptions() PollOptions {
	return PollOptions{
		Interval: time.Duration(c.Legalcert.PollSeconds) * time.Second,
		Timeout:  time.Duration(c.Legalcert.PollTimeoutSeconds) * time.Second,
	}
}

// FeeAmount parses the configured fee, DefaultFee when unset.
func (e EngineConfig) FeeAmount() (CoinAmount, error) {
	if e.Fee == "" {
		return DefaultFee, nil
	}
	fee, err := decimal.NewFromString(e.Fee)
	if err != nil {
		return ZeroCoins, NewErr(BadRequest, "invalid fee %q: %v", e.Fee, err)
	}
	if fee.IsNegative() {
		return ZeroCoins, NewErr(BadRequest, "fee cannot be negative: %s", e.Fee)
	}
	return fee, nil
}

// FinalConfirmations returns the configured threshold or the default for
// the engine kind.
func (e EngineConfig) FinalConfirmations() int64 {
	if e.Kind == KindAccount {
		return e.ConfirmationsOr(AccountFinalConfirmations)
	}
	return e.ConfirmationsOr(UTXOFinalConfirmations)
}

// ConfirmationsOr returns the configured threshold, or def when unset.
func (e EngineConfig) ConfirmationsOr(def int64) int64 {
	if e.Confirmations > 0 {
		return e.Confirmations
	}
	return def
}

// UnlockTimeout is the default wallet unlock duration.
func (e EngineConfig) UnlockTimeout() time.Duration {
	if e.UnlockSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(e.UnlockSeconds) * time.Second
}

func LoadConfig(confPath string) (Config, error) {
	c := Config{}
	err := configor.New(&configor.Config{ENVPrefix: "LEGALCERT"}).Load(&c, confPath)
	return c, err
}

// TestConfig is a config with a single mock engine and an in-memory store.
func TestConfig() Config {
	c := Config{}
	configor.Load(&c)
	c.Legalcert.DefaultEngine = "mock"
	c.Engines = map[string]EngineConfig{
		"mock": {Kind: KindMock, Fee: "0.0001", Confirmations: UTXOFinalConfirmations, ExplorerURL: "https://explorer.example/tx/%s"},
	}
	c.Store.DBFile = ":memory:"
	return c
}
