package pin

import "fmt"

// Interface for any event
type EventType interface {
	Type() string
}

// slice of all msg types for config funcs lookup
var EVENT_TYPES []EventType = []EventType{EVENT_ALL("ALL"),
	EVENT_SYS("SYS"),
	EVENT_CERT("CERT"),
	EVENT_WALLET("WALLET")}

// LookupEventType finds the category named by a config entry.
func LookupEventType(name string) (EventType, bool) {
	for _, x := range EVENT_TYPES {
		if x.Type() == name {
			return x, true
		}
	}
	return nil, false
}

func eventName(t EventType) string {
	return fmt.Sprintf("%v", t)
}

// Special category, do not use directly, represents *
type EVENT_ALL string

func (e EVENT_ALL) Type() string {
	return "ALL"
}

// System Events
type EVENT_SYS string

func (e EVENT_SYS) Type() string {
	return "SYS"
}

const (
	SYS_STARTUP EVENT_SYS = "STARTUP"
	SYS_ERR     EVENT_SYS = "ERR"
	SYS_MSG     EVENT_SYS = "MSG"
)

// Certification Events
type EVENT_CERT string

func (e EVENT_CERT) Type() string {
	return "CERT"
}

const (
	CERT_SUBMITTED EVENT_CERT = "SUBMITTED"
	CERT_STATUS    EVENT_CERT = "STATUS"
	CERT_CONFIRMED EVENT_CERT = "CONFIRMED"
	CERT_FAILED    EVENT_CERT = "FAILED"
)

// Wallet Events
type EVENT_WALLET string

func (e EVENT_WALLET) Type() string {
	return "WALLET"
}

const (
	WALLET_LOCKED   EVENT_WALLET = "LOCKED"
	WALLET_UNLOCKED EVENT_WALLET = "UNLOCKED"
)
