package main

import (
	"context"

	pin "github.com/legalpin/legalcert/pkg"
	"github.com/legalpin/legalcert/pkg/conductor"
	"github.com/legalpin/legalcert/pkg/receivers"
	"github.com/legalpin/legalcert/pkg/services"
	"github.com/legalpin/legalcert/pkg/store"
	"github.com/legalpin/legalcert/pkg/webapi"
	log "github.com/sirupsen/logrus"
)

func Server(conf pin.Config) {

	c := conductor.NewConductor(
		conductor.HookSignals(),
		conductor.Noisy(),
	)
	if err := Serve(c, conf); err != nil {
		log.Fatalf("Server: %v", err)
	}
}

// openStore is swapped out by tests.
var openStore = NewStore

// Serve adds every service to c, runs until c has stopped, then closes
// the journal.
func Serve(c *conductor.Conductor, conf pin.Config) error {

	// Start the MessageBus Service
	bus := pin.NewMessageBus()
	c.Service("MessageBus", bus)

	// Set up all configured receivers
	receivers.SetUpReceivers(c, bus, conf)

	// Set up the chain engines
	engines, err := NewEngines(context.Background(), conf)
	if err != nil {
		return err
	}

	// Setup a Store
	journal, err := openStore(conf)
	if err != nil {
		return err
	}
	defer journal.Close()

	api := pin.NewAPI(engines, journal, bus, conf)

	// Start internal services
	services.StartServices(c, bus, api, conf)

	// Start the Certification API
	p, err := webapi.NewWebAPI(conf, api)
	if err != nil {
		return err
	}
	c.Service("Certification API", p)

	<-c.Start()
	return nil
}

// NewStore opens the configured certification journal.
func NewStore(conf pin.Config) (pin.Store, error) {
	switch conf.Store.Driver {
	case "postgres":
		return store.NewPostgresStore(conf.Store.DBFile)
	case "sqlite3", "":
		return store.NewSQLiteStore(conf.Store.DBFile)
	default:
		return nil, pin.NewErr(pin.BadRequest, "unknown store driver %q", conf.Store.Driver)
	}
}
