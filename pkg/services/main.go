package services

import (
	pin "github.com/legalpin/legalcert/pkg"
	"github.com/legalpin/legalcert/pkg/conductor"
	"github.com/legalpin/legalcert/pkg/core"
	log "github.com/sirupsen/logrus"
)

// StartServices adds the Confirmer, and a ZMQ block receiver for every
// engine that configures one, to the conductor.
func StartServices(cond *conductor.Conductor, bus *pin.MessageBus, api *pin.API, conf pin.Config) *Confirmer {
	// Confirmer sends CERT:STATUS and CERT:CONFIRMED events.
	confirmer := NewConfirmer(api, conf.PollOptions())
	bus.Register(confirmer, pin.CERT_SUBMITTED)

	for _, name := range api.EngineNames() {
		engineConf := conf.Engines[name]
		if engineConf.ZMQPort == 0 {
			continue
		}
		receiver, err := core.NewBlockReceiver(bus, engineConf)
		if err != nil {
			log.Errorf("StartServices: block receiver for %s: %v", name, err)
			continue
		}
		receiver.Subscribe(confirmer.BlockChannel(name))
		cond.Service("BlockReceiver-"+name, receiver)
	}

	cond.Service("Confirmer", confirmer)
	return confirmer
}
