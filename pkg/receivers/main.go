package receivers

import (
	pin "github.com/legalpin/legalcert/pkg"
	"github.com/legalpin/legalcert/pkg/conductor"
)

// Sets up standard receivers.
func SetUpReceivers(cond *conductor.Conductor, bus *pin.MessageBus, conf pin.Config) {
	// Set up configured loggers
	SetupLoggers(cond, bus, conf)

	// Set up configured Callbacks
	SetupCallbacks(cond, bus, conf)
}
