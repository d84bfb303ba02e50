// Package conductor starts services in order and stops them together.
package conductor

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	startupTimeout  time.Duration = time.Duration(5 * time.Second)
	shutdownTimeout time.Duration = time.Duration(5 * time.Second)
)

// Service is started by Run, which must return once the service is set up.
// The service sends on started when ready, then watches stop and closes (or
// sends on) stopped after it has shut down.
type Service interface {
	Run(started, stopped chan bool, stop chan context.Context) error
}

type serviceState struct {
	name     string
	service  Service
	running  bool
	ready    chan bool
	stopped  chan bool
	shutdown chan context.Context
}

type Conductor struct {
	mu           sync.Mutex
	started      bool          // Have we been started yet?
	noisy        bool          // Should we log progress?
	startTimeout time.Duration // How long should we wait for each service to start before we die?
	stopTimeout  time.Duration // How long should we wait for each service to stop before we kill it?
	shutdown     chan bool     // closed when everything has stopped, returned from Start()
	stopOnce     sync.Once
	services     []*serviceState
}

// NewConductor creates a conductor; opts change the default behaviour.
func NewConductor(opts ...Option) *Conductor {
	c := Conductor{
		startTimeout: startupTimeout,
		stopTimeout:  shutdownTimeout,
		shutdown:     make(chan bool),
	}
	for _, optFn := range opts {
		optFn(&c)
	}
	return &c
}

// Service adds a named service, started in order when Start is called.
func (c *Conductor) Service(name string, service Service) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		panic("Cannot call Conductor.Service after Conductor.Start")
	}
	c.services = append(c.services, &serviceState{
		name:     name,
		service:  service,
		ready:    make(chan bool, 1),
		stopped:  make(chan bool, 1),
		shutdown: make(chan context.Context, 1),
	})
}

// Start runs each service in turn and returns a channel closed once all
// services have stopped. A service failing to start stops everything.
func (c *Conductor) Start() chan bool {
	c.mu.Lock()
	c.started = true
	services := c.services
	c.mu.Unlock()

	// one at a time: this gives us service dependency order.
SRV_LOOP:
	for _, srv := range services {
		c.logf("Starting '%s'", srv.name)
		err := srv.service.Run(srv.ready, srv.stopped, srv.shutdown)
		if err != nil {
			log.Errorf("conductor: '%s' exited with: %s", srv.name, err)
			go c.Stop()
			break
		}
		select {
		case <-time.After(c.startTimeout):
			log.Errorf("conductor: timed-out during startup of '%s'", srv.name)
			c.markRunning(srv) // may still come up; ask it to stop
			go c.Stop()
			break SRV_LOOP
		case <-srv.ready:
			c.markRunning(srv)
			c.logf("'%s' ok", srv.name)
		}
	}
	return c.shutdown
}

// Stop asks every running service to shut down within the stop timeout.
// Later calls do nothing.
func (c *Conductor) Stop() {
	c.stopOnce.Do(c.stop)
}

func (c *Conductor) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), c.stopTimeout)
	defer cancel()

	c.mu.Lock()
	var running []*serviceState
	for _, s := range c.services {
		if s.running {
			running = append(running, s)
		}
	}
	c.mu.Unlock()

	wg := sync.WaitGroup{}
	// stop in reverse start order
	for i := len(running) - 1; i >= 0; i-- {
		state := running[i]
		c.logf("Requesting shutdown: %s", state.name)
		state.shutdown <- ctx
		wg.Add(1)
		go func(s *serviceState) {
			defer wg.Done()
			select {
			case <-s.stopped:
				c.logf("Shutdown complete: %s", s.name)
			case <-ctx.Done():
			}
		}(state)
	}

	done := make(chan bool)
	go func() {
		wg.Wait()
		close(done)
	}()

	// wait for either all services to close, or the timeout.
	select {
	case <-done:
		c.logf("All services stopped, goodbye!")
	case <-time.After(c.stopTimeout + time.Second):
		log.Warn("conductor: timeout exceeded waiting for services to stop, shutting down")
	}
	close(c.shutdown)
}

func (c *Conductor) markRunning(s *serviceState) {
	c.mu.Lock()
	s.running = true
	c.mu.Unlock()
}

func (c *Conductor) logf(s string, v ...interface{}) {
	if c.noisy {
		log.Infof(s, v...)
	}
}
