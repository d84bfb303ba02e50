package conductor

import (
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Option changes a Conductor's default behaviour.
type Option func(*Conductor)

// Timeouts bounds how long each service may take to start, and how long
// the whole shutdown may take. Zero keeps the default.
func Timeouts(start, stop time.Duration) Option {
	return func(c *Conductor) {
		if start > 0 {
			c.startTimeout = start
		}
		if stop > 0 {
			c.stopTimeout = stop
		}
	}
}

// Noisy logs service start and stop progress at info level.
func Noisy() Option {
	return func(c *Conductor) {
		c.noisy = true
	}
}

// HookSignals stops the Conductor when one of sigs arrives (SIGTERM and
// SIGINT when none are given). A second signal during shutdown exits.
func HookSignals(sigs ...os.Signal) Option {
	if len(sigs) == 0 {
		sigs = []os.Signal{syscall.SIGTERM, syscall.SIGINT}
	}
	return func(c *Conductor) {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, sigs...)
		go func() {
			defer signal.Stop(sigCh)
			caught := 0
			for {
				select {
				case sig := <-sigCh:
					caught++
					if caught > 1 {
						c.logf("Caught %v again, exiting", sig)
						os.Exit(1)
					}
					c.logf("Caught %v signal, shutting down", sig)
					go c.Stop()
				case <-c.shutdown:
					return
				}
			}
		}()
	}
}
