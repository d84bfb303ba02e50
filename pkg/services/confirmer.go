package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	pin "github.com/legalpin/legalcert/pkg"
	"github.com/legalpin/legalcert/pkg/metrics"
	log "github.com/sirupsen/logrus"
)

const (
	RETRY_DELAY = 5 * time.Second // after a failed status query or journal read
)

// Confirmer follows every journalled certification until it is CONFIRMED.
// On start it resumes what the journal lists as pending, then picks up new
// certifications from CERT:SUBMITTED messages. Block notifications wake
// the pollers of the engine they come from.
type Confirmer struct {
	api    *pin.API
	opts   pin.PollOptions
	rec    chan pin.Message
	retry  time.Duration
	mu     sync.Mutex
	watch  map[pin.TxID]*watched
	blocks map[string]chan string
	wg     sync.WaitGroup
}

type watched struct {
	engine string
	wake   chan struct{}
}

func NewConfirmer(api *pin.API, opts pin.PollOptions) *Confirmer {
	return &Confirmer{
		api:    api,
		opts:   opts,
		rec:    make(chan pin.Message, 100),
		retry:  RETRY_DELAY,
		watch:  make(map[pin.TxID]*watched),
		blocks: make(map[string]chan string),
	}
}

// Implements pin.MessageSubscriber
func (c *Confirmer) GetChan() chan pin.Message {
	return c.rec
}

// BlockChannel returns the channel new block hashes for engine are sent
// on. Call it before Run.
func (c *Confirmer) BlockChannel(engine string) chan<- string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.blocks[engine]
	if !ok {
		ch = make(chan string, 10)
		c.blocks[engine] = ch
	}
	return ch
}

// Watching returns the number of transactions being followed.
func (c *Confirmer) Watching() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.watch)
}

// Implements conductor.Service
func (c *Confirmer) Run(started, stopped chan bool, stop chan context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	for engine, ch := range c.blocks {
		go c.forwardBlocks(ctx, engine, ch)
	}
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.resume(ctx)
	}()

	go func() {
		started <- true
		for {
			select {
			case <-stop:
				cancel()
				c.wg.Wait()
				close(stopped)
				return
			case msg := <-c.rec:
				if msg.EventType != pin.CERT_SUBMITTED {
					continue
				}
				var cert pin.Certification
				if err := json.Unmarshal(msg.Message, &cert); err != nil {
					log.Errorf("Confirmer: bad %s message: %v", msg.Event, err)
					continue
				}
				c.follow(ctx, cert.Engine, cert.TxID)
			}
		}
	}()
	return nil
}

// resume follows everything the journal lists as pending.
func (c *Confirmer) resume(ctx context.Context) {
	for {
		pending, err := c.api.ListPending()
		if err == nil {
			for _, cert := range pending {
				c.follow(ctx, cert.Engine, cert.TxID)
			}
			if len(pending) > 0 {
				log.Infof("Confirmer: resumed %d pending certifications", len(pending))
			}
			return
		}
		log.Errorf("Confirmer: ListPending: %v", err)
		if !c.sleep(ctx, c.retry) {
			return
		}
	}
}

func (c *Confirmer) forwardBlocks(ctx context.Context, engine string, blocks chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case hash := <-blocks:
			log.Debugf("Confirmer: block %s on %s", hash, engine)
			c.wakeEngine(engine)
		}
	}
}

func (c *Confirmer) wakeEngine(engine string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range c.watch {
		if w.engine != engine {
			continue
		}
		select {
		case w.wake <- struct{}{}:
		default:
		}
	}
}

// follow starts a poller for txid unless one is already running.
func (c *Confirmer) follow(ctx context.Context, engine string, txid pin.TxID) {
	c.mu.Lock()
	if _, ok := c.watch[txid]; ok {
		c.mu.Unlock()
		return
	}
	w := &watched{engine: engine, wake: make(chan struct{}, 1)}
	c.watch[txid] = w
	metrics.SetWatching(len(c.watch))
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.unfollow(txid)
		c.await(ctx, w, txid)
	}()
}

func (c *Confirmer) unfollow(txid pin.TxID) {
	c.mu.Lock()
	delete(c.watch, txid)
	metrics.SetWatching(len(c.watch))
	c.mu.Unlock()
}

func (c *Confirmer) await(ctx context.Context, w *watched, txid pin.TxID) {
	opts := c.opts
	opts.Wake = w.wake
	for {
		res, err := c.api.AwaitConfirmation(ctx, w.engine, txid, opts)
		if err == nil {
			log.WithFields(log.Fields{"engine": w.engine, "txid": txid}).Info(res.Message)
			return
		}
		if ctx.Err() != nil {
			return // shutting down
		}
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warnf("Confirmer: gave up waiting for %s on %s: %s", txid, w.engine, res.Message)
			return
		}
		if pin.IsNotFoundError(err) {
			// engine no longer configured
			log.Errorf("Confirmer: %s: %v", txid, err)
			return
		}
		log.Warnf("Confirmer: %s on %s: %v (retrying)", txid, w.engine, err)
		if !c.sleep(ctx, c.retry) {
			return
		}
	}
}

func (c *Confirmer) sleep(ctx context.Context, delay time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}
