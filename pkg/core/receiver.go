package core

import (
	"context"
	"encoding/hex"
	"fmt"
	"syscall"
	"time"

	pin "github.com/legalpin/legalcert/pkg"
	"github.com/pebbe/zmq4"
	log "github.com/sirupsen/logrus"
)

// BlockReceiver receives hashblock ZMQ notifications from a node and
// forwards the block hash to its listeners. Listeners only use it as a
// hint to poll early: the protocol is not authenticated.
type BlockReceiver struct {
	bus         *pin.MessageBus
	listeners   []chan<- string
	nodeAddress string
}

// Subscribe adds a listener. Sends never block: a full channel misses the
// notification, and the poller's own ticker covers it.
func (z *BlockReceiver) Subscribe(ch chan<- string) {
	z.listeners = append(z.listeners, ch)
}

func NewBlockReceiver(bus *pin.MessageBus, conf pin.EngineConfig) (*BlockReceiver, error) {
	if conf.ZMQPort == 0 {
		return nil, pin.NewErr(pin.BadRequest, "zmq_port is not configured")
	}
	host := conf.RPCHost
	if host == "" {
		host = "localhost"
	}
	return &BlockReceiver{
		bus:         bus,
		listeners:   make([]chan<- string, 0, 10),
		nodeAddress: fmt.Sprintf("tcp://%s:%d", host, conf.ZMQPort),
	}, nil
}

// Implements conductor.Service
func (z *BlockReceiver) Run(started, stopped chan bool, stop chan context.Context) error {
	sock, err := zmq4.NewSocket(zmq4.SUB)
	if err != nil {
		return err
	}
	z.bus.Send(pin.SYS_STARTUP, fmt.Sprintf("ZMQ: connecting to: %s", z.nodeAddress))
	if err := z.subscribe(sock); err != nil {
		sock.Close()
		return err
	}
	go func() {
		started <- true

		for {
			// Handle shutdown
			select {
			case <-stop:
				sock.Close()
				close(stopped)
				return
			default:
				// fall through to zmq recv
			}

			msg, err := sock.RecvMessageBytes(0)
			if err != nil {
				switch err := err.(type) {
				case zmq4.Errno:
					if err == zmq4.Errno(syscall.ETIMEDOUT) || err == zmq4.Errno(syscall.EAGAIN) {
						// receive timeout: loop to check for shutdown
						continue
					}
					z.bus.Send(pin.SYS_ERR, fmt.Sprintf("ZMQ err: %s", err))
					continue
				default:
					log.Errorf("[!] ZMQ: %v", err)
					time.Sleep(time.Second)
					continue
				}
			}
			if len(msg) < 2 {
				continue
			}
			switch tag := string(msg[0]); tag {
			case "hashblock":
				id := hex.EncodeToString(msg[1])
				log.Debugf("ZMQ=> BLOCK id=%s", id)
				z.notify(id)
			default:
				log.Debugf("ZMQ=> %s ??", tag)
			}
		}
	}()
	return nil
}

func (z *BlockReceiver) subscribe(sock *zmq4.Socket) error {
	if err := sock.SetRcvtimeo(2 * time.Second); err != nil {
		return err
	}
	if err := sock.Connect(z.nodeAddress); err != nil {
		return fmt.Errorf("ZMQ: connect %s: %w", z.nodeAddress, err)
	}
	return sock.SetSubscribe("hashblock")
}

func (z *BlockReceiver) notify(blockHash string) {
	for _, ch := range z.listeners {
		select {
		case ch <- blockHash:
		default:
		}
	}
}
