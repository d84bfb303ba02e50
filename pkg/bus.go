package pin

/*
The message subsystem gives event-based access to certification progress,
for integration purposes.

A simple internal 'message bus' is passed around as a singleton, with an
internal goroutine and a 'Send' method for publishing messages.

Outbound destinations are created in config and route these messages to
external services (HTTP callbacks, log-files). They are managed by
MessageSubscribers, registered with the bus via their own channels along
with the list of EventTypes they want to receive.
*/

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"sync"

	log "github.com/sirupsen/logrus"
)

const busBacklog = 1000

// MessageSubscribers are things that subscribe to the bus and handle
// messages, ie: http callbacks, log files, the confirmer.
type MessageSubscriber interface {
	GetChan() chan Message
}

// Created by the bus, wraps message sent with Send
type Message struct {
	EventType EventType       `json:"-"`
	Type      string          `json:"type"`
	Event     string          `json:"event"`
	Message   json.RawMessage `json:"message"`
	ID        string          `json:"id"`
}

type Subscription struct {
	dest  MessageSubscriber
	types []EventType
}

func (s *Subscription) wants(t EventType) bool {
	for _, want := range s.types {
		if want.Type() == EVENT_ALL("ALL").Type() || want.Type() == t.Type() {
			return true
		}
	}
	return false
}

type MessageBus struct {
	mu        sync.Mutex
	receivers map[*Subscription]bool
	inbound   chan Message
}

func NewMessageBus() *MessageBus {
	return &MessageBus{
		receivers: make(map[*Subscription]bool),
		inbound:   make(chan Message, busBacklog),
	}
}

// Send a message to the bus with a specific EventType.
// msg can be anything JSON serialisable. When the backlog is full the
// message is dropped rather than blocking the caller.
func (b *MessageBus) Send(t EventType, msg any, msgID ...string) error {
	if b == nil {
		return nil
	}
	j, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	id := ""
	if len(msgID) == 0 {
		id = generateID()
	} else {
		id = msgID[0]
	}
	m := Message{EventType: t, Type: t.Type(), Event: eventName(t), Message: j, ID: id}
	select {
	case b.inbound <- m:
	default:
		log.Warnf("MessageBus: backlog full, dropping %s:%s (%s)", m.Type, m.Event, id)
	}
	return nil
}

func (b *MessageBus) Register(m MessageSubscriber, types ...EventType) *Subscription {
	sub := &Subscription{m, types}
	b.mu.Lock()
	b.receivers[sub] = true
	b.mu.Unlock()
	return sub
}

func (b *MessageBus) Unregister(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.receivers, sub)
}

func (b *MessageBus) dispatch(message Message) {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.receivers))
	for sub := range b.receivers {
		if sub.wants(message.EventType) {
			subs = append(subs, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.dest.GetChan() <- message:
		default:
			// if we are unable to send, cancel the sub
			b.Unregister(sub)
			b.Send(SYS_ERR, "receiver failed to handle msg, closing")
		}
	}
}

// Implements conductor.Service
func (b *MessageBus) Run(started, stopped chan bool, stop chan context.Context) error {
	go func() {
		started <- true
		for {
			select {
			case <-stop:
				stopped <- true
				return
			case message := <-b.inbound:
				b.dispatch(message)
			}
		}
	}()
	return nil
}

// create a short random ID for msgs that have none
func generateID() string {
	bytes := make([]byte, 4)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
