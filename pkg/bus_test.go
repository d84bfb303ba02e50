package pin

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type chanSubscriber chan Message

func (c chanSubscriber) GetChan() chan Message {
	return c
}

func runBus(t *testing.T) (*MessageBus, func()) {
	bus := NewMessageBus()
	started := make(chan bool, 1)
	stopped := make(chan bool, 1)
	stop := make(chan context.Context, 1)
	require.NoError(t, bus.Run(started, stopped, stop))
	<-started
	return bus, func() {
		stop <- context.Background()
		<-stopped
	}
}

func receive(t *testing.T, ch chan Message) Message {
	select {
	case m := <-ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func TestMessageBusRouting(t *testing.T) {
	bus, stop := runBus(t)
	defer stop()

	certs := make(chanSubscriber, 10)
	all := make(chanSubscriber, 10)
	bus.Register(certs, CERT_SUBMITTED)
	bus.Register(all, EVENT_ALL("ALL"))

	require.NoError(t, bus.Send(WALLET_LOCKED, map[string]string{"engine": "btc"}))
	require.NoError(t, bus.Send(CERT_CONFIRMED, map[string]string{"txid": "ab"}, "ab"))

	m := receive(t, all)
	require.Equal(t, "WALLET", m.Type)
	require.Equal(t, "LOCKED", m.Event)
	require.Len(t, m.ID, 8)

	m = receive(t, all)
	require.Equal(t, "CONFIRMED", m.Event)

	// category match: CERT_SUBMITTED subscribes to every CERT event
	m = receive(t, certs)
	require.Equal(t, "CERT", m.Type)
	require.Equal(t, "ab", m.ID)
	var body map[string]string
	require.NoError(t, json.Unmarshal(m.Message, &body))
	require.Equal(t, "ab", body["txid"])
	require.Empty(t, certs)
}

func TestMessageBusUnregister(t *testing.T) {
	bus, stop := runBus(t)
	defer stop()

	ch := make(chanSubscriber, 10)
	sub := bus.Register(ch, EVENT_SYS("SYS"))
	bus.Unregister(sub)
	bus.Send(SYS_MSG, "hello")
	bus.Send(SYS_MSG, "again")
	time.Sleep(20 * time.Millisecond)
	require.Empty(t, ch)
}

func TestNilBusSend(t *testing.T) {
	var bus *MessageBus
	require.NoError(t, bus.Send(SYS_MSG, "ignored"))
}

func TestLookupEventType(t *testing.T) {
	e, ok := LookupEventType("CERT")
	require.True(t, ok)
	require.Equal(t, "CERT", e.Type())
	_, ok = LookupEventType("INVOICE")
	require.False(t, ok)
}
