package conductor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type testService struct {
	name  string
	rec   *recorder
	fail  error
	ready bool
}

func (s testService) Run(started, stopped chan bool, stop chan context.Context) error {
	if s.fail != nil {
		return s.fail
	}
	s.rec.add("start " + s.name)
	go func() {
		if s.ready {
			started <- true
		}
		<-stop
		s.rec.add("stop " + s.name)
		close(stopped)
	}()
	return nil
}

func TestConductorOrder(t *testing.T) {
	rec := &recorder{}
	c := NewConductor(Noisy())
	c.Service("a", testService{name: "a", rec: rec, ready: true})
	c.Service("b", testService{name: "b", rec: rec, ready: true})
	done := c.Start()

	c.Stop()
	c.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("conductor did not stop")
	}
	events := rec.list()
	require.Len(t, events, 4)
	require.Equal(t, []string{"start a", "start b"}, events[:2])
	require.ElementsMatch(t, []string{"stop a", "stop b"}, events[2:])

	require.Panics(t, func() { c.Service("late", testService{}) })
}

func TestConductorStartFailure(t *testing.T) {
	rec := &recorder{}
	c := NewConductor(Timeouts(50*time.Millisecond, 50*time.Millisecond))
	c.Service("a", testService{name: "a", rec: rec, ready: true})
	c.Service("broken", testService{fail: errors.New("no")})
	c.Service("never", testService{name: "never", rec: rec, ready: true})

	select {
	case <-c.Start():
	case <-time.After(2 * time.Second):
		t.Fatal("conductor did not stop")
	}
	require.Equal(t, []string{"start a", "stop a"}, rec.list())
}

func TestConductorStartTimeout(t *testing.T) {
	rec := &recorder{}
	c := NewConductor(Timeouts(20*time.Millisecond, 50*time.Millisecond))
	c.Service("slow", testService{name: "slow", rec: rec})

	select {
	case <-c.Start():
	case <-time.After(2 * time.Second):
		t.Fatal("conductor did not stop")
	}
	require.Equal(t, []string{"start slow", "stop slow"}, rec.list())
}
