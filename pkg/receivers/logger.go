package receivers

import (
	"context"
	"fmt"

	pin "github.com/legalpin/legalcert/pkg"
	"github.com/legalpin/legalcert/pkg/conductor"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type MessageLogger struct {
	// MessageLogger receives pin.Message via Rec
	Rec chan pin.Message
	// and writes them as JSON lines via Log
	Log *log.Logger
}

// Implements pin.MessageSubscriber
func (l MessageLogger) GetChan() chan pin.Message {
	return l.Rec
}

// Implements conductor.Service
func (l MessageLogger) Run(started, stopped chan bool, stop chan context.Context) error {
	go func() {
		started <- true
		for {
			select {
			// handle stopping the service
			case <-stop:
				close(stopped)
				return
			case msg := <-l.Rec:
				l.Log.WithFields(log.Fields{
					"type":  msg.Type,
					"event": msg.Event,
					"id":    msg.ID,
				}).Info(string(msg.Message))
			}
		}
	}()
	return nil
}

func NewMessageLogger(path string) MessageLogger {
	logger := log.New()
	logger.SetFormatter(&log.JSONFormatter{})
	logger.SetOutput(&lumberjack.Logger{
		Filename: path,
		Compress: true,
	})
	return MessageLogger{
		Rec: make(chan pin.Message, 1000),
		Log: logger,
	}
}

// Reads config and sets up any configured loggers
func SetupLoggers(cond *conductor.Conductor, bus *pin.MessageBus, conf pin.Config) {
	for name, c := range conf.Loggers {
		l := NewMessageLogger(c.Path)
		cond.Service(fmt.Sprintf("Logger %s", c.Path), l)
		bus.Register(l, eventTypes("Logger "+name, c.Types)...)
	}
}

// eventTypes resolves configured category names, skipping unknown ones.
func eventTypes(owner string, names []string) []pin.EventType {
	types := []pin.EventType{}
	for _, t := range names {
		x, ok := pin.LookupEventType(t)
		if !ok {
			log.Warnf("%s: ignoring invalid message type: %s", owner, t)
			continue
		}
		types = append(types, x)
	}
	return types
}
