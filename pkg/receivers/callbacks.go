package receivers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	pin "github.com/legalpin/legalcert/pkg"
	"github.com/legalpin/legalcert/pkg/conductor"
	log "github.com/sirupsen/logrus"
)

const (
	SignatureHeader = "X-Legalcert-Signature"
	TimestampHeader = "X-Legalcert-Timestamp"
)

func NewCallbackSender(config pin.CallbackConfig, bus *pin.MessageBus) CallbackSender {
	return CallbackSender{
		Rec:          make(chan pin.Message, 1000),
		Path:         config.Path,
		HMACSecret:   config.HMACSecret,
		Bus:          bus,
		Client:       &http.Client{Timeout: 30 * time.Second},
		InitialDelay: 1 * time.Second,
		MaxDelay:     32 * time.Second,
		MaxRetries:   6,
	}
}

type CallbackSender struct {
	// incomming msgs
	Rec          chan pin.Message
	Path         string
	HMACSecret   string
	Bus          *pin.MessageBus
	Client       *http.Client
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxRetries   int
}

// Implements pin.MessageSubscriber
func (s CallbackSender) GetChan() chan pin.Message {
	return s.Rec
}

// Implements conductor.Service
func (s CallbackSender) Run(started, stopped chan bool, stop chan context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		started <- true
		for {
			select {
			// handle stopping the service
			case <-stop:
				cancel()
				close(stopped)
				return
			case msg := <-s.Rec:
				go s.deliver(ctx, msg)
			}
		}
	}()
	return nil
}

// deliver posts msg and reports a failure on the bus. Failures to deliver
// SYS messages are only logged, so a callback subscribed to SYS cannot
// feed on its own errors.
func (s CallbackSender) deliver(ctx context.Context, msg pin.Message) {
	err := s.postWithRetry(ctx, msg)
	if err == nil || ctx.Err() != nil {
		return
	}
	log.Errorf("CallbackSender: %s: %v", s.Path, err)
	if msg.Type == pin.SYS_ERR.Type() {
		return
	}
	s.Bus.Send(pin.SYS_ERR, fmt.Sprintf("CallbackSender: %s: %v", s.Path, err))
}

// Reads config and sets up any configured callbacks
func SetupCallbacks(cond *conductor.Conductor, bus *pin.MessageBus, conf pin.Config) {
	for name, c := range conf.Callbacks {
		s := NewCallbackSender(c, bus)
		cond.Service(fmt.Sprintf("Callback sender for: %s", c.Path), s)
		bus.Register(s, eventTypes("Callback "+name, c.Types)...)
	}
}

func generateSha256HMAC(timestamp string, payload []byte, secret string) string {
	if secret == "" {
		return ""
	}

	dataToSign := []byte(fmt.Sprintf("%s.%s", timestamp, string(payload)))
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(dataToSign)

	return hex.EncodeToString(h.Sum(nil))
}

// postWithRetry delivers msg, backing off exponentially between attempts.
func (s CallbackSender) postWithRetry(ctx context.Context, msg pin.Message) error {
	objJSON, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize message to JSON: %v", err)
	}

	delay := s.InitialDelay
	for attempt := 0; ; attempt++ {
		err = s.post(ctx, objJSON)
		if err == nil {
			log.Debugf("CallbackSender: delivered %s to %s", msg.ID, s.Path)
			return nil
		}
		if attempt >= s.MaxRetries {
			return fmt.Errorf("request failed after %d attempts, last error: %v", attempt+1, err)
		}
		log.Warnf("CallbackSender: request failed (attempt %d/%d). Retrying in %v. Error: %v", attempt+1, s.MaxRetries+1, delay, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		// Increase delay exponentially, with a maximum limit
		delay *= 2
		if delay > s.MaxDelay {
			delay = s.MaxDelay
		}
	}
}

func (s CallbackSender) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, "POST", s.Path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.HMACSecret != "" {
		timestampStr := fmt.Sprintf("%d", time.Now().Unix())
		signature := generateSha256HMAC(timestampStr, body, s.HMACSecret)
		req.Header.Set(SignatureHeader, fmt.Sprintf("sha256=%s", signature))
		req.Header.Set(TimestampHeader, timestampStr)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("status %s", resp.Status)
	}
	return nil
}
