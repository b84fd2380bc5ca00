// Package dispatch routes decoded push messages to typed handlers.
package dispatch

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/triagewatch/triagewatch/internal/domain"
)

const defaultMailboxSize = 100

// Handlers holds the typed callbacks for each push kind. Nil callbacks
// are skipped.
type Handlers struct {
	OnNewAssessment func(domain.AssessmentEvent)
	OnSystemAlert   func(domain.AlertRecord)
	OnStatsUpdate   func(domain.StatsPatch)
	OnModelUpdate   func(domain.ModelUpdate)
}

// Dispatcher consumes push messages through a bounded FIFO mailbox and
// routes each to exactly one handler. Processing is strictly in arrival
// order: downstream counters are incremented relative to prior state, so
// messages are never reordered or batched.
type Dispatcher struct {
	mailbox  chan domain.PushMessage
	handlers Handlers
	log      zerolog.Logger

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

// New creates a dispatcher with the given handlers. A non-positive buffer
// falls back to the default mailbox size.
func New(handlers Handlers, buffer int, log zerolog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = defaultMailboxSize
	}
	return &Dispatcher{
		mailbox:  make(chan domain.PushMessage, buffer),
		handlers: handlers,
		log:      log.With().Str("component", "dispatcher").Logger(),
		done:     make(chan struct{}),
	}
}

// Start launches the run loop.
func (d *Dispatcher) Start() {
	go d.run()
}

// Stop closes the mailbox; queued messages are still drained before the
// run loop exits.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.mailbox)
	d.mu.Unlock()

	<-d.done
}

// Enqueue adds a message to the mailbox. The send blocks when the mailbox
// is full: backpressure on the read loop is preferable to dropping deltas
// that counters depend on. Messages arriving after Stop are discarded.
// The send happens under the mutex so Stop cannot close the mailbox
// between the stopped check and the send.
func (d *Dispatcher) Enqueue(msg domain.PushMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.mailbox <- msg
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for msg := range d.mailbox {
		d.Dispatch(msg)
	}
}

// Dispatch routes one message synchronously. Exposed so the run loop and
// tests share the same path.
func (d *Dispatcher) Dispatch(msg domain.PushMessage) {
	switch msg.Type {
	case domain.PushNewAssessment:
		var payload domain.AssessmentEvent
		if !d.decode(msg, &payload) {
			return
		}
		if d.handlers.OnNewAssessment != nil {
			d.handlers.OnNewAssessment(payload)
		}

	case domain.PushSystemAlert:
		var payload domain.AlertRecord
		if !d.decode(msg, &payload) {
			return
		}
		if d.handlers.OnSystemAlert != nil {
			d.handlers.OnSystemAlert(payload)
		}

	case domain.PushStatsUpdate:
		var payload domain.StatsPatch
		if !d.decode(msg, &payload) {
			return
		}
		if d.handlers.OnStatsUpdate != nil {
			d.handlers.OnStatsUpdate(payload)
		}

	case domain.PushModelUpdate:
		var payload domain.ModelUpdate
		if !d.decode(msg, &payload) {
			return
		}
		if d.handlers.OnModelUpdate != nil {
			d.handlers.OnModelUpdate(payload)
		}

	default:
		// Forward-compatible no-op, not an error
		d.log.Debug().Str("kind", string(msg.Type)).Msg("Ignoring unknown push kind")
	}
}

// decode unmarshals the payload; a malformed payload drops the message.
func (d *Dispatcher) decode(msg domain.PushMessage, target any) bool {
	if err := json.Unmarshal(msg.Data, target); err != nil {
		d.log.Warn().Err(err).Str("kind", string(msg.Type)).Msg("Dropping push message with malformed payload")
		return false
	}
	return true
}
