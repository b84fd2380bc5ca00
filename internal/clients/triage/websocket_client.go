package triage

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/triagewatch/triagewatch/internal/backoff"
	"github.com/triagewatch/triagewatch/internal/domain"
	"github.com/triagewatch/triagewatch/internal/events"
)

const dialTimeout = 30 * time.Second

// ConnectionState describes the push channel lifecycle. It is owned
// exclusively by the PushChannel; nothing else mutates it.
type ConnectionState string

const (
	StateConnecting         ConnectionState = "connecting"
	StateOpen               ConnectionState = "open"
	StateClosedPendingRetry ConnectionState = "closed_pending_retry"
)

// MessageSink receives decoded push messages in arrival order.
type MessageSink interface {
	Enqueue(msg domain.PushMessage)
}

// PushChannel owns the one logical live-update connection to the triage
// backend: connect, receive, close, reconnect. The channel is receive-only;
// nothing is ever written after the dial.
type PushChannel struct {
	url  string
	sink MessageSink

	mu         sync.RWMutex
	conn       *websocket.Conn
	connCtx    context.Context
	cancelFunc context.CancelFunc
	state      ConnectionState

	reconnecting bool
	stopChan     chan struct{}
	stopped      bool

	timer    *backoff.Timer
	eventMgr *events.Manager
	log      zerolog.Logger
}

// NewPushChannel creates a push channel client. The backoff timer decides
// reconnect delays; the sink receives every decoded message.
func NewPushChannel(url string, sink MessageSink, timer *backoff.Timer, eventMgr *events.Manager, log zerolog.Logger) *PushChannel {
	return &PushChannel{
		url:      url,
		sink:     sink,
		state:    StateClosedPendingRetry,
		stopChan: make(chan struct{}),
		timer:    timer,
		eventMgr: eventMgr,
		log:      log.With().Str("component", "push_channel").Logger(),
	}
}

// Start establishes the initial connection and begins the read loop.
// A failed initial dial is not fatal: the reconnect loop takes over.
func (pc *PushChannel) Start() error {
	pc.log.Info().Str("url", pc.url).Msg("Starting push channel")

	if err := pc.Connect(); err != nil {
		pc.log.Warn().Err(err).Msg("Initial push connection failed, will retry in background")
		go pc.reconnectLoop()
		return err
	}

	pc.mu.RLock()
	ctx := pc.connCtx
	pc.mu.RUnlock()
	go pc.readMessages(ctx)

	return nil
}

// Stop gracefully shuts down the push channel.
func (pc *PushChannel) Stop() error {
	pc.mu.Lock()
	if pc.stopped {
		pc.mu.Unlock()
		return nil
	}
	pc.stopped = true
	pc.mu.Unlock()

	pc.log.Info().Msg("Stopping push channel")
	close(pc.stopChan)
	return pc.Disconnect()
}

// Connect dials the websocket endpoint. Calling it while the channel is
// already Open or Connecting is a no-op: there is exactly one logical
// connection at a time.
func (pc *PushChannel) Connect() error {
	pc.mu.Lock()
	if pc.state == StateOpen || pc.state == StateConnecting {
		pc.mu.Unlock()
		return nil
	}
	pc.state = StateConnecting
	pc.mu.Unlock()

	dialCtx, dialCancel := context.WithTimeout(context.Background(), dialTimeout)
	defer dialCancel()

	conn, _, err := websocket.Dial(dialCtx, pc.url, nil)
	if err != nil {
		pc.mu.Lock()
		pc.state = StateClosedPendingRetry
		pc.mu.Unlock()
		return err
	}

	// Long-lived context for read operations, cancelled on disconnect
	connCtx, connCancel := context.WithCancel(context.Background())

	pc.mu.Lock()
	pc.conn = conn
	pc.connCtx = connCtx
	pc.cancelFunc = connCancel
	pc.state = StateOpen
	pc.mu.Unlock()

	// Successful open resets the backoff counter to its base value
	pc.timer.Reset()

	if pc.eventMgr != nil {
		pc.eventMgr.Emit(events.PushConnected, "push_channel", map[string]interface{}{
			"url": pc.url,
		})
	}

	pc.log.Info().Msg("Push channel connected")
	return nil
}

// Disconnect closes the websocket connection.
func (pc *PushChannel) Disconnect() error {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.conn == nil {
		return nil
	}

	if pc.cancelFunc != nil {
		pc.cancelFunc()
		pc.cancelFunc = nil
	}

	err := pc.conn.Close(websocket.StatusNormalClosure, "")
	pc.conn = nil
	pc.connCtx = nil
	pc.state = StateClosedPendingRetry

	if err != nil {
		return err
	}
	return nil
}

// State returns the current connection state.
func (pc *PushChannel) State() ConnectionState {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.state
}

// readMessages continuously reads frames until the connection drops.
func (pc *PushChannel) readMessages(ctx context.Context) {
	defer func() {
		pc.markClosed()

		pc.mu.RLock()
		stopped := pc.stopped
		pc.mu.RUnlock()
		if !stopped {
			go pc.reconnectLoop()
		}
	}()

	for {
		select {
		case <-pc.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		pc.mu.RLock()
		conn := pc.conn
		pc.mu.RUnlock()
		if conn == nil {
			return
		}

		msgType, message, err := conn.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				pc.log.Info().Int("status", int(closeStatus)).Msg("Push channel closed normally")
			} else if ctx.Err() != nil {
				pc.log.Debug().Msg("Read cancelled by context")
			} else {
				pc.log.Error().Err(err).Msg("Unexpected push channel read error")
			}
			return
		}

		if msgType != websocket.MessageText {
			pc.log.Debug().Int("type", int(msgType)).Msg("Ignoring non-text frame")
			continue
		}

		// Malformed frames are dropped, never fatal
		var msg domain.PushMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			pc.log.Warn().Err(err).Str("frame", string(message)).Msg("Dropping undecodable push frame")
			continue
		}

		pc.sink.Enqueue(msg)
	}
}

// markClosed records the connection loss and emits the disconnect event.
func (pc *PushChannel) markClosed() {
	pc.mu.Lock()
	wasOpen := pc.state == StateOpen
	pc.state = StateClosedPendingRetry
	pc.mu.Unlock()

	if wasOpen && pc.eventMgr != nil {
		pc.eventMgr.Emit(events.PushDisconnected, "push_channel", map[string]interface{}{
			"url": pc.url,
		})
	}
}

// reconnectLoop retries the connection after the backoff delay.
// There is no attempt cutoff: the channel retries until Stop is called.
// The reconnecting flag guarantees at most one pending reconnect timer,
// even when multiple close events land back to back.
func (pc *PushChannel) reconnectLoop() {
	pc.mu.Lock()
	if pc.reconnecting || pc.stopped {
		pc.mu.Unlock()
		return
	}
	pc.reconnecting = true
	pc.mu.Unlock()

	defer func() {
		pc.mu.Lock()
		pc.reconnecting = false
		pc.mu.Unlock()
	}()

	for {
		select {
		case <-pc.stopChan:
			return
		default:
		}

		delay := pc.timer.Next()
		pc.log.Info().
			Int("attempt", pc.timer.Attempt()).
			Dur("delay", delay).
			Msg("Scheduling push channel reconnect")

		select {
		case <-time.After(delay):
		case <-pc.stopChan:
			return
		}

		if err := pc.Connect(); err != nil {
			pc.log.Error().Err(err).Int("attempt", pc.timer.Attempt()).Msg("Reconnect failed")
			continue
		}

		pc.mu.RLock()
		ctx := pc.connCtx
		pc.mu.RUnlock()
		go pc.readMessages(ctx)
		return
	}
}
