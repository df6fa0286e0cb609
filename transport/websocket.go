// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/starryskadi/snack-sdk/lib/clock"
)

// frame is the wire envelope exchanged with the broadcast hub in both
// directions: {channel, event, payload}. event selects how payload is
// interpreted — "message" for an application message, "join"/"leave"/
// "timeout" for presence, "subscribe"/"unsubscribe" for control frames
// sent host-to-hub.
type frame struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	eventMessage     = "message"
	eventJoin        = "join"
	eventLeave       = "leave"
	eventTimeout     = "timeout"
	eventSubscribe   = "subscribe"
	eventUnsubscribe = "unsubscribe"
	eventPresence    = "presence" // request presence on subscribe
)

// WebSocketPubSubConfig configures a WebSocketPubSub.
type WebSocketPubSubConfig struct {
	// URL is the broadcast hub's websocket endpoint, e.g.
	// "wss://snackager.example.com/hub".
	URL string

	// Header is sent with the initial handshake (e.g. an
	// Authorization header carrying the session's bearer token).
	Header http.Header

	// Clock provides reconnect-backoff timing. Defaults to
	// clock.Real(). Tests inject clock.Fake().
	Clock clock.Clock

	// Logger receives connection lifecycle and publish-failure logs.
	// Defaults to slog.Default().
	Logger *slog.Logger

	// MinBackoff and MaxBackoff bound the reconnect delay, doubling
	// on each consecutive failure. Defaults: 250ms and 30s.
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// WebSocketPubSub is the production PubSub backend: a single
// gorilla/websocket connection to a broadcast hub, reconnecting with
// exponential backoff on drop.
type WebSocketPubSub struct {
	url        string
	header     http.Header
	clock      clock.Clock
	logger     *slog.Logger
	minBackoff time.Duration
	maxBackoff time.Duration

	writeMu sync.Mutex
	conn    *websocket.Conn
	dialer  *websocket.Dialer

	subscriptions map[string]bool // channel -> withPresence

	onMessage  func(channel string, raw json.RawMessage)
	onPresence func(channel string, event PresenceEvent)
	onStatus   func(StatusEvent)

	ctx    context.Context
	cancel context.CancelFunc
	closed chan struct{}
}

// NewWebSocketPubSub creates a WebSocketPubSub and starts its
// connect/reconnect loop in the background. The returned value is
// usable immediately — a Subscribe call made before the first
// connection succeeds returns a not-connected error but is still
// recorded, and the whole subscription set is sent once connected;
// Publish before any connection exists returns an error rather than
// blocking.
func NewWebSocketPubSub(ctx context.Context, config WebSocketPubSubConfig) *WebSocketPubSub {
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	minBackoff := config.MinBackoff
	if minBackoff <= 0 {
		minBackoff = 250 * time.Millisecond
	}
	maxBackoff := config.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}

	runCtx, cancel := context.WithCancel(ctx)
	ws := &WebSocketPubSub{
		url:           config.URL,
		header:        config.Header,
		clock:         clk,
		logger:        logger,
		minBackoff:    minBackoff,
		maxBackoff:    maxBackoff,
		dialer:        websocket.DefaultDialer,
		subscriptions: make(map[string]bool),
		ctx:           runCtx,
		cancel:        cancel,
		closed:        make(chan struct{}),
	}
	go ws.run()
	return ws
}

// Close stops the reconnect loop and closes the current connection,
// if any.
func (ws *WebSocketPubSub) Close() {
	ws.cancel()
	<-ws.closed
}

func (ws *WebSocketPubSub) Subscribe(ctx context.Context, channel string, withPresence bool) error {
	if already, ok := ws.subscriptions[channel]; ok && already == withPresence {
		return nil
	}
	ws.subscriptions[channel] = withPresence
	event := eventSubscribe
	if withPresence {
		event = eventPresence
	}
	return ws.send(frame{Channel: channel, Event: event})
}

func (ws *WebSocketPubSub) Unsubscribe(channel string) error {
	if _, ok := ws.subscriptions[channel]; !ok {
		return nil
	}
	delete(ws.subscriptions, channel)
	return ws.send(frame{Channel: channel, Event: eventUnsubscribe})
}

func (ws *WebSocketPubSub) Publish(ctx context.Context, channel string, message any) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("transport: encoding publish payload: %w", err)
	}
	return ws.send(frame{Channel: channel, Event: eventMessage, Payload: payload})
}

func (ws *WebSocketPubSub) OnMessage(f func(channel string, raw json.RawMessage))  { ws.onMessage = f }
func (ws *WebSocketPubSub) OnPresence(f func(channel string, event PresenceEvent)) { ws.onPresence = f }
func (ws *WebSocketPubSub) OnStatus(f func(StatusEvent))                           { ws.onStatus = f }

func (ws *WebSocketPubSub) CloseIdleConnections() {
	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()
	if ws.conn != nil {
		ws.conn.Close()
		ws.conn = nil
	}
}

func (ws *WebSocketPubSub) send(f frame) error {
	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()
	if ws.conn == nil {
		return fmt.Errorf("transport: not connected")
	}
	if err := ws.conn.WriteJSON(f); err != nil {
		return fmt.Errorf("transport: publish failed: %w", err)
	}
	return nil
}

// run owns the connect/read/reconnect loop for the lifetime of ws.
func (ws *WebSocketPubSub) run() {
	defer close(ws.closed)

	backoff := ws.minBackoff
	for {
		conn, _, err := ws.dialer.DialContext(ws.ctx, ws.url, ws.header)
		if err != nil {
			ws.logger.Debug("transport: dial failed", "error", err, "backoff", backoff)
			select {
			case <-ws.ctx.Done():
				return
			case <-ws.clock.After(backoff):
			}
			backoff = nextBackoff(backoff, ws.maxBackoff)
			continue
		}

		ws.writeMu.Lock()
		ws.conn = conn
		ws.writeMu.Unlock()
		stopCloseOnCancel := context.AfterFunc(ws.ctx, func() { conn.Close() })

		if backoff > ws.minBackoff {
			ws.notifyStatus(StatusReconnected)
		} else {
			ws.notifyStatus(StatusUp)
		}
		ws.resubscribeAll()
		backoff = ws.minBackoff

		ws.readLoop(conn)
		stopCloseOnCancel()

		ws.writeMu.Lock()
		if ws.conn == conn {
			ws.conn = nil
		}
		ws.writeMu.Unlock()
		conn.Close()

		if ws.ctx.Err() != nil {
			return
		}
		ws.notifyStatus(StatusDown)

		select {
		case <-ws.ctx.Done():
			return
		case <-ws.clock.After(backoff):
		}
		backoff = nextBackoff(backoff, ws.maxBackoff)
	}
}

func (ws *WebSocketPubSub) readLoop(conn *websocket.Conn) {
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		switch f.Event {
		case eventMessage:
			if ws.onMessage != nil {
				ws.onMessage(f.Channel, f.Payload)
			}
		case eventJoin, eventLeave, eventTimeout:
			if ws.onPresence == nil {
				continue
			}
			var identifier string
			_ = json.Unmarshal(f.Payload, &identifier)
			ws.onPresence(f.Channel, PresenceEvent{Kind: PresenceKind(f.Event), Identifier: identifier})
		}
	}
}

func (ws *WebSocketPubSub) resubscribeAll() {
	for channel, withPresence := range ws.subscriptions {
		event := eventSubscribe
		if withPresence {
			event = eventPresence
		}
		_ = ws.send(frame{Channel: channel, Event: event})
	}
}

func (ws *WebSocketPubSub) notifyStatus(kind StatusKind) {
	if ws.onStatus != nil {
		ws.onStatus(StatusEvent{Kind: kind})
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}
