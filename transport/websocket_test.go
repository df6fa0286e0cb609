// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/starryskadi/snack-sdk/lib/clock"
)

// newEchoHub starts an httptest server that upgrades to a websocket
// connection and echoes every "message" frame it receives back to
// the same connection, simulating a
// single-client broadcast hub for tests.
func newEchoHub(t *testing.T) (*httptest.Server, string) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			if f.Event == eventMessage {
				conn.WriteJSON(frame{Channel: f.Channel, Event: eventMessage, Payload: f.Payload})
			}
		}
	}))
	t.Cleanup(server.Close)
	return server, "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWebSocketPubSubPublishAndReceive(t *testing.T) {
	_, wsURL := newEchoHub(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ws := NewWebSocketPubSub(ctx, WebSocketPubSubConfig{URL: wsURL})
	defer ws.Close()

	received := make(chan json.RawMessage, 1)
	ws.OnMessage(func(channel string, raw json.RawMessage) {
		received <- raw
	})

	deadline := time.Now().Add(2 * time.Second)
	var published bool
	for time.Now().Before(deadline) {
		if err := ws.Publish(ctx, "chan-1", map[string]string{"type": "CODE"}); err == nil {
			published = true
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !published {
		t.Fatal("never managed to publish before deadline (connection never established)")
	}

	select {
	case raw := <-received:
		var decoded map[string]string
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decoding echoed message: %v", err)
		}
		if decoded["type"] != "CODE" {
			t.Errorf("decoded = %v, want type=CODE", decoded)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("did not receive echoed message")
	}
}

func TestWebSocketPubSubReportsUpOnFirstConnect(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	_, wsURL := newEchoHub(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var statuses []StatusKind
	ws := NewWebSocketPubSub(ctx, WebSocketPubSubConfig{
		URL:        wsURL,
		Clock:      fake,
		MinBackoff: time.Millisecond,
		MaxBackoff: time.Millisecond,
	})
	defer ws.Close()
	ws.OnStatus(func(event StatusEvent) {
		statuses = append(statuses, event.Kind)
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(statuses) == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if len(statuses) == 0 {
		t.Fatal("never observed an initial Up status")
	}
	if statuses[0] != StatusUp {
		t.Errorf("first status = %v, want Up", statuses[0])
	}
}
