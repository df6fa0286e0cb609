// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"encoding/json"
	"testing"
)

func TestMemoryPublishDeliversToOtherSubscribers(t *testing.T) {
	hub := NewMemoryHub()
	host := NewMemory(hub)
	device := NewMemory(hub)

	var received json.RawMessage
	device.OnMessage(func(channel string, raw json.RawMessage) {
		received = raw
	})

	ctx := context.Background()
	if err := host.Subscribe(ctx, "chan-1", false); err != nil {
		t.Fatalf("host.Subscribe: %v", err)
	}
	if err := device.Subscribe(ctx, "chan-1", false); err != nil {
		t.Fatalf("device.Subscribe: %v", err)
	}

	if err := host.Publish(ctx, "chan-1", map[string]string{"type": "CODE"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if received == nil {
		t.Fatal("device did not receive the published message")
	}
	var decoded map[string]string
	if err := json.Unmarshal(received, &decoded); err != nil {
		t.Fatalf("decoding received message: %v", err)
	}
	if decoded["type"] != "CODE" {
		t.Errorf("decoded = %v, want type=CODE", decoded)
	}
}

func TestMemoryPublishDoesNotEchoToSelf(t *testing.T) {
	hub := NewMemoryHub()
	host := NewMemory(hub)

	selfReceived := false
	host.OnMessage(func(channel string, raw json.RawMessage) {
		selfReceived = true
	})

	ctx := context.Background()
	host.Subscribe(ctx, "chan-1", false)
	host.Publish(ctx, "chan-1", map[string]string{"type": "CODE"})

	if selfReceived {
		t.Error("Memory delivered a publish back to its own subscriber")
	}
}

func TestMemoryPresenceJoinLeave(t *testing.T) {
	hub := NewMemoryHub()
	host := NewMemory(hub)
	device := NewMemory(hub)

	var events []PresenceKind
	host.OnPresence(func(channel string, event PresenceEvent) {
		events = append(events, event.Kind)
	})

	ctx := context.Background()
	host.Subscribe(ctx, "chan-1", true)
	device.Subscribe(ctx, "chan-1", true)
	device.Unsubscribe("chan-1")

	if len(events) != 2 || events[0] != PresenceJoin || events[1] != PresenceLeave {
		t.Errorf("presence events = %v, want [join leave]", events)
	}
}

func TestMemorySubscribeIdempotent(t *testing.T) {
	hub := NewMemoryHub()
	host := NewMemory(hub)
	ctx := context.Background()

	if err := host.Subscribe(ctx, "chan-1", false); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := host.Subscribe(ctx, "chan-1", false); err != nil {
		t.Fatalf("second Subscribe: %v", err)
	}
	if len(hub.subscribers["chan-1"]) != 1 {
		t.Errorf("hub has %d subscribers for chan-1, want 1", len(hub.subscribers["chan-1"]))
	}
}

func TestMemoryUnsubscribeIdempotent(t *testing.T) {
	hub := NewMemoryHub()
	host := NewMemory(hub)
	if err := host.Unsubscribe("never-subscribed"); err != nil {
		t.Fatalf("Unsubscribe on unknown channel: %v", err)
	}
}
