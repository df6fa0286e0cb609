// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"encoding/json"
	"fmt"
)

// Memory is an in-process PubSub backend. Each Memory instance is one
// endpoint on a MemoryHub: Publish on a channel invokes the OnMessage
// callback of every other Memory endpoint that has Subscribed to that
// channel on the same hub. It exists for session/publish
// tests and for cmd/snack-monitor's demo mode, where there is no real
// broadcast server to connect to.
type Memory struct {
	hub *MemoryHub

	subscribed map[string]bool

	onMessage  func(channel string, raw json.RawMessage)
	onPresence func(channel string, event PresenceEvent)
	onStatus   func(StatusEvent)
}

// MemoryHub is the shared broadcast point multiple Memory subscribers
// attach to. Tests construct one Hub and hand out a Memory endpoint
// per simulated host/device.
type MemoryHub struct {
	subscribers map[string][]*Memory
}

// NewMemoryHub creates an empty hub.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{subscribers: make(map[string][]*Memory)}
}

// NewMemory creates a PubSub endpoint attached to hub.
func NewMemory(hub *MemoryHub) *Memory {
	return &Memory{
		hub:        hub,
		subscribed: make(map[string]bool),
	}
}

func (m *Memory) Subscribe(ctx context.Context, channel string, withPresence bool) error {
	if m.subscribed[channel] {
		return nil
	}
	m.subscribed[channel] = true
	m.hub.subscribers[channel] = append(m.hub.subscribers[channel], m)

	if withPresence {
		m.hub.broadcastPresence(channel, m, PresenceJoin)
	}
	return nil
}

func (m *Memory) Unsubscribe(channel string) error {
	if !m.subscribed[channel] {
		return nil
	}
	delete(m.subscribed, channel)
	m.hub.removeSubscriber(channel, m)
	m.hub.broadcastPresence(channel, m, PresenceLeave)
	return nil
}

// Publish delivers message, JSON-encoded, to every other subscriber
// of channel in registration order. A Memory instance never delivers
// its own publish back to itself.
func (m *Memory) Publish(ctx context.Context, channel string, message any) error {
	raw, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("transport: encoding message for %q: %w", channel, err)
	}
	for _, sub := range m.hub.subscribers[channel] {
		if sub == m {
			continue
		}
		if sub.onMessage != nil {
			sub.onMessage(channel, json.RawMessage(raw))
		}
	}
	return nil
}

func (m *Memory) OnMessage(f func(channel string, raw json.RawMessage))  { m.onMessage = f }
func (m *Memory) OnPresence(f func(channel string, event PresenceEvent)) { m.onPresence = f }
func (m *Memory) OnStatus(f func(StatusEvent))                           { m.onStatus = f }

// CloseIdleConnections is a no-op: the in-memory backend has no
// connection pool to release.
func (m *Memory) CloseIdleConnections() {}

// SimulateDeviceMessage lets a test inject a device-originated message
// (CONSOLE, ERROR, RESEND_CODE) onto channel as though it had arrived
// over the wire.
func (m *Memory) SimulateDeviceMessage(channel string, raw json.RawMessage) {
	for _, sub := range m.hub.subscribers[channel] {
		if sub.onMessage != nil {
			sub.onMessage(channel, raw)
		}
	}
}

// SimulateStatus lets a test drive OnStatus directly, exercising the
// network-up re-subscribe path without a real connection.
func (m *Memory) SimulateStatus(event StatusEvent) {
	if m.onStatus != nil {
		m.onStatus(event)
	}
}

// SimulatePresence lets a test inject a presence event (e.g. a device
// join with a decodable identifier) onto channel as though it had
// arrived over the wire, bypassing the pointer-derived identifier a
// real Subscribe/Unsubscribe call broadcasts.
func (m *Memory) SimulatePresence(channel string, event PresenceEvent) {
	for _, sub := range m.hub.subscribers[channel] {
		if sub.onPresence != nil {
			sub.onPresence(channel, event)
		}
	}
}

func (hub *MemoryHub) removeSubscriber(channel string, target *Memory) {
	subs := hub.subscribers[channel]
	for i, sub := range subs {
		if sub == target {
			hub.subscribers[channel] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func (hub *MemoryHub) broadcastPresence(channel string, origin *Memory, kind PresenceKind) {
	identifier := fmt.Sprintf("%p", origin)
	for _, sub := range hub.subscribers[channel] {
		if sub == origin {
			continue
		}
		if sub.onPresence != nil {
			sub.onPresence(channel, PresenceEvent{Kind: kind, Identifier: identifier})
		}
	}
}
