// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport abstracts the pub/sub channel a session publishes
// its code bundle on and receives device activity from. Two
// implementations are provided: WebSocketPubSub, a production backend
// relaying through a broadcast hub, and Memory, an in-process backend
// for tests and for cmd/snack-monitor's demo mode.
package transport

import (
	"context"
	"encoding/json"
)

// PubSub is the contract the session and publication pipeline depend
// on. Implementations are not required to be safe for concurrent use
// by multiple goroutines — the owning session drives every method
// from its single event loop goroutine, matching the module's
// cooperative concurrency model.
type PubSub interface {
	// Subscribe joins channel. Idempotent: a second Subscribe call for
	// a channel already joined is a no-op. withPresence additionally
	// requests join/leave/timeout notifications for that channel.
	Subscribe(ctx context.Context, channel string, withPresence bool) error

	// Unsubscribe leaves channel. Idempotent.
	Unsubscribe(channel string) error

	// Publish sends message on channel. Delivery is at-most-once with
	// no ordering guarantee relative to other Publish calls.
	Publish(ctx context.Context, channel string, message any) error

	// OnMessage registers the callback invoked for every message
	// received on a subscribed channel. Only one callback is retained;
	// a later call replaces the earlier one.
	OnMessage(func(channel string, raw json.RawMessage))

	// OnPresence registers the callback invoked for join/leave/timeout
	// events on a channel subscribed with withPresence.
	OnPresence(func(channel string, event PresenceEvent))

	// OnStatus registers the callback invoked when the underlying
	// connection's reachability changes.
	OnStatus(func(StatusEvent))

	// CloseIdleConnections drops pooled connections so a subsequent
	// operation establishes a fresh connection instead of reusing one
	// left over a network disruption.
	CloseIdleConnections()
}

// PresenceKind enumerates the presence transitions a PubSub reports.
type PresenceKind string

const (
	PresenceJoin    PresenceKind = "join"
	PresenceLeave   PresenceKind = "leave"
	PresenceTimeout PresenceKind = "timeout"
)

// PresenceEvent carries a presence transition for one opaque,
// transport-assigned subscriber identifier.
type PresenceEvent struct {
	Kind PresenceKind
	// Identifier is the raw, transport-assigned subscriber identifier —
	// opaque at this layer. DecodeDevice attempts to interpret it as a
	// device descriptor.
	Identifier string
}

// StatusKind enumerates the connectivity transitions a PubSub reports.
type StatusKind string

const (
	StatusUp          StatusKind = "up"
	StatusDown        StatusKind = "down"
	StatusReconnected StatusKind = "reconnected"
)

// StatusEvent carries a connectivity transition for the underlying
// transport connection.
type StatusEvent struct {
	Kind StatusKind
}
