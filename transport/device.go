// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import "encoding/json"

// Device is the decoded form of a presence identifier that represents
// a connected rendering device, as opposed to another host or a
// non-device subscriber sharing the channel.
type Device struct {
	ID       string `json:"id"`
	Platform string `json:"platform,omitempty"`
	Name     string `json:"name,omitempty"`
}

// DecodeDevice attempts to interpret a presence identifier as a
// Device descriptor. Presence identifiers are opaque strings at the
// transport layer; non-JSON identifiers, and JSON that does not carry
// a non-empty id field, are not device descriptors and decode to
// ok=false so the caller can silently ignore them rather than raising
// spurious join/leave notifications for non-device subscribers.
func DecodeDevice(raw string) (Device, bool) {
	var device Device
	if err := json.Unmarshal([]byte(raw), &device); err != nil {
		return Device{}, false
	}
	if device.ID == "" {
		return Device{}, false
	}
	return device, true
}
