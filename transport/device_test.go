// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import "testing"

func TestDecodeDeviceValid(t *testing.T) {
	device, ok := DecodeDevice(`{"id":"abc123","platform":"ios","name":"iPhone"}`)
	if !ok {
		t.Fatal("DecodeDevice rejected a valid descriptor")
	}
	if device.ID != "abc123" || device.Platform != "ios" || device.Name != "iPhone" {
		t.Errorf("DecodeDevice = %+v, unexpected fields", device)
	}
}

func TestDecodeDeviceNonJSON(t *testing.T) {
	if _, ok := DecodeDevice("not-json-at-all"); ok {
		t.Error("DecodeDevice accepted a non-JSON identifier")
	}
}

func TestDecodeDeviceMissingID(t *testing.T) {
	if _, ok := DecodeDevice(`{"platform":"ios"}`); ok {
		t.Error("DecodeDevice accepted a descriptor with no id field")
	}
}

func TestDecodeDeviceEmptyString(t *testing.T) {
	if _, ok := DecodeDevice(""); ok {
		t.Error("DecodeDevice accepted an empty identifier")
	}
}
