// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides small HTTP response-reading helpers shared
// by this module's outbound clients: the bundler poller, the object
// store uploader, and the save/download API client.
//
// All three read JSON API responses, never streamed or large binary
// bodies, so every helper here bounds its read at MaxResponseSize to
// keep a misbehaving server from exhausting memory.
package netutil

import (
	"encoding/json"
	"fmt"
	"io"
)

// MaxResponseSize bounds a single response body read. Legitimate
// bundler/object-store/save responses are small JSON documents; the
// limit is generous so it never interferes with normal operation.
const MaxResponseSize int64 = 256 << 20

// ReadResponse reads a response body up to MaxResponseSize bytes.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// DecodeResponse reads a JSON response body (up to MaxResponseSize
// bytes) and decodes it into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	return json.Unmarshal(data, v)
}

// ErrorBody reads an HTTP error response body for use in a diagnostic
// error message. Read errors are ignored — a partial or empty body is
// still useful in an error message.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	return string(data)
}
