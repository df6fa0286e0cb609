// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

// Package diffutil computes the line-level patch transmitted for a
// changed file and estimates the wire size of a publish payload
// before it is sent, so the publication pipeline knows whether it
// must spill a file to object storage.
package diffutil

import (
	"encoding/json"
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// dmp is stateless and safe for concurrent use; one instance is
// shared across all Diff calls.
var dmp = diffmatchpatch.New()

// Diff returns a patch transforming prev into next. The format is a
// serialized diff-match-patch patch list — opaque to callers, but
// self-sufficient: applying it against prev (the device side's job,
// out of scope here) reconstructs next exactly.
//
// Diff("", next) degrades to a single patch that carries all of next.
// The output is not bounded by len(prev)+len(next): the patch text
// percent-encodes newlines and other reserved characters as three
// bytes each, so source with many of them serializes to several times
// its own length.
func Diff(prev, next string) string {
	diffs := dmp.DiffMain(prev, next, false)
	patches := dmp.PatchMake(prev, diffs)
	return dmp.PatchToText(patches)
}

// Size estimates the number of bytes the transport will charge to
// publish payload on channel, including the envelope the transport
// wraps every message in: the exact length of the marshaled payload
// and of the channel name, plus envelopeOverhead, a fixed
// approximation of the transport's {channel, event, payload} wrapper
// and protocol framing.
func Size(channel string, payload any) int {
	body, err := json.Marshal(payload)
	if err != nil {
		// The payload types constructed by this module always marshal
		// cleanly; a marshal failure here indicates a caller passed a
		// channel/unsupported type, which is a programmer error, not
		// a runtime condition to recover from silently. Fall back to a
		// conservative estimate rather than panicking mid-publish.
		return len(channel) + envelopeOverhead
	}
	return len(body) + len(channel) + envelopeOverhead
}

// envelopeOverhead approximates the fixed cost of the transport's
// {channel, event, payload} JSON wrapper around the marshaled payload
// (field names, quoting, braces).
const envelopeOverhead = 64

// ApplyPatch reconstructs next from prev and a patch produced by
// Diff. Provided for completeness and for round-trip tests; the
// device-side applier itself is out of scope for this module.
func ApplyPatch(prev, patch string) (string, error) {
	patches, err := dmp.PatchFromText(patch)
	if err != nil {
		return "", fmt.Errorf("diffutil: parsing patch: %w", err)
	}
	result, applied := dmp.PatchApply(patches, prev)
	for _, ok := range applied {
		if !ok {
			return "", fmt.Errorf("diffutil: patch failed to apply cleanly")
		}
	}
	return result, nil
}
