// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

// Package featureflag maps an SDK version string to the set of
// capabilities the session core may use for that version. It is the
// sole authority on SDK-version branching — no other package compares
// version strings directly.
package featureflag

import (
	"strconv"
	"strings"
)

// Feature identifies a capability a session may or may not have,
// depending on its declared SDK version.
type Feature int

const (
	// MultipleFiles enables the multi-file publish envelope
	// ({diff, s3url} keyed by file) in place of the legacy
	// single-string {code} payload.
	MultipleFiles Feature = iota

	// ArbitraryImports enables the dependency resolution engine:
	// static import scanning, bundler reconciliation, and pin
	// rewriting of user code.
	ArbitraryImports
)

// minimumVersion records the lowest SDK version, per feature, at
// which that feature is available. A feature absent from this table
// is never available.
var minimumVersion = map[Feature]string{
	MultipleFiles:    "34.0.0",
	ArbitraryImports: "40.0.0",
}

// Supports reports whether sdkVersion is new enough to use feature.
// An sdkVersion that fails to parse is treated as unsupported for
// every feature — an unrecognized version string never grants a
// capability by accident.
func Supports(sdkVersion string, feature Feature) bool {
	minimum, known := minimumVersion[feature]
	if !known {
		return false
	}
	for _, part := range strings.Split(sdkVersion, ".") {
		if _, err := strconv.Atoi(part); err != nil {
			return false
		}
	}
	return compareVersions(sdkVersion, minimum) >= 0
}
