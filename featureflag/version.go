// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

package featureflag

import (
	"strconv"
	"strings"
)

// compareVersions compares two "major.minor.patch"-style version
// strings numerically, component by component. Missing trailing
// components are treated as zero. A non-numeric component compares as
// zero ("50.x" compares equal to "50.0.0"); Supports rejects such
// versions before comparing.
//
// Returns -1, 0, or 1, the same convention as strings.Compare.
func compareVersions(a, b string) int {
	aParts := strings.Split(a, ".")
	bParts := strings.Split(b, ".")

	length := len(aParts)
	if len(bParts) > length {
		length = len(bParts)
	}

	for i := 0; i < length; i++ {
		aValue := versionComponent(aParts, i)
		bValue := versionComponent(bParts, i)
		if aValue != bValue {
			if aValue < bValue {
				return -1
			}
			return 1
		}
	}
	return 0
}

func versionComponent(parts []string, index int) int {
	if index >= len(parts) {
		return 0
	}
	value, err := strconv.Atoi(parts[index])
	if err != nil {
		return 0
	}
	return value
}
