// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

package jsimport

import "fmt"

// Pin rewrites code so that every recognized import/require statement
// for a specifier present in pins carries a trailing "// <version>"
// comment with that version, replacing any existing pin comment on
// that statement and appending a new one where none exists. A
// specifier with no entry in pins is left untouched, including any
// pin comment it already carries.
//
// Applying Pin twice with the same pins is idempotent: the second
// call finds every targeted statement already carrying the correct
// comment and produces byte-identical output.
func Pin(code string, pins map[string]string) (string, error) {
	if err := validateSyntax(code); err != nil {
		return "", err
	}
	if len(pins) == 0 {
		return code, nil
	}

	specs, err := scanSpecifiers(code)
	if err != nil {
		return "", fmt.Errorf("jsimport: pin: %w", err)
	}

	type edit struct {
		start, end int // byte range to replace
		text       string
	}

	var edits []edit
	for _, s := range specs {
		version, ok := pins[s.name]
		if !ok {
			continue
		}
		comment := "// " + version
		if s.hasComment {
			if s.version == version {
				continue
			}
			edits = append(edits, edit{start: s.commentStart, end: s.commentEnd, text: comment})
		} else {
			edits = append(edits, edit{start: s.statementEnd, end: s.statementEnd, text: " " + comment})
		}
	}

	if len(edits) == 0 {
		return code, nil
	}

	// Apply in reverse byte-offset order so that earlier edits never
	// invalidate the offsets recorded for later ones.
	for i, j := 0, len(edits)-1; i < j; i, j = i+1, j-1 {
		edits[i], edits[j] = edits[j], edits[i]
	}

	out := code
	for _, e := range edits {
		out = out[:e.start] + e.text + out[e.end:]
	}
	return out, nil
}
