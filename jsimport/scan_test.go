// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

package jsimport

import "testing"

func TestScanRecognizesImportForms(t *testing.T) {
	source := `import './local-file';
import lodash from 'lodash'; // 4.17.21
import * as React from 'react';
import { useState, useEffect } from 'react';
import Default, { named } from '@scope/pkg'; // 1.2.3
export { thing } from 'some-lib';
const left = require('left-pad');
`
	got, err := Scan(source)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	want := map[string]bool{
		"lodash":     true,
		"react":      true,
		"@scope/pkg": true,
		"some-lib":   true,
		"left-pad":   true,
	}
	if len(got) != len(want) {
		t.Fatalf("Scan returned %d specifiers, want %d: %v", len(got), len(want), sortedSpecifierNames(got))
	}
	for name := range want {
		if _, ok := got[name]; !ok {
			t.Errorf("Scan missing expected specifier %q", name)
		}
	}
	if _, ok := got["./local-file"]; ok {
		t.Error("Scan reported a relative specifier")
	}

	if v := got["lodash"]; v == nil || *v != "4.17.21" {
		t.Errorf("lodash version = %v, want 4.17.21", v)
	}
	if v := got["@scope/pkg"]; v == nil || *v != "1.2.3" {
		t.Errorf("@scope/pkg version = %v, want 1.2.3", v)
	}
	if v := got["react"]; v != nil {
		t.Errorf("react version = %v, want nil (no pin comment)", *v)
	}
}

func TestScanIgnoresDynamicImport(t *testing.T) {
	source := `async function load() {
  const mod = await import('some-dynamic-module');
  return mod;
}
`
	got, err := Scan(source)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if _, ok := got["some-dynamic-module"]; ok {
		t.Error("Scan reported a dynamic import() specifier")
	}
}

func TestScanRejectsMultiArgRequire(t *testing.T) {
	source := "const fs = require('fs', 'extra-arg');\n"
	got, err := Scan(source)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if _, ok := got["fs"]; ok {
		t.Error("Scan accepted a multi-argument require() call")
	}
}

func TestScanRejectsInterpolatedTemplateRequire(t *testing.T) {
	source := "const name = 'x';\nconst mod = require(`pkg-${name}`);\n"
	got, err := Scan(source)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Scan accepted an interpolated template require(): %v", sortedSpecifierNames(got))
	}
}

func TestScanAcceptsPlainTemplateRequire(t *testing.T) {
	source := "const mod = require(`left-pad`);\n"
	got, err := Scan(source)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if _, ok := got["left-pad"]; !ok {
		t.Errorf("Scan rejected a plain (non-interpolated) template-literal require(): %v", sortedSpecifierNames(got))
	}
}

func TestScanRejectsSyntaxError(t *testing.T) {
	_, err := Scan("import { from 'broken';")
	if err == nil {
		t.Error("Scan accepted source with a syntax error")
	}
}

func TestScanEmptySourceYieldsEmptyMap(t *testing.T) {
	got, err := Scan("")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got == nil {
		t.Error("Scan returned nil map for empty source")
	}
	if len(got) != 0 {
		t.Errorf("Scan found specifiers in empty source: %v", sortedSpecifierNames(got))
	}
}
