// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

package jsimport

import (
	"strings"
	"testing"
)

func TestInsertImportAfterLastImport(t *testing.T) {
	source := "import lodash from 'lodash';\nimport react from 'react';\n\nfunction run() {}\n"
	out, err := InsertImport(source, "prop-types")
	if err != nil {
		t.Fatalf("InsertImport: %v", err)
	}

	want := "import lodash from 'lodash';\nimport react from 'react';\nimport 'prop-types';\n\nfunction run() {}\n"
	if out != want {
		t.Errorf("InsertImport placement wrong:\ngot:  %q\nwant: %q", out, want)
	}
}

func TestInsertImportAtTopWhenNoneExist(t *testing.T) {
	source := "function run() {}\n"
	out, err := InsertImport(source, "prop-types")
	if err != nil {
		t.Fatalf("InsertImport: %v", err)
	}

	want := "import 'prop-types';\nfunction run() {}\n"
	if out != want {
		t.Errorf("InsertImport placement wrong:\ngot:  %q\nwant: %q", out, want)
	}
}

func TestInsertImportAfterDirectivePrologue(t *testing.T) {
	source := "\"use strict\";\n\nfunction run() {}\n"
	out, err := InsertImport(source, "prop-types")
	if err != nil {
		t.Fatalf("InsertImport: %v", err)
	}

	want := "\"use strict\";\nimport 'prop-types';\n\nfunction run() {}\n"
	if out != want {
		t.Errorf("InsertImport placement wrong:\ngot:  %q\nwant: %q", out, want)
	}
}

func TestInsertImportAfterMultiDirectivePrologue(t *testing.T) {
	source := "'use strict';\n'use asm';\nfunction run() {}\n"
	out, err := InsertImport(source, "prop-types")
	if err != nil {
		t.Fatalf("InsertImport: %v", err)
	}

	want := "'use strict';\n'use asm';\nimport 'prop-types';\nfunction run() {}\n"
	if out != want {
		t.Errorf("InsertImport placement wrong:\ngot:  %q\nwant: %q", out, want)
	}
}

func TestInsertImportIsIdempotent(t *testing.T) {
	source := "import react from 'react';\n"
	once, err := InsertImport(source, "prop-types")
	if err != nil {
		t.Fatalf("InsertImport (first): %v", err)
	}
	twice, err := InsertImport(once, "prop-types")
	if err != nil {
		t.Fatalf("InsertImport (second): %v", err)
	}
	if once != twice {
		t.Errorf("InsertImport is not idempotent:\nfirst:  %q\nsecond: %q", once, twice)
	}
	if strings.Count(twice, "prop-types") != 1 {
		t.Errorf("InsertImport duplicated the specifier: %q", twice)
	}
}

func TestInsertImportAlreadyRequired(t *testing.T) {
	source := "const propTypes = require('prop-types');\n"
	out, err := InsertImport(source, "prop-types")
	if err != nil {
		t.Fatalf("InsertImport: %v", err)
	}
	if out != source {
		t.Errorf("InsertImport added a duplicate for an existing require(): %q", out)
	}
}

func TestInsertImportRejectsSyntaxError(t *testing.T) {
	_, err := InsertImport("import { from 'broken';", "prop-types")
	if err == nil {
		t.Error("InsertImport accepted source with a syntax error")
	}
}
