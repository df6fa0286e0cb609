// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

package jsimport

import "fmt"

// InsertImport adds a bare side-effect import for the given
// specifier — import 'from'; — to code, used to inject a peer
// dependency the dependency engine resolved but the user's source
// never referenced directly. If an import or require for that exact
// specifier is already present anywhere in code, InsertImport returns
// code unchanged, making repeated calls with the same specifier
// idempotent.
//
// The new statement is inserted on its own line immediately after the
// last existing top-level import statement. When no import exists, it
// is inserted after the file's leading directive prologue (a run of
// bare string-literal-expression statements, e.g. "use strict";) if
// one is present, or at the very top of the file otherwise — so
// generated diffs stay minimal, unrelated code is never touched, and
// a directive never ends up after a statement that precedes it.
func InsertImport(code string, from string) (string, error) {
	if err := validateSyntax(code); err != nil {
		return "", err
	}

	specs, err := scanSpecifiers(code)
	if err != nil {
		return "", fmt.Errorf("jsimport: insert: %w", err)
	}

	lastImportEnd := -1
	for _, s := range specs {
		if s.name == from {
			return code, nil
		}
		if s.isImport && s.statementEnd > lastImportEnd {
			lastImportEnd = statementLineEnd(code, s)
		}
	}

	line := fmt.Sprintf("import %s;\n", quoteSpecifier(from))

	insertAt := lastImportEnd
	if insertAt < 0 {
		insertAt = leadingPrologueEnd(code)
	}

	if insertAt <= 0 {
		return line + code, nil
	}
	return code[:insertAt] + line + code[insertAt:], nil
}

// leadingPrologueEnd returns the byte offset just past the file's
// leading directive prologue — a run of top-level expression
// statements consisting of nothing but a single- or double-quoted
// string literal, such as "use strict"; — or 0 if the file has no
// such prologue. Each directive may be terminated by an explicit
// semicolon or, per automatic semicolon insertion, by a line
// terminator; anything else trailing the string literal on the same
// line (concatenation, a call, another expression) means the
// statement is not a directive and ends the scan.
func leadingPrologueEnd(code string) int {
	src := []byte(code)
	end := 0
	i := 0
	for {
		j := skipWS(src, i)
		if j >= len(src) || (src[j] != '\'' && src[j] != '"') {
			return end
		}
		_, next, ok := readQuotedString(src, j)
		if !ok {
			return end
		}

		k := skipSpacesAndTabs(src, next)
		switch {
		case k < len(src) && src[k] == ';':
			k++
		case k >= len(src) || src[k] == '\n' || src[k] == '\r':
			// Statement ends here by automatic semicolon insertion.
		default:
			return end
		}

		for k < len(src) && src[k] != '\n' {
			if src[k] != ' ' && src[k] != '\t' && src[k] != '\r' {
				return end
			}
			k++
		}
		if k < len(src) {
			k++ // include the newline
		}
		end = k
		i = k
	}
}

// statementLineEnd returns the offset just past the newline that ends
// s's statement line (including its trailing pin comment, if any), or
// len(code) if the statement is on the file's last line.
func statementLineEnd(code string, s specifier) int {
	end := s.statementEnd
	if s.hasComment {
		end = s.commentEnd
	}
	for end < len(code) && code[end] != '\n' {
		end++
	}
	if end < len(code) {
		end++ // include the newline itself
	}
	return end
}

// quoteSpecifier renders from as a single-quoted JS string literal.
// Specifiers tracked by this package never contain a single quote or
// a newline (Scan filters those out), so no escaping is needed beyond
// wrapping in quotes.
func quoteSpecifier(from string) string {
	return "'" + from + "'"
}
