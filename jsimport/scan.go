// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

// Package jsimport scans a JavaScript/TypeScript source file for
// third-party import specifiers, rewrites their trailing
// "// <version>" pin comments in place, and inserts a new import
// declaration for a specifier the dependency engine decided to add.
//
// Every operation here is text-level, never AST-level: the source is
// validated for syntax errors with goja.Compile, but the returned
// program is discarded immediately afterward. Rewrites only ever
// replace or insert the bytes of a pin comment or a new import line —
// everything else in the file, including its whitespace and its own
// comments, passes through unchanged. An AST-based reprinter would
// reformat code the caller never asked to touch, which would defeat
// the round-trip guarantee this package exists to provide.
package jsimport

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dop251/goja"
)

// specifier describes one recognized import/require occurrence.
type specifier struct {
	name string // the module specifier, e.g. "lodash"

	// statementEnd is the byte offset immediately after the
	// statement's closing token (the ';' or the closing paren of a
	// require(...) call, or the end of line if neither is present).
	statementEnd int

	// hasComment reports whether a "// <version>" comment already
	// trails the statement on the same line.
	hasComment bool
	// commentStart/commentEnd bound the existing comment's "//" up to
	// (but not including) the line's newline, used to overwrite it in
	// place. Valid only when hasComment is true.
	commentStart, commentEnd int

	// version is the existing comment's trimmed text, when present.
	version string

	// isImport reports whether the occurrence is an import declaration,
	// as opposed to an export-from re-export or a require() call.
	isImport bool
}

// validateSyntax reports whether source parses as a JavaScript
// program. jsimport never inspects or retains the compiled program;
// goja.Compile is used purely as a syntax checker so that malformed
// input is rejected before any text-level scanning or rewriting is
// attempted.
func validateSyntax(source string) error {
	if _, err := goja.Compile("snack-import-scan.js", source, false); err != nil {
		return fmt.Errorf("jsimport: source does not parse: %w", err)
	}
	return nil
}

// isBareSpecifier reports whether name is a specifier this package
// tracks for pinning: a bare package name or scoped package name, not
// a relative path, an absolute path, or anything containing a
// newline (which cannot have been a single-line import anyway, but is
// rejected defensively).
func isBareSpecifier(name string) bool {
	if name == "" {
		return false
	}
	if strings.ContainsAny(name, "\n\r") {
		return false
	}
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "/") {
		return false
	}
	return true
}

// Scan parses source and returns a map from each recognized
// third-party import specifier to its pinned version, or nil if no
// version comment trails that specifier yet. Relative imports
// ("./x", "../x"), absolute imports ("/x"), and dynamic import(...)
// calls are never reported.
//
// Scan returns an error only when source fails to parse as
// JavaScript; a file with no recognized imports at all is not an
// error and yields an empty, non-nil map.
func Scan(source string) (map[string]*string, error) {
	if err := validateSyntax(source); err != nil {
		return nil, err
	}

	specs, err := scanSpecifiers(source)
	if err != nil {
		return nil, err
	}

	result := make(map[string]*string, len(specs))
	for _, s := range specs {
		if !isBareSpecifier(s.name) {
			continue
		}
		if s.hasComment {
			v := s.version
			result[s.name] = &v
		} else if _, exists := result[s.name]; !exists {
			result[s.name] = nil
		}
	}
	return result, nil
}

// scanSpecifiers walks source byte by byte, recognizing import
// declarations, export-from re-exports, and require() calls at
// statement position. It does not attempt to track scope, braces of
// unrelated blocks, or anything beyond what is needed to find these
// three statement shapes and their trailing comments.
func scanSpecifiers(source string) ([]specifier, error) {
	src := []byte(source)
	var specs []specifier

	i := 0
	for i < len(src) {
		c := src[i]

		switch {
		case c == '\'' || c == '"' || c == '`':
			i = skipStringOrTemplate(src, i)
			continue
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			i = skipLineComment(src, i)
			continue
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			i = skipBlockComment(src, i)
			continue
		case isIdentStart(c):
			ident, next := readIdent(src, i)
			switch ident {
			case "import":
				if next < len(src) && src[next] == '(' {
					// Dynamic import(...) — not a static specifier.
					i = next
					continue
				}
				if s, ok, after := parseImportClause(src, next); ok {
					s.isImport = true
					specs = append(specs, s)
					i = after
					continue
				}
				i = next
			case "export":
				if s, ok, after := parseExportFrom(src, next); ok {
					specs = append(specs, s)
					i = after
					continue
				}
				i = next
			case "require":
				if s, ok, after := parseRequireCall(src, next); ok {
					specs = append(specs, s)
					i = after
					continue
				}
				i = next
			default:
				i = next
			}
		default:
			i++
		}
	}
	return specs, nil
}

// parseImportClause parses the clause following the "import" keyword
// at src[i] (i.e. everything up to and including the terminating
// ';' or end of line), recognizing:
//
//	import 'specifier';
//	import Default from 'specifier';
//	import * as ns from 'specifier';
//	import { a, b as c } from 'specifier';
//	import Default, { a, b } from 'specifier';
//
// It returns the recognized specifier, whether a from-clause or bare
// string was actually found, and the offset just past the statement.
func parseImportClause(src []byte, i int) (specifier, bool, int) {
	i = skipWS(src, i)
	if i >= len(src) {
		return specifier{}, false, i
	}

	// Bare side-effect import: import 'specifier';
	if src[i] == '\'' || src[i] == '"' {
		name, next, ok := readQuotedString(src, i)
		if !ok {
			return specifier{}, false, next
		}
		return finishStatement(src, name, next)
	}

	// Otherwise scan forward past the binding clause (default import,
	// namespace import, named import list, or combinations) looking
	// for the "from" keyword, stopping if a statement-terminating ';'
	// is hit first. Newlines do not stop the scan.
	j := i
	for j < len(src) {
		j = skipWS(src, j)
		if j >= len(src) {
			return specifier{}, false, j
		}
		switch src[j] {
		case ';':
			return specifier{}, false, j + 1
		case '\'', '"':
			// A string here without a preceding "from" is not a shape
			// this package recognizes; bail conservatively.
			return specifier{}, false, j
		case '{':
			depth := 1
			j++
			for j < len(src) && depth > 0 {
				if src[j] == '{' {
					depth++
				} else if src[j] == '}' {
					depth--
				} else if src[j] == '\'' || src[j] == '"' || src[j] == '`' {
					j = skipStringOrTemplate(src, j)
					continue
				}
				j++
			}
			continue
		case ',', '*':
			j++
			continue
		default:
			if isIdentStart(src[j]) {
				ident, next := readIdent(src, j)
				if ident == "from" {
					next = skipWS(src, next)
					if next >= len(src) || (src[next] != '\'' && src[next] != '"') {
						return specifier{}, false, next
					}
					name, after, ok := readQuotedString(src, next)
					if !ok {
						return specifier{}, false, after
					}
					return finishStatement(src, name, after)
				}
				if ident == "as" {
					j = next
					continue
				}
				j = next
				continue
			}
			j++
		}
	}
	return specifier{}, false, j
}

// parseExportFrom parses the clause following the "export" keyword,
// recognizing only the re-export form:
//
//	export { a, b } from 'specifier';
//	export * from 'specifier';
//	export * as ns from 'specifier';
//
// Any other export form (export default, export const, export
// function, ...) has no "from" clause and is not a specifier this
// package tracks, so parsing aborts as soon as a top-level ';' or an
// unrelated token sequence makes that clear.
func parseExportFrom(src []byte, i int) (specifier, bool, int) {
	return parseImportClause(src, i)
}

// parseRequireCall parses a call of the form require(...) starting
// just after the "require" identifier at src[i]. Only a call whose
// sole argument is a single string literal is recognized; zero
// arguments, multiple arguments, a non-string argument, and an
// interpolated or multiline template literal argument are all
// rejected (the call is skipped without producing a specifier).
func parseRequireCall(src []byte, i int) (specifier, bool, int) {
	j := skipWS(src, i)
	if j >= len(src) || src[j] != '(' {
		return specifier{}, false, i
	}
	openParen := j
	j = skipWS(src, j+1)
	if j >= len(src) {
		return specifier{}, false, skipBalancedCall(src, openParen)
	}

	var name string
	var argEnd int
	switch src[j] {
	case '\'', '"':
		var ok bool
		name, argEnd, ok = readQuotedString(src, j)
		if !ok {
			return specifier{}, false, skipBalancedCall(src, openParen)
		}
	case '`':
		content, interpolated, multiline, next, ok := readTemplateLiteral(src, j)
		if !ok || interpolated || multiline {
			return specifier{}, false, skipBalancedCall(src, openParen)
		}
		name, argEnd = content, next
	default:
		// Non-string first argument (identifier, expression, ...).
		return specifier{}, false, skipBalancedCall(src, openParen)
	}

	argEnd = skipWS(src, argEnd)
	if argEnd >= len(src) || src[argEnd] != ')' {
		// A second argument or trailing expression makes this a
		// require() shape this package does not recognize.
		return specifier{}, false, skipBalancedCall(src, openParen)
	}
	closeParen := argEnd + 1

	return finishStatement(src, name, closeParen)
}

// finishStatement scans from the end of a recognized specifier's
// closing quote (or closing paren, for require()) to the end of the
// statement, capturing an optional trailing "// <version>" comment on
// the same line.
func finishStatement(src []byte, name string, from int) (specifier, bool, int) {
	i := from
	i = skipSpacesAndTabs(src, i)
	if i < len(src) && src[i] == ';' {
		i++
	}
	i = skipSpacesAndTabs(src, i)

	s := specifier{name: name, statementEnd: i}

	if i+1 < len(src) && src[i] == '/' && src[i+1] == '/' {
		commentStart := i
		lineEnd := i + 2
		for lineEnd < len(src) && src[lineEnd] != '\n' {
			lineEnd++
		}
		s.hasComment = true
		s.commentStart = commentStart
		s.commentEnd = lineEnd
		s.version = strings.TrimSpace(string(src[commentStart+2 : lineEnd]))
		i = lineEnd
	}

	return s, true, i
}

// sortedSpecifierNames is a small helper kept for callers (tests,
// diagnostics) that want a deterministic iteration order over a Scan
// result without depending on Go's randomized map order.
func sortedSpecifierNames(m map[string]*string) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
