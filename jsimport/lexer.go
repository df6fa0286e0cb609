// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

package jsimport

// A hand-rolled lexer for the narrow slice of JavaScript grammar this
// package needs: import/export-from declarations, require() calls,
// string and template literals, and comments. A full AST round-trip
// would reformat the user's source — this package only ever touches
// the bytes it recognizes as an import specifier or its trailing
// version comment, leaving everything else byte-for-byte untouched.

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func skipSpacesAndTabs(src []byte, i int) int {
	for i < len(src) && (src[i] == ' ' || src[i] == '\t') {
		i++
	}
	return i
}

// skipWS skips whitespace, line comments, and block comments,
// including those spanning newlines.
func skipWS(src []byte, i int) int {
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			i = skipLineComment(src, i)
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			i = skipBlockComment(src, i)
		default:
			return i
		}
	}
	return i
}

func skipLineComment(src []byte, i int) int {
	for i < len(src) && src[i] != '\n' {
		i++
	}
	return i
}

func skipBlockComment(src []byte, i int) int {
	i += 2
	for i+1 < len(src) {
		if src[i] == '*' && src[i+1] == '/' {
			return i + 2
		}
		i++
	}
	return len(src)
}

func readIdent(src []byte, i int) (ident string, next int) {
	start := i
	for i < len(src) && isIdentPart(src[i]) {
		i++
	}
	return string(src[start:i]), i
}

// readQuotedString reads a single- or double-quoted string literal
// starting at src[i] (which must be the opening quote). Returns the
// literal's decoded-enough content (escape sequences are left as-is;
// callers only need the raw specifier text, not a fully decoded
// string), the byte offset just past the closing quote, and whether a
// closing quote was found.
func readQuotedString(src []byte, i int) (content string, next int, ok bool) {
	quote := src[i]
	start := i + 1
	j := start
	for j < len(src) {
		switch src[j] {
		case '\\':
			j += 2
			continue
		case quote:
			return string(src[start:j]), j + 1, true
		case '\n':
			// Unterminated on this line; the syntax validator would
			// have already rejected this, but guard against runaway
			// scans on malformed input that slipped through.
			return string(src[start:j]), j, false
		}
		j++
	}
	return string(src[start:j]), j, false
}

// readTemplateLiteral reads a backtick template literal starting at
// src[i]. Reports whether it contains an unescaped ${ substitution
// and whether it spans more than one line — both disqualify it as a
// require() specifier.
func readTemplateLiteral(src []byte, i int) (content string, interpolated, multiline bool, next int, ok bool) {
	start := i + 1
	j := start
	for j < len(src) {
		switch {
		case src[j] == '\\':
			j += 2
			continue
		case src[j] == '`':
			return string(src[start:j]), interpolated, multiline, j + 1, true
		case src[j] == '\n':
			multiline = true
			j++
		case src[j] == '$' && j+1 < len(src) && src[j+1] == '{':
			interpolated = true
			// Skip the substitution expression, tracking brace depth
			// so a nested '}' inside it doesn't end the scan early.
			depth := 1
			j += 2
			for j < len(src) && depth > 0 {
				switch src[j] {
				case '{':
					depth++
				case '}':
					depth--
				case '\n':
					multiline = true
				}
				j++
			}
		default:
			j++
		}
	}
	return string(src[start:j]), interpolated, multiline, j, false
}

// skipStringOrTemplate advances past a string or template literal
// starting at src[i], without decoding it. Used while scanning past
// import-clause tokens (named import lists, etc.) where literals must
// not be mistaken for statement structure.
func skipStringOrTemplate(src []byte, i int) int {
	switch src[i] {
	case '\'', '"':
		_, next, _ := readQuotedString(src, i)
		return next
	case '`':
		_, _, _, next, _ := readTemplateLiteral(src, i)
		return next
	}
	return i + 1
}

// skipBalancedCall skips from an opening '(' at src[openParen] to just
// past its matching ')', respecting nested brackets, strings, and
// comments. Used to skip over require() calls that don't match the
// single-string-literal-argument shape this package recognizes.
func skipBalancedCall(src []byte, openParen int) int {
	depth := 0
	i := openParen
	for i < len(src) {
		c := src[i]
		switch {
		case c == '(' || c == '{' || c == '[':
			depth++
			i++
		case c == ')' || c == '}' || c == ']':
			depth--
			i++
			if depth == 0 {
				return i
			}
		case c == '\'' || c == '"' || c == '`':
			i = skipStringOrTemplate(src, i)
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			i = skipLineComment(src, i)
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			i = skipBlockComment(src, i)
		default:
			i++
		}
	}
	return i
}
