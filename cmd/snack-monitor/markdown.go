// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// descriptionParser is initialized once; the goldmark Parser has no
// per-parse state and is safe to share across renders.
var (
	descriptionParser     goldmark.Markdown
	descriptionParserOnce sync.Once
)

func getDescriptionParser() goldmark.Markdown {
	descriptionParserOnce.Do(func() {
		descriptionParser = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return descriptionParser
}

// renderDescription turns a snack's markdown description into styled
// terminal text wrapped to width. Headings, emphasis, fenced code
// blocks (syntax-highlighted via chroma) and paragraphs are handled;
// anything else falls through as plain reflowed text.
func renderDescription(input string, theme Theme, width int) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}

	source := []byte(input)
	document := getDescriptionParser().Parser().Parse(text.NewReader(source))

	renderer := &descriptionRenderer{
		source: source,
		theme:  theme,
		width:  width,
		style:  lipgloss.NewRenderer(os.Stderr, termenv.WithProfile(termenv.ANSI256)),
	}
	renderer.style.SetColorProfile(termenv.ANSI256)
	ast.Walk(document, renderer.walk)
	return strings.TrimRight(renderer.output.String(), "\n")
}

type descriptionRenderer struct {
	source []byte
	theme  Theme
	width  int
	style  *lipgloss.Renderer

	output  strings.Builder
	inline  strings.Builder
	bold    int
	italics int
}

func (r *descriptionRenderer) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node.Kind() {
	case ast.KindParagraph, ast.KindTextBlock:
		if entering {
			r.inline.Reset()
		} else {
			r.flush()
		}
	case ast.KindHeading:
		if entering {
			r.inline.Reset()
		} else {
			content := r.inline.String()
			r.inline.Reset()
			style := r.style.NewStyle().Bold(true).Foreground(r.theme.HeaderForeground)
			r.output.WriteString(style.Render(ansi.Wrap(content, r.width, " ,.;-+|")))
			r.output.WriteString("\n\n")
		}
	case ast.KindFencedCodeBlock:
		if entering {
			r.renderFencedCode(node.(*ast.FencedCodeBlock))
			return ast.WalkSkipChildren, nil
		}
	case ast.KindText:
		if entering {
			textNode := node.(*ast.Text)
			value := string(textNode.Segment.Value(r.source))
			r.inline.WriteString(r.styled(value))
			if textNode.SoftLineBreak() {
				r.inline.WriteString(" ")
			}
			if textNode.HardLineBreak() {
				r.inline.WriteString("\n")
			}
		}
	case ast.KindEmphasis:
		emphasis := node.(*ast.Emphasis)
		if emphasis.Level >= 2 {
			if entering {
				r.bold++
			} else {
				r.bold--
			}
		} else {
			if entering {
				r.italics++
			} else {
				r.italics--
			}
		}
	case ast.KindCodeSpan:
		if entering {
			var code strings.Builder
			for child := node.FirstChild(); child != nil; child = child.NextSibling() {
				if t, ok := child.(*ast.Text); ok {
					code.Write(t.Segment.Value(r.source))
				}
			}
			r.inline.WriteString(r.style.NewStyle().Foreground(r.theme.FaintText).Render(code.String()))
			return ast.WalkSkipChildren, nil
		}
	}
	return ast.WalkContinue, nil
}

func (r *descriptionRenderer) styled(content string) string {
	style := r.style.NewStyle().Foreground(r.theme.NormalText)
	if r.bold > 0 {
		style = style.Bold(true)
	}
	if r.italics > 0 {
		style = style.Italic(true)
	}
	return style.Render(content)
}

func (r *descriptionRenderer) flush() {
	content := r.inline.String()
	r.inline.Reset()
	if content == "" {
		return
	}
	r.output.WriteString(ansi.Wrap(content, r.width, " ,.;-+|"))
	r.output.WriteString("\n\n")
}

func (r *descriptionRenderer) renderFencedCode(node *ast.FencedCodeBlock) {
	language := string(node.Language(r.source))
	var code strings.Builder
	lines := node.Lines()
	for index := 0; index < lines.Len(); index++ {
		segment := lines.At(index)
		code.Write(segment.Value(r.source))
	}

	highlighted := code.String()
	if language != "" {
		var buffer strings.Builder
		if err := quick.Highlight(&buffer, code.String(), language, "terminal256", "monokai"); err == nil {
			highlighted = buffer.String()
		}
	}
	r.output.WriteString(strings.TrimRight(highlighted, "\n"))
	r.output.WriteString("\n\n")
}
