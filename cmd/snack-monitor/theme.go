// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

package main

import "github.com/charmbracelet/lipgloss"

// Theme defines the color palette used throughout the monitor TUI.
type Theme struct {
	HeaderForeground lipgloss.Color
	NormalText       lipgloss.Color
	FaintText        lipgloss.Color
	BorderColor      lipgloss.Color
	StatusStarted    lipgloss.Color
	StatusStopped    lipgloss.Color
	StatusResolving  lipgloss.Color
	SelectionBg      lipgloss.Color
}

// DefaultTheme is the built-in dark-terminal color scheme.
var DefaultTheme = Theme{
	HeaderForeground: lipgloss.Color("39"),
	NormalText:        lipgloss.Color("252"),
	FaintText:         lipgloss.Color("244"),
	BorderColor:       lipgloss.Color("238"),
	StatusStarted:     lipgloss.Color("42"),
	StatusStopped:     lipgloss.Color("203"),
	StatusResolving:   lipgloss.Color("214"),
	SelectionBg:       lipgloss.Color("237"),
}
