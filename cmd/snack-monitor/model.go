// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/starryskadi/snack-sdk/session"
	"github.com/starryskadi/snack-sdk/transport"
)

// stateMsg carries a fresh session.StateEvent into the bubbletea loop.
// The monitor never mutates session state itself — it is read-only.
type stateMsg session.StateEvent

// presenceMsg carries a device join/leave/timeout into the loop.
type presenceMsg session.PresenceEvent

// logMsg carries a verbose log line into the loop.
type logMsg session.LogEvent

// errorMsg carries a dependency-resolution error into the loop.
type errorMsg session.ErrorEvent

// watch builds the tea.Cmd that subscribes to a session's listeners
// and forwards every event onto a single channel the bubbletea loop
// can block-read from. The subscriptions live for the program's
// lifetime; there is no unsubscribe path because the monitor always
// owns the session for its full process lifetime.
func watch(sess *session.Session) (tea.Cmd, <-chan tea.Msg) {
	events := make(chan tea.Msg, 64)

	sess.AddStateListener(func(event session.StateEvent) {
		events <- stateMsg(event)
	})
	sess.AddPresenceListener(func(event session.PresenceEvent) {
		events <- presenceMsg(event)
	})
	sess.AddLogListener(func(event session.LogEvent) {
		events <- logMsg(event)
	})
	sess.AddErrorListener(func(event session.ErrorEvent) {
		events <- errorMsg(event)
	})

	waitForEvent := func() tea.Msg {
		return <-events
	}
	return waitForEvent, events
}

// focusRegion identifies which pane keyboard input is routed to.
type focusRegion int

const (
	focusFiles focusRegion = iota
	focusPreview
)

// Model is the top-level bubbletea model for the session monitor.
type Model struct {
	session      *session.Session
	waitForEvent tea.Cmd
	theme        Theme
	keys         KeyMap

	width  int
	height int
	focus  focusRegion

	state     session.StateEvent
	haveState bool
	presence  map[string]transport.Device

	fileNames   []string
	filtered    []string
	cursor      int
	filterInput string
	filterOn    bool

	previewOffset int

	statusLine string
}

// NewModel builds a Model bound to a live session. waitForEvent is the
// tea.Cmd returned by watch(sess) and is chained back into Init/Update
// so the loop keeps listening after every processed event.
func NewModel(sess *session.Session, waitForEvent tea.Cmd) Model {
	return Model{
		session:      sess,
		waitForEvent: waitForEvent,
		theme:        DefaultTheme,
		keys:         DefaultKeyMap,
		presence:     make(map[string]transport.Device),
		focus:        focusFiles,
	}
}

func (model Model) Init() tea.Cmd {
	return model.waitForEvent
}

func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		return model, nil

	case tea.KeyMsg:
		return model.handleKey(message)

	case stateMsg:
		model.state = session.StateEvent(message)
		model.haveState = true
		model.rebuildFileNames()
		return model, model.waitForEvent

	case presenceMsg:
		event := session.PresenceEvent(message)
		switch event.Kind {
		case transport.PresenceJoin:
			model.presence[event.Device.ID] = event.Device
		case transport.PresenceLeave, transport.PresenceTimeout:
			delete(model.presence, event.Device.ID)
		}
		return model, model.waitForEvent

	case logMsg:
		event := session.LogEvent(message)
		model.statusLine = event.Message
		return model, model.waitForEvent

	case errorMsg:
		event := session.ErrorEvent(message)
		model.statusLine = fmt.Sprintf("resolve error: %s@%s: %s", event.Name, event.Version, event.Message)
		return model, model.waitForEvent
	}

	return model, nil
}

func (model Model) handleKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	if model.filterOn {
		switch {
		case message.Type == tea.KeyEsc:
			model.filterOn = false
			model.filterInput = ""
			model.rebuildFileNames()
			return model, nil
		case message.Type == tea.KeyEnter:
			model.filterOn = false
			return model, nil
		case message.Type == tea.KeyBackspace:
			if len(model.filterInput) > 0 {
				runes := []rune(model.filterInput)
				model.filterInput = string(runes[:len(runes)-1])
			}
			model.applyFilter()
			return model, nil
		case message.Type == tea.KeyRunes || message.Type == tea.KeySpace:
			model.filterInput += string(message.Runes)
			if message.Type == tea.KeySpace {
				model.filterInput += " "
			}
			model.applyFilter()
			return model, nil
		case message.Type == tea.KeyCtrlC:
			return model, tea.Quit
		}
		return model, nil
	}

	switch {
	case key.Matches(message, model.keys.Quit):
		return model, tea.Quit
	case key.Matches(message, model.keys.FilterActivate):
		model.filterOn = true
		return model, nil
	case key.Matches(message, model.keys.FilterClear):
		model.filterInput = ""
		model.rebuildFileNames()
		return model, nil
	case key.Matches(message, model.keys.FocusToggle):
		if model.focus == focusFiles {
			model.focus = focusPreview
		} else {
			model.focus = focusFiles
		}
		return model, nil
	case key.Matches(message, model.keys.Up):
		if model.focus == focusFiles && model.cursor > 0 {
			model.cursor--
		} else if model.focus == focusPreview && model.previewOffset > 0 {
			model.previewOffset--
		}
		return model, nil
	case key.Matches(message, model.keys.Down):
		if model.focus == focusFiles && model.cursor < len(model.filtered)-1 {
			model.cursor++
		} else if model.focus == focusPreview {
			model.previewOffset++
		}
		return model, nil
	case key.Matches(message, model.keys.PageUp):
		model.previewOffset -= 10
		if model.previewOffset < 0 {
			model.previewOffset = 0
		}
		return model, nil
	case key.Matches(message, model.keys.PageDown):
		model.previewOffset += 10
		return model, nil
	}

	return model, nil
}

func (model *Model) rebuildFileNames() {
	names := make([]string, 0, len(model.state.Files))
	for name := range model.state.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	model.fileNames = names
	model.applyFilter()
}

func (model *Model) applyFilter() {
	model.filtered = fuzzyFilter(model.fileNames, model.filterInput)
	if model.cursor >= len(model.filtered) {
		model.cursor = len(model.filtered) - 1
	}
	if model.cursor < 0 {
		model.cursor = 0
	}
}

func (model Model) View() string {
	if model.width == 0 {
		return "loading…"
	}

	header := model.renderHeader()
	footer := model.renderFooter()

	bodyHeight := model.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if bodyHeight < 1 {
		bodyHeight = 1
	}

	listWidth := model.width / 3
	if listWidth < 20 {
		listWidth = 20
	}
	previewWidth := model.width - listWidth - 1

	list := model.renderFileList(listWidth, bodyHeight)
	preview := model.renderPreview(previewWidth, bodyHeight)

	body := lipgloss.JoinHorizontal(lipgloss.Top, list, preview)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (model Model) renderHeader() string {
	state := "CREATED"
	saved := ""
	resolving := ""
	sdk := ""
	name := ""
	if model.haveState {
		state = string(model.state.State)
		sdk = model.state.SDKVersion
		name = model.state.Name
		if model.state.IsSaved {
			saved = "saved"
		} else {
			saved = "unsaved"
		}
		if model.state.IsResolving {
			resolving = " resolving…"
		}
	}

	statusColor := model.theme.StatusStopped
	if state == string(session.StateStarted) {
		statusColor = model.theme.StatusStarted
	}

	statusStyle := lipgloss.NewStyle().Bold(true).Foreground(statusColor)
	title := lipgloss.NewStyle().Bold(true).Foreground(model.theme.HeaderForeground).Render(model.session.Channel())
	if name != "" {
		title += "  " + name
	}

	line := fmt.Sprintf("%s  %s  sdk %s  %s%s  devices %d",
		title, statusStyle.Render(state), sdk, saved, resolving, len(model.presence))
	return lipgloss.NewStyle().Width(model.width).Padding(0, 1).Render(line)
}

func (model Model) renderFooter() string {
	style := lipgloss.NewStyle().Foreground(model.theme.FaintText).Width(model.width).Padding(0, 1)
	if model.filterOn {
		cursor := lipgloss.NewStyle().Foreground(model.theme.HeaderForeground).Render("▎")
		return style.Render("/ " + model.filterInput + cursor)
	}
	if model.statusLine != "" {
		return style.Render(model.statusLine)
	}
	return style.Render("tab: switch pane  /: fuzzy find  q: quit")
}

func (model Model) renderFileList(width, height int) string {
	border := lipgloss.NewStyle().
		Width(width).Height(height).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(model.theme.BorderColor).
		BorderRight(true)

	var lines []string
	for index, name := range model.filtered {
		line := name
		style := lipgloss.NewStyle().Foreground(model.theme.NormalText)
		if index == model.cursor && model.focus == focusFiles {
			style = style.Background(model.theme.SelectionBg).Bold(true)
		}
		if file, ok := model.state.Files[name]; ok && file.Kind == session.AssetFile {
			style = style.Foreground(model.theme.FaintText)
		}
		lines = append(lines, style.Width(width-2).Render(" "+line))
	}
	return border.Render(strings.Join(lines, "\n"))
}

func (model Model) renderPreview(width, height int) string {
	box := lipgloss.NewStyle().Width(width).Height(height).Padding(0, 1)

	if len(model.filtered) == 0 || model.cursor >= len(model.filtered) {
		if model.state.Description != "" {
			return box.Render(renderDescription(model.state.Description, model.theme, width-2))
		}
		return box.Render(lipgloss.NewStyle().Foreground(model.theme.FaintText).Render("no files"))
	}

	name := model.filtered[model.cursor]
	file, ok := model.state.Files[name]
	if !ok {
		return box.Render("")
	}
	if file.Kind != session.CodeFile {
		return box.Render(lipgloss.NewStyle().Foreground(model.theme.FaintText).Render(name + " (asset: " + file.URL + ")"))
	}

	highlighted := highlightSource(name, file.Text)
	lines := strings.Split(highlighted, "\n")
	offset := model.previewOffset
	if offset > len(lines) {
		offset = len(lines)
	}
	if offset+height > len(lines) {
		offset = len(lines) - height
	}
	if offset < 0 {
		offset = 0
	}
	end := offset + height
	if end > len(lines) {
		end = len(lines)
	}
	return box.Render(strings.Join(lines[offset:end], "\n"))
}

// highlightSource syntax-highlights code using the file's extension
// to pick a lexer, falling back to plain text for unrecognized names.
func highlightSource(name, code string) string {
	lexer := lexers.Match(name)
	if lexer == nil {
		return code
	}
	var buffer strings.Builder
	if err := quick.Highlight(&buffer, code, lexer.Config().Name, "terminal256", "monokai"); err != nil {
		return code
	}
	return buffer.String()
}
