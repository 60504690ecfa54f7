package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wahlandcase/lineauthor/internal/git"
	"github.com/wahlandcase/lineauthor/internal/models"
	"github.com/wahlandcase/lineauthor/internal/ui"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

var (
	movementCycle = []models.MovementMode{models.FollowInactive, models.FollowSameCommit, models.FollowAllCommits}
	authorCycle   = []models.AuthorDisplay{models.AuthorInitials, models.AuthorFirstName, models.AuthorLastName, models.AuthorFull, models.AuthorHide}
	dateCycle     = []models.DateDisplay{models.DateOnly, models.DateTime, models.DateNaturalLanguage, models.DateCustom, models.DateHide}
)

// next returns the element after cur, wrapping around
func next[T comparable](cycle []T, cur T) T {
	for i, v := range cycle {
		if v == cur {
			return cycle[(i+1)%len(cycle)]
		}
	}
	return cycle[0]
}

// Update handles all messages and updates state
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case tickMsg:
		m.spinnerFrame = (m.spinnerFrame + 1) % len(ui.SpinnerFrames)
		return m, tickCmd()

	// Task result messages
	case fileLoadedResult:
		return m.handleFileLoaded(msg)

	case annotationsLoadedResult:
		return m.handleAnnotationsLoaded(msg)

	case snapshotUpdatedMsg:
		// Continue listening for more updates
		cmds := []tea.Cmd{listenForUpdates(m.updates)}
		if msg.update.Path == m.path && msg.update.Snapshot != nil {
			cmds = append(cmds, annotateCmd(m.provider, msg.update.Snapshot))
		}
		return m, tea.Batch(cmds...)

	case fileEditedMsg:
		cmds := []tea.Cmd{listenForEdits(m.edits)}
		if msg.path == m.path {
			cmds = append(cmds, loadFileCmd(m.path))
		}
		return m, tea.Batch(cmds...)

	case trackResult:
		if msg.err != nil {
			m.statusMessage = "not watching file: " + msg.err.Error()
		}
		return m, nil

	case configSavedResult:
		if msg.err != nil {
			m.statusMessage = "config not saved: " + msg.err.Error()
		}
		return m, nil

	case configEditedResult:
		return m.handleConfigEdited(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleFileLoaded(msg fileLoadedResult) (tea.Model, tea.Cmd) {
	if msg.path != m.path {
		return m, nil
	}
	if msg.err != nil {
		m.screen = ScreenError
		m.errorMessage = msg.err.Error()
		return m, nil
	}

	m.lines = splitLines(string(msg.data))
	m.screen = ScreenViewer
	m.refreshContent()

	if m.opened {
		// The new snapshot arrives through the update subscription
		m.provider.Edited(m.path, msg.data)
		return m, nil
	}
	m.opened = true
	m.provider.OpenContents(m.path, msg.data)
	m.history = recordView(m.history, m.path, m.repo.Root, m.now())
	saveHistory(m.historyPath, m.history)
	return m, annotationsCmd(m.provider, m.path)
}

func (m Model) handleAnnotationsLoaded(msg annotationsLoadedResult) (tea.Model, tea.Cmd) {
	if msg.path != m.path {
		return m, nil
	}
	m.loading = false
	switch {
	case msg.err != nil && errors.Is(msg.err, git.ErrBackendUnavailable):
		m.statusMessage = "git unavailable, line authoring disabled: " + msg.err.Error()
	case msg.err != nil:
		m.statusMessage = msg.err.Error()
	case msg.anns == nil:
		m.statusMessage = "no line authoring for this file"
	default:
		m.statusMessage = ""
	}
	m.anns = msg.anns
	m.refreshContent()
	return m, nil
}

func (m Model) handleConfigEdited(msg configEditedResult) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.statusMessage = "config: " + msg.err.Error()
		return m, nil
	}
	m.cfg = msg.cfg
	return m.applySettings("config reloaded")
}

// handleKey processes keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Global quit
	if msg.Type == tea.KeyCtrlC {
		m.shouldQuit = true
		return m, tea.Quit
	}

	switch m.screen {
	case ScreenViewer:
		return m.handleViewerKey(msg)
	case ScreenRecent:
		return m.handleRecentKey(msg)
	case ScreenError:
		return m.handleErrorKey(msg)
	}
	if msg.String() == "q" {
		m.shouldQuit = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) handleViewerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	settings := m.provider.Settings()

	switch msg.String() {
	case "q":
		m.shouldQuit = true
		return m, tea.Quit
	case "f":
		return m.set("line_author.follow_movement", string(next(movementCycle, settings.Movement)))
	case "w":
		return m.set("line_author.ignore_whitespace", strconv.FormatBool(!settings.IgnoreWhitespace))
	case "a":
		return m.set("line_author.author_display", string(next(authorCycle, settings.AuthorDisplay)))
	case "d":
		return m.set("line_author.date_display", string(next(dateCycle, settings.DateDisplay)))
	case "h":
		return m.set("line_author.show_commit_hash", strconv.FormatBool(!settings.ShowCommitHash))
	case "r":
		m.provider.RepositoryChanged()
		m.statusMessage = "refreshing"
		return m, nil
	case "e":
		return m, editConfigCmd(m.cfg)
	case "o":
		if len(inRepo(m.history, m.repo.Root)) > 1 {
			m.screen = ScreenRecent
			m.historyIndex = 0
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleRecentKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	entries := inRepo(m.history, m.repo.Root)
	switch msg.String() {
	case "q":
		m.shouldQuit = true
		return m, tea.Quit
	case "esc", "o":
		m.screen = ScreenViewer
	case "up", "k":
		if m.historyIndex > 0 {
			m.historyIndex--
		}
	case "down", "j":
		if m.historyIndex < len(entries)-1 {
			m.historyIndex++
		}
	case "enter":
		if m.historyIndex >= len(entries) {
			return m, nil
		}
		target := entries[m.historyIndex].Path
		if target == m.path {
			m.screen = ScreenViewer
			return m, nil
		}
		m.provider.Close(m.path)
		m.setPath(target)
		m.screen = ScreenLoading
		cmds := []tea.Cmd{loadFileCmd(m.path)}
		if m.track != nil {
			cmds = append(cmds, trackCmd(m.track, m.path))
		}
		return m, tea.Batch(cmds...)
	}
	return m, nil
}

func (m Model) handleErrorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "enter":
		if m.lines == nil {
			m.shouldQuit = true
			return m, tea.Quit
		}
		m.screen = ScreenViewer
		m.errorMessage = ""
	}
	return m, nil
}

// set changes one option, applies it and persists the config
func (m Model) set(key, value string) (tea.Model, tea.Cmd) {
	if err := m.cfg.Set(key, value); err != nil {
		m.statusMessage = err.Error()
		return m, nil
	}
	return m.applySettings(fmt.Sprintf("%s: %s", strings.TrimPrefix(key, "line_author."), value))
}

func (m Model) applySettings(status string) (tea.Model, tea.Cmd) {
	settings := m.cfg.Settings()
	m.provider.UpdateSettings(settings)
	m.gutter.SetShowHash(settings.ShowCommitHash)
	m.statusMessage = status
	if !settings.Enabled {
		m.anns = nil
		m.refreshContent()
		return m, saveConfigCmd(m.cfg)
	}
	return m, tea.Batch(saveConfigCmd(m.cfg), annotationsCmd(m.provider, m.path))
}

// resize fits the viewport between the header and the status bar
func (m *Model) resize() {
	height := max(m.height-headerHeight-statusHeight, 1)
	if !m.ready {
		m.viewport = viewport.New(m.width, height)
		m.ready = true
	} else {
		m.viewport.Width = m.width
		m.viewport.Height = height
	}
	m.refreshContent()
}

// refreshContent re-renders the gutter and file into the viewport
func (m *Model) refreshContent() {
	if !m.ready {
		return
	}
	width := m.gutter.Width(m.anns)
	rendered := make([]string, len(m.lines))
	for i, line := range m.lines {
		var ann *models.Annotation
		if i < len(m.anns) && m.anns[i].LineNumber == i+1 {
			ann = &m.anns[i]
		}
		rendered[i] = m.gutter.Line(ann, width, expandTabs(line))
	}
	m.viewport.SetContent(strings.Join(rendered, "\n"))
}

func splitLines(content string) []string {
	if content == "" {
		return []string{}
	}
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", "    ")
}
