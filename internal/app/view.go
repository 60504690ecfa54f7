package app

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/wahlandcase/lineauthor/internal/scheduler"
	"github.com/wahlandcase/lineauthor/internal/ui"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

const (
	headerHeight = 1
	statusHeight = 2
)

// View renders the current state
func (m Model) View() string {
	if m.shouldQuit {
		return ""
	}

	bodyHeight := max(m.height-headerHeight-statusHeight, 1)
	var body string
	switch m.screen {
	case ScreenLoading:
		body = m.renderLoading(bodyHeight)
	case ScreenError:
		body = m.renderError(bodyHeight)
	case ScreenRecent:
		body = m.renderRecent(bodyHeight)
	default:
		if m.ready {
			body = m.viewport.View()
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderStatusBar(),
	)
}

func (m Model) renderHeader() string {
	r := m.gutter.Renderer()
	settings := m.provider.Settings()

	pathStyle := r.NewStyle().Foreground(ui.ColorCyan).Bold(true)
	branchStyle := r.NewStyle().Foreground(ui.ColorMagenta)
	dimStyle := r.NewStyle().Foreground(ui.ColorDarkGray)

	parts := []string{
		pathStyle.Render(m.relPath),
		branchStyle.Render("⎇ " + m.repo.DisplayBranch()),
	}
	if !settings.Enabled {
		parts = append(parts, dimStyle.Render("line authoring off"))
	} else {
		state, open := m.provider.State(m.path)
		if open {
			stateStyle := r.NewStyle().Foreground(ui.StateColor(state))
			label := ui.StatusIcon(state, m.spinnerFrame) + " " + strings.ToLower(state.String())
			if m.loading && state == scheduler.Idle {
				label = ui.Spinner(m.spinnerFrame) + " loading"
			}
			parts = append(parts, stateStyle.Render(label))
		}
		parts = append(parts, dimStyle.Render("movement: "+string(settings.Movement)))
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderLoading(height int) string {
	r := m.gutter.Renderer()
	spinnerStyle := r.NewStyle().Foreground(ui.ColorYellow)
	text := spinnerStyle.Render(ui.Spinner(m.spinnerFrame)) + " Loading " + m.relPath
	return r.Place(m.width, height, lipgloss.Center, lipgloss.Center, text)
}

func (m Model) renderError(height int) string {
	r := m.gutter.Renderer()
	errStyle := r.NewStyle().Foreground(ui.ColorRed).Bold(true)
	box := ui.Box(r, errStyle.Render("Error")+"\n\n"+m.errorMessage, ui.ColorRed)
	return r.Place(m.width, height, lipgloss.Center, lipgloss.Center, box)
}

func (m Model) renderRecent(height int) string {
	r := m.gutter.Renderer()
	entries := inRepo(m.history, m.repo.Root)

	lines := []string{ui.SectionHeader(r, "RECENT FILES", ui.ColorBlue), ""}
	selected := r.NewStyle().Foreground(ui.ColorBlue).Bold(true)
	dim := r.NewStyle().Foreground(ui.ColorDarkGray)
	now := m.now()
	for i, e := range entries {
		name := e.Path
		if rel, err := filepath.Rel(m.repo.Root, e.Path); err == nil {
			name = filepath.ToSlash(rel)
		}
		arrow := "  "
		style := r.NewStyle()
		if i == m.historyIndex {
			arrow = "▶ "
			style = selected
		}
		lines = append(lines, fmt.Sprintf("  %s%s  %s",
			style.Render(arrow),
			style.Render(name),
			dim.Render(humanize.RelTime(e.ViewedAt, now, "ago", "from now")),
		))
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	return r.NewStyle().Height(height).Render(strings.Join(lines, "\n"))
}

func (m Model) renderStatusBar() string {
	r := m.gutter.Renderer()
	var hints []string

	switch m.screen {
	case ScreenViewer:
		hints = []string{
			ui.KeyBinding(r, "↑↓", "Scroll", ui.ColorWhite),
			ui.KeyBinding(r, "f", "Movement", ui.ColorYellow),
			ui.KeyBinding(r, "a", "Author", ui.ColorGreen),
			ui.KeyBinding(r, "d", "Date", ui.ColorGreen),
			ui.KeyBinding(r, "h", "Hash", ui.ColorGreen),
			ui.KeyBinding(r, "w", "Whitespace", ui.ColorYellow),
			ui.KeyBinding(r, "r", "Refresh", ui.ColorBlue),
			ui.KeyBinding(r, "e", "Config", ui.ColorMagenta),
		}
		if len(inRepo(m.history, m.repo.Root)) > 1 {
			hints = append(hints, ui.KeyBinding(r, "o", "Recent", ui.ColorBlue))
		}
		hints = append(hints, ui.KeyBinding(r, "q", "Quit", ui.ColorRed))
	case ScreenRecent:
		hints = []string{
			ui.KeyBinding(r, "↑↓", "Navigate", ui.ColorWhite),
			ui.KeyBinding(r, "Enter", "Open", ui.ColorGreen),
			ui.KeyBinding(r, "Esc", "Back", ui.ColorYellow),
		}
	case ScreenError:
		hints = []string{
			ui.KeyBinding(r, "Enter", "Back", ui.ColorGreen),
			ui.KeyBinding(r, "q", "Quit", ui.ColorRed),
		}
	default:
		hints = []string{ui.KeyBinding(r, "q", "Quit", ui.ColorRed)}
	}

	settings := m.provider.Settings()
	second := m.gutter.Legend(settings.ColorNewest, settings.ColorOldest, 12)
	if m.statusMessage != "" {
		second += "  " + r.NewStyle().Foreground(ui.ColorYellow).Render(m.statusMessage)
	} else if m.ready && m.screen == ScreenViewer {
		second += "  " + r.NewStyle().Foreground(ui.ColorDarkGray).Render(fmt.Sprintf("%3.f%%", m.viewport.ScrollPercent()*100))
	}
	return strings.Join(hints, "  ") + "\n" + second
}
