package ui

import (
	"fmt"
	"strings"

	"github.com/wahlandcase/lineauthor/internal/scheduler"

	"github.com/charmbracelet/lipgloss"
)

// SectionHeader creates a styled section header with a title and color
// Example: "─── TITLE ───────────"
func SectionHeader(r *lipgloss.Renderer, title string, color lipgloss.Color) string {
	dashes := strings.Repeat("─", max(25-len(title), 0))
	headerStyle := r.NewStyle().Foreground(color)
	titleStyle := r.NewStyle().Foreground(color).Bold(true)

	return fmt.Sprintf("%s%s%s",
		headerStyle.Render("  ─── "),
		titleStyle.Render(title),
		headerStyle.Render(" "+dashes),
	)
}

// Spinner frames using braille characters
var SpinnerFrames = []rune{'⠋', '⠙', '⠹', '⠸', '⠼', '⠴', '⠦', '⠧', '⠇', '⠏'}

// Spinner returns the spinner character at the given frame index
func Spinner(frame int) string {
	return string(SpinnerFrames[frame%len(SpinnerFrames)])
}

// KeyBinding renders a key binding hint
func KeyBinding(r *lipgloss.Renderer, key, description string, color lipgloss.Color) string {
	keyStyle := r.NewStyle().Foreground(color).Bold(true)
	descStyle := r.NewStyle().Foreground(ColorWhite)

	return fmt.Sprintf("%s %s",
		keyStyle.Render(key),
		descStyle.Render(description),
	)
}

// StatusIcon returns the icon for a refresh state. Computing animates with
// the spinner frame.
func StatusIcon(state scheduler.State, frame int) string {
	switch state {
	case scheduler.Idle:
		return "✓"
	case scheduler.Computing:
		return Spinner(frame)
	case scheduler.Invalidated:
		return "↻"
	default:
		return "·"
	}
}

// CheckLine renders one `doctor` result row
func CheckLine(r *lipgloss.Renderer, ok bool, label, detail string) string {
	icon, color := "✓", ColorGreen
	if !ok {
		icon, color = "✗", ColorRed
	}
	iconStyle := r.NewStyle().Foreground(color).Bold(true)
	labelStyle := r.NewStyle().Bold(true)
	detailStyle := r.NewStyle().Foreground(ColorDarkGray)
	return fmt.Sprintf("  %s %s %s",
		iconStyle.Render(icon),
		labelStyle.Render(fmt.Sprintf("%-14s", label)),
		detailStyle.Render(detail),
	)
}

// Box creates a rounded bordered box
func Box(r *lipgloss.Renderer, content string, borderColor lipgloss.Color) string {
	style := r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 1)

	return style.Render(content)
}
