package ui

import (
	"github.com/wahlandcase/lineauthor/internal/scheduler"

	"github.com/charmbracelet/lipgloss"
)

// Note: Warp terminal fix is in internal/termfix package, imported first in main.go

var (
	ColorCyan     = lipgloss.Color("#00FFFF")
	ColorGreen    = lipgloss.Color("#00FF00")
	ColorYellow   = lipgloss.Color("#FFFF00")
	ColorRed      = lipgloss.Color("#FF0000")
	ColorMagenta  = lipgloss.Color("#FF00FF")
	ColorBlue     = lipgloss.Color("#5555FF")
	ColorPurple   = lipgloss.Color("#AA55FF")
	ColorOrange   = lipgloss.Color("#FFA500")
	ColorWhite    = lipgloss.Color("#FFFFFF")
	ColorBlack    = lipgloss.Color("#000000")
	ColorDarkGray = lipgloss.Color("8") // ANSI 8
)

// StateColor is the status bar color of a refresh state
func StateColor(state scheduler.State) lipgloss.Color {
	switch state {
	case scheduler.Idle:
		return ColorGreen
	case scheduler.Computing:
		return ColorYellow
	case scheduler.Invalidated:
		return ColorOrange
	default:
		return ColorWhite
	}
}
