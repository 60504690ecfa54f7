package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Banner is the ASCII art shown above `lineauthor doctor` output
var Banner = []string{
	" _     ___ _   _ _____    _   _   _ _____ _   _  ___  ____  ",
	"| |   |_ _| \\ | | ____|  / \\ | | | |_   _| | | |/ _ \\|  _ \\ ",
	"| |    | ||  \\| |  _|   / _ \\| | | | | | | |_| | | | | |_) |",
	"| |___ | || |\\  | |___ / ___ \\ |_| | | | |  _  | |_| |  _ < ",
	"|_____|___|_| \\_|_____/_/   \\_\\___/  |_| |_| |_|\\___/|_| \\_\\",
}

// RenderBanner returns the styled banner as a string
func RenderBanner(r *lipgloss.Renderer) string {
	bannerStyle := r.NewStyle().Foreground(ColorCyan)

	var lines []string
	for _, line := range Banner {
		lines = append(lines, bannerStyle.Render(line))
	}
	return strings.Join(lines, "\n")
}
