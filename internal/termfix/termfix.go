// Package termfix corrects terminal environment variables before lipgloss
// and termenv probe them. Import it FIRST in main:
//
//	_ "github.com/wahlandcase/lineauthor/internal/termfix"
package termfix

import "os"

func init() {
	Apply(os.Getenv, os.Setenv)
}

// Apply rewrites the variables of terminals that misreport themselves
func Apply(getenv func(string) string, setenv func(string, string) error) {
	switch {
	case getenv("TERM_PROGRAM") == "WarpTerminal":
		// Warp answers terminal queries slowly; claiming a dumb TERM skips
		// them while keeping truecolor gutters
		_ = setenv("TERM", "dumb")
		_ = setenv("COLORTERM", "truecolor")
	case getenv("TERMINAL_EMULATOR") == "JetBrains-JediTerm" && getenv("COLORTERM") == "":
		_ = setenv("COLORTERM", "truecolor")
	}
}
