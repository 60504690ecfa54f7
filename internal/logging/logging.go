// Package logging builds the charmbracelet/log loggers handed to every
// component.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// EnvLevel overrides the log level (debug, info, warn, error)
const EnvLevel = "LINEAUTHOR_LOG_LEVEL"

// DefaultLevel is used when EnvLevel is unset or invalid
const DefaultLevel = log.WarnLevel

// Level returns the level requested through EnvLevel
func Level() log.Level {
	raw := strings.TrimSpace(os.Getenv(EnvLevel))
	if raw == "" {
		return DefaultLevel
	}
	lvl, err := log.ParseLevel(strings.ToLower(raw))
	if err != nil {
		return DefaultLevel
	}
	return lvl
}

// New returns a logger writing to w at the requested level
func New(w io.Writer) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Level:           Level(),
		ReportTimestamp: true,
		Prefix:          "lineauthor",
	})
}

// Path returns the log file used while the viewer owns the terminal
func Path() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "lineauthor", "lineauthor.log"), nil
}

// OpenFile returns a logger appending to path. Close the returned file when
// done.
func OpenFile(path string) (*log.Logger, *os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := New(f)
	logger.SetFormatter(log.LogfmtFormatter)
	return logger, f, nil
}
