package git

import (
	"errors"
	"strings"
)

var (
	// ErrBackendUnavailable means git is missing, misconfigured, or the
	// directory is not a repository
	ErrBackendUnavailable = errors.New("git backend unavailable")
	// ErrNotTracked means the file is outside the repository or untracked
	ErrNotTracked = errors.New("file not tracked")
	// ErrRevisionMissing means the requested revision does not exist
	ErrRevisionMissing = errors.New("revision missing")
)

// GitError provides better context for git command failures
type GitError struct {
	Command string
	Output  string
	// Err is the sentinel the failure was classified as, if any
	Err error
}

func (e *GitError) Error() string {
	return "git " + e.Command + ": " + e.Output
}

func (e *GitError) Unwrap() error {
	return e.Err
}

// classifyOutput maps git's stderr to one of the sentinel errors
func classifyOutput(output string) error {
	out := strings.ToLower(output)
	switch {
	case strings.Contains(out, "not a git repository"):
		return ErrBackendUnavailable
	case strings.Contains(out, "no such path"),
		strings.Contains(out, "is outside repository"),
		strings.Contains(out, "does not exist in"),
		strings.Contains(out, "exists on disk, but not in"),
		strings.Contains(out, "no such file or directory"):
		return ErrNotTracked
	case strings.Contains(out, "unknown revision"),
		strings.Contains(out, "bad revision"),
		strings.Contains(out, "bad object"),
		strings.Contains(out, "invalid object name"),
		strings.Contains(out, "ambiguous argument 'head'"),
		strings.Contains(out, "needed a single revision"):
		return ErrRevisionMissing
	default:
		return nil
	}
}
