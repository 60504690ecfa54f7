package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/wahlandcase/lineauthor/internal/models"

	"github.com/charmbracelet/log"
)

// BlameOptions tunes a single blame invocation
type BlameOptions struct {
	// IgnoreWhitespace ignores whitespace-only changes (git blame -w)
	IgnoreWhitespace bool
	// Contents, when non-nil, is blamed in place of the file at the
	// revision, so unsaved edits show up as uncommitted lines
	Contents []byte
}

// BlameResult is the ordered per-line output of a blame
type BlameResult struct {
	Lines []models.LineRecord
	// Commits holds metadata the backend learned while blaming; may be
	// incomplete or nil
	Commits map[string]models.CommitInfo
}

// Backend is everything the line author engine needs from version control.
// Which concrete implementation is in use does not matter to callers.
type Backend interface {
	// Head resolves HEAD to a full commit id
	Head(ctx context.Context) (string, error)
	// ResolveRevision turns a commit id, short id or ref into a full
	// commit id
	ResolveRevision(ctx context.Context, rev string) (string, error)
	// Blame returns the line-to-commit mapping for path at rev
	Blame(ctx context.Context, path, rev string, opts BlameOptions) (BlameResult, error)
	// CommitInfo returns author metadata for a commit
	CommitInfo(ctx context.Context, id string) (models.CommitInfo, error)
	// Parents returns the parent ids of a commit, first parent first
	Parents(ctx context.Context, id string) ([]string, error)
	// ChangedFiles lists files a commit added or modified relative to its
	// first parent (every file for a root commit)
	ChangedFiles(ctx context.Context, id string) ([]string, error)
	// FileLines returns the lines of path as of commit id
	FileLines(ctx context.Context, id, path string) ([]string, error)
}

// Kind selects a backend implementation
type Kind string

const (
	// KindCLI shells out to a git binary
	KindCLI Kind = "cli"
	// KindGoGit uses the embedded go-git implementation
	KindGoGit Kind = "go-git"
)

// Options configures Open
type Options struct {
	Kind Kind
	// Dir is any directory inside the working tree
	Dir string
	// Binary is the git executable for KindCLI
	Binary string
	// Env holds extra KEY=VALUE pairs for KindCLI
	Env []string
	// ExtraPath entries are prepended to PATH for KindCLI
	ExtraPath []string
	Logger    *log.Logger
}

// Open finds the repository containing opts.Dir and returns a backend for it
func Open(opts Options) (Backend, models.RepoInfo, error) {
	repo, err := FindRepo(opts.Dir)
	if err != nil {
		return nil, models.RepoInfo{}, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	switch Kind(strings.ToLower(string(opts.Kind))) {
	case KindCLI, "":
		b, err := NewCLIBackend(repo.Root, opts.Binary, opts.Env, opts.ExtraPath, logger)
		if err != nil {
			return nil, repo, err
		}
		return b, repo, nil
	case KindGoGit:
		b, err := NewGoGitBackend(repo.Root, logger)
		if err != nil {
			return nil, repo, err
		}
		return b, repo, nil
	default:
		return nil, repo, fmt.Errorf("unknown git backend %q: %w", opts.Kind, ErrBackendUnavailable)
	}
}

// splitLines splits file content into lines without their terminators.
// Empty content has zero lines.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	content = strings.TrimSuffix(content, "\n")
	lines := strings.Split(content, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
