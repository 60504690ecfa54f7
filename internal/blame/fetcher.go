// Package blame turns backend blame output into ordered, validated line
// records.
package blame

import (
	"context"
	"fmt"
	"strings"

	"github.com/wahlandcase/lineauthor/internal/git"
	"github.com/wahlandcase/lineauthor/internal/models"
)

// Fetcher invokes the backend blame operation for one file at one revision
type Fetcher struct {
	backend git.Backend
	root    string
}

// NewFetcher returns a Fetcher for the repository rooted at root
func NewFetcher(backend git.Backend, root string) *Fetcher {
	return &Fetcher{backend: backend, root: root}
}

// Result is the normalized output of a fetch
type Result struct {
	// Path is the repository-relative, slash-separated path that was blamed
	Path  string
	Lines []models.LineRecord
	// Commits is metadata the backend handed out for free while blaming
	Commits map[string]models.CommitInfo
}

// Fetch blames filePath at revision. A file with zero lines yields an empty
// result, not an error. Errors wrap git.ErrBackendUnavailable,
// git.ErrNotTracked or git.ErrRevisionMissing where they apply.
func (f *Fetcher) Fetch(ctx context.Context, filePath, revision string, opts git.BlameOptions) (Result, error) {
	rel, err := git.RelPath(f.root, filePath)
	if err != nil {
		return Result{}, err
	}

	res, err := f.backend.Blame(ctx, rel, revision, opts)
	if err != nil {
		return Result{}, fmt.Errorf("blame %s@%s: %w", rel, models.ShortHash(revision), err)
	}

	lines, err := normalize(res.Lines)
	if err != nil {
		return Result{}, fmt.Errorf("blame %s@%s: %w", rel, models.ShortHash(revision), err)
	}
	return Result{Path: rel, Lines: lines, Commits: res.Commits}, nil
}

// normalize checks that records arrive in file order and numbers them 1..N.
// Backends that report no line numbers (zero) are numbered by position. A
// trailing carriage return is dropped from the content.
func normalize(in []models.LineRecord) ([]models.LineRecord, error) {
	out := make([]models.LineRecord, len(in))
	for i, rec := range in {
		want := i + 1
		if rec.LineNumber != 0 && rec.LineNumber != want {
			return nil, fmt.Errorf("line %d reported as %d", want, rec.LineNumber)
		}
		if rec.CommitID == "" {
			return nil, fmt.Errorf("line %d has no commit", want)
		}
		out[i] = models.NewLineRecord(want, rec.CommitID, strings.TrimSuffix(rec.Content, "\r"))
	}
	return out, nil
}
