package git

import (
	"context"
	"errors"
	"fmt"

	"github.com/wahlandcase/lineauthor/internal/models"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// GoGitBackend is the embedded backend. It needs no git binary but does not
// support blaming unsaved contents or ignoring whitespace.
type GoGitBackend struct {
	repo   *git.Repository
	logger *log.Logger
}

// NewGoGitBackend opens the repository containing root
func NewGoGitBackend(root string, logger *log.Logger) (*GoGitBackend, error) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open %s: %v: %w", root, err, ErrBackendUnavailable)
	}
	return NewGoGitBackendFromRepo(repo, logger), nil
}

// NewGoGitBackendFromRepo wraps an already opened repository
func NewGoGitBackendFromRepo(repo *git.Repository, logger *log.Logger) *GoGitBackend {
	if logger == nil {
		logger = log.Default()
	}
	return &GoGitBackend{repo: repo, logger: logger}
}

func (b *GoGitBackend) commit(ctx context.Context, rev string) (*object.Commit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if rev == "" {
		rev = "HEAD"
	}
	hash, err := b.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %v: %w", rev, err, ErrRevisionMissing)
	}
	c, err := b.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("commit %s: %v: %w", rev, err, ErrRevisionMissing)
	}
	return c, nil
}

func (b *GoGitBackend) Head(ctx context.Context) (string, error) {
	c, err := b.commit(ctx, "HEAD")
	if err != nil {
		return "", err
	}
	return c.Hash.String(), nil
}

func (b *GoGitBackend) ResolveRevision(ctx context.Context, rev string) (string, error) {
	c, err := b.commit(ctx, rev)
	if err != nil {
		return "", err
	}
	return c.Hash.String(), nil
}

func (b *GoGitBackend) Blame(ctx context.Context, path, rev string, opts BlameOptions) (BlameResult, error) {
	if opts.Contents != nil || opts.IgnoreWhitespace {
		b.logger.Debug("go-git blame ignores working contents and whitespace options", "path", path)
	}
	c, err := b.commit(ctx, rev)
	if err != nil {
		return BlameResult{}, err
	}
	if _, err := c.File(path); err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return BlameResult{}, fmt.Errorf("%s at %s: %w", path, models.ShortHash(c.Hash.String()), ErrNotTracked)
		}
		return BlameResult{}, err
	}

	res, err := git.Blame(c, path)
	if err != nil {
		return BlameResult{}, fmt.Errorf("blame %s: %w", path, err)
	}

	result := BlameResult{Commits: make(map[string]models.CommitInfo)}
	for i, l := range res.Lines {
		id := l.Hash.String()
		result.Lines = append(result.Lines, models.NewLineRecord(i+1, id, l.Text))
		if _, ok := result.Commits[id]; !ok {
			result.Commits[id] = models.NewCommitInfo(id, l.AuthorName, l.Author, l.Date)
		}
	}
	return result, nil
}

func (b *GoGitBackend) CommitInfo(ctx context.Context, id string) (models.CommitInfo, error) {
	c, err := b.commit(ctx, id)
	if err != nil {
		return models.CommitInfo{}, err
	}
	return models.NewCommitInfo(c.Hash.String(), c.Author.Name, c.Author.Email, c.Author.When), nil
}

func (b *GoGitBackend) Parents(ctx context.Context, id string) ([]string, error) {
	c, err := b.commit(ctx, id)
	if err != nil {
		return nil, err
	}
	parents := make([]string, 0, len(c.ParentHashes))
	for _, h := range c.ParentHashes {
		parents = append(parents, h.String())
	}
	return parents, nil
}

func (b *GoGitBackend) ChangedFiles(ctx context.Context, id string) ([]string, error) {
	c, err := b.commit(ctx, id)
	if err != nil {
		return nil, err
	}
	tree, err := c.Tree()
	if err != nil {
		return nil, err
	}

	var files []string
	if c.NumParents() == 0 {
		err = tree.Files().ForEach(func(f *object.File) error {
			files = append(files, f.Name)
			return nil
		})
		return files, err
	}

	parent, err := c.Parent(0)
	if err != nil {
		return nil, fmt.Errorf("parent of %s: %v: %w", models.ShortHash(id), err, ErrRevisionMissing)
	}
	parentTree, err := parent.Tree()
	if err != nil {
		return nil, err
	}
	changes, err := object.DiffTreeWithOptions(ctx, parentTree, tree, object.DefaultDiffTreeOptions)
	if err != nil {
		return nil, err
	}
	for _, ch := range changes {
		// Deletions have no "to" side
		if ch.To.Name != "" {
			files = append(files, ch.To.Name)
		}
	}
	return files, nil
}

func (b *GoGitBackend) FileLines(ctx context.Context, id, path string) ([]string, error) {
	c, err := b.commit(ctx, id)
	if err != nil {
		return nil, err
	}
	f, err := c.File(path)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, fmt.Errorf("%s at %s: %w", path, models.ShortHash(id), ErrNotTracked)
		}
		return nil, err
	}
	contents, err := f.Contents()
	if err != nil {
		return nil, err
	}
	return splitLines(contents), nil
}

var _ Backend = (*GoGitBackend)(nil)
