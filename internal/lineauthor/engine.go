// Package lineauthor computes per-line authorship for files in a git
// repository and turns it into gutter annotations.
package lineauthor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wahlandcase/lineauthor/internal/blame"
	"github.com/wahlandcase/lineauthor/internal/commitcache"
	"github.com/wahlandcase/lineauthor/internal/config"
	"github.com/wahlandcase/lineauthor/internal/git"
	"github.com/wahlandcase/lineauthor/internal/models"
	"github.com/wahlandcase/lineauthor/internal/movement"

	"github.com/charmbracelet/log"
)

// ErrDisabled is returned after the backend was reported unavailable, until
// Reset is called
var ErrDisabled = errors.New("line authoring disabled")

// Engine produces attribution snapshots: blame at HEAD, movement
// resolution, then origin commit times
type Engine struct {
	backend  git.Backend
	repo     models.RepoInfo
	fetcher  *blame.Fetcher
	resolver *movement.Resolver
	commits  *commitcache.Cache
	logger   *log.Logger
	now      func() time.Time

	mu sync.Mutex
	// unavailable holds the error that disabled the engine
	unavailable error
}

// NewEngine creates an engine for the repository at repo.Root
func NewEngine(backend git.Backend, repo models.RepoInfo, commits *commitcache.Cache, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		backend:  backend,
		repo:     repo,
		fetcher:  blame.NewFetcher(backend, repo.Root),
		resolver: movement.NewResolver(backend, commits, logger),
		commits:  commits,
		logger:   logger,
		now:      time.Now,
	}
}

// Repo returns the repository the engine works on
func (e *Engine) Repo() models.RepoInfo {
	return e.repo
}

// Compute builds the snapshot for path. contents, when non-nil, is blamed
// instead of the committed file so unsaved edits show as uncommitted.
//
// The first git.ErrBackendUnavailable is returned as is and disables the
// engine; later calls fail fast with ErrDisabled.
func (e *Engine) Compute(ctx context.Context, path string, settings config.Settings, contents []byte) (*models.FileAttributionSnapshot, error) {
	return e.ComputeAt(ctx, path, "", settings, contents)
}

// ComputeAt is Compute against rev instead of HEAD. rev may be a commit id,
// a short id or a ref; it is resolved to a full id first. An empty rev means
// HEAD.
func (e *Engine) ComputeAt(ctx context.Context, path, rev string, settings config.Settings, contents []byte) (*models.FileAttributionSnapshot, error) {
	if err := e.Disabled(); err != nil {
		return nil, ErrDisabled
	}
	started := e.now()

	var head string
	var err error
	if rev == "" {
		head, err = e.backend.Head(ctx)
		if err != nil {
			return nil, e.check(fmt.Errorf("resolve HEAD: %w", err))
		}
	} else {
		head, err = e.backend.ResolveRevision(ctx, rev)
		if err != nil {
			return nil, e.check(fmt.Errorf("resolve %s: %w", rev, err))
		}
	}

	res, err := e.fetcher.Fetch(ctx, path, head, git.BlameOptions{
		IgnoreWhitespace: settings.IgnoreWhitespace,
		Contents:         contents,
	})
	if err != nil {
		return nil, e.check(err)
	}
	e.commits.Seed(res.Commits)

	atts, err := e.resolver.Resolve(ctx, res.Path, head, res.Lines, movement.Options{
		Mode:               settings.Movement,
		MinimumMatchLength: settings.MinimumMatchLength,
		IgnoreWhitespace:   settings.IgnoreWhitespace,
		Similarity:         settings.Similarity,
	})
	if err != nil {
		return nil, err
	}

	snap := &models.FileAttributionSnapshot{
		FilePath:     path,
		Revision:     head,
		Attributions: atts,
		StartedAt:    started,
	}
	infos, err := e.commits.LookupAll(ctx, snap.CommitIDs())
	if err != nil {
		return nil, e.check(err)
	}
	for i := range snap.Attributions {
		snap.Attributions[i].OriginTime = infos[snap.Attributions[i].OriginCommitID].AuthorTime
	}
	snap.ComputedAt = e.now()

	if err := snap.Validate(); err != nil {
		return nil, err
	}
	e.logger.Debug("computed line authors",
		"path", path,
		"rev", models.ShortHash(head),
		"lines", snap.LineCount(),
		"movement", settings.Movement,
		"took", snap.ComputedAt.Sub(started))
	return snap, nil
}

// Commits returns metadata for every origin commit of snap
func (e *Engine) Commits(ctx context.Context, snap *models.FileAttributionSnapshot) (map[string]models.CommitInfo, error) {
	return e.commits.LookupAll(ctx, snap.CommitIDs())
}

// check disables the engine on the first unavailable-backend error
func (e *Engine) check(err error) error {
	if !errors.Is(err, git.ErrBackendUnavailable) {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.unavailable != nil {
		return ErrDisabled
	}
	e.unavailable = err
	e.logger.Error("git backend unavailable, line authoring disabled", "err", err)
	return err
}

// Disabled returns the error that disabled the engine, if any
func (e *Engine) Disabled() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unavailable
}

// Reset re-enables an engine disabled by an unavailable backend
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unavailable = nil
}
