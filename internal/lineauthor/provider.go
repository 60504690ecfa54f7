package lineauthor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wahlandcase/lineauthor/internal/attribution"
	"github.com/wahlandcase/lineauthor/internal/config"
	"github.com/wahlandcase/lineauthor/internal/git"
	"github.com/wahlandcase/lineauthor/internal/models"
	"github.com/wahlandcase/lineauthor/internal/scheduler"

	"github.com/charmbracelet/log"
)

// Provider is the entry point for editors and viewers: it owns the
// attribution cache and the refresh scheduler for one repository
type Provider struct {
	engine *Engine
	cache  *attribution.Cache
	sched  *scheduler.Scheduler
	logger *log.Logger
	now    func() time.Time

	mu       sync.Mutex
	settings config.Settings
	// buffers holds unsaved contents per open file
	buffers map[string][]byte
}

// NewProvider wires engine to a cache and scheduler. Stop releases it.
func NewProvider(engine *Engine, settings config.Settings, debounce time.Duration, logger *log.Logger) *Provider {
	if logger == nil {
		logger = log.Default()
	}
	p := &Provider{
		engine:   engine,
		logger:   logger,
		now:      time.Now,
		settings: settings,
		buffers:  make(map[string][]byte),
	}
	p.cache = attribution.New(p.compute, logger)
	p.sched = scheduler.New(cacheTarget{p.cache}, debounce, logger)
	if !settings.Enabled {
		p.sched.SetEnabled(false)
	}
	return p
}

func (p *Provider) compute(ctx context.Context, path string) (*models.FileAttributionSnapshot, error) {
	p.mu.Lock()
	settings := p.settings
	contents := p.buffers[path]
	p.mu.Unlock()
	return p.engine.Compute(ctx, path, settings, contents)
}

// Open starts tracking path and computes its attribution in the background
func (p *Provider) Open(path string) {
	p.sched.Open(path)
}

// OpenContents is Open for a file whose displayed contents may differ from
// the saved file
func (p *Provider) OpenContents(path string, contents []byte) {
	p.mu.Lock()
	p.buffers[path] = append([]byte(nil), contents...)
	p.mu.Unlock()
	p.sched.Open(path)
}

// Close stops tracking path and drops its snapshot
func (p *Provider) Close(path string) {
	p.sched.Close(path)
	p.mu.Lock()
	delete(p.buffers, path)
	p.mu.Unlock()
}

// Edited records unsaved contents for path (nil means "as saved") and
// schedules a debounced recompute
func (p *Provider) Edited(path string, contents []byte) {
	p.mu.Lock()
	if contents == nil {
		delete(p.buffers, path)
	} else {
		p.buffers[path] = append([]byte(nil), contents...)
	}
	p.mu.Unlock()
	p.sched.DocumentEdited(path)
}

// RepositoryChanged recomputes every open file, e.g. after a checkout
func (p *Provider) RepositoryChanged() {
	p.sched.RepositoryChanged()
}

// Watch feeds repository change notifications to the scheduler until ctx
// ends or changes closes
func (p *Provider) Watch(ctx context.Context, changes <-chan struct{}) error {
	return p.sched.Run(ctx, changes)
}

// Settings returns the settings in effect
func (p *Provider) Settings() config.Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings
}

// UpdateSettings swaps in a new settings snapshot and recomputes what it
// affects
func (p *Provider) UpdateSettings(next config.Settings) {
	p.mu.Lock()
	old := p.settings
	p.settings = next
	p.mu.Unlock()
	p.sched.ConfigChanged(old, next)
}

// Snapshot returns the attribution of path. Untracked files and a disabled
// provider yield nil without error.
func (p *Provider) Snapshot(ctx context.Context, path string) (*models.FileAttributionSnapshot, error) {
	if !p.Settings().Enabled {
		return nil, nil
	}
	snap, err := p.cache.GetOrCompute(ctx, path)
	if err != nil {
		if quiet(err) {
			return nil, nil
		}
		return nil, err
	}
	return snap, nil
}

// Annotations returns one render-ready annotation per line of path
func (p *Provider) Annotations(ctx context.Context, path string) ([]models.Annotation, error) {
	snap, err := p.Snapshot(ctx, path)
	if err != nil || snap == nil {
		return nil, err
	}
	return p.Annotate(ctx, snap)
}

// Annotate renders snap with the current settings
func (p *Provider) Annotate(ctx context.Context, snap *models.FileAttributionSnapshot) ([]models.Annotation, error) {
	commits, err := p.engine.Commits(ctx, snap)
	if err != nil {
		return nil, err
	}
	return Annotate(snap, commits, p.Settings(), p.now()), nil
}

// Subscribe delivers every newly retained snapshot
func (p *Provider) Subscribe() (<-chan attribution.Update, func()) {
	return p.cache.Subscribe()
}

// State reports the refresh state of an open file
func (p *Provider) State(path string) (scheduler.State, bool) {
	return p.sched.State(path)
}

// Reset re-enables the engine after the backend was fixed and recomputes
// every open file
func (p *Provider) Reset() {
	p.engine.Reset()
	p.cache.Reset()
	p.sched.RepositoryChanged()
}

// Stop cancels background work
func (p *Provider) Stop() {
	p.sched.Stop()
}

// quiet reports errors that suppress annotation instead of being shown
func quiet(err error) bool {
	return errors.Is(err, git.ErrNotTracked) || errors.Is(err, ErrDisabled)
}

// cacheTarget lets the scheduler drive the attribution cache
type cacheTarget struct {
	cache *attribution.Cache
}

func (t cacheTarget) Recompute(ctx context.Context, path string) error {
	_, err := t.cache.Recompute(ctx, path)
	if err != nil && quiet(err) {
		return nil
	}
	return err
}

func (t cacheTarget) MarkStale(path string) { t.cache.MarkStale(path) }
func (t cacheTarget) Close(path string)     { t.cache.Close(path) }
func (t cacheTarget) Reset()                { t.cache.Reset() }
