// Package attribution owns the per-file attribution snapshots.
//
// Policy is stale-while-revalidate: a fresh snapshot is returned as is; after
// an invalidation the old snapshot keeps being served while a recompute runs
// in the background; a file with no snapshot yet blocks the caller until the
// first retained computation finishes. At most one computation per file and
// generation is in flight, and only the latest-started result is retained.
package attribution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wahlandcase/lineauthor/internal/models"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

// ComputeFunc produces a snapshot for path. It should stop early when ctx
// is cancelled.
type ComputeFunc func(ctx context.Context, path string) (*models.FileAttributionSnapshot, error)

// Update is published to subscribers each time a snapshot is retained
type Update struct {
	Path     string
	Snapshot *models.FileAttributionSnapshot
}

// errSuperseded marks a result dropped because a newer computation replaced it
var errSuperseded = errors.New("computation superseded")

// subscriberBuffer is how many updates a slow subscriber may lag behind
const subscriberBuffer = 16

type entry struct {
	// gen changes on every invalidation. Values come from the cache-wide
	// counter, so a reopened file never reuses the key of an old flight.
	gen      uint64
	snapshot *models.FileAttributionSnapshot
	stale    bool

	// cancel stops the computation running for flightGen
	cancel    context.CancelFunc
	flightCtx context.Context
	flightGen uint64
}

type Cache struct {
	compute ComputeFunc
	logger  *log.Logger
	group   singleflight.Group
	now     func() time.Time

	mu      sync.Mutex
	lastGen uint64
	files   map[string]*entry
	subs  map[int]chan Update
	subID int
}

// New creates an empty cache around compute
func New(compute ComputeFunc, logger *log.Logger) *Cache {
	if logger == nil {
		logger = log.Default()
	}
	return &Cache{
		compute: compute,
		logger:  logger,
		now:     time.Now,
		files:   make(map[string]*entry),
		subs:    make(map[int]chan Update),
	}
}

func (c *Cache) entryLocked(path string) *entry {
	e, ok := c.files[path]
	if !ok {
		e = &entry{gen: c.nextGenLocked()}
		c.files[path] = e
	}
	return e
}

func (c *Cache) nextGenLocked() uint64 {
	c.lastGen++
	return c.lastGen
}

// GetOrCompute returns the snapshot for path. A stale snapshot is returned
// immediately and refreshed in the background. Without any snapshot the call
// blocks until a computation is retained, the computation fails, or ctx ends.
func (c *Cache) GetOrCompute(ctx context.Context, path string) (*models.FileAttributionSnapshot, error) {
	for {
		c.mu.Lock()
		e := c.entryLocked(path)
		if e.snapshot != nil {
			snap := e.snapshot
			if e.stale {
				c.startLocked(path, e)
			}
			c.mu.Unlock()
			return snap, nil
		}
		ch := c.startLocked(path, e)
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if res.Err == nil {
				return res.Val.(*models.FileAttributionSnapshot), nil
			}
			if errors.Is(res.Err, errSuperseded) || errors.Is(res.Err, context.Canceled) {
				// Invalidated while running; wait for the replacement
				continue
			}
			return nil, res.Err
		}
	}
}

// startLocked joins or starts the computation for the entry's current
// generation
func (c *Cache) startLocked(path string, e *entry) <-chan singleflight.Result {
	gen := e.gen
	if e.cancel == nil || e.flightGen != gen {
		if e.cancel != nil {
			e.cancel()
		}
		e.flightCtx, e.cancel = context.WithCancel(context.Background())
		e.flightGen = gen
	}
	ctx := e.flightCtx
	key := fmt.Sprintf("%s@%d", path, gen)
	return c.group.DoChan(key, func() (interface{}, error) {
		return c.run(ctx, path, gen)
	})
}

func (c *Cache) run(ctx context.Context, path string, gen uint64) (*models.FileAttributionSnapshot, error) {
	started := c.now()
	snap, err := c.compute(ctx, path)
	cancelled := ctx.Err() != nil

	c.mu.Lock()
	defer c.mu.Unlock()

	e, open := c.files[path]
	if open && e.flightCtx == ctx && e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if err != nil {
		if cancelled {
			return nil, errSuperseded
		}
		c.logger.Debug("attribution computation failed", "path", path, "err", err)
		return nil, err
	}
	if !open || e.gen != gen {
		c.logger.Debug("dropping superseded attribution", "path", path, "gen", gen)
		return nil, errSuperseded
	}
	if snap.StartedAt.IsZero() {
		snap.StartedAt = started
	}
	if snap.ComputedAt.IsZero() {
		snap.ComputedAt = c.now()
	}
	if e.snapshot != nil && snap.StartedAt.Before(e.snapshot.StartedAt) {
		return nil, errSuperseded
	}

	e.snapshot = snap
	e.stale = false
	c.publishLocked(Update{Path: path, Snapshot: snap})
	return snap, nil
}

// Invalidate forces recomputation on next access. A computation already in
// flight is cancelled and its result will be discarded.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked(path)
}

func (c *Cache) invalidateLocked(path string) {
	e, ok := c.files[path]
	if !ok {
		return
	}
	e.gen = c.nextGenLocked()
	if e.snapshot != nil {
		e.stale = true
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// MarkStale supersedes the current generation without cancelling the
// computation in flight. Its result is discarded when it arrives.
func (c *Cache) MarkStale(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.files[path]
	if !ok {
		return
	}
	e.gen = c.nextGenLocked()
	if e.snapshot != nil {
		e.stale = true
	}
}

// Recompute invalidates path and waits for the replacement. It returns a
// nil snapshot and no error when that computation was itself superseded.
func (c *Cache) Recompute(ctx context.Context, path string) (*models.FileAttributionSnapshot, error) {
	c.mu.Lock()
	c.invalidateLocked(path)
	ch := c.startLocked(path, c.entryLocked(path))
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			if errors.Is(res.Err, errSuperseded) {
				return nil, nil
			}
			return nil, res.Err
		}
		return res.Val.(*models.FileAttributionSnapshot), nil
	}
}

// InvalidateAll invalidates every known file
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for path := range c.files {
		c.invalidateLocked(path)
	}
}

// Refresh invalidates path and starts its recomputation in the background
func (c *Cache) Refresh(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked(path)
	c.startLocked(path, c.entryLocked(path))
}

// Peek returns the current snapshot without computing. fresh is false when
// the snapshot has been invalidated since it was computed.
func (c *Cache) Peek(path string) (snap *models.FileAttributionSnapshot, fresh bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.files[path]
	if !ok || e.snapshot == nil {
		return nil, false
	}
	return e.snapshot, !e.stale
}

// Computing reports whether a computation for path is in flight
func (c *Cache) Computing(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.files[path]
	return ok && e.cancel != nil
}

// Close forgets path and cancels its computation
func (c *Cache) Close(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked(path)
	delete(c.files, path)
}

// Reset forgets every file
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for path := range c.files {
		c.invalidateLocked(path)
	}
	c.files = make(map[string]*entry)
}

// Subscribe returns a channel receiving every retained snapshot. Updates
// are dropped for a subscriber whose buffer is full. Call cancel to stop.
func (c *Cache) Subscribe() (<-chan Update, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.subID
	c.subID++
	ch := make(chan Update, subscriberBuffer)
	c.subs[id] = ch
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

func (c *Cache) publishLocked(u Update) {
	for id, ch := range c.subs {
		select {
		case ch <- u:
		default:
			c.logger.Debug("subscriber lagging, update dropped", "subscriber", id, "path", u.Path)
		}
	}
}
