// Package commitcache is the process-wide commit metadata cache. Commit
// metadata never changes once committed, so entries are inserted once and
// never invalidated.
package commitcache

import (
	"context"
	"fmt"
	"time"

	"github.com/wahlandcase/lineauthor/internal/models"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultSize is the number of commits kept in memory
const DefaultSize = 4096

// lookupParallelism bounds concurrent backend lookups in LookupAll
const lookupParallelism = 8

// lookupTimeout bounds one shared source call
const lookupTimeout = 30 * time.Second

// Source is where metadata comes from on a miss
type Source interface {
	CommitInfo(ctx context.Context, id string) (models.CommitInfo, error)
}

// Persistent is an optional second level that survives restarts
type Persistent interface {
	GetCommit(id string) (models.CommitInfo, bool, error)
	PutCommits(infos []models.CommitInfo) error
}

type Cache struct {
	source Source
	mem    *lru.Cache
	disk   Persistent
	group  singleflight.Group
	logger *log.Logger

	// now stamps the placeholder entry for uncommitted lines
	now func() time.Time
}

// New creates a cache in front of source. disk may be nil.
func New(source Source, size int, disk Persistent, logger *log.Logger) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	mem, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create commit cache: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Cache{source: source, mem: mem, disk: disk, logger: logger, now: time.Now}, nil
}

// Seed inserts metadata learned elsewhere (e.g. blame headers). Existing
// entries win; the insert is atomic per id.
func (c *Cache) Seed(infos map[string]models.CommitInfo) {
	var fresh []models.CommitInfo
	for id, info := range infos {
		if models.IsUncommitted(id) {
			continue
		}
		if ok, _ := c.mem.ContainsOrAdd(id, info); !ok {
			fresh = append(fresh, info)
		}
	}
	if c.disk != nil && len(fresh) > 0 {
		if err := c.disk.PutCommits(fresh); err != nil {
			c.logger.Warn("persist seeded commits", "count", len(fresh), "err", err)
		}
	}
}

// Lookup returns metadata for id, consulting memory, then disk, then the
// source. Concurrent misses for one id share a single source call, which
// outlives any one caller giving up.
func (c *Cache) Lookup(ctx context.Context, id string) (models.CommitInfo, error) {
	if models.IsUncommitted(id) {
		return models.UncommittedInfo(c.now()), nil
	}
	if v, ok := c.mem.Get(id); ok {
		return v.(models.CommitInfo), nil
	}

	ch := c.group.DoChan(id, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()

		if c.disk != nil {
			info, ok, err := c.disk.GetCommit(id)
			if err != nil {
				c.logger.Warn("read commit store", "commit", models.ShortHash(id), "err", err)
			} else if ok {
				c.mem.ContainsOrAdd(id, info)
				return info, nil
			}
		}

		info, err := c.source.CommitInfo(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok, _ := c.mem.ContainsOrAdd(id, info); !ok && c.disk != nil {
			if err := c.disk.PutCommits([]models.CommitInfo{info}); err != nil {
				c.logger.Warn("persist commit", "commit", models.ShortHash(id), "err", err)
			}
		}
		return info, nil
	})
	select {
	case <-ctx.Done():
		return models.CommitInfo{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return models.CommitInfo{}, res.Err
		}
		return res.Val.(models.CommitInfo), nil
	}
}

// LookupAll resolves many ids with bounded parallelism. The first error
// aborts the rest.
func (c *Cache) LookupAll(ctx context.Context, ids []string) (map[string]models.CommitInfo, error) {
	results := make([]models.CommitInfo, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupParallelism)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			info, err := c.Lookup(gctx, id)
			if err != nil {
				return fmt.Errorf("commit %s: %w", models.ShortHash(id), err)
			}
			results[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]models.CommitInfo, len(ids))
	for i, id := range ids {
		out[id] = results[i]
	}
	return out, nil
}

// Len returns the number of commits held in memory
func (c *Cache) Len() int {
	return c.mem.Len()
}
