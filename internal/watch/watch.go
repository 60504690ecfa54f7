// Package watch turns writes to a repository's HEAD and branch refs into
// coalesced "repository changed" notifications.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultQuiet is how long the refs must stay untouched before a burst of
// writes (a rebase, a pull) is reported as one change
const DefaultQuiet = 150 * time.Millisecond

// Watcher observes <gitdir>/HEAD, <gitdir>/packed-refs and <gitdir>/refs/heads
type Watcher struct {
	gitDir  string
	heads   string
	quiet   time.Duration
	fs      *fsnotify.Watcher
	changes chan struct{}
	edits   chan string
	logger  *log.Logger

	mu      sync.Mutex
	tracked map[string]bool
}

// New starts watching gitDir. Notifications flow once Run is called.
func New(gitDir string, quiet time.Duration, logger *log.Logger) (*Watcher, error) {
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	if logger == nil {
		logger = log.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		gitDir:  filepath.Clean(gitDir),
		heads:   filepath.Join(filepath.Clean(gitDir), "refs", "heads"),
		quiet:   quiet,
		fs:      fw,
		changes: make(chan struct{}, 1),
		edits:   make(chan string, 16),
		logger:  logger,
		tracked: make(map[string]bool),
	}

	// HEAD and packed-refs are replaced by rename, so the directory is
	// watched rather than the files themselves
	if err := fw.Add(w.gitDir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", w.gitDir, err)
	}
	w.addTree(w.heads)
	return w, nil
}

// addTree watches dir and every directory below it (branch names with
// slashes live in subdirectories)
func (w *Watcher) addTree(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := w.fs.Add(path); err != nil {
				w.logger.Debug("cannot watch ref directory", "dir", path, "err", err)
			}
		}
		return nil
	})
}

// Changes delivers one value per settled burst of ref writes. It is closed
// when Run returns.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Edits delivers the path of a tracked file each time it is written. It is
// closed when Run returns.
func (w *Watcher) Edits() <-chan string {
	return w.edits
}

// Track reports saves of the working file at path on Edits
func (w *Watcher) Track(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.tracked[abs] = true
	w.mu.Unlock()
	if err := w.fs.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	return nil
}

func (w *Watcher) isTracked(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tracked[path]
}

// Run pumps filesystem events until ctx ends
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.changes)
	defer close(w.edits)
	defer w.fs.Close()

	timer := time.NewTimer(w.quiet)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) && w.underHeads(ev.Name) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					w.addTree(ev.Name)
				}
			}
			if w.isTracked(ev.Name) && ev.Has(fsnotify.Write|fsnotify.Create) {
				select {
				case w.edits <- ev.Name:
				default:
				}
				continue
			}
			if !w.relevant(ev.Name) {
				continue
			}
			w.logger.Debug("ref changed", "path", ev.Name, "op", ev.Op.String())
			timer.Reset(w.quiet)

		case <-timer.C:
			select {
			case w.changes <- struct{}{}:
			default:
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("repository watcher error", "err", err)
		}
	}
}

func (w *Watcher) underHeads(path string) bool {
	return path == w.heads || strings.HasPrefix(path, w.heads+string(filepath.Separator))
}

// relevant reports whether a write to path can move HEAD or a branch
func (w *Watcher) relevant(path string) bool {
	if strings.HasSuffix(path, ".lock") {
		return false
	}
	rel, err := filepath.Rel(w.gitDir, path)
	if err != nil {
		return false
	}
	switch rel {
	case "HEAD", "packed-refs":
		return true
	}
	return w.underHeads(path)
}
