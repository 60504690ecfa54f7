// Package scheduler decides when open files are recomputed.
//
// Each open file moves Idle -> Computing -> Idle. An edit while Computing
// moves it to Invalidated: the running computation is left alone but its
// result is discarded, and a follow-up recompute is scheduled once edits
// settle.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wahlandcase/lineauthor/internal/config"

	"github.com/charmbracelet/log"
)

type State int

const (
	Idle State = iota
	Computing
	Invalidated
)

func (s State) String() string {
	switch s {
	case Computing:
		return "computing"
	case Invalidated:
		return "invalidated"
	default:
		return "idle"
	}
}

// Target runs the computations the scheduler asks for
type Target interface {
	// Recompute supersedes whatever is known about path and blocks until
	// the new computation finishes
	Recompute(ctx context.Context, path string) error
	// MarkStale supersedes the running computation without cancelling it
	MarkStale(path string)
	Close(path string)
	// Reset drops every file
	Reset()
}

type fileState struct {
	state State
	timer *time.Timer
	// run identifies the latest computation started for the file
	run uint64
}

type Scheduler struct {
	target   Target
	debounce time.Duration
	logger   *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	files   map[string]*fileState
	enabled bool
	wg      sync.WaitGroup
}

// New creates a scheduler. Stop must be called to release it.
func New(target Target, debounce time.Duration, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		target:   target,
		debounce: debounce,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		files:    make(map[string]*fileState),
		enabled:  true,
	}
}

// SetEnabled starts or stops all scheduling without forgetting open files
func (s *Scheduler) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enabled == enabled {
		return
	}
	s.enabled = enabled
	if !enabled {
		for _, fs := range s.files {
			s.stopTimerLocked(fs)
			fs.state = Idle
			fs.run++
		}
		s.target.Reset()
		return
	}
	for path := range s.files {
		s.startLocked(path)
	}
}

// Open starts tracking path and computes it
func (s *Scheduler) Open(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[path]; ok {
		return
	}
	s.files[path] = &fileState{}
	if s.enabled {
		s.startLocked(path)
	}
}

// Close stops tracking path
func (s *Scheduler) Close(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fs, ok := s.files[path]
	if !ok {
		return
	}
	s.stopTimerLocked(fs)
	delete(s.files, path)
	s.target.Close(path)
}

// DocumentEdited (re)arms the debounce timer for path
func (s *Scheduler) DocumentEdited(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fs, ok := s.files[path]
	if !ok || !s.enabled {
		return
	}
	if fs.state == Computing {
		fs.state = Invalidated
		s.target.MarkStale(path)
	}
	s.stopTimerLocked(fs)
	var timer *time.Timer
	timer = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		cur, ok := s.files[path]
		if !ok || cur != fs || fs.timer != timer || !s.enabled {
			return
		}
		fs.timer = nil
		s.startLocked(path)
	})
	fs.timer = timer
}

// RepositoryChanged recomputes every open file immediately
func (s *Scheduler) RepositoryChanged() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return
	}
	for _, path := range s.pathsLocked() {
		s.stopTimerLocked(s.files[path])
		s.startLocked(path)
	}
}

// ConfigChanged reacts to a new settings snapshot. Disabling stops
// everything; options that change attribution recompute every open file;
// display-only changes need no recompute.
func (s *Scheduler) ConfigChanged(old, next config.Settings) {
	if !next.Enabled {
		s.SetEnabled(false)
		return
	}
	if !old.Enabled {
		s.SetEnabled(true)
		return
	}
	if old.AffectsAttribution(next) {
		s.logger.Debug("attribution settings changed, recomputing", "movement", next.Movement)
		s.RepositoryChanged()
	}
}

// State returns the state of path and whether it is open
func (s *Scheduler) State(path string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fs, ok := s.files[path]
	if !ok {
		return Idle, false
	}
	return fs.state, true
}

// Run forwards repository change notifications until ctx ends or the
// channel closes
func (s *Scheduler) Run(ctx context.Context, changes <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			s.logger.Debug("repository changed")
			s.RepositoryChanged()
		}
	}
}

// Stop cancels running computations and waits for them to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for _, fs := range s.files {
		s.stopTimerLocked(fs)
	}
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) startLocked(path string) {
	fs := s.files[path]
	if s.ctx.Err() != nil {
		// Stopped
		fs.state = Idle
		return
	}
	fs.state = Computing
	fs.run++
	run := fs.run

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.target.Recompute(s.ctx, path)
		s.finished(path, fs, run, err)
	}()
}

func (s *Scheduler) finished(path string, fs *fileState, run uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil && s.ctx.Err() == nil {
		s.logger.Warn("line authoring failed", "path", path, "err", err)
	}
	if cur, ok := s.files[path]; !ok || cur != fs || fs.run != run {
		return
	}
	switch fs.state {
	case Computing:
		fs.state = Idle
	case Invalidated:
		// A follow-up is pending on the debounce timer
		if fs.timer == nil && s.enabled {
			s.startLocked(path)
		}
	}
}

func (s *Scheduler) stopTimerLocked(fs *fileState) {
	if fs.timer != nil {
		fs.timer.Stop()
		fs.timer = nil
	}
}

func (s *Scheduler) pathsLocked() []string {
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
