// Package gittest provides an in-memory git.Backend for tests.
package gittest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wahlandcase/lineauthor/internal/git"
	"github.com/wahlandcase/lineauthor/internal/models"
)

// Commit describes one commit of the fake history
type Commit struct {
	ID      string
	Parents []string
	Author  string
	Email   string
	When    time.Time
	// Files is the full tree content at this commit
	Files map[string]string
	// Changed overrides the files reported by ChangedFiles; when nil they
	// are derived by comparing with the first parent
	Changed []string
}

// Fake is a scriptable git.Backend
type Fake struct {
	mu      sync.Mutex
	head    string
	refs    map[string]string
	commits map[string]*Commit
	blames  map[string][]models.LineRecord
	errs    map[string]error
	calls   map[string]int

	// BlameHook, when set, runs at the start of every Blame call. Tests use
	// it to hold a computation in flight.
	BlameHook func(ctx context.Context, path, rev string)
}

// New returns an empty fake history
func New() *Fake {
	return &Fake{
		refs:    make(map[string]string),
		commits: make(map[string]*Commit),
		blames:  make(map[string][]models.LineRecord),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

// AddCommit adds c to the history and moves HEAD to it
func (f *Fake) AddCommit(c Commit) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cc := c
	f.commits[c.ID] = &cc
	f.head = c.ID
}

// SetHead moves HEAD
func (f *Fake) SetHead(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.head = id
}

// SetRef points a ref name at a commit
func (f *Fake) SetRef(name, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs[name] = id
}

// SetBlame fixes the blame output for path at rev
func (f *Fake) SetBlame(path, rev string, lines []models.LineRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blames[path+"@"+rev] = lines
}

// Fail makes every call of method return err; a nil err clears it
func (f *Fake) Fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, method)
		return
	}
	f.errs[method] = err
}

// Calls returns how many times method was invoked
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *Fake) enter(ctx context.Context, method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.errs[method]
}

func (f *Fake) lookup(id string) (*Commit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == "" || id == "HEAD" {
		id = f.head
	} else if target, ok := f.refs[id]; ok {
		id = target
	}
	c, ok := f.commits[id]
	if !ok {
		return nil, fmt.Errorf("fake: no commit %q: %w", id, git.ErrRevisionMissing)
	}
	return c, nil
}

func (f *Fake) Head(ctx context.Context) (string, error) {
	if err := f.enter(ctx, "Head"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.head == "" {
		return "", git.ErrRevisionMissing
	}
	return f.head, nil
}

func (f *Fake) ResolveRevision(ctx context.Context, rev string) (string, error) {
	if err := f.enter(ctx, "ResolveRevision"); err != nil {
		return "", err
	}
	c, err := f.lookup(rev)
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

func (f *Fake) Blame(ctx context.Context, path, rev string, opts git.BlameOptions) (git.BlameResult, error) {
	if f.BlameHook != nil {
		f.BlameHook(ctx, path, rev)
	}
	if err := f.enter(ctx, "Blame"); err != nil {
		return git.BlameResult{}, err
	}
	c, err := f.lookup(rev)
	if err != nil {
		return git.BlameResult{}, err
	}

	f.mu.Lock()
	fixed, ok := f.blames[path+"@"+c.ID]
	f.mu.Unlock()
	if ok {
		return git.BlameResult{Lines: append([]models.LineRecord(nil), fixed...)}, nil
	}

	content, ok := c.Files[path]
	if !ok {
		return git.BlameResult{}, fmt.Errorf("fake: %s not in %s: %w", path, c.ID, git.ErrNotTracked)
	}
	committed := split(content)
	lines := committed
	if opts.Contents != nil {
		lines = split(string(opts.Contents))
	}
	result := git.BlameResult{}
	for i, text := range lines {
		id := models.UncommittedID
		if i < len(committed) && committed[i] == text {
			id = f.positionalBlame(c, path, i, text)
		}
		result.Lines = append(result.Lines, models.NewLineRecord(i+1, id, text))
	}
	return result, nil
}

// positionalBlame follows the first-parent chain while the parent has the
// same text at the same index
func (f *Fake) positionalBlame(c *Commit, path string, idx int, text string) string {
	owner := c
	for len(owner.Parents) > 0 {
		parent, err := f.lookup(owner.Parents[0])
		if err != nil {
			break
		}
		lines := split(parent.Files[path])
		if idx >= len(lines) || lines[idx] != text {
			break
		}
		owner = parent
	}
	return owner.ID
}

func (f *Fake) CommitInfo(ctx context.Context, id string) (models.CommitInfo, error) {
	if err := f.enter(ctx, "CommitInfo"); err != nil {
		return models.CommitInfo{}, err
	}
	c, err := f.lookup(id)
	if err != nil {
		return models.CommitInfo{}, err
	}
	return models.NewCommitInfo(c.ID, c.Author, c.Email, c.When), nil
}

func (f *Fake) Parents(ctx context.Context, id string) ([]string, error) {
	if err := f.enter(ctx, "Parents"); err != nil {
		return nil, err
	}
	c, err := f.lookup(id)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), c.Parents...), nil
}

func (f *Fake) ChangedFiles(ctx context.Context, id string) ([]string, error) {
	if err := f.enter(ctx, "ChangedFiles"); err != nil {
		return nil, err
	}
	c, err := f.lookup(id)
	if err != nil {
		return nil, err
	}
	if c.Changed != nil {
		return append([]string(nil), c.Changed...), nil
	}
	var parentFiles map[string]string
	if len(c.Parents) > 0 {
		p, err := f.lookup(c.Parents[0])
		if err != nil {
			return nil, err
		}
		parentFiles = p.Files
	}
	var changed []string
	for path, content := range c.Files {
		if old, ok := parentFiles[path]; !ok || old != content {
			changed = append(changed, path)
		}
	}
	sort.Strings(changed)
	return changed, nil
}

func (f *Fake) FileLines(ctx context.Context, id, path string) ([]string, error) {
	if err := f.enter(ctx, "FileLines"); err != nil {
		return nil, err
	}
	c, err := f.lookup(id)
	if err != nil {
		return nil, err
	}
	content, ok := c.Files[path]
	if !ok {
		return nil, fmt.Errorf("fake: %s not in %s: %w", path, c.ID, git.ErrNotTracked)
	}
	return split(content), nil
}

func split(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

var _ git.Backend = (*Fake)(nil)
