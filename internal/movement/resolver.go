// Package movement re-attributes lines that were moved or copied to the
// commit that originally authored them.
//
// Raw blame credits a pasted line to the commit that pasted it. In
// same-commit mode the resolver looks for the line among the content the
// blamed commit removed or already had in the files it touched, and credits
// whoever wrote it there. In all-commits mode it walks the full ancestry of
// the revision and credits the earliest commit that introduced the line
// anywhere. Both are best effort: backend failures fall back to raw blame.
package movement

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/wahlandcase/lineauthor/internal/git"
	"github.com/wahlandcase/lineauthor/internal/models"

	"github.com/charmbracelet/log"
)

// DefaultMinimumMatchLength is the shortest line (in characters, after
// trimming) considered for movement detection
const DefaultMinimumMatchLength = 40

// History is the part of the backend the resolver walks
type History interface {
	Parents(ctx context.Context, id string) ([]string, error)
	ChangedFiles(ctx context.Context, id string) ([]string, error)
	FileLines(ctx context.Context, id, path string) ([]string, error)
	Blame(ctx context.Context, path, rev string, opts git.BlameOptions) (git.BlameResult, error)
}

// CommitLookup supplies author times
type CommitLookup interface {
	Lookup(ctx context.Context, id string) (models.CommitInfo, error)
}

// Options selects the mode and matching rules
type Options struct {
	Mode               models.MovementMode
	MinimumMatchLength int
	IgnoreWhitespace   bool
	// Similarity in (0,1) enables near-identical matching by Levenshtein
	// ratio; 0 or 1 means exact matches only
	Similarity float64
}

type Resolver struct {
	history History
	commits CommitLookup
	logger  *log.Logger
}

func NewResolver(history History, commits CommitLookup, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{history: history, commits: commits, logger: logger}
}

// Resolve returns one attribution per record, in order. rev is the full id
// of the commit the records were blamed against. The only error returned is context
// cancellation; everything else degrades to raw blame attribution.
func (r *Resolver) Resolve(ctx context.Context, path, rev string, records []models.LineRecord, opts Options) ([]models.Attribution, error) {
	out := make([]models.Attribution, len(records))
	for i, rec := range records {
		out[i] = models.Unmoved(rec)
	}
	if opts.Mode == models.FollowInactive || opts.Mode == "" || len(records) == 0 {
		return out, nil
	}

	minLen := opts.MinimumMatchLength
	if minLen < 1 {
		minLen = DefaultMinimumMatchLength
	}
	norm := normalizer{minLength: minLen, ignoreWhitespace: opts.IgnoreWhitespace}

	var err error
	switch opts.Mode {
	case models.FollowSameCommit:
		err = r.resolveSameCommit(ctx, records, norm, opts, out)
	case models.FollowAllCommits:
		err = r.resolveAllCommits(ctx, rev, records, norm, opts.Similarity, out)
	default:
		r.logger.Warn("unknown movement mode, using raw blame", "mode", opts.Mode)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Debug("movement detection degraded to raw blame", "path", path, "err", err)
		for i, rec := range records {
			out[i] = models.Unmoved(rec)
		}
	}
	return out, nil
}

// authorTime returns when a commit was authored; working-copy lines count
// as authored now
func (r *Resolver) authorTime(ctx context.Context, id string) (time.Time, error) {
	info, err := r.commits.Lookup(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	return info.AuthorTime, nil
}

// isCancel reports whether err came from the context
func isCancel(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// resolveSameCommit follows cut/copy/paste inside the blamed commit: a line
// blamed to C whose content existed in C's first parent, in one of the files
// C touched, is credited to whoever authored it there.
func (r *Resolver) resolveSameCommit(ctx context.Context, records []models.LineRecord, norm normalizer, opts Options, out []models.Attribution) error {
	byCommit := make(map[string][]int)
	var commitOrder []string
	for i, rec := range records {
		if models.IsUncommitted(rec.CommitID) {
			continue
		}
		if _, ok := norm.normalize(rec.Content); !ok {
			continue
		}
		if _, seen := byCommit[rec.CommitID]; !seen {
			commitOrder = append(commitOrder, rec.CommitID)
		}
		byCommit[rec.CommitID] = append(byCommit[rec.CommitID], i)
	}

	for _, commit := range commitOrder {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.followWithinCommit(ctx, commit, byCommit[commit], records, norm, opts, out); err != nil {
			if isCancel(ctx, err) {
				return err
			}
			// Only this commit's lines fall back to raw blame
			r.logger.Debug("same-commit movement skipped", "commit", models.ShortHash(commit), "err", err)
			for _, i := range byCommit[commit] {
				out[i] = models.Unmoved(records[i])
			}
		}
	}
	return nil
}

type sourceLine struct {
	path string
	line int // 1-based
}

func (r *Resolver) followWithinCommit(ctx context.Context, commit string, idxs []int, records []models.LineRecord, norm normalizer, opts Options, out []models.Attribution) error {
	parents, err := r.history.Parents(ctx, commit)
	if err != nil {
		return err
	}
	if len(parents) == 0 {
		// A root commit cannot have moved anything
		return nil
	}
	parent := parents[0]

	m := newMatcher(norm, opts.Similarity)
	lineKeys := make(map[int]lineKey, len(idxs))
	for _, i := range idxs {
		s, _ := norm.normalize(records[i].Content)
		lineKeys[i] = m.want(s)
	}

	files, err := r.history.ChangedFiles(ctx, commit)
	if err != nil {
		return err
	}
	sort.Strings(files)

	sources := make(map[lineKey]sourceLine)
	for _, f := range files {
		lines, err := r.history.FileLines(ctx, parent, f)
		if err != nil {
			if isCancel(ctx, err) {
				return err
			}
			// New in this commit, nothing to move from
			continue
		}
		for n, line := range lines {
			for _, k := range m.match(line) {
				if _, ok := sources[k]; !ok {
					sources[k] = sourceLine{path: f, line: n + 1}
				}
			}
		}
	}
	if len(sources) == 0 {
		return nil
	}

	commitTime, err := r.authorTime(ctx, commit)
	if err != nil {
		return err
	}

	blames := make(map[string][]models.LineRecord)
	for _, i := range idxs {
		src, ok := sources[lineKeys[i]]
		if !ok {
			continue
		}
		if _, done := blames[src.path]; !done {
			res, err := r.history.Blame(ctx, src.path, parent, git.BlameOptions{IgnoreWhitespace: opts.IgnoreWhitespace})
			if err != nil {
				if isCancel(ctx, err) {
					return err
				}
				r.logger.Debug("re-blame of move source failed", "path", src.path, "err", err)
				res = git.BlameResult{}
			}
			blames[src.path] = res.Lines
		}
		srcLines := blames[src.path]
		if src.line > len(srcLines) {
			continue
		}
		origin := srcLines[src.line-1].CommitID
		if origin == commit {
			continue
		}
		originTime, err := r.authorTime(ctx, origin)
		if err != nil {
			if isCancel(ctx, err) {
				return err
			}
			continue
		}
		if originTime.Before(commitTime) {
			out[i].OriginCommitID = origin
			out[i].IsMoved = true
		}
	}
	return nil
}

// candidateMatch is the best commit found so far for one content key
type candidateMatch struct {
	commit string
	when   time.Time
	hops   int
}

// better orders matches: earlier author time, then fewer parent hops from
// the revision, then the smaller commit id
func (a candidateMatch) better(b candidateMatch) bool {
	if !a.when.Equal(b.when) {
		return a.when.Before(b.when)
	}
	if a.hops != b.hops {
		return a.hops < b.hops
	}
	return a.commit < b.commit
}

// resolveAllCommits walks every ancestor of rev breadth first. A commit
// introduces a line iff the line appears in a file the commit changed, so
// scanning the changed files of each ancestor finds every introduction
// point of every candidate.
func (r *Resolver) resolveAllCommits(ctx context.Context, rev string, records []models.LineRecord, norm normalizer, similarity float64, out []models.Attribution) error {
	m := newMatcher(norm, similarity)
	lineKeys := make(map[int]lineKey)
	for i, rec := range records {
		if s, ok := norm.normalize(rec.Content); ok {
			lineKeys[i] = m.want(s)
		}
	}
	if m.empty() {
		return nil
	}

	best := make(map[lineKey]candidateMatch)
	parentsOf := make(map[string][]string)

	type queued struct {
		id   string
		hops int
	}
	queue := []queued{{id: rev}}
	visited := map[string]bool{rev: true}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		cur := queue[0]
		queue = queue[1:]

		if err := r.scanCommit(ctx, cur.id, cur.hops, m, best); err != nil {
			if isCancel(ctx, err) {
				return err
			}
			r.logger.Debug("ancestry walk skipped commit", "commit", models.ShortHash(cur.id), "err", err)
		}

		parents, err := r.history.Parents(ctx, cur.id)
		if err != nil {
			return err
		}
		parentsOf[cur.id] = parents
		for _, p := range parents {
			if !visited[p] {
				visited[p] = true
				queue = append(queue, queued{id: p, hops: cur.hops + 1})
			}
		}
	}

	anc := ancestry{parents: parentsOf, memo: make(map[string]map[string]bool)}
	for i, k := range lineKeys {
		match, ok := best[k]
		blamed := records[i].CommitID
		if !ok || match.commit == blamed {
			continue
		}
		blamedTime, err := r.authorTime(ctx, blamed)
		if err != nil {
			if isCancel(ctx, err) {
				return err
			}
			continue
		}
		if !match.when.Before(blamedTime) {
			continue
		}
		if !models.IsUncommitted(blamed) && !anc.isAncestor(match.commit, blamed) {
			continue
		}
		out[i].OriginCommitID = match.commit
		out[i].IsMoved = true
	}
	return nil
}

// scanCommit records the commit as a candidate origin for every wanted line
// found in the files it changed
func (r *Resolver) scanCommit(ctx context.Context, id string, hops int, m *matcher, best map[lineKey]candidateMatch) error {
	files, err := r.history.ChangedFiles(ctx, id)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}
	when, err := r.authorTime(ctx, id)
	if err != nil {
		return err
	}
	here := candidateMatch{commit: id, when: when, hops: hops}

	for _, f := range files {
		lines, err := r.history.FileLines(ctx, id, f)
		if err != nil {
			if isCancel(ctx, err) {
				return err
			}
			continue
		}
		for _, line := range lines {
			for _, k := range m.match(line) {
				if cur, ok := best[k]; !ok || here.better(cur) {
					best[k] = here
				}
			}
		}
	}
	return nil
}

// ancestry answers "is a an ancestor of (or equal to) b" over the parent
// links recorded during the walk
type ancestry struct {
	parents map[string][]string
	memo    map[string]map[string]bool
}

func (a ancestry) isAncestor(candidate, of string) bool {
	set, ok := a.memo[of]
	if !ok {
		set = make(map[string]bool)
		stack := []string{of}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if set[id] {
				continue
			}
			set[id] = true
			stack = append(stack, a.parents[id]...)
		}
		a.memo[of] = set
	}
	return set[candidate]
}
