package git

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/wahlandcase/lineauthor/internal/models"

	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newDiskRepo creates a repository under t.TempDir() that a git binary can read
func newDiskRepo(t *testing.T) (*memRepo, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	return &memRepo{t: t, repo: repo, wt: wt}, dir
}

func newCLI(t *testing.T, dir string) *CLIBackend {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	b, err := NewCLIBackend(dir, "", []string{"GIT_CEILING_DIRECTORIES=" + filepath.Dir(dir)}, nil, nil)
	require.NoError(t, err)
	return b
}

func TestCLIBackend(t *testing.T) {
	ctx := context.Background()
	m, dir := newDiskRepo(t)
	b := newCLI(t, dir)
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	c1 := m.commit(map[string]string{"note.md": "alpha\nbeta\ngamma\n"}, "ada", t0)
	c2 := m.commit(map[string]string{
		"note.md":  "alpha\nBETA\ngamma\n",
		"other.md": "copied\n",
	}, "grace", t0.Add(48*time.Hour))

	head, err := b.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, c2, head)

	resolved, err := b.ResolveRevision(ctx, c2[:7])
	require.NoError(t, err)
	assert.Equal(t, c2, resolved)
	resolved, err = b.ResolveRevision(ctx, "HEAD~1")
	require.NoError(t, err)
	assert.Equal(t, c1, resolved)

	res, err := b.Blame(ctx, "note.md", head, BlameOptions{})
	require.NoError(t, err)
	require.Len(t, res.Lines, 3)
	assert.Equal(t, c1, res.Lines[0].CommitID)
	assert.Equal(t, c2, res.Lines[1].CommitID)
	assert.Equal(t, "BETA", res.Lines[1].Content)
	assert.Equal(t, c1, res.Lines[2].CommitID)
	assert.Equal(t, "grace", res.Commits[c2].AuthorName)
	assert.True(t, res.Commits[c1].AuthorTime.Equal(t0))

	info, err := b.CommitInfo(ctx, c1)
	require.NoError(t, err)
	assert.Equal(t, c1, info.CommitID)
	assert.Equal(t, "ada", info.AuthorName)
	assert.Equal(t, "ada@example.com", info.AuthorEmail)
	assert.True(t, info.AuthorTime.Equal(t0))

	parents, err := b.Parents(ctx, c2)
	require.NoError(t, err)
	assert.Equal(t, []string{c1}, parents)
	parents, err = b.Parents(ctx, c1)
	require.NoError(t, err)
	assert.Empty(t, parents)

	changed, err := b.ChangedFiles(ctx, c2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"note.md", "other.md"}, changed)

	changed, err = b.ChangedFiles(ctx, c1)
	require.NoError(t, err)
	assert.Equal(t, []string{"note.md"}, changed)

	lines, err := b.FileLines(ctx, c1, "note.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, lines)

	_, err = b.FileLines(ctx, c1, "other.md")
	assert.ErrorIs(t, err, ErrNotTracked)
	_, err = b.Blame(ctx, "missing.md", head, BlameOptions{})
	assert.ErrorIs(t, err, ErrNotTracked)
	_, err = b.CommitInfo(ctx, "0123456789012345678901234567890123456789")
	assert.ErrorIs(t, err, ErrRevisionMissing)
	_, err = b.ResolveRevision(ctx, "no-such-branch")
	assert.ErrorIs(t, err, ErrRevisionMissing)
	_, err = b.ResolveRevision(ctx, "--all")
	assert.ErrorIs(t, err, ErrRevisionMissing)
}

func TestCLIBackendBlameContents(t *testing.T) {
	ctx := context.Background()
	m, dir := newDiskRepo(t)
	b := newCLI(t, dir)
	c1 := m.commit(map[string]string{"note.md": "alpha\nbeta\n"}, "ada", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	res, err := b.Blame(ctx, "note.md", c1, BlameOptions{Contents: []byte("alpha\nbeta\ndraft\n")})
	require.NoError(t, err)
	require.Len(t, res.Lines, 3)
	assert.Equal(t, c1, res.Lines[0].CommitID)
	assert.Equal(t, c1, res.Lines[1].CommitID)
	assert.Equal(t, models.UncommittedID, res.Lines[2].CommitID)
	assert.Equal(t, "draft", res.Lines[2].Content)
}

func TestCLIBackendIgnoreWhitespace(t *testing.T) {
	ctx := context.Background()
	m, dir := newDiskRepo(t)
	b := newCLI(t, dir)
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c1 := m.commit(map[string]string{"main.go": "func main() {\nreturn\n}\n"}, "ada", t0)
	c2 := m.commit(map[string]string{"main.go": "func main() {\n\treturn\n}\n"}, "grace", t0.Add(time.Hour))

	res, err := b.Blame(ctx, "main.go", c2, BlameOptions{})
	require.NoError(t, err)
	assert.Equal(t, c2, res.Lines[1].CommitID)

	res, err = b.Blame(ctx, "main.go", c2, BlameOptions{IgnoreWhitespace: true})
	require.NoError(t, err)
	assert.Equal(t, c1, res.Lines[1].CommitID)
	assert.Equal(t, "\treturn", res.Lines[1].Content)
}

func TestCLIBackendUnbornHead(t *testing.T) {
	_, dir := newDiskRepo(t)
	b := newCLI(t, dir)
	_, err := b.Head(context.Background())
	assert.ErrorIs(t, err, ErrRevisionMissing)
}

func TestCLIBackendOutsideRepository(t *testing.T) {
	b := newCLI(t, t.TempDir())
	_, err := b.Head(context.Background())
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}
