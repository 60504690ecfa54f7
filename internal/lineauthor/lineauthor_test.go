package lineauthor

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/wahlandcase/lineauthor/internal/commitcache"
	"github.com/wahlandcase/lineauthor/internal/config"
	"github.com/wahlandcase/lineauthor/internal/git"
	"github.com/wahlandcase/lineauthor/internal/git/gittest"
	"github.com/wahlandcase/lineauthor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const movedLine = "return computeChecksum(payload, options)"

var testNow = time.Now().Truncate(time.Second)

func daysAgo(n int) time.Time {
	return testNow.Add(-time.Duration(n) * 24 * time.Hour)
}

func tenLines() string {
	var b strings.Builder
	for i := 1; i <= 10; i++ {
		if i == 7 {
			b.WriteString(movedLine)
		} else {
			fmt.Fprintf(&b, "line %d", i)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func history() *gittest.Fake {
	fake := gittest.New()
	fake.AddCommit(gittest.Commit{
		ID: "c1c1c1c1c1", Author: "Ada Lovelace", Email: "ada@example.com", When: daysAgo(40),
		Files: map[string]string{"a.go": movedLine + "\n"},
	})
	fake.AddCommit(gittest.Commit{
		ID: "c3c3c3c3c3", Parents: []string{"c1c1c1c1c1"}, Author: "Alan Mathison Turing", Email: "alan@example.com", When: daysAgo(2),
		Files: map[string]string{"a.go": movedLine + "\n", "b.go": tenLines()},
	})
	return fake
}

func newEngine(t *testing.T, fake *gittest.Fake) *Engine {
	t.Helper()
	commits, err := commitcache.New(fake, 0, nil, nil)
	require.NoError(t, err)
	return NewEngine(fake, models.NewRepoInfo("/repo", "/repo/.git", "main"), commits, nil)
}

func TestComputeAllCommitsScenario(t *testing.T) {
	fake := history()
	e := newEngine(t, fake)
	settings := config.DefaultSettings()
	settings.Movement = models.FollowAllCommits
	settings.MinimumMatchLength = 10

	snap, err := e.Compute(context.Background(), "b.go", settings, nil)
	require.NoError(t, err)
	require.NoError(t, snap.Validate())
	require.Equal(t, 10, snap.LineCount())
	assert.Equal(t, "c3c3c3c3c3", snap.Revision)

	line7, ok := snap.Line(7)
	require.True(t, ok)
	assert.Equal(t, "c1c1c1c1c1", line7.OriginCommitID)
	assert.Equal(t, "c3c3c3c3c3", line7.BlamedCommitID)
	assert.True(t, line7.IsMoved)
	assert.True(t, line7.OriginTime.Equal(daysAgo(40)))

	line1, _ := snap.Line(1)
	assert.False(t, line1.IsMoved)
	assert.True(t, line1.OriginTime.Equal(daysAgo(2)))
	assert.False(t, snap.StartedAt.After(snap.ComputedAt))
}

func TestComputeInactiveIsRawBlame(t *testing.T) {
	e := newEngine(t, history())

	snap, err := e.Compute(context.Background(), "b.go", config.DefaultSettings(), nil)
	require.NoError(t, err)
	for _, a := range snap.Attributions {
		assert.False(t, a.IsMoved)
		assert.Equal(t, a.BlamedCommitID, a.OriginCommitID)
	}
}

func TestComputeIsIdempotent(t *testing.T) {
	e := newEngine(t, history())
	settings := config.DefaultSettings()
	settings.Movement = models.FollowAllCommits
	settings.MinimumMatchLength = 10

	first, err := e.Compute(context.Background(), "b.go", settings, nil)
	require.NoError(t, err)
	second, err := e.Compute(context.Background(), "b.go", settings, nil)
	require.NoError(t, err)
	for i := range first.Attributions {
		assert.Equal(t, first.Attributions[i].OriginCommitID, second.Attributions[i].OriginCommitID)
	}
}

func TestComputeNotTracked(t *testing.T) {
	e := newEngine(t, history())
	_, err := e.Compute(context.Background(), "missing.go", config.DefaultSettings(), nil)
	assert.ErrorIs(t, err, git.ErrNotTracked)

	_, err = e.Compute(context.Background(), "/elsewhere/x.go", config.DefaultSettings(), nil)
	assert.ErrorIs(t, err, git.ErrNotTracked)
	assert.NoError(t, e.Disabled())
}

func TestBackendUnavailableDisablesUntilReset(t *testing.T) {
	fake := history()
	fake.Fail("Head", fmt.Errorf("git not found: %w", git.ErrBackendUnavailable))
	e := newEngine(t, fake)

	_, err := e.Compute(context.Background(), "b.go", config.DefaultSettings(), nil)
	assert.ErrorIs(t, err, git.ErrBackendUnavailable)

	_, err = e.Compute(context.Background(), "b.go", config.DefaultSettings(), nil)
	assert.ErrorIs(t, err, ErrDisabled)
	assert.Equal(t, 1, fake.Calls("Head"), "not retried automatically")

	fake.Fail("Head", nil)
	e.Reset()
	_, err = e.Compute(context.Background(), "b.go", config.DefaultSettings(), nil)
	assert.NoError(t, err)
}

func TestFormatAuthor(t *testing.T) {
	tests := []struct {
		display models.AuthorDisplay
		want    string
	}{
		{models.AuthorHide, ""},
		{models.AuthorInitials, "AMT"},
		{models.AuthorFirstName, "Alan"},
		{models.AuthorLastName, "Turing"},
		{models.AuthorFull, "Alan Mathison Turing"},
	}
	for _, tt := range tests {
		t.Run(string(tt.display), func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAuthor("  Alan  Mathison Turing ", tt.display))
		})
	}
	assert.Equal(t, "ÉZ", FormatAuthor("émile zola", models.AuthorInitials))
	assert.Equal(t, "", FormatAuthor("   ", models.AuthorFull))
}

func TestAnnotate(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	authored := now.Add(-15 * 24 * time.Hour)
	snap := &models.FileAttributionSnapshot{
		FilePath: "b.go",
		Attributions: []models.Attribution{
			{LineNumber: 1, OriginCommitID: "abcdef1234", BlamedCommitID: "abcdef1234", OriginTime: authored},
			{LineNumber: 2, OriginCommitID: models.UncommittedID, BlamedCommitID: models.UncommittedID},
			{LineNumber: 3, OriginCommitID: "abcdef1234", BlamedCommitID: "9999999999", OriginTime: authored, IsMoved: true},
		},
	}
	commits := map[string]models.CommitInfo{
		"abcdef1234": models.NewCommitInfo("abcdef1234", "Grace Hopper", "grace@example.com", authored),
	}
	settings := config.DefaultSettings()
	settings.MaxAge = 30 * 24 * time.Hour
	settings.ColorNewest = models.NewRGB(0, 255, 0)
	settings.ColorOldest = models.NewRGB(255, 0, 0)
	settings.Timezone = models.ZoneUTC
	settings.AuthorDisplay = models.AuthorFull

	got := Annotate(snap, commits, settings, now)
	require.Len(t, got, 3)

	assert.Equal(t, 1, got[0].LineNumber)
	assert.Equal(t, "abcdef1", got[0].CommitHashShort)
	assert.Equal(t, "Grace Hopper", got[0].AuthorDisplay)
	assert.Equal(t, "2024-05-17", got[0].FormattedDate)
	assert.Equal(t, models.NewRGB(128, 128, 0), got[0].Color)
	assert.False(t, got[0].IsMoved)

	assert.True(t, got[1].Uncommitted)
	assert.Equal(t, UncommittedHash, got[1].CommitHashShort)
	assert.Equal(t, "Not Committed Yet", got[1].AuthorDisplay)
	assert.Equal(t, settings.ColorNewest, got[1].Color)
	assert.False(t, got[1].HasDate())

	assert.True(t, got[2].IsMoved)

	settings.DateDisplay = models.DateHide
	settings.AuthorDisplay = models.AuthorHide
	hidden := Annotate(snap, commits, settings, now)
	assert.False(t, hidden[0].HasDate())
	assert.Empty(t, hidden[0].AuthorDisplay)
}

func TestProviderLifecycle(t *testing.T) {
	fake := history()
	e := newEngine(t, fake)
	settings := config.DefaultSettings()
	settings.MinimumMatchLength = 10
	p := NewProvider(e, settings, 10*time.Millisecond, nil)
	defer p.Stop()

	updates, cancel := p.Subscribe()
	defer cancel()

	p.Open("b.go")
	select {
	case u := <-updates:
		assert.Equal(t, "b.go", u.Path)
		assert.Equal(t, 10, u.Snapshot.LineCount())
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot after Open")
	}

	anns, err := p.Annotations(context.Background(), "b.go")
	require.NoError(t, err)
	require.Len(t, anns, 10)
	assert.False(t, anns[6].IsMoved)
	assert.Equal(t, "AMT", anns[6].AuthorDisplay)

	next := settings
	next.Movement = models.FollowAllCommits
	p.UpdateSettings(next)
	select {
	case u := <-updates:
		line7, _ := u.Snapshot.Line(7)
		assert.True(t, line7.IsMoved)
	case <-time.After(2 * time.Second):
		t.Fatal("no recompute after settings change")
	}

	anns, err = p.Annotations(context.Background(), "b.go")
	require.NoError(t, err)
	assert.True(t, anns[6].IsMoved)
	assert.Equal(t, "AL", anns[6].AuthorDisplay)

	off := next
	off.Enabled = false
	p.UpdateSettings(off)
	anns, err = p.Annotations(context.Background(), "b.go")
	assert.NoError(t, err)
	assert.Nil(t, anns)
}

func TestProviderEditTriggersRecompute(t *testing.T) {
	fake := history()
	p := NewProvider(newEngine(t, fake), config.DefaultSettings(), 10*time.Millisecond, nil)
	defer p.Stop()
	updates, cancel := p.Subscribe()
	defer cancel()

	p.Open("b.go")
	<-updates
	blames := fake.Calls("Blame")

	p.Edited("b.go", []byte(tenLines()+"new line\n"))
	select {
	case <-updates:
	case <-time.After(2 * time.Second):
		t.Fatal("no recompute after edit")
	}
	assert.Equal(t, blames+1, fake.Calls("Blame"))
}

func TestProviderSuppressesUntracked(t *testing.T) {
	p := NewProvider(newEngine(t, history()), config.DefaultSettings(), time.Hour, nil)
	defer p.Stop()

	anns, err := p.Annotations(context.Background(), "missing.go")
	assert.NoError(t, err)
	assert.Nil(t, anns)
}

func TestProviderReportsUnavailableOnce(t *testing.T) {
	fake := history()
	fake.Fail("Head", fmt.Errorf("git not found: %w", git.ErrBackendUnavailable))
	p := NewProvider(newEngine(t, fake), config.DefaultSettings(), time.Hour, nil)
	defer p.Stop()

	_, err := p.Annotations(context.Background(), "b.go")
	assert.ErrorIs(t, err, git.ErrBackendUnavailable)

	anns, err := p.Annotations(context.Background(), "a.go")
	assert.NoError(t, err)
	assert.Nil(t, anns)

	fake.Fail("Head", nil)
	p.Reset()
	anns, err = p.Annotations(context.Background(), "b.go")
	require.NoError(t, err)
	assert.Len(t, anns, 10)
}

func TestProviderOpenContentsBlamesBuffer(t *testing.T) {
	fake := history()
	p := NewProvider(newEngine(t, fake), config.DefaultSettings(), time.Hour, nil)
	defer p.Stop()

	p.OpenContents("b.go", []byte(tenLines()+"draft\n"))
	anns, err := p.Annotations(context.Background(), "b.go")
	require.NoError(t, err)
	require.Len(t, anns, 11)
	assert.True(t, anns[10].Uncommitted)
	assert.False(t, anns[0].Uncommitted)
}

func TestComputeAtRevision(t *testing.T) {
	fake := history()
	e := newEngine(t, fake)

	snap, err := e.ComputeAt(context.Background(), "a.go", "c1c1c1c1c1", config.DefaultSettings(), nil)
	require.NoError(t, err)
	assert.Equal(t, "c1c1c1c1c1", snap.Revision)
	assert.Equal(t, 0, fake.Calls("Head"))
	line1, _ := snap.Line(1)
	assert.Equal(t, "c1c1c1c1c1", line1.OriginCommitID)
}

func TestComputeAtRefResolvesBeforeFollowing(t *testing.T) {
	fake := history()
	fake.SetRef("main", "c3c3c3c3c3")
	e := newEngine(t, fake)
	settings := config.DefaultSettings()
	settings.Movement = models.FollowAllCommits
	settings.MinimumMatchLength = 10

	for _, rev := range []string{"main", "HEAD"} {
		snap, err := e.ComputeAt(context.Background(), "b.go", rev, settings, nil)
		require.NoError(t, err, rev)
		assert.Equal(t, "c3c3c3c3c3", snap.Revision, rev)

		line7, ok := snap.Line(7)
		require.True(t, ok)
		assert.Equal(t, "c1c1c1c1c1", line7.OriginCommitID, rev)
		assert.True(t, line7.IsMoved, rev)
	}
}

func TestComputeAtUnknownRevision(t *testing.T) {
	e := newEngine(t, history())
	_, err := e.ComputeAt(context.Background(), "b.go", "no-such-branch", config.DefaultSettings(), nil)
	assert.ErrorIs(t, err, git.ErrRevisionMissing)
	assert.NoError(t, e.Disabled())
}
