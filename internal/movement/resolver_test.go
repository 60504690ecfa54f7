package movement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/wahlandcase/lineauthor/internal/commitcache"
	"github.com/wahlandcase/lineauthor/internal/git/gittest"
	"github.com/wahlandcase/lineauthor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const movedLine = "return computeChecksum(payload, options)"

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return now.Add(-time.Duration(n) * 24 * time.Hour)
}

func newResolver(t *testing.T, fake *gittest.Fake) *Resolver {
	t.Helper()
	cache, err := commitcache.New(fake, 0, nil, nil)
	require.NoError(t, err)
	return NewResolver(fake, cache, nil)
}

// tenLines returns a ten line file whose seventh line is line7
func tenLines(line7 string) string {
	var b strings.Builder
	for i := 1; i <= 10; i++ {
		if i == 7 {
			b.WriteString(line7)
		} else {
			fmt.Fprintf(&b, "b line %d", i)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func recordsFor(content, commit string) []models.LineRecord {
	var out []models.LineRecord
	for i, line := range strings.Split(strings.TrimSuffix(content, "\n"), "\n") {
		out = append(out, models.NewLineRecord(i+1, commit, line))
	}
	return out
}

// movedHistory: c1 writes movedLine in a.go, c3 pastes it into b.go
func movedHistory() *gittest.Fake {
	fake := gittest.New()
	fake.AddCommit(gittest.Commit{
		ID: "c1", Author: "Ada Lovelace", When: daysAgo(40),
		Files: map[string]string{"a.go": "package a\n" + movedLine + "\n"},
	})
	fake.AddCommit(gittest.Commit{
		ID: "c2", Parents: []string{"c1"}, Author: "Grace Hopper", When: daysAgo(20),
		Files: map[string]string{"a.go": "package a\n" + movedLine + "\n", "c.go": "package c\n"},
	})
	fake.AddCommit(gittest.Commit{
		ID: "c3", Parents: []string{"c2"}, Author: "Alan Turing", When: daysAgo(2),
		Files: map[string]string{
			"a.go": "package a\n" + movedLine + "\n",
			"c.go": "package c\n",
			"b.go": tenLines(movedLine),
		},
	})
	return fake
}

func TestResolveInactivePassesThrough(t *testing.T) {
	fake := movedHistory()
	r := newResolver(t, fake)
	records := recordsFor(tenLines(movedLine), "c3")

	got, err := r.Resolve(context.Background(), "b.go", "c3", records, Options{Mode: models.FollowInactive})
	require.NoError(t, err)
	require.Len(t, got, 10)
	for i, a := range got {
		assert.Equal(t, i+1, a.LineNumber)
		assert.Equal(t, "c3", a.OriginCommitID)
		assert.Equal(t, "c3", a.BlamedCommitID)
		assert.False(t, a.IsMoved)
	}
	assert.Zero(t, fake.Calls("Parents"))
	assert.Zero(t, fake.Calls("FileLines"))
}

func TestResolveAllCommitsFindsEarliestOrigin(t *testing.T) {
	fake := movedHistory()
	r := newResolver(t, fake)
	records := recordsFor(tenLines(movedLine), "c3")

	got, err := r.Resolve(context.Background(), "b.go", "c3", records, Options{
		Mode:               models.FollowAllCommits,
		MinimumMatchLength: 10,
	})
	require.NoError(t, err)
	require.Len(t, got, 10)

	assert.Equal(t, "c1", got[6].OriginCommitID)
	assert.Equal(t, "c3", got[6].BlamedCommitID)
	assert.True(t, got[6].IsMoved)
	for i, a := range got {
		if i == 6 {
			continue
		}
		assert.Equal(t, "c3", a.OriginCommitID, "line %d", i+1)
		assert.False(t, a.IsMoved, "line %d", i+1)
	}
}

func TestResolveAllCommitsRespectsMinimumLength(t *testing.T) {
	fake := movedHistory()
	r := newResolver(t, fake)
	records := recordsFor(tenLines(movedLine), "c3")

	got, err := r.Resolve(context.Background(), "b.go", "c3", records, Options{
		Mode:               models.FollowAllCommits,
		MinimumMatchLength: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, "c3", got[6].OriginCommitID)
	assert.False(t, got[6].IsMoved)
	assert.Zero(t, fake.Calls("Parents"), "no candidates means no walk")
}

func TestResolveAllCommitsPrefersFewerHopsOnTimeTie(t *testing.T) {
	fake := gittest.New()
	fake.AddCommit(gittest.Commit{
		ID: "r1", When: daysAgo(30),
		Files: map[string]string{"x.go": movedLine + "\n"},
	})
	fake.AddCommit(gittest.Commit{
		ID: "r2", Parents: []string{"r1"}, When: daysAgo(30),
		Files: map[string]string{"x.go": movedLine + "\n", "y.go": movedLine + "\n"},
	})
	fake.AddCommit(gittest.Commit{
		ID: "r3", Parents: []string{"r2"}, When: daysAgo(1),
		Files: map[string]string{"x.go": movedLine + "\n", "y.go": movedLine + "\n", "z.go": movedLine + "\n"},
	})
	r := newResolver(t, fake)

	got, err := r.Resolve(context.Background(), "z.go", "r3",
		[]models.LineRecord{models.NewLineRecord(1, "r3", movedLine)},
		Options{Mode: models.FollowAllCommits, MinimumMatchLength: 10})
	require.NoError(t, err)
	assert.Equal(t, "r2", got[0].OriginCommitID)
	assert.True(t, got[0].IsMoved)
}

func TestResolveAllCommitsPrefersSmallerIDOnFullTie(t *testing.T) {
	fake := gittest.New()
	for _, id := range []string{"bbbb", "aaaa"} {
		fake.AddCommit(gittest.Commit{
			ID: id, When: daysAgo(30),
			Files: map[string]string{id + ".go": movedLine + "\n"},
		})
	}
	fake.AddCommit(gittest.Commit{
		ID: "merge", Parents: []string{"bbbb", "aaaa"}, When: daysAgo(1),
		Files: map[string]string{
			"aaaa.go": movedLine + "\n",
			"bbbb.go": movedLine + "\n",
			"z.go":    movedLine + "\n",
		},
		Changed: []string{"z.go"},
	})
	r := newResolver(t, fake)

	got, err := r.Resolve(context.Background(), "z.go", "merge",
		[]models.LineRecord{models.NewLineRecord(1, "merge", movedLine)},
		Options{Mode: models.FollowAllCommits, MinimumMatchLength: 10})
	require.NoError(t, err)
	assert.Equal(t, "aaaa", got[0].OriginCommitID)
}

func TestResolveAllCommitsIncludesUncommittedLines(t *testing.T) {
	fake := movedHistory()
	r := newResolver(t, fake)

	got, err := r.Resolve(context.Background(), "b.go", "c3",
		[]models.LineRecord{
			models.NewLineRecord(1, models.UncommittedID, movedLine),
			models.NewLineRecord(2, models.UncommittedID, "a brand new line that nobody has written before"),
		},
		Options{Mode: models.FollowAllCommits, MinimumMatchLength: 10})
	require.NoError(t, err)
	assert.Equal(t, "c1", got[0].OriginCommitID)
	assert.True(t, got[0].IsMoved)
	assert.Equal(t, models.UncommittedID, got[1].OriginCommitID)
	assert.False(t, got[1].IsMoved)
}

func TestResolveAllCommitsIgnoresWhitespaceWhenAsked(t *testing.T) {
	fake := movedHistory()
	r := newResolver(t, fake)
	spaced := "\treturn   computeChecksum(payload,  options)"
	records := []models.LineRecord{models.NewLineRecord(1, "c3", spaced)}

	got, err := r.Resolve(context.Background(), "b.go", "c3", records,
		Options{Mode: models.FollowAllCommits, MinimumMatchLength: 10})
	require.NoError(t, err)
	assert.False(t, got[0].IsMoved)

	got, err = r.Resolve(context.Background(), "b.go", "c3", records,
		Options{Mode: models.FollowAllCommits, MinimumMatchLength: 10, IgnoreWhitespace: true})
	require.NoError(t, err)
	assert.Equal(t, "c1", got[0].OriginCommitID)
	assert.True(t, got[0].IsMoved)
}

func TestResolveAllCommitsNearMatch(t *testing.T) {
	fake := movedHistory()
	r := newResolver(t, fake)
	edited := movedLine + ";"
	records := []models.LineRecord{models.NewLineRecord(1, "c3", edited)}

	got, err := r.Resolve(context.Background(), "b.go", "c3", records,
		Options{Mode: models.FollowAllCommits, MinimumMatchLength: 10})
	require.NoError(t, err)
	assert.False(t, got[0].IsMoved, "exact matching only by default")

	got, err = r.Resolve(context.Background(), "b.go", "c3", records,
		Options{Mode: models.FollowAllCommits, MinimumMatchLength: 10, Similarity: 0.9})
	require.NoError(t, err)
	assert.Equal(t, "c1", got[0].OriginCommitID)
	assert.True(t, got[0].IsMoved)
}

func TestResolveDegradesOnHistoryFailure(t *testing.T) {
	fake := movedHistory()
	fake.Fail("Parents", errors.New("object store corrupted"))
	r := newResolver(t, fake)
	records := recordsFor(tenLines(movedLine), "c3")

	got, err := r.Resolve(context.Background(), "b.go", "c3", records,
		Options{Mode: models.FollowAllCommits, MinimumMatchLength: 10})
	require.NoError(t, err)
	require.Len(t, got, 10)
	for _, a := range got {
		assert.Equal(t, "c3", a.OriginCommitID)
		assert.False(t, a.IsMoved)
	}
}

func TestResolveSkipsUnreadableCommit(t *testing.T) {
	fake := movedHistory()
	fake.Fail("ChangedFiles", errors.New("diff failed"))
	r := newResolver(t, fake)
	records := recordsFor(tenLines(movedLine), "c3")

	got, err := r.Resolve(context.Background(), "b.go", "c3", records,
		Options{Mode: models.FollowAllCommits, MinimumMatchLength: 10})
	require.NoError(t, err)
	assert.False(t, got[6].IsMoved)
	assert.Equal(t, 3, fake.Calls("Parents"), "walk continues past failing commits")
}

func TestResolveReturnsCancellation(t *testing.T) {
	fake := movedHistory()
	r := newResolver(t, fake)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := r.Resolve(ctx, "b.go", "c3", recordsFor(tenLines(movedLine), "c3"),
		Options{Mode: models.FollowAllCommits, MinimumMatchLength: 10})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, got)
}

// cutPasteHistory: s1 writes movedLine in a.go, s2 cuts it from a.go and
// pastes it into b.go
func cutPasteHistory() *gittest.Fake {
	fake := gittest.New()
	fake.AddCommit(gittest.Commit{
		ID: "s1", When: daysAgo(40),
		Files: map[string]string{"a.go": "package a\n" + movedLine + "\n"},
	})
	fake.AddCommit(gittest.Commit{
		ID: "s2", Parents: []string{"s1"}, When: daysAgo(1),
		Files: map[string]string{
			"a.go": "package a\n",
			"b.go": "package b\n" + movedLine + "\n" + "func fresh() { return someOtherComputation() }\n",
		},
	})
	return fake
}

func TestResolveSameCommitFollowsCutAndPaste(t *testing.T) {
	fake := cutPasteHistory()
	r := newResolver(t, fake)
	records := recordsFor("package b\n"+movedLine+"\nfunc fresh() { return someOtherComputation() }\n", "s2")

	got, err := r.Resolve(context.Background(), "b.go", "s2", records,
		Options{Mode: models.FollowSameCommit, MinimumMatchLength: 10})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "s2", got[0].OriginCommitID)
	assert.False(t, got[0].IsMoved)
	assert.Equal(t, "s1", got[1].OriginCommitID)
	assert.Equal(t, "s2", got[1].BlamedCommitID)
	assert.True(t, got[1].IsMoved)
	assert.Equal(t, "s2", got[2].OriginCommitID)
	assert.False(t, got[2].IsMoved)
}

func TestResolveSameCommitIgnoresOlderHistory(t *testing.T) {
	// c3 never touched a.go, so same-commit mode does not look there
	fake := movedHistory()
	r := newResolver(t, fake)
	records := recordsFor(tenLines(movedLine), "c3")

	got, err := r.Resolve(context.Background(), "b.go", "c3", records,
		Options{Mode: models.FollowSameCommit, MinimumMatchLength: 10})
	require.NoError(t, err)
	assert.False(t, got[6].IsMoved)
	assert.Equal(t, "c3", got[6].OriginCommitID)
}

func TestResolveSameCommitSkipsUncommitted(t *testing.T) {
	fake := cutPasteHistory()
	r := newResolver(t, fake)

	got, err := r.Resolve(context.Background(), "b.go", "s2",
		[]models.LineRecord{models.NewLineRecord(1, models.UncommittedID, movedLine)},
		Options{Mode: models.FollowSameCommit, MinimumMatchLength: 10})
	require.NoError(t, err)
	assert.Equal(t, models.UncommittedID, got[0].OriginCommitID)
	assert.False(t, got[0].IsMoved)
	assert.Zero(t, fake.Calls("Parents"))
}

func TestLengthCompatible(t *testing.T) {
	assert.True(t, lengthCompatible(40, 41, 0.9))
	assert.False(t, lengthCompatible(10, 40, 0.9))
	assert.True(t, lengthCompatible(10, 40, 0))
}

func TestNormalize(t *testing.T) {
	n := normalizer{minLength: 5, ignoreWhitespace: true}
	s, ok := n.normalize("  a   b\tc  ")
	assert.True(t, ok)
	assert.Equal(t, "a b c", s)

	_, ok = n.normalize("}")
	assert.False(t, ok)

	strict := normalizer{minLength: 3}
	s, ok = strict.normalize("  a  b ")
	assert.True(t, ok)
	assert.Equal(t, "a  b", s)
}
