package attribution

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wahlandcase/lineauthor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted computes snapshots whose Revision is the current value of
// version. While hold is set the first computation blocks until released or
// cancelled.
type scripted struct {
	version atomic.Int64
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	hold    bool
	err     error
}

func newScripted() *scripted {
	s := &scripted{started: make(chan struct{}, 64), release: make(chan struct{})}
	s.version.Store(1)
	return s
}

func (s *scripted) compute(ctx context.Context, path string) (*models.FileAttributionSnapshot, error) {
	n := s.calls.Add(1)
	rev := strconv.FormatInt(s.version.Load(), 10)
	s.started <- struct{}{}
	if s.hold && n == 1 {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &models.FileAttributionSnapshot{
		FilePath: path,
		Revision: rev,
		Attributions: []models.Attribution{
			{LineNumber: 1, OriginCommitID: "c" + rev, BlamedCommitID: "c" + rev},
		},
	}, nil
}

func waitStarted(t *testing.T, s *scripted) {
	t.Helper()
	select {
	case <-s.started:
	case <-time.After(2 * time.Second):
		t.Fatal("computation did not start")
	}
}

func TestGetOrComputeBlocksForFirstSnapshot(t *testing.T) {
	s := newScripted()
	c := New(s.compute, nil)

	snap, err := c.GetOrCompute(context.Background(), "main.go")
	require.NoError(t, err)
	assert.Equal(t, "1", snap.Revision)
	assert.False(t, snap.StartedAt.IsZero())
	assert.False(t, snap.ComputedAt.IsZero())

	again, err := c.GetOrCompute(context.Background(), "main.go")
	require.NoError(t, err)
	assert.Same(t, snap, again)
	assert.Equal(t, int32(1), s.calls.Load())
}

func TestConcurrentCallersShareOneComputation(t *testing.T) {
	s := newScripted()
	s.hold = true
	c := New(s.compute, nil)

	var wg sync.WaitGroup
	results := make([]*models.FileAttributionSnapshot, 8)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := c.GetOrCompute(context.Background(), "main.go")
			assert.NoError(t, err)
			results[i] = snap
		}()
	}
	waitStarted(t, s)
	// Let the other callers reach the in-flight computation
	time.Sleep(50 * time.Millisecond)
	close(s.release)
	wg.Wait()

	assert.Equal(t, int32(1), s.calls.Load())
	for _, snap := range results {
		assert.Same(t, results[0], snap)
	}
}

func TestStaleWhileRevalidate(t *testing.T) {
	s := newScripted()
	c := New(s.compute, nil)
	updates, cancel := c.Subscribe()
	defer cancel()

	first, err := c.GetOrCompute(context.Background(), "main.go")
	require.NoError(t, err)
	<-updates

	s.version.Store(2)
	c.Invalidate("main.go")
	_, fresh := c.Peek("main.go")
	assert.False(t, fresh)

	stale, err := c.GetOrCompute(context.Background(), "main.go")
	require.NoError(t, err)
	assert.Same(t, first, stale)

	select {
	case u := <-updates:
		assert.Equal(t, "main.go", u.Path)
		assert.Equal(t, "2", u.Snapshot.Revision)
	case <-time.After(2 * time.Second):
		t.Fatal("no background refresh")
	}
	snap, fresh := c.Peek("main.go")
	assert.True(t, fresh)
	assert.Equal(t, "2", snap.Revision)
}

func TestDoubleInvalidateRetainsLatest(t *testing.T) {
	s := newScripted()
	s.hold = true
	c := New(s.compute, nil)
	updates, cancel := c.Subscribe()
	defer cancel()

	done := make(chan *models.FileAttributionSnapshot, 1)
	go func() {
		snap, err := c.GetOrCompute(context.Background(), "main.go")
		assert.NoError(t, err)
		done <- snap
	}()
	waitStarted(t, s)

	s.version.Store(2)
	c.Invalidate("main.go")
	s.version.Store(3)
	c.Invalidate("main.go")

	var got *models.FileAttributionSnapshot
	select {
	case got = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("GetOrCompute did not return")
	}
	assert.Equal(t, "3", got.Revision)
	require.Eventually(t, func() bool { return !c.Computing("main.go") }, 2*time.Second, 10*time.Millisecond)

	snap, fresh := c.Peek("main.go")
	assert.True(t, fresh)
	assert.Same(t, got, snap)

	// Exactly one snapshot was retained and published
	require.Len(t, updates, 1)
	u := <-updates
	assert.Equal(t, "3", u.Snapshot.Revision)
}

func TestOlderStartedResultIsDropped(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var n atomic.Int32
	compute := func(ctx context.Context, path string) (*models.FileAttributionSnapshot, error) {
		// Each computation claims to have started earlier than the last
		i := n.Add(1)
		return &models.FileAttributionSnapshot{
			FilePath:  path,
			Revision:  strconv.Itoa(int(i)),
			StartedAt: base.Add(-time.Duration(i) * time.Minute),
		}, nil
	}
	c := New(compute, nil)

	first, err := c.GetOrCompute(context.Background(), "main.go")
	require.NoError(t, err)

	c.Refresh("main.go")
	require.Eventually(t, func() bool { return !c.Computing("main.go") }, 2*time.Second, 10*time.Millisecond)

	snap, fresh := c.Peek("main.go")
	assert.Same(t, first, snap)
	assert.False(t, fresh)
	assert.Equal(t, int32(2), n.Load())
}

func TestComputeErrorIsReturned(t *testing.T) {
	s := newScripted()
	s.err = errors.New("backend exploded")
	c := New(s.compute, nil)

	_, err := c.GetOrCompute(context.Background(), "main.go")
	assert.EqualError(t, err, "backend exploded")
	assert.Equal(t, int32(1), s.calls.Load())
	snap, _ := c.Peek("main.go")
	assert.Nil(t, snap)
}

func TestCallerContextEndsWait(t *testing.T) {
	s := newScripted()
	s.hold = true
	c := New(s.compute, nil)
	defer close(s.release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.GetOrCompute(ctx, "main.go")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCloseForgetsFile(t *testing.T) {
	s := newScripted()
	c := New(s.compute, nil)

	_, err := c.GetOrCompute(context.Background(), "main.go")
	require.NoError(t, err)
	c.Close("main.go")
	snap, _ := c.Peek("main.go")
	assert.Nil(t, snap)

	_, err = c.GetOrCompute(context.Background(), "main.go")
	require.NoError(t, err)
	assert.Equal(t, int32(2), s.calls.Load())
}

func TestReopenDoesNotJoinClosedComputation(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	// The first computation ignores cancellation and reports an old revision
	compute := func(ctx context.Context, path string) (*models.FileAttributionSnapshot, error) {
		n := calls.Add(1)
		started <- struct{}{}
		rev := "new"
		if n == 1 {
			<-release
			rev = "old"
		}
		return &models.FileAttributionSnapshot{
			FilePath:     path,
			Revision:     rev,
			Attributions: []models.Attribution{{LineNumber: 1, OriginCommitID: "c1", BlamedCommitID: "c1"}},
		}, nil
	}
	c := New(compute, nil)

	firstDone := make(chan *models.FileAttributionSnapshot, 1)
	go func() {
		snap, _ := c.GetOrCompute(context.Background(), "a.md")
		firstDone <- snap
	}()
	<-started
	c.Close("a.md")

	reopened := make(chan *models.FileAttributionSnapshot, 1)
	go func() {
		snap, err := c.GetOrCompute(context.Background(), "a.md")
		assert.NoError(t, err)
		reopened <- snap
	}()
	select {
	case snap := <-reopened:
		require.NotNil(t, snap)
		assert.Equal(t, "new", snap.Revision)
	case <-time.After(2 * time.Second):
		t.Fatal("reopened file waited on the closed computation")
	}

	close(release)
	select {
	case <-firstDone:
	case <-time.After(2 * time.Second):
		t.Fatal("first caller did not return")
	}

	snap, fresh := c.Peek("a.md")
	require.NotNil(t, snap)
	assert.Equal(t, "new", snap.Revision)
	assert.True(t, fresh)
	assert.False(t, c.Computing("a.md"))
	assert.Equal(t, int32(2), calls.Load())
}

func TestInvalidateAllMarksEveryFileStale(t *testing.T) {
	s := newScripted()
	c := New(s.compute, nil)
	for _, p := range []string{"a.go", "b.go"} {
		_, err := c.GetOrCompute(context.Background(), p)
		require.NoError(t, err)
	}

	c.InvalidateAll()
	for _, p := range []string{"a.go", "b.go"} {
		snap, fresh := c.Peek(p)
		assert.NotNil(t, snap)
		assert.False(t, fresh)
	}

	c.Reset()
	snap, _ := c.Peek("a.go")
	assert.Nil(t, snap)
}

func TestMarkStaleDiscardsInFlightResult(t *testing.T) {
	s := newScripted()
	s.hold = true
	c := New(s.compute, nil)
	updates, cancel := c.Subscribe()
	defer cancel()

	c.Refresh("main.go")
	waitStarted(t, s)

	s.version.Store(2)
	c.MarkStale("main.go")
	assert.True(t, c.Computing("main.go"), "in-flight computation keeps running")
	close(s.release)

	require.Eventually(t, func() bool { return !c.Computing("main.go") }, 2*time.Second, 10*time.Millisecond)
	snap, _ := c.Peek("main.go")
	assert.Nil(t, snap, "superseded result is not retained")
	assert.Len(t, updates, 0)

	got, err := c.Recompute(context.Background(), "main.go")
	require.NoError(t, err)
	assert.Equal(t, "2", got.Revision)
}

func TestRecomputeReplacesFreshSnapshot(t *testing.T) {
	s := newScripted()
	c := New(s.compute, nil)

	first, err := c.GetOrCompute(context.Background(), "main.go")
	require.NoError(t, err)

	s.version.Store(5)
	got, err := c.Recompute(context.Background(), "main.go")
	require.NoError(t, err)
	assert.NotSame(t, first, got)
	assert.Equal(t, "5", got.Revision)

	snap, fresh := c.Peek("main.go")
	assert.True(t, fresh)
	assert.Same(t, got, snap)
}
