package allocid_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/virtgfx/virtgfx/allocid"
	"github.com/virtgfx/virtgfx/gfxutils"
)

func TestOpenRequiresName(t *testing.T) {
	_, err := allocid.Open("", allocid.Options{})
	require.ErrorIs(t, err, gfxutils.ErrInvalidArgument)
}

func TestNextIsSequentialFromFreshCounter(t *testing.T) {
	alloc, err := allocid.Open("ids", allocid.Options{Dir: t.TempDir()})
	require.NoError(t, err)
	defer alloc.Close()

	require.Equal(t, allocid.AllocID(1), alloc.Next())
	require.Equal(t, allocid.AllocID(2), alloc.Next())
	require.Equal(t, allocid.AllocID(3), alloc.Next())
}

func TestNextSharesCounterAcrossAllocators(t *testing.T) {
	dir := t.TempDir()

	first, err := allocid.Open("ids", allocid.Options{Dir: dir})
	require.NoError(t, err)
	defer first.Close()

	second, err := allocid.Open("ids", allocid.Options{Dir: dir})
	require.NoError(t, err)
	defer second.Close()

	seen := map[allocid.AllocID]bool{}
	for i := 0; i < 64; i++ {
		var id allocid.AllocID
		if i%2 == 0 {
			id = first.Next()
		} else {
			id = second.Next()
		}
		require.NotZero(t, id)
		require.False(t, seen[id], "id %d issued twice", id)
		seen[id] = true
	}
}

func TestNextSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	first, err := allocid.Open("ids", allocid.Options{Dir: dir})
	require.NoError(t, err)
	last := first.Next()
	require.NoError(t, first.Close())

	second, err := allocid.Open("ids", allocid.Options{Dir: dir})
	require.NoError(t, err)
	defer second.Close()

	require.Equal(t, last+1, second.Next())
}

func TestNextConcurrentIssuesDistinctIDs(t *testing.T) {
	alloc, err := allocid.Open("ids", allocid.Options{Dir: t.TempDir()})
	require.NoError(t, err)
	defer alloc.Close()

	const workers = 8
	const perWorker = 200

	results := make(chan allocid.AllocID, workers*perWorker)
	for w := 0; w < workers; w++ {
		go func() {
			for i := 0; i < perWorker; i++ {
				results <- alloc.Next()
			}
		}()
	}

	seen := map[allocid.AllocID]bool{}
	for i := 0; i < workers*perWorker; i++ {
		id := <-results
		require.NotZero(t, id)
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestNextAfterCloseReturnsZero(t *testing.T) {
	alloc, err := allocid.Open("ids", allocid.Options{Dir: t.TempDir()})
	require.NoError(t, err)
	require.NotZero(t, alloc.Next())
	require.NoError(t, alloc.Close())

	require.Zero(t, alloc.Next())
}

func TestNextReturnsZeroWhenRegionUnmappable(t *testing.T) {
	alloc, err := allocid.Open("ids", allocid.Options{Dir: "/nonexistent-dir-for-ids"})
	require.NoError(t, err)
	defer alloc.Close()

	require.Zero(t, alloc.Next())
}

func TestCloseIsIdempotent(t *testing.T) {
	alloc, err := allocid.Open("ids", allocid.Options{Dir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, alloc.Close())
	require.NoError(t, alloc.Close())
}

func TestTokenForID(t *testing.T) {
	require.Equal(t, allocid.ShareToken(42), allocid.TokenForID(42))
	require.Equal(t, allocid.ShareToken(0), allocid.TokenForID(0))
}
