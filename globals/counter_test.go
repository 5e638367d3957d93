package globals

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/ruteri/server-identity-backend/interfaces"
	"github.com/ruteri/server-identity-backend/kvtree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedCounter(t *testing.T, tree interfaces.KVTree, value []byte) {
	t.Helper()
	_, err := tree.UpdateAndFetch(context.Background(), []byte(CounterKey), func([]byte) []byte {
		return value
	})
	require.NoError(t, err)
}

func TestCurrentCount_EmptyTree(t *testing.T) {
	tree := kvtree.NewMemoryTree(testLogger())

	count, err := CurrentCount(context.Background(), tree)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestNextCount_Sequence(t *testing.T) {
	tree := kvtree.NewMemoryTree(testLogger())
	ctx := context.Background()

	for want := uint64(1); want <= 3; want++ {
		got, err := NextCount(ctx, tree)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	count, err := CurrentCount(ctx, tree)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestNextCount_PreSeededStore(t *testing.T) {
	tree := kvtree.NewMemoryTree(testLogger())
	ctx := context.Background()

	seed := make([]byte, 8)
	binary.BigEndian.PutUint64(seed, 5)
	seedCounter(t, tree, seed)

	count, err := CurrentCount(ctx, tree)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), count)

	next, err := NextCount(ctx, tree)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), next)
}

func TestCounter_CorruptBytes(t *testing.T) {
	tree := kvtree.NewMemoryTree(testLogger())
	ctx := context.Background()

	corrupt := []byte{1, 2, 3}
	seedCounter(t, tree, corrupt)

	_, err := CurrentCount(ctx, tree)
	assert.ErrorIs(t, err, interfaces.ErrBadDatabase)

	_, err = NextCount(ctx, tree)
	assert.ErrorIs(t, err, interfaces.ErrBadDatabase)

	// The corrupt value must survive untouched for inspection.
	stored, err := tree.Get(ctx, []byte(CounterKey))
	require.NoError(t, err)
	assert.Equal(t, corrupt, stored)
}

func TestNextCount_Concurrent(t *testing.T) {
	const workers = 16
	const perWorker = 25

	tree := kvtree.NewMemoryTree(testLogger())
	ctx := context.Background()

	var mu sync.Mutex
	seen := make(map[uint64]bool)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				got, err := NextCount(ctx, tree)
				assert.NoError(t, err)

				mu.Lock()
				assert.False(t, seen[got], "value %d minted twice", got)
				seen[got] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*perWorker)
	for v := uint64(1); v <= workers*perWorker; v++ {
		assert.True(t, seen[v], "missing value %d", v)
	}

	count, err := CurrentCount(ctx, tree)
	require.NoError(t, err)
	assert.Equal(t, uint64(workers*perWorker), count)
}
