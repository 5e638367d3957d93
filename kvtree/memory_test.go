package kvtree

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/ruteri/server-identity-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMemoryTree_GetAbsent(t *testing.T) {
	tree := NewMemoryTree(testLogger())

	_, err := tree.Get(context.Background(), []byte("missing"))
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
}

func TestMemoryTree_UpdateAndFetch(t *testing.T) {
	tree := NewMemoryTree(testLogger())
	ctx := context.Background()

	committed, err := tree.UpdateAndFetch(ctx, []byte("k"), func(old []byte) []byte {
		require.Nil(t, old)
		return []byte("v1")
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), committed)

	committed, err = tree.UpdateAndFetch(ctx, []byte("k"), func(old []byte) []byte {
		require.Equal(t, []byte("v1"), old)
		return []byte("v2")
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), committed)

	value, err := tree.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), value)
}

func TestMemoryTree_NilTransformDeletes(t *testing.T) {
	tree := NewMemoryTree(testLogger())
	ctx := context.Background()

	_, err := tree.UpdateAndFetch(ctx, []byte("k"), func([]byte) []byte { return []byte("v") })
	require.NoError(t, err)

	committed, err := tree.UpdateAndFetch(ctx, []byte("k"), func([]byte) []byte { return nil })
	require.NoError(t, err)
	assert.Nil(t, committed)

	_, err = tree.Get(ctx, []byte("k"))
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
}

func TestMemoryTree_ConcurrentIncrements(t *testing.T) {
	const workers = 16
	const perWorker = 50

	tree := NewMemoryTree(testLogger())
	ctx := context.Background()

	var mu sync.Mutex
	seen := make(map[uint64]bool)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				committed, err := tree.UpdateAndFetch(ctx, []byte("c"), func(old []byte) []byte {
					var current uint64
					if old != nil {
						current = binary.BigEndian.Uint64(old)
					}
					next := make([]byte, 8)
					binary.BigEndian.PutUint64(next, current+1)
					return next
				})
				assert.NoError(t, err)

				mu.Lock()
				seen[binary.BigEndian.Uint64(committed)] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Every value in 1..N observed exactly once: no duplicates, no gaps.
	require.Len(t, seen, workers*perWorker)
	for v := uint64(1); v <= workers*perWorker; v++ {
		assert.True(t, seen[v], "missing value %d", v)
	}
}
