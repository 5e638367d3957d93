package kvtree

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ruteri/server-identity-backend/interfaces"
)

// MemoryTree implements a tree backend held entirely in memory.
// A single mutex serializes all read-modify-write cycles, which trivially
// satisfies the per-key linearizability contract of interfaces.KVTree.
// It is the default backend for tests and ephemeral runs.
type MemoryTree struct {
	mu     sync.RWMutex
	values map[string][]byte
	log    *slog.Logger
}

// NewMemoryTree creates an empty in-memory tree.
func NewMemoryTree(log *slog.Logger) *MemoryTree {
	return &MemoryTree{
		values: make(map[string][]byte),
		log:    log,
	}
}

// Get retrieves the value stored under key.
// Returns ErrKeyNotFound if the key is absent.
func (t *MemoryTree) Get(ctx context.Context, key []byte) ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	value, ok := t.values[string(key)]
	if !ok {
		return nil, interfaces.ErrKeyNotFound
	}

	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// UpdateAndFetch atomically applies transform to the current value of key
// and returns the committed result. A nil transform result deletes the key.
func (t *MemoryTree) UpdateAndFetch(ctx context.Context, key []byte, transform interfaces.TransformFunc) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var old []byte
	if current, ok := t.values[string(key)]; ok {
		old = make([]byte, len(current))
		copy(old, current)
	}

	updated := transform(old)
	if updated == nil {
		delete(t.values, string(key))
		return nil, nil
	}

	stored := make([]byte, len(updated))
	copy(stored, updated)
	t.values[string(key)] = stored

	t.log.Debug("Updated key in memory tree",
		slog.String("key", string(key)),
		slog.Int("size", len(stored)))

	out := make([]byte, len(stored))
	copy(out, stored)
	return out, nil
}

// Available always reports true for the in-memory tree.
func (t *MemoryTree) Available(ctx context.Context) bool {
	return true
}

// Name returns a unique identifier for this tree backend.
func (t *MemoryTree) Name() string {
	return "memory"
}

// LocationURI returns the URI that identifies this tree backend.
func (t *MemoryTree) LocationURI() string {
	return "memory://"
}

// Close releases resources held by the tree. It is a no-op for memory trees.
func (t *MemoryTree) Close() error {
	return nil
}
