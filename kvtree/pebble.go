package kvtree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/ruteri/server-identity-backend/interfaces"
)

// PebbleTree implements a durable tree backend on a local Pebble store.
// Pebble has no native per-key compare-and-swap, so an update mutex
// serializes read-modify-write cycles; every mutation is written with
// pebble.Sync so the committed value survives a crash.
type PebbleTree struct {
	db          *pebble.DB
	updateMu    sync.Mutex
	log         *slog.Logger
	locationURI string
}

// NewPebbleTree opens (or creates) a Pebble store at the given directory.
func NewPebbleTree(path string, log *slog.Logger) (*PebbleTree, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrTreeUnavailable, err)
	}

	return &PebbleTree{
		db:          db,
		log:         log,
		locationURI: fmt.Sprintf("pebble://%s", path),
	}, nil
}

// Get retrieves the value stored under key.
// Returns ErrKeyNotFound if the key is absent.
func (t *PebbleTree) Get(ctx context.Context, key []byte) ([]byte, error) {
	value, closer, err := t.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrTreeUnavailable, err)
	}

	// The returned slice is only valid until the closer is closed.
	out := make([]byte, len(value))
	copy(out, value)

	if err := closer.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrTreeUnavailable, err)
	}
	return out, nil
}

// UpdateAndFetch atomically applies transform to the current value of key
// and returns the committed result. A nil transform result deletes the key.
func (t *PebbleTree) UpdateAndFetch(ctx context.Context, key []byte, transform interfaces.TransformFunc) ([]byte, error) {
	t.updateMu.Lock()
	defer t.updateMu.Unlock()

	var old []byte
	value, closer, err := t.db.Get(key)
	switch {
	case errors.Is(err, pebble.ErrNotFound):
		// Absent key, transform sees nil.
	case err != nil:
		return nil, fmt.Errorf("%w: %v", interfaces.ErrTreeUnavailable, err)
	default:
		old = make([]byte, len(value))
		copy(old, value)
		if err := closer.Close(); err != nil {
			return nil, fmt.Errorf("%w: %v", interfaces.ErrTreeUnavailable, err)
		}
	}

	updated := transform(old)
	if updated == nil {
		if err := t.db.Delete(key, pebble.Sync); err != nil {
			return nil, fmt.Errorf("%w: %v", interfaces.ErrTreeUnavailable, err)
		}
		return nil, nil
	}

	if err := t.db.Set(key, updated, pebble.Sync); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrTreeUnavailable, err)
	}

	t.log.Debug("Updated key in pebble tree",
		slog.String("key", string(key)),
		slog.Int("size", len(updated)))

	return updated, nil
}

// Available checks if the store is open.
func (t *PebbleTree) Available(ctx context.Context) bool {
	return t.db != nil
}

// Name returns a unique identifier for this tree backend.
func (t *PebbleTree) Name() string {
	return "pebble"
}

// LocationURI returns the URI that identifies this tree backend.
func (t *PebbleTree) LocationURI() string {
	return t.locationURI
}

// Close flushes and closes the underlying store.
func (t *PebbleTree) Close() error {
	return t.db.Close()
}
