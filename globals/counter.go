package globals

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ruteri/server-identity-backend/interfaces"
)

// CounterKey is the tree key holding the next-id source.
const CounterKey = "c"

// counterWidth is the fixed width of the persisted big-endian counter.
const counterWidth = 8

// NextCount atomically increments the durable counter in tree and returns
// the new value. The transform decodes the current bytes (absence is 0),
// adds one and re-encodes; the tree guarantees no two concurrent callers
// ever observe the same result. Persisted bytes of the wrong width fail
// with ErrBadDatabase and leave the stored value untouched.
func NextCount(ctx context.Context, tree interfaces.KVTree) (uint64, error) {
	// The transform may run more than once under a lost race; writing corrupt
	// again is idempotent and only the committed result is ever decoded.
	var corrupt error
	committed, err := tree.UpdateAndFetch(ctx, []byte(CounterKey), func(old []byte) []byte {
		if old != nil && len(old) != counterWidth {
			corrupt = fmt.Errorf("%w: count has invalid bytes", interfaces.ErrBadDatabase)
			return old
		}

		var current uint64
		if old != nil {
			current = binary.BigEndian.Uint64(old)
		}

		next := make([]byte, counterWidth)
		binary.BigEndian.PutUint64(next, current+1)
		return next
	})
	if err != nil {
		return 0, err
	}
	if corrupt != nil {
		return 0, corrupt
	}

	return u64FromBytes(committed)
}

// CurrentCount returns the counter's current value in tree without mutating
// it. An absent key reads as 0.
func CurrentCount(ctx context.Context, tree interfaces.KVTree) (uint64, error) {
	value, err := tree.Get(ctx, []byte(CounterKey))
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return u64FromBytes(value)
}

// NextCount mints the next globally unique, strictly ascending identifier.
func (g *Globals) NextCount(ctx context.Context) (uint64, error) {
	return NextCount(ctx, g.tree)
}

// CurrentCount returns the last minted identifier, 0 when none was minted yet.
func (g *Globals) CurrentCount(ctx context.Context) (uint64, error) {
	return CurrentCount(ctx, g.tree)
}

// u64FromBytes decodes a persisted counter value, rejecting any width other
// than the fixed 8-byte encoding.
func u64FromBytes(value []byte) (uint64, error) {
	if len(value) != counterWidth {
		return 0, fmt.Errorf("%w: count has invalid bytes", interfaces.ErrBadDatabase)
	}
	return binary.BigEndian.Uint64(value), nil
}
