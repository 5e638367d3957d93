package globals

import (
	"context"

	"github.com/ruteri/server-identity-backend/cryptoutils"
	"github.com/ruteri/server-identity-backend/interfaces"
)

// KeypairKey is the tree key holding the server's durable signing identity.
const KeypairKey = "keypair"

// LoadOrGenerateSigningKeyPair returns the server's durable identity,
// generating and committing a fresh keypair only when the tree holds none.
// The transform passes an existing blob through unchanged, so reloading an
// initialized store, or racing another first-time caller, always converges
// on the single committed keypair. Generation under a lost race may run
// more than once; only the committed result is ever decoded or used.
//
// A blob that fails to decode is surfaced as ErrBadDatabase. It is never
// replaced with a fresh key, since that would silently rotate the server's
// identity and invalidate everything it has signed.
func LoadOrGenerateSigningKeyPair(ctx context.Context, tree interfaces.KVTree) (*cryptoutils.SigningKeyPair, error) {
	var genErr error
	blob, err := tree.UpdateAndFetch(ctx, []byte(KeypairKey), func(old []byte) []byte {
		if old != nil {
			return old
		}

		keypair, err := cryptoutils.GenerateSigningKeyPair()
		if err != nil {
			genErr = err
			return nil
		}
		return keypair.Marshal()
	})
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		return nil, genErr
	}

	return cryptoutils.UnmarshalSigningKeyPair(blob)
}
