package cryptoutils

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/ruteri/server-identity-backend/interfaces"
)

// DefaultKeyID is the version label assigned to a freshly generated key.
const DefaultKeyID = "key1"

// SigningKeyPair is the server's durable Ed25519 identity: private and
// public components together with a key version label.
type SigningKeyPair struct {
	KeyID      string
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey
}

// GenerateSigningKeyPair creates a fresh Ed25519 keypair labeled with DefaultKeyID.
func GenerateSigningKeyPair() (*SigningKeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key: %w", err)
	}

	return &SigningKeyPair{
		KeyID:      DefaultKeyID,
		PrivateKey: priv,
		PublicKey:  pub,
	}, nil
}

// Sign signs message with the private key.
func (kp *SigningKeyPair) Sign(message []byte) []byte {
	return ed25519.Sign(kp.PrivateKey, message)
}

// Verify reports whether sig is a valid signature of message by this keypair.
func (kp *SigningKeyPair) Verify(message, sig []byte) bool {
	return ed25519.Verify(kp.PublicKey, message, sig)
}

// PublicKeyBase64 returns the public key in unpadded base64, the form
// published to peers.
func (kp *SigningKeyPair) PublicKeyBase64() string {
	return base64.RawStdEncoding.EncodeToString(kp.PublicKey)
}

// Marshal encodes the keypair into its durable blob form: the key version
// label, a zero byte separator, and the 64-byte Ed25519 private key.
func (kp *SigningKeyPair) Marshal() []byte {
	blob := make([]byte, 0, len(kp.KeyID)+1+len(kp.PrivateKey))
	blob = append(blob, kp.KeyID...)
	blob = append(blob, 0)
	blob = append(blob, kp.PrivateKey...)
	return blob
}

// UnmarshalSigningKeyPair decodes a durable blob produced by Marshal.
// Malformed input is a data-corruption error wrapping ErrBadDatabase; a
// corrupted identity must never be masked by substituting a fresh key.
func UnmarshalSigningKeyPair(blob []byte) (*SigningKeyPair, error) {
	sep := bytes.IndexByte(blob, 0)
	if sep <= 0 {
		return nil, fmt.Errorf("%w: signing key blob has no version label", interfaces.ErrBadDatabase)
	}

	keyID := string(blob[:sep])
	privBytes := blob[sep+1:]
	if len(privBytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: signing key has invalid length %d", interfaces.ErrBadDatabase, len(privBytes))
	}

	priv := ed25519.PrivateKey(append([]byte(nil), privBytes...))
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: signing key has no valid public component", interfaces.ErrBadDatabase)
	}

	return &SigningKeyPair{
		KeyID:      keyID,
		PrivateKey: priv,
		PublicKey:  pub,
	}, nil
}
