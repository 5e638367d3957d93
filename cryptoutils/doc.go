// Package cryptoutils provides the cryptographic identity primitives used by
// the server: the Ed25519 signing keypair type, its generation, and the
// durable blob encoding it is persisted under.
//
// The blob layout is deliberately simple and versioned through the key label:
//
//	label 0x00 private-key(64)
//
// Decoding is strict. A blob with a missing label or a private key of the
// wrong width fails with interfaces.ErrBadDatabase so that a corrupted
// identity is surfaced instead of silently replaced.
package cryptoutils
