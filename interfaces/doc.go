// Package interfaces defines the core contracts and shared types for the
// server identity backend.
//
// The central contract is KVTree, a durable byte-key/byte-value store whose
// UpdateAndFetch operation provides linearizable per-key read-modify-write.
// Every durable mutation in the system (the monotonic counter and the
// get-or-create of the signing keypair) funnels through that single
// operation; the rest of the codebase holds no locks for durable state.
//
// Tree backends are selected by URI through TreeLocation:
//
//   - memory:// for tests and ephemeral runs
//   - pebble:///var/lib/server-identity for a local durable tree
//   - vault://vault.example.com:8200/secret/identity for HashiCorp Vault
//
// The package also carries the error taxonomy shared by all components:
//
//   - ErrKeyNotFound: point read of an absent key
//   - ErrTreeUnavailable: backend I/O failure, propagated opaquely
//   - ErrBadDatabase: persisted bytes that fail to decode, never masked
//   - ErrBadConfig: configuration that fails validation at startup
//
// This package has no dependencies beyond the standard library so that every
// other package can import it freely.
package interfaces
