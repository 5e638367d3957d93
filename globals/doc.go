// Package globals holds the process-wide authoritative state of the server:
// configuration fixed at startup plus the two pieces of durable,
// concurrency-safe state backed by the persistent key-value tree.
//
// Durable state and its keys:
//
//   - "c": a monotonically increasing 64-bit counter, persisted as 8 bytes
//     big-endian. NextCount mints strictly ascending identifiers with no
//     gaps and no reuse, across goroutines and across process restarts.
//   - "keypair": the server's Ed25519 signing identity, generated exactly
//     once and reused forever.
//
// Both are mutated exclusively through KVTree.UpdateAndFetch with pure
// transforms; the package holds no locks of its own. The Globals handle is
// built once by Load and passed explicitly into request handling contexts.
package globals
