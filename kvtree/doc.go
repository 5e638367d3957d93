// Package kvtree provides the persistent key-value tree backends behind the
// server's durable state.
//
// All backends implement interfaces.KVTree: a point read plus an atomic
// UpdateAndFetch that applies a pure transform to the current value of a key
// and commits the result linearizably with respect to concurrent callers on
// that key. How that guarantee is met differs per backend:
//
//   - MemoryTree serializes updates behind a mutex. Nothing survives the
//     process; meant for tests and ephemeral runs.
//   - PebbleTree stores keys in a local Pebble store. Pebble has no per-key
//     compare-and-swap, so updates are serialized behind a mutex and written
//     with sync durability.
//   - VaultTree stores keys in HashiCorp Vault's KV v2 engine and implements
//     UpdateAndFetch as an optimistic check-and-set retry loop on the KV v2
//     "cas" write option, so multiple processes sharing one Vault path still
//     observe a total order of updates.
//
// # Tree URI Format
//
// Backends are selected using URI format:
//
//	[scheme]://host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - memory://
//   - pebble:///var/lib/server-identity
//   - vault://vault.example.com:8200/secret/identity
//
// # Usage Example
//
//	factory := kvtree.NewTreeBackendFactory(logger)
//	location, err := interfaces.NewTreeLocation("pebble:///var/lib/server-identity")
//	if err != nil {
//	    log.Fatalf("Invalid tree location: %v", err)
//	}
//	tree, err := factory.TreeFor(location)
//	if err != nil {
//	    log.Fatalf("Failed to create tree: %v", err)
//	}
//	defer tree.Close()
package kvtree
