// Package main (cmd/httpserver) implements the identity server.
//
// The server owns the process-wide global state: a durable Ed25519 signing
// identity and a monotonically increasing counter, both held in a persistent
// key-value tree, plus the configuration surface resolved at startup. It
// exposes that state over HTTP for the rest of the deployment.
//
// The tree backend is selected by URI:
//
//   - memory:// holds state in process memory (tests, ephemeral runs)
//   - pebble:///var/lib/server-identity stores it in a local Pebble store
//   - vault://vault.example.com:8200/secret/identity stores it in
//     HashiCorp Vault's KV v2 engine, using check-and-set writes so several
//     server processes can safely share one path
//
// On first startup against an empty tree the server generates its signing
// keypair atomically; every later startup, and every concurrent first-time
// initialization, converges on that single committed identity.
//
// Configuration is handled through command-line flags with environment
// fallbacks (SERVER_NAME, JWT_SECRET). The server implements graceful
// shutdown on termination signals (SIGINT/SIGTERM) and supports health
// checks, metrics collection, and optional profiling endpoints.
//
// Example usage:
//
//	identity-server --listen-addr=0.0.0.0:8080 \
//	    --tree=pebble:///var/lib/server-identity \
//	    --server-name=example.org
package main
