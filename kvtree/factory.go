package kvtree

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ruteri/server-identity-backend/interfaces"
)

// TreeBackendFactory creates tree backends from location URIs.
type TreeBackendFactory struct {
	log *slog.Logger
}

// NewTreeBackendFactory creates a new factory instance that can create tree backends.
func NewTreeBackendFactory(logger *slog.Logger) *TreeBackendFactory {
	return &TreeBackendFactory{
		log: logger,
	}
}

// TreeFor creates a tree backend from a location URI.
//
// Supported schemes:
//   - memory:// - In-memory tree for tests and ephemeral runs
//   - pebble:// - Local durable tree, e.g. pebble:///var/lib/server-identity
//   - vault:// - HashiCorp Vault KV v2, e.g. vault://vault.example.com:8200/secret/identity
//
// Returns an error if the URI is invalid or the scheme is unsupported.
func (tf *TreeBackendFactory) TreeFor(location interfaces.TreeLocation) (interfaces.KVTree, error) {
	switch {
	case location.IsMemory():
		return NewMemoryTree(tf.log.With(slog.String("tree", "memory"))), nil
	case location.IsPebble():
		return tf.createPebbleTree(location)
	case location.IsVault():
		return tf.createVaultTree(location)
	default:
		return nil, fmt.Errorf("%w: unsupported tree scheme: %s", interfaces.ErrInvalidLocationURI, location.Scheme)
	}
}

// createPebbleTree creates a local durable tree.
// URI format: pebble:///var/lib/server-identity
func (tf *TreeBackendFactory) createPebbleTree(location interfaces.TreeLocation) (interfaces.KVTree, error) {
	tf.log.Debug("Creating pebble tree", slog.String("uri", location.String()))

	if location.Path == "" || location.Path == "/" {
		return nil, fmt.Errorf("%w: pebble location requires a directory path", interfaces.ErrInvalidLocationURI)
	}

	return NewPebbleTree(location.Path, tf.log.With(slog.String("tree", "pebble")))
}

// createVaultTree creates a Vault-backed tree.
// URI format: vault://vault.example.com:8200/mount/path[?insecure=true]
// The first path segment is the KV v2 mount, the remainder is the data path.
func (tf *TreeBackendFactory) createVaultTree(location interfaces.TreeLocation) (interfaces.KVTree, error) {
	tf.log.Debug("Creating vault tree", slog.String("uri", location.String()))

	if location.Host == "" {
		return nil, fmt.Errorf("%w: vault location requires a host", interfaces.ErrInvalidLocationURI)
	}

	parts := strings.SplitN(strings.Trim(location.Path, "/"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("%w: vault location requires /mount/path", interfaces.ErrInvalidLocationURI)
	}

	scheme := "https"
	if location.GetParamBool("insecure") {
		scheme = "http"
	}
	address := fmt.Sprintf("%s://%s", scheme, location.Host)

	return NewVaultTree(address, parts[0], parts[1], tf.log.With(slog.String("tree", "vault")))
}
