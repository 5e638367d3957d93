package interfaces

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

var (
	// ErrKeyNotFound is returned by Get when no value is stored under the key.
	ErrKeyNotFound = errors.New("key not found")

	// ErrTreeUnavailable is returned when a tree backend is not accessible.
	// This could be due to network issues, authentication failures, or service outages.
	ErrTreeUnavailable = errors.New("tree backend unavailable")

	// ErrBadDatabase is returned when persisted bytes cannot be decoded into
	// the value they are supposed to represent. Operations hitting it must
	// fail; retrying would re-read the same corrupt bytes.
	ErrBadDatabase = errors.New("bad database")

	// ErrBadConfig is returned when a configuration value fails validation.
	// The process must not start with an invalid identity or config.
	ErrBadConfig = errors.New("bad config")

	// ErrInvalidLocationURI is returned when a tree location URI is malformed or unsupported.
	// URIs must follow the format: [scheme]://host[:port][/path][?params]
	ErrInvalidLocationURI = errors.New("invalid tree location URI")
)

// TransformFunc computes the new durable value for a key from the current
// one. The argument is nil when the key is absent; a nil result deletes the
// key. Implementations of KVTree may apply a transform more than once under
// contention, so it must be a pure function of its input.
type TransformFunc func(old []byte) []byte

// KVTree is a durable byte-key/byte-value store with a linearizable per-key
// read-modify-write operation. It is the single synchronization mechanism
// for all durable mutable state in this server; callers hold no locks of
// their own.
type KVTree interface {
	// Get retrieves the value stored under key.
	// Returns ErrKeyNotFound if the key is absent.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// UpdateAndFetch atomically applies transform to the current value of
	// key, durably stores the result, and returns it. Concurrent callers on
	// the same key observe a total order of applications, each seeing the
	// committed result of the previous one.
	UpdateAndFetch(ctx context.Context, key []byte, transform TransformFunc) ([]byte, error)

	// Available checks if the backend is accessible.
	Available(ctx context.Context) bool

	// Name returns identifier for logging.
	Name() string

	// LocationURI returns URI identifying this tree.
	LocationURI() string

	// Close releases resources held by the tree.
	Close() error
}

// TreeLocation represents URI for a tree backend.
type TreeLocation struct {
	Raw    string     // Original URI
	Scheme string     // Protocol
	Host   string     // Hostname
	Path   string     // Resource path
	Query  url.Values // Query parameters
}

// NewTreeLocation creates a new tree location from a URI string with validation.
func NewTreeLocation(uri string) (TreeLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return TreeLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	// Validate scheme is supported
	scheme := parsed.Scheme
	switch scheme {
	case "memory", "pebble", "vault":
		// Valid scheme
	default:
		return TreeLocation{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocationURI, scheme)
	}

	return TreeLocation{
		Raw:    uri,
		Scheme: scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
	}, nil
}

// String returns the original URI string.
func (loc TreeLocation) String() string {
	return loc.Raw
}

// IsMemory checks if this is an in-memory tree location.
func (loc TreeLocation) IsMemory() bool {
	return loc.Scheme == "memory"
}

// IsPebble checks if this is a local Pebble tree location.
func (loc TreeLocation) IsPebble() bool {
	return loc.Scheme == "pebble"
}

// IsVault checks if this is a Vault tree location.
func (loc TreeLocation) IsVault() bool {
	return loc.Scheme == "vault"
}

// GetParam returns a query parameter value.
func (loc TreeLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool returns a boolean query parameter value.
func (loc TreeLocation) GetParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}

// TreeFactory creates tree backends.
type TreeFactory interface {
	// TreeFor creates a backend from URI.
	// Supports memory://, pebble://, vault://
	TreeFor(location TreeLocation) (KVTree, error)
}
