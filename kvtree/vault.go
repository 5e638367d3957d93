package kvtree

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/ruteri/server-identity-backend/interfaces"
)

// casMaxRetries bounds the optimistic check-and-set loop in UpdateAndFetch.
// Losing the race this many times in a row means the backend is effectively
// unavailable for this caller.
const casMaxRetries = 32

// VaultTree implements a tree backend on HashiCorp Vault's KV v2 secret
// engine. Values are base64-encoded under a "value" field; keys are
// hex-encoded into the secret path. UpdateAndFetch is an optimistic
// check-and-set loop on the KV v2 "cas" write option, so concurrent callers
// on the same key observe a total order of applications without any client
// side locking.
type VaultTree struct {
	client      *api.Client
	mountPath   string
	dataPath    string
	log         *slog.Logger
	locationURI string
}

// NewVaultTree creates a new Vault tree backend.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - mountPath: KV v2 mount path (e.g. "secret")
//   - dataPath: Path within the mount (e.g. "identity")
//   - log: Structured logger for operational insights
//
// Authentication uses the standard VAULT_TOKEN environment handling of the
// Vault API client.
func NewVaultTree(address, mountPath, dataPath string, log *slog.Logger) (*VaultTree, error) {
	config := api.DefaultConfig()
	config.Address = address

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	// Ensure paths are properly formatted
	mountPath = strings.TrimSuffix(mountPath, "/")
	dataPath = strings.TrimPrefix(dataPath, "/")
	dataPath = strings.TrimSuffix(dataPath, "/")

	return &VaultTree{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s/%s", address, mountPath, dataPath),
	}, nil
}

// secretPath builds the KV v2 data path for a tree key.
func (t *VaultTree) secretPath(key []byte) string {
	return fmt.Sprintf("%s/data/%s/%s", t.mountPath, t.dataPath, hex.EncodeToString(key))
}

// Get retrieves the value stored under key.
// Returns ErrKeyNotFound if the key is absent.
func (t *VaultTree) Get(ctx context.Context, key []byte) ([]byte, error) {
	secret, err := t.client.Logical().ReadWithContext(ctx, t.secretPath(key))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrTreeUnavailable, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, interfaces.ErrKeyNotFound
	}

	value, _, err := decodeKVSecret(secret)
	if err != nil {
		return nil, err
	}
	if value == nil {
		// A deleted KV v2 version reads back with empty data.
		return nil, interfaces.ErrKeyNotFound
	}
	return value, nil
}

// UpdateAndFetch atomically applies transform to the current value of key
// and returns the committed result. The loop re-reads and retries whenever
// the check-and-set write loses a race with a concurrent caller.
func (t *VaultTree) UpdateAndFetch(ctx context.Context, key []byte, transform interfaces.TransformFunc) ([]byte, error) {
	path := t.secretPath(key)

	for attempt := 0; attempt < casMaxRetries; attempt++ {
		secret, err := t.client.Logical().ReadWithContext(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", interfaces.ErrTreeUnavailable, err)
		}

		var old []byte
		version := 0
		if secret != nil && secret.Data != nil {
			old, version, err = decodeKVSecret(secret)
			if err != nil {
				return nil, err
			}
		}

		updated := transform(old)
		if updated == nil {
			if _, err := t.client.Logical().DeleteWithContext(ctx, path); err != nil {
				return nil, fmt.Errorf("%w: %v", interfaces.ErrTreeUnavailable, err)
			}
			return nil, nil
		}

		payload := map[string]interface{}{
			"data": map[string]interface{}{
				"value": base64.StdEncoding.EncodeToString(updated),
			},
			"options": map[string]interface{}{
				"cas": version,
			},
		}

		_, err = t.client.Logical().WriteWithContext(ctx, path, payload)
		if err != nil {
			if strings.Contains(err.Error(), "check-and-set") {
				// Lost the race, re-read the winner's value and retry.
				t.log.Debug("Vault check-and-set conflict, retrying",
					slog.String("path", path),
					slog.Int("attempt", attempt+1))
				continue
			}
			return nil, fmt.Errorf("%w: %v", interfaces.ErrTreeUnavailable, err)
		}

		return updated, nil
	}

	return nil, fmt.Errorf("%w: check-and-set retries exhausted", interfaces.ErrTreeUnavailable)
}

// decodeKVSecret extracts the stored value and version from a KV v2 read.
func decodeKVSecret(secret *api.Secret) ([]byte, int, error) {
	version := 0
	if meta, ok := secret.Data["metadata"].(map[string]interface{}); ok {
		switch raw := meta["version"].(type) {
		case json.Number:
			if v, err := raw.Int64(); err == nil {
				version = int(v)
			}
		case float64:
			version = int(raw)
		}
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, version, nil
	}
	encoded, ok := data["value"].(string)
	if !ok {
		return nil, version, nil
	}

	value, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, version, fmt.Errorf("%w: stored value is not valid base64: %v", interfaces.ErrBadDatabase, err)
	}
	return value, version, nil
}

// Available checks if the Vault backend is accessible.
// It uses the health endpoint to verify that Vault is initialized and unsealed.
func (t *VaultTree) Available(ctx context.Context) bool {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := t.client.Sys().HealthWithContext(healthCtx)
	if err != nil {
		t.log.Debug("Vault health check failed", "err", err)
		return false
	}

	if !health.Initialized || health.Sealed {
		t.log.Debug("Vault is not available",
			slog.Bool("initialized", health.Initialized),
			slog.Bool("sealed", health.Sealed))
		return false
	}

	return true
}

// Name returns a unique identifier for this tree backend.
func (t *VaultTree) Name() string {
	return fmt.Sprintf("vault-%s-%s", t.mountPath, t.dataPath)
}

// LocationURI returns the URI that identifies this tree backend.
func (t *VaultTree) LocationURI() string {
	return t.locationURI
}

// Close releases resources held by the tree. The Vault client holds no
// persistent connections that need closing.
func (t *VaultTree) Close() error {
	return nil
}
