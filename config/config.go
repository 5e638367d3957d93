// Package config resolves and validates the runtime configuration of the
// server. Values follow a fixed precedence: explicitly supplied value, then
// environment variable, then built-in default. Validation failures are
// configuration errors; the process must not start with an invalid identity
// or limits.
package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/ruteri/server-identity-backend/interfaces"
)

const (
	// DefaultServerName is used when neither config nor environment name the server.
	DefaultServerName = "localhost"

	// DefaultMaxRequestSize is the request body limit applied when unset (20 MiB).
	DefaultMaxRequestSize = 20 * 1024 * 1024

	// DefaultJWTSecret is the fallback token-decoding secret.
	DefaultJWTSecret = "jwt_secret"

	// ServerNameEnv is the environment fallback for the server name.
	ServerNameEnv = "SERVER_NAME"

	// JWTSecretEnv is the environment fallback for the token-decoding secret.
	JWTSecretEnv = "JWT_SECRET"
)

// Options carries raw, not yet validated configuration values as they come
// from flags. Zero values mean "unset".
type Options struct {
	ServerName           string
	MaxRequestSize       int64
	RegistrationDisabled bool
	EncryptionDisabled   bool
	JWTSecret            string
}

// Config is the validated runtime configuration consumed by globals.Load.
type Config struct {
	ServerName           string
	MaxRequestSize       uint32
	RegistrationDisabled bool
	EncryptionDisabled   bool
	JWTSecret            string
}

// Resolve validates opts into a Config, applying environment fallbacks and
// defaults. All failures wrap ErrBadConfig.
func Resolve(opts Options) (*Config, error) {
	serverName := opts.ServerName
	if serverName == "" {
		if env, ok := os.LookupEnv(ServerNameEnv); ok && env != "" {
			serverName = env
		} else {
			serverName = DefaultServerName
		}
	}
	if err := validateServerName(serverName); err != nil {
		return nil, err
	}

	maxRequestSize := opts.MaxRequestSize
	if maxRequestSize == 0 {
		maxRequestSize = DefaultMaxRequestSize
	}
	if maxRequestSize < 0 || maxRequestSize > math.MaxUint32 {
		return nil, fmt.Errorf("%w: invalid max_request_size %d", interfaces.ErrBadConfig, maxRequestSize)
	}

	jwtSecret := opts.JWTSecret
	if jwtSecret == "" {
		if env, ok := os.LookupEnv(JWTSecretEnv); ok && env != "" {
			jwtSecret = env
		} else {
			jwtSecret = DefaultJWTSecret
		}
	}

	return &Config{
		ServerName:           serverName,
		MaxRequestSize:       uint32(maxRequestSize),
		RegistrationDisabled: opts.RegistrationDisabled,
		EncryptionDisabled:   opts.EncryptionDisabled,
		JWTSecret:            jwtSecret,
	}, nil
}

// validateServerName rejects names that cannot serve as a host identity.
func validateServerName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: server_name must not be empty", interfaces.ErrBadConfig)
	}
	if len(name) > 255 {
		return fmt.Errorf("%w: server_name exceeds 255 characters", interfaces.ErrBadConfig)
	}
	if strings.ContainsAny(name, " \t\r\n/") {
		return fmt.Errorf("%w: server_name contains invalid characters", interfaces.ErrBadConfig)
	}
	return nil
}
