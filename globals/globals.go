package globals

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ruteri/server-identity-backend/config"
	"github.com/ruteri/server-identity-backend/cryptoutils"
	"github.com/ruteri/server-identity-backend/interfaces"
)

// Globals is the process-wide authoritative state of the server. It is
// constructed exactly once at startup and shared read-only by all request
// handling contexts. The only durable mutation after construction is the
// counter, and it goes through the tree's atomic update, never through a
// field of this struct.
type Globals struct {
	tree                 interfaces.KVTree
	keypair              *cryptoutils.SigningKeyPair
	httpClient           *http.Client
	serverName           string
	maxRequestSize       uint32
	registrationDisabled bool
	encryptionDisabled   bool
	jwtDecodingKey       []byte
}

// Load assembles the process-wide state from the tree and validated
// configuration. The server's signing identity is loaded from the tree,
// generated atomically on first startup.
func Load(ctx context.Context, tree interfaces.KVTree, cfg *config.Config) (*Globals, error) {
	keypair, err := LoadOrGenerateSigningKeyPair(ctx, tree)
	if err != nil {
		return nil, fmt.Errorf("failed to load server identity: %w", err)
	}

	return &Globals{
		tree:                 tree,
		keypair:              keypair,
		httpClient:           &http.Client{Timeout: 30 * time.Second},
		serverName:           cfg.ServerName,
		maxRequestSize:       cfg.MaxRequestSize,
		registrationDisabled: cfg.RegistrationDisabled,
		encryptionDisabled:   cfg.EncryptionDisabled,
		jwtDecodingKey:       []byte(cfg.JWTSecret),
	}, nil
}

// Available reports whether the backing tree is reachable. Readiness probes
// use it; durable state operations never pre-check it and surface
// ErrTreeUnavailable themselves.
func (g *Globals) Available(ctx context.Context) bool {
	return g.tree.Available(ctx)
}

// Keypair returns this server's signing keypair.
func (g *Globals) Keypair() *cryptoutils.SigningKeyPair {
	return g.keypair
}

// HTTPClient returns the shared client for outbound requests.
func (g *Globals) HTTPClient() *http.Client {
	return g.httpClient
}

// ServerName returns the validated name this server identifies as.
func (g *Globals) ServerName() string {
	return g.serverName
}

// MaxRequestSize returns the request body limit in bytes.
func (g *Globals) MaxRequestSize() uint32 {
	return g.maxRequestSize
}

// RegistrationDisabled reports whether new registrations are rejected.
func (g *Globals) RegistrationDisabled() bool {
	return g.registrationDisabled
}

// EncryptionDisabled reports whether end-to-end encryption is rejected.
func (g *Globals) EncryptionDisabled() bool {
	return g.encryptionDisabled
}

// JWTDecodingKey returns a copy of the key used to verify externally issued tokens.
func (g *Globals) JWTDecodingKey() []byte {
	out := make([]byte, len(g.jwtDecodingKey))
	copy(out, g.jwtDecodingKey)
	return out
}

// VerifyToken parses an externally issued token, verifies its HMAC signature
// against the decoding key and returns its claims.
func (g *Globals) VerifyToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return g.jwtDecodingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("token carries no valid claims")
	}
	return claims, nil
}
