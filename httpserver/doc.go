// Package httpserver exposes the server identity API over HTTP.
//
// API routes:
//
//   - GET /api/identity: server name, key version and public signing key
//   - GET /api/config: non-secret configuration surface
//   - POST /api/id: mint the next globally unique, strictly ascending id
//   - GET /api/count: current counter value, read-only
//   - POST /api/register: registration, gated on the feature toggle and a
//     bearer token verified against the server's token-decoding key
//
// Operational routes:
//
//   - GET /livez, /readyz: liveness and readiness probes
//   - GET /drain, /undrain: flip readiness for load balancer rotation
//   - /debug: pprof, when enabled
//
// Request bodies on API routes are capped at the configured maximum request
// size. Metrics are served on a separate listener.
package httpserver
