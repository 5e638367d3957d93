package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	vmmetrics "github.com/VictoriaMetrics/metrics"
	"github.com/ruteri/server-identity-backend/globals"
	"github.com/ruteri/server-identity-backend/interfaces"
)

var (
	idsMintedCounter       = vmmetrics.GetOrCreateCounter("server_identity_ids_minted_total")
	registerDeniedCounter  = vmmetrics.GetOrCreateCounter("server_identity_register_denied_total")
	registerGrantedCounter = vmmetrics.GetOrCreateCounter("server_identity_register_granted_total")
)

// Handler implements the API routes on top of the process-wide state.
type Handler struct {
	globals *globals.Globals
	log     *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(g *globals.Globals, log *slog.Logger) *Handler {
	return &Handler{
		globals: g,
		log:     log,
	}
}

type registerRequest struct {
	Username string `json:"username"`
}

type identityResponse struct {
	ServerName string `json:"server_name"`
	KeyID      string `json:"key_id"`
	PublicKey  string `json:"public_key"`
}

type serverConfigResponse struct {
	ServerName           string `json:"server_name"`
	MaxRequestSize       uint32 `json:"max_request_size"`
	RegistrationDisabled bool   `json:"registration_disabled"`
	EncryptionDisabled   bool   `json:"encryption_disabled"`
}

// HandleIdentity serves the server's public identity: name, key version and
// public signing key.
func (h *Handler) HandleIdentity(w http.ResponseWriter, r *http.Request) {
	keypair := h.globals.Keypair()
	writeJSON(w, http.StatusOK, identityResponse{
		ServerName: h.globals.ServerName(),
		KeyID:      keypair.KeyID,
		PublicKey:  keypair.PublicKeyBase64(),
	})
}

// HandleServerConfig serves the non-secret configuration surface.
func (h *Handler) HandleServerConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, serverConfigResponse{
		ServerName:           h.globals.ServerName(),
		MaxRequestSize:       h.globals.MaxRequestSize(),
		RegistrationDisabled: h.globals.RegistrationDisabled(),
		EncryptionDisabled:   h.globals.EncryptionDisabled(),
	})
}

// HandleMintID mints the next globally unique, strictly ascending identifier.
func (h *Handler) HandleMintID(w http.ResponseWriter, r *http.Request) {
	id, err := h.globals.NextCount(r.Context())
	if err != nil {
		h.log.Error("Failed to mint id", "err", err)
		writeError(w, err)
		return
	}

	idsMintedCounter.Inc()
	writeJSON(w, http.StatusOK, map[string]uint64{"id": id})
}

// HandleCurrentCount serves the counter's current value without mutating it.
func (h *Handler) HandleCurrentCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.globals.CurrentCount(r.Context())
	if err != nil {
		h.log.Error("Failed to read count", "err", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]uint64{"count": count})
}

// HandleRegister gates registration on the feature toggle and on a valid
// bearer token verified against the server's token-decoding key.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if h.globals.RegistrationDisabled() {
		registerDeniedCounter.Inc()
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "registration disabled"})
		return
	}

	token := bearerToken(r)
	if token == "" {
		registerDeniedCounter.Inc()
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
		return
	}

	claims, err := h.globals.VerifyToken(token)
	if err != nil {
		registerDeniedCounter.Inc()
		h.log.Debug("Rejected registration token", "err", err)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}

	registerGrantedCounter.Inc()
	response := map[string]string{"status": "registered"}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		response["sub"] = sub
	}
	if req.Username != "" {
		response["username"] = req.Username
	}
	writeJSON(w, http.StatusOK, response)
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy onto HTTP statuses. Corrupt durable
// state and backend faults are both server-side failures; they differ only
// in the reported reason.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, interfaces.ErrBadDatabase):
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "corrupt server state"})
	case errors.Is(err, interfaces.ErrTreeUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "state backend unavailable"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
