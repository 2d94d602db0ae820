package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/brianly1003/stockchat/internal/domain/ports"
	"github.com/brianly1003/stockchat/internal/security"
	"github.com/rs/zerolog/log"
)

// Client-visible login messages.
const (
	msgCredentialsRequired = "Username and password are required."
	msgInvalidCredentials  = "Invalid username or password."
	msgLoginFailed         = "Login failed. Please try again."
	msgTokenRequired       = "A bearer token is required."
	msgInvalidToken        = "Invalid token."
)

// maxLoginBody caps the request body size.
const maxLoginBody = 4 * 1024

// LoginRequest is the request body for POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned on a successful login.
type LoginResponse struct {
	Token      string    `json:"token"`
	Expiration time.Time `json:"expiration"`
}

// LoginHandler exchanges credentials for a bearer token.
type LoginHandler struct {
	auth ports.Authenticator
}

// NewLoginHandler creates a new login handler.
func NewLoginHandler(auth ports.Authenticator) *LoginHandler {
	return &LoginHandler{auth: auth}
}

// ServeHTTP handles POST /api/auth/login.
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoginBody)).Decode(&req); err != nil {
		writeJSONError(w, msgCredentialsRequired, http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Password) == "" {
		writeJSONError(w, msgCredentialsRequired, http.StatusBadRequest)
		return
	}

	token, err := h.auth.Authenticate(req.Username, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, security.ErrInvalidCredentials), errors.Is(err, security.ErrMissingCredentials):
		log.Info().Str("username", req.Username).Str("remote_addr", r.RemoteAddr).Msg("login rejected")
		writeJSONError(w, msgInvalidCredentials, http.StatusUnauthorized)
		return
	default:
		log.Error().Err(err).Str("username", req.Username).Msg("login failed")
		writeJSONError(w, msgLoginFailed, http.StatusInternalServerError)
		return
	}

	log.Info().Str("username", token.Principal).Str("token_id", token.ID).Msg("login succeeded")

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:      token.Value,
		Expiration: token.ExpiresAt,
	})
}

// LogoutHandler revokes the bearer token presented with the request.
type LogoutHandler struct {
	revoker ports.TokenRevoker
}

// NewLogoutHandler creates a new logout handler.
func NewLogoutHandler(revoker ports.TokenRevoker) *LogoutHandler {
	return &LogoutHandler{revoker: revoker}
}

// ServeHTTP handles POST /api/auth/logout.
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := security.BearerToken(r)
	if token == "" {
		writeJSONError(w, msgTokenRequired, http.StatusUnauthorized)
		return
	}

	if err := h.revoker.RevokeToken(token); err != nil {
		log.Info().Err(err).Str("remote_addr", r.RemoteAddr).Msg("logout rejected")
		writeJSONError(w, msgInvalidToken, http.StatusUnauthorized)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
