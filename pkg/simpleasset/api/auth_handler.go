package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
)

// DefaultTokenTTL is how long issued tokens stay valid
const DefaultTokenTTL = time.Hour

// AuthHandler issues HS256 bearer tokens. Any non-blank username and
// password pair is accepted; credential checking belongs to an identity
// provider in front of this service.
type AuthHandler struct {
	tokenAuth *jwtauth.JWTAuth
	ttl       time.Duration
	now       func() time.Time
}

// NewTokenAuth creates the HS256 signer and verifier for secret
func NewTokenAuth(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil)
}

func NewAuthHandler(tokenAuth *jwtauth.JWTAuth, ttl time.Duration) *AuthHandler {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &AuthHandler{tokenAuth: tokenAuth, ttl: ttl, now: time.Now}
}

// Routes returns the router for auth endpoints
func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.Login)
	return r
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token
type LoginResponse struct {
	Token string `json:"token"`
}

// Login issues a token for the given username
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Password) == "" {
		writeError(w, r, http.StatusUnauthorized, "username and password are required")
		return
	}

	now := h.now()
	claims := map[string]interface{}{
		"sub": req.Username,
		"iat": now.Unix(),
		"exp": now.Add(h.ttl).Unix(),
	}
	_, token, err := h.tokenAuth.Encode(claims)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to issue token")
		return
	}

	render.JSON(w, r, LoginResponse{Token: token})
}

// RequireToken verifies the bearer token and rejects the request with 401
// when it is missing or invalid
func RequireToken(tokenAuth *jwtauth.JWTAuth) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		jwtauth.Verifier(tokenAuth),
		jwtauth.Authenticator,
	}
}
