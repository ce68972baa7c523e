// Package port exposes the authentication flows over HTTP. Routes are
// mounted under a configurable path prefix (default /api/auth) on a
// gorilla/mux router.
package port

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"

	"github.com/a2workspace/jwtguard/internal/domain"
	"github.com/a2workspace/jwtguard/internal/guard"
)

var tracer = otel.Tracer("port")

// Config holds the dependencies for a Handler.
type Config struct {
	Guard *guard.Guard

	// PathPrefix is where the auth routes are mounted, e.g. "/api/auth".
	// Empty means domain.DefaultAuthPrefix.
	PathPrefix string

	Logger *slog.Logger
}

// Handler serves the authentication HTTP surface.
type Handler struct {
	guard  *guard.Guard
	prefix string
	logger *slog.Logger
}

// NewHandler creates a Handler with the given dependencies.
func NewHandler(cfg Config) *Handler {
	prefix := cfg.PathPrefix
	if prefix == "" {
		prefix = domain.DefaultAuthPrefix
	}
	return &Handler{
		guard:  cfg.Guard,
		prefix: prefix,
		logger: cfg.Logger,
	}
}

// Routes builds the router. The refresh route deliberately sits outside the
// auth middleware: its token may be expired, which the middleware would
// reject before the refresh-tolerant path gets a look at it.
func (h *Handler) Routes() *mux.Router {
	r := mux.NewRouter()

	sub := r.PathPrefix(h.prefix).Subrouter()
	sub.HandleFunc("/login", h.handleLogin).Methods(http.MethodPost)
	sub.HandleFunc("/refresh", h.handleRefresh).Methods(http.MethodPost)
	sub.Handle("/logout", h.requireAuth(http.HandlerFunc(h.handleLogout))).Methods(http.MethodPost)
	sub.Handle("/user", h.requireAuth(http.HandlerFunc(h.handleUser))).Methods(http.MethodGet)

	return r
}

// loginRequest is the POST /login body.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the body returned by login and refresh.
type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "port.login")
	defer span.End()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, domain.ErrInvalidInput)
		return
	}

	result, err := h.guard.Attempt(ctx, req.Username, req.Password)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, loginResponse{
		AccessToken: result.AccessToken,
		TokenType:   result.TokenType,
		ExpiresIn:   result.ExpiresIn,
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "port.refresh")
	defer span.End()

	tokenString, err := bearerToken(r)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	result, err := h.guard.Refresh(ctx, tokenString)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, loginResponse{
		AccessToken: result.AccessToken,
		TokenType:   result.TokenType,
		ExpiresIn:   result.ExpiresIn,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "port.logout")
	defer span.End()

	sess, ok := SessionFromContext(ctx)
	if !ok {
		h.writeError(ctx, w, domain.ErrTokenMalformed)
		return
	}

	if err := h.guard.Logout(ctx, sess); err != nil {
		h.writeError(ctx, w, err)
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, map[string]string{
		"message": "Successfully logged out",
	})
}

func (h *Handler) handleUser(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "port.user")
	defer span.End()

	sess, ok := SessionFromContext(ctx)
	if !ok {
		h.writeError(ctx, w, domain.ErrTokenMalformed)
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, sess.Subject)
}
