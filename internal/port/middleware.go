package port

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/a2workspace/jwtguard/internal/domain"
	"github.com/a2workspace/jwtguard/internal/guard"
)

// ctxKey is an unexported context key type so no other package can collide
// with values this package stores.
type ctxKey int

const sessionKey ctxKey = iota

// SessionFromContext returns the authenticated session placed in ctx by the
// auth middleware.
func SessionFromContext(ctx context.Context) (*guard.Session, bool) {
	sess, ok := ctx.Value(sessionKey).(*guard.Session)
	return sess, ok
}

// bearerToken extracts the token from the Authorization header. The scheme
// comparison is case-insensitive per RFC 9110; the token is returned as-is.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("missing authorization header: %w", domain.ErrTokenMalformed)
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, domain.BearerScheme) || token == "" {
		return "", fmt.Errorf("malformed authorization header: %w", domain.ErrTokenMalformed)
	}

	return token, nil
}

// requireAuth authenticates the bearer token once and caches the resolved
// session in the request context. Handlers behind it read the session with
// SessionFromContext instead of re-validating the token.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		tokenString, err := bearerToken(r)
		if err != nil {
			h.writeError(ctx, w, err)
			return
		}

		sess, err := h.guard.Authenticate(ctx, tokenString)
		if err != nil {
			h.writeError(ctx, w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, sessionKey, sess)))
	})
}
