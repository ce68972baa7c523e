package port_test

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2workspace/jwtguard/internal/adapter"
	"github.com/a2workspace/jwtguard/internal/domain/domaintest"
	"github.com/a2workspace/jwtguard/internal/guard"
	"github.com/a2workspace/jwtguard/internal/port"
	"github.com/a2workspace/jwtguard/internal/token"
)

var testStart = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

type testServer struct {
	clock  *domaintest.FakeClock
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keyStore := token.NewStaticRSAKeyStore(key, "test-key-001")

	clock := domaintest.NewFakeClock(testStart)

	users := adapter.NewMemoryUserStore()
	require.NoError(t, users.Add(&adapter.User{
		UserID:   "user-001",
		Username: "bk201",
		Claims:   map[string]any{"plan": "pro"},
	}, "foobar123"))

	g := guard.New(guard.Config{
		UserStore: users,
		Blacklist: adapter.NewMemoryBlacklist(clock),
		Issuer: token.NewIssuer(token.IssuerConfig{
			KeyStore:  keyStore,
			AccessTTL: 60 * time.Minute,
			Issuer:    "jwtguard",
			Clock:     clock,
		}),
		Validator: token.NewValidator(token.ValidatorConfig{
			KeyStore:      keyStore,
			Issuer:        "jwtguard",
			RefreshWindow: 14 * 24 * time.Hour,
			Clock:         clock,
		}),
		RefreshWindow: 14 * 24 * time.Hour,
		Clock:         clock,
		Logger:        slog.Default(),
	})

	handler := port.NewHandler(port.Config{
		Guard:  g,
		Logger: slog.Default(),
	})

	return &testServer{clock: clock, router: handler.Routes()}
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "bk201",
		"password": "foobar123",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.AccessToken)
	return body.AccessToken
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestLoginEndpoint(t *testing.T) {
	t.Run("valid credentials return a bearer token", func(t *testing.T) {
		s := newTestServer(t)

		rec := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": "bk201",
			"password": "foobar123",
		})

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body struct {
			AccessToken string `json:"access_token"`
			TokenType   string `json:"token_type"`
			ExpiresIn   int64  `json:"expires_in"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.NotEmpty(t, body.AccessToken)
		assert.Equal(t, "bearer", body.TokenType)
		assert.Equal(t, int64(3600), body.ExpiresIn)
	})

	t.Run("wrong password returns generic 401", func(t *testing.T) {
		s := newTestServer(t)

		rec := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": "bk201",
			"password": "wrong",
		})

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Unauthorized", decodeError(t, rec))
	})

	t.Run("unknown username returns the identical 401 body", func(t *testing.T) {
		s := newTestServer(t)

		rec := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": "nobody",
			"password": "foobar123",
		})

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Unauthorized", decodeError(t, rec))
	})

	t.Run("undecodable body returns 400", func(t *testing.T) {
		s := newTestServer(t)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString("{not json"))
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUserEndpoint(t *testing.T) {
	t.Run("returns the serialized subject", func(t *testing.T) {
		s := newTestServer(t)
		tokenString := s.login(t)

		rec := s.do(t, http.MethodGet, "/api/auth/user", tokenString, nil)

		require.Equal(t, http.StatusOK, rec.Code)

		var user struct {
			UserID   string         `json:"user_id"`
			Username string         `json:"username"`
			Claims   map[string]any `json:"claims"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
		assert.Equal(t, "user-001", user.UserID)
		assert.Equal(t, "bk201", user.Username)
		assert.Equal(t, "pro", user.Claims["plan"])
	})

	t.Run("missing bearer returns 401", func(t *testing.T) {
		s := newTestServer(t)

		rec := s.do(t, http.MethodGet, "/api/auth/user", "", nil)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid Access Token", decodeError(t, rec))
	})

	t.Run("garbage bearer returns 401", func(t *testing.T) {
		s := newTestServer(t)

		rec := s.do(t, http.MethodGet, "/api/auth/user", "not.a.jwt", nil)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid Access Token", decodeError(t, rec))
	})

	t.Run("expired token returns 401", func(t *testing.T) {
		s := newTestServer(t)
		tokenString := s.login(t)

		s.clock.Advance(61 * time.Minute)

		rec := s.do(t, http.MethodGet, "/api/auth/user", tokenString, nil)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid Access Token", decodeError(t, rec))
	})
}

func TestLogoutEndpoint(t *testing.T) {
	t.Run("revokes the session token", func(t *testing.T) {
		s := newTestServer(t)
		tokenString := s.login(t)

		rec := s.do(t, http.MethodPost, "/api/auth/logout", tokenString, nil)

		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Message string `json:"message"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "Successfully logged out", body.Message)

		// The token no longer authenticates.
		rec = s.do(t, http.MethodGet, "/api/auth/user", tokenString, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid Access Token", decodeError(t, rec))
	})

	t.Run("requires a bearer token", func(t *testing.T) {
		s := newTestServer(t)

		rec := s.do(t, http.MethodPost, "/api/auth/logout", "", nil)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRefreshEndpoint(t *testing.T) {
	t.Run("rotates the token", func(t *testing.T) {
		s := newTestServer(t)
		oldToken := s.login(t)

		rec := s.do(t, http.MethodPost, "/api/auth/refresh", oldToken, nil)

		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			AccessToken string `json:"access_token"`
			TokenType   string `json:"token_type"`
			ExpiresIn   int64  `json:"expires_in"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.NotEmpty(t, body.AccessToken)
		assert.NotEqual(t, oldToken, body.AccessToken)
		assert.Equal(t, "bearer", body.TokenType)

		// Old token is dead, new one works.
		rec = s.do(t, http.MethodGet, "/api/auth/user", oldToken, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = s.do(t, http.MethodGet, "/api/auth/user", body.AccessToken, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("accepts an expired token inside the refresh window", func(t *testing.T) {
		s := newTestServer(t)
		oldToken := s.login(t)

		s.clock.Advance(7 * 24 * time.Hour)

		rec := s.do(t, http.MethodPost, "/api/auth/refresh", oldToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects a token beyond the refresh window", func(t *testing.T) {
		s := newTestServer(t)
		oldToken := s.login(t)

		s.clock.Advance(15 * 24 * time.Hour)

		rec := s.do(t, http.MethodPost, "/api/auth/refresh", oldToken, nil)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid Access Token", decodeError(t, rec))
	})

	t.Run("rejects a second refresh of the same token", func(t *testing.T) {
		s := newTestServer(t)
		oldToken := s.login(t)

		rec := s.do(t, http.MethodPost, "/api/auth/refresh", oldToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = s.do(t, http.MethodPost, "/api/auth/refresh", oldToken, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("requires a bearer token", func(t *testing.T) {
		s := newTestServer(t)

		rec := s.do(t, http.MethodPost, "/api/auth/refresh", "", nil)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestCustomPathPrefix(t *testing.T) {
	s := newTestServer(t)

	// Default prefix only; a request outside it is not routed.
	rec := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
