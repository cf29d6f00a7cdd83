package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/anilistx/internal/shared"
)

func signClaims(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestAuthenticatorVerify(t *testing.T) {
	ctx := context.Background()
	auth := NewAuthenticator(shared.AuthConfig{JWTSecret: testSecret}, nil, nil)

	t.Run("Valid Token", func(t *testing.T) {
		user, err := auth.Verify(ctx, signToken(t, "user-1"))
		require.NoError(t, err)
		assert.Equal(t, "user-1", user.ID)
		assert.Equal(t, "user-1@example.com", user.Email)
		assert.Equal(t, "authenticated", user.Role)
	})

	tc := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{"Expired", func(t *testing.T) string {
			return signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
				"sub": "user-1", "exp": time.Now().Add(-time.Minute).Unix(),
			})
		}},
		{"Missing Expiry", func(t *testing.T) string {
			return signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "user-1"})
		}},
		{"Wrong Secret", func(t *testing.T) string {
			return signClaims(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{
				"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix(),
			})
		}},
		{"Wrong Algorithm", func(t *testing.T) string {
			return signClaims(t, jwt.SigningMethodHS512, []byte(testSecret), jwt.MapClaims{
				"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix(),
			})
		}},
		{"Missing Subject", func(t *testing.T) string {
			return signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
				"exp": time.Now().Add(time.Hour).Unix(),
			})
		}},
		{"Garbage", func(t *testing.T) string { return "not-a-jwt" }},
	}
	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Verify(ctx, tt.token(t))
			assert.True(t, errors.Is(err, shared.ErrInvalidToken), "got %v", err)
		})
	}

	t.Run("Nothing Configured", func(t *testing.T) {
		_, err := NewAuthenticator(shared.AuthConfig{}, nil, nil).Verify(ctx, "token")
		assert.ErrorIs(t, err, shared.ErrMissingConfig)
	})
}

func TestAuthenticatorRemote(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" || r.Header.Get("apikey") != "anon" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			w.Write([]byte(`{"id":"remote-user","email":"r@example.com","role":"authenticated"}`))
		case "Bearer broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer backend.Close()

	auth := NewAuthenticator(shared.AuthConfig{URL: backend.URL + "/", AnonKey: "anon"}, backend.Client(), nil)
	ctx := context.Background()

	t.Run("Accepted", func(t *testing.T) {
		user, err := auth.Verify(ctx, "good")
		require.NoError(t, err)
		assert.Equal(t, "remote-user", user.ID)
	})

	t.Run("Rejected", func(t *testing.T) {
		_, err := auth.Verify(ctx, "bad")
		assert.ErrorIs(t, err, shared.ErrInvalidToken)
	})

	t.Run("Backend Failure", func(t *testing.T) {
		_, err := auth.Verify(ctx, "broken")
		assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	})

	t.Run("Local Failure Falls Back To Remote", func(t *testing.T) {
		both := NewAuthenticator(shared.AuthConfig{URL: backend.URL, AnonKey: "anon", JWTSecret: testSecret}, backend.Client(), nil)
		user, err := both.Verify(ctx, "good")
		require.NoError(t, err)
		assert.Equal(t, "remote-user", user.ID)
	})
}

func TestAuthMiddleware(t *testing.T) {
	auth := NewAuthenticator(shared.AuthConfig{JWTSecret: testSecret}, nil, nil)
	var seen *User
	h := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
	}))

	serve := func(r *http.Request) *User {
		seen = nil
		h.ServeHTTP(httptest.NewRecorder(), r)
		return seen
	}

	t.Run("Bearer Header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+signToken(t, "user-1"))
		require.NotNil(t, serve(r))
		assert.Equal(t, "user-1", seen.ID)
	})

	t.Run("Session Cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: accessTokenCookie, Value: signToken(t, "user-2")})
		require.NotNil(t, serve(r))
		assert.Equal(t, "user-2", seen.ID)
	})

	t.Run("Invalid Token Is Anonymous", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer nope")
		assert.Nil(t, serve(r))
	})

	t.Run("Non Bearer Scheme Is Ignored", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		assert.Nil(t, serve(r))
	})

	t.Run("Non Bearer Scheme Falls Back To Cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		r.AddCookie(&http.Cookie{Name: accessTokenCookie, Value: signToken(t, "user-3")})
		require.NotNil(t, serve(r))
		assert.Equal(t, "user-3", seen.ID)
	})

	t.Run("RequireAuth", func(t *testing.T) {
		w := httptest.NewRecorder()
		RequireAuth(http.NotFoundHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())
	})
}
