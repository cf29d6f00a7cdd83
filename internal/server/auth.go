package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v5"

	"github.com/desertthunder/anilistx/internal/shared"
)

const (
	accessTokenCookie = "sb-access-token"
	remoteAuthTimeout = 10 * time.Second
)

// User is the authenticated caller, as issued by the hosted auth backend.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type userContextKey struct{}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userContextKey{}).(*User)
	return u, ok && u != nil
}

// Authenticator verifies access tokens issued by the hosted auth backend (Supabase).
//
// Tokens are checked locally against the JWT secret when one is configured; otherwise,
// or when local verification fails, they are validated by the backend's /auth/v1/user endpoint.
type Authenticator struct {
	url     string
	anonKey string
	secret  []byte
	client  *http.Client
	logger  *log.Logger
}

// NewAuthenticator creates an Authenticator. A nil client uses a client with a 10s timeout.
func NewAuthenticator(cfg shared.AuthConfig, client *http.Client, logger *log.Logger) *Authenticator {
	if client == nil {
		client = &http.Client{Timeout: remoteAuthTimeout}
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	a := &Authenticator{
		url:     strings.TrimRight(cfg.URL, "/"),
		anonKey: cfg.AnonKey,
		client:  client,
		logger:  logger,
	}
	if cfg.JWTSecret != "" {
		a.secret = []byte(cfg.JWTSecret)
	}
	return a
}

// Middleware attaches the caller to the request context when a valid token is present.
//
// Requests without a token, or with an invalid one, continue anonymously; see [RequireAuth].
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, err := a.Verify(r.Context(), token)
		if err != nil {
			a.logger.Debug("rejected access token", "path", r.URL.Path, "error", err)
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// Verify resolves a token to its user.
func (a *Authenticator) Verify(ctx context.Context, token string) (*User, error) {
	var localErr error
	if a.secret != nil {
		user, err := a.verifyLocal(token)
		if err == nil {
			return user, nil
		}
		localErr = err
	}

	if a.url == "" {
		if localErr != nil {
			return nil, localErr
		}
		return nil, fmt.Errorf("%w: no JWT secret or auth URL configured", shared.ErrMissingConfig)
	}
	return a.verifyRemote(ctx, token)
}

// verifyLocal checks an HS256 signature and expiry and reads the user from the claims.
func (a *Authenticator) verifyLocal(token string) (*User, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, shared.ErrInvalidToken
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		return nil, fmt.Errorf("%w: missing subject", shared.ErrInvalidToken)
	}
	return &User{
		ID:    sub,
		Email: stringClaim(claims, "email"),
		Role:  stringClaim(claims, "role"),
	}, nil
}

// verifyRemote asks the auth backend who owns the token.
func (a *Authenticator) verifyRemote(ctx context.Context, token string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if a.anonKey != "" {
		req.Header.Set("apikey", a.anonKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: auth backend: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: rejected by auth backend", shared.ErrInvalidToken)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: auth backend returned %d", shared.ErrServiceUnavailable, resp.StatusCode)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode auth user: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("%w: auth backend returned no user", shared.ErrInvalidToken)
	}
	return &user, nil
}

// RequireAuth answers 401 unless [Authenticator.Middleware] attached a user.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// tokenFromRequest reads a bearer token from the Authorization header, falling back to the session cookie.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(accessTokenCookie); err == nil {
		return c.Value
	}
	return ""
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

