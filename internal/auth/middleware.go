package auth

import (
	"context"
	"net/http"
	"strings"
)

// Skipper allows callers to bypass authentication for specific requests.
type Skipper func(r *http.Request) bool

// RevocationChecker reports whether a session has been signed out.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// Middleware provides HTTP middleware for bearer-token validation.
type Middleware struct {
	Config      Config
	Skipper     Skipper
	Revocations RevocationChecker
}

// NewMiddleware constructs the middleware. Health, metrics, sign-up and login
// are always public.
func NewMiddleware(cfg Config, revocations RevocationChecker) Middleware {
	return Middleware{Config: cfg, Skipper: PublicPaths, Revocations: revocations}
}

// PublicPaths is the default Skipper.
func PublicPaths(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/metrics", "/v1/auth/signup", "/v1/auth/login":
		return true
	}
	return r.Method == http.MethodOptions
}

// Wrap wraps an http.Handler with authentication.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Skipper != nil && m.Skipper(r) {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.parseRequest(r)
		if err != nil {
			unauthorized(w, err)
			return
		}
		if m.Revocations != nil {
			revoked, err := m.Revocations.IsRevoked(r.Context(), claims.SessionID)
			if err != nil {
				http.Error(w, `{"type":"server_error","detail":"session lookup failed"}`, http.StatusInternalServerError)
				return
			}
			if revoked {
				unauthorized(w, ErrRevokedToken)
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func (m Middleware) parseRequest(r *http.Request) (*Claims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, ErrMissingToken
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return nil, ErrInvalidToken
	}
	return Parse(header[len("Bearer "):], m.Config)
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="tracker"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"type":"unauthorized","detail":"` + err.Error() + `","redirect":"/auth/login"}`))
}
