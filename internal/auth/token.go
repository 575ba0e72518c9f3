// Package auth issues and validates session tokens and carries the session
// through the request context.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/TeioDM/Site-de-Registro-de-Atividades/internal/domain"
)

// Config holds signer parameters.
type Config struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// Claims represents the payload extracted from a session token.
type Claims struct {
	Subject   string
	SessionID string
	Scopes    map[string]struct{}
	ExpiresAt time.Time
}

// ErrMissingToken is returned when the Authorization header is absent.
var ErrMissingToken = errors.New("missing bearer token")

// ErrInvalidToken wraps parsing/validation errors.
var ErrInvalidToken = errors.New("invalid bearer token")

// ErrRevokedToken is returned for tokens whose session was signed out.
var ErrRevokedToken = errors.New("session has ended")

// Parse validates a token and returns normalized claims.
func Parse(token string, cfg Config) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	}, jwt.WithIssuer(cfg.Issuer), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	subject, _ := claims["sub"].(string)
	sessionID, _ := claims["jti"].(string)
	if subject == "" || sessionID == "" {
		return nil, ErrInvalidToken
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrInvalidToken
	}

	return &Claims{
		Subject:   subject,
		SessionID: sessionID,
		Scopes:    normalizeScopes(claims["scope"]),
		ExpiresAt: exp.Time,
	}, nil
}

func normalizeScopes(value interface{}) map[string]struct{} {
	out := make(map[string]struct{})
	switch v := value.(type) {
	case []interface{}:
		for _, item := range v {
			if str, ok := item.(string); ok && str != "" {
				out[str] = struct{}{}
			}
		}
	case string:
		for _, str := range strings.Fields(v) {
			out[str] = struct{}{}
		}
	}
	return out
}

// HasScope reports whether the claim set includes the provided scope.
func (c *Claims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	_, ok := c.Scopes[scope]
	return ok
}

// Session converts the claims into the domain session.
func (c *Claims) Session() domain.Session {
	return domain.Session{UserID: c.Subject, SessionID: c.SessionID, ExpiresAt: c.ExpiresAt}
}

// Issuer mints HS256 session tokens carrying the default user scopes.
type Issuer struct {
	cfg Config
	now func() time.Time
}

// NewIssuer constructs an Issuer. A zero TTL defaults to one hour.
func NewIssuer(cfg Config) *Issuer {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	return &Issuer{cfg: cfg, now: time.Now}
}

// Issue implements domain.TokenIssuer.
func (i *Issuer) Issue(userID string) (domain.Token, error) {
	now := i.now().UTC()
	expires := now.Add(i.cfg.TTL)
	sessionID := uuid.NewString()

	claims := jwt.MapClaims{
		"sub":   userID,
		"jti":   sessionID,
		"iss":   i.cfg.Issuer,
		"iat":   now.Unix(),
		"exp":   expires.Unix(),
		"scope": strings.Join(DefaultScopes, " "),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.cfg.Secret))
	if err != nil {
		return domain.Token{}, err
	}
	return domain.Token{AccessToken: signed, SessionID: sessionID, ExpiresAt: expires.Truncate(time.Second)}, nil
}
