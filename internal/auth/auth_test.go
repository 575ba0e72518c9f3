package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testConfig = Config{Secret: "test-secret", Issuer: "tracker.test", TTL: time.Hour}

func TestIssueAndParse(t *testing.T) {
	token, err := NewIssuer(testConfig).Issue("user-1")
	require.NoError(t, err)
	require.NotEmpty(t, token.SessionID)

	claims, err := Parse(token.AccessToken, testConfig)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, token.SessionID, claims.SessionID)
	require.True(t, claims.HasScope(ScopeActivitiesWrite))
	require.Equal(t, token.ExpiresAt.Unix(), claims.ExpiresAt.Unix())

	session := claims.Session()
	require.Equal(t, "user-1", session.UserID)
}

func TestParseRejectsWrongIssuerAndSecret(t *testing.T) {
	token, err := NewIssuer(testConfig).Issue("user-1")
	require.NoError(t, err)

	_, err = Parse(token.AccessToken, Config{Secret: testConfig.Secret, Issuer: "other"})
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = Parse(token.AccessToken, Config{Secret: "wrong", Issuer: testConfig.Issuer})
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = Parse("   ", testConfig)
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestParseRequiresSessionID(t *testing.T) {
	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"iss": testConfig.Issuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := raw.SignedString([]byte(testConfig.Secret))
	require.NoError(t, err)

	_, err = Parse(signed, testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	revocations := NewMemoryRevocations()
	mw := NewMiddleware(testConfig, revocations)

	var seen *Claims
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("public path", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/dashboard", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "/auth/login")
	})

	token, err := NewIssuer(testConfig).Issue("user-1")
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/dashboard", nil)
		req.Header.Set("Authorization", "Bearer "+token.AccessToken)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.NotNil(t, seen)
		require.Equal(t, "user-1", seen.Subject)
	})

	t.Run("revoked session", func(t *testing.T) {
		require.NoError(t, revocations.Revoke(context.Background(), token.SessionID, token.ExpiresAt))
		req := httptest.NewRequest(http.MethodGet, "/v1/dashboard", nil)
		req.Header.Set("Authorization", "Bearer "+token.AccessToken)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestMemoryRevocationsExpire(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	revocations := NewMemoryRevocations()
	revocations.now = func() time.Time { return now }

	require.NoError(t, revocations.Revoke(context.Background(), "s1", now.Add(time.Minute)))
	revoked, err := revocations.IsRevoked(context.Background(), "s1")
	require.NoError(t, err)
	require.True(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, err = revocations.IsRevoked(context.Background(), "s1")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestBcryptHasher(t *testing.T) {
	hasher := BcryptHasher{Cost: 4}
	hash, err := hasher.Hash("secret1")
	require.NoError(t, err)
	require.NoError(t, hasher.Compare(hash, "secret1"))
	require.Error(t, hasher.Compare(hash, "secret2"))
}
