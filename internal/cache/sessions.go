package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedSessionPrefix = "tracker:session:revoked:"

// RedisSessions records signed-out sessions until their tokens expire.
type RedisSessions struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewRedisSessions constructs a RedisSessions.
func NewRedisSessions(client redis.Cmdable) *RedisSessions {
	return &RedisSessions{client: client, now: time.Now}
}

// Revoke implements domain.SessionRevoker.
func (s *RedisSessions) Revoke(ctx context.Context, sessionID string, until time.Time) error {
	ttl := until.Sub(s.now())
	if until.IsZero() {
		ttl = 0
	} else if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, revokedSessionPrefix+sessionID, "1", ttl).Err()
}

// IsRevoked implements auth.RevocationChecker.
func (s *RedisSessions) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedSessionPrefix+sessionID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
