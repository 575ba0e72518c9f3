package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/TeioDM/Site-de-Registro-de-Atividades/internal/domain"
)

// LeaderboardKey is the Redis key holding the leaderboard snapshot.
const LeaderboardKey = "tracker:leaderboard:v1"

type cachedEntry struct {
	ID            string  `json:"id"`
	Username      string  `json:"username"`
	FullName      *string `json:"full_name,omitempty"`
	AvatarURL     *string `json:"avatar_url,omitempty"`
	TotalPoints   int     `json:"total_points"`
	ActivityCount int     `json:"activity_count"`
}

// RedisLeaderboard shares the snapshot between API replicas.
type RedisLeaderboard struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisLeaderboard constructs a RedisLeaderboard.
func NewRedisLeaderboard(client redis.Cmdable, ttl time.Duration) *RedisLeaderboard {
	return &RedisLeaderboard{client: client, ttl: ttl}
}

// Load implements domain.LeaderboardCache.
func (c *RedisLeaderboard) Load(ctx context.Context) ([]domain.LeaderboardEntry, bool, error) {
	raw, err := c.client.Get(ctx, LeaderboardKey).Bytes()
	if errors.Is(err, redis.Nil) {
		recordMiss()
		return nil, false, nil
	}
	if err != nil {
		recordMiss()
		return nil, false, fmt.Errorf("cache get failed: %w", err)
	}

	var cached []cachedEntry
	if err := json.Unmarshal(raw, &cached); err != nil {
		recordMiss()
		return nil, false, fmt.Errorf("cache unmarshal failed: %w", err)
	}
	recordHit()

	entries := make([]domain.LeaderboardEntry, len(cached))
	for i, e := range cached {
		entries[i] = domain.LeaderboardEntry{
			ID:            e.ID,
			Username:      e.Username,
			FullName:      e.FullName,
			AvatarURL:     e.AvatarURL,
			TotalPoints:   e.TotalPoints,
			ActivityCount: e.ActivityCount,
		}
	}
	return entries, true, nil
}

// Store implements domain.LeaderboardCache.
func (c *RedisLeaderboard) Store(ctx context.Context, entries []domain.LeaderboardEntry) error {
	cached := make([]cachedEntry, len(entries))
	for i, e := range entries {
		cached[i] = cachedEntry{
			ID:            e.ID,
			Username:      e.Username,
			FullName:      e.FullName,
			AvatarURL:     e.AvatarURL,
			TotalPoints:   e.TotalPoints,
			ActivityCount: e.ActivityCount,
		}
	}
	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}
	return c.client.Set(ctx, LeaderboardKey, data, c.ttl).Err()
}

// Invalidate implements domain.LeaderboardCache.
func (c *RedisLeaderboard) Invalidate(ctx context.Context) error {
	recordInvalidation()
	return c.client.Del(ctx, LeaderboardKey).Err()
}

// MemoryLeaderboard keeps the snapshot in process with a TTL.
type MemoryLeaderboard struct {
	mu      sync.RWMutex
	entries []domain.LeaderboardEntry
	expires time.Time
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryLeaderboard constructs a MemoryLeaderboard.
func NewMemoryLeaderboard(ttl time.Duration) *MemoryLeaderboard {
	return &MemoryLeaderboard{ttl: ttl, now: time.Now}
}

// Load implements domain.LeaderboardCache.
func (c *MemoryLeaderboard) Load(context.Context) ([]domain.LeaderboardEntry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entries == nil || c.now().After(c.expires) {
		recordMiss()
		return nil, false, nil
	}
	recordHit()
	out := make([]domain.LeaderboardEntry, len(c.entries))
	copy(out, c.entries)
	return out, true, nil
}

// Store implements domain.LeaderboardCache.
func (c *MemoryLeaderboard) Store(_ context.Context, entries []domain.LeaderboardEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make([]domain.LeaderboardEntry, len(entries))
	copy(c.entries, entries)
	c.expires = c.now().Add(c.ttl)
	return nil
}

// Invalidate implements domain.LeaderboardCache.
func (c *MemoryLeaderboard) Invalidate(context.Context) error {
	recordInvalidation()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
	return nil
}
