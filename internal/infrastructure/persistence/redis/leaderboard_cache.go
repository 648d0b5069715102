package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ctf-hub/ctf-community-hub/internal/domain/user"
)

const leaderboardKeyPrefix = "leaderboard:top:"

// LeaderboardCache stores leaderboard page snapshots as JSON with a short
// TTL. Approvals invalidate all pages so a fresh ladder shows up on the
// next read.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLeaderboardCache creates the cache.
func NewLeaderboardCache(client *redis.Client, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{client: client, ttl: ttl}
}

type cachedUser struct {
	ID         int64 `json:"id"`
	Points     int64 `json:"points"`
	CachedRank int   `json:"cached_rank"`
}

// Get returns the cached page for n entries, ok=false on miss.
func (c *LeaderboardCache) Get(ctx context.Context, n int) ([]user.User, bool, error) {
	raw, err := c.client.Get(ctx, pageKey(n)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("leaderboard cache get: %w", err)
	}

	var cached []cachedUser
	if err := json.Unmarshal(raw, &cached); err != nil {
		// A snapshot we cannot decode is as good as a miss.
		return nil, false, nil
	}

	users := make([]user.User, len(cached))
	for i, cu := range cached {
		users[i] = user.User{ID: cu.ID, Points: cu.Points, CachedRank: cu.CachedRank}
	}
	return users, true, nil
}

// Set stores the page snapshot for n entries.
func (c *LeaderboardCache) Set(ctx context.Context, n int, users []user.User) error {
	cached := make([]cachedUser, len(users))
	for i, u := range users {
		cached[i] = cachedUser{ID: u.ID, Points: u.Points, CachedRank: u.CachedRank}
	}
	raw, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("leaderboard cache marshal: %w", err)
	}
	if err := c.client.Set(ctx, pageKey(n), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("leaderboard cache set: %w", err)
	}
	return nil
}

// Invalidate drops every cached page.
func (c *LeaderboardCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, leaderboardKeyPrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("leaderboard cache scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("leaderboard cache del: %w", err)
	}
	return nil
}

func pageKey(n int) string {
	return fmt.Sprintf("%s%d", leaderboardKeyPrefix, n)
}
