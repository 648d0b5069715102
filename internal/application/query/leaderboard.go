// Package query holds the read-side services: leaderboard, user statistics,
// the current rank ladder and role entitlements. Each returns plain data and
// leaves presentation to the caller.
package query

import (
	"context"
	"log/slog"

	"github.com/ctf-hub/ctf-community-hub/internal/domain/user"
)

// LeaderboardCache is a read-through snapshot cache for leaderboard pages.
// A miss returns ok=false without error; cache failures degrade to direct
// store reads.
type LeaderboardCache interface {
	Get(ctx context.Context, n int) ([]user.User, bool, error)
	Set(ctx context.Context, n int, users []user.User) error
	Invalidate(ctx context.Context) error
}

// LeaderboardEntry is one row of the points leaderboard.
type LeaderboardEntry struct {
	Position      int
	UserID        int64
	PointsTenths  int64
	PointsDisplay string
}

// Leaderboard serves the points leaderboard, cache-aside over the store.
type Leaderboard struct {
	users  user.Repository
	cache  LeaderboardCache
	logger *slog.Logger
}

// NewLeaderboard wires the leaderboard query. cache may be nil.
func NewLeaderboard(users user.Repository, cache LeaderboardCache, logger *slog.Logger) *Leaderboard {
	return &Leaderboard{
		users:  users,
		cache:  cache,
		logger: logger.With("component", "leaderboard_query"),
	}
}

// Top returns up to n entries ordered by points descending, ties broken by
// user id ascending.
func (l *Leaderboard) Top(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	if n <= 0 {
		n = 10
	}

	if l.cache != nil {
		if cached, ok, err := l.cache.Get(ctx, n); err != nil {
			l.logger.Warn("leaderboard cache read failed", "error", err)
		} else if ok {
			return toEntries(cached), nil
		}
	}

	top, err := l.users.TopByPoints(ctx, n)
	if err != nil {
		return nil, err
	}

	if l.cache != nil {
		if err := l.cache.Set(ctx, n, top); err != nil {
			l.logger.Warn("leaderboard cache write failed", "error", err)
		}
	}
	return toEntries(top), nil
}

func toEntries(users []user.User) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, len(users))
	for i, u := range users {
		entries[i] = LeaderboardEntry{
			Position:      i + 1,
			UserID:        u.ID,
			PointsTenths:  u.Points,
			PointsDisplay: user.FormatPoints(u.Points),
		}
	}
	return entries
}
