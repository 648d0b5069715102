package query

import (
	"context"
	"log/slog"

	"github.com/ctf-hub/ctf-community-hub/config"
	"github.com/ctf-hub/ctf-community-hub/internal/domain/challenge"
	"github.com/ctf-hub/ctf-community-hub/internal/domain/rank"
	"github.com/ctf-hub/ctf-community-hub/internal/domain/solve"
	"github.com/ctf-hub/ctf-community-hub/internal/domain/user"
)

// UserStats is the per-user statistics view.
type UserStats struct {
	UserID        int64
	Verified      bool
	PointsTenths  int64
	PointsDisplay string

	// RankIndex is the freshly computed rank under the current ladder,
	// or user.Unranked. RankName is empty when unranked.
	RankIndex int
	RankName  string

	SolvesByCategory map[string]int
	SolvedChallenges []challenge.Challenge
}

// Stats serves per-user statistics: balance, current rank under the live
// ladder, and approved solves grouped by category.
type Stats struct {
	store  solve.Store
	users  user.Repository
	ladder *config.Ladder
	logger *slog.Logger
}

// NewStats wires the stats query.
func NewStats(store solve.Store, users user.Repository, ladder *config.Ladder, logger *slog.Logger) *Stats {
	return &Stats{
		store:  store,
		users:  users,
		ladder: ladder,
		logger: logger.With("component", "stats_query"),
	}
}

// ForUser builds the statistics view, or returns a NotFound domain error
// for an unknown user.
func (s *Stats) ForUser(ctx context.Context, userID int64) (*UserStats, error) {
	u, err := s.users.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &UserStats{
		UserID:        u.ID,
		Verified:      u.Verified(),
		PointsTenths:  u.Points,
		PointsDisplay: user.FormatPoints(u.Points),
		RankIndex:     user.Unranked,
	}

	cutoffs, err := currentCutoffs(ctx, s.users, s.ladder)
	if err != nil {
		return nil, err
	}
	if idx := rank.ForPoints(u.Points, cutoffs); idx != rank.Unranked {
		stats.RankIndex = idx
		stats.RankName = s.ladder.RankNames[idx]
	}

	counts, err := s.store.CategorySolveCounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats.SolvesByCategory = make(map[string]int, len(counts))
	for cat, n := range counts {
		stats.SolvesByCategory[cat.String()] = n
	}

	stats.SolvedChallenges, err = s.store.SolvedChallenges(ctx, userID)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// currentCutoffs rebuilds the ladder from the live population's top score.
// An empty population yields no cutoffs, so everyone is unranked.
func currentCutoffs(ctx context.Context, users user.Repository, ladder *config.Ladder) ([]int64, error) {
	top, err := users.TopByPoints(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(top) == 0 {
		return nil, nil
	}
	return rank.ComputeCutoffs(top[0].Points, ladder.RankCount()), nil
}
