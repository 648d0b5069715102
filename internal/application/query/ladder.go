package query

import (
	"context"

	"github.com/ctf-hub/ctf-community-hub/config"
	"github.com/ctf-hub/ctf-community-hub/internal/domain/user"
)

// LadderRung is one rank of the current ladder with its live cutoff.
type LadderRung struct {
	Index         int
	Name          string
	CutoffTenths  int64
	CutoffDisplay string
}

// RankLadder serves the current cutoff ladder, recomputed from the live
// leader on every call.
type RankLadder struct {
	users  user.Repository
	ladder *config.Ladder
}

// NewRankLadder wires the ladder query.
func NewRankLadder(users user.Repository, ladder *config.Ladder) *RankLadder {
	return &RankLadder{users: users, ladder: ladder}
}

// Current returns the ladder ascending by rank index. With no users yet the
// rungs carry the configured names and zero cutoffs.
func (r *RankLadder) Current(ctx context.Context) ([]LadderRung, error) {
	cutoffs, err := currentCutoffs(ctx, r.users, r.ladder)
	if err != nil {
		return nil, err
	}

	rungs := make([]LadderRung, r.ladder.RankCount())
	for i, name := range r.ladder.RankNames {
		rungs[i] = LadderRung{Index: i, Name: name}
		if i < len(cutoffs) {
			rungs[i].CutoffTenths = cutoffs[i]
			rungs[i].CutoffDisplay = user.FormatPoints(cutoffs[i])
		}
	}
	return rungs, nil
}
