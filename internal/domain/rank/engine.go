// Package rank derives progression ranks from point balances. The ladder is
// not stored anywhere: cutoffs are recomputed from the current leader's
// score on every evaluation, so the ladder rescales as the top score grows.
package rank

import (
	"sort"

	"github.com/ctf-hub/ctf-community-hub/internal/domain/user"
)

// Unranked marks a point total below the lowest cutoff.
const Unranked = -1

// decayFactor is the geometric step between adjacent rank cutoffs.
const decayFactor = 0.75

// ComputeCutoffs builds the cutoff ladder for rankCount ranks, ascending by
// rank index. The top rank's cutoff equals topScore; each lower cutoff is
// the previous one decayed by 0.75. The running value stays fractional and
// only the stored cutoffs are floored, so a long ladder does not accumulate
// rounding drift step over step.
func ComputeCutoffs(topScore int64, rankCount int) []int64 {
	if rankCount <= 0 {
		return nil
	}
	cutoffs := make([]int64, rankCount)
	running := float64(topScore)
	for i := rankCount - 1; i >= 0; i-- {
		cutoffs[i] = int64(running)
		running *= decayFactor
	}
	return cutoffs
}

// ForPoints maps a point total to a rank index: the highest rank whose
// cutoff does not exceed points, or Unranked below the lowest cutoff.
// Cutoffs must be ascending, as produced by ComputeCutoffs.
func ForPoints(points int64, cutoffs []int64) int {
	// First index whose cutoff exceeds points; everything before it is
	// affordable.
	n := sort.Search(len(cutoffs), func(i int) bool {
		return cutoffs[i] > points
	})
	return n - 1 // -1 == Unranked
}

// Transition describes a rank increase to act on: which role to grant,
// which to revoke, and the new rank index to cache.
type Transition struct {
	UserID     int64
	NewRank    int
	GrantRole  string
	RevokeRole string // empty when the user was previously unranked
}

// EvaluateTransition decides whether a points change earns the user a rank
// increase under the given cutoffs and rank names. The effective old rank
// is the greater of the rank recomputed from the old balance and the cached
// rank, so a ladder that shifted upward since the user last ranked never
// reads as a demotion or re-triggers an already-granted rank.
func EvaluateTransition(upd user.PointsUpdate, cutoffs []int64, names []string) (Transition, bool) {
	newRank := ForPoints(upd.NewPoints, cutoffs)
	if newRank == Unranked {
		return Transition{}, false
	}
	if newRank >= len(names) {
		newRank = len(names) - 1
	}

	oldRank := ForPoints(upd.OldPoints, cutoffs)
	effectiveOld := oldRank
	if upd.CachedRank > effectiveOld {
		effectiveOld = upd.CachedRank
	}
	if newRank <= effectiveOld {
		return Transition{}, false
	}

	t := Transition{
		UserID:    upd.UserID,
		NewRank:   newRank,
		GrantRole: names[newRank],
	}
	if effectiveOld >= 0 && effectiveOld < len(names) {
		t.RevokeRole = names[effectiveOld]
	}
	return t, true
}
