package query

import (
	"context"

	"github.com/ctf-hub/ctf-community-hub/config"
	"github.com/ctf-hub/ctf-community-hub/internal/domain/user"
)

// Entitlements lists the roles a user should currently hold, so the
// platform adapter can re-issue tags lost to manual removal or re-joins.
type Entitlements struct {
	UserID   int64
	Verified bool

	// RankRole is the cached rank's role name, empty when unranked.
	RankRole string
}

// Roles serves role entitlements.
type Roles struct {
	users  user.Repository
	ladder *config.Ladder
}

// NewRoles wires the role entitlement query.
func NewRoles(users user.Repository, ladder *config.Ladder) *Roles {
	return &Roles{users: users, ladder: ladder}
}

// ForUser returns the user's entitlements, or a NotFound domain error.
func (r *Roles) ForUser(ctx context.Context, userID int64) (*Entitlements, error) {
	u, err := r.users.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	e := &Entitlements{UserID: u.ID, Verified: u.Verified()}
	if u.CachedRank >= 0 && u.CachedRank < r.ladder.RankCount() {
		e.RankRole = r.ladder.RankNames[u.CachedRank]
	}
	return e, nil
}
