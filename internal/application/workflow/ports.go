package workflow

import (
	"context"

	"github.com/ctf-hub/ctf-community-hub/internal/domain/solve"
)

// RoleSync grants and revokes named capability tags for a user in the
// surrounding community platform. Implementations must tolerate repeated
// grants of a role the user already holds.
type RoleSync interface {
	GrantRole(ctx context.Context, userID int64, roleName string) error
	RevokeRole(ctx context.Context, userID int64, roleName string) error
}

// DecisionRequest is the content of a moderation request message.
type DecisionRequest struct {
	ChallengeID   int64
	ChallengeName string
	Category      string
	Flag          string
	SubmitterID   int64
	Participants  []int64
}

// DecisionAnnouncement is the content of a decision outcome message.
type DecisionAnnouncement struct {
	SolveID       int64
	ChallengeName string
	Status        solve.ApprovalStatus
	DeciderID     int64
	Participants  []int64
	AwardTenths   int64
}

// NotificationSink posts approval requests, decision outcomes and rank-up
// announcements. PublishDecisionRequest is synchronous because the returned
// message ref keys the decision trigger; the announcements may be delivered
// asynchronously with bounded retry.
type NotificationSink interface {
	PublishDecisionRequest(ctx context.Context, req DecisionRequest) (decisionMessageRef int64, err error)
	AnnounceDecision(ctx context.Context, a DecisionAnnouncement) error
	AnnounceRankUp(ctx context.Context, userID int64, rankName string) error
}

// LeaderboardInvalidator drops cached leaderboard snapshots after a credit
// lands. A nil invalidator is a no-op.
type LeaderboardInvalidator interface {
	Invalidate(ctx context.Context) error
}
