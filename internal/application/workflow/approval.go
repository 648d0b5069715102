// Package workflow orchestrates the solve approval state machine: submission,
// moderation decision, point distribution and rank re-evaluation. It is the
// sole writer of approval status. The competition/challenge registry that
// submissions depend on lives here too.
package workflow

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ctf-hub/ctf-community-hub/config"
	"github.com/ctf-hub/ctf-community-hub/internal/domain/rank"
	"github.com/ctf-hub/ctf-community-hub/internal/domain/shared"
	"github.com/ctf-hub/ctf-community-hub/internal/domain/solve"
	"github.com/ctf-hub/ctf-community-hub/internal/domain/user"
)

// Approval runs the solve approval workflow against a transactional store.
// Point credits commit in the same transaction as the status flip; external
// side effects run strictly after commit and never roll it back.
type Approval struct {
	store  solve.Store
	users  user.Repository
	roles  RoleSync
	sink   NotificationSink
	cache  LeaderboardInvalidator
	ladder *config.Ladder
	logger *slog.Logger
}

// NewApproval wires the workflow. cache may be nil.
func NewApproval(
	store solve.Store,
	users user.Repository,
	roles RoleSync,
	sink NotificationSink,
	cache LeaderboardInvalidator,
	ladder *config.Ladder,
	logger *slog.Logger,
) *Approval {
	return &Approval{
		store:  store,
		users:  users,
		roles:  roles,
		sink:   sink,
		cache:  cache,
		ladder: ladder,
		logger: logger.With("component", "approval_workflow"),
	}
}

// SubmitInput carries a flag submission.
type SubmitInput struct {
	ChallengeID int64
	Flag        string
	SubmitterID int64
	TeammateIDs []int64
}

// Submit records a pending solve and publishes its decision request.
// It has no point effects.
func (a *Approval) Submit(ctx context.Context, in SubmitInput) (int64, error) {
	participants := append([]int64{in.SubmitterID}, in.TeammateIDs...)

	// Validate before any external call; the decision message ref is
	// filled in after publishing.
	s, err := solve.New(in.ChallengeID, 0, in.Flag, participants)
	if err != nil {
		return 0, err
	}

	ch, err := a.store.ChallengeByID(ctx, in.ChallengeID)
	if err != nil {
		return 0, err
	}

	ref, err := a.sink.PublishDecisionRequest(ctx, DecisionRequest{
		ChallengeID:   ch.ID,
		ChallengeName: ch.Name,
		Category:      ch.Category.String(),
		Flag:          s.Flag,
		SubmitterID:   in.SubmitterID,
		Participants:  s.Participants,
	})
	if err != nil {
		return 0, shared.WrapError("solve", "Submit", shared.ErrSideEffectFailed,
			"could not publish decision request", err)
	}
	s.DecisionMessageRef = ref

	tx, err := a.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := tx.CreateSolve(ctx, s)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	a.logger.Info("solve submitted",
		"solve_id", id,
		"challenge_id", ch.ID,
		"submitter_id", in.SubmitterID,
		"participants", len(s.Participants))
	return id, nil
}

// DecisionTrigger is the external callback that decides a pending solve.
// The workflow is safe to invoke zero, one or many times per trigger.
type DecisionTrigger struct {
	DecisionMessageRef int64
	Outcome            solve.Outcome
	DeciderID          int64
}

// DecisionResult reports what a Decide call did. AlreadyDecided means the
// solve had a terminal status before this call and nothing was re-applied.
type DecisionResult struct {
	SolveID        int64
	Status         solve.ApprovalStatus
	AlreadyDecided bool
	Updates        []user.PointsUpdate
	Transitions    []rank.Transition

	// SideEffectErrors collects post-commit failures (roles, messages).
	// The committed decision stands regardless.
	SideEffectErrors []error
}

// Decide loads the solve addressed by the trigger and moves it to a terminal
// status exactly once. A re-entrant call on a decided solve reports the
// existing status without touching the ledger.
func (a *Approval) Decide(ctx context.Context, trig DecisionTrigger) (*DecisionResult, error) {
	tx, err := a.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	s, err := tx.SolveByDecisionMessage(ctx, trig.DecisionMessageRef)
	if err != nil {
		return nil, err
	}

	if s.Status != solve.StatusPending {
		a.logger.Info("duplicate decision trigger ignored",
			"solve_id", s.ID, "status", s.Status.String())
		return &DecisionResult{
			SolveID:        s.ID,
			Status:         s.Status,
			AlreadyDecided: true,
		}, nil
	}

	status := trig.Outcome.TerminalStatus()
	if err := tx.UpdateStatus(ctx, s.ID, status); err != nil {
		return nil, err
	}

	res := &DecisionResult{SolveID: s.ID, Status: status}

	var topPoints int64
	var havePopulation bool
	if status == solve.StatusApproved {
		res.Updates, err = tx.CreditUsers(ctx, s.Participants, a.ladder.SolveAwardTenths)
		if err != nil {
			// Rolls back the status flip too; the solve stays Pending
			// and the trigger can be retried.
			return nil, err
		}
		topPoints, havePopulation, err = tx.TopPoints(ctx)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	a.logger.Info("solve decided",
		"solve_id", s.ID,
		"status", status.String(),
		"decider_id", trig.DeciderID,
		"credited", len(res.Updates))

	// Everything below is best-effort: the decision and credits are
	// already durable.
	if status == solve.StatusApproved && havePopulation {
		cutoffs := rank.ComputeCutoffs(topPoints, a.ladder.RankCount())
		for _, upd := range res.Updates {
			tr, ok := rank.EvaluateTransition(upd, cutoffs, a.ladder.RankNames)
			if !ok {
				continue
			}
			res.Transitions = append(res.Transitions, tr)
			a.applyTransition(ctx, tr, res)
		}
		a.invalidateLeaderboard(ctx, res)
	}

	a.announceDecision(ctx, s, status, trig.DeciderID, res)
	return res, nil
}

// applyTransition performs a rank-up's side effects in order: grant the new
// role, persist the cached rank, revoke the old role, announce. Granting
// before revoking keeps the user from ever being observably role-less.
func (a *Approval) applyTransition(ctx context.Context, tr rank.Transition, res *DecisionResult) {
	if err := a.roles.GrantRole(ctx, tr.UserID, tr.GrantRole); err != nil {
		a.reportSideEffect(res, "role grant failed", err,
			"user_id", tr.UserID, "role", tr.GrantRole)
		// Without the new role there is nothing to cache or revoke; the
		// next credit event re-evaluates from the unchanged cached rank.
		return
	}

	if err := a.users.SetCachedRank(ctx, tr.UserID, tr.NewRank); err != nil {
		a.reportSideEffect(res, "cached rank persist failed", err,
			"user_id", tr.UserID, "rank", tr.NewRank)
	}

	if tr.RevokeRole != "" {
		if err := a.roles.RevokeRole(ctx, tr.UserID, tr.RevokeRole); err != nil {
			a.reportSideEffect(res, "role revoke failed", err,
				"user_id", tr.UserID, "role", tr.RevokeRole)
		}
	}

	if err := a.sink.AnnounceRankUp(ctx, tr.UserID, tr.GrantRole); err != nil {
		a.reportSideEffect(res, "rank-up announcement failed", err,
			"user_id", tr.UserID, "role", tr.GrantRole)
	}
}

func (a *Approval) announceDecision(ctx context.Context, s *solve.Solve, status solve.ApprovalStatus, deciderID int64, res *DecisionResult) {
	ann := DecisionAnnouncement{
		SolveID:      s.ID,
		Status:       status,
		DeciderID:    deciderID,
		Participants: s.Participants,
	}
	if status == solve.StatusApproved {
		ann.AwardTenths = a.ladder.SolveAwardTenths
	}
	if ch, err := a.store.ChallengeByID(ctx, s.ChallengeID); err == nil {
		ann.ChallengeName = ch.Name
	}

	if err := a.sink.AnnounceDecision(ctx, ann); err != nil {
		a.reportSideEffect(res, "decision announcement failed", err,
			"solve_id", s.ID)
	}
}

func (a *Approval) invalidateLeaderboard(ctx context.Context, res *DecisionResult) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Invalidate(ctx); err != nil {
		a.reportSideEffect(res, "leaderboard cache invalidation failed", err)
	}
}

func (a *Approval) reportSideEffect(res *DecisionResult, msg string, err error, args ...any) {
	if !errors.Is(err, shared.ErrSideEffectFailed) {
		err = shared.WrapError("workflow", "SideEffect", shared.ErrSideEffectFailed, msg, err)
	}
	res.SideEffectErrors = append(res.SideEffectErrors, err)
	a.logger.Error(msg, append(args, "error", err)...)
}
