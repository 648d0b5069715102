package solve

import (
	"context"

	"github.com/ctf-hub/ctf-community-hub/internal/domain/challenge"
	"github.com/ctf-hub/ctf-community-hub/internal/domain/user"
)

// Store is the transactional persistence surface for challenges, solves and
// point credits. Mutations run inside an explicit transaction obtained from
// Begin, so a solve insert and its participant rows, or a status update and
// its credits, commit or roll back as one unit. Read-only queries that sit
// outside the approval critical path run directly on the store.
type Store interface {
	// Begin opens a read-write transaction.
	Begin(ctx context.Context) (Tx, error)

	// ChallengeByID returns the challenge or a NotFound domain error.
	ChallengeByID(ctx context.Context, id int64) (*challenge.Challenge, error)

	// SolvedChallenges returns the challenges the user participated in
	// through an approved solve.
	SolvedChallenges(ctx context.Context, userID int64) ([]challenge.Challenge, error)

	// CategorySolveCounts returns the user's approved solve count per
	// category.
	CategorySolveCounts(ctx context.Context, userID int64) (map[challenge.Category]int, error)

	// CompetitionByChannel resolves a competition by its hosting channel,
	// or returns a NotFound domain error.
	CompetitionByChannel(ctx context.Context, channelRef int64) (*challenge.Competition, error)

	// CreateCompetition registers a competition for a hosting channel.
	CreateCompetition(ctx context.Context, c *challenge.Competition) (int64, error)
}

// Tx is a single store transaction. Every method observes the transaction's
// snapshot; nothing is visible to other tasks until Commit.
type Tx interface {
	// CreateChallenge assigns a new challenge identity. Fails with a
	// ConstraintViolation domain error if the owning competition does not
	// exist.
	CreateChallenge(ctx context.Context, c *challenge.Challenge) (int64, error)

	// CreateSolve inserts the solve as Pending together with one
	// participation row per distinct participant, lazily creating user
	// rows (zero points, unranked) for participants not yet known.
	CreateSolve(ctx context.Context, s *Solve) (int64, error)

	// SolveByDecisionMessage loads the solve addressed by a decision
	// trigger, including its participants, and locks the row for the
	// remainder of the transaction. Fails with NotFound if absent.
	SolveByDecisionMessage(ctx context.Context, decisionMessageRef int64) (*Solve, error)

	// UpdateStatus persists a terminal status. The state-machine check is
	// the caller's responsibility.
	UpdateStatus(ctx context.Context, solveID int64, status ApprovalStatus) error

	// CreditUsers atomically increments every listed user's balance by
	// amountTenths and returns one before/after snapshot per user, lazily
	// creating missing user rows. Either all balances move or none do.
	CreditUsers(ctx context.Context, userIDs []int64, amountTenths int64) ([]user.PointsUpdate, error)

	// TopPoints returns the single highest point balance, or ok=false
	// when no users exist yet.
	TopPoints(ctx context.Context) (points int64, ok bool, err error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
