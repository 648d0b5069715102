package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ctf-hub/ctf-community-hub/internal/domain/challenge"
	"github.com/ctf-hub/ctf-community-hub/internal/domain/shared"
	"github.com/ctf-hub/ctf-community-hub/internal/domain/solve"
	"github.com/ctf-hub/ctf-community-hub/internal/domain/user"
)

// SolveStore implements solve.Store on PostgreSQL. Mutations run on an
// explicit transaction from Begin; the read-only queries run on the pool.
type SolveStore struct {
	conn *Connection
}

// NewSolveStore creates the store.
func NewSolveStore(conn *Connection) *SolveStore {
	return &SolveStore{conn: conn}
}

var _ solve.Store = (*SolveStore)(nil)

// Begin opens a read-write transaction.
func (s *SolveStore) Begin(ctx context.Context) (solve.Tx, error) {
	tx, err := s.conn.BeginTx(ctx)
	if err != nil {
		return nil, shared.WrapError("solve", "Begin", shared.ErrStorage,
			"could not begin transaction", err)
	}
	return &solveTx{tx: tx}, nil
}

// ChallengeByID returns the challenge or a NotFound domain error.
func (s *SolveStore) ChallengeByID(ctx context.Context, id int64) (*challenge.Challenge, error) {
	return scanChallenge(s.conn.pool.QueryRow(ctx, `
		SELECT id, competition_id, name, category, COALESCE(discussion_ref, 0), created_at
		FROM challenges
		WHERE id = $1`, id))
}

// SolvedChallenges returns challenges the user solved through an approved
// solve, newest first.
func (s *SolveStore) SolvedChallenges(ctx context.Context, userID int64) ([]challenge.Challenge, error) {
	rows, err := s.conn.pool.Query(ctx, `
		SELECT DISTINCT c.id, c.competition_id, c.name, c.category,
		       COALESCE(c.discussion_ref, 0), c.created_at
		FROM challenges c
		JOIN solves s ON s.challenge_id = c.id
		JOIN user_solves us ON us.solve_id = s.id
		WHERE us.user_id = $1 AND s.approval_status = $2
		ORDER BY c.created_at DESC, c.id DESC`,
		userID, int(solve.StatusApproved))
	if err != nil {
		return nil, shared.WrapError("challenge", "SolvedChallenges", shared.ErrStorage,
			"query failed", err)
	}
	defer rows.Close()

	var out []challenge.Challenge
	for rows.Next() {
		ch, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ch)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("challenge", "SolvedChallenges", shared.ErrStorage,
			"row iteration failed", err)
	}
	return out, nil
}

// CategorySolveCounts returns the user's approved solve count per category.
func (s *SolveStore) CategorySolveCounts(ctx context.Context, userID int64) (map[challenge.Category]int, error) {
	rows, err := s.conn.pool.Query(ctx, `
		SELECT c.category, COUNT(*)
		FROM challenges c
		JOIN solves s ON s.challenge_id = c.id
		JOIN user_solves us ON us.solve_id = s.id
		WHERE us.user_id = $1 AND s.approval_status = $2
		GROUP BY c.category`,
		userID, int(solve.StatusApproved))
	if err != nil {
		return nil, shared.WrapError("challenge", "CategorySolveCounts", shared.ErrStorage,
			"query failed", err)
	}
	defer rows.Close()

	counts := make(map[challenge.Category]int)
	for rows.Next() {
		var stored, n int
		if err := rows.Scan(&stored, &n); err != nil {
			return nil, shared.WrapError("challenge", "CategorySolveCounts", shared.ErrStorage,
				"scan failed", err)
		}
		cat, err := challenge.CategoryFromStored(stored)
		if err != nil {
			return nil, err
		}
		counts[cat] = n
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("challenge", "CategorySolveCounts", shared.ErrStorage,
			"row iteration failed", err)
	}
	return counts, nil
}

// CompetitionByChannel resolves a competition by its hosting channel.
func (s *SolveStore) CompetitionByChannel(ctx context.Context, channelRef int64) (*challenge.Competition, error) {
	var c challenge.Competition
	err := s.conn.pool.QueryRow(ctx, `
		SELECT id, channel_ref, name, created_at
		FROM competitions
		WHERE channel_ref = $1`, channelRef).
		Scan(&c.ID, &c.ChannelRef, &c.Name, &c.CreatedAt)
	if IsNoRows(err) {
		return nil, shared.ErrCompetitionNotFound
	}
	if err != nil {
		return nil, shared.WrapError("challenge", "CompetitionByChannel", shared.ErrStorage,
			"query failed", err)
	}
	return &c, nil
}

// CreateCompetition registers a competition for a hosting channel.
func (s *SolveStore) CreateCompetition(ctx context.Context, c *challenge.Competition) (int64, error) {
	var id int64
	err := s.conn.pool.QueryRow(ctx, `
		INSERT INTO competitions (channel_ref, name)
		VALUES ($1, $2)
		RETURNING id`, c.ChannelRef, c.Name).Scan(&id)
	if IsUniqueViolation(err) {
		return 0, shared.NewDomainError("challenge", "CreateCompetition", shared.ErrConstraint,
			"competition already registered for this channel")
	}
	if err != nil {
		return 0, shared.WrapError("challenge", "CreateCompetition", shared.ErrStorage,
			"insert failed", err)
	}
	return id, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Transaction
// ─────────────────────────────────────────────────────────────────────────────

type solveTx struct {
	tx pgx.Tx
}

var _ solve.Tx = (*solveTx)(nil)

func (t *solveTx) CreateChallenge(ctx context.Context, c *challenge.Challenge) (int64, error) {
	var discussionRef any
	if c.DiscussionRef != 0 {
		discussionRef = c.DiscussionRef
	}
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO challenges (competition_id, name, category, discussion_ref)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		c.CompetitionID, c.Name, int(c.Category), discussionRef).Scan(&id)
	if IsForeignKeyViolation(err) {
		return 0, shared.ErrCompetitionNotFound
	}
	if IsUniqueViolation(err) {
		return 0, shared.ErrDuplicateChallenge
	}
	if err != nil {
		return 0, shared.WrapError("challenge", "Create", shared.ErrStorage,
			"insert failed", err)
	}
	c.ID = id
	return id, nil
}

func (t *solveTx) CreateSolve(ctx context.Context, s *solve.Solve) (int64, error) {
	// Lazily create participant rows so the FK on user_solves holds.
	_, err := t.tx.Exec(ctx, `
		INSERT INTO users (id, points)
		SELECT unnest($1::bigint[]), 0
		ON CONFLICT (id) DO NOTHING`, s.Participants)
	if err != nil {
		return 0, shared.WrapError("solve", "Create", shared.ErrStorage,
			"participant user insert failed", err)
	}

	var id int64
	err = t.tx.QueryRow(ctx, `
		INSERT INTO solves (challenge_id, decision_message_ref, flag, approval_status)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		s.ChallengeID, s.DecisionMessageRef, s.Flag, int(s.Status)).Scan(&id)
	if IsForeignKeyViolation(err) {
		return 0, shared.ErrChallengeNotFound
	}
	if IsUniqueViolation(err) {
		return 0, shared.ErrDuplicateSolve
	}
	if err != nil {
		return 0, shared.WrapError("solve", "Create", shared.ErrStorage,
			"insert failed", err)
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO user_solves (user_id, solve_id)
		SELECT unnest($1::bigint[]), $2`, s.Participants, id)
	if err != nil {
		return 0, shared.WrapError("solve", "Create", shared.ErrStorage,
			"participation insert failed", err)
	}

	s.ID = id
	return id, nil
}

func (t *solveTx) SolveByDecisionMessage(ctx context.Context, ref int64) (*solve.Solve, error) {
	var s solve.Solve
	var storedStatus int
	err := t.tx.QueryRow(ctx, `
		SELECT id, challenge_id, decision_message_ref, flag, approval_status, created_at
		FROM solves
		WHERE decision_message_ref = $1
		FOR UPDATE`, ref).
		Scan(&s.ID, &s.ChallengeID, &s.DecisionMessageRef, &s.Flag, &storedStatus, &s.CreatedAt)
	if IsNoRows(err) {
		return nil, shared.ErrSolveNotFound
	}
	if err != nil {
		return nil, shared.WrapError("solve", "Find", shared.ErrStorage,
			"query failed", err)
	}

	s.Status, err = solve.StatusFromStored(storedStatus)
	if err != nil {
		return nil, err
	}

	rows, err := t.tx.Query(ctx, `
		SELECT user_id FROM user_solves WHERE solve_id = $1 ORDER BY user_id`, s.ID)
	if err != nil {
		return nil, shared.WrapError("solve", "Find", shared.ErrStorage,
			"participant query failed", err)
	}
	defer rows.Close()
	for rows.Next() {
		var uid int64
		if err := rows.Scan(&uid); err != nil {
			return nil, shared.WrapError("solve", "Find", shared.ErrStorage,
				"participant scan failed", err)
		}
		s.Participants = append(s.Participants, uid)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("solve", "Find", shared.ErrStorage,
			"participant iteration failed", err)
	}
	return &s, nil
}

func (t *solveTx) UpdateStatus(ctx context.Context, solveID int64, status solve.ApprovalStatus) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE solves SET approval_status = $1 WHERE id = $2`,
		int(status), solveID)
	if err != nil {
		return shared.WrapError("solve", "UpdateStatus", shared.ErrStorage,
			"update failed", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrSolveNotFound
	}
	return nil
}

func (t *solveTx) CreditUsers(ctx context.Context, userIDs []int64, amountTenths int64) ([]user.PointsUpdate, error) {
	if len(userIDs) == 0 {
		return nil, shared.ErrEmptyCreditBatch
	}

	_, err := t.tx.Exec(ctx, `
		INSERT INTO users (id, points)
		SELECT unnest($1::bigint[]), 0
		ON CONFLICT (id) DO NOTHING`, userIDs)
	if err != nil {
		return nil, shared.WrapError("user", "Credit", shared.ErrStorage,
			"lazy user insert failed", err)
	}

	rows, err := t.tx.Query(ctx, `
		UPDATE users
		SET points = points + $1
		WHERE id = ANY($2::bigint[])
		RETURNING id, points, cached_rank`, amountTenths, userIDs)
	if err != nil {
		return nil, shared.WrapError("user", "Credit", shared.ErrStorage,
			"balance update failed", err)
	}
	defer rows.Close()

	byID := make(map[int64]user.PointsUpdate, len(userIDs))
	for rows.Next() {
		var upd user.PointsUpdate
		var cached *int
		if err := rows.Scan(&upd.UserID, &upd.NewPoints, &cached); err != nil {
			return nil, shared.WrapError("user", "Credit", shared.ErrStorage,
				"scan failed", err)
		}
		upd.OldPoints = upd.NewPoints - amountTenths
		upd.CachedRank = user.Unranked
		if cached != nil {
			upd.CachedRank = *cached
		}
		byID[upd.UserID] = upd
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("user", "Credit", shared.ErrStorage,
			"row iteration failed", err)
	}

	// Preserve the caller's participant order.
	updates := make([]user.PointsUpdate, 0, len(userIDs))
	for _, id := range userIDs {
		upd, ok := byID[id]
		if !ok {
			return nil, shared.WrapError("user", "Credit", shared.ErrStorage,
				"user row vanished during credit", nil)
		}
		updates = append(updates, upd)
	}
	return updates, nil
}

func (t *solveTx) TopPoints(ctx context.Context) (int64, bool, error) {
	var points int64
	err := t.tx.QueryRow(ctx, `
		SELECT points FROM users ORDER BY points DESC, id ASC LIMIT 1`).Scan(&points)
	if IsNoRows(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, shared.WrapError("user", "TopPoints", shared.ErrStorage,
			"query failed", err)
	}
	return points, true, nil
}

func (t *solveTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return shared.WrapError("solve", "Commit", shared.ErrStorage,
			"commit failed", err)
	}
	return nil
}

func (t *solveTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// scanChallenge reads one challenge row in the canonical column order.
func scanChallenge(row pgx.Row) (*challenge.Challenge, error) {
	var ch challenge.Challenge
	var storedCategory int
	err := row.Scan(&ch.ID, &ch.CompetitionID, &ch.Name, &storedCategory,
		&ch.DiscussionRef, &ch.CreatedAt)
	if IsNoRows(err) {
		return nil, shared.ErrChallengeNotFound
	}
	if err != nil {
		return nil, shared.WrapError("challenge", "Find", shared.ErrStorage,
			"scan failed", err)
	}
	ch.Category, err = challenge.CategoryFromStored(storedCategory)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}
