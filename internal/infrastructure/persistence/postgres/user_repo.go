package postgres

import (
	"context"

	"github.com/ctf-hub/ctf-community-hub/internal/domain/shared"
	"github.com/ctf-hub/ctf-community-hub/internal/domain/user"
)

// UserRepository implements user.Repository on PostgreSQL.
type UserRepository struct {
	conn *Connection
}

// NewUserRepository creates the repository.
func NewUserRepository(conn *Connection) *UserRepository {
	return &UserRepository{conn: conn}
}

var _ user.Repository = (*UserRepository)(nil)

// ByID returns the user or a NotFound domain error.
func (r *UserRepository) ByID(ctx context.Context, id int64) (*user.User, error) {
	var u user.User
	var email *string
	var cached *int
	err := r.conn.pool.QueryRow(ctx, `
		SELECT id, email, points, cached_rank, created_at
		FROM users
		WHERE id = $1`, id).
		Scan(&u.ID, &email, &u.Points, &cached, &u.CreatedAt)
	if IsNoRows(err) {
		return nil, shared.ErrUserNotFound
	}
	if err != nil {
		return nil, shared.WrapError("user", "Find", shared.ErrStorage,
			"query failed", err)
	}

	if email != nil {
		u.Email = *email
	}
	u.CachedRank = user.Unranked
	if cached != nil {
		u.CachedRank = *cached
	}
	return &u, nil
}

// TopByPoints returns up to n users by points descending, ties broken by
// user id ascending.
func (r *UserRepository) TopByPoints(ctx context.Context, n int) ([]user.User, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := r.conn.pool.Query(ctx, `
		SELECT id, email, points, cached_rank, created_at
		FROM users
		ORDER BY points DESC, id ASC
		LIMIT $1`, n)
	if err != nil {
		return nil, shared.WrapError("user", "TopByPoints", shared.ErrStorage,
			"query failed", err)
	}
	defer rows.Close()

	var out []user.User
	for rows.Next() {
		var u user.User
		var email *string
		var cached *int
		if err := rows.Scan(&u.ID, &email, &u.Points, &cached, &u.CreatedAt); err != nil {
			return nil, shared.WrapError("user", "TopByPoints", shared.ErrStorage,
				"scan failed", err)
		}
		if email != nil {
			u.Email = *email
		}
		u.CachedRank = user.Unranked
		if cached != nil {
			u.CachedRank = *cached
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("user", "TopByPoints", shared.ErrStorage,
			"row iteration failed", err)
	}
	return out, nil
}

// SetCachedRank persists the role-bookkeeping rank cache.
func (r *UserRepository) SetCachedRank(ctx context.Context, id int64, rank int) error {
	var stored any
	if rank >= 0 {
		stored = rank
	}
	tag, err := r.conn.pool.Exec(ctx, `
		UPDATE users SET cached_rank = $1 WHERE id = $2`, stored, id)
	if err != nil {
		return shared.WrapError("user", "SetCachedRank", shared.ErrStorage,
			"update failed", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrUserNotFound
	}
	return nil
}

// MarkVerified records a verified email, creating the user row if needed.
func (r *UserRepository) MarkVerified(ctx context.Context, id int64, email string) error {
	_, err := r.conn.pool.Exec(ctx, `
		INSERT INTO users (id, email, points)
		VALUES ($1, $2, 0)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email`, id, email)
	if err != nil {
		return shared.WrapError("user", "MarkVerified", shared.ErrStorage,
			"upsert failed", err)
	}
	return nil
}
