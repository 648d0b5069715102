// Package user models community members and their point balances.
// Balances are stored as integer tenths of a point so fractional awards
// never touch floating point.
package user

import (
	"context"
	"fmt"
	"time"
)

// Unranked marks a user who sits below the lowest rank cutoff.
const Unranked = -1

// User is a community member. Users are created lazily on their first
// point-earning event; verification fills in Email later.
type User struct {
	ID int64

	// Email is set once the user completes identity verification.
	// Empty means unverified.
	Email string

	// Points is the balance in tenths of a point.
	Points int64

	// CachedRank is the last rank index this user was granted a role for,
	// or Unranked. It is a cache for role bookkeeping only; rank
	// comparisons always prefer a freshly computed rank when higher.
	CachedRank int

	CreatedAt time.Time
}

// Verified reports whether the user completed identity verification.
func (u *User) Verified() bool {
	return u.Email != ""
}

// PointsUpdate is the before/after snapshot returned by a ledger credit.
type PointsUpdate struct {
	UserID     int64
	OldPoints  int64
	NewPoints  int64
	CachedRank int
}

// Repository is the read/update surface for users outside the approval
// transaction. Credits happen on the solve transaction instead, so that a
// status flip and its point effects commit as one unit.
type Repository interface {
	// ByID returns the user or a NotFound domain error.
	ByID(ctx context.Context, id int64) (*User, error)

	// TopByPoints returns up to n users ordered by points descending,
	// ties broken by user id ascending.
	TopByPoints(ctx context.Context, n int) ([]User, error)

	// SetCachedRank persists the role-bookkeeping rank cache.
	SetCachedRank(ctx context.Context, id int64, rank int) error

	// MarkVerified records a completed identity verification, creating
	// the user row if needed.
	MarkVerified(ctx context.Context, id int64, email string) error
}

// FormatPoints renders a tenths balance as a decimal string with one
// fractional digit, truncating toward zero: 1234 -> "123.4", -5 -> "-0.5".
func FormatPoints(tenths int64) string {
	frac := tenths % 10
	if frac < 0 {
		frac = -frac
	}
	whole := tenths / 10
	if tenths < 0 && whole == 0 {
		return fmt.Sprintf("-0.%d", frac)
	}
	return fmt.Sprintf("%d.%d", whole, frac)
}

// TenthsFromPoints converts a whole-and-fraction point amount expressed as
// a float in configuration into the stored tenths representation.
func TenthsFromPoints(points float64) int64 {
	if points >= 0 {
		return int64(points*10 + 0.5)
	}
	return -int64(-points*10 + 0.5)
}
