// Package solve models solve submissions and their moderation lifecycle.
// A solve is created Pending and moves to exactly one terminal status,
// Approved or Declined; it is never deleted.
package solve

import (
	"strings"
	"time"

	"github.com/ctf-hub/ctf-community-hub/internal/domain/shared"
)

// ApprovalStatus is the tri-state moderation status of a solve. The stored
// representation is the integer value; loading an unknown integer is a
// corrupt record.
type ApprovalStatus int

const (
	StatusPending ApprovalStatus = iota
	StatusApproved
	StatusDeclined
)

var statusNames = [...]string{"pending", "approved", "declined"}

// String returns the lowercase status name.
func (s ApprovalStatus) String() string {
	if !s.Valid() {
		return "unknown"
	}
	return statusNames[s]
}

// Valid reports whether the status is one of the known variants.
func (s ApprovalStatus) Valid() bool {
	return s >= 0 && int(s) < len(statusNames)
}

// Terminal reports whether the status admits no further transition.
func (s ApprovalStatus) Terminal() bool {
	return s == StatusApproved || s == StatusDeclined
}

// StatusFromStored maps a stored integer back to an ApprovalStatus.
func StatusFromStored(v int) (ApprovalStatus, error) {
	s := ApprovalStatus(v)
	if !s.Valid() {
		return 0, shared.WrapError("solve", "Load", shared.ErrCorruptRecord,
			"unknown approval status value", shared.ErrUnknownStatus)
	}
	return s, nil
}

// Outcome is a moderator's decision on a pending solve.
type Outcome int

const (
	OutcomeApprove Outcome = iota
	OutcomeDecline
)

// TerminalStatus returns the status a solve reaches under this outcome.
func (o Outcome) TerminalStatus() ApprovalStatus {
	if o == OutcomeApprove {
		return StatusApproved
	}
	return StatusDeclined
}

// Solve is a claim that a challenge was solved by a set of participants.
type Solve struct {
	ID          int64
	ChallengeID int64

	// DecisionMessageRef identifies the platform message carrying the
	// approve/decline controls. Decision triggers arrive keyed by it.
	DecisionMessageRef int64

	Flag   string
	Status ApprovalStatus

	// Participants holds the distinct user ids credited on approval,
	// populated atomically with the solve and immutable afterwards.
	Participants []int64

	CreatedAt time.Time
}

// New validates and constructs a pending solve. Participant ids are
// deduplicated; at least one participant is required.
func New(challengeID, decisionMessageRef int64, flag string, participants []int64) (*Solve, error) {
	flag = strings.TrimSpace(flag)
	if flag == "" {
		return nil, shared.NewDomainError("solve", "Create", shared.ErrEmptyValue,
			"flag cannot be empty")
	}
	if challengeID <= 0 {
		return nil, shared.NewDomainError("solve", "Create", shared.ErrInvalidID,
			"challenge id must be positive")
	}
	deduped := DedupeParticipants(participants)
	if len(deduped) == 0 {
		return nil, shared.NewDomainError("solve", "Create", shared.ErrInvalidInput,
			"a solve needs at least one participant")
	}
	return &Solve{
		ChallengeID:        challengeID,
		DecisionMessageRef: decisionMessageRef,
		Flag:               flag,
		Status:             StatusPending,
		Participants:       deduped,
		CreatedAt:          time.Now().UTC(),
	}, nil
}

// DedupeParticipants drops duplicate and non-positive user ids while
// preserving first-seen order.
func DedupeParticipants(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
