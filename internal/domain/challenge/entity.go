// Package challenge defines challenges and the competitions that group them.
// A challenge is created once per announcement and is immutable afterwards,
// except for the reference to its discussion thread.
package challenge

import (
	"strings"
	"time"

	"github.com/ctf-hub/ctf-community-hub/internal/domain/shared"
)

// Category is a closed enumeration of challenge categories. The stored
// representation is the integer value in declaration order; loading an
// integer outside the known range is a corrupt record, not a default.
type Category int

const (
	CategoryRev Category = iota
	CategoryPwn
	CategoryWeb
	CategoryCrypto
	CategoryMisc
	CategoryOsint
	CategoryForensics
	CategoryBlockchain
	CategoryProgramming
	CategoryJail
)

var categoryNames = [...]string{
	"rev",
	"pwn",
	"web",
	"crypto",
	"misc",
	"osint",
	"forensics",
	"blockchain",
	"programming",
	"jail",
}

// Categories returns all known categories in declaration order.
func Categories() []Category {
	out := make([]Category, len(categoryNames))
	for i := range out {
		out[i] = Category(i)
	}
	return out
}

// String returns the lowercase category name.
func (c Category) String() string {
	if !c.Valid() {
		return "unknown"
	}
	return categoryNames[c]
}

// Valid reports whether the category is one of the known variants.
func (c Category) Valid() bool {
	return c >= 0 && int(c) < len(categoryNames)
}

// CategoryFromStored maps a stored integer back to a Category.
func CategoryFromStored(v int) (Category, error) {
	c := Category(v)
	if !c.Valid() {
		return 0, shared.WrapError("challenge", "Load", shared.ErrCorruptRecord,
			"unknown category value", shared.ErrUnknownCategory)
	}
	return c, nil
}

// ParseCategory maps a user-supplied name to a Category.
func ParseCategory(s string) (Category, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range categoryNames {
		if n == name {
			return Category(i), nil
		}
	}
	return 0, shared.NewDomainError("challenge", "Parse", shared.ErrInvalidInput,
		"unknown category name: "+name)
}

// Challenge is a named, categorized problem within a competition.
type Challenge struct {
	ID            int64
	CompetitionID int64
	Name          string
	Category      Category

	// DiscussionRef points at the platform thread where the challenge is
	// discussed. Zero when no thread has been provisioned yet; this is the
	// only field that may change after creation.
	DiscussionRef int64

	CreatedAt time.Time
}

// New validates and constructs a challenge.
func New(competitionID int64, name string, category Category) (*Challenge, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("challenge", "Create", shared.ErrEmptyValue,
			"challenge name cannot be empty")
	}
	if competitionID <= 0 {
		return nil, shared.NewDomainError("challenge", "Create", shared.ErrInvalidID,
			"competition id must be positive")
	}
	if !category.Valid() {
		return nil, shared.NewDomainError("challenge", "Create", shared.ErrInvalidInput,
			"unknown category")
	}
	return &Challenge{
		CompetitionID: competitionID,
		Name:          name,
		Category:      category,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// Competition is a time-boxed external event under which challenges are
// grouped. It is keyed by the platform channel that hosts it.
type Competition struct {
	ID         int64
	ChannelRef int64
	Name       string
	CreatedAt  time.Time
}
