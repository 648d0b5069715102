package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ctf-hub/ctf-community-hub/internal/domain/user"
)

// Ladder is the immutable rank ladder configuration. Rank names are ordered
// ascending: index 0 is the lowest rank, the last entry is the top rank.
// Award amounts are stored in tenths of a point, matching the ledger.
type Ladder struct {
	RankNames          []string
	SolveAwardTenths   int64
	MessageAwardTenths int64
}

// ladderFile is the on-disk YAML shape. Awards are written as plain point
// values (e.g. 100, 0.1) and converted to tenths on load.
type ladderFile struct {
	RankNames        []string `yaml:"rank_names"`
	PointsPerSolve   float64  `yaml:"points_per_solve"`
	PointsPerMessage float64  `yaml:"points_per_message"`
}

// LoadLadder reads and validates the ladder file at path.
func LoadLadder(path string) (*Ladder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseLadder(data)
}

// ParseLadder decodes and validates YAML ladder configuration.
func ParseLadder(data []byte) (*Ladder, error) {
	var f ladderFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse ladder config: %w", err)
	}

	l := &Ladder{
		RankNames:          f.RankNames,
		SolveAwardTenths:   user.TenthsFromPoints(f.PointsPerSolve),
		MessageAwardTenths: user.TenthsFromPoints(f.PointsPerMessage),
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// Validate checks the ladder is usable.
func (l *Ladder) Validate() error {
	if len(l.RankNames) == 0 {
		return fmt.Errorf("ladder config: rank_names must list at least one rank")
	}
	for i, name := range l.RankNames {
		if name == "" {
			return fmt.Errorf("ladder config: rank_names[%d] is empty", i)
		}
	}
	if l.SolveAwardTenths <= 0 {
		return fmt.Errorf("ladder config: points_per_solve must be positive")
	}
	if l.MessageAwardTenths < 0 {
		return fmt.Errorf("ladder config: points_per_message cannot be negative")
	}
	return nil
}

// RankCount returns the number of configured ranks.
func (l *Ladder) RankCount() int {
	return len(l.RankNames)
}
