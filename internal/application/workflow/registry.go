package workflow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ctf-hub/ctf-community-hub/internal/domain/challenge"
	"github.com/ctf-hub/ctf-community-hub/internal/domain/shared"
	"github.com/ctf-hub/ctf-community-hub/internal/domain/solve"
)

// Registry registers competitions and the challenges announced under them.
// Competitions are keyed by the platform channel hosting them, so a challenge
// announcement only needs to name its channel.
type Registry struct {
	store  solve.Store
	logger *slog.Logger
}

// NewRegistry wires the registry.
func NewRegistry(store solve.Store, logger *slog.Logger) *Registry {
	return &Registry{
		store:  store,
		logger: logger.With("component", "registry"),
	}
}

// RegisterCompetition records a competition for a hosting channel.
func (r *Registry) RegisterCompetition(ctx context.Context, channelRef int64, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, shared.NewDomainError("challenge", "RegisterCompetition",
			shared.ErrEmptyValue, "competition name cannot be empty")
	}
	if channelRef <= 0 {
		return 0, shared.NewDomainError("challenge", "RegisterCompetition",
			shared.ErrInvalidID, "channel ref must be positive")
	}

	id, err := r.store.CreateCompetition(ctx, &challenge.Competition{
		ChannelRef: channelRef,
		Name:       name,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return 0, err
	}

	r.logger.Info("competition registered", "competition_id", id, "channel_ref", channelRef)
	return id, nil
}

// AnnounceChallenge creates a challenge under the competition hosted by
// channelRef. The competition must already be registered.
func (r *Registry) AnnounceChallenge(ctx context.Context, channelRef int64, name, category string) (int64, error) {
	cat, err := challenge.ParseCategory(category)
	if err != nil {
		return 0, err
	}

	comp, err := r.store.CompetitionByChannel(ctx, channelRef)
	if err != nil {
		return 0, err
	}

	ch, err := challenge.New(comp.ID, name, cat)
	if err != nil {
		return 0, err
	}

	tx, err := r.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := tx.CreateChallenge(ctx, ch)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	r.logger.Info("challenge announced",
		"challenge_id", id,
		"competition_id", comp.ID,
		"category", cat.String())
	return id, nil
}
