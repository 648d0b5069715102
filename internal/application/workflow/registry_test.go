package workflow

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctf-hub/ctf-community-hub/internal/domain/challenge"
	"github.com/ctf-hub/ctf-community-hub/internal/domain/shared"
)

func newRegistryHarness(t *testing.T) (*Registry, *fakeStore) {
	t.Helper()
	var log []string
	store := newFakeStore(&log)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRegistry(store, logger), store
}

func TestRegisterCompetition(t *testing.T) {
	reg, store := newRegistryHarness(t)

	id, err := reg.RegisterCompetition(context.Background(), 777, "hubCTF 2026")
	require.NoError(t, err)
	require.NotZero(t, id)

	comp, err := store.CompetitionByChannel(context.Background(), 777)
	require.NoError(t, err)
	assert.Equal(t, id, comp.ID)
	assert.Equal(t, "hubCTF 2026", comp.Name)
}

func TestRegisterCompetitionValidation(t *testing.T) {
	reg, _ := newRegistryHarness(t)

	_, err := reg.RegisterCompetition(context.Background(), 777, "   ")
	assert.True(t, shared.IsValidation(err))

	_, err = reg.RegisterCompetition(context.Background(), 0, "hubCTF")
	assert.True(t, shared.IsValidation(err))
}

func TestAnnounceChallenge(t *testing.T) {
	reg, store := newRegistryHarness(t)
	compID, err := reg.RegisterCompetition(context.Background(), 777, "hubCTF 2026")
	require.NoError(t, err)

	id, err := reg.AnnounceChallenge(context.Background(), 777, "baby-rop", "pwn")
	require.NoError(t, err)

	ch := store.challenges[id]
	require.NotNil(t, ch)
	assert.Equal(t, compID, ch.CompetitionID)
	assert.Equal(t, challenge.CategoryPwn, ch.Category)
}

func TestAnnounceChallengeUnknownCompetition(t *testing.T) {
	reg, _ := newRegistryHarness(t)

	_, err := reg.AnnounceChallenge(context.Background(), 12345, "baby-rop", "pwn")
	assert.True(t, shared.IsConstraintViolation(err))
}

func TestAnnounceChallengeUnknownCategory(t *testing.T) {
	reg, _ := newRegistryHarness(t)
	_, err := reg.RegisterCompetition(context.Background(), 777, "hubCTF 2026")
	require.NoError(t, err)

	_, err = reg.AnnounceChallenge(context.Background(), 777, "baby-rop", "quantum")
	assert.True(t, shared.IsValidation(err))
}
