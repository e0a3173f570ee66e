package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTournamentRepository_FilledCounterBounds(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	repo := NewPostgresTournamentRepository(db)

	tournament := seedTournament(t, db, 1)
	assert.Equal(t, 0, tournament.Filled)

	filled, err := repo.IncrementFilled(ctx, nil, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, filled)

	_, err = repo.IncrementFilled(ctx, nil, tournament.ID)
	assert.ErrorIs(t, err, ErrTournamentFull)

	filled, err = repo.DecrementFilled(ctx, nil, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, filled)

	filled, err = repo.DecrementFilled(ctx, nil, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, filled, "filled must never go negative")
}

func TestTournamentRepository_ReserveSlotRespectsActiveOffers(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	repo := NewPostgresTournamentRepository(db)
	waitlist := NewPostgresWaitlistRepository(db)
	now := time.Now().UTC().Truncate(time.Second)

	tournament := seedTournament(t, db, 2)
	standby := seedTeam(t, db, "Standby")
	_, err := repo.IncrementFilled(ctx, nil, tournament.ID)
	require.NoError(t, err)
	_, err = waitlist.Add(ctx, nil, tournament.ID, standby.ID)
	require.NoError(t, err)
	_, err = waitlist.ClaimNext(ctx, nil, tournament.ID, now.Add(24*time.Hour))
	require.NoError(t, err)

	_, err = repo.ReserveSlot(ctx, nil, tournament.ID, now)
	assert.ErrorIs(t, err, ErrTournamentFull, "the free slot is held by an active offer")

	filled, err := repo.ReserveSlot(ctx, nil, tournament.ID, now.Add(25*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, filled, "an expired offer no longer holds the slot")
}

func TestTournamentRepository_SoftDeletedIsNotFound(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	repo := NewPostgresTournamentRepository(db)

	tournament := seedTournament(t, db, 8)

	got, err := repo.GetByID(ctx, nil, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, tournament.Name, got.Name)
	assert.True(t, tournament.Date.Equal(got.Date))

	require.NoError(t, repo.SoftDelete(ctx, tournament.ID, time.Now()))

	_, err = repo.GetByID(ctx, nil, tournament.ID)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
	assert.ErrorIs(t, repo.SoftDelete(ctx, tournament.ID, time.Now()), ErrTournamentNotFound)

	_, err = repo.DecrementFilled(ctx, nil, tournament.ID)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestTxManager_RollsBackOnError(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	repo := NewPostgresTournamentRepository(db)
	tournament := seedTournament(t, db, 3)

	err := NewTxManager(db).WithinTx(ctx, func(exec SQLExecutor) error {
		if _, err := repo.IncrementFilled(ctx, exec, tournament.ID); err != nil {
			return err
		}
		return ErrTournamentFull
	})
	assert.ErrorIs(t, err, ErrTournamentFull)

	got, err := repo.GetByID(ctx, nil, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Filled)
}
