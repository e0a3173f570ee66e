package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/esports-arena/models"
)

func TestRegister(t *testing.T) {
	env := newTestEnv(tournamentStart.Add(-7 * 24 * time.Hour))
	organizer := env.store.addUser(models.RoleOrganizer)
	captain := env.store.addUser(models.RolePlayer)
	env.store.addTeam("Rookies", captain)
	tournament := env.store.addTournament(organizer.ID, tournamentStart, 8, 0)
	ctx := context.Background()

	reg, err := env.registrations.Register(ctx, tournament.ID, captain.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationPending, reg.Status)

	_, err = env.registrations.Register(ctx, tournament.ID, captain.ID)
	assert.ErrorIs(t, err, ErrRegistrationConflict)

	regs, err := env.registrations.ListByTournament(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Len(t, regs, 1)

	_, err = env.registrations.Register(ctx, 424242, captain.ID)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestUpdateStatus_ApproveIncrementsFilledAndNotifies(t *testing.T) {
	env := newTestEnv(tournamentStart.Add(-7 * 24 * time.Hour))
	organizer := env.store.addUser(models.RoleOrganizer)
	captain := env.store.addUser(models.RolePlayer)
	team := env.store.addTeam("Rookies", captain)
	tournament := env.store.addTournament(organizer.ID, tournamentStart, 8, 2)
	reg := env.store.addRegistration(tournament.ID, team.ID, models.RegistrationPending)

	updated, err := env.registrations.UpdateStatus(context.Background(), reg.ID, models.RegistrationApproved, organizer.ID, models.RoleOrganizer)
	require.NoError(t, err)

	assert.Equal(t, models.RegistrationApproved, updated.Status)
	assert.Equal(t, models.RegistrationApproved, env.store.registration(reg.ID).Status)
	assert.Equal(t, 3, env.store.tournament(tournament.ID).Filled)

	notes := env.store.notificationsFor(captain.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationRegistrationStatus, notes[0].Type)
	assert.Len(t, env.publisher.published(), 1)
}

func TestUpdateStatus_Rejections(t *testing.T) {
	ctx := context.Background()

	setup := func(status models.RegistrationStatus, capacity, filled int) (*testEnv, *models.User, *models.TournamentRegistration) {
		env := newTestEnv(tournamentStart.Add(-7 * 24 * time.Hour))
		organizer := env.store.addUser(models.RoleOrganizer)
		captain := env.store.addUser(models.RolePlayer)
		team := env.store.addTeam("Rookies", captain)
		tournament := env.store.addTournament(organizer.ID, tournamentStart, capacity, filled)
		return env, organizer, env.store.addRegistration(tournament.ID, team.ID, status)
	}

	t.Run("tournament full rolls back", func(t *testing.T) {
		env, organizer, reg := setup(models.RegistrationPending, 2, 2)
		_, err := env.registrations.UpdateStatus(ctx, reg.ID, models.RegistrationApproved, organizer.ID, models.RoleOrganizer)
		assert.ErrorIs(t, err, ErrTournamentFull)
		assert.Equal(t, models.RegistrationPending, env.store.registration(reg.ID).Status)
		assert.Zero(t, env.store.notificationCount())
	})

	t.Run("not the organizer", func(t *testing.T) {
		env, _, reg := setup(models.RegistrationPending, 8, 0)
		other := env.store.addUser(models.RoleOrganizer)
		_, err := env.registrations.UpdateStatus(ctx, reg.ID, models.RegistrationApproved, other.ID, models.RoleOrganizer)
		assert.ErrorIs(t, err, ErrNotOrganizer)
	})

	t.Run("admin may decide", func(t *testing.T) {
		env, _, reg := setup(models.RegistrationPending, 8, 0)
		admin := env.store.addUser(models.RoleAdmin)
		updated, err := env.registrations.UpdateStatus(ctx, reg.ID, models.RegistrationRejected, admin.ID, models.RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, models.RegistrationRejected, updated.Status)
	})

	t.Run("withdrawal is not an organizer decision", func(t *testing.T) {
		env, organizer, reg := setup(models.RegistrationApproved, 8, 1)
		_, err := env.registrations.UpdateStatus(ctx, reg.ID, models.RegistrationWithdrawn, organizer.ID, models.RoleOrganizer)
		assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	})

	t.Run("no way back from rejected", func(t *testing.T) {
		env, organizer, reg := setup(models.RegistrationRejected, 8, 0)
		_, err := env.registrations.UpdateStatus(ctx, reg.ID, models.RegistrationApproved, organizer.ID, models.RoleOrganizer)
		assert.ErrorIs(t, err, ErrInvalidStatusTransition)
		assert.Equal(t, 0, env.store.tournament(reg.TournamentID).Filled)
	})

	t.Run("unknown status", func(t *testing.T) {
		env, organizer, reg := setup(models.RegistrationPending, 8, 0)
		_, err := env.registrations.UpdateStatus(ctx, reg.ID, models.RegistrationStatus("CANCELLED"), organizer.ID, models.RoleOrganizer)
		assert.ErrorIs(t, err, ErrInvalidStatus)
		assert.Equal(t, KindValidation, KindOf(err))
	})

	t.Run("unknown registration", func(t *testing.T) {
		env, organizer, _ := setup(models.RegistrationPending, 8, 0)
		_, err := env.registrations.UpdateStatus(ctx, 777, models.RegistrationApproved, organizer.ID, models.RoleOrganizer)
		assert.ErrorIs(t, err, ErrRegistrationNotFound)
	})
}
