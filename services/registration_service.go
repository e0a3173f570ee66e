package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/esports-arena/clock"
	"github.com/Dosada05/esports-arena/models"
	"github.com/Dosada05/esports-arena/repositories"
)

type RegistrationService interface {
	Register(ctx context.Context, tournamentID, currentUserID int) (*models.TournamentRegistration, error)
	// UpdateStatus - решение организатора по заявке (PENDING -> APPROVED | REJECTED).
	UpdateStatus(ctx context.Context, registrationID int, status models.RegistrationStatus, currentUserID int, role models.UserRole) (*models.TournamentRegistration, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.TournamentRegistration, error)
}

type RegistrationServiceDeps struct {
	Tx               repositories.TxManager
	TournamentRepo   repositories.TournamentRepository
	TeamRepo         repositories.TeamRepository
	RegistrationRepo repositories.RegistrationRepository
	Notifications    NotificationService
	Clock            clock.Clock
	Logger           *slog.Logger
}

type registrationService struct {
	RegistrationServiceDeps
	publicURL string
}

func NewRegistrationService(deps RegistrationServiceDeps, publicURL string) RegistrationService {
	return &registrationService{
		RegistrationServiceDeps: deps,
		publicURL:               strings.TrimRight(publicURL, "/"),
	}
}

func (s *registrationService) Register(ctx context.Context, tournamentID, currentUserID int) (*models.TournamentRegistration, error) {
	if _, err := getActiveTournament(ctx, s.TournamentRepo, nil, tournamentID); err != nil {
		return nil, err
	}
	team, err := getCaptainTeam(ctx, s.TeamRepo, currentUserID)
	if err != nil {
		return nil, err
	}

	reg := &models.TournamentRegistration{
		TournamentID: tournamentID,
		TeamID:       team.ID,
		Status:       models.RegistrationPending,
	}
	if err := s.RegistrationRepo.Create(ctx, nil, reg); err != nil {
		switch {
		case errors.Is(err, repositories.ErrRegistrationConflict):
			return nil, ErrRegistrationConflict
		case errors.Is(err, repositories.ErrRegistrationReferenceInvalid):
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to register team %d: %w", team.ID, err)
	}
	return reg, nil
}

func (s *registrationService) UpdateStatus(ctx context.Context, registrationID int, status models.RegistrationStatus, currentUserID int, role models.UserRole) (*models.TournamentRegistration, error) {
	if !status.IsValid() {
		return nil, ErrInvalidStatus
	}
	// Снятие и неявка проходят только через Withdraw.
	if status != models.RegistrationApproved && status != models.RegistrationRejected {
		return nil, ErrInvalidStatusTransition
	}

	reg, err := s.RegistrationRepo.GetByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, repositories.ErrRegistrationNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to get registration %d: %w", registrationID, err)
	}
	tournament, err := getActiveTournament(ctx, s.TournamentRepo, nil, reg.TournamentID)
	if err != nil {
		return nil, err
	}
	if role != models.RoleAdmin && tournament.OrganizerID != currentUserID {
		return nil, ErrNotOrganizer
	}
	if !isValidRegistrationTransition(reg.Status, status) {
		return nil, ErrInvalidStatusTransition
	}

	now := s.Clock.Now()
	var notification *models.Notification
	err = s.Tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.RegistrationRepo.TransitionStatus(ctx, exec, reg.ID, reg.Status, status, now); err != nil {
			if errors.Is(err, repositories.ErrRegistrationStatusChanged) {
				return ErrInvalidStatusTransition
			}
			return err
		}
		if status == models.RegistrationApproved {
			if _, err := s.TournamentRepo.ReserveSlot(ctx, exec, tournament.ID, now); err != nil {
				if errors.Is(err, repositories.ErrTournamentFull) {
					return ErrTournamentFull
				}
				return err
			}
		}

		team, err := s.TeamRepo.GetByID(ctx, exec, reg.TeamID)
		if err != nil {
			return fmt.Errorf("failed to get team %d: %w", reg.TeamID, err)
		}
		link := fmt.Sprintf("%s/tournaments/%d", s.publicURL, tournament.ID)
		notification = &models.Notification{
			UserID:  team.CaptainID,
			Type:    models.NotificationRegistrationStatus,
			Title:   fmt.Sprintf("Registration %s", strings.ToLower(string(status))),
			Message: fmt.Sprintf("Registration of team %s for tournament %q is now %s.", team.Name, tournament.Name, status),
			LinkURL: &link,
		}
		return s.Notifications.Create(ctx, exec, notification)
	})
	if err != nil {
		return nil, err
	}

	s.Notifications.Publish(notification)
	s.Logger.Info("registration status updated",
		slog.Int("registration_id", reg.ID),
		slog.String("from", string(reg.Status)),
		slog.String("to", string(status)))

	reg.Status = status
	reg.UpdatedAt = now
	return reg, nil
}

func (s *registrationService) ListByTournament(ctx context.Context, tournamentID int) ([]*models.TournamentRegistration, error) {
	if _, err := getActiveTournament(ctx, s.TournamentRepo, nil, tournamentID); err != nil {
		return nil, err
	}
	regs, err := s.RegistrationRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations of tournament %d: %w", tournamentID, err)
	}
	return regs, nil
}
