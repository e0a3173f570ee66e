package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/esports-arena/clock"
	"github.com/Dosada05/esports-arena/metrics"
	"github.com/Dosada05/esports-arena/models"
	"github.com/Dosada05/esports-arena/repositories"
)

type CreateTournamentInput struct {
	Name     string    `json:"name"`
	Date     time.Time `json:"date"`
	Capacity int       `json:"capacity"`
}

type TournamentService interface {
	CreateTournament(ctx context.Context, input CreateTournamentInput, organizerID int) (*models.Tournament, error)
	GetTournament(ctx context.Context, id int) (*models.Tournament, error)
	DeleteTournament(ctx context.Context, id, currentUserID int, role models.UserRole) error
	// Withdraw снимает команду капитана с турнира и возвращает итоговый статус заявки.
	Withdraw(ctx context.Context, tournamentID, currentUserID int) (models.RegistrationStatus, error)
}

type TournamentServiceDeps struct {
	Tx               repositories.TxManager
	TournamentRepo   repositories.TournamentRepository
	TeamRepo         repositories.TeamRepository
	RegistrationRepo repositories.RegistrationRepository
	Waitlist         WaitlistService
	Clock            clock.Clock
	Metrics          *metrics.Metrics
	Logger           *slog.Logger
}

type tournamentService struct {
	TournamentServiceDeps
	policy WithdrawalPolicy
}

func NewTournamentService(deps TournamentServiceDeps, policy WithdrawalPolicy) TournamentService {
	return &tournamentService{
		TournamentServiceDeps: deps,
		policy:                policy,
	}
}

func (s *tournamentService) CreateTournament(ctx context.Context, input CreateTournamentInput, organizerID int) (*models.Tournament, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTournamentNameRequired
	}
	if input.Date.IsZero() {
		return nil, ErrTournamentDateRequired
	}
	if input.Capacity <= 0 {
		return nil, ErrTournamentInvalidCapacity
	}

	tournament := &models.Tournament{
		Name:        name,
		OrganizerID: organizerID,
		Date:        input.Date.UTC(),
		Capacity:    input.Capacity,
	}
	if err := s.TournamentRepo.Create(ctx, tournament); err != nil {
		switch {
		case errors.Is(err, repositories.ErrTournamentInvalidOrg):
			return nil, ErrUserNotFound
		case errors.Is(err, repositories.ErrTournamentInvalidInput):
			return nil, ErrTournamentInvalidCapacity
		}
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}

	s.Logger.Info("tournament created",
		slog.Int("tournament_id", tournament.ID),
		slog.Int("organizer_id", organizerID))
	return tournament, nil
}

func (s *tournamentService) GetTournament(ctx context.Context, id int) (*models.Tournament, error) {
	return getActiveTournament(ctx, s.TournamentRepo, nil, id)
}

func (s *tournamentService) DeleteTournament(ctx context.Context, id, currentUserID int, role models.UserRole) error {
	tournament, err := getActiveTournament(ctx, s.TournamentRepo, nil, id)
	if err != nil {
		return err
	}
	if role != models.RoleAdmin && tournament.OrganizerID != currentUserID {
		return ErrNotOrganizer
	}

	if err := s.TournamentRepo.SoftDelete(ctx, id, s.Clock.Now()); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return ErrTournamentNotFound
		}
		return fmt.Errorf("failed to delete tournament %d: %w", id, err)
	}
	return nil
}

func (s *tournamentService) Withdraw(ctx context.Context, tournamentID, currentUserID int) (models.RegistrationStatus, error) {
	now := s.Clock.Now()

	tournament, err := getActiveTournament(ctx, s.TournamentRepo, nil, tournamentID)
	if err != nil {
		return "", err
	}
	team, err := getCaptainTeam(ctx, s.TeamRepo, currentUserID)
	if err != nil {
		return "", err
	}
	reg, err := s.RegistrationRepo.GetByTournamentAndTeam(ctx, nil, tournamentID, team.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrRegistrationNotFound) {
			return "", ErrRegistrationNotFound
		}
		return "", fmt.Errorf("failed to get registration of team %d: %w", team.ID, err)
	}

	outcome, err := s.policy.Evaluate(tournament, reg, now)
	if err != nil {
		return "", err
	}

	// Смена статуса и освобождение места - одна транзакция.
	err = s.Tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.RegistrationRepo.TransitionStatus(ctx, exec, reg.ID, models.RegistrationApproved, outcome, now); err != nil {
			if errors.Is(err, repositories.ErrRegistrationStatusChanged) {
				return ErrRegistrationNotApproved
			}
			return err
		}
		if _, err := s.TournamentRepo.DecrementFilled(ctx, exec, tournamentID); err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.Metrics.ObserveWithdrawal(outcome)
	s.Logger.Info("team withdrawn from tournament",
		slog.Int("tournament_id", tournamentID),
		slog.Int("team_id", team.ID),
		slog.String("status", string(outcome)))

	// Снятие уже зафиксировано; ошибка продвижения очереди его не отменяет.
	if _, err := s.Waitlist.PromoteNext(ctx, tournamentID, now); err != nil {
		s.Logger.Warn("waitlist promotion failed after withdrawal",
			slog.Int("tournament_id", tournamentID),
			slog.Any("error", err))
	}

	return outcome, nil
}
