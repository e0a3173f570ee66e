package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/esports-arena/models"
	"github.com/Dosada05/esports-arena/repositories"
)

type CreateTeamInput struct {
	Name      string `json:"name"`
	CaptainID int    `json:"-"`
}

type TeamService interface {
	CreateTeam(ctx context.Context, input CreateTeamInput) (*models.Team, error)
	GetTeamByID(ctx context.Context, id int) (*models.Team, error)
}

type teamService struct {
	tx       repositories.TxManager
	teamRepo repositories.TeamRepository
	logger   *slog.Logger
}

func NewTeamService(tx repositories.TxManager, teamRepo repositories.TeamRepository, logger *slog.Logger) TeamService {
	return &teamService{
		tx:       tx,
		teamRepo: teamRepo,
		logger:   logger,
	}
}

func (s *teamService) CreateTeam(ctx context.Context, input CreateTeamInput) (*models.Team, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTeamNameRequired
	}

	team := &models.Team{Name: name, CaptainID: input.CaptainID}
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		return s.teamRepo.Create(ctx, exec, team)
	})
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrTeamNameConflict):
			return nil, ErrTeamNameConflict
		case errors.Is(err, repositories.ErrTeamCaptainConflict):
			return nil, ErrAlreadyCaptain
		case errors.Is(err, repositories.ErrUserAlreadyInTeam):
			return nil, ErrUserAlreadyInTeam
		case errors.Is(err, repositories.ErrTeamCaptainInvalid):
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to create team: %w", err)
	}

	s.logger.Info("team created", slog.Int("team_id", team.ID), slog.Int("captain_id", team.CaptainID))
	return team, nil
}

func (s *teamService) GetTeamByID(ctx context.Context, id int) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team %d: %w", id, err)
	}
	return team, nil
}
