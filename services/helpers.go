package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/esports-arena/models"
	"github.com/Dosada05/esports-arena/repositories"
)

// getActiveTournament возвращает ErrTournamentNotFound и для мягко удалённых турниров.
func getActiveTournament(ctx context.Context, repo repositories.TournamentRepository, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	tournament, err := repo.GetByID(ctx, exec, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", id, err)
	}
	return tournament, nil
}

// getCaptainTeam ищет команду, капитаном которой является пользователь.
func getCaptainTeam(ctx context.Context, repo repositories.TeamRepository, userID int) (*models.Team, error) {
	team, err := repo.GetByCaptainID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrNotTeamCaptain
		}
		return nil, fmt.Errorf("failed to get team of captain %d: %w", userID, err)
	}
	return team, nil
}
