package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/esports-arena/models"
)

var (
	ErrTeamNotFound        = errors.New("team not found")
	ErrTeamNameConflict    = errors.New("team name conflict")
	ErrTeamCaptainConflict = errors.New("user already captains a team")
	ErrTeamCaptainInvalid  = errors.New("team captain reference invalid")
)

type TeamRepository interface {
	// Create создаёт команду и сразу делает капитана её участником.
	Create(ctx context.Context, exec SQLExecutor, team *models.Team) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Team, error)
	GetByCaptainID(ctx context.Context, captainID int) (*models.Team, error)
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

func (r *postgresTeamRepository) Create(ctx context.Context, exec SQLExecutor, team *models.Team) error {
	ex := executor(r.db, exec)
	query := `
		INSERT INTO teams (name, captain_id)
		VALUES ($1, $2)
		RETURNING id, created_at`

	err := ex.QueryRowContext(ctx, query, team.Name, team.CaptainID).Scan(&team.ID, &team.CreatedAt)
	if err != nil {
		if pqErr, ok := pqError(err); ok {
			switch pqErr.Code {
			case pqUniqueViolation:
				switch pqErr.Constraint {
				case "teams_name_key":
					return ErrTeamNameConflict
				case "teams_captain_id_key":
					return ErrTeamCaptainConflict
				}
			case pqForeignKeyViolation:
				return ErrTeamCaptainInvalid
			}
		}
		return fmt.Errorf("failed to create team: %w", err)
	}

	result, err := ex.ExecContext(ctx, `UPDATE users SET team_id = $1 WHERE id = $2 AND team_id IS NULL`, team.ID, team.CaptainID)
	if err != nil {
		return fmt.Errorf("failed to attach captain %d to team %d: %w", team.CaptainID, team.ID, err)
	}
	return checkAffectedRows(result, ErrUserAlreadyInTeam)
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Team, error) {
	query := `SELECT id, name, captain_id, created_at FROM teams WHERE id = $1`
	return r.findOne(ctx, executor(r.db, exec), query, id)
}

func (r *postgresTeamRepository) GetByCaptainID(ctx context.Context, captainID int) (*models.Team, error) {
	query := `SELECT id, name, captain_id, created_at FROM teams WHERE captain_id = $1`
	return r.findOne(ctx, r.db, query, captainID)
}

func (r *postgresTeamRepository) findOne(ctx context.Context, ex SQLExecutor, query string, args ...interface{}) (*models.Team, error) {
	t := &models.Team{}
	err := ex.QueryRowContext(ctx, query, args...).Scan(&t.ID, &t.Name, &t.CaptainID, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to find team: %w", err)
	}
	return t, nil
}
