package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/esports-arena/models"
)

var (
	ErrRegistrationNotFound         = errors.New("registration not found")
	ErrRegistrationConflict         = errors.New("team is already registered for this tournament")
	ErrRegistrationReferenceInvalid = errors.New("registration tournament or team reference invalid")
	ErrRegistrationStatusChanged    = errors.New("registration status changed concurrently")
)

type RegistrationRepository interface {
	Create(ctx context.Context, exec SQLExecutor, reg *models.TournamentRegistration) error
	GetByID(ctx context.Context, id int) (*models.TournamentRegistration, error)
	GetByTournamentAndTeam(ctx context.Context, exec SQLExecutor, tournamentID, teamID int) (*models.TournamentRegistration, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.TournamentRegistration, error)
	// TransitionStatus меняет статус только если текущий равен from (compare-and-set).
	TransitionStatus(ctx context.Context, exec SQLExecutor, id int, from, to models.RegistrationStatus, at time.Time) error
}

type postgresRegistrationRepository struct {
	db *sql.DB
}

func NewPostgresRegistrationRepository(db *sql.DB) RegistrationRepository {
	return &postgresRegistrationRepository{db: db}
}

const registrationColumns = `id, tournament_id, team_id, status, created_at, updated_at`

func scanRegistration(s rowScanner, reg *models.TournamentRegistration) error {
	return s.Scan(&reg.ID, &reg.TournamentID, &reg.TeamID, &reg.Status, &reg.CreatedAt, &reg.UpdatedAt)
}

func (r *postgresRegistrationRepository) Create(ctx context.Context, exec SQLExecutor, reg *models.TournamentRegistration) error {
	query := `
		INSERT INTO tournament_registrations (tournament_id, team_id, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`

	err := executor(r.db, exec).QueryRowContext(ctx, query, reg.TournamentID, reg.TeamID, reg.Status).
		Scan(&reg.ID, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		if pqErr, ok := pqError(err); ok {
			switch pqErr.Code {
			case pqUniqueViolation:
				if pqErr.Constraint == "tournament_registrations_tournament_id_team_id_key" {
					return ErrRegistrationConflict
				}
			case pqForeignKeyViolation:
				return ErrRegistrationReferenceInvalid
			}
		}
		return fmt.Errorf("failed to create registration: %w", err)
	}
	return nil
}

func (r *postgresRegistrationRepository) GetByID(ctx context.Context, id int) (*models.TournamentRegistration, error) {
	query := `SELECT ` + registrationColumns + ` FROM tournament_registrations WHERE id = $1`
	return r.findOne(ctx, r.db, query, id)
}

func (r *postgresRegistrationRepository) GetByTournamentAndTeam(ctx context.Context, exec SQLExecutor, tournamentID, teamID int) (*models.TournamentRegistration, error) {
	query := `SELECT ` + registrationColumns + ` FROM tournament_registrations WHERE tournament_id = $1 AND team_id = $2`
	return r.findOne(ctx, executor(r.db, exec), query, tournamentID, teamID)
}

func (r *postgresRegistrationRepository) findOne(ctx context.Context, ex SQLExecutor, query string, args ...interface{}) (*models.TournamentRegistration, error) {
	reg := &models.TournamentRegistration{}
	if err := scanRegistration(ex.QueryRowContext(ctx, query, args...), reg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to find registration: %w", err)
	}
	return reg, nil
}

func (r *postgresRegistrationRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.TournamentRegistration, error) {
	query := `SELECT ` + registrationColumns + ` FROM tournament_registrations WHERE tournament_id = $1 ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	defer rows.Close()

	regs := make([]*models.TournamentRegistration, 0)
	for rows.Next() {
		var reg models.TournamentRegistration
		if err := scanRegistration(rows, &reg); err != nil {
			return nil, fmt.Errorf("failed to scan registration row: %w", err)
		}
		regs = append(regs, &reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating registration rows: %w", err)
	}
	return regs, nil
}

func (r *postgresRegistrationRepository) TransitionStatus(ctx context.Context, exec SQLExecutor, id int, from, to models.RegistrationStatus, at time.Time) error {
	query := `
		UPDATE tournament_registrations SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4`

	result, err := executor(r.db, exec).ExecContext(ctx, query, to, at, id, from)
	if err != nil {
		return fmt.Errorf("failed to update registration %d status: %w", id, err)
	}
	return checkAffectedRows(result, ErrRegistrationStatusChanged)
}
