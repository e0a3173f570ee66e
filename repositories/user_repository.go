package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/esports-arena/models"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserEmailConflict = errors.New("user email conflict")
	ErrUserTeamInvalid   = errors.New("user team conflict or invalid")
	ErrUserAlreadyInTeam = errors.New("user already belongs to a team")
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int) (*models.User, error)
	// JoinTeam привязывает пользователя к команде, только если он ещё ни в какой не состоит.
	JoinTeam(ctx context.Context, exec SQLExecutor, userID, teamID int) error
}

type postgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

func (r *postgresUserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (nickname, email, role)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, user.Nickname, user.Email, user.Role).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if pqErr, ok := pqError(err); ok && pqErr.Code == pqUniqueViolation && pqErr.Constraint == "users_email_key" {
			return ErrUserEmailConflict
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *postgresUserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	query := `SELECT id, nickname, email, role, team_id, created_at FROM users WHERE id = $1`

	u := &models.User{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&u.ID, &u.Nickname, &u.Email, &u.Role, &u.TeamID, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return u, nil
}

func (r *postgresUserRepository) JoinTeam(ctx context.Context, exec SQLExecutor, userID, teamID int) error {
	query := `UPDATE users SET team_id = $1 WHERE id = $2 AND team_id IS NULL`

	result, err := executor(r.db, exec).ExecContext(ctx, query, teamID, userID)
	if err != nil {
		if pqErr, ok := pqError(err); ok && pqErr.Code == pqForeignKeyViolation {
			return ErrUserTeamInvalid
		}
		return fmt.Errorf("failed to set team for user %d: %w", userID, err)
	}
	return checkAffectedRows(result, ErrUserAlreadyInTeam)
}
