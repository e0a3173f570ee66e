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
	ErrInviteNotFound      = errors.New("invite not found")
	ErrInviteTokenConflict = errors.New("invite token conflict")
	ErrInviteTeamInvalid   = errors.New("invite team conflict or invalid")
)

// InviteRepository хранит приглашения в команду.
type InviteRepository interface {
	// Create заполняет ID и CreatedAt; ExpiresAt выставляет сервис.
	Create(ctx context.Context, invite *models.Invite) error
	GetByToken(ctx context.Context, token string) (*models.Invite, error)
	// ListActiveByTeamID возвращает неистёкшие приглашения, новые первыми.
	ListActiveByTeamID(ctx context.Context, teamID int, now time.Time) ([]*models.Invite, error)
	Delete(ctx context.Context, exec SQLExecutor, id int) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type postgresInviteRepository struct {
	db *sql.DB
}

func NewPostgresInviteRepository(db *sql.DB) InviteRepository {
	return &postgresInviteRepository{db: db}
}

func (r *postgresInviteRepository) Create(ctx context.Context, invite *models.Invite) error {
	query := `
		INSERT INTO invites (team_id, token, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, invite.TeamID, invite.Token, invite.ExpiresAt).
		Scan(&invite.ID, &invite.CreatedAt)
	if err != nil {
		if pqErr, ok := pqError(err); ok {
			switch pqErr.Code {
			case pqUniqueViolation:
				if pqErr.Constraint == "invites_token_key" {
					return ErrInviteTokenConflict
				}
			case pqForeignKeyViolation:
				if pqErr.Constraint == "invites_team_id_fkey" {
					return ErrInviteTeamInvalid
				}
			}
		}
		return fmt.Errorf("failed to create invite: %w", err)
	}
	return nil
}

func (r *postgresInviteRepository) GetByToken(ctx context.Context, token string) (*models.Invite, error) {
	query := `
		SELECT id, team_id, token, expires_at, created_at
		FROM invites
		WHERE token = $1`

	invite := &models.Invite{}
	err := r.db.QueryRowContext(ctx, query, token).
		Scan(&invite.ID, &invite.TeamID, &invite.Token, &invite.ExpiresAt, &invite.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("failed to get invite by token: %w", err)
	}

	// Срок действия проверяет сервис.
	return invite, nil
}

func (r *postgresInviteRepository) ListActiveByTeamID(ctx context.Context, teamID int, now time.Time) ([]*models.Invite, error) {
	query := `
		SELECT id, team_id, token, expires_at, created_at
		FROM invites
		WHERE team_id = $1 AND expires_at > $2
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, teamID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	defer rows.Close()

	invites := make([]*models.Invite, 0)
	for rows.Next() {
		var invite models.Invite
		if scanErr := rows.Scan(&invite.ID, &invite.TeamID, &invite.Token, &invite.ExpiresAt, &invite.CreatedAt); scanErr != nil {
			return nil, scanErr
		}
		invites = append(invites, &invite)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return invites, nil
}

func (r *postgresInviteRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := executor(r.db, exec).ExecContext(ctx, `DELETE FROM invites WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete invite %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrInviteNotFound)
}

func (r *postgresInviteRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM invites WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired invites: %w", err)
	}
	return result.RowsAffected()
}
