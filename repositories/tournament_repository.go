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
	ErrTournamentNotFound     = errors.New("tournament not found")
	ErrTournamentFull         = errors.New("tournament has no free slots")
	ErrTournamentInvalidOrg   = errors.New("invalid organizer reference")
	ErrTournamentInvalidInput = errors.New("tournament violates a check constraint")
)

type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	// GetByID не возвращает турниры, помеченные как удалённые.
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	SoftDelete(ctx context.Context, id int, at time.Time) error
	// DecrementFilled уменьшает счётчик занятых слотов, не опуская его ниже нуля.
	DecrementFilled(ctx context.Context, exec SQLExecutor, id int) (int, error)
	// IncrementFilled занимает слот, только если он ещё есть.
	IncrementFilled(ctx context.Context, exec SQLExecutor, id int) (int, error)
	// ReserveSlot занимает слот в обход листа ожидания: слоты под активными
	// предложениями (offer_expiry >= now) считаются занятыми.
	ReserveSlot(ctx context.Context, exec SQLExecutor, id int, now time.Time) (int, error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments (name, organizer_id, date, capacity)
		VALUES ($1, $2, $3, $4)
		RETURNING id, filled, created_at`

	err := r.db.QueryRowContext(ctx, query, t.Name, t.OrganizerID, t.Date, t.Capacity).
		Scan(&t.ID, &t.Filled, &t.CreatedAt)
	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	query := `
		SELECT id, name, organizer_id, date, capacity, filled, created_at, deleted_at
		FROM tournaments
		WHERE id = $1 AND deleted_at IS NULL`

	t := &models.Tournament{}
	err := executor(r.db, exec).QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.OrganizerID, &t.Date, &t.Capacity, &t.Filled, &t.CreatedAt, &t.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", id, err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) SoftDelete(ctx context.Context, id int, at time.Time) error {
	query := `UPDATE tournaments SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to delete tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) DecrementFilled(ctx context.Context, exec SQLExecutor, id int) (int, error) {
	query := `
		UPDATE tournaments SET filled = GREATEST(filled - 1, 0)
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING filled`

	var filled int
	err := executor(r.db, exec).QueryRowContext(ctx, query, id).Scan(&filled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrTournamentNotFound
		}
		return 0, fmt.Errorf("failed to decrement filled for tournament %d: %w", id, err)
	}
	return filled, nil
}

func (r *postgresTournamentRepository) IncrementFilled(ctx context.Context, exec SQLExecutor, id int) (int, error) {
	query := `
		UPDATE tournaments SET filled = filled + 1
		WHERE id = $1 AND deleted_at IS NULL AND filled < capacity
		RETURNING filled`

	var filled int
	err := executor(r.db, exec).QueryRowContext(ctx, query, id).Scan(&filled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrTournamentFull
		}
		return 0, fmt.Errorf("failed to increment filled for tournament %d: %w", id, err)
	}
	return filled, nil
}

func (r *postgresTournamentRepository) ReserveSlot(ctx context.Context, exec SQLExecutor, id int, now time.Time) (int, error) {
	query := `
		UPDATE tournaments t SET filled = t.filled + 1
		WHERE t.id = $1 AND t.deleted_at IS NULL
		  AND t.filled + (
		      SELECT COUNT(*) FROM waitlist_entries w
		      WHERE w.tournament_id = t.id AND w.offered AND w.offer_expiry >= $2
		  ) < t.capacity
		RETURNING t.filled`

	var filled int
	err := executor(r.db, exec).QueryRowContext(ctx, query, id, now).Scan(&filled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrTournamentFull
		}
		return 0, fmt.Errorf("failed to reserve slot for tournament %d: %w", id, err)
	}
	return filled, nil
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := pqError(err); ok {
		switch pqErr.Code {
		case pqForeignKeyViolation:
			if pqErr.Constraint == "tournaments_organizer_id_fkey" {
				return ErrTournamentInvalidOrg
			}
		case pqCheckViolation:
			return ErrTournamentInvalidInput
		}
	}
	return fmt.Errorf("tournament query failed: %w", err)
}
