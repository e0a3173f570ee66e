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
	ErrWaitlistEntryNotFound    = errors.New("waitlist entry not found")
	ErrWaitlistConflict         = errors.New("team is already on the waitlist for this tournament")
	ErrWaitlistReferenceInvalid = errors.New("waitlist tournament or team reference invalid")

	// ErrWaitlistEmpty - в листе ожидания не осталось команд без предложения.
	ErrWaitlistEmpty = errors.New("no unoffered waitlist entries")
)

type WaitlistRepository interface {
	// Add ставит команду в конец листа ожидания турнира. Без exec открывает свою транзакцию.
	Add(ctx context.Context, exec SQLExecutor, tournamentID, teamID int) (*models.WaitlistEntry, error)
	GetByTournamentAndTeam(ctx context.Context, exec SQLExecutor, tournamentID, teamID int) (*models.WaitlistEntry, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.WaitlistEntry, error)
	// ClaimNext атомарно помечает запись с минимальной позицией среди непредложенных
	// как предложенную. Одна и та же запись не может быть выдана дважды.
	ClaimNext(ctx context.Context, exec SQLExecutor, tournamentID int, offerExpiry time.Time) (*models.WaitlistEntry, error)
	Delete(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresWaitlistRepository struct {
	db *sql.DB
}

func NewPostgresWaitlistRepository(db *sql.DB) WaitlistRepository {
	return &postgresWaitlistRepository{db: db}
}

const waitlistColumns = `id, tournament_id, team_id, position, offered, offer_expiry, created_at`

func scanWaitlistEntry(s rowScanner, e *models.WaitlistEntry) error {
	return s.Scan(&e.ID, &e.TournamentID, &e.TeamID, &e.Position, &e.Offered, &e.OfferExpiry, &e.CreatedAt)
}

func (r *postgresWaitlistRepository) Add(ctx context.Context, exec SQLExecutor, tournamentID, teamID int) (*models.WaitlistEntry, error) {
	if exec == nil {
		var entry *models.WaitlistEntry
		err := NewTxManager(r.db).WithinTx(ctx, func(tx SQLExecutor) error {
			var err error
			entry, err = r.Add(ctx, tx, tournamentID, teamID)
			return err
		})
		return entry, err
	}

	// Блокировка строки турнира сериализует вычисление MAX(position):
	// INSERT идёт отдельным запросом и видит записи, закоммиченные до получения блокировки.
	var locked int
	err := exec.QueryRowContext(ctx,
		`SELECT id FROM tournaments WHERE id = $1 FOR NO KEY UPDATE`, tournamentID).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWaitlistReferenceInvalid
		}
		return nil, fmt.Errorf("failed to lock tournament %d: %w", tournamentID, err)
	}

	query := `
		INSERT INTO waitlist_entries (tournament_id, team_id, position)
		SELECT $1, $2, COALESCE(MAX(position), 0) + 1
		FROM waitlist_entries
		WHERE tournament_id = $1
		RETURNING ` + waitlistColumns

	e := &models.WaitlistEntry{}
	err = scanWaitlistEntry(exec.QueryRowContext(ctx, query, tournamentID, teamID), e)
	if err != nil {
		if pqErr, ok := pqError(err); ok {
			switch pqErr.Code {
			case pqUniqueViolation:
				if pqErr.Constraint == "waitlist_entries_tournament_id_team_id_key" {
					return nil, ErrWaitlistConflict
				}
			case pqForeignKeyViolation:
				return nil, ErrWaitlistReferenceInvalid
			}
		}
		return nil, fmt.Errorf("failed to add waitlist entry: %w", err)
	}
	return e, nil
}

func (r *postgresWaitlistRepository) GetByTournamentAndTeam(ctx context.Context, exec SQLExecutor, tournamentID, teamID int) (*models.WaitlistEntry, error) {
	query := `SELECT ` + waitlistColumns + ` FROM waitlist_entries WHERE tournament_id = $1 AND team_id = $2`

	e := &models.WaitlistEntry{}
	if err := scanWaitlistEntry(executor(r.db, exec).QueryRowContext(ctx, query, tournamentID, teamID), e); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWaitlistEntryNotFound
		}
		return nil, fmt.Errorf("failed to get waitlist entry: %w", err)
	}
	return e, nil
}

func (r *postgresWaitlistRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.WaitlistEntry, error) {
	query := `SELECT ` + waitlistColumns + ` FROM waitlist_entries WHERE tournament_id = $1 ORDER BY position ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list waitlist: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.WaitlistEntry, 0)
	for rows.Next() {
		var e models.WaitlistEntry
		if err := scanWaitlistEntry(rows, &e); err != nil {
			return nil, fmt.Errorf("failed to scan waitlist row: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating waitlist rows: %w", err)
	}
	return entries, nil
}

func (r *postgresWaitlistRepository) ClaimNext(ctx context.Context, exec SQLExecutor, tournamentID int, offerExpiry time.Time) (*models.WaitlistEntry, error) {
	// SKIP LOCKED: параллельная транзакция, уже забравшая строку, не блокирует нас,
	// а мы берём следующую. Повторная проверка offered = FALSE во внешнем WHERE
	// защищает от выдачи одной записи дважды.
	query := `
		UPDATE waitlist_entries SET offered = TRUE, offer_expiry = $2
		WHERE id = (
			SELECT id FROM waitlist_entries
			WHERE tournament_id = $1 AND offered = FALSE
			ORDER BY position ASC, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		) AND offered = FALSE
		RETURNING ` + waitlistColumns

	e := &models.WaitlistEntry{}
	if err := scanWaitlistEntry(executor(r.db, exec).QueryRowContext(ctx, query, tournamentID, offerExpiry), e); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWaitlistEmpty
		}
		return nil, fmt.Errorf("failed to claim waitlist entry for tournament %d: %w", tournamentID, err)
	}
	return e, nil
}

func (r *postgresWaitlistRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := executor(r.db, exec).ExecContext(ctx, `DELETE FROM waitlist_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete waitlist entry %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrWaitlistEntryNotFound)
}
