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
	ErrNotificationNotFound    = errors.New("notification not found")
	ErrNotificationUserInvalid = errors.New("notification recipient invalid")
)

type NotificationRepository interface {
	Create(ctx context.Context, exec SQLExecutor, n *models.Notification) error
	ListByUser(ctx context.Context, userID int, unreadOnly bool, limit int) ([]*models.Notification, error)
	// MarkRead отмечает уведомление прочитанным; чужие уведомления считаются ненайденными.
	MarkRead(ctx context.Context, id, userID int, at time.Time) error
}

type postgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) Create(ctx context.Context, exec SQLExecutor, n *models.Notification) error {
	query := `
		INSERT INTO notifications (user_id, type, title, message, link_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := executor(r.db, exec).QueryRowContext(ctx, query, n.UserID, n.Type, n.Title, n.Message, n.LinkURL).
		Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		if pqErr, ok := pqError(err); ok && pqErr.Code == pqForeignKeyViolation {
			return ErrNotificationUserInvalid
		}
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *postgresNotificationRepository) ListByUser(ctx context.Context, userID int, unreadOnly bool, limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, user_id, type, title, message, link_url, read_at, created_at
		FROM notifications
		WHERE user_id = $1`
	args := []interface{}{userID}

	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]*models.Notification, 0)
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.LinkURL, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification row: %w", err)
		}
		notifications = append(notifications, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rows: %w", err)
	}
	return notifications, nil
}

func (r *postgresNotificationRepository) MarkRead(ctx context.Context, id, userID int, at time.Time) error {
	query := `UPDATE notifications SET read_at = COALESCE(read_at, $1) WHERE id = $2 AND user_id = $3`
	result, err := r.db.ExecContext(ctx, query, at, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification %d read: %w", id, err)
	}
	return checkAffectedRows(result, ErrNotificationNotFound)
}
