package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/esports-arena/clock"
	"github.com/Dosada05/esports-arena/models"
	"github.com/Dosada05/esports-arena/repositories"
)

const (
	notificationListLimit = 100

	// Тип сообщения в веб-сокете.
	RealtimeNotificationCreated = "NOTIFICATION_CREATED"
)

// Publisher доставляет сообщение открытым соединениям пользователя.
type Publisher interface {
	PublishToUser(userID int, messageType string, payload interface{})
}

type NotificationService interface {
	// Create сохраняет уведомление в переданной транзакции.
	Create(ctx context.Context, exec repositories.SQLExecutor, n *models.Notification) error
	// Publish отправляет уже сохранённое уведомление в реальном времени.
	// Вызывается только после коммита.
	Publish(n *models.Notification)
	ListForUser(ctx context.Context, userID int, unreadOnly bool) ([]*models.Notification, error)
	MarkRead(ctx context.Context, notificationID, userID int) error
}

type notificationService struct {
	notificationRepo repositories.NotificationRepository
	publisher        Publisher
	clock            clock.Clock
	logger           *slog.Logger
}

func NewNotificationService(
	notificationRepo repositories.NotificationRepository,
	publisher Publisher,
	clk clock.Clock,
	logger *slog.Logger,
) NotificationService {
	return &notificationService{
		notificationRepo: notificationRepo,
		publisher:        publisher,
		clock:            clk,
		logger:           logger,
	}
}

func (s *notificationService) Create(ctx context.Context, exec repositories.SQLExecutor, n *models.Notification) error {
	if err := s.notificationRepo.Create(ctx, exec, n); err != nil {
		if errors.Is(err, repositories.ErrNotificationUserInvalid) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to create notification for user %d: %w", n.UserID, err)
	}
	return nil
}

func (s *notificationService) Publish(n *models.Notification) {
	if s.publisher == nil || n == nil {
		return
	}
	s.publisher.PublishToUser(n.UserID, RealtimeNotificationCreated, n)
	s.logger.Debug("notification pushed",
		slog.Int("notification_id", n.ID),
		slog.Int("user_id", n.UserID),
		slog.String("type", string(n.Type)))
}

func (s *notificationService) ListForUser(ctx context.Context, userID int, unreadOnly bool) ([]*models.Notification, error) {
	list, err := s.notificationRepo.ListByUser(ctx, userID, unreadOnly, notificationListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications for user %d: %w", userID, err)
	}
	return list, nil
}

func (s *notificationService) MarkRead(ctx context.Context, notificationID, userID int) error {
	err := s.notificationRepo.MarkRead(ctx, notificationID, userID, s.clock.Now())
	if err != nil {
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			return ErrNotificationNotFound
		}
		return fmt.Errorf("failed to mark notification %d as read: %w", notificationID, err)
	}
	return nil
}
