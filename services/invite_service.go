package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/esports-arena/clock"
	"github.com/Dosada05/esports-arena/models"
	"github.com/Dosada05/esports-arena/repositories"
)

const (
	inviteTokenLength      = 16 // байт, 32 символа в hex
	inviteTokenMaxAttempts = 3
)

type InviteService interface {
	CreateInvite(ctx context.Context, teamID, currentUserID int) (*models.Invite, error)
	ListTeamInvites(ctx context.Context, teamID, currentUserID int) ([]*models.Invite, error)
	AcceptInvite(ctx context.Context, token string, currentUserID int) (*models.Team, error)
	// DeleteExpired удаляет просроченные приглашения, возвращает их количество.
	DeleteExpired(ctx context.Context) (int64, error)
}

type inviteService struct {
	tx         repositories.TxManager
	inviteRepo repositories.InviteRepository
	teamRepo   repositories.TeamRepository
	userRepo   repositories.UserRepository
	clock      clock.Clock
	ttl        time.Duration
	logger     *slog.Logger
}

func NewInviteService(
	tx repositories.TxManager,
	inviteRepo repositories.InviteRepository,
	teamRepo repositories.TeamRepository,
	userRepo repositories.UserRepository,
	clk clock.Clock,
	ttl time.Duration,
	logger *slog.Logger,
) InviteService {
	return &inviteService{
		tx:         tx,
		inviteRepo: inviteRepo,
		teamRepo:   teamRepo,
		userRepo:   userRepo,
		clock:      clk,
		ttl:        ttl,
		logger:     logger,
	}
}

func generateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func (s *inviteService) captainTeam(ctx context.Context, teamID, currentUserID int) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, nil, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team %d: %w", teamID, err)
	}
	if team.CaptainID != currentUserID {
		return nil, ErrCaptainActionForbidden
	}
	return team, nil
}

func (s *inviteService) CreateInvite(ctx context.Context, teamID, currentUserID int) (*models.Invite, error) {
	if _, err := s.captainTeam(ctx, teamID, currentUserID); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < inviteTokenMaxAttempts; attempt++ {
		token, err := generateSecureToken(inviteTokenLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate invite token: %w", err)
		}

		invite := &models.Invite{
			TeamID:    teamID,
			Token:     token,
			ExpiresAt: s.clock.Now().Add(s.ttl),
		}
		err = s.inviteRepo.Create(ctx, invite)
		if err == nil {
			return invite, nil
		}
		if errors.Is(err, repositories.ErrInviteTeamInvalid) {
			return nil, ErrTeamNotFound
		}
		if !errors.Is(err, repositories.ErrInviteTokenConflict) {
			return nil, fmt.Errorf("failed to create invite: %w", err)
		}
		// коллизия токена, пробуем ещё раз
	}
	return nil, fmt.Errorf("failed to generate unique invite token after %d attempts", inviteTokenMaxAttempts)
}

func (s *inviteService) ListTeamInvites(ctx context.Context, teamID, currentUserID int) ([]*models.Invite, error) {
	if _, err := s.captainTeam(ctx, teamID, currentUserID); err != nil {
		return nil, err
	}
	invites, err := s.inviteRepo.ListActiveByTeamID(ctx, teamID, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to list invites of team %d: %w", teamID, err)
	}
	return invites, nil
}

func (s *inviteService) AcceptInvite(ctx context.Context, token string, currentUserID int) (*models.Team, error) {
	invite, err := s.inviteRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repositories.ErrInviteNotFound) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("failed to get invite by token: %w", err)
	}
	if s.clock.Now().After(invite.ExpiresAt) {
		return nil, ErrInviteExpired
	}

	user, err := s.userRepo.GetByID(ctx, currentUserID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", currentUserID, err)
	}
	if user.TeamID != nil {
		return nil, ErrUserAlreadyInTeam
	}

	var team *models.Team
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.userRepo.JoinTeam(ctx, exec, currentUserID, invite.TeamID); err != nil {
			switch {
			case errors.Is(err, repositories.ErrUserAlreadyInTeam):
				return ErrUserAlreadyInTeam
			case errors.Is(err, repositories.ErrUserTeamInvalid):
				return ErrTeamNotFound
			}
			return err
		}
		// Приглашение одноразовое.
		if err := s.inviteRepo.Delete(ctx, exec, invite.ID); err != nil {
			if errors.Is(err, repositories.ErrInviteNotFound) {
				return ErrInviteNotFound
			}
			return err
		}
		team, err = s.teamRepo.GetByID(ctx, exec, invite.TeamID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user joined team by invite", slog.Int("user_id", currentUserID), slog.Int("team_id", invite.TeamID))
	return team, nil
}

func (s *inviteService) DeleteExpired(ctx context.Context) (int64, error) {
	n, err := s.inviteRepo.DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired invites: %w", err)
	}
	return n, nil
}
