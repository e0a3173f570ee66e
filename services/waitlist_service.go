package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/esports-arena/clock"
	"github.com/Dosada05/esports-arena/metrics"
	"github.com/Dosada05/esports-arena/models"
	"github.com/Dosada05/esports-arena/repositories"
)

const DefaultWaitlistOfferWindow = 24 * time.Hour

type WaitlistService interface {
	Join(ctx context.Context, tournamentID, currentUserID int) (*models.WaitlistEntry, error)
	List(ctx context.Context, tournamentID int) ([]*models.WaitlistEntry, error)
	// AcceptOffer превращает активное предложение в одобренную заявку.
	AcceptOffer(ctx context.Context, tournamentID, currentUserID int) (*models.TournamentRegistration, error)
	// PromoteNext предлагает освободившееся место первой команде в очереди.
	// Возвращает nil без ошибки, если предлагать некому.
	PromoteNext(ctx context.Context, tournamentID int, now time.Time) (*models.WaitlistOffer, error)
}

type WaitlistServiceDeps struct {
	Tx               repositories.TxManager
	TournamentRepo   repositories.TournamentRepository
	TeamRepo         repositories.TeamRepository
	RegistrationRepo repositories.RegistrationRepository
	WaitlistRepo     repositories.WaitlistRepository
	Notifications    NotificationService
	Clock            clock.Clock
	Metrics          *metrics.Metrics
	Logger           *slog.Logger
}

type waitlistService struct {
	WaitlistServiceDeps
	offerWindow time.Duration
	publicURL   string
}

func NewWaitlistService(deps WaitlistServiceDeps, offerWindow time.Duration, publicURL string) WaitlistService {
	if offerWindow <= 0 {
		offerWindow = DefaultWaitlistOfferWindow
	}
	return &waitlistService{
		WaitlistServiceDeps: deps,
		offerWindow:         offerWindow,
		publicURL:           strings.TrimRight(publicURL, "/"),
	}
}

func (s *waitlistService) Join(ctx context.Context, tournamentID, currentUserID int) (*models.WaitlistEntry, error) {
	tournament, err := getActiveTournament(ctx, s.TournamentRepo, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	team, err := getCaptainTeam(ctx, s.TeamRepo, currentUserID)
	if err != nil {
		return nil, err
	}

	// Пока есть свободные места, команда регистрируется напрямую.
	if !tournament.IsFull() {
		return nil, ErrTournamentNotFull
	}

	_, err = s.RegistrationRepo.GetByTournamentAndTeam(ctx, nil, tournamentID, team.ID)
	if err == nil {
		return nil, ErrRegistrationConflict
	}
	if !errors.Is(err, repositories.ErrRegistrationNotFound) {
		return nil, fmt.Errorf("failed to check registration of team %d: %w", team.ID, err)
	}

	entry, err := s.WaitlistRepo.Add(ctx, nil, tournamentID, team.ID)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrWaitlistConflict):
			return nil, ErrWaitlistConflict
		case errors.Is(err, repositories.ErrWaitlistReferenceInvalid):
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to add team %d to waitlist: %w", team.ID, err)
	}

	s.Logger.Info("team joined waitlist",
		slog.Int("tournament_id", tournamentID),
		slog.Int("team_id", team.ID),
		slog.Int("position", entry.Position))
	return entry, nil
}

func (s *waitlistService) List(ctx context.Context, tournamentID int) ([]*models.WaitlistEntry, error) {
	if _, err := getActiveTournament(ctx, s.TournamentRepo, nil, tournamentID); err != nil {
		return nil, err
	}
	entries, err := s.WaitlistRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list waitlist of tournament %d: %w", tournamentID, err)
	}
	return entries, nil
}

func (s *waitlistService) AcceptOffer(ctx context.Context, tournamentID, currentUserID int) (*models.TournamentRegistration, error) {
	team, err := getCaptainTeam(ctx, s.TeamRepo, currentUserID)
	if err != nil {
		return nil, err
	}
	now := s.Clock.Now()

	var reg *models.TournamentRegistration
	err = s.Tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if _, err := getActiveTournament(ctx, s.TournamentRepo, exec, tournamentID); err != nil {
			return err
		}

		entry, err := s.WaitlistRepo.GetByTournamentAndTeam(ctx, exec, tournamentID, team.ID)
		if err != nil {
			if errors.Is(err, repositories.ErrWaitlistEntryNotFound) {
				return ErrWaitlistEntryNotFound
			}
			return fmt.Errorf("failed to get waitlist entry: %w", err)
		}
		if !entry.Offered {
			return ErrNoActiveOffer
		}
		if !entry.OfferActive(now) {
			return ErrOfferExpired
		}

		if _, err := s.TournamentRepo.IncrementFilled(ctx, exec, tournamentID); err != nil {
			if errors.Is(err, repositories.ErrTournamentFull) {
				return ErrTournamentFull
			}
			return err
		}

		reg = &models.TournamentRegistration{
			TournamentID: tournamentID,
			TeamID:       team.ID,
			Status:       models.RegistrationApproved,
		}
		if err := s.RegistrationRepo.Create(ctx, exec, reg); err != nil {
			if errors.Is(err, repositories.ErrRegistrationConflict) {
				return ErrRegistrationConflict
			}
			return fmt.Errorf("failed to create registration from waitlist offer: %w", err)
		}

		if err := s.WaitlistRepo.Delete(ctx, exec, entry.ID); err != nil {
			// Запись уже забрал параллельный запрос.
			if errors.Is(err, repositories.ErrWaitlistEntryNotFound) {
				return ErrNoActiveOffer
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("waitlist offer accepted",
		slog.Int("tournament_id", tournamentID),
		slog.Int("team_id", team.ID),
		slog.Int("registration_id", reg.ID))
	return reg, nil
}

func (s *waitlistService) PromoteNext(ctx context.Context, tournamentID int, now time.Time) (*models.WaitlistOffer, error) {
	var (
		offer        *models.WaitlistOffer
		notification *models.Notification
	)

	err := s.Tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		tournament, err := getActiveTournament(ctx, s.TournamentRepo, exec, tournamentID)
		if err != nil {
			return err
		}

		entry, err := s.WaitlistRepo.ClaimNext(ctx, exec, tournamentID, now.Add(s.offerWindow))
		if err != nil {
			if errors.Is(err, repositories.ErrWaitlistEmpty) {
				return nil
			}
			return err
		}

		team, err := s.TeamRepo.GetByID(ctx, exec, entry.TeamID)
		if err != nil {
			return fmt.Errorf("failed to get waitlisted team %d: %w", entry.TeamID, err)
		}

		expiresAt := now.Add(s.offerWindow)
		if entry.OfferExpiry != nil {
			expiresAt = *entry.OfferExpiry
		}

		notification = s.offerNotification(tournament, team, expiresAt)
		if err := s.Notifications.Create(ctx, exec, notification); err != nil {
			return err
		}

		offer = &models.WaitlistOffer{
			Entry:     *entry,
			CaptainID: team.CaptainID,
			ExpiresAt: expiresAt,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to promote waitlist of tournament %d: %w", tournamentID, err)
	}
	if offer == nil {
		return nil, nil
	}

	s.Notifications.Publish(notification)
	s.Metrics.ObserveWaitlistOffer()
	s.Logger.Info("waitlist slot offered",
		slog.Int("tournament_id", tournamentID),
		slog.Int("team_id", offer.Entry.TeamID),
		slog.Int("position", offer.Entry.Position),
		slog.Time("expires_at", offer.ExpiresAt))
	return offer, nil
}

func (s *waitlistService) offerNotification(tournament *models.Tournament, team *models.Team, expiresAt time.Time) *models.Notification {
	link := fmt.Sprintf("%s/tournaments/%d", s.publicURL, tournament.ID)
	return &models.Notification{
		UserID: team.CaptainID,
		Type:   models.NotificationWaitlistOffer,
		Title:  fmt.Sprintf("A slot opened in %s", tournament.Name),
		Message: fmt.Sprintf(
			"Your team %s can take a slot in tournament %q (#%d). The offer is valid for %s, until %s.",
			team.Name, tournament.Name, tournament.ID, formatWindow(s.offerWindow), expiresAt.UTC().Format(time.RFC1123),
		),
		LinkURL: &link,
	}
}

func formatWindow(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	}
	return d.String()
}
