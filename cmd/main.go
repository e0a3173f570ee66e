package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/esports-arena/clock"
	"github.com/Dosada05/esports-arena/config"
	"github.com/Dosada05/esports-arena/db"
	"github.com/Dosada05/esports-arena/handlers"
	"github.com/Dosada05/esports-arena/metrics"
	"github.com/Dosada05/esports-arena/middleware"
	"github.com/Dosada05/esports-arena/realtime"
	"github.com/Dosada05/esports-arena/repositories"
	api "github.com/Dosada05/esports-arena/routes"
	"github.com/Dosada05/esports-arena/services"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logger.Warn("unknown LOG_LEVEL, using info", slog.String("value", cfg.LogLevel))
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.Duration("withdrawal_penalty_window", cfg.WithdrawalPenaltyWindow),
		slog.Duration("waitlist_offer_window", cfg.WaitlistOfferWindow))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		return err
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	if err := db.Migrate(dbConn); err != nil {
		logger.Error("failed to apply migrations", slog.Any("error", err))
		return err
	}
	logger.Info("database migrations applied")

	clk := clock.NewSystem()
	appMetrics := metrics.New()
	wsHub := realtime.NewHub(logger)

	// Репозитории
	txManager := repositories.NewTxManager(dbConn)
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	registrationRepo := repositories.NewPostgresRegistrationRepository(dbConn)
	waitlistRepo := repositories.NewPostgresWaitlistRepository(dbConn)
	notificationRepo := repositories.NewPostgresNotificationRepository(dbConn)
	inviteRepo := repositories.NewPostgresInviteRepository(dbConn)

	// Сервисы
	notificationService := services.NewNotificationService(notificationRepo, wsHub, clk, logger)
	waitlistService := services.NewWaitlistService(services.WaitlistServiceDeps{
		Tx:               txManager,
		TournamentRepo:   tournamentRepo,
		TeamRepo:         teamRepo,
		RegistrationRepo: registrationRepo,
		WaitlistRepo:     waitlistRepo,
		Notifications:    notificationService,
		Clock:            clk,
		Metrics:          appMetrics,
		Logger:           logger,
	}, cfg.WaitlistOfferWindow, cfg.PublicURL)
	tournamentService := services.NewTournamentService(services.TournamentServiceDeps{
		Tx:               txManager,
		TournamentRepo:   tournamentRepo,
		TeamRepo:         teamRepo,
		RegistrationRepo: registrationRepo,
		Waitlist:         waitlistService,
		Clock:            clk,
		Metrics:          appMetrics,
		Logger:           logger,
	}, services.WithdrawalPolicy{PenaltyWindow: cfg.WithdrawalPenaltyWindow})
	registrationService := services.NewRegistrationService(services.RegistrationServiceDeps{
		Tx:               txManager,
		TournamentRepo:   tournamentRepo,
		TeamRepo:         teamRepo,
		RegistrationRepo: registrationRepo,
		Notifications:    notificationService,
		Clock:            clk,
		Logger:           logger,
	}, cfg.PublicURL)
	teamService := services.NewTeamService(txManager, teamRepo, logger)
	inviteService := services.NewInviteService(txManager, inviteRepo, teamRepo, userRepo, clk, cfg.InviteTTL, logger)

	// HTTP
	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		Tournament:   handlers.NewTournamentHandler(tournamentService, logger),
		Registration: handlers.NewRegistrationHandler(registrationService, logger),
		Waitlist:     handlers.NewWaitlistHandler(waitlistService, logger),
		Team:         handlers.NewTeamHandler(teamService, logger),
		Invite:       handlers.NewInviteHandler(inviteService, cfg.PublicURL, logger),
		Notification: handlers.NewNotificationHandler(notificationService, logger),
		WebSocket:    handlers.NewWebSocketHandler(wsHub, cfg.CORSAllowedOrigins, logger),
		Health:       handlers.NewHealthHandler(dbConn, logger),
	}, api.Options{
		Auth:               middleware.NewAuthenticator(cfg.JWTSecretKey, logger),
		Metrics:            appMetrics,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return wsHub.Run(gctx)
	})

	// Планировщик очистки просроченных приглашений
	g.Go(func() error {
		ticker := time.NewTicker(cfg.CleanupInterval)
		defer ticker.Stop()
		logger.Info("invite cleanup scheduler started", slog.Duration("interval", cfg.CleanupInterval))
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				removed, err := inviteService.DeleteExpired(gctx)
				if err != nil {
					logger.Error("scheduler: invite cleanup failed", slog.Any("error", err))
					continue
				}
				if removed > 0 {
					logger.Info("scheduler: expired invites removed", slog.Int64("count", removed))
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("application stopped with error", slog.Any("error", err))
		return err
	}
	logger.Info("application exited")
	return nil
}
