package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/Dosada05/esports-arena/docs"
	"github.com/Dosada05/esports-arena/handlers"
	"github.com/Dosada05/esports-arena/metrics"
	"github.com/Dosada05/esports-arena/middleware"
	"github.com/Dosada05/esports-arena/models"
)

type Handlers struct {
	Tournament   *handlers.TournamentHandler
	Registration *handlers.RegistrationHandler
	Waitlist     *handlers.WaitlistHandler
	Team         *handlers.TeamHandler
	Invite       *handlers.InviteHandler
	Notification *handlers.NotificationHandler
	WebSocket    *handlers.WebSocketHandler
	Health       *handlers.HealthHandler
}

type Options struct {
	Auth               *middleware.Authenticator
	Metrics            *metrics.Metrics
	CORSAllowedOrigins []string
	// Отключает access log chi, чтобы не шуметь в тестах.
	DisableRequestLog bool
}

func SetupRoutes(router chi.Router, h Handlers, opts Options) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	if !opts.DisableRequestLog {
		router.Use(chiMiddleware.Logger)
	}
	router.Use(chiMiddleware.Recoverer)
	router.Use(opts.Metrics.Middleware)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", h.Health.Healthz)
	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics.Handler())
	}
	router.Handle("/swagger/doc.json", docs.Handler())
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	organizerOnly := middleware.Authorize(models.RoleOrganizer, models.RoleAdmin)

	router.Route("/tournaments", func(r chi.Router) {
		r.With(opts.Auth.Authenticate, organizerOnly).Post("/", h.Tournament.CreateTournament)

		r.Route("/{tournamentID}", func(r chi.Router) {
			r.Get("/", h.Tournament.GetTournament)
			r.Get("/registrations", h.Registration.ListByTournament)
			r.Get("/waitlist", h.Waitlist.List)

			r.Group(func(r chi.Router) {
				r.Use(opts.Auth.Authenticate)
				r.With(organizerOnly).Delete("/", h.Tournament.DeleteTournament)
				r.Post("/withdraw", h.Tournament.Withdraw)
				r.Post("/register", h.Registration.Register)
				r.Post("/waitlist", h.Waitlist.Join)
				r.Post("/waitlist/accept", h.Waitlist.AcceptOffer)
			})
		})
	})

	router.With(opts.Auth.Authenticate, organizerOnly).
		Patch("/registrations/{registrationID}/status", h.Registration.UpdateStatus)

	router.Route("/teams", func(r chi.Router) {
		r.Get("/{teamID}", h.Team.GetTeamByID)

		r.Group(func(r chi.Router) {
			r.Use(opts.Auth.Authenticate)
			r.Post("/", h.Team.CreateTeam)
			r.Post("/{teamID}/invites", h.Invite.CreateInvite)
			r.Get("/{teamID}/invites", h.Invite.ListTeamInvites)
		})
	})

	router.Group(func(r chi.Router) {
		r.Use(opts.Auth.Authenticate)
		r.Post("/invites/{token}/join", h.Invite.JoinTeam)
		r.Get("/notifications", h.Notification.List)
		r.Patch("/notifications/{notificationID}/read", h.Notification.MarkRead)
		r.Get("/ws/notifications", h.WebSocket.ServeNotifications)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"the requested resource could not be found"}` + "\n"))
	})
}
