package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/qubdrive/api/internal/application/maintenance"
	"github.com/qubdrive/api/internal/application/otp"
	"github.com/qubdrive/api/internal/application/passwordreset"
	"github.com/qubdrive/api/internal/application/registration"
	"github.com/qubdrive/api/internal/application/session"
	"github.com/qubdrive/api/internal/config"
	"github.com/qubdrive/api/internal/domain"
	jwtinfra "github.com/qubdrive/api/internal/infrastructure/jwt"
	"github.com/qubdrive/api/internal/infrastructure/mail"
	"github.com/qubdrive/api/internal/infrastructure/sns"
	"github.com/qubdrive/api/internal/transport/http/handler"
	appmiddleware "github.com/qubdrive/api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo          UserRepository
	SessionRepo       SessionRepository
	OtpRepo           OtpRepository
	RegistrationRepo  RegistrationRepository
	PasswordResetRepo PasswordResetRepository
	LoginAttemptRepo  LoginAttemptRepository
	RevokedTokenRepo  RevokedTokenRepository
	Notifier          mail.Notifier
	SMSSender         sns.SMSSender
	JWTProvider       *jwtinfra.Provider
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.JWTProvider, deps.RevokedTokenRepo)

	// 5 requests/second, burst of 10 — applied to sensitive public endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	otpEngine := otp.NewEngine(deps.OtpRepo, deps.Notifier, otp.Options{
		CodeLength:  cfg.OtpLength,
		TTL:         cfg.OtpTTL,
		MaxAttempts: cfg.OtpMaxAttempts,
		ResendDelay: cfg.OtpResendDelay,
		Retention:   cfg.OtpRetention,
		Production:  cfg.IsProduction(),
	})
	registrationSvc := registration.NewService(registration.Deps{
		Flows:    deps.RegistrationRepo,
		Users:    deps.UserRepo,
		Otp:      otpEngine,
		Notifier: deps.Notifier,
		FlowTTL:  cfg.RegistrationTTL,
	})
	resetSvc := passwordreset.NewService(passwordreset.Deps{
		Flows:    deps.PasswordResetRepo,
		Users:    deps.UserRepo,
		Sessions: deps.SessionRepo,
		Otp:      otpEngine,
		Notifier: deps.Notifier,
		SMS:      deps.SMSSender,
		FlowTTL:  cfg.ResetFlowTTL,
	})
	sessionSvc := session.NewService(session.Deps{
		Sessions:        deps.SessionRepo,
		Users:           deps.UserRepo,
		Attempts:        deps.LoginAttemptRepo,
		Blacklist:       deps.RevokedTokenRepo,
		Tokens:          deps.JWTProvider,
		AccessTTL:       cfg.AccessTokenTTL,
		RefreshTTL:      cfg.RefreshTokenTTL,
		MaxAttempts:     cfg.MaxLoginAttempts,
		LockoutDuration: cfg.LockoutDuration,
	})
	maintenanceSvc := maintenance.NewService(maintenance.Deps{
		Otps:          deps.OtpRepo,
		Registrations: deps.RegistrationRepo,
		Resets:        deps.PasswordResetRepo,
	})

	healthH := handler.NewHealthHandler()
	registrationH := handler.NewRegistrationHandler(registrationSvc)
	resetH := handler.NewPasswordResetHandler(resetSvc)
	sessionH := handler.NewSessionHandler(sessionSvc)
	maintenanceH := handler.NewMaintenanceHandler(maintenanceSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)

		r.With(sensitiveRL.Limit).Post("/registration/{action}", registrationH.Action)
		r.Get("/registration/status", registrationH.Status)

		r.With(sensitiveRL.Limit).Post("/password-reset/{action}", resetH.Action)
		r.Get("/password-reset/status", resetH.Status)

		r.With(sensitiveRL.Limit).Post("/sessions/login", sessionH.Login)
		r.Post("/sessions/refresh", sessionH.Refresh)
		r.Post("/sessions/logout", sessionH.Logout)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/sessions", sessionH.List)
			r.Delete("/sessions/{id}", sessionH.Revoke)
			r.Post("/sessions/revoke-all", sessionH.RevokeAll)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Post("/maintenance/cleanup", maintenanceH.Cleanup)
			})
		})
	})

	return r
}
