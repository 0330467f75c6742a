package http

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/vendormitra/server/internal/auth"
	"github.com/vendormitra/server/internal/http/handlers"
	"github.com/vendormitra/server/internal/middleware"
	"github.com/vendormitra/server/internal/ratelimit"
	"github.com/vendormitra/server/internal/repo"
)

// Limiters groups the per-route fixed-window limiters. All are keyed by
// client IP; the OTP limiter (keyed by mobile) lives inside the auth handler
// since it needs the request body.
type Limiters struct {
	General         ratelimit.Limiter
	Verify          ratelimit.Limiter
	CompleteProfile ratelimit.Limiter
	Refresh         ratelimit.Limiter
	Bypass          bool
}

// NewRouter wires all routes with their middleware.
func NewRouter(
	authHandler *handlers.AuthHandler,
	tokens *auth.TokenService,
	users repo.UserRepo,
	limiters Limiters,
	frontendURL string,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(frontendURL))

	r.Get("/health", handlers.NewHealthHandler().ServeHTTP)

	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(limiters.General, middleware.IPKey, limiters.Bypass, logger))
			r.Post("/send-otp", authHandler.HandleSendOTP)
			r.Post("/resend-otp", authHandler.HandleSendOTP)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(limiters.Verify, middleware.IPKey, limiters.Bypass, logger))
			r.Post("/verify-otp", authHandler.HandleVerifyOTP)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(limiters.CompleteProfile, middleware.IPKey, limiters.Bypass, logger))
			r.Post("/complete-profile", authHandler.HandleCompleteProfile)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(limiters.Refresh, middleware.IPKey, limiters.Bypass, logger))
			r.Post("/refresh-token", authHandler.HandleRefreshToken)
		})

		// Protected routes (require valid access token)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(tokens, users))
			r.Post("/logout", authHandler.HandleLogout)
			r.Get("/me", authHandler.HandleMe)
		})
	})

	return r
}
