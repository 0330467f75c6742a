package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"

	"github.com/vendormitra/server/internal/auth"
	"github.com/vendormitra/server/internal/config"
	"github.com/vendormitra/server/internal/db"
	httphandler "github.com/vendormitra/server/internal/http"
	"github.com/vendormitra/server/internal/http/handlers"
	"github.com/vendormitra/server/internal/logging"
	"github.com/vendormitra/server/internal/ratelimit"
	"github.com/vendormitra/server/internal/repo"
	"github.com/vendormitra/server/internal/sms"
)

// challengeSweepInterval is how often expired OTP challenges are purged.
const challengeSweepInterval = time.Minute

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.LogLevel)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.AppEnv,
			AttachStacktrace: true,
		}); err != nil {
			log.Fatalf("Failed to init sentry: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()
	logger.Info("database connected", "dsn", db.RedactDSN(cfg.DatabaseURL))

	if err := runMigrations(database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	userRepo := repo.NewUserRepo(database)
	otpRepo := repo.NewOtpRepo(database)

	limiters := buildLimiters(ctx, cfg, logger)

	hasher := auth.NewHasher(cfg.BcryptCost)
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTRefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	dispatcher := sms.NewDispatcherFromConfig(cfg, logger)

	service := auth.NewService(otpRepo, userRepo, hasher, tokens, dispatcher, auth.Policy{
		OTPLength:      cfg.OTPLength,
		OTPExpiry:      cfg.OTPExpiry,
		MaxAttempts:    cfg.OTPMaxAttempts,
		ResendCooldown: cfg.OTPResendCooldown,
	}, logger)

	authHandler := handlers.NewAuthHandler(service, limiters.otp, cfg.RateLimitDisabled && !cfg.IsProduction(), logger)

	router := httphandler.NewRouter(authHandler, tokens, userRepo, limiters.routes, cfg.FrontendURL, logger)

	// The store is self-cleaning: expired challenges are purged regardless
	// of verified state.
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweepChallenges(sweepCtx, otpRepo, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("server exited")
}

type appLimiters struct {
	otp    ratelimit.Limiter
	routes httphandler.Limiters
}

// buildLimiters wires the fixed-window limiters. With REDIS_URL set the
// ceilings are enforced cluster-wide through Redis; otherwise each instance
// counts locally.
func buildLimiters(ctx context.Context, cfg *config.Config, logger *slog.Logger) appLimiters {
	bypass := cfg.RateLimitDisabled && !cfg.IsProduction()
	if cfg.RateLimitDisabled && cfg.IsProduction() {
		logger.Warn("RATE_LIMIT_DISABLED ignored in production")
	}

	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse REDIS_URL: %v", err)
		}
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to ping redis: %v", err)
		}
		logger.Info("rate limiting backed by redis")
		return appLimiters{
			otp: ratelimit.NewRedisLimiter(client, "rl:otp", cfg.OTPRateLimitMax, cfg.OTPRateLimitWindow),
			routes: httphandler.Limiters{
				General:         ratelimit.NewRedisLimiter(client, "rl:gen", cfg.RateLimitMax, cfg.RateLimitWindow),
				Verify:          ratelimit.NewRedisLimiter(client, "rl:verify", 50, cfg.RateLimitWindow),
				CompleteProfile: ratelimit.NewRedisLimiter(client, "rl:profile", 20, cfg.RateLimitWindow),
				Refresh:         ratelimit.NewRedisLimiter(client, "rl:refresh", 10, cfg.RateLimitWindow),
				Bypass:          bypass,
			},
		}
	}

	logger.Info("rate limiting is process-local; set REDIS_URL for cluster-wide enforcement")
	return appLimiters{
		otp: ratelimit.NewMemoryLimiter(cfg.OTPRateLimitMax, cfg.OTPRateLimitWindow),
		routes: httphandler.Limiters{
			General:         ratelimit.NewMemoryLimiter(cfg.RateLimitMax, cfg.RateLimitWindow),
			Verify:          ratelimit.NewMemoryLimiter(50, cfg.RateLimitWindow),
			CompleteProfile: ratelimit.NewMemoryLimiter(20, cfg.RateLimitWindow),
			Refresh:         ratelimit.NewMemoryLimiter(10, cfg.RateLimitWindow),
			Bypass:          bypass,
		},
	}
}

func sweepChallenges(ctx context.Context, otpRepo repo.OtpRepo, logger *slog.Logger) {
	ticker := time.NewTicker(challengeSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := otpRepo.DeleteExpired(ctx, time.Now())
			if err != nil {
				logger.Error("challenge sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("purged expired challenges", "count", n)
			}
		}
	}
}

// runMigrations applies database migrations using goose.
func runMigrations(database *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(database, "internal/db/migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
