package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration, loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	LogLevel    string
	DatabaseURL string
	RedisURL    string
	FrontendURL string
	SentryDSN   string

	// Token signing
	JWTSecret        string
	JWTRefreshSecret string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration

	// OTP policy
	OTPLength            int
	OTPExpiry            time.Duration
	OTPMaxAttempts       int
	OTPResendCooldown    time.Duration
	BcryptCost           int

	// Rate limiting
	RateLimitMax       int
	RateLimitWindow    time.Duration
	OTPRateLimitMax    int
	OTPRateLimitWindow time.Duration
	RateLimitDisabled  bool

	// SMS providers
	TwoFactorAPIKey string
	TwoFactorAPIURL string
	MSG91APIKey     string
	MSG91APIURL     string
	Fast2SMSAPIKey  string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
		SentryDSN:   os.Getenv("SENTRY_DSN"),

		TwoFactorAPIKey: os.Getenv("SMS_API_KEY"),
		TwoFactorAPIURL: getEnv("SMS_API_URL", "https://2factor.in/API/V1"),
		MSG91APIKey:     os.Getenv("MSG91_API_KEY"),
		MSG91APIURL:     getEnv("MSG91_API_URL", "https://api.msg91.com/api"),
		Fast2SMSAPIKey:  os.Getenv("FAST2SMS_API_KEY"),
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	cfg.JWTRefreshSecret = os.Getenv("JWT_REFRESH_SECRET")
	if cfg.JWTRefreshSecret == "" {
		return nil, fmt.Errorf("JWT_REFRESH_SECRET environment variable is required")
	}

	var err error
	if cfg.AccessTokenTTL, err = getDuration("JWT_EXPIRES_IN", time.Hour); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenTTL, err = getDuration("JWT_REFRESH_EXPIRES_IN", 7*24*time.Hour); err != nil {
		return nil, err
	}

	if cfg.OTPLength, err = getInt("OTP_LENGTH", 6); err != nil {
		return nil, err
	}
	expiryMin, err := getInt("OTP_EXPIRY_MINUTES", 10)
	if err != nil {
		return nil, err
	}
	cfg.OTPExpiry = time.Duration(expiryMin) * time.Minute
	if cfg.OTPMaxAttempts, err = getInt("OTP_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	cooldownMin, err := getInt("OTP_RESEND_COOLDOWN_MINUTES", 2)
	if err != nil {
		return nil, err
	}
	cfg.OTPResendCooldown = time.Duration(cooldownMin) * time.Minute
	if cfg.BcryptCost, err = getInt("BCRYPT_ROUNDS", 12); err != nil {
		return nil, err
	}

	if cfg.RateLimitMax, err = getInt("RATE_LIMIT_MAX_REQUESTS", 100); err != nil {
		return nil, err
	}
	windowMs, err := getInt("RATE_LIMIT_WINDOW_MS", 15*60*1000)
	if err != nil {
		return nil, err
	}
	cfg.RateLimitWindow = time.Duration(windowMs) * time.Millisecond
	if cfg.OTPRateLimitMax, err = getInt("OTP_RATE_LIMIT_MAX", 5); err != nil {
		return nil, err
	}
	otpWindowMs, err := getInt("OTP_RATE_LIMIT_WINDOW_MS", 10*60*1000)
	if err != nil {
		return nil, err
	}
	cfg.OTPRateLimitWindow = time.Duration(otpWindowMs) * time.Millisecond
	cfg.RateLimitDisabled = os.Getenv("RATE_LIMIT_DISABLED") == "true"

	return cfg, nil
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
