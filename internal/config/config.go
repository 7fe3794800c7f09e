package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Identity  IdentityConfig
	SSO       SSOConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	Guards    GuardConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// IdentityConfig defines token issuance parameters for the identity
// endpoints.
type IdentityConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	RefreshTokenTTLHours  int
	AuthorizeBaseURL      string
	OAuthClientID         string
	OAuthRedirectURI      string
	BcryptCost            int
}

// SSOConfig configures the client side of the identity contract.
type SSOConfig struct {
	BaseURL          string
	PlatformID       string
	OAuthClientID    string
	OAuthRedirectURI string
	TimeoutSeconds   int
}

// SessionConfig controls the client session manager.
type SessionConfig struct {
	RefreshIntervalMinutes int
	StorePath              string
}

// RateLimitConfig controls request throttling.
type RateLimitConfig struct {
	WindowMinutes        int
	MaxRequests          int
	SweepIntervalMinutes int
	// Backend selects "memory" (process-local) or "redis" (shared across
	// instances).
	Backend string
}

// GuardConfig holds the remediation URLs returned with authorization
// rejections.
type GuardConfig struct {
	VerifyURL    string
	SubscribeURL string
	ApplyURL     string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "authcore"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Identity: IdentityConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			RefreshTokenTTLHours:  getEnvAsInt("AUTH_REFRESH_TOKEN_TTL_HOURS", 720),
			AuthorizeBaseURL:      getEnv("AUTH_AUTHORIZE_BASE_URL", "https://sso.fanzlab.dev/authorize"),
			OAuthClientID:         getEnv("AUTH_OAUTH_CLIENT_ID", "authcore"),
			OAuthRedirectURI:      getEnv("AUTH_OAUTH_REDIRECT_URI", ""),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		SSO: SSOConfig{
			BaseURL:          getEnv("SSO_BASE_URL", "http://127.0.0.1:8080"),
			PlatformID:       getEnv("SSO_PLATFORM_ID", "boyfanz"),
			OAuthClientID:    getEnv("SSO_OAUTH_CLIENT_ID", "authcore"),
			OAuthRedirectURI: getEnv("SSO_OAUTH_REDIRECT_URI", ""),
			TimeoutSeconds:   getEnvAsInt("SSO_TIMEOUT_SECONDS", 10),
		},
		Session: SessionConfig{
			RefreshIntervalMinutes: getEnvAsInt("SESSION_REFRESH_INTERVAL_MINUTES", 45),
			StorePath:              getEnv("SESSION_STORE_PATH", ""),
		},
		RateLimit: RateLimitConfig{
			WindowMinutes:        getEnvAsInt("RATE_LIMIT_WINDOW_MINUTES", 15),
			MaxRequests:          getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", 1000),
			SweepIntervalMinutes: getEnvAsInt("RATE_LIMIT_SWEEP_INTERVAL_MINUTES", 5),
			Backend:              getEnv("RATE_LIMIT_BACKEND", "memory"),
		},
		Guards: GuardConfig{
			VerifyURL:    getEnv("GUARD_VERIFY_URL", "https://sso.fanzlab.dev/verify"),
			SubscribeURL: getEnv("GUARD_SUBSCRIBE_URL", "https://sso.fanzlab.dev/subscribe"),
			ApplyURL:     getEnv("GUARD_APPLY_URL", "https://sso.fanzlab.dev/creators/apply"),
		},
	}

	if cfg.Session.RefreshIntervalMinutes >= cfg.Identity.AccessTokenTTLMinutes {
		return nil, fmt.Errorf("SESSION_REFRESH_INTERVAL_MINUTES (%d) must be shorter than AUTH_ACCESS_TOKEN_TTL_MINUTES (%d)",
			cfg.Session.RefreshIntervalMinutes, cfg.Identity.AccessTokenTTLMinutes)
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the access token lifetime.
func (c IdentityConfig) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh token lifetime.
func (c IdentityConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTLHours) * time.Hour
}

// Timeout returns the bound applied to every identity-service call.
func (s SSOConfig) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// RefreshInterval returns the background refresh cadence.
func (s SessionConfig) RefreshInterval() time.Duration {
	return time.Duration(s.RefreshIntervalMinutes) * time.Minute
}

// Window returns the rate limit window length.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowMinutes) * time.Minute
}

// SweepInterval returns the expired-bucket sweep cadence.
func (r RateLimitConfig) SweepInterval() time.Duration {
	return time.Duration(r.SweepIntervalMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
