package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "dev-secret"

// Token store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverRedis    = "redis"
	StoreDriverMemory   = "memory"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
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

// AuthConfig defines token signing and lifetime parameters.
type AuthConfig struct {
	JWTSecret                string
	AccessTokenTTLMinutes    int
	RefreshTokenTTLDays      int
	ResetPasswordTTLMinutes  int
	VerifyEmailTTLMinutes    int
	BcryptCost               int
	TokenStore               string
	CollapseTokenErrors      bool
	PurgeIntervalMinutes     int
	StoreOperationTimeoutSec int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom        string
	ResetPasswordURL string
	VerifyEmailURL   string
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
			Name:                  getEnv("APP_NAME", "token-gate"),
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
		Auth: AuthConfig{
			JWTSecret:                getEnv("AUTH_JWT_SECRET", defaultJWTSecret),
			AccessTokenTTLMinutes:    getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 30),
			RefreshTokenTTLDays:      getEnvAsInt("AUTH_REFRESH_TOKEN_TTL_DAYS", 30),
			ResetPasswordTTLMinutes:  getEnvAsInt("AUTH_RESET_PASSWORD_TTL_MINUTES", 10),
			VerifyEmailTTLMinutes:    getEnvAsInt("AUTH_VERIFY_EMAIL_TTL_MINUTES", 10),
			BcryptCost:               getEnvAsInt("AUTH_BCRYPT_COST", 12),
			TokenStore:               strings.ToLower(getEnv("AUTH_TOKEN_STORE", StoreDriverPostgres)),
			CollapseTokenErrors:      getEnvAsBool("AUTH_COLLAPSE_TOKEN_ERRORS", false),
			PurgeIntervalMinutes:     getEnvAsInt("AUTH_PURGE_INTERVAL_MINUTES", 60),
			StoreOperationTimeoutSec: getEnvAsInt("AUTH_STORE_TIMEOUT_SECONDS", 5),
		},
		Notification: NotificationConfig{
			EmailFrom:        getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			ResetPasswordURL: getEnv("NOTIFY_RESET_PASSWORD_URL", "http://localhost:3000/reset-password"),
			VerifyEmailURL:   getEnv("NOTIFY_VERIFY_EMAIL_URL", "http://localhost:3000/verify-email"),
		},
	}

	return cfg, nil
}

// Validate rejects configurations the service must not start with.
func (c *Config) Validate() error {
	var errs []error

	secret := strings.TrimSpace(c.Auth.JWTSecret)
	switch {
	case secret == "":
		errs = append(errs, errors.New("AUTH_JWT_SECRET is required"))
	case secret == defaultJWTSecret && !c.App.IsDevelopment():
		errs = append(errs, errors.New("AUTH_JWT_SECRET must be set outside development"))
	}

	if c.Auth.AccessTokenTTLMinutes <= 0 {
		errs = append(errs, errors.New("AUTH_ACCESS_TOKEN_TTL_MINUTES must be positive"))
	}
	if c.Auth.RefreshTokenTTLDays <= 0 {
		errs = append(errs, errors.New("AUTH_REFRESH_TOKEN_TTL_DAYS must be positive"))
	}
	if c.Auth.ResetPasswordTTLMinutes <= 0 {
		errs = append(errs, errors.New("AUTH_RESET_PASSWORD_TTL_MINUTES must be positive"))
	}
	if c.Auth.VerifyEmailTTLMinutes <= 0 {
		errs = append(errs, errors.New("AUTH_VERIFY_EMAIL_TTL_MINUTES must be positive"))
	}

	switch c.Auth.TokenStore {
	case StoreDriverPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for the postgres token store"))
		}
	case StoreDriverRedis, StoreDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_TOKEN_STORE %q", c.Auth.TokenStore))
	}

	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// IsDevelopment reports whether the service runs in a local environment.
func (a AppConfig) IsDevelopment() bool {
	switch strings.ToLower(a.Env) {
	case "development", "dev", "local", "test":
		return true
	}
	return false
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

func (a AuthConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(a.RefreshTokenTTLDays) * 24 * time.Hour
}

func (a AuthConfig) ResetPasswordTTL() time.Duration {
	return time.Duration(a.ResetPasswordTTLMinutes) * time.Minute
}

func (a AuthConfig) VerifyEmailTTL() time.Duration {
	return time.Duration(a.VerifyEmailTTLMinutes) * time.Minute
}

// PurgeInterval returns how often expired token records are swept; zero disables it.
func (a AuthConfig) PurgeInterval() time.Duration {
	if a.PurgeIntervalMinutes <= 0 {
		return 0
	}
	return time.Duration(a.PurgeIntervalMinutes) * time.Minute
}

// StoreTimeout bounds a single token store operation.
func (a AuthConfig) StoreTimeout() time.Duration {
	if a.StoreOperationTimeoutSec <= 0 {
		return 0
	}
	return time.Duration(a.StoreOperationTimeoutSec) * time.Second
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
