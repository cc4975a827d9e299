package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
// It is built once at startup and handed to components by value.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Line      LineConfig
	Cron      CronConfig
	LinkCode  LinkCodeConfig
	RateLimit RateLimitConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	MetricsEnabled        bool
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
	Addr          string
	Password      string
	DB            int
	PingTimeoutMs int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret               string
	TokenTTLSeconds         int
	PasswordResetTTLMinutes int
	BcryptCost              int
	CookieSecure            bool
}

// LineConfig holds Messaging API credentials.
type LineConfig struct {
	ChannelSecret         string
	ChannelAccessToken    string
	APIBaseURL            string
	RequestTimeoutSeconds int
	DedupeTTLHours        int
}

// CronConfig holds the shared secret for scheduled-job endpoints.
type CronConfig struct {
	Secret   string
	TimeZone string
}

// LinkCodeConfig controls invite and self-link codes.
type LinkCodeConfig struct {
	TTLHours int
	Length   int
}

// RateLimitConfig limits credential and contact endpoints per client.
type RateLimitConfig struct {
	RequestsPerMinute int
	WindowSeconds     int
}

// Load reads configuration from environment variables, applying defaults where possible.
// Secrets have no defaults; callers fail closed when they are empty.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	env := getEnv("APP_ENV", "development")

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "rehab-api"),
			Env:                   env,
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			MetricsEnabled:        getEnvAsBool("METRICS_ENABLED", true),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 0)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:      os.Getenv("REDIS_PASSWORD"),
			DB:            redisDB,
			PingTimeoutMs: getEnvAsInt("REDIS_PING_TIMEOUT_MS", 2000),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:               os.Getenv("AUTH_JWT_SECRET"),
			TokenTTLSeconds:         getEnvAsInt("AUTH_TOKEN_TTL_SECONDS", 604800),
			PasswordResetTTLMinutes: getEnvAsInt("AUTH_PASSWORD_RESET_TTL_MINUTES", 30),
			BcryptCost:              getEnvAsInt("AUTH_BCRYPT_COST", 12),
			CookieSecure:            getEnvAsBool("AUTH_COOKIE_SECURE", strings.EqualFold(env, "production")),
		},
		Line: LineConfig{
			ChannelSecret:         os.Getenv("LINE_CHANNEL_SECRET"),
			ChannelAccessToken:    os.Getenv("LINE_CHANNEL_ACCESS_TOKEN"),
			APIBaseURL:            getEnv("LINE_API_BASE_URL", "https://api.line.me"),
			RequestTimeoutSeconds: getEnvAsInt("LINE_REQUEST_TIMEOUT_SECONDS", 10),
			DedupeTTLHours:        getEnvAsInt("LINE_DEDUPE_TTL_HOURS", 24),
		},
		Cron: CronConfig{
			Secret:   os.Getenv("CRON_SECRET"),
			TimeZone: getEnv("REMINDER_TIMEZONE", "Asia/Tokyo"),
		},
		LinkCode: LinkCodeConfig{
			TTLHours: getEnvAsInt("LINK_CODE_TTL_HOURS", 72),
			Length:   getEnvAsInt("LINK_CODE_LENGTH", 8),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 10),
			WindowSeconds:     getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
		},
	}

	return cfg, nil
}

// MissingSecrets lists the names of unset secret variables.
func (c Config) MissingSecrets() []string {
	var missing []string
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "AUTH_JWT_SECRET")
	}
	if c.Line.ChannelSecret == "" {
		missing = append(missing, "LINE_CHANNEL_SECRET")
	}
	if c.Line.ChannelAccessToken == "" {
		missing = append(missing, "LINE_CHANNEL_ACCESS_TOKEN")
	}
	if c.Cron.Secret == "" {
		missing = append(missing, "CRON_SECRET")
	}
	return missing
}

// IsProduction reports whether the service runs with production settings.
func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(a.Env, "production")
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

// TokenTTL returns the session token lifetime.
func (a AuthConfig) TokenTTL() time.Duration {
	if a.TokenTTLSeconds <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(a.TokenTTLSeconds) * time.Second
}

// RequestTimeout bounds a single Messaging API call.
func (l LineConfig) RequestTimeout() time.Duration {
	if l.RequestTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(l.RequestTimeoutSeconds) * time.Second
}

// PingTimeout bounds the startup connectivity check.
func (r RedisConfig) PingTimeout() time.Duration {
	if r.PingTimeoutMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(r.PingTimeoutMs) * time.Millisecond
}

// TTL returns how long an issued link code stays open.
func (l LinkCodeConfig) TTL() time.Duration {
	if l.TTLHours <= 0 {
		return 72 * time.Hour
	}
	return time.Duration(l.TTLHours) * time.Hour
}

// Location resolves TimeZone, falling back to UTC when it is unknown.
func (c CronConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
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
