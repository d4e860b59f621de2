package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Database Configuration
	Database DatabaseConfig

	// Redis Configuration
	Redis RedisConfig

	// Logging Configuration
	Logging LoggingConfig

	// HTTP server configuration
	Server ServerConfig

	// Session token configuration
	Auth AuthConfig

	// Plaid API configuration
	Plaid PlaidConfig

	// Google sign in configuration
	Google GoogleConfig

	// Background worker configuration
	Worker WorkerConfig

	// EncryptionKey protects Plaid access tokens at rest
	EncryptionKey string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Address string // Redis address (host:port)
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr         string
	CORSOrigins  []string
	WebsiteURL   string // where browser flows land after Google sign in
	CookieSecure bool
}

// AuthConfig holds session token configuration
type AuthConfig struct {
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// PlaidConfig holds Plaid credentials
type PlaidConfig struct {
	ClientID string
	Secret   string
	Env      string // sandbox, development, production
}

// GoogleConfig holds Google OAuth client configuration
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Enabled reports whether Google sign in is configured
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != "" && g.RedirectURL != ""
}

// WorkerConfig holds background worker configuration
type WorkerConfig struct {
	BalanceRefreshSchedule string // Cron expression, empty = no scheduled refresh
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	return &Config{
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", "thrivebase.sqlite"),
		},
		Redis: RedisConfig{
			Address: getEnv("REDIS_ADDRESS", "localhost:6379"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Server: ServerConfig{
			Addr:         getEnv("HTTP_ADDR", ":8000"),
			CORSOrigins:  splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
			WebsiteURL:   strings.TrimRight(getEnv("WEBSITE_URL", "http://localhost:5173"), "/"),
			CookieSecure: getBool("COOKIE_SECURE", false),
		},
		Auth: AuthConfig{
			JWTSecret:  os.Getenv("JWT_SECRET"),
			AccessTTL:  getDuration("ACCESS_TOKEN_TTL", time.Hour),
			RefreshTTL: getDuration("REFRESH_TOKEN_TTL", 100*24*time.Hour),
		},
		Plaid: PlaidConfig{
			ClientID: os.Getenv("PLAID_CLIENT_ID"),
			Secret:   os.Getenv("PLAID_SECRET"),
			Env:      getEnv("PLAID_ENV", "sandbox"),
		},
		Google: GoogleConfig{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
		},
		Worker: WorkerConfig{
			BalanceRefreshSchedule: getEnv("BALANCE_REFRESH_SCHEDULE", "0 */6 * * *"),
		},
		EncryptionKey: os.Getenv("ENCRYPTION_KEY"),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
