package configs

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server ServerConfig
	Store  StoreConfig
	Redis  RedisConfig
	Quotes QuoteConfig
	Auth   AuthConfig
	Log    LogConfig
	Warmer WarmerConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port    string
	OpsPort string
	Env     string
}

// StoreConfig selects and configures the position store
type StoreConfig struct {
	Driver      string // memory | postgres | sqlite
	DatabaseURL string
	SQLitePath  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL string
}

// QuoteConfig holds quote source configuration
type QuoteConfig struct {
	BinanceBaseURL string
	Static         string
	CacheTTL       time.Duration
	Timeout        time.Duration
	Concurrency    int
}

// AuthConfig holds the optional JWT guard secret
type AuthConfig struct {
	JWTSecret string
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level       string
	Encoding    string
	Development bool
}

// WarmerConfig holds the quote warmer cron schedule
type WarmerConfig struct {
	Schedule string
}

// Load loads configuration from environment variables
func Load() *Config {
	env := getEnv("GO_ENV", "development")

	cfg := &Config{
		Server: ServerConfig{
			Port:    getEnv("PORT", "8080"),
			OpsPort: getEnv("OPS_PORT", "8081"),
			Env:     env,
		},
		Store: StoreConfig{
			Driver:      getEnv("STORE_DRIVER", "memory"),
			DatabaseURL: getEnv("DATABASE_URL", ""),
			SQLitePath:  getEnv("SQLITE_PATH", "paperledger.db"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Quotes: QuoteConfig{
			BinanceBaseURL: getEnv("BINANCE_BASE_URL", "https://api.binance.com"),
			Static:         getEnv("STATIC_QUOTES", ""),
			CacheTTL:       getEnvDuration("QUOTE_CACHE_TTL", 10*time.Second),
			Timeout:        getEnvDuration("QUOTE_TIMEOUT", 3*time.Second),
			Concurrency:    getEnvInt("QUOTE_CONCURRENCY", 8),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Log: LogConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Encoding:    getEnv("LOG_ENCODING", "json"),
			Development: env == "development",
		},
		Warmer: WarmerConfig{
			Schedule: getEnv("WARMER_SCHEDULE", "*/10 * * * * *"),
		},
	}

	// Production logs are always shipped as JSON
	if cfg.IsProduction() {
		cfg.Log.Encoding = "json"
	}
	return cfg
}

// IsProduction reports whether GO_ENV is production
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
