package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	App       AppConfig
	Referral  ReferralConfig
	Reconcile ReconcileConfig
	Redis     RedisConfig
	Log       LogConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port        string
	FrontendURL string
}

// AppConfig holds application-specific settings
type AppConfig struct {
	JWTSecret      string
	StellarNetwork string
}

// ReferralConfig bounds the referral application flow
type ReferralConfig struct {
	MaxAttempts  int
	StoreTimeout time.Duration
}

// ReconcileConfig controls the background reconciliation job
type ReconcileConfig struct {
	Interval  time.Duration
	BatchSize int
}

// RedisConfig holds the optional stats cache settings
type RedisConfig struct {
	URL      string
	StatsTTL time.Duration
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "rewards_ledger"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			FrontendURL: getEnv("FRONTEND_URL", ""),
		},
		App: AppConfig{
			JWTSecret:      getEnv("JWT_SECRET", ""),
			StellarNetwork: getEnv("STELLAR_NETWORK", "testnet"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	var err error
	if config.Referral.MaxAttempts, err = parseIntEnv("REFERRAL_MAX_ATTEMPTS", 3); err != nil {
		return nil, fmt.Errorf("invalid REFERRAL_MAX_ATTEMPTS: %w", err)
	}
	if config.Referral.StoreTimeout, err = parseDurationEnv("REFERRAL_STORE_TIMEOUT", 5*time.Second); err != nil {
		return nil, fmt.Errorf("invalid REFERRAL_STORE_TIMEOUT: %w", err)
	}
	if config.Reconcile.Interval, err = parseDurationEnv("RECONCILE_INTERVAL", 10*time.Minute); err != nil {
		return nil, fmt.Errorf("invalid RECONCILE_INTERVAL: %w", err)
	}
	if config.Reconcile.BatchSize, err = parseIntEnv("RECONCILE_BATCH_SIZE", 100); err != nil {
		return nil, fmt.Errorf("invalid RECONCILE_BATCH_SIZE: %w", err)
	}
	if config.Redis.StatsTTL, err = parseDurationEnv("REDIS_STATS_TTL", time.Minute); err != nil {
		return nil, fmt.Errorf("invalid REDIS_STATS_TTL: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.App.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	switch c.App.StellarNetwork {
	case "public", "testnet", "futurenet":
	default:
		return fmt.Errorf("invalid STELLAR_NETWORK: %s (must be one of: public, testnet, futurenet)", c.App.StellarNetwork)
	}

	if c.Referral.MaxAttempts < 1 {
		return fmt.Errorf("REFERRAL_MAX_ATTEMPTS must be at least 1")
	}
	if c.Referral.StoreTimeout <= 0 {
		return fmt.Errorf("REFERRAL_STORE_TIMEOUT must be positive")
	}
	if c.Reconcile.Interval < time.Second {
		return fmt.Errorf("RECONCILE_INTERVAL must be at least 1s")
	}
	if c.Reconcile.BatchSize < 1 {
		return fmt.Errorf("RECONCILE_BATCH_SIZE must be at least 1")
	}

	validLogLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid LOG_LEVEL: %s (must be one of: trace, debug, info, warn, error)", c.Log.Level)
	}

	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	str := os.Getenv(key)
	if str == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(str)
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	str := os.Getenv(key)
	if str == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(str)
}
