// Package config provides configuration management for the NAV erosion tracker.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Provider ProviderConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string
	Port string
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// RedisConfig holds Redis configuration for the scorecard cache.
// Leave Addr empty to run without a cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// ProviderConfig holds market data provider configuration
type ProviderConfig struct {
	BaseURL           string
	RequestsPerSecond float64
	RequestTimeout    time.Duration
	LookbackMonths    int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional - environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Postgres: PostgresConfig{
			Host:           getEnv("POSTGRES_HOST", "localhost"),
			Port:           getEnv("POSTGRES_PORT", "5432"),
			Database:       getEnv("POSTGRES_DB", "nav_tracker"),
			User:           getEnv("POSTGRES_USER", "tracker"),
			Password:       getEnv("POSTGRES_PASSWORD", ""),
			MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 10),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			CacheTTL: getEnvAsDuration("SCORECARD_CACHE_TTL", 5*time.Minute),
		},
		Provider: ProviderConfig{
			BaseURL:           getEnv("PROVIDER_BASE_URL", "https://query1.finance.yahoo.com"),
			RequestsPerSecond: getEnvAsFloat("PROVIDER_REQUESTS_PER_SECOND", 2.0),
			RequestTimeout:    getEnvAsDuration("PROVIDER_REQUEST_TIMEOUT", 30*time.Second),
			LookbackMonths:    getEnvAsInt("PROVIDER_LOOKBACK_MONTHS", 12),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if config.Provider.LookbackMonths < 1 {
		return nil, fmt.Errorf("PROVIDER_LOOKBACK_MONTHS must be >= 1, got %d", config.Provider.LookbackMonths)
	}

	return config, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
