package config

import (
	"os"
	"strconv"
	"time"
)

// AppConfig holds process-wide configuration settings
type AppConfig struct {
	Port             string
	Host             string
	DatabaseURL      string
	RedisAddr        string
	RedisPassword    string
	DefaultRegion    string
	LinkCacheTTL     time.Duration
	RegionCacheTTL   time.Duration
	ChartCacheTTL    time.Duration
	LogRetention     time.Duration
	RateLimitEnabled bool
	RequestsPerSec   float64
}

// Load reads application configuration from environment variables
func Load() *AppConfig {
	return &AppConfig{
		Port:             getEnv("PORT", "8080"),
		Host:             getEnv("HOST", "0.0.0.0"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		DefaultRegion:    getEnv("DEFAULT_REGION", "US"),
		LinkCacheTTL:     getEnvDuration("LINK_CACHE_TTL", time.Hour),
		RegionCacheTTL:   getEnvDuration("REGION_CACHE_TTL", 24*time.Hour),
		ChartCacheTTL:    getEnvDuration("CHART_CACHE_TTL", 30*time.Minute),
		LogRetention:     getEnvDuration("LOG_RETENTION", 168*time.Hour),
		RateLimitEnabled: getEnvBool("API_RATE_LIMIT_ENABLED", true),
		RequestsPerSec:   getEnvFloat("API_REQUESTS_PER_SEC", 10),
	}
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
