// Package config provides configuration for the X-Ray backend.
package config

import (
	"os"
	"strconv"
)

// Config holds the backend configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Ingest policy (rego file). Empty means the built-in default policy.
	PolicyPath string

	// Query defaults
	RunListLimit int

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:     getEnvInt("HTTP_PORT", 8000),
		DatabaseURL:  getEnv("DATABASE_URL", "file:xray.db?cache=shared&mode=rwc"),
		PolicyPath:   getEnv("INGEST_POLICY_PATH", ""),
		RunListLimit: getEnvInt("RUN_LIST_LIMIT", 100),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
