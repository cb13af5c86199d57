// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port     int
	LogLevel string
	DevMode  bool

	// CORSOrigins restricts browser clients; "*" allows all.
	CORSOrigins []string

	// ReferenceYear anchors statutory lookups (Basiszins,
	// Sparerpauschbetrag) when a request does not name a year.
	ReferenceYear int
}

// Load reads configuration from environment variables. A .env file in
// the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnvAsInt("PORT", 8080),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DevMode:       getEnvAsBool("DEV_MODE", false),
		CORSOrigins:   []string{getEnv("CORS_ORIGIN", "*")},
		ReferenceYear: getEnvAsInt("REFERENCE_YEAR", 2026),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration for validity.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.ReferenceYear < 1000 || c.ReferenceYear > 9999 {
		return fmt.Errorf("invalid reference year: %d", c.ReferenceYear)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
