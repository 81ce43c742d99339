// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Reasoner (LLM explanation) settings
	GeminiAPIKey     string // Optional; heuristic explanations are used when unset
	ReasonerModel    string
	ReasonerMaxChars int // Max explanation length persisted per transaction

	// Scoring settings
	FraudAmountThreshold string // MRU amount above which the rule predictor flags fraud

	// Ingestion settings
	ProgressInterval int // Emit a progress event every N processed rows
	ProgressDelayMS  int // Pacing delay after each progress emission
	MaxReportErrors  int // Row errors included in the final report

	// Observability
	OTLPEndpoint string
}

const (
	DefaultPort             = "8080"
	DefaultEnv              = "development"
	DefaultLogLevel         = "info"
	DefaultReasonerModel    = "gemini-2.0-flash"
	DefaultAmountThreshold  = "50000"
	DefaultProgressInterval = 10
	DefaultProgressDelayMS  = 50
	DefaultMaxReportErrors  = 10
)

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", DefaultPort),
		Env:                  getEnv("ENV", DefaultEnv),
		LogLevel:             getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:          os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		GeminiAPIKey:         os.Getenv("GEMINI_API_KEY"),
		ReasonerModel:        getEnv("REASONER_MODEL", DefaultReasonerModel),
		ReasonerMaxChars:     getEnvInt("REASONER_MAX_CHARS", 4000),
		FraudAmountThreshold: getEnv("FRAUD_AMOUNT_THRESHOLD", DefaultAmountThreshold),
		ProgressInterval:     getEnvInt("PROGRESS_INTERVAL", DefaultProgressInterval),
		ProgressDelayMS:      getEnvInt("PROGRESS_DELAY_MS", DefaultProgressDelayMS),
		MaxReportErrors:      getEnvInt("MAX_REPORT_ERRORS", DefaultMaxReportErrors),
		OTLPEndpoint:         os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configuration values are coherent
func (c *Config) Validate() error {
	if c.ProgressInterval <= 0 {
		return fmt.Errorf("PROGRESS_INTERVAL must be positive, got %d", c.ProgressInterval)
	}
	if c.ProgressDelayMS < 0 {
		return fmt.Errorf("PROGRESS_DELAY_MS must not be negative, got %d", c.ProgressDelayMS)
	}
	if c.MaxReportErrors < 0 {
		return fmt.Errorf("MAX_REPORT_ERRORS must not be negative, got %d", c.MaxReportErrors)
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
