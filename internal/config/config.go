// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	InputPath    string  // Customer records CSV (required)
	OutputDir    string  // Directory for output tables (defaults to "./output")
	ResultsDB    string  // Optional SQLite audit store path; empty = disabled
	SegmentCount int     // k for the segmenter
	Seed         int64   // Random seed for reproducible runs
	ChurnCeiling float64 // Max acceptable churn probability for a recommendation
	RatioTarget  float64 // LTV:CAC ratio target used when the ceiling must be relaxed
	GridSpan     float64 // Price grid half-width as a fraction of current price
	GridStep     float64 // Price grid step as a fraction of current price
	LogLevel     string
	Progress     bool // Show a progress bar across pipeline stages
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	outputDir := getEnv("PRICELAB_OUTPUT_DIR", "./output")
	absOutputDir, err := filepath.Abs(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory path: %w", err)
	}

	cfg := &Config{
		InputPath:    getEnv("PRICELAB_INPUT", ""),
		OutputDir:    absOutputDir,
		ResultsDB:    getEnv("PRICELAB_RESULTS_DB", ""),
		SegmentCount: getEnvAsInt("PRICELAB_SEGMENTS", 4),
		Seed:         int64(getEnvAsInt("PRICELAB_SEED", 42)),
		ChurnCeiling: getEnvAsFloat("PRICELAB_CHURN_CEILING", 0.20),
		RatioTarget:  getEnvAsFloat("PRICELAB_RATIO_TARGET", 3.0),
		GridSpan:     getEnvAsFloat("PRICELAB_GRID_SPAN", 0.50),
		GridStep:     getEnvAsFloat("PRICELAB_GRID_STEP", 0.05),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Progress:     getEnvAsBool("PRICELAB_PROGRESS", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and sane
func (c *Config) Validate() error {
	if c.SegmentCount < 1 {
		return fmt.Errorf("segment count must be at least 1, got %d", c.SegmentCount)
	}
	if c.ChurnCeiling <= 0 || c.ChurnCeiling > 1 {
		return fmt.Errorf("churn ceiling must be in (0,1], got %v", c.ChurnCeiling)
	}
	if c.GridSpan <= 0 || c.GridSpan >= 1 {
		return fmt.Errorf("grid span must be in (0,1), got %v", c.GridSpan)
	}
	if c.GridStep <= 0 || c.GridStep > c.GridSpan {
		return fmt.Errorf("grid step must be in (0, span], got %v", c.GridStep)
	}
	if c.RatioTarget <= 0 {
		return fmt.Errorf("ratio target must be positive, got %v", c.RatioTarget)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
