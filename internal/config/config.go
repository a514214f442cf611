/**
 * Configuration for the OCR pipeline
 *
 * Loads configuration from environment variables (optionally seeded from a .env file
 * by the binaries). Command-line flags in cmd/ocr override individual values.
 */

package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"
)

// Defaults shared by the binaries and the library packages.
const (
	DefaultLanguage          = "chi_sim+eng"
	DefaultAccuracyThreshold = 0.95
	DefaultDPI               = 250
	DefaultMaxSide           = 2400
	DefaultMaxRetries        = 2
	DefaultRetryDelay        = 200 * time.Millisecond
)

// Config holds pipeline configuration
type Config struct {
	// Recognition configuration
	Language          string
	AccuracyThreshold float64
	DPI               int
	MaxSide           int
	MaxRetries        int
	RetryDelay        time.Duration
	TessdataPrefix    string

	// Batch configuration
	Workers   int // 0 means min(4, NumCPU)
	OutputDir string

	// Logging
	LogLevel  string
	LogFormat string

	// Queue worker configuration
	RedisURL          string
	QueueName         string
	WorkerConcurrency int

	// Optional result sinks
	DatabaseURL string
	GCSBucket   string
	GCSPrefix   string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Language:          getEnvOrDefault("OCR_LANG", DefaultLanguage),
		AccuracyThreshold: getEnvAsFloatOrDefault("OCR_ACCURACY_THRESHOLD", DefaultAccuracyThreshold),
		DPI:               getEnvAsIntOrDefault("OCR_DPI", DefaultDPI),
		MaxSide:           getEnvAsIntOrDefault("OCR_MAX_SIDE", DefaultMaxSide),
		MaxRetries:        getEnvAsIntOrDefault("OCR_MAX_RETRIES", DefaultMaxRetries),
		RetryDelay:        time.Duration(getEnvAsIntOrDefault("OCR_RETRY_DELAY_MS", int(DefaultRetryDelay/time.Millisecond))) * time.Millisecond,
		TessdataPrefix:    getEnvOrDefault("TESSDATA_PREFIX", ""),
		Workers:           getEnvAsIntOrDefault("OCR_WORKERS", 0),
		OutputDir:         getEnvOrDefault("OCR_OUTPUT_DIR", "./ocr_output"),
		LogLevel:          getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:         getEnvOrDefault("LOG_FORMAT", "text"),
		RedisURL:          getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		QueueName:         getEnvOrDefault("OCR_QUEUE_NAME", "ocr:batch"),
		WorkerConcurrency: getEnvAsIntOrDefault("WORKER_CONCURRENCY", 1),
		DatabaseURL:       getEnvOrDefault("DATABASE_URL", ""),
		GCSBucket:         getEnvOrDefault("GCS_BUCKET", ""),
		GCSPrefix:         getEnvOrDefault("GCS_PREFIX", "ocr"),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Language == "" {
		return fmt.Errorf("OCR_LANG is required")
	}

	if c.AccuracyThreshold < 0 || c.AccuracyThreshold > 1 {
		return fmt.Errorf("OCR_ACCURACY_THRESHOLD must be between 0 and 1, got %v", c.AccuracyThreshold)
	}

	if c.DPI < 36 || c.DPI > 1200 {
		return fmt.Errorf("OCR_DPI must be between 36 and 1200, got %d", c.DPI)
	}

	if c.MaxSide < 256 {
		return fmt.Errorf("OCR_MAX_SIDE must be at least 256, got %d", c.MaxSide)
	}

	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("OCR_MAX_RETRIES must be between 0 and 10, got %d", c.MaxRetries)
	}

	if c.RetryDelay < 0 {
		return fmt.Errorf("OCR_RETRY_DELAY_MS must not be negative, got %v", c.RetryDelay)
	}

	if c.Workers < 0 || c.Workers > 64 {
		return fmt.Errorf("OCR_WORKERS must be between 0 and 64, got %d", c.Workers)
	}

	if c.OutputDir == "" {
		return fmt.Errorf("OCR_OUTPUT_DIR is required")
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	return nil
}

// EffectiveWorkers resolves the batch pool size, applying the min(4, NumCPU) default.
func (c *Config) EffectiveWorkers() int {
	return ResolveWorkers(c.Workers)
}

// ResolveWorkers returns n when positive, otherwise min(4, NumCPU).
func ResolveWorkers(n int) int {
	if n > 0 {
		return n
	}
	cpus := runtime.NumCPU()
	if cpus < 1 {
		cpus = 2
	}
	if cpus > 4 {
		return 4
	}
	return cpus
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsFloatOrDefault gets environment variable as float64 or returns default
func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}
