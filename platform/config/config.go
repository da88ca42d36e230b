// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// PipelineConfig provides settings for the claim scheduler and state machine.
type PipelineConfig interface {
	GetClaimBatchSize() int
	GetClaimTickInterval() time.Duration
	GetMaxRetries() int
	GetProcessingTimeout() time.Duration
	GetRetentionDays() int
}

// ExtractionConfig provides settings for the AI extraction model.
type ExtractionConfig interface {
	GetGeminiAPIKey() string
	GetExtractionModel() string
	GetConfidenceThreshold() float64
	GetExtractionRequestsPerMinute() int
}

// DirectoryConfig provides settings for the identity directory collaborator.
type DirectoryConfig interface {
	GetDirectoryBaseURL() string
	GetDirectoryAPIKey() string
	GetDirectoryCacheTTL() time.Duration
}

// DownstreamConfig provides settings for the downstream system-of-record API.
type DownstreamConfig interface {
	GetDownstreamBaseURL() string
	GetDownstreamAPIKey() string
}

// TriggerConfig provides settings for the coalesced processing trigger.
type TriggerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetTriggerQueueName() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                         string
	HTTPAddr                    string
	DatabaseURL                 string
	CORSAllowAll                bool
	CORSOrigins                 []string
	CORSAllowCreds              bool
	ClaimBatchSize              int
	ClaimTickInterval           time.Duration
	MaxRetries                  int
	ProcessingTimeout           time.Duration
	RetentionDays               int
	GeminiAPIKey                string
	ExtractionModel             string
	ConfidenceThreshold         float64
	ExtractionRequestsPerMinute int
	DirectoryBaseURL            string
	DirectoryAPIKey             string
	DirectoryCacheTTL           time.Duration
	DownstreamBaseURL           string
	DownstreamAPIKey            string
	RedisURL                    string
	RedisTLSInsecure            bool
	TriggerQueueName            string
}

// Load reads configuration from the environment, applying defaults.
// A .env file is loaded first when present (local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                         getEnv("APP_ENV", "development"),
		HTTPAddr:                    getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:                 getEnv("DATABASE_URL", ""),
		CORSAllowAll:                corsAllowAll,
		CORSOrigins:                 corsOrigins,
		CORSAllowCreds:              strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		ClaimBatchSize:              mustPositiveInt(getEnv("CLAIM_BATCH_SIZE", "10")),
		ClaimTickInterval:           mustDuration(getEnv("CLAIM_TICK_INTERVAL", "3s")),
		MaxRetries:                  mustPositiveInt(getEnv("MAX_RETRIES", "5")),
		ProcessingTimeout:           mustDuration(getEnv("PROCESSING_TIMEOUT", "10m")),
		RetentionDays:               mustPositiveInt(getEnv("RETENTION_DAYS", "30")),
		GeminiAPIKey:                getEnv("GEMINI_API_KEY", ""),
		ExtractionModel:             getEnv("EXTRACTION_MODEL", "gemini-2.0-flash"),
		ConfidenceThreshold:         mustFloat(getEnv("CONFIDENCE_THRESHOLD", "0.78")),
		ExtractionRequestsPerMinute: mustPositiveInt(getEnv("EXTRACTION_RPM", "30")),
		DirectoryBaseURL:            getEnv("DIRECTORY_BASE_URL", ""),
		DirectoryAPIKey:             getEnv("DIRECTORY_API_KEY", ""),
		DirectoryCacheTTL:           mustDuration(getEnv("DIRECTORY_CACHE_TTL", "5m")),
		DownstreamBaseURL:           getEnv("DOWNSTREAM_BASE_URL", ""),
		DownstreamAPIKey:            getEnv("DOWNSTREAM_API_KEY", ""),
		RedisURL:                    getEnv("REDIS_URL", ""),
		RedisTLSInsecure:            strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		TriggerQueueName:            getEnv("TRIGGER_QUEUE_NAME", "receipts"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.ConfidenceThreshold <= 0 || cfg.ConfidenceThreshold > 1 {
		return nil, fmt.Errorf("CONFIDENCE_THRESHOLD must be in (0, 1]")
	}

	return cfg, nil
}

// =============================================================================
// Interface implementations
// =============================================================================

func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

func (c *Config) GetClaimBatchSize() int              { return c.ClaimBatchSize }
func (c *Config) GetClaimTickInterval() time.Duration { return c.ClaimTickInterval }
func (c *Config) GetMaxRetries() int                  { return c.MaxRetries }
func (c *Config) GetProcessingTimeout() time.Duration { return c.ProcessingTimeout }
func (c *Config) GetRetentionDays() int               { return c.RetentionDays }

func (c *Config) GetGeminiAPIKey() string             { return c.GeminiAPIKey }
func (c *Config) GetExtractionModel() string          { return c.ExtractionModel }
func (c *Config) GetConfidenceThreshold() float64     { return c.ConfidenceThreshold }
func (c *Config) GetExtractionRequestsPerMinute() int { return c.ExtractionRequestsPerMinute }

func (c *Config) GetDirectoryBaseURL() string         { return c.DirectoryBaseURL }
func (c *Config) GetDirectoryAPIKey() string          { return c.DirectoryAPIKey }
func (c *Config) GetDirectoryCacheTTL() time.Duration { return c.DirectoryCacheTTL }

func (c *Config) GetDownstreamBaseURL() string { return c.DownstreamBaseURL }
func (c *Config) GetDownstreamAPIKey() string  { return c.DownstreamAPIKey }

func (c *Config) GetRedisURL() string         { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool   { return c.RedisTLSInsecure }
func (c *Config) GetTriggerQueueName() string { return c.TriggerQueueName }

// =============================================================================
// Helpers
// =============================================================================

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

func mustDuration(raw string) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		panic("invalid duration value: " + raw)
	}
	return d
}

func mustPositiveInt(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		panic("invalid positive integer value: " + raw)
	}
	return n
}

func mustFloat(raw string) float64 {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		panic("invalid float value: " + raw)
	}
	return f
}
