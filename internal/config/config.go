// Package config provides application configuration loading from environment variables and .env files.
// It uses viper for flexible configuration management with sensible defaults.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration loaded from environment variables or .env file.
// Configuration priority: environment variables > .env file > defaults.
type Config struct {
	AppEnv      string // Application environment (dev, staging, prod)
	HTTPAddr    string // HTTP server bind address (e.g., ":3010")
	MetricsAddr string // Metrics/pprof server bind address
	LogLevel    string // Minimum log level (trace, debug, info, warn, error)
	Env         string // Campaign environment to operate on (regular or staging)

	Email           string // Dashboard login email
	Password        string // Dashboard login password
	LoginURL        string // Dashboard login page
	CampaignBaseURL string // Campaign edit page prefix; the campaign id is appended

	AdminAPIKey string // Admin API key for rule updates
	WebhookURL  string // Completion webhook endpoint (empty disables delivery)
	WebhookKey  string // HMAC secret for webhook signatures

	RuleSource  string        // Rule backend (builtin, file or postgres)
	RulesFile   string        // Path to the user rules file when RuleSource=file
	DatabaseDSN string        // PostgreSQL connection string when RuleSource=postgres
	JobStore    string        // Job record backend (memory or bolt)
	JobStoreDir string        // Directory for the bolt job database
	JobRetention time.Duration // How long finished job records are kept

	MaxWorkers     int           // Parallel browser workers per campaign group
	CampaignDelay  time.Duration // Settle delay between campaigns on one worker
	RetryMax       int           // Retries per campaign on transient failures
	RunTimeout     time.Duration // Hard deadline for one automation run
	Headless       bool          // Run Chrome headless

	RateLimitPerIP  int // Rate limit for unauthenticated requests per IP
	RateLimitPerKey int // Rate limit for admin operations per key
}

// Load reads configuration from environment variables and .env file (if present).
// Environment variables take precedence over .env file values.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env") // Optional; silently ignored if file doesn't exist
	_ = v.ReadInConfig()
	v.AutomaticEnv()

	setConfigDefaults(v)

	return &Config{
		AppEnv:          v.GetString("APP_ENV"),
		HTTPAddr:        v.GetString("APP_HTTP_ADDR"),
		MetricsAddr:     v.GetString("METRICS_ADDR"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		Env:             v.GetString("ENV"),
		Email:           v.GetString("EMAIL"),
		Password:        v.GetString("PASSWORD"),
		LoginURL:        v.GetString("LOGIN_URL"),
		CampaignBaseURL: v.GetString("CAMPAIGN_BASE_URL"),
		AdminAPIKey:     v.GetString("ADMIN_API_KEY"),
		WebhookURL:      v.GetString("WEBHOOK_URL"),
		WebhookKey:      v.GetString("WEBHOOK_KEY"),
		RuleSource:      v.GetString("RULE_SOURCE"),
		RulesFile:       v.GetString("RULES_FILE"),
		DatabaseDSN:     v.GetString("DB_DSN"),
		JobStore:        v.GetString("JOB_STORE"),
		JobStoreDir:     v.GetString("JOB_STORE_DIR"),
		JobRetention:    v.GetDuration("JOB_RETENTION"),
		MaxWorkers:      v.GetInt("MAX_CONCURRENT_WORKERS"),
		CampaignDelay:   v.GetDuration("CAMPAIGN_DELAY"),
		RetryMax:        v.GetInt("RETRY_MAX"),
		RunTimeout:      v.GetDuration("RUN_TIMEOUT"),
		Headless:        v.GetBool("HEADLESS"),
		RateLimitPerIP:  v.GetInt("RATE_LIMIT_PER_IP"),
		RateLimitPerKey: v.GetInt("RATE_LIMIT_PER_KEY"),
	}, nil
}

// setConfigDefaults sets default values for all configuration options.
// These defaults are suitable for local development but should be overridden in production.
func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("APP_HTTP_ADDR", ":3010")
	v.SetDefault("METRICS_ADDR", ":9090")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ENV", EnvRegular)
	v.SetDefault("LOGIN_URL", "https://app.loops.id/login")
	v.SetDefault("CAMPAIGN_BASE_URL", "https://app.loops.id/campaign/")
	v.SetDefault("ADMIN_API_KEY", "admin-123") // Change in production!
	v.SetDefault("RULE_SOURCE", "builtin")
	v.SetDefault("RULES_FILE", "rules.json")
	v.SetDefault("JOB_STORE", "memory")
	v.SetDefault("JOB_STORE_DIR", "data")
	v.SetDefault("JOB_RETENTION", "1h")
	v.SetDefault("MAX_CONCURRENT_WORKERS", 3)
	v.SetDefault("CAMPAIGN_DELAY", "1s")
	v.SetDefault("RETRY_MAX", 2)
	v.SetDefault("RUN_TIMEOUT", "10m")
	v.SetDefault("HEADLESS", true)
	v.SetDefault("RATE_LIMIT_PER_IP", 100)
	v.SetDefault("RATE_LIMIT_PER_KEY", 60)
}

// ValidationError represents a configuration validation error with details about what failed.
type ValidationError struct {
	Field   string // Name of the configuration field
	Message string // Human-readable error message
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed [%s]: %s", e.Field, e.Message)
}

// Validate checks that the configuration is suitable for production use.
// Intended to be called at application startup to fail fast on misconfiguration.
func (c *Config) Validate() error {
	if c.Env != EnvRegular && c.Env != EnvStaging {
		return ValidationError{
			Field:   "ENV",
			Message: fmt.Sprintf("must be '%s' or '%s', got '%s'", EnvRegular, EnvStaging, c.Env),
		}
	}

	if c.HTTPAddr == "" {
		return ValidationError{
			Field:   "APP_HTTP_ADDR",
			Message: "HTTP server address cannot be empty",
		}
	}
	if c.MetricsAddr == "" {
		return ValidationError{
			Field:   "METRICS_ADDR",
			Message: "metrics server address cannot be empty",
		}
	}

	switch c.RuleSource {
	case "builtin":
	case "file":
		if c.RulesFile == "" {
			return ValidationError{
				Field:   "RULES_FILE",
				Message: "rules file path is required when RULE_SOURCE=file",
			}
		}
	case "postgres":
		if c.DatabaseDSN == "" {
			return ValidationError{
				Field:   "DB_DSN",
				Message: "database DSN is required when RULE_SOURCE=postgres",
			}
		}
	default:
		return ValidationError{
			Field:   "RULE_SOURCE",
			Message: fmt.Sprintf("must be 'builtin', 'file' or 'postgres', got '%s'", c.RuleSource),
		}
	}

	if c.JobStore != "memory" && c.JobStore != "bolt" {
		return ValidationError{
			Field:   "JOB_STORE",
			Message: fmt.Sprintf("must be 'memory' or 'bolt', got '%s'", c.JobStore),
		}
	}

	if c.MaxWorkers < 1 {
		return ValidationError{
			Field:   "MAX_CONCURRENT_WORKERS",
			Message: "must be at least 1",
		}
	}
	if c.JobRetention <= 0 {
		return ValidationError{
			Field:   "JOB_RETENTION",
			Message: "must be a positive duration",
		}
	}

	// Production-specific checks (stricter validation)
	if c.AppEnv == "prod" || c.AppEnv == "production" {
		if c.AdminAPIKey == "admin-123" {
			return ValidationError{
				Field:   "ADMIN_API_KEY",
				Message: "default admin API key 'admin-123' is not allowed in production",
			}
		}
		if c.Email == "" || c.Password == "" {
			return ValidationError{
				Field:   "EMAIL",
				Message: "dashboard credentials are required in production",
			}
		}
	}

	return nil
}
