// Package config loads runtime configuration from environment variables (and
// an optional .env file). Thresholds are carried in an explicit struct and
// passed into each pipeline component — nothing reads ambient global state,
// so every stage stays independently testable.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration. Every field maps 1:1 to an env var.
type Config struct {
	// Environment
	Env  string `mapstructure:"APP_ENV"` // development | production
	Port int    `mapstructure:"PORT" validate:"gt=0"`

	// Data locations
	RawDir    string `mapstructure:"RAW_DIR" validate:"required"`
	OutputDir string `mapstructure:"OUTPUT_DIR" validate:"required"`

	// Classification thresholds (cumulative revenue share, 0–1)
	ClassAThreshold float64 `mapstructure:"CLASS_A_THRESHOLD" validate:"gt=0,lt=1"`
	ClassBThreshold float64 `mapstructure:"CLASS_B_THRESHOLD" validate:"gt=0,lte=1,gtfield=ClassAThreshold"`

	// Audit tolerances
	ReconciliationEpsilon float64 `mapstructure:"RECONCILIATION_EPSILON" validate:"gt=0"`
	ZeroPriceThreshold    float64 `mapstructure:"ZERO_PRICE_THRESHOLD" validate:"gte=0"`
	ReturnRateMultiplier  float64 `mapstructure:"RETURN_RATE_OUTLIER_MULTIPLIER" validate:"gt=0"`

	// Consolidation
	ReportingPeriod  string `mapstructure:"REPORTING_PERIOD"` // "" = derive YYYY-MM per line
	UnresolvedPolicy string `mapstructure:"UNRESOLVED_POLICY" validate:"oneof=abort quarantine"`
	Workers          int    `mapstructure:"WORKERS" validate:"gte=1"`

	// Optional extraction source: POS database instead of CSV directory
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// Optional run lock
	RedisURL string `mapstructure:"REDIS_URL"`

	// Optional mismatch alerting
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUser     string `mapstructure:"SMTP_USER"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	AlertTo      string `mapstructure:"ALERT_TO"`
}

var validate = validator.New()

// Load reads configuration from environment variables (and optional .env file).
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Sensible defaults for development
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("PORT", 8000)
	viper.SetDefault("RAW_DIR", "data/raw")
	viper.SetDefault("OUTPUT_DIR", "data/processed")
	viper.SetDefault("CLASS_A_THRESHOLD", 0.80)
	viper.SetDefault("CLASS_B_THRESHOLD", 0.95)
	viper.SetDefault("RECONCILIATION_EPSILON", 0.01)
	viper.SetDefault("ZERO_PRICE_THRESHOLD", 0.01)
	viper.SetDefault("RETURN_RATE_OUTLIER_MULTIPLIER", 2.0)
	viper.SetDefault("UNRESOLVED_POLICY", "quarantine")
	viper.SetDefault("WORKERS", 1)
	viper.SetDefault("SMTP_PORT", 587)

	// Optional .env file for local development — does not fail if missing
	_ = viper.ReadInConfig()

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// SMTPConfigured reports whether mismatch alert emails can be sent.
func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPUser != "" && c.AlertTo != ""
}
