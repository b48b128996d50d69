// Package config loads service configuration from YAML files and environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Rewards  RewardsConfig  `mapstructure:"rewards"`
	Billing  BillingConfig  `mapstructure:"billing"`
	Uploads  UploadsConfig  `mapstructure:"uploads"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// AuthConfig contains JWT validation and admin authorization settings
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	JWTIssuer string `mapstructure:"jwt_issuer"`
	// AdminEmails grants admin access to accounts provisioned before the
	// is_admin flag existed. Matching is case-insensitive.
	AdminEmails []string `mapstructure:"admin_emails"`
}

// RewardsConfig contains reward engine settings
type RewardsConfig struct {
	DailyTokens int64 `mapstructure:"daily_tokens"`
}

// BillingConfig contains purchase crediting settings
type BillingConfig struct {
	// DedupeWindow is the number of newest token_purchase events scanned
	// per user when checking whether a payment reference was already
	// credited.
	DedupeWindow int    `mapstructure:"dedupe_window"`
	Currency     string `mapstructure:"currency"`
}

// UploadsConfig contains upload intake limits
type UploadsConfig struct {
	MaxFiles    int   `mapstructure:"max_files"`
	MaxBodySize int64 `mapstructure:"max_body_size"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "60s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.database", "tokens_api")

	// Auth defaults
	viper.SetDefault("auth.jwt_issuer", "picturescaler")

	// Rewards defaults
	viper.SetDefault("rewards.daily_tokens", 1)

	// Billing defaults
	viper.SetDefault("billing.dedupe_window", 200)
	viper.SetDefault("billing.currency", "USD")

	// Uploads defaults
	viper.SetDefault("uploads.max_files", 50)
	viper.SetDefault("uploads.max_body_size", 256<<20)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")
}

func validate(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if config.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if config.Rewards.DailyTokens <= 0 {
		return fmt.Errorf("rewards.daily_tokens must be positive")
	}
	if config.Billing.DedupeWindow <= 0 {
		return fmt.Errorf("billing.dedupe_window must be positive")
	}
	if config.Uploads.MaxFiles <= 0 {
		return fmt.Errorf("uploads.max_files must be positive")
	}
	return nil
}

// GetConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
