package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/wicaksono/loan-servicing/internal/domain"
)

// Config holds all configuration for the servicing daemon
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port string `mapstructure:"SERVER_PORT"`
	Host string `mapstructure:"SERVER_HOST"`
	Env  string `mapstructure:"ENV"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"DATABASE_HOST"`
	Port         string `mapstructure:"DATABASE_PORT"`
	Name         string `mapstructure:"DATABASE_NAME"`
	User         string `mapstructure:"DATABASE_USER"`
	Password     string `mapstructure:"DATABASE_PASSWORD"`
	SSLMode      string `mapstructure:"DATABASE_SSLMODE"`
	MaxOpenConns int    `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns int    `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode)
}

type RedisConfig struct {
	Host        string `mapstructure:"REDIS_HOST"`
	Port        string `mapstructure:"REDIS_PORT"`
	Password    string `mapstructure:"REDIS_PASSWORD"`
	DB          int    `mapstructure:"REDIS_DB"`
	SnapshotTTL string `mapstructure:"REDIS_SNAPSHOT_TTL"`
	Channel     string `mapstructure:"REDIS_EVENT_CHANNEL"`
}

type SweepConfig struct {
	CronSpec string `mapstructure:"SWEEP_CRON"`
	Timezone string `mapstructure:"SWEEP_TIMEZONE"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

type BusinessConfig struct {
	GraceDays         int    `mapstructure:"GRACE_ON_ARREARS_AGEING"`
	InstallmentLevel  bool   `mapstructure:"INSTALLMENT_LEVEL_DELINQUENCY"`
	CurrencyCode      string `mapstructure:"CURRENCY_CODE"`
	CurrencyDecimals  int32  `mapstructure:"CURRENCY_DECIMAL_PLACES"`
	CurrencyMultiples string `mapstructure:"CURRENCY_IN_MULTIPLES_OF"`
	RoundingMode      string `mapstructure:"CURRENCY_ROUNDING_MODE"`
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("DATABASE_SSLMODE", "disable")
	viper.SetDefault("DATABASE_MAX_OPEN_CONNS", 10)
	viper.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	viper.SetDefault("REDIS_SNAPSHOT_TTL", "24h")
	viper.SetDefault("REDIS_EVENT_CHANNEL", "loan.delinquency.range-changed")
	viper.SetDefault("SWEEP_CRON", "0 0 0 * * *")
	viper.SetDefault("SWEEP_TIMEZONE", "Asia/Jakarta")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("GRACE_ON_ARREARS_AGEING", 0)
	viper.SetDefault("INSTALLMENT_LEVEL_DELINQUENCY", false)
	viper.SetDefault("CURRENCY_CODE", "IDR")
	viper.SetDefault("CURRENCY_DECIMAL_PLACES", 2)
	viper.SetDefault("CURRENCY_IN_MULTIPLES_OF", "0")
	viper.SetDefault("CURRENCY_ROUNDING_MODE", string(domain.RoundingHalfUp))

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read from .env file (optional)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./deployments")

	// Don't fail if .env file doesn't exist
	_ = viper.ReadInConfig()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Database.Host == "" || c.Database.Name == "" {
		return fmt.Errorf("DATABASE_HOST and DATABASE_NAME are required")
	}

	if c.Business.GraceDays < 0 {
		return fmt.Errorf("GRACE_ON_ARREARS_AGEING must not be negative")
	}

	if !domain.RoundingMode(c.Business.RoundingMode).Valid() {
		return fmt.Errorf("CURRENCY_ROUNDING_MODE %q is not a known mode", c.Business.RoundingMode)
	}

	if _, err := decimal.NewFromString(c.Business.CurrencyMultiples); err != nil {
		return fmt.Errorf("CURRENCY_IN_MULTIPLES_OF must be a valid decimal: %w", err)
	}

	if _, err := time.ParseDuration(c.Redis.SnapshotTTL); err != nil {
		return fmt.Errorf("REDIS_SNAPSHOT_TTL must be a valid duration: %w", err)
	}

	if _, err := time.LoadLocation(c.Sweep.Timezone); err != nil {
		return fmt.Errorf("SWEEP_TIMEZONE must be a valid location: %w", err)
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// MonetaryPolicy builds the default currency policy from configuration.
func (c *Config) MonetaryPolicy() domain.MonetaryPolicy {
	multiples, _ := decimal.NewFromString(c.Business.CurrencyMultiples)
	return domain.NewMonetaryPolicy(
		c.Business.CurrencyCode,
		c.Business.CurrencyDecimals,
		multiples,
		domain.RoundingMode(c.Business.RoundingMode),
	)
}

// SnapshotTTL returns the snapshot cache lifetime as a duration.
func (c *Config) SnapshotTTL() time.Duration {
	ttl, _ := time.ParseDuration(c.Redis.SnapshotTTL)
	return ttl
}

// SweepLocation returns the timezone the business date is derived in.
func (c *Config) SweepLocation() *time.Location {
	loc, _ := time.LoadLocation(c.Sweep.Timezone)
	return loc
}
