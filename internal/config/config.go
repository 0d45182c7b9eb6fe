// Package config provides configuration loading using koanf.
// Precedence: environment variables override compiled defaults.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/aelexs/notification-dispatch/internal/domain"
)

// Config holds all service configuration.
type Config struct {
	// Environment identifier: "local", "dev", "prod"
	Environment string `koanf:"environment"`

	// Logging configuration
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	// HTTP surface
	HTTP HTTPConfig `koanf:"http"`

	// Channel tuning — SMS and Email configured independently.
	SMS   ChannelConfig `koanf:"sms"`
	Email ChannelConfig `koanf:"email"`

	// Transport endpoints
	Gateway GatewayConfig `koanf:"gateway"`
	SMTP    SMTPConfig    `koanf:"smtp"`

	// Infrastructure configurations
	Redis    RedisConfig    `koanf:"redis"`
	DynamoDB DynamoDBConfig `koanf:"dynamodb"`
	Queue    QueueConfig    `koanf:"queue"`
	Audit    AuditConfig    `koanf:"audit"`

	// OpenTelemetry configuration
	OTEL OTELConfig `koanf:"otel"`
}

// HTTPConfig holds the HTTP listener configuration.
type HTTPConfig struct {
	Port int `koanf:"port"`
}

// ChannelConfig holds the per-channel dispatch-reliability tuning.
// Every knob maps onto one core component: RateLimit → concurrency
// limiter capacity, RetryAttempts → retry policy ceiling,
// BreakerThreshold/BreakerTimeout → circuit breaker.
type ChannelConfig struct {
	RateLimit        int           `koanf:"rate_limit"`
	RetryAttempts    int           `koanf:"retry_attempts"`
	BreakerThreshold int           `koanf:"breaker_threshold"`
	BreakerTimeout   time.Duration `koanf:"breaker_timeout"`
}

// GatewayConfig holds the SMS HTTP gateway configuration.
type GatewayConfig struct {
	URL        string        `koanf:"url"` // Required outside local
	APIKey     string        `koanf:"api_key"`
	FromNumber string        `koanf:"from_number"`
	Timeout    time.Duration `koanf:"timeout"`
}

// SMTPConfig holds the outbound email server configuration.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"` // Required outside local
	Password string `koanf:"password"` // Required outside local
	From     string `koanf:"from"`    // Defaults to Username when empty
}

// RedisConfig holds Redis configuration (OTP queue broker).
type RedisConfig struct {
	Addr     string        `koanf:"addr"` // Required
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	Timeout  time.Duration `koanf:"timeout"`
}

// DynamoDBConfig holds DynamoDB configuration (audit log store).
type DynamoDBConfig struct {
	Endpoint string        `koanf:"endpoint"` // Empty for production (uses default AWS endpoint)
	Region   string        `koanf:"region"`
	Timeout  time.Duration `koanf:"timeout"`
}

// QueueConfig holds the OTP stream consumer configuration.
type QueueConfig struct {
	EmailStream string `koanf:"email_stream"`
	SMSStream   string `koanf:"sms_stream"`
	Group       string `koanf:"group"`
	Consumer    string `koanf:"consumer"`
}

// AuditConfig holds the audit sink configuration.
type AuditConfig struct {
	Table         string `koanf:"table"`
	RetentionDays int    `koanf:"retention_days"`
}

// OTELConfig holds OpenTelemetry configuration.
type OTELConfig struct {
	Endpoint    string `koanf:"endpoint"` // Empty disables OTLP export
	ServiceName string `koanf:"service_name"`
}

// defaults returns a Config with compiled default values.
// The channel defaults mirror the upstream gateway's published limits.
func defaults() *Config {
	return &Config{
		Environment: "local",
		LogLevel:    "info",
		LogFormat:   "json",

		HTTP: HTTPConfig{
			Port: 8080,
		},

		SMS: ChannelConfig{
			RateLimit:        domain.DefaultSMSRateLimit,
			RetryAttempts:    domain.DefaultRetryAttempts,
			BreakerThreshold: domain.DefaultSMSBreakerThreshold,
			BreakerTimeout:   domain.DefaultBreakerOpenDuration,
		},
		Email: ChannelConfig{
			RateLimit:        domain.DefaultEmailRateLimit,
			RetryAttempts:    domain.DefaultRetryAttempts,
			BreakerThreshold: domain.DefaultEmailBreakerThreshold,
			BreakerTimeout:   domain.DefaultBreakerOpenDuration,
		},

		Gateway: GatewayConfig{
			Timeout: domain.SMSGatewayTimeout,
		},
		SMTP: SMTPConfig{
			Host: "smtp.gmail.com",
			Port: 587,
		},

		Redis: RedisConfig{
			Addr:    "localhost:6379",
			DB:      0,
			Timeout: domain.RedisTimeout,
		},
		DynamoDB: DynamoDBConfig{
			Region:  "us-east-1",
			Timeout: domain.DynamoDBTimeout,
		},
		Queue: QueueConfig{
			EmailStream: "otp:email",
			SMSStream:   "otp:sms",
			Group:       "notification-dispatch",
			Consumer:    "dispatcher-1",
		},
		Audit: AuditConfig{
			Table:         "notification_audit",
			RetentionDays: int(domain.AuditRetention.Hours() / 24),
		},
	}
}

// Load loads configuration following the precedence:
// 1. Environment variables (highest)
// 2. Compiled defaults (lowest)
//
// Env vars use "__" as the nesting delimiter so multi-word leaf keys
// survive: SMS__RATE_LIMIT → sms.rate_limit, GATEWAY__API_KEY → gateway.api_key.
func Load(ctx context.Context) (*Config, error) {
	k := koanf.New(".")

	// Start with compiled defaults
	cfg := defaults()

	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	// Unmarshal into config struct
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDerived(cfg)

	// Validate required fields
	if err := validateRequired(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDerived fills fields whose defaults depend on other fields.
func applyDerived(cfg *Config) {
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Username
	}
	if cfg.OTEL.ServiceName == "" {
		cfg.OTEL.ServiceName = "notification-dispatch"
	}
}

// validateRequired checks that required configuration is present.
// Required key missing → startup failure; local development runs against
// log-only transports and needs none of the credentials.
func validateRequired(cfg *Config) error {
	if cfg.Environment == "local" {
		return nil
	}

	if cfg.Gateway.URL == "" {
		return fmt.Errorf("%w: gateway.url", domain.ErrConfigRequired)
	}
	if cfg.SMTP.Username == "" || cfg.SMTP.Password == "" {
		return fmt.Errorf("%w: smtp.username / smtp.password", domain.ErrConfigRequired)
	}
	if cfg.Redis.Addr == "" {
		return fmt.Errorf("%w: redis.addr", domain.ErrConfigRequired)
	}
	if cfg.Audit.Table == "" {
		return fmt.Errorf("%w: audit.table", domain.ErrConfigRequired)
	}

	return nil
}

// IsLocal returns true if running in local development environment.
func (c *Config) IsLocal() bool {
	return c.Environment == "local"
}

// IsProd returns true if running in production environment.
func (c *Config) IsProd() bool {
	return c.Environment == "prod"
}
