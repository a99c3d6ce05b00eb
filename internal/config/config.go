package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	JWT          JWTConfig          `yaml:"jwt"`
	Payment      PaymentConfig      `yaml:"payment"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	AWS          AWSConfig          `yaml:"aws"`
	APNS         APNSConfig         `yaml:"apns"`
	Log          LogConfig          `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// PaymentConfig holds mobile-money gateway configuration
type PaymentConfig struct {
	BaseURL        string `yaml:"base_url"`
	ConsumerKey    string `yaml:"consumer_key"`
	ConsumerSecret string `yaml:"consumer_secret"`
	ShortCode      string `yaml:"short_code"`
	Passkey        string `yaml:"passkey"`
	CallbackURL    string `yaml:"callback_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	// Price is the fixed subscription price in whole currency units.
	// Requests with any other amount are rejected.
	Price int64 `yaml:"price"`
	// RequestTTLMinutes is how long an initiated request stays reconcilable.
	RequestTTLMinutes int `yaml:"request_ttl_minutes"`
}

// Timeout returns the gateway HTTP timeout
func (c *PaymentConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RequestTTL returns the payment request lifetime
func (c *PaymentConfig) RequestTTL() time.Duration {
	return time.Duration(c.RequestTTLMinutes) * time.Minute
}

// SubscriptionConfig holds subscription lifecycle configuration
type SubscriptionConfig struct {
	// DurationDays is the period bought by one successful payment.
	DurationDays int `yaml:"duration_days"`
	// GracePeriodMinutes absorbs clock skew and sweep latency past expiry.
	GracePeriodMinutes int `yaml:"grace_period_minutes"`
	// SweepIntervalMinutes is how often the expiry sweeper runs.
	SweepIntervalMinutes int `yaml:"sweep_interval_minutes"`
}

// Duration returns the paid period length
func (c *SubscriptionConfig) Duration() time.Duration {
	return time.Duration(c.DurationDays) * 24 * time.Hour
}

// GracePeriod returns the post-expiry grace window
func (c *SubscriptionConfig) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodMinutes) * time.Minute
}

// SweepInterval returns the sweeper interval
func (c *SubscriptionConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

// AWSConfig holds AWS configuration for profile photo storage
type AWSConfig struct {
	Region    string `yaml:"region"`
	S3Bucket  string `yaml:"s3_bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"`
}

// APNSConfig holds Apple push notification configuration
type APNSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	CertPass string `yaml:"cert_pass"`
	Topic    string `yaml:"topic"`
	Sandbox  bool   `yaml:"sandbox"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Payment.TimeoutSeconds == 0 {
		c.Payment.TimeoutSeconds = 10
	}
	if c.Payment.RequestTTLMinutes == 0 {
		c.Payment.RequestTTLMinutes = 30
	}
	if c.Subscription.DurationDays == 0 {
		c.Subscription.DurationDays = 30
	}
	if c.Subscription.GracePeriodMinutes == 0 {
		c.Subscription.GracePeriodMinutes = 30
	}
	if c.Subscription.SweepIntervalMinutes == 0 {
		c.Subscription.SweepIntervalMinutes = 30
	}
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
