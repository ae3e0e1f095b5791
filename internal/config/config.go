package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/cyberkey/cyberkey-backend/internal/crypto"
)

// Config holds all configuration for the application.
type Config struct {
	Port      string `mapstructure:"PORT"`
	GinMode   string `mapstructure:"GIN_MODE"`
	ClientURL string `mapstructure:"CLIENT_URL"` // CORS origin of the dashboard
	AppURL    string `mapstructure:"APP_URL"`    // linked from outgoing emails

	FirebaseProjectID                string `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials     string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`

	EncryptionKey string `mapstructure:"ENCRYPTION_KEY"` // Base64 encoded, 32 bytes

	SchedulerToken            string        `mapstructure:"SCHEDULER_TOKEN"`
	SchedulerEnabled          bool          `mapstructure:"SCHEDULER_ENABLED"`
	ExpiryScanInterval        time.Duration `mapstructure:"EXPIRY_SCAN_INTERVAL"`
	ActivityRetentionInterval time.Duration `mapstructure:"ACTIVITY_RETENTION_INTERVAL"`
	ExpiredKeySweepInterval   time.Duration `mapstructure:"EXPIRED_KEY_SWEEP_INTERVAL"`
	ActivityRetentionDays     int           `mapstructure:"ACTIVITY_RETENTION_DAYS"`

	AMQPURL       string `mapstructure:"AMQP_URL"`
	ActivityQueue string `mapstructure:"ACTIVITY_QUEUE"`

	RedisAddr       string        `mapstructure:"REDIS_ADDR"`
	RedisPassword   string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB         int           `mapstructure:"REDIS_DB"`
	BalanceCacheTTL time.Duration `mapstructure:"BALANCE_CACHE_TTL"`

	AnthropicAPIURL string `mapstructure:"ANTHROPIC_API_URL"`

	AlertSMTPHost     string `mapstructure:"ALERT_SMTP_HOST"`
	AlertSMTPPort     int    `mapstructure:"ALERT_SMTP_PORT"`
	AlertSMTPSecure   bool   `mapstructure:"ALERT_SMTP_SECURE"`
	AlertSMTPUsername string `mapstructure:"ALERT_SMTP_USERNAME"`
	AlertSMTPPassword string `mapstructure:"ALERT_SMTP_PASSWORD"`
	AlertSMTPFrom     string `mapstructure:"ALERT_SMTP_FROM"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	LogLevel      string `mapstructure:"LOG_LEVEL"`
	LogFile       string `mapstructure:"LOG_FILE"`
	LogMaxSizeMB  int    `mapstructure:"LOG_MAX_SIZE_MB"`
	LogMaxBackups int    `mapstructure:"LOG_MAX_BACKUPS"`
	LogMaxAgeDays int    `mapstructure:"LOG_MAX_AGE_DAYS"`
}

var defaults = map[string]interface{}{
	"PORT":                        "8080",
	"GIN_MODE":                    "debug",
	"APP_URL":                     "http://localhost:3000",
	"SCHEDULER_ENABLED":           true,
	"EXPIRY_SCAN_INTERVAL":        "12h",
	"ACTIVITY_RETENTION_INTERVAL": "24h",
	"EXPIRED_KEY_SWEEP_INTERVAL":  "24h",
	"ACTIVITY_RETENTION_DAYS":     90,
	"ACTIVITY_QUEUE":              "activity_logs.created",
	"REDIS_DB":                    0,
	"BALANCE_CACHE_TTL":           "5m",
	"ANTHROPIC_API_URL":           "https://api.anthropic.com",
	"ALERT_SMTP_PORT":             587,
	"RATE_LIMIT_RPS":              5.0,
	"RATE_LIMIT_BURST":            20,
	"LOG_LEVEL":                   "info",
	"LOG_MAX_SIZE_MB":             100,
	"LOG_MAX_BACKUPS":             5,
	"LOG_MAX_AGE_DAYS":            30,
}

var envKeys = []string{
	"PORT", "GIN_MODE", "CLIENT_URL", "APP_URL",
	"FIREBASE_PROJECT_ID", "GOOGLE_APPLICATION_CREDENTIALS", "FIREBASE_SERVICE_ACCOUNT_JSON_BASE64",
	"ENCRYPTION_KEY",
	"SCHEDULER_TOKEN", "SCHEDULER_ENABLED", "EXPIRY_SCAN_INTERVAL", "ACTIVITY_RETENTION_INTERVAL",
	"EXPIRED_KEY_SWEEP_INTERVAL", "ACTIVITY_RETENTION_DAYS",
	"AMQP_URL", "ACTIVITY_QUEUE",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "BALANCE_CACHE_TTL",
	"ANTHROPIC_API_URL",
	"ALERT_SMTP_HOST", "ALERT_SMTP_PORT", "ALERT_SMTP_SECURE", "ALERT_SMTP_USERNAME",
	"ALERT_SMTP_PASSWORD", "ALERT_SMTP_FROM",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"LOG_LEVEL", "LOG_FILE", "LOG_MAX_SIZE_MB", "LOG_MAX_BACKUPS", "LOG_MAX_AGE_DAYS",
}

// LoadConfig reads configuration from the environment. Outside release mode a
// .env file is loaded first when present. If CONFIG_FILE names a YAML file,
// its values sit beneath the environment.
func LoadConfig() (*Config, error) {
	if !strings.EqualFold(os.Getenv("GIN_MODE"), "release") {
		// Missing .env is normal.
		_ = godotenv.Load()
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.FirebaseProjectID == "" {
		errs = append(errs, errors.New("FIREBASE_PROJECT_ID is required"))
	}
	if c.GoogleApplicationCredentials == "" && c.FirebaseServiceAccountJSONBase64 == "" {
		errs = append(errs, errors.New("either GOOGLE_APPLICATION_CREDENTIALS or FIREBASE_SERVICE_ACCOUNT_JSON_BASE64 is required"))
	}
	if _, err := crypto.KeyFromBase64(c.EncryptionKey); err != nil {
		errs = append(errs, fmt.Errorf("ENCRYPTION_KEY: %w", err))
	}
	if c.ActivityRetentionDays <= 0 {
		errs = append(errs, errors.New("ACTIVITY_RETENTION_DAYS must be positive"))
	}
	if c.SchedulerEnabled {
		for name, d := range map[string]time.Duration{
			"EXPIRY_SCAN_INTERVAL":        c.ExpiryScanInterval,
			"ACTIVITY_RETENTION_INTERVAL": c.ActivityRetentionInterval,
			"EXPIRED_KEY_SWEEP_INTERVAL":  c.ExpiredKeySweepInterval,
		} {
			if d <= 0 {
				errs = append(errs, fmt.Errorf("%s must be a positive duration", name))
			}
		}
	}
	return errors.Join(errs...)
}

// IsRelease reports whether gin runs in release mode.
func (c *Config) IsRelease() bool {
	return strings.EqualFold(c.GinMode, "release")
}

// AlertSMTPConfigured reports whether security alert emails can be sent.
func (c *Config) AlertSMTPConfigured() bool {
	return c.AlertSMTPHost != "" && c.AlertSMTPFrom != ""
}

// ActivityRetention is the age after which activity logs are purged.
func (c *Config) ActivityRetention() time.Duration {
	return time.Duration(c.ActivityRetentionDays) * 24 * time.Hour
}
