package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App            AppConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	Log            LogConfig
	HTTP           HTTPConfig
	Webhook        WebhookConfig
	Vault          VaultConfig
	Idempotency    IdempotencyConfig
	Buffr          BuffrConfig
	Reconciliation ReconciliationConfig
	Scheduler      SchedulerConfig
	Notification   NotificationConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	TrustedProxies    []string
}

// WebhookConfig holds inbound webhook verification settings
type WebhookConfig struct {
	// Secret is the shared HMAC-SHA256 key Buffr signs payloads with.
	Secret string
	// StrictSignatureRequired rejects unsigned or badly signed calls with 401.
	// Disabling it is an explicit trust downgrade for test environments only;
	// every skipped verification is logged.
	StrictSignatureRequired bool
}

// VaultConfig holds token vault settings
type VaultConfig struct {
	// CleanupRetention keeps expired unused tokens around for audit before
	// the sweep deletes them.
	CleanupRetention time.Duration
}

// IdempotencyConfig holds request-deduplication settings
type IdempotencyConfig struct {
	// TTL is the retention window for cached responses.
	TTL time.Duration
	// DedupeTTL is the TTL for the Redis quick-check keys.
	DedupeTTL time.Duration
}

// BuffrConfig holds settings for the external wallet system client
type BuffrConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// ReconciliationConfig holds reconciliation sweep settings
type ReconciliationConfig struct {
	Enabled bool
	// RunAt is the local time of day ("HH:MM") the daily sweep starts.
	RunAt string
}

// SchedulerConfig holds background sweep intervals
type SchedulerConfig struct {
	Enabled              bool
	ExpirySweepInterval  time.Duration
	WarningSweepInterval time.Duration
	CleanupInterval      time.Duration
	ExpiryWarningWindow  time.Duration
}

// NotificationConfig holds the communication collaborator settings
type NotificationConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Load reads configuration from config file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("KETCHUP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional; environment variables and defaults suffice
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ketchup-backend")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "ketchup")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "ketchup")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxopenconns", 25)
	v.SetDefault("database.maxidleconns", 5)
	v.SetDefault("database.connmaxlifetime", 30)
	v.SetDefault("database.connmaxidletime", 10)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("http.readtimeout", 15*time.Second)
	v.SetDefault("http.writetimeout", 15*time.Second)
	v.SetDefault("http.idletimeout", 60*time.Second)
	v.SetDefault("http.maxheaderbytes", 1<<20)
	v.SetDefault("http.ratelimitenabled", true)
	v.SetDefault("http.ratelimitrequests", 100)
	v.SetDefault("http.ratelimitwindow", time.Minute)

	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.strictsignaturerequired", true)

	v.SetDefault("vault.cleanupretention", 30*24*time.Hour)

	v.SetDefault("idempotency.ttl", 24*time.Hour)
	v.SetDefault("idempotency.dedupettl", 24*time.Hour)

	v.SetDefault("buffr.baseurl", "https://api.buffr.example")
	v.SetDefault("buffr.apikey", "")
	v.SetDefault("buffr.timeout", 10*time.Second)

	v.SetDefault("reconciliation.enabled", true)
	v.SetDefault("reconciliation.runat", "02:00")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.expirysweepinterval", time.Hour)
	v.SetDefault("scheduler.warningsweepinterval", 24*time.Hour)
	v.SetDefault("scheduler.cleanupinterval", 6*time.Hour)
	v.SetDefault("scheduler.expirywarningwindow", 7*24*time.Hour)

	v.SetDefault("notification.baseurl", "")
	v.SetDefault("notification.apikey", "")
	v.SetDefault("notification.timeout", 5*time.Second)
}

// Validate checks the configuration for inconsistencies that must fail startup
func (c *Config) Validate() error {
	if c.Webhook.StrictSignatureRequired && c.Webhook.Secret == "" && c.App.Env == "production" {
		return fmt.Errorf("webhook.secret is required when strict signature verification is enabled in production")
	}
	if !c.Webhook.StrictSignatureRequired && c.App.Env == "production" {
		return fmt.Errorf("webhook.strict_signature_required must not be disabled in production")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("database.port %d is out of range", c.Database.Port)
	}
	return nil
}

// DSN builds a PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// URL builds a postgres:// URL, used by the migration tool
func (d *DatabaseConfig) URL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
