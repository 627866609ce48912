package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	StoreFirestore = "firestore"
	StoreSQLite    = "sqlite"
)

// Config holds all configuration for the application.
type Config struct {
	Port                             string `mapstructure:"PORT"`
	GinMode                          string `mapstructure:"GIN_MODE"`
	LogLevel                         string `mapstructure:"LOG_LEVEL"`
	FirebaseProjectID                string `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials     string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`
	ClientURL                        string `mapstructure:"CLIENT_URL"`

	StoreDriver string `mapstructure:"STORE_DRIVER"`
	SQLitePath  string `mapstructure:"SQLITE_PATH"`

	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`
	CacheTTL      time.Duration `mapstructure:"CACHE_TTL"`
	// CacheEncryptionKey is a Base64 AES-256 key. When set, cached UMS responses are sealed.
	CacheEncryptionKey string `mapstructure:"CACHE_ENCRYPTION_KEY"`

	RabbitMQURL   string `mapstructure:"RABBITMQ_URL"`
	RabbitMQQueue string `mapstructure:"RABBITMQ_QUEUE"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`

	UMSBaseURL string        `mapstructure:"UMS_BASE_URL"`
	UMSTimeout time.Duration `mapstructure:"UMS_TIMEOUT"`

	// RecentLoginWindow bounds how long ago the caller must have signed in for
	// sensitive operations such as account deletion and password changes.
	RecentLoginWindow time.Duration `mapstructure:"RECENT_LOGIN_WINDOW"`
	InitRetries       int           `mapstructure:"INIT_RETRIES"`
	InitRetryDelay    time.Duration `mapstructure:"INIT_RETRY_DELAY"`
}

var keys = []string{
	"PORT", "GIN_MODE", "LOG_LEVEL",
	"FIREBASE_PROJECT_ID", "GOOGLE_APPLICATION_CREDENTIALS", "FIREBASE_SERVICE_ACCOUNT_JSON_BASE64",
	"CLIENT_URL", "STORE_DRIVER", "SQLITE_PATH",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "CACHE_TTL", "CACHE_ENCRYPTION_KEY",
	"RABBITMQ_URL", "RABBITMQ_QUEUE",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "SMTP_FROM",
	"UMS_BASE_URL", "UMS_TIMEOUT",
	"RECENT_LOGIN_WINDOW", "INIT_RETRIES", "INIT_RETRY_DELAY",
}

// LoadConfig loads configuration from the environment. Outside release mode a .env file
// in the working directory is loaded first; CONFIG_FILE may point at an additional
// yaml/json/toml file whose keys are overridden by the environment.
func LoadConfig() (*Config, error) {
	if os.Getenv("GIN_MODE") != "release" {
		// Missing .env is normal in containers.
		_ = godotenv.Load()
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_DRIVER", StoreFirestore)
	v.SetDefault("SQLITE_PATH", "data/studentkit.db")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL", "5m")
	v.SetDefault("RABBITMQ_QUEUE", "share-events")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("UMS_TIMEOUT", "30s")
	v.SetDefault("RECENT_LOGIN_WINDOW", "5m")
	v.SetDefault("INIT_RETRIES", 3)
	v.SetDefault("INIT_RETRY_DELAY", "1s")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields every entry point relies on.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreFirestore:
		if c.FirebaseProjectID == "" {
			return errors.New("FIREBASE_PROJECT_ID is required for the firestore store")
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite store")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreFirestore, StoreSQLite, c.StoreDriver)
	}
	if c.InitRetries < 1 {
		return errors.New("INIT_RETRIES must be at least 1")
	}
	if c.RecentLoginWindow <= 0 {
		return errors.New("RECENT_LOGIN_WINDOW must be positive")
	}
	return nil
}

// IsRelease reports whether gin runs in release mode.
func (c *Config) IsRelease() bool {
	return strings.EqualFold(c.GinMode, "release")
}
