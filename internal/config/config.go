package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Backend   BackendConfig
	MongoDB   MongoDBConfig
	Legacy    LegacyConfig
	Cache     CacheConfig
	JWT       JWTConfig
	Auth      AuthConfig
	SMS       SMSConfig
	Sync      SyncConfig
	Feed      FeedConfig
	Officials []OfficialSeed
	LogLevel  string
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port           string
	Mode           string
	AllowedOrigins []string
}

// BackendConfig selects the primary claim store: "mongodb" or "legacy".
type BackendConfig struct {
	Driver string
}

// MongoDBConfig holds MongoDB-specific configuration
type MongoDBConfig struct {
	URI      string
	Database string
}

// LegacyConfig points at the spreadsheet web-app endpoint.
type LegacyConfig struct {
	BaseURL      string
	Timeout      time.Duration
	PollInterval time.Duration
}

// CacheConfig locates the local SQLite cache file.
type CacheConfig struct {
	Path string
}

// JWTConfig holds JWT-specific configuration
type JWTConfig struct {
	Secret    string
	ExpiresIn int // seconds
}

// AuthConfig tunes the sign-in rate limiter.
type AuthConfig struct {
	LoginAttempts int
	LoginWindow   time.Duration
}

// SMSConfig holds SMS gateway-specific configuration
type SMSConfig struct {
	BaseURL  string
	APIKey   string
	SenderID string
	Mock     bool
}

// SyncConfig controls background reconciliation of queued mutations.
type SyncConfig struct {
	Interval time.Duration
}

// FeedConfig controls degraded-mode polling of live feeds.
type FeedConfig struct {
	PollInterval time.Duration
}

// OfficialSeed is an official account created at startup if missing.
type OfficialSeed struct {
	Username string
	Name     string
	Role     string
	Password string
}

const (
	DriverMongoDB = "mongodb"
	DriverLegacy  = "legacy"
)

// LoadConfig loads configuration from config.yaml in path (or ./config) and
// environment variables. MONGODB_URI overrides MongoDB.URI and so on.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file is not found, we'll use environment variables
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Backend.Driver {
	case DriverMongoDB:
		if c.MongoDB.URI == "" {
			return errors.New("config: MongoDB.URI is required for the mongodb driver")
		}
	case DriverLegacy:
		if c.Legacy.BaseURL == "" {
			return errors.New("config: Legacy.BaseURL is required for the legacy driver")
		}
	default:
		return fmt.Errorf("config: unknown Backend.Driver %q", c.Backend.Driver)
	}
	if c.JWT.Secret == "" {
		return errors.New("config: JWT.Secret is required")
	}
	if c.JWT.ExpiresIn <= 0 {
		return errors.New("config: JWT.ExpiresIn must be positive")
	}
	return nil
}

// TokenTTL is JWT.ExpiresIn as a duration.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWT.ExpiresIn) * time.Second
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("Server.Port", "4000")
	v.SetDefault("Server.Mode", "release")
	v.SetDefault("Server.AllowedOrigins", []string{"http://localhost:3000"})
	v.SetDefault("Backend.Driver", DriverMongoDB)
	v.SetDefault("MongoDB.URI", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("MongoDB.Database", "agriclaim")
	v.SetDefault("Legacy.BaseURL", "")
	v.SetDefault("Legacy.Timeout", 15*time.Second)
	v.SetDefault("Legacy.PollInterval", 10*time.Second)
	v.SetDefault("Cache.Path", "agriclaim-cache.db")
	v.SetDefault("JWT.Secret", "")
	v.SetDefault("JWT.ExpiresIn", 24*60*60) // 24 hours
	v.SetDefault("Auth.LoginAttempts", 5)
	v.SetDefault("Auth.LoginWindow", time.Minute)
	v.SetDefault("SMS.BaseURL", "")
	v.SetDefault("SMS.APIKey", "")
	v.SetDefault("SMS.SenderID", "AGRICLAIM")
	v.SetDefault("SMS.Mock", true)
	v.SetDefault("Sync.Interval", 30*time.Second)
	v.SetDefault("Feed.PollInterval", 15*time.Second)
	v.SetDefault("LogLevel", "info")
}
