// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github-org-mirror/internal/model"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	DBURL       string `mapstructure:"DB_URL"`
	HTTPAddr    string `mapstructure:"HTTP_ADDR"`
	FrontendURL string `mapstructure:"FRONTEND_URL"`

	GithubClientID       string        `mapstructure:"GITHUB_CLIENT_ID"`
	GithubClientSecret   string        `mapstructure:"GITHUB_CLIENT_SECRET"`
	GithubRedirectURL    string        `mapstructure:"GITHUB_REDIRECT_URL"`
	GithubAPIURL         string        `mapstructure:"GITHUB_API_URL"`
	GithubRequestTimeout time.Duration `mapstructure:"GITHUB_REQUEST_TIMEOUT"`
	GithubMaxRetries     int           `mapstructure:"GITHUB_MAX_RETRIES"`

	SyncInterval           time.Duration  `mapstructure:"SYNC_INTERVAL"`
	SyncConcurrency        int            `mapstructure:"SYNC_CONCURRENCY"`
	SyncMode               model.SyncMode `mapstructure:"SYNC_MODE"`
	SyncIncrementalOverlap time.Duration  `mapstructure:"SYNC_INCREMENTAL_OVERLAP"`
	SyncCommitCap          int            `mapstructure:"SYNC_COMMIT_CAP"`
	SyncPageDelay          time.Duration  `mapstructure:"SYNC_PAGE_DELAY"`
	SyncExtendedEntities   bool           `mapstructure:"SYNC_EXTENDED_ENTITIES"`
}

// LoadConfig reads configuration from an env file and/or environment variables.
// An empty envFile means ".env" in the working directory.
func LoadConfig(envFile string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("FRONTEND_URL", "http://localhost:4200")
	v.SetDefault("GITHUB_CLIENT_ID", "")
	v.SetDefault("GITHUB_CLIENT_SECRET", "")
	v.SetDefault("GITHUB_REDIRECT_URL", "")
	v.SetDefault("GITHUB_API_URL", "")
	v.SetDefault("GITHUB_REQUEST_TIMEOUT", "30s")
	v.SetDefault("GITHUB_MAX_RETRIES", 3)
	v.SetDefault("SYNC_INTERVAL", "0s")
	v.SetDefault("SYNC_CONCURRENCY", 5)
	v.SetDefault("SYNC_MODE", string(model.SyncModeFull))
	v.SetDefault("SYNC_INCREMENTAL_OVERLAP", "24h")
	v.SetDefault("SYNC_COMMIT_CAP", 1000)
	v.SetDefault("SYNC_PAGE_DELAY", "100ms")
	v.SetDefault("SYNC_EXTENDED_ENTITIES", false)
	v.SetDefault("DB_URL", "")

	// Load from .env file if it exists
	if envFile != "" {
		v.SetConfigFile(envFile)
	} else {
		v.SetConfigName(".env")
		v.AddConfigPath(".")
	}
	v.SetConfigType("env")
	_ = v.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DBURL == "" {
		return errors.New("DB_URL is a required configuration field")
	}
	switch c.SyncMode {
	case model.SyncModeFull, model.SyncModeIncremental:
	default:
		return fmt.Errorf("SYNC_MODE must be %q or %q, got %q", model.SyncModeFull, model.SyncModeIncremental, c.SyncMode)
	}
	if c.SyncCommitCap <= 0 {
		return errors.New("SYNC_COMMIT_CAP must be positive")
	}
	if c.SyncConcurrency <= 0 {
		return errors.New("SYNC_CONCURRENCY must be positive")
	}
	if c.GithubMaxRetries <= 0 {
		return errors.New("GITHUB_MAX_RETRIES must be positive")
	}
	if c.SyncInterval < 0 || c.SyncPageDelay < 0 || c.SyncIncrementalOverlap < 0 {
		return errors.New("SYNC_INTERVAL, SYNC_PAGE_DELAY and SYNC_INCREMENTAL_OVERLAP must not be negative")
	}
	if c.GithubRedirectURL == "" {
		c.GithubRedirectURL = "http://localhost" + c.HTTPAddr + "/api/auth/github/callback"
	}
	return nil
}

// OAuthEnabled reports whether the connect/callback routes can be served.
func (c *Config) OAuthEnabled() bool {
	return c.GithubClientID != "" && c.GithubClientSecret != ""
}
