package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/pipeline-auth/internal/auth"
	"github.com/florianilch/pipeline-auth/internal/hostauth"
	"github.com/florianilch/pipeline-auth/internal/observability"
	"github.com/florianilch/pipeline-auth/internal/tokenstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// TokenStorageType represents the different storage types supported for cached tokens.
type TokenStorageType string

const (
	TokenStorageTypeFile    TokenStorageType = "file"
	TokenStorageTypeKeyring TokenStorageType = "keyring"
	TokenStorageTypeMemory  TokenStorageType = "memory"
)

// KeyringService is the keyring service name under which tokens are stored.
const KeyringService = "pipeline-auth"

// Default configuration values
const (
	DefaultConfigLogFormat         = LogFormatText
	DefaultConfigTelemetryExporter = observability.ExporterNone
	DefaultConfigHostAuthURI       = hostauth.DefaultAuthURI
	DefaultConfigHostTimeout       = 30 * time.Second
	DefaultConfigGitHubNote        = auth.DefaultNote
	DefaultConfigStorageType       = TokenStorageTypeFile
)

// TelemetryConfig selects the log export pipeline.
type TelemetryConfig struct {
	Exporter observability.Exporter `json:"exporter" validate:"oneof=none stdout otlp-http otlp-grpc"`
}

// HostConfig describes the host application that issues pipeline tokens.
type HostConfig struct {
	URL     string        `json:"url" validate:"required,url"`
	AuthURI string        `json:"auth_uri" validate:"required,startswith=/"`
	Timeout time.Duration `json:"timeout" validate:"gt=0"`
}

// GitHubConfig describes how GitHub authorizations are created.
type GitHubConfig struct {
	// BaseURL is the API root of a GitHub Enterprise instance. Empty means github.com.
	BaseURL string   `json:"base_url,omitempty" validate:"omitempty,url"`
	Note    string   `json:"note" validate:"required"`
	Scopes  []string `json:"scopes" validate:"min=1,dive,required"`
}

// StorageConfig describes where cached tokens live.
type StorageConfig struct {
	Type TokenStorageType `json:"type" validate:"required,oneof=file keyring memory"`

	// Storage-specific settings (only the one matching Type is used)
	Dir         string `json:"dir,omitempty"`          // For file storage: directory holding token files
	KeyringUser string `json:"keyring_user,omitempty"` // For keyring storage: user identifier
}

// NewTokenStore creates a TokenStore from the storage configuration.
func (s *StorageConfig) NewTokenStore() (tokenstore.TokenStore, error) {
	switch s.Type {
	case TokenStorageTypeFile:
		return tokenstore.NewFileStore(s.Dir)
	case TokenStorageTypeKeyring:
		return tokenstore.NewKeyringStore(KeyringService, s.KeyringUser)
	case TokenStorageTypeMemory:
		return tokenstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", s.Type)
	}
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level      `json:"log_level"`
	LogFormat LogFormat       `json:"log_format" validate:"oneof=text json"`
	Telemetry TelemetryConfig `json:"telemetry"`
	Host      HostConfig      `json:"host"`
	GitHub    GitHubConfig    `json:"github"`
	Storage   StorageConfig   `json:"storage"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Telemetry.Exporter == "" {
		c.Telemetry.Exporter = DefaultConfigTelemetryExporter
	}
	if c.Host.AuthURI == "" {
		c.Host.AuthURI = DefaultConfigHostAuthURI
	}
	if c.Host.Timeout == 0 {
		c.Host.Timeout = DefaultConfigHostTimeout
	}
	if c.GitHub.Note == "" {
		c.GitHub.Note = DefaultConfigGitHubNote
	}
	if len(c.GitHub.Scopes) == 0 {
		c.GitHub.Scopes = append([]string(nil), auth.DefaultScopes...)
	}
	if c.Storage.Type == "" {
		c.Storage.Type = DefaultConfigStorageType
	}

	// Dynamic defaults based on storage type
	switch c.Storage.Type {
	case TokenStorageTypeFile:
		if c.Storage.Dir == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("storage.dir required (auto-detect failed: %w)", err)
			}
			c.Storage.Dir = filepath.Join(configDir, "pipeline-auth")
		}
	case TokenStorageTypeKeyring:
		if c.Storage.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("storage.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Storage.KeyringUser = currentUser.Username
		}
	case TokenStorageTypeMemory:
		// nothing to persist
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Storage.Type {
	case TokenStorageTypeFile:
		if c.Storage.Dir == "" {
			return errors.New("dir required for file storage")
		}
	case TokenStorageTypeKeyring:
		if c.Storage.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	}

	return nil
}

// RevokeURL is the GitHub settings page where users revoke the authorization.
// For GitHub Enterprise it is derived from the API base URL.
func (c *Config) RevokeURL() string {
	if c.GitHub.BaseURL == "" {
		return auth.DefaultRevokeURL
	}
	u, err := url.Parse(c.GitHub.BaseURL)
	if err != nil || u.Host == "" {
		return auth.DefaultRevokeURL
	}
	u.Path = strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), "/api/v3")
	u.RawQuery = ""
	return u.JoinPath("settings", "applications").String()
}
