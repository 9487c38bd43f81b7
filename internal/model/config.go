package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Credential backends for the bearer token slot.
const (
	CredentialBackendKeyring = "keyring"
	CredentialBackendSQLite  = "sqlite"
)

// BackendConfig holds the REST backend connection settings.
type BackendConfig struct {
	// BaseURL is the API root, e.g. https://rentals.example.com/api.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// Timeout bounds a single HTTP request.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// MaxRetries is how many times a rate-limited (429) request is retried.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
}

// SessionConfig holds the session revalidation settings.
type SessionConfig struct {
	// VerifyInterval is how often the stored token is re-verified in the
	// background while the console runs.
	VerifyInterval time.Duration `mapstructure:"verify_interval" yaml:"verify_interval"`
}

// PollConfig holds the dashboard polling settings.
type PollConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// NotificationConfig holds the live notification list settings.
type NotificationConfig struct {
	// MaxLive bounds the live notification list; older entries are dropped.
	MaxLive int `mapstructure:"max_live" yaml:"max_live"`
}

// StorageConfig holds local persistence settings.
type StorageConfig struct {
	DBPath            string `mapstructure:"db_path" yaml:"db_path"`
	CredentialBackend string `mapstructure:"credential_backend" yaml:"credential_backend"`
	KeyringDir        string `mapstructure:"keyring_dir" yaml:"keyring_dir"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Backend       BackendConfig      `mapstructure:"backend" yaml:"backend"`
	Session       SessionConfig      `mapstructure:"session" yaml:"session"`
	Poll          PollConfig         `mapstructure:"poll" yaml:"poll"`
	Notifications NotificationConfig `mapstructure:"notifications" yaml:"notifications"`
	Storage       StorageConfig      `mapstructure:"storage" yaml:"storage"`
	Log           LogConfig          `mapstructure:"log" yaml:"log"`
}

// Default tunables.
const (
	DefaultVerifyInterval = 5 * time.Minute
	DefaultPollInterval   = 10 * time.Second
	DefaultMaxLive        = 10
)

// ConfigDir returns ~/.config/rental-console, falling back to the working
// directory when the home directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "rental-console")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/rental-console/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ExpandPath replaces a leading "~/" with the user's home directory.
func ExpandPath(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dir := ConfigDir()
	return &AppConfig{
		Backend: BackendConfig{
			BaseURL:    "http://localhost:8080/api",
			Timeout:    15 * time.Second,
			MaxRetries: 3,
		},
		Session:       SessionConfig{VerifyInterval: DefaultVerifyInterval},
		Poll:          PollConfig{Interval: DefaultPollInterval},
		Notifications: NotificationConfig{MaxLive: DefaultMaxLive},
		Storage: StorageConfig{
			DBPath:            filepath.Join(dir, "console.db"),
			CredentialBackend: CredentialBackendKeyring,
			KeyringDir:        filepath.Join(dir, "credentials"),
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(dir, "console.log"),
		},
	}
}

// setDefaults mirrors defaultAppConfig into viper so that env overrides
// and partial files resolve every key.
func setDefaults(v *viper.Viper, d *AppConfig) {
	v.SetDefault("backend.base_url", d.Backend.BaseURL)
	v.SetDefault("backend.timeout", d.Backend.Timeout)
	v.SetDefault("backend.max_retries", d.Backend.MaxRetries)
	v.SetDefault("session.verify_interval", d.Session.VerifyInterval)
	v.SetDefault("poll.interval", d.Poll.Interval)
	v.SetDefault("notifications.max_live", d.Notifications.MaxLive)
	v.SetDefault("storage.db_path", d.Storage.DBPath)
	v.SetDefault("storage.credential_backend", d.Storage.CredentialBackend)
	v.SetDefault("storage.keyring_dir", d.Storage.KeyringDir)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"base-url":  "backend.base_url",
	"log-level": "log.level",
	"db":        "storage.db_path",
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, defaults are used. RENTAL_* environment
// variables and any flags in fs override the file; fs may be nil.
func LoadConfig(path string, fs *pflag.FlagSet) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("RENTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, defaultAppConfig())

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// normalize expands paths and replaces non-positive tunables with defaults.
func (c *AppConfig) normalize() {
	c.Backend.BaseURL = strings.TrimRight(c.Backend.BaseURL, "/")
	c.Storage.DBPath = ExpandPath(c.Storage.DBPath)
	c.Storage.KeyringDir = ExpandPath(c.Storage.KeyringDir)
	c.Log.File = ExpandPath(c.Log.File)
	c.Storage.CredentialBackend = strings.ToLower(strings.TrimSpace(c.Storage.CredentialBackend))

	if c.Session.VerifyInterval <= 0 {
		c.Session.VerifyInterval = DefaultVerifyInterval
	}
	if c.Poll.Interval <= 0 {
		c.Poll.Interval = DefaultPollInterval
	}
	if c.Notifications.MaxLive <= 0 {
		c.Notifications.MaxLive = DefaultMaxLive
	}
	if c.Backend.MaxRetries < 0 {
		c.Backend.MaxRetries = 0
	}
}

// Validate checks settings that have no safe fallback.
func (c *AppConfig) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	switch c.Storage.CredentialBackend {
	case CredentialBackendKeyring, CredentialBackendSQLite:
	default:
		return fmt.Errorf(
			"storage.credential_backend must be %q or %q, got %q",
			CredentialBackendKeyring, CredentialBackendSQLite,
			c.Storage.CredentialBackend,
		)
	}
	return nil
}

// WriteDefaultConfig writes the default configuration to path unless a file
// already exists there. It reports whether a file was written.
func WriteDefaultConfig(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("checking config %s: %w", path, err)
	}

	if err := SaveConfig(path, defaultAppConfig()); err != nil {
		return false, err
	}
	return true, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("backend.base_url", cfg.Backend.BaseURL)
	v.Set("backend.timeout", cfg.Backend.Timeout.String())
	v.Set("backend.max_retries", cfg.Backend.MaxRetries)
	v.Set("session.verify_interval", cfg.Session.VerifyInterval.String())
	v.Set("poll.interval", cfg.Poll.Interval.String())
	v.Set("notifications.max_live", cfg.Notifications.MaxLive)
	v.Set("storage", cfg.Storage)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
